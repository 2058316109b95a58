package config

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/core-tools/hsu-nginx-agent/pkg/logging"
)

// Config is the parsed-configuration facade consumed by the instance model.
// FullParse must succeed once before any accessor is read.
type Config interface {
	FullParse() error
	Path() string
	Checksum() string

	// Status URL candidates, in discovery order
	StubStatusURLs() []string
	PlusStatusInternalURLs() []string
	PlusStatusExternalURLs() []string

	// Log sources: filename -> format name / severity level
	AccessLogs() map[string]string
	ErrorLogs() map[string]string

	// Named log formats: name -> format string
	LogFormats() map[string]string
}

type fileConfig struct {
	path   string
	prefix string
	logger logging.Logger

	checksum         string
	stubStatusURLs   []string
	plusInternalURLs []string
	plusExternalURLs []string
	accessLogs       map[string]string
	errorLogs        map[string]string
	logFormats       map[string]string
}

// NewFileConfig creates a Config backed by an nginx configuration file.
// Relative paths inside the config resolve against prefix.
func NewFileConfig(path string, prefix string, logger logging.Logger) Config {
	return &fileConfig{
		path:   path,
		prefix: prefix,
		logger: logger,
	}
}

func (c *fileConfig) Path() string {
	return c.path
}

func (c *fileConfig) Checksum() string {
	return c.checksum
}

func (c *fileConfig) StubStatusURLs() []string {
	return c.stubStatusURLs
}

func (c *fileConfig) PlusStatusInternalURLs() []string {
	return c.plusInternalURLs
}

func (c *fileConfig) PlusStatusExternalURLs() []string {
	return c.plusExternalURLs
}

func (c *fileConfig) AccessLogs() map[string]string {
	return c.accessLogs
}

func (c *fileConfig) ErrorLogs() map[string]string {
	return c.errorLogs
}

func (c *fileConfig) LogFormats() map[string]string {
	return c.logFormats
}

func (c *fileConfig) FullParse() error {
	p := &parser{
		prefix: c.prefix,
		seen:   make(map[string]bool),
	}

	directives, err := p.parseFile(c.path)
	if err != nil {
		return err
	}

	c.checksum, err = checksumFiles(p.files)
	if err != nil {
		return err
	}

	c.stubStatusURLs = nil
	c.plusInternalURLs = nil
	c.plusExternalURLs = nil
	c.accessLogs = make(map[string]string)
	c.errorLogs = make(map[string]string)
	c.logFormats = make(map[string]string)

	c.collectLogs(directives)
	c.collectStatusURLs(directives)

	c.logger.Debugf("Parsed nginx config, path: %s, stub_urls: %d, plus_internal: %d, plus_external: %d, access_logs: %d, error_logs: %d",
		c.path, len(c.stubStatusURLs), len(c.plusInternalURLs), len(c.plusExternalURLs), len(c.accessLogs), len(c.errorLogs))

	return nil
}

func checksumFiles(files []string) (string, error) {
	hash := sha256.New()
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			continue // file vanished between parse and checksum, skip
		}
		hash.Write([]byte(file))
		hash.Write(data)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// collectLogs gathers access_log, error_log and log_format directives from
// any context
func (c *fileConfig) collectLogs(directives []Directive) {
	for _, directive := range directives {
		switch directive.Name {
		case "access_log":
			if filename, format, ok := c.accessLogTarget(directive.Args); ok {
				c.accessLogs[filename] = format
			}
		case "error_log":
			if filename, level, ok := c.errorLogTarget(directive.Args); ok {
				c.errorLogs[filename] = level
			}
		case "log_format":
			if len(directive.Args) >= 2 {
				c.logFormats[directive.Args[0]] = strings.Join(directive.Args[1:], "")
			}
		}
		if directive.Block != nil {
			c.collectLogs(directive.Block)
		}
	}
}

func (c *fileConfig) accessLogTarget(args []string) (string, string, bool) {
	if len(args) == 0 {
		return "", "", false
	}
	target := args[0]
	if target == "off" || strings.HasPrefix(target, "syslog:") || strings.HasPrefix(target, "memory:") {
		return "", "", false
	}
	format := "combined"
	if len(args) > 1 && !strings.Contains(args[1], "=") {
		format = args[1]
	}
	return c.resolvePath(target), format, true
}

func (c *fileConfig) errorLogTarget(args []string) (string, string, bool) {
	if len(args) == 0 {
		return "", "", false
	}
	target := args[0]
	if target == "stderr" || strings.HasPrefix(target, "syslog:") || strings.HasPrefix(target, "memory:") {
		return "", "", false
	}
	level := "error"
	if len(args) > 1 {
		level = args[1]
	}
	return c.resolvePath(target), level, true
}

func (c *fileConfig) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.prefix, path)
}

// collectStatusURLs derives stub/plus status URL candidates from server
// blocks. Internal candidates pair listen addresses with the location path;
// external plus candidates pair server names with the location path.
func (c *fileConfig) collectStatusURLs(directives []Directive) {
	for _, directive := range directives {
		if directive.Name == "http" && directive.Block != nil {
			for _, child := range directive.Block {
				if child.Name == "server" && child.Block != nil {
					c.collectServerStatusURLs(child.Block)
				}
			}
		}
	}
}

func (c *fileConfig) collectServerStatusURLs(server []Directive) {
	var listens []string
	var serverNames []string
	for _, directive := range server {
		switch directive.Name {
		case "listen":
			if len(directive.Args) > 0 {
				listens = append(listens, directive.Args[0])
			}
		case "server_name":
			for _, name := range directive.Args {
				if name != "" && name != "_" {
					serverNames = append(serverNames, name)
				}
			}
		}
	}
	if len(listens) == 0 {
		listens = []string{"80"}
	}

	c.collectLocationStatusURLs(server, listens, serverNames)
}

func (c *fileConfig) collectLocationStatusURLs(directives []Directive, listens []string, serverNames []string) {
	for _, directive := range directives {
		if directive.Name != "location" || directive.Block == nil {
			continue
		}
		path := locationPath(directive.Args)
		if path == "" {
			continue
		}
		for _, inner := range directive.Block {
			switch inner.Name {
			case "stub_status":
				for _, listen := range listens {
					c.stubStatusURLs = appendUnique(c.stubStatusURLs, listenToHost(listen)+path)
				}
			case "status":
				for _, listen := range listens {
					c.plusInternalURLs = appendUnique(c.plusInternalURLs, listenToHost(listen)+path)
				}
				for _, name := range serverNames {
					c.plusExternalURLs = appendUnique(c.plusExternalURLs, name+path)
				}
			}
		}
		// nested locations
		c.collectLocationStatusURLs(directive.Block, listens, serverNames)
	}
}

// locationPath returns the URI part of a location directive, skipping
// modifiers like "=" or "~"
func locationPath(args []string) string {
	for i := len(args) - 1; i >= 0; i-- {
		if strings.HasPrefix(args[i], "/") {
			return args[i]
		}
	}
	return ""
}

// listenToHost turns a listen address into a probe-able host[:port].
// Wildcard and bare-port forms resolve to the loopback address; the default
// port 80 is omitted.
func listenToHost(listen string) string {
	host := listen
	port := ""

	if strings.HasPrefix(host, "[") {
		// bracketed IPv6, keep only the port
		if idx := strings.LastIndex(host, "]:"); idx >= 0 {
			port = host[idx+2:]
		}
		host = "127.0.0.1"
	} else if idx := strings.LastIndex(host, ":"); idx >= 0 {
		port = host[idx+1:]
		host = host[:idx]
	} else if isDigits(host) {
		port = host
		host = ""
	}

	if host == "" || host == "*" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	if port == "" || port == "80" {
		return host
	}
	return host + ":" + port
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}
