package nginx

import (
	"context"
	"strings"
	"time"

	"os/exec"

	"github.com/core-tools/hsu-nginx-agent/pkg/errors"
)

// BuildInfo is the structured result of `nginx -V` introspection
type BuildInfo struct {
	Version       string
	Plus          bool
	PlusRelease   string
	SSL           string
	ConfigureArgs []string
}

// Map renders the build facts as an opaque string map for meta reporting
func (b BuildInfo) Map() map[string]string {
	result := map[string]string{
		"version": b.Version,
	}
	if b.Plus {
		result["plus"] = b.PlusRelease
	}
	if b.SSL != "" {
		result["ssl"] = b.SSL
	}
	if len(b.ConfigureArgs) > 0 {
		result["configure"] = strings.Join(b.ConfigureArgs, " ")
	}
	return result
}

const introspectTimeout = 5 * time.Second

// Introspect runs the nginx binary with -V and parses its build report.
// Failures are fatal for instance construction.
func Introspect(binPath string) (BuildInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), introspectTimeout)
	defer cancel()

	// nginx writes the -V report to stderr
	cmd := exec.CommandContext(ctx, binPath, "-V")
	output, err := cmd.CombinedOutput()

	if ctx.Err() == context.DeadlineExceeded {
		return BuildInfo{}, errors.NewVersionError("nginx -V timed out", ctx.Err()).WithContext("bin_path", binPath)
	}
	if err != nil {
		return BuildInfo{}, errors.NewVersionError("failed to run nginx -V", err).WithContext("bin_path", binPath)
	}

	return ParseVersionOutput(string(output))
}

// ParseVersionOutput parses the stderr report of `nginx -V`, e.g.
//
//	nginx version: nginx/1.25.3 (nginx-plus-r31)
//	built with OpenSSL 3.0.2 15 Mar 2022
//	configure arguments: --prefix=/etc/nginx --with-http_stub_status_module
func ParseVersionOutput(output string) (BuildInfo, error) {
	var info BuildInfo

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "nginx version:"):
			rest := strings.TrimSpace(strings.TrimPrefix(line, "nginx version:"))
			fields := strings.Fields(rest)
			if len(fields) > 0 {
				info.Version = strings.TrimPrefix(fields[0], "nginx/")
			}
			if idx := strings.Index(rest, "("); idx >= 0 {
				release := strings.TrimSuffix(rest[idx+1:], ")")
				if strings.HasPrefix(release, "nginx-plus") {
					info.Plus = true
					info.PlusRelease = release
				}
			}
		case strings.HasPrefix(line, "built with "):
			info.SSL = strings.TrimPrefix(line, "built with ")
		case strings.HasPrefix(line, "configure arguments:"):
			args := strings.TrimSpace(strings.TrimPrefix(line, "configure arguments:"))
			if args != "" {
				info.ConfigureArgs = strings.Fields(args)
			}
		}
	}

	if info.Version == "" {
		return BuildInfo{}, errors.NewVersionError("no version found in nginx -V output", nil)
	}
	return info, nil
}
