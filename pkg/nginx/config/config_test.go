package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/core-tools/hsu-nginx-agent/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir string, name string, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func parseConfig(t *testing.T, dir string, content string) Config {
	t.Helper()
	path := writeFile(t, dir, "nginx.conf", content)
	config := NewFileConfig(path, dir, logging.NewNullLogger())
	require.NoError(t, config.FullParse())
	return config
}

func TestFullParseStubStatus(t *testing.T) {
	config := parseConfig(t, t.TempDir(), `
http {
    server {
        listen 80;
        location /basic_status {
            stub_status;
        }
    }
    server {
        listen 127.0.0.1:8080;
        location = /stub {
            stub_status on;
        }
    }
}
`)

	assert.Equal(t, []string{"127.0.0.1/basic_status", "127.0.0.1:8080/stub"}, config.StubStatusURLs())
	assert.Empty(t, config.PlusStatusInternalURLs())
	assert.Empty(t, config.PlusStatusExternalURLs())
}

func TestFullParsePlusStatus(t *testing.T) {
	config := parseConfig(t, t.TempDir(), `
http {
    server {
        listen 8080;
        server_name status.example.com;
        location /api {
            status;
        }
    }
}
`)

	assert.Equal(t, []string{"127.0.0.1:8080/api"}, config.PlusStatusInternalURLs())
	assert.Equal(t, []string{"status.example.com/api"}, config.PlusStatusExternalURLs())
}

func TestFullParseLogs(t *testing.T) {
	dir := t.TempDir()
	config := parseConfig(t, dir, `
http {
    log_format main '$remote_addr - $remote_user [$time_local] "$request" '
                    '$status $body_bytes_sent';

    access_log /var/log/nginx/access.log main;
    access_log logs/relative.log;
    access_log off;
    access_log syslog:server=127.0.0.1;

    server {
        listen 80;
        error_log /var/log/nginx/error.log warn;
        error_log stderr;
    }
}
`)

	accessLogs := config.AccessLogs()
	assert.Equal(t, "main", accessLogs["/var/log/nginx/access.log"])
	assert.Equal(t, "combined", accessLogs[filepath.Join(dir, "logs/relative.log")])
	assert.Len(t, accessLogs, 2)

	errorLogs := config.ErrorLogs()
	assert.Equal(t, map[string]string{"/var/log/nginx/error.log": "warn"}, errorLogs)

	formats := config.LogFormats()
	assert.Equal(t, `$remote_addr - $remote_user [$time_local] "$request" $status $body_bytes_sent`, formats["main"])
}

func TestFullParseIncludes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "conf.d/status.conf", `
server {
    listen 9000;
    location /nginx_status {
        stub_status;
    }
}
`)
	config := parseConfig(t, dir, `
http {
    include conf.d/*.conf;
}
`)

	assert.Equal(t, []string{"127.0.0.1:9000/nginx_status"}, config.StubStatusURLs())
}

func TestFullParseChecksumChanges(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "nginx.conf", "http {\n}\n")

	config := NewFileConfig(path, dir, logging.NewNullLogger())
	require.NoError(t, config.FullParse())
	first := config.Checksum()
	require.NotEmpty(t, first)

	require.NoError(t, config.FullParse())
	assert.Equal(t, first, config.Checksum())

	writeFile(t, dir, "nginx.conf", "http {\n    server {\n        listen 80;\n    }\n}\n")
	require.NoError(t, config.FullParse())
	assert.NotEqual(t, first, config.Checksum())
}

func TestFullParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unbalanced block", "http {\n server {\n"},
		{"stray close", "}\n"},
		{"unterminated quote", "log_format main 'oops;\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := writeFile(t, dir, "nginx.conf", tt.content)
			config := NewFileConfig(path, dir, logging.NewNullLogger())
			assert.Error(t, config.FullParse())
		})
	}
}

func TestFullParseMissingFile(t *testing.T) {
	dir := t.TempDir()
	config := NewFileConfig(filepath.Join(dir, "missing.conf"), dir, logging.NewNullLogger())
	assert.Error(t, config.FullParse())
}

func TestListenToHost(t *testing.T) {
	tests := []struct {
		listen   string
		expected string
	}{
		{"80", "127.0.0.1"},
		{"8080", "127.0.0.1:8080"},
		{"*:80", "127.0.0.1"},
		{"*:8080", "127.0.0.1:8080"},
		{"0.0.0.0:8080", "127.0.0.1:8080"},
		{"127.0.0.1:8080", "127.0.0.1:8080"},
		{"10.0.0.5:80", "10.0.0.5"},
		{"example.com", "example.com"},
		{"example.com:8080", "example.com:8080"},
		{"[::]:8080", "127.0.0.1:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.listen, func(t *testing.T) {
			assert.Equal(t, tt.expected, listenToHost(tt.listen))
		})
	}
}

func TestTokenizeComments(t *testing.T) {
	tokens, err := tokenize("listen 80; # a comment\nroot /var/www; # another\n")
	require.NoError(t, err)

	directives, _, err := parseTokens(tokens, 0, 0)
	require.NoError(t, err)
	require.Len(t, directives, 2)
	assert.Equal(t, "listen", directives[0].Name)
	assert.Equal(t, []string{"80"}, directives[0].Args)
	assert.Equal(t, "root", directives[1].Name)
}
