package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainErrorFormatting(t *testing.T) {
	cause := fmt.Errorf("underlying failure")

	err := NewValidationError("bad input", cause)
	assert.Equal(t, "validation: bad input: underlying failure", err.Error())
	assert.Equal(t, cause, err.Unwrap())

	err = NewNotFoundError("missing", nil)
	assert.Equal(t, "not_found: missing", err.Error())
	assert.Nil(t, err.Unwrap())
}

func TestWithContext(t *testing.T) {
	err := NewIOError("cannot read", nil).
		WithContext("filename", "/var/log/nginx/access.log").
		WithContext("pid", 123)

	assert.Equal(t, "/var/log/nginx/access.log", err.Context["filename"])
	assert.Equal(t, 123, err.Context["pid"])
}

func TestTypeCheckers(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		checker func(error) bool
	}{
		{"validation", NewValidationError("v", nil), IsValidationError},
		{"config_parse", NewConfigParseError("c", nil), IsConfigParseError},
		{"version", NewVersionError("v", nil), IsVersionError},
		{"not_found", NewNotFoundError("n", nil), IsNotFoundError},
		{"io", NewIOError("i", nil), IsIOError},
		{"permission", NewPermissionError("p", nil), IsPermissionError},
		{"internal", NewInternalError("i", nil), IsInternalError},
		{"probe_timeout", NewProbeTimeoutError("t", nil), IsProbeTimeoutError},
		{"probe_network", NewProbeNetworkError("n", nil), IsProbeNetworkError},
		{"probe_protocol", NewProbeProtocolError("p", nil), IsProbeProtocolError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.checker(tt.err))
			assert.False(t, tt.checker(fmt.Errorf("plain error")))
		})
	}
}

func TestTypeCheckersUnwrap(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", NewPermissionError("denied", nil))
	assert.True(t, IsPermissionError(wrapped))
	assert.False(t, IsIOError(wrapped))
}

func TestIsProbeError(t *testing.T) {
	assert.True(t, IsProbeError(NewProbeTimeoutError("t", nil)))
	assert.True(t, IsProbeError(NewProbeNetworkError("n", nil)))
	assert.True(t, IsProbeError(NewProbeProtocolError("p", nil)))
	assert.False(t, IsProbeError(NewIOError("i", nil)))
	assert.False(t, IsProbeError(fmt.Errorf("plain")))
}

func TestIsLogAccessError(t *testing.T) {
	assert.True(t, IsLogAccessError(NewIOError("gone", nil)))
	assert.True(t, IsLogAccessError(NewPermissionError("denied", nil)))
	assert.True(t, IsLogAccessError(NewNotFoundError("missing", nil)))
	assert.False(t, IsLogAccessError(NewValidationError("bad", nil)))
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorTypeProbeTimeout, TypeOf(NewProbeTimeoutError("t", nil)))
	assert.Equal(t, ErrorTypeInternal, TypeOf(fmt.Errorf("plain")))
}
