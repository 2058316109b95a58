package errors

import (
	"errors"
	"fmt"
)

// Error types for better error classification and handling

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeConfigParse ErrorType = "config_parse"
	ErrorTypeVersion     ErrorType = "version"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeIO          ErrorType = "io"
	ErrorTypePermission  ErrorType = "permission"
	ErrorTypeInternal    ErrorType = "internal"

	// Probe failure classes. All of them fold into "not alive" during status
	// endpoint resolution, but stay individually observable.
	ErrorTypeProbeTimeout  ErrorType = "probe_timeout"
	ErrorTypeProbeNetwork  ErrorType = "probe_network"
	ErrorTypeProbeProtocol ErrorType = "probe_protocol"
)

// DomainError represents a structured error with type and context
type DomainError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is checks if the error is of a specific type
func (e *DomainError) Is(target error) bool {
	if other, ok := target.(*DomainError); ok {
		return e.Type == other.Type
	}
	return false
}

// WithContext adds context information to the error
func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errorType ErrorType, message string, cause error) *DomainError {
	return &DomainError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

func NewValidationError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeValidation, message, cause)
}

func NewConfigParseError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeConfigParse, message, cause)
}

func NewVersionError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeVersion, message, cause)
}

func NewNotFoundError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeNotFound, message, cause)
}

func NewIOError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeIO, message, cause)
}

func NewPermissionError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypePermission, message, cause)
}

func NewInternalError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeInternal, message, cause)
}

func NewProbeTimeoutError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeProbeTimeout, message, cause)
}

func NewProbeNetworkError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeProbeNetwork, message, cause)
}

func NewProbeProtocolError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeProbeProtocol, message, cause)
}

// TypeOf returns the domain error type, or ErrorTypeInternal for plain errors
func TypeOf(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ErrorTypeInternal
}

// Error checking helpers
func IsValidationError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Type == ErrorTypeValidation
}

func IsConfigParseError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Type == ErrorTypeConfigParse
}

func IsVersionError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Type == ErrorTypeVersion
}

func IsNotFoundError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Type == ErrorTypeNotFound
}

func IsIOError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Type == ErrorTypeIO
}

func IsPermissionError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Type == ErrorTypePermission
}

func IsInternalError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Type == ErrorTypeInternal
}

func IsProbeTimeoutError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Type == ErrorTypeProbeTimeout
}

func IsProbeNetworkError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Type == ErrorTypeProbeNetwork
}

func IsProbeProtocolError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Type == ErrorTypeProbeProtocol
}

// IsProbeError reports whether the error is any of the probe failure classes
func IsProbeError(err error) bool {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	switch domainErr.Type {
	case ErrorTypeProbeTimeout, ErrorTypeProbeNetwork, ErrorTypeProbeProtocol:
		return true
	}
	return false
}

// IsLogAccessError reports whether the error is the kind of file-accessibility
// failure that collector assembly is allowed to contain
func IsLogAccessError(err error) bool {
	return IsIOError(err) || IsPermissionError(err) || IsNotFoundError(err)
}
