package core

import (
	"errors"
	"fmt"
)

// Error is the typed error carried across component boundaries.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Param   string    `json:"param,omitempty"`
	Code    string    `json:"code,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes errors by the fault class they belong to.
type ErrorType string

const (
	// ErrTransport covers connection-level faults. These are fatal to the
	// current session and trigger full teardown.
	ErrTransport ErrorType = "transport_error"
	// ErrCapture covers microphone device faults. Recoverable: the session
	// may continue without audio input.
	ErrCapture ErrorType = "capture_error"
	// ErrTool covers tool execution faults. Always converted into an
	// error-shaped tool result, never propagated past the dispatcher.
	ErrTool ErrorType = "tool_error"
	// ErrPlayback covers undecodable inbound audio. The chunk is dropped
	// and the scheduler keeps running.
	ErrPlayback ErrorType = "playback_error"
	// ErrPermission covers denied device access (microphone, geolocation).
	ErrPermission ErrorType = "permission_error"
	// ErrInvalidArgument covers malformed tool arguments or configuration.
	ErrInvalidArgument ErrorType = "invalid_argument_error"
	// ErrProtocol covers malformed inbound envelopes.
	ErrProtocol ErrorType = "protocol_error"
)

// NewTransportError creates a fatal connection-level error.
func NewTransportError(message string, cause error) *Error {
	return &Error{Type: ErrTransport, Message: message, Cause: cause}
}

// NewCaptureError creates a recoverable capture device error.
func NewCaptureError(message string, cause error) *Error {
	return &Error{Type: ErrCapture, Message: message, Cause: cause}
}

// NewToolError creates a tool execution error.
func NewToolError(message string, cause error) *Error {
	return &Error{Type: ErrTool, Message: message, Cause: cause}
}

// NewPlaybackError creates a dropped-chunk playback error.
func NewPlaybackError(message string) *Error {
	return &Error{Type: ErrPlayback, Message: message}
}

// NewPermissionError creates a denied-access error.
func NewPermissionError(message string) *Error {
	return &Error{Type: ErrPermission, Message: message}
}

// NewInvalidArgumentError creates an invalid argument error.
func NewInvalidArgumentError(message, param string) *Error {
	return &Error{Type: ErrInvalidArgument, Message: message, Param: param}
}

// NewProtocolError creates a malformed-envelope error.
func NewProtocolError(message string, cause error) *Error {
	return &Error{Type: ErrProtocol, Message: message, Cause: cause}
}

// IsFatal reports whether the error tears down the session. Only transport
// faults are fatal; every other class is contained at its component boundary.
func (e *Error) IsFatal() bool {
	return e.Type == ErrTransport
}

// TypeOf returns the ErrorType of err, or the zero value when err does not
// carry one.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ""
}
