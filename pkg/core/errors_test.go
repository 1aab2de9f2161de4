package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	err := &Error{
		Type:    ErrInvalidArgument,
		Message: "missing origin",
	}

	expected := "invalid_argument_error: missing origin"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestError_WithCode(t *testing.T) {
	err := &Error{
		Type:    ErrTransport,
		Message: "connection lost",
		Code:    "abnormal_closure",
	}

	expected := "transport_error: connection lost (code: abnormal_closure)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("broken pipe")
	err := NewTransportError("connection lost", cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not reach the cause")
	}
}

func TestNewTransportError(t *testing.T) {
	err := NewTransportError("connection refused", nil)
	if err.Type != ErrTransport {
		t.Errorf("Type = %v, want %v", err.Type, ErrTransport)
	}
	if !err.IsFatal() {
		t.Error("IsFatal() = false for transport error, want true")
	}
}

func TestNonTransportErrorsNotFatal(t *testing.T) {
	errs := []*Error{
		NewCaptureError("device busy", nil),
		NewToolError("store down", nil),
		NewPlaybackError("undecodable audio payload"),
		NewPermissionError("microphone unavailable"),
		NewInvalidArgumentError("missing origin", "origin"),
		NewProtocolError("malformed envelope", nil),
	}
	for _, err := range errs {
		if err.IsFatal() {
			t.Errorf("IsFatal() = true for %v, want false", err.Type)
		}
	}
}

func TestTypeOf(t *testing.T) {
	if got := TypeOf(NewPlaybackError("bad chunk")); got != ErrPlayback {
		t.Errorf("TypeOf = %v, want %v", got, ErrPlayback)
	}
	wrapped := fmt.Errorf("context: %w", NewCaptureError("device busy", nil))
	if got := TypeOf(wrapped); got != ErrCapture {
		t.Errorf("TypeOf(wrapped) = %v, want %v", got, ErrCapture)
	}
	if got := TypeOf(errors.New("plain")); got != "" {
		t.Errorf("TypeOf(plain) = %v, want empty", got)
	}
}
