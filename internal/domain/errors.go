package domain

import (
	"errors"
	"fmt"
)

// ErrorCode is the machine readable category of a session error.
type ErrorCode int

const (
	CodeUnknown ErrorCode = iota
	CodeInvalidArgument
	CodeSignalingFailed
	CodeConnectorFailed
	CodeNotSupported
	CodeNotAllowed
	CodeInternal
	CodeTimeout
	CodeSessionFailed
	CodeWebRTCFailed
	CodeWebRTCLostConnection
	CodeSignalingTimeout
	CodeUserMedia
	CodeWebRTCControlFailed
	CodeWebRTCDisconnected
)

var codeNames = map[ErrorCode]string{
	CodeUnknown:              "UNKNOWN",
	CodeInvalidArgument:      "INVALID_ARGUMENT",
	CodeSignalingFailed:      "SIGNALING_FAILED",
	CodeConnectorFailed:      "CONNECTOR_FAILED",
	CodeNotSupported:         "NOT_SUPPORTED",
	CodeNotAllowed:           "NOT_ALLOWED",
	CodeInternal:             "INTERNAL",
	CodeTimeout:              "TIMEOUT",
	CodeSessionFailed:        "SESSION_FAILED",
	CodeWebRTCFailed:         "WEBRTC_FAILED",
	CodeWebRTCLostConnection: "WEBRTC_LOST_CONNECTION",
	CodeSignalingTimeout:     "SIGNALING_TIMEOUT",
	CodeUserMedia:            "USER_MEDIA",
	CodeWebRTCControlFailed:  "WEBRTC_CONTROL_FAILED",
	CodeWebRTCDisconnected:   "WEBRTC_DISCONNECTED",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// Error is the error type surfaced to callers of the engine.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(code ErrorCode, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func WrapError(code ErrorCode, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the code carried by err, or CodeUnknown.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

var (
	ErrAlreadyStarted = NewError(CodeInvalidArgument, "session already started")
	ErrClosed         = NewError(CodeSessionFailed, "session is closed")
	ErrNotSupported   = NewError(CodeNotSupported, "not supported by the remote endpoint")
)
