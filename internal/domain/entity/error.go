package entity

import (
	"errors"
	"fmt"
)

// ErrorKind labels every failure the pipeline can surface. Callers switch on
// the kind rather than on concrete error types.
type ErrorKind string

const (
	KindUnsupportedFileType        ErrorKind = "UnsupportedFileType"
	KindNetworkFailure             ErrorKind = "NetworkFailure"
	KindTransferTimeout            ErrorKind = "TransferTimeout"
	KindNonSuccessStatus           ErrorKind = "NonSuccessStatus"
	KindCaptureTimeout             ErrorKind = "CaptureTimeout"
	KindCaptureBackendUnavailable  ErrorKind = "CaptureBackendUnavailable"
	KindAllFramesBlack             ErrorKind = "AllFramesBlack"
	KindThumbnailGenerationFailed  ErrorKind = "ThumbnailGenerationFailed"
	KindEngineInitializationFailed ErrorKind = "EngineInitializationFailed"
)

// Error is a tagged error value carrying a stable kind plus a human-readable
// message. StatusCode and Body are populated only for KindNonSuccessStatus.
type Error struct {
	Kind       ErrorKind
	Message    string
	Err        error
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

func NewStatusError(statusCode int, body string) *Error {
	return &Error{
		Kind:       KindNonSuccessStatus,
		Message:    fmt.Sprintf("endpoint returned status %d", statusCode),
		StatusCode: statusCode,
		Body:       body,
	}
}

// KindOf returns the kind of err, or the empty string when err carries none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
