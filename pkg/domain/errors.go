package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ErrConfig             ErrorKind = "ConfigError"
	ErrToolNotFound       ErrorKind = "ToolNotFound"
	ErrArchiveBuildFailed ErrorKind = "ArchiveBuildFailed"
	ErrNothingToArchive   ErrorKind = "NothingToArchive"
	ErrNoSecretProvided   ErrorKind = "NoSecretProvided"
	ErrEncryptionFailed   ErrorKind = "EncryptionFailed"
	ErrSplitFailed        ErrorKind = "SplitFailed"
	ErrUploadFailed       ErrorKind = "UploadFailed"
	ErrPluginNotFound     ErrorKind = "PluginNotFound"
	ErrInterrupted        ErrorKind = "Interrupted"
)

// Error is the single error type surfaced by stages. Stderr carries the
// captured output of the failing external tool, if any.
type Error struct {
	Kind    ErrorKind
	Stage   Stage
	Message string
	Stderr  string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += fmt.Sprintf(" (stderr: %s)", e.Stderr)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func WrapError(kind ErrorKind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func ConfigErrorf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrConfig, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// StderrOf returns the captured tool output attached to err, if any.
func StderrOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Stderr
	}
	return ""
}
