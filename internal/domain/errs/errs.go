// Package errs defines the failure taxonomy returned by every state-changing marketplace operation.
package errs

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
)

type Kind string

const (
	Conflict      Kind = "conflict"
	Forbidden     Kind = "forbidden"
	Validation    Kind = "validation"
	NotFound      Kind = "not_found"
	InvalidStatus Kind = "invalid_status"
	Unknown       Kind = "unknown"
)

// Error is a classified failure. BlockingID names the record that caused a conflict, when known.
type Error struct {
	Kind       Kind
	Message    string
	BlockingID snowflake.ID
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Retryable reports whether the caller may retry the same request unchanged.
func (e *Error) Retryable() bool {
	return e.Kind == Unknown
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func NewConflict(message string, blockingID snowflake.ID) *Error {
	return &Error{Kind: Conflict, Message: message, BlockingID: blockingID}
}

// KindOf classifies err. Errors that were never classified are Unknown.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// BlockingID returns the id of the record blocking the operation, or zero.
func BlockingID(err error) snowflake.ID {
	var e *Error
	if errors.As(err, &e) {
		return e.BlockingID
	}
	return 0
}

// Classify keeps already classified errors and wraps everything else as Unknown.
func Classify(message string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return Wrap(Unknown, message, err)
}

// UserMessage renders an error for end users: specific for domain failures, generic and retryable otherwise.
func UserMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Kind == Unknown {
		return "something went wrong, please try again"
	}
	return e.Message
}
