// Package errors wraps the standard library's errors with helpers for adding
// context to errors as they're passed up the stack, and for marking errors
// whose messages are meant to be shown to the user as-is.
package errors

import (
	goerrors "errors"
	"fmt"
)

// Is and As are re-exported so that callers only need to import this package.
var (
	Is = goerrors.Is
	As = goerrors.As
)

// New returns an error with the given message.
func New(msg string) error {
	return goerrors.New(msg)
}

// Newf returns an error with the formatted message.
func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

type contextError struct {
	context string
	err     error
}

func (err contextError) Error() string {
	return fmt.Sprintf("%s: %s", err.context, err.err)
}

func (err contextError) Unwrap() error {
	return err.err
}

// WithContext annotates `err` with a short description of what was being
// done when it occurred. Returns nil if `err` is nil.
func WithContext(err error, context string) error {
	if err == nil {
		return nil
	}
	return contextError{context: context, err: err}
}

// RootCause strips the context added by WithContext and returns the
// original error.
func RootCause(err error) error {
	for {
		ctxErr, ok := err.(contextError)
		if !ok {
			return err
		}
		err = ctxErr.err
	}
}

// FriendlyError is an error whose message is fit to be shown directly to
// the user, without the usual stack of contexts.
type FriendlyError struct {
	msg string
}

// NewFriendlyError creates a FriendlyError with the formatted message.
func NewFriendlyError(format string, args ...interface{}) error {
	return FriendlyError{fmt.Sprintf(format, args...)}
}

func (err FriendlyError) Error() string {
	return err.msg
}

// FriendlyMessage returns the user-facing message.
func (err FriendlyError) FriendlyMessage() string {
	return err.msg
}

// Friendly is implemented by errors that carry a user-facing message.
type Friendly interface {
	FriendlyMessage() string
}

// GetFriendlyMessage returns the user-facing message carried anywhere in
// err's chain.
func GetFriendlyMessage(err error) (string, bool) {
	for err != nil {
		if friendly, ok := err.(Friendly); ok {
			return friendly.FriendlyMessage(), true
		}
		err = goerrors.Unwrap(err)
	}
	return "", false
}
