// Package protocol holds the error vocabulary and the request/response
// envelope exchanged with the agent across the process boundary.
package protocol

import (
	"errors"
	"fmt"
)

// Kind discriminates errors so a front end can show what went wrong
type Kind string

const (
	KindPatternSyntax        Kind = "PatternSyntax"
	KindPatternNotMatched    Kind = "PatternNotMatched"
	KindSectionNotFound      Kind = "SectionNotFound"
	KindNoGameBase           Kind = "NoGameBase"
	KindSingletonMapCreation Kind = "SingletonMapCreation"
	KindNotFound             Kind = "NotFound"
	KindInstanceMissing      Kind = "InstanceMissing"
	KindInvalidInput         Kind = "InvalidInput"
	KindUnknownProductName   Kind = "UnknownProductName"
	KindGameDetection        Kind = "GameDetection"
	KindMemoryAccess         Kind = "MemoryAccess"
	KindAllocationFailed     Kind = "AllocationFailed"
	KindInternal             Kind = "Internal"
)

// Error is a kinded error that survives serialisation
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`

	cause error
}

// Sentinels for errors.Is, matched by kind only
var (
	ErrPatternSyntax        = &Error{Kind: KindPatternSyntax}
	ErrPatternNotMatched    = &Error{Kind: KindPatternNotMatched}
	ErrSectionNotFound      = &Error{Kind: KindSectionNotFound}
	ErrNoGameBase           = &Error{Kind: KindNoGameBase}
	ErrSingletonMapCreation = &Error{Kind: KindSingletonMapCreation}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrInstanceMissing      = &Error{Kind: KindInstanceMissing}
	ErrInvalidInput         = &Error{Kind: KindInvalidInput}
	ErrUnknownProductName   = &Error{Kind: KindUnknownProductName}
	ErrGameDetection        = &Error{Kind: KindGameDetection}
	ErrMemoryAccess         = &Error{Kind: KindMemoryAccess}
	ErrAllocationFailed     = &Error{Kind: KindAllocationFailed}
)

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error of the same kind
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Errorf builds a kinded error with a formatted message
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to err. The message keeps err's text so it survives
// serialisation even though the cause itself does not.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &Error{Kind: kind, Message: msg, cause: err}
}

// KindOf returns the outermost kind found in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// FromError converts any error into its serialisable form, nil stays nil
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if error(e) == err {
			return e
		}
		return &Error{Kind: e.Kind, Message: err.Error(), cause: err}
	}
	return &Error{Kind: KindInternal, Message: err.Error(), cause: err}
}
