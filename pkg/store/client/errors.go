package client

import (
	"errors"
	"fmt"
)

// Kind classifies why a call to the backend failed.
type Kind int

const (
	KindTransport Kind = iota
	KindValidation
	KindRejected
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindRejected:
		return "rejected"
	case KindDecode:
		return "decode"
	default:
		return "transport"
	}
}

type Error struct {
	Kind       Kind
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindRejected && e.Message != "":
		return fmt.Sprintf("%s: backend rejected request (%d): %s", e.Op, e.StatusCode, e.Message)
	case e.Kind == KindRejected:
		return fmt.Sprintf("%s: backend rejected request (%d)", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s error: %s", e.Op, e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func kindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func IsValidation(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindValidation
}

func IsRejected(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindRejected
}

func IsTransport(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindTransport
}

// StatusCode returns the HTTP status of a rejected call, or 0.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}
