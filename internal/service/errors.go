package service

import (
	"errors"
	"fmt"
)

// Validation errors. Both are terminal and never retried.
var (
	ErrMissingParameter = errors.New("missing url parameter")
	ErrInvalidURL       = errors.New("invalid target url")
)

// ErrorKind names a failure class in error responses.
type ErrorKind string

const (
	KindNetwork      ErrorKind = "NetworkError"
	KindUnclassified ErrorKind = "UnclassifiedError"
	KindClientClosed ErrorKind = "ClientClosedRequest"
)

// ForwardError is a failure that escapes the attempt loop. It is reported to
// the caller as a 500 carrying Kind.
type ForwardError struct {
	Kind ErrorKind
	Err  error
}

func (e *ForwardError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ForwardError) Unwrap() error {
	return e.Err
}
