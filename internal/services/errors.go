package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures of privileged and content operations.
type ErrorKind string

const (
	KindPermissionDenied ErrorKind = "permission-denied"
	KindInvalidArgument  ErrorKind = "invalid-argument"
	KindAlreadyExists    ErrorKind = "already-exists"
	KindUnauthenticated  ErrorKind = "unauthenticated"
	KindNotFound         ErrorKind = "not-found"
	KindInternal         ErrorKind = "internal"
)

type OpError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *OpError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func newOpError(kind ErrorKind, msg string, err error) *OpError {
	return &OpError{Kind: kind, Message: msg, Err: err}
}

func PermissionDenied(msg string) error {
	return newOpError(KindPermissionDenied, msg, nil)
}

func InvalidArgument(msg string) error {
	return newOpError(KindInvalidArgument, msg, nil)
}

func AlreadyExists(msg string) error {
	return newOpError(KindAlreadyExists, msg, nil)
}

func Unauthenticated(msg string) error {
	return newOpError(KindUnauthenticated, msg, nil)
}

func NotFound(msg string) error {
	return newOpError(KindNotFound, msg, nil)
}

func Internal(msg string, err error) error {
	return newOpError(KindInternal, msg, err)
}

// KindOf returns the kind of the first OpError in err's chain, or
// KindInternal for anything unclassified.
func KindOf(err error) ErrorKind {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Kind
	}
	return KindInternal
}

// MessageOf returns the user-facing message of err.
func MessageOf(err error) string {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Message
	}
	return "an internal error occurred"
}
