package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind mirrors the server's error codes.
type Kind string

const (
	KindPermissionDenied Kind = "permission-denied"
	KindInvalidArgument  Kind = "invalid-argument"
	KindAlreadyExists    Kind = "already-exists"
	KindUnauthenticated  Kind = "unauthenticated"
	KindNotFound         Kind = "not-found"
	KindInternal         Kind = "internal"
)

var statusKind = map[int]Kind{
	http.StatusForbidden:    KindPermissionDenied,
	http.StatusBadRequest:   KindInvalidArgument,
	http.StatusConflict:     KindAlreadyExists,
	http.StatusUnauthorized: KindUnauthenticated,
	http.StatusNotFound:     KindNotFound,
}

// Error is a failed API call.
type Error struct {
	Kind    Kind
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
}

// kindFor prefers the body's code and falls back to the HTTP status.
func kindFor(code string, status int) Kind {
	switch k := Kind(code); k {
	case KindPermissionDenied, KindInvalidArgument, KindAlreadyExists,
		KindUnauthenticated, KindNotFound, KindInternal:
		return k
	}
	if k, ok := statusKind[status]; ok {
		return k
	}
	return KindInternal
}

// KindOf classifies err. Errors that did not come from the API are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindInternal
}

// WriteError wraps a failed write so a single listener can surface it.
type WriteError struct {
	Path      string
	Operation string
	Kind      Kind
	Err       error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Operation, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// ErrorSink receives every failed write in addition to the caller.
type ErrorSink interface {
	Report(err *WriteError)
}

type ErrorSinkFunc func(err *WriteError)

func (f ErrorSinkFunc) Report(err *WriteError) { f(err) }
