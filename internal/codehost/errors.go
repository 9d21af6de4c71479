package codehost

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrPermission          = errors.New("permission denied")
	ErrConflict            = errors.New("conflict")
	ErrUnprocessable       = errors.New("unprocessable request")
	ErrNotAFile            = errors.New("path is not a file")
	ErrUnsupportedEncoding = errors.New("unsupported content encoding")
)

// HostError is a failed API call. It matches the sentinel that fits its
// status code, or an explicit Kind set by the adapter.
type HostError struct {
	Op         string
	StatusCode int
	Kind       error
	Err        error
}

// NewHostError builds a HostError, deriving Kind from the status code
// when kind is nil.
func NewHostError(op string, status int, kind, err error) *HostError {
	if kind == nil {
		kind = kindForStatus(status)
	}
	return &HostError{Op: op, StatusCode: status, Kind: kind, Err: err}
}

func (e *HostError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *HostError) Unwrap() []error {
	if e.Kind == nil {
		return []error{e.Err}
	}
	return []error{e.Kind, e.Err}
}

func kindForStatus(status int) error {
	switch status {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrPermission
	case http.StatusConflict:
		return ErrConflict
	case http.StatusUnprocessableEntity:
		return ErrUnprocessable
	}
	return nil
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var he *HostError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}
