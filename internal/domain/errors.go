package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for directory operations
var (
	// ErrNotFound indicates the requested book does not exist
	ErrNotFound = errors.New("book not found")

	// ErrServiceOffline indicates the request never reached the directory service
	ErrServiceOffline = errors.New("book directory service is unreachable")

	// ErrCircuitOpen indicates requests are being short-circuited after repeated failures
	ErrCircuitOpen = errors.New("book directory service temporarily unavailable")

	// ErrStale indicates a response was superseded by a newer request for the same area
	ErrStale = errors.New("response superseded by a newer request")
)

// ErrorKind classifies failures at the directory boundary
type ErrorKind int

const (
	KindNetwork ErrorKind = iota + 1
	KindHTTP
	KindDecode
	KindNotFound
	KindValidation
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindHTTP:
		return "http-status"
	case KindDecode:
		return "decode"
	case KindNotFound:
		return "not-found"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned by every catalog operation
type Error struct {
	Kind   ErrorKind
	Op     string // e.g. "load", "submit"
	Status int    // HTTP status for KindHTTP and KindNotFound
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindHTTP:
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrNotFound) match not-found errors without a wrapped sentinel
func (e *Error) Is(target error) bool {
	return target == ErrNotFound && e.Kind == KindNotFound
}

// NetworkError wraps a transport failure
func NetworkError(op string, err error) *Error {
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

// HTTPError records a failure status from the service
func HTTPError(op string, status int) *Error {
	return &Error{Kind: KindHTTP, Op: op, Status: status}
}

// DecodeError wraps a body that did not have the expected shape
func DecodeError(op string, err error) *Error {
	return &Error{Kind: KindDecode, Op: op, Err: err}
}

// NotFoundError records an absent id
func NotFoundError(op, id string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Status: 404, Err: fmt.Errorf("%w: %s", ErrNotFound, id)}
}

// ValidationError wraps rejected input
func ValidationError(op string, err error) *Error {
	return &Error{Kind: KindValidation, Op: op, Err: err}
}

// KindOf returns the error's kind, or 0 for untyped errors
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsNotFound reports whether err is a not-found failure
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsNetwork reports whether the request never reached the service
func IsNetwork(err error) bool {
	return KindOf(err) == KindNetwork
}
