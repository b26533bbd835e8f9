package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotAuthenticated is returned when a store action runs without an owner identity
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNotFound is returned when a bucket, entity or document is not found
	ErrNotFound = errors.New("document not found")
	// ErrExists is returned when trying to create a document that already exists
	ErrExists = errors.New("document already exists")
	// ErrMissingCommunity is returned when a community id is required but empty
	ErrMissingCommunity = errors.New("community id is required")
	// ErrPreconditionFailed is returned when a conditional write finds unmet preconditions
	ErrPreconditionFailed = errors.New("precondition failed")
	// ErrInvalidEntity is returned when a draft or merged entity fails validation
	ErrInvalidEntity = errors.New("invalid entity")
	// ErrInvalidQuery is returned when a query is malformed
	ErrInvalidQuery = errors.New("invalid query")
	// ErrCanceled is returned when the operation is canceled by the client
	ErrCanceled = errors.New("operation canceled")

	// ErrRemoteRead matches every RemoteError raised by a read
	ErrRemoteRead = errors.New("remote read failed")
	// ErrRemoteWrite matches every RemoteError raised by a write
	ErrRemoteWrite = errors.New("remote write failed")
)

// RemoteKind tells reads and writes apart.
type RemoteKind string

const (
	RemoteRead  RemoteKind = "read"
	RemoteWrite RemoteKind = "write"
)

// RemoteError reports a failure of the remote document store.
type RemoteError struct {
	Kind RemoteKind
	Op   string
	Path string
	Err  error
}

func (e *RemoteError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("remote %s %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("remote %s %s %s: %v", e.Kind, e.Op, e.Path, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Is matches ErrRemoteRead or ErrRemoteWrite according to Kind.
func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrRemoteRead:
		return e.Kind == RemoteRead
	case ErrRemoteWrite:
		return e.Kind == RemoteWrite
	}
	return false
}

// domainErrors describe the caller's request rather than a backend failure.
var domainErrors = []error{ErrNotFound, ErrNotAuthenticated, ErrMissingCommunity, ErrInvalidEntity, ErrInvalidQuery}

// NewRemoteError wraps a backend failure. Nil stays nil, cancellation becomes
// ErrCanceled, and domain errors such as ErrNotFound pass through unchanged.
func NewRemoteError(kind RemoteKind, op, path string, err error) error {
	if err == nil {
		return nil
	}
	if IsCanceled(err) {
		return ErrCanceled
	}
	for _, domain := range domainErrors {
		if errors.Is(err, domain) {
			return err
		}
	}
	var remote *RemoteError
	if errors.As(err, &remote) {
		return err
	}
	return &RemoteError{Kind: kind, Op: op, Path: path, Err: err}
}

// WrapError wraps storage errors to model errors.
// It converts context.Canceled and context.DeadlineExceeded to ErrCanceled.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	if IsCanceled(err) {
		return ErrCanceled
	}
	return err
}

// IsCanceled returns true if the error is due to context cancellation or deadline exceeded.
// It checks both direct context errors and wrapped errors (e.g., from the MongoDB driver).
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, ErrCanceled) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "context canceled") || strings.Contains(errStr, "context deadline exceeded")
}
