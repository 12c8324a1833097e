package services

import (
	"context"
	"errors"
	"fmt"
)

// FailureKind classifies completion service failures.
type FailureKind string

const (
	RateLimited      FailureKind = "RATE_LIMITED"
	ConnectionFailed FailureKind = "CONNECTION_FAILED"
	InvalidRequest   FailureKind = "INVALID_REQUEST"
	Unknown          FailureKind = "UNKNOWN"
)

// Transient reports whether a failure of this kind is worth retrying.
func (k FailureKind) Transient() bool {
	return k != InvalidRequest
}

// CompletionError is a classified completion service failure.
type CompletionError struct {
	Kind       FailureKind
	StatusCode int
	Err        error
}

func (e *CompletionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("completion: %s", e.Kind)
	}
	return fmt.Sprintf("completion: %s: %v", e.Kind, e.Err)
}

func (e *CompletionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf returns the failure kind of err. Unclassified errors are Unknown.
func KindOf(err error) FailureKind {
	var ce *CompletionError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ConnectionFailed
	}
	return Unknown
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return KindOf(err).Transient()
}
