package services

import (
	"errors"
	"fmt"
)

// AuthError means the marketplace rejected the credentials themselves. It is
// never retried; the operator has to fix the shop's login, not wait.
type AuthError struct {
	ShopID int64
	Err    error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("marketplace rejected credentials of shop %d: %v", e.ShopID, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// TransientError covers network failures, 5xx and rate-limit responses.
// Callers retry it with backoff up to the configured attempt budget.
type TransientError struct {
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("transient marketplace error (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("transient marketplace error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

func IsAuthError(err error) bool {
	var a *AuthError
	return errors.As(err, &a)
}
