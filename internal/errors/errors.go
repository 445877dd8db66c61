package errors

import (
	"errors"
	"fmt"
)

// Common error types for the session engine
var (
	// Admission and revocation errors
	ErrDeviceNotFound                = errors.New("device session not found")
	ErrSessionNotFound               = errors.New("session not found")
	ErrSessionReconciliationRequired = errors.New("session reconciliation required")
	ErrSessionWriteFailed            = errors.New("session write failed")
	ErrDeviceLimitUnsatisfiable      = errors.New("device limit unsatisfiable")

	// Token errors
	ErrInvalidToken        = errors.New("invalid token")
	ErrExpiredToken        = errors.New("token expired")
	ErrRevokedRefreshToken = errors.New("refresh token revoked")

	// Identity errors
	ErrIdentityNotFound = errors.New("identity not found")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Retryable reports whether the caller may safely resend the failed
// operation. Only transient store-write failures qualify.
func Retryable(err error) bool {
	return errors.Is(err, ErrSessionWriteFailed)
}
