package errors

import (
	"errors"
	"fmt"
)

// Common error types for the POS console
var (
	// Session errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrSessionSuperseded  = errors.New("session superseded")
	ErrNotLoggedIn        = errors.New("not logged in")

	// Token errors
	ErrMalformedToken = errors.New("malformed token")
	ErrTokenExpired   = errors.New("token expired")

	// Step-up errors
	ErrInvalidPIN = errors.New("invalid PIN")

	// Sale errors
	ErrSaleNotFound       = errors.New("sale not found")
	ErrSaleAlreadyVoided  = errors.New("sale already voided")
	ErrCompensationFailed = errors.New("compensating return failed")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
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
