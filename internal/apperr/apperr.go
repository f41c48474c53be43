// Package apperr holds the error taxonomy shared by the cart, wishlist,
// checkout and order packages.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// -- Preconditions (raised before any network call) --
	ErrNotLoggedIn       = errors.New("not logged in")
	ErrAlreadyExists     = errors.New("already exists")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidInput      = errors.New("invalid input")
	ErrForbidden         = errors.New("forbidden")

	// -- Resource State --
	ErrNotFound = errors.New("not found")

	// -- Backing store / network --
	ErrUpstream = errors.New("upstream failure")
)

// Upstream wraps a backing-store error so that both ErrUpstream and the
// original cause match with errors.Is.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUpstream) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrUpstream, op, err)
}

// IsPrecondition reports whether err is one of the caller-facing precondition failures.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrNotLoggedIn) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrEmptyCart) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrInvalidInput)
}
