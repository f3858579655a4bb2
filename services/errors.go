package services

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrProductNotFound = fmt.Errorf("product %w", ErrNotFound)
	ErrOrderNotFound   = fmt.Errorf("order %w", ErrNotFound)
	ErrUserNotFound    = fmt.Errorf("user %w", ErrNotFound)

	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrDuplicateOrder    = errors.New("order id already exists")
	ErrInvalidTransition = errors.New("invalid order status transition")

	ErrNotAdmin = errors.New("admin only")
	ErrBanned   = errors.New("user is banned")
	ErrPaused   = errors.New("service is paused")

	ErrLoginDisabled  = errors.New("admin login is not configured")
	ErrBadPassword    = errors.New("wrong password")
	ErrLoginThrottled = errors.New("too many login attempts")
)

// PersistenceError wraps a failure of the backing store (driver, network, constraint).
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// IsPersistence reports whether err came from the store rather than from a business rule.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
