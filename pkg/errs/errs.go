// Package errs holds the error taxonomy shared by the repositories, the cart
// and the transports.
package errs

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindFetch           Kind = "fetch"
	KindWrite           Kind = "write"
	KindUpload          Kind = "upload"
	KindMissingIdentity Kind = "missing_identity"
	KindStock           Kind = "stock"
	KindInvalid         Kind = "invalid"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
)

var (
	ErrMissingIdentity    = errors.New("user information is missing")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrGuestNameRequired  = errors.New("guest name is required")
	ErrInvalidPhone       = errors.New("invalid phone number")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrNotFound           = errors.New("record not found")
	ErrStatusChanged      = errors.New("order status changed concurrently")
	ErrInvalidQuantity    = errors.New("quantity must be positive")
	ErrUnknownPaymentType = errors.New("unknown payment method")
)

// Error is a classified failure. Op names the operation that failed, e.g.
// "fetch products".
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Fetch(op string, err error) error  { return E(KindFetch, op, err) }
func Write(op string, err error) error  { return E(KindWrite, op, err) }
func Upload(op string, err error) error { return E(KindUpload, op, err) }

// KindOf returns the kind of the outermost classified error in the chain, or
// "" if err was never classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
