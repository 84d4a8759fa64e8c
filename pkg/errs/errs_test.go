package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	base := errors.New("connection refused")
	err := fmt.Errorf("create order: %w", Write("insert order", base))

	if got := KindOf(err); got != KindWrite {
		t.Fatalf("KindOf = %q, want %q", got, KindWrite)
	}
	if !errors.Is(err, base) {
		t.Fatal("wrapped cause lost")
	}
	if !Is(err, KindWrite) || Is(err, KindFetch) {
		t.Fatal("Is classified wrongly")
	}
	if KindOf(base) != "" {
		t.Fatal("unclassified error got a kind")
	}
	if Is(nil, KindWrite) {
		t.Fatal("nil error has no kind")
	}
}

func TestErrorMessage(t *testing.T) {
	err := E(KindStock, "add to cart", ErrInsufficientStock)
	if got, want := err.Error(), "add to cart: insufficient stock"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}
