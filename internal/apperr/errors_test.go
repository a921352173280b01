package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfUnwrapsChain(t *testing.T) {
	base := Conflict("vehicle %d already assigned", 3)
	wrapped := fmt.Errorf("create assignment: %w", base)

	if got := KindOf(wrapped); got != KindConflict {
		t.Fatalf("KindOf = %q, want %q", got, KindConflict)
	}
	if !errors.Is(wrapped, ErrConflict) {
		t.Fatalf("errors.Is(wrapped, ErrConflict) = false")
	}
	if errors.Is(wrapped, ErrNotFound) {
		t.Fatalf("conflict must not match not_found")
	}
}

func TestKindOfPlainError(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != "" {
		t.Fatalf("KindOf(plain) = %q, want empty", got)
	}
	if got := KindOf(nil); got != "" {
		t.Fatalf("KindOf(nil) = %q, want empty", got)
	}
}

func TestInvalidCarriesField(t *testing.T) {
	err := Invalid("ending_mileage", "must be at least %d", 100)
	e, ok := As(err)
	if !ok {
		t.Fatalf("As returned false")
	}
	if e.Field != "ending_mileage" || e.Reason != "must be at least 100" {
		t.Fatalf("unexpected error %+v", e)
	}
	if err.Error() != "validation (ending_mileage): must be at least 100" {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestTransientKeepsCause(t *testing.T) {
	cause := errors.New("deadlock")
	err := Transient(cause, "store unavailable")
	if !errors.Is(err, cause) {
		t.Fatalf("transient error lost its cause")
	}
	if KindOf(err) != KindTransient {
		t.Fatalf("KindOf = %q", KindOf(err))
	}
}
