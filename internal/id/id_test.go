package id

import (
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	got := NewOrderID()
	if !strings.HasPrefix(got, "ord_") {
		t.Fatalf("expected ord_ prefix, got %s", got)
	}
	if got == NewOrderID() {
		t.Fatal("expected unique ids")
	}
}

func TestCheck(t *testing.T) {
	t.Run("accepts matching prefix", func(t *testing.T) {
		if err := Check(NewPaymentID(), PrefixPayment); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("rejects other prefix", func(t *testing.T) {
		if err := Check(NewPaymentID(), PrefixOrder); err == nil {
			t.Fatal("expected error for mismatched prefix")
		}
	})

	t.Run("rejects garbage", func(t *testing.T) {
		for _, s := range []string{"", "ord_", "not an id"} {
			if err := Check(s, PrefixOrder); err == nil {
				t.Errorf("expected error for %q", s)
			}
		}
	})
}
