package money

import (
	"testing"

	"github.com/shopspring/decimal"

	"ecommerce-core/internal/apperror"
)

func TestRepresentOverflow(t *testing.T) {
	// scenario 6: unit = 92,233,720,368,547,758.08 in USD scale 2 overflows
	// int64 (× 100 = MaxInt64+1).
	unit := decimal.RequireFromString("92233720368547758.08")
	_, err := Represent(unit, "USD")
	if err == nil {
		t.Fatal("expected AmountOverflow, got nil")
	}
	code, ok := apperror.CodeOf(err)
	if !ok || code != apperror.AmountOverflow {
		t.Fatalf("expected AmountOverflow code, got %v", err)
	}
}

func TestRepresentRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		want     int64
	}{
		{"usd 2 decimal", "19.99", "USD", 1999},
		{"jpy no decimal", "500", "JPY", 500},
		{"usd truncates toward zero", "19.999", "USD", 1999},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Represent(decimal.RequireFromString(tc.amount), tc.currency)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Represent(%s, %s) = %d, want %d", tc.amount, tc.currency, got, tc.want)
			}
		})
	}
}

func TestAmountConsistentTotal(t *testing.T) {
	a := NewAmount(decimal.RequireFromString("16"), 9)
	if !a.ConsistentTotal("USD") {
		t.Fatalf("expected consistent total, got unit=%s total=%s", a.Unit, a.Total)
	}
	bad := Amount{Unit: decimal.RequireFromString("16"), Total: decimal.RequireFromString("100"), Qty: 9}
	if bad.ConsistentTotal("USD") {
		t.Fatal("expected inconsistent total to be detected")
	}
}
