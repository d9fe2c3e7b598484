package chargerepo

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ecommerce-core/internal/apperror"
	"ecommerce-core/internal/charge"
	"ecommerce-core/internal/money"
)

func sampleCharge() charge.Charge {
	ct := time.Now().Truncate(time.Second)
	return charge.Charge{
		Meta: charge.Meta{
			OwnerID:    7,
			CreateTime: ct,
			OrderID:    "order-1",
			State:      charge.Initialized,
			Method:     charge.ThirdPartyState{Label: charge.ThirdPartyStripe, Detail: []byte(`{}`)},
		},
		Lines: []charge.Line{
			{SellerID: 17, ProductType: 1, ProductID: 100,
				AmountOriginal: amount("10.00", 3)},
		},
	}
}

func amount(unit string, qty uint32) money.Amount {
	u, _ := decimal.NewFromString(unit)
	return money.NewAmount(u, qty)
}

func TestCreateFetchRoundTrip(t *testing.T) {
	repo := NewInMemRepo()
	c := sampleCharge()
	if err := repo.Create(context.Background(), c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := repo.Fetch(context.Background(), Key{OwnerID: c.Meta.OwnerID, CreateTime: c.Meta.CreateTime})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Meta.OrderID != c.Meta.OrderID || got.Meta.State != charge.Initialized {
		t.Fatalf("round-trip mismatch: %+v", got.Meta)
	}
	if len(got.Lines) != 1 || !got.Lines[0].AmountOriginal.Total.Equal(c.Lines[0].AmountOriginal.Total) {
		t.Fatalf("round-trip line mismatch: %+v", got.Lines)
	}
}

func TestAdvanceStateMonotoneAndOptimistic(t *testing.T) {
	repo := NewInMemRepo()
	c := sampleCharge()
	_ = repo.Create(context.Background(), c)
	key := Key{OwnerID: c.Meta.OwnerID, CreateTime: c.Meta.CreateTime}
	now := time.Now()

	if err := repo.AdvanceState(context.Background(), key, charge.Initialized, charge.ProcessorAccepted, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// stale caller still believes state is Initialized: optimistic check rejects it.
	err := repo.AdvanceState(context.Background(), key, charge.Initialized, charge.ProcessorAccepted, now)
	if err == nil {
		t.Fatal("expected DataCorruption on stale expected-state")
	}
	code, _ := apperror.CodeOf(err)
	if code != apperror.DataCorruption {
		t.Fatalf("expected DataCorruption, got %v", err)
	}

	// skip transition rejected
	err = repo.AdvanceState(context.Background(), key, charge.ProcessorAccepted, charge.OrderAppSynced, now)
	if err == nil {
		t.Fatal("expected error on skip transition")
	}
}

func TestApplyRefundAccumulates(t *testing.T) {
	repo := NewInMemRepo()
	c := sampleCharge()
	_ = repo.Create(context.Background(), c)
	key := Key{OwnerID: c.Meta.OwnerID, CreateTime: c.Meta.CreateTime}

	delta := charge.Line{AmountRefunded: amount("10.00", 1)}
	if err := repo.ApplyRefund(context.Background(), key, 17, 1, 100, delta); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := repo.Fetch(context.Background(), key)
	if got.Lines[0].AmountRefunded.Qty != 1 {
		t.Fatalf("expected refunded qty 1, got %d", got.Lines[0].AmountRefunded.Qty)
	}
}
