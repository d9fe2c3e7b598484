package usecase

import (
	"context"
	"testing"
	"time"

	"ecommerce-core/internal/logging"
	"ecommerce-core/internal/order"
	"ecommerce-core/internal/orderrepo"
	"ecommerce-core/internal/stock"
)

func TestDiscardUnpaidReturnsStockForUnpaidLines(t *testing.T) {
	repo := orderrepo.NewInMemRepo()
	now := time.Now().UTC()
	reservedUntil := now.Add(-time.Minute)

	if _, err := repo.Create(context.Background(), order.Order{
		ID: "order-1", OwnerID: 1,
		Lines: []order.Line{
			{SellerID: 17, ProductType: 1, ProductID: 100, QtyRequested: 5, QtyPaid: 2, ReservedUntil: reservedUntil},
		},
	}); err != nil {
		t.Fatalf("seed order: %v", err)
	}

	if err := repo.Stock().Save(context.Background(), stock.Set{Levels: []stock.Level{
		{Identity: stock.Identity{StoreID: 17, ProductType: 1, ProductID: 100}, Total: 10, Booked: 5, Expiry: now.Add(24 * time.Hour)},
	}}); err != nil {
		t.Fatalf("seed stock: %v", err)
	}

	uc := &DiscardUnpaidUseCase{OrderRepo: repo, Log: logging.New("order", "discard-unpaid-test")}
	if err := uc.Execute(context.Background(), now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	set, err := repo.Stock().Fetch(context.Background(), []stock.Identity{{StoreID: 17, ProductType: 1, ProductID: 100}})
	if err != nil {
		t.Fatalf("fetch stock: %v", err)
	}
	if set.Levels[0].Cancelled != 3 {
		t.Fatalf("expected 3 units returned (5 requested - 2 paid), got %d", set.Levels[0].Cancelled)
	}

	last, err := repo.ScheduledJobLastTime(context.Background())
	if err != nil {
		t.Fatalf("fetch watermark: %v", err)
	}
	if !last.Equal(now) {
		t.Fatalf("expected watermark advanced to %v, got %v", now, last)
	}
}

func TestDiscardUnpaidSkipsFullyPaidLines(t *testing.T) {
	repo := orderrepo.NewInMemRepo()
	now := time.Now().UTC()
	reservedUntil := now.Add(-time.Minute)

	if _, err := repo.Create(context.Background(), order.Order{
		ID: "order-1", OwnerID: 1,
		Lines: []order.Line{
			{SellerID: 17, ProductType: 1, ProductID: 100, QtyRequested: 5, QtyPaid: 5, ReservedUntil: reservedUntil},
		},
	}); err != nil {
		t.Fatalf("seed order: %v", err)
	}

	uc := &DiscardUnpaidUseCase{OrderRepo: repo, Log: logging.New("order", "discard-unpaid-test")}
	if err := uc.Execute(context.Background(), now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last, _ := repo.ScheduledJobLastTime(context.Background())
	if !last.Equal(now) {
		t.Fatalf("expected watermark advanced even with no returns, got %v", last)
	}
}
