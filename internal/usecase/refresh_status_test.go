package usecase

import (
	"context"
	"testing"
	"time"

	"ecommerce-core/internal/charge"
	"ecommerce-core/internal/chargerepo"
	"ecommerce-core/internal/logging"
	"ecommerce-core/internal/order"
	"ecommerce-core/internal/orderrepo"
)

func seedProcessorAcceptedCharge(t *testing.T, repo chargerepo.Repository, ownerID uint32, orderID string) (string, time.Time) {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	c := charge.Charge{
		Meta: charge.Meta{
			OwnerID:    ownerID,
			CreateTime: now,
			OrderID:    orderID,
			State:      charge.ProcessorAccepted,
			Timestamps: charge.StateTimestamps{ProcessorAcceptedTime: &now},
			Method:     stripeState("requires_action", "pi_1"),
		},
		Lines: []charge.Line{{SellerID: 17, ProductType: 1, ProductID: 100}},
	}
	if err := repo.Create(context.Background(), c); err != nil {
		t.Fatalf("seed charge: %v", err)
	}
	return charge.Token(ownerID, now), now
}

func TestRefreshStatusAdvancesToOrderAppSynced(t *testing.T) {
	chargeRepo := chargerepo.NewInMemRepo()
	orderRepo := orderrepo.NewInMemRepo()
	token, _ := seedProcessorAcceptedCharge(t, chargeRepo, 42, "order-1")
	if _, err := orderRepo.Create(context.Background(), order.Order{ID: "order-1", OwnerID: 42,
		Lines: []order.Line{{SellerID: 17, ProductType: 1, ProductID: 100, QtyRequested: 1, ReservedUntil: time.Now().Add(time.Hour)}}}); err != nil {
		t.Fatalf("seed order: %v", err)
	}

	uc := &RefreshStatusUseCase{
		ChargeRepo:  chargeRepo,
		OrderClient: NewDummyOrderClient(orderRepo),
		Processor:   &fakeProcessor{refreshState: stripeState("succeeded", "pi_1")},
		Log:         logging.New("payment", "refresh-status-test"),
	}

	res, err := uc.Execute(context.Background(), token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.State != charge.OrderAppSynced {
		t.Fatalf("expected OrderAppSynced, got %s", res.State)
	}
}

func TestRefreshStatusStaysPutWhenNotCompleted(t *testing.T) {
	chargeRepo := chargerepo.NewInMemRepo()
	token, _ := seedProcessorAcceptedCharge(t, chargeRepo, 42, "order-1")

	uc := &RefreshStatusUseCase{
		ChargeRepo:  chargeRepo,
		OrderClient: NewDummyOrderClient(orderrepo.NewInMemRepo()),
		Processor:   &fakeProcessor{refreshState: stripeState("requires_action", "pi_1")},
		Log:         logging.New("payment", "refresh-status-test"),
	}

	res, err := uc.Execute(context.Background(), token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.State != charge.ProcessorAccepted {
		t.Fatalf("expected state to stay ProcessorAccepted, got %s", res.State)
	}
}
