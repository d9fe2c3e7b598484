package usecase

import (
	"context"
	"time"

	"ecommerce-core/internal/apperror"
	"ecommerce-core/internal/charge"
	"ecommerce-core/internal/chargerepo"
	"ecommerce-core/internal/logging"
	"ecommerce-core/internal/order"
	"ecommerce-core/internal/processor"
)

// RefreshStatusResult reports the charge's state after the refresh.
type RefreshStatusResult struct {
	State charge.PayInState
}

// RefreshStatusUseCase implements spec.md §4.G.
type RefreshStatusUseCase struct {
	ChargeRepo  chargerepo.Repository
	OrderClient OrderServiceClient
	Processor   processor.Adapter
	Log         logging.Logger
}

// Execute parses chargeToken, advances the charge's state machine as far
// as the processor's current status allows, and on reaching
// ProcessorCompleted pushes paid-line updates to the order service.
func (uc *RefreshStatusUseCase) Execute(ctx context.Context, chargeToken string) (RefreshStatusResult, error) {
	ownerID, createTime, err := charge.ParseToken(chargeToken)
	if err != nil {
		return RefreshStatusResult{}, err
	}
	key := chargerepo.Key{OwnerID: ownerID, CreateTime: createTime.Truncate(time.Second)}

	c, err := uc.ChargeRepo.Fetch(ctx, key)
	if err != nil {
		return RefreshStatusResult{}, err
	}
	if c.Meta.State == charge.OrderAppSynced {
		return RefreshStatusResult{State: c.Meta.State}, nil
	}

	now := time.Now().UTC()
	if c.Meta.State != charge.ProcessorCompleted {
		updatedMethod, err := uc.Processor.RefreshStatus(ctx, c.Meta.Method)
		if err != nil {
			uc.Log.Event("processor refresh_status failed", err)
			return RefreshStatusResult{}, err
		}

		completed, err := processor.IsCompleted(updatedMethod)
		if err != nil {
			return RefreshStatusResult{}, err
		}
		if !completed || c.Meta.State != charge.ProcessorAccepted {
			return RefreshStatusResult{State: c.Meta.State}, nil
		}

		if err := uc.ChargeRepo.AdvanceState(ctx, key, charge.ProcessorAccepted, charge.ProcessorCompleted, now); err != nil {
			return RefreshStatusResult{}, err
		}
	}

	updates := make([]order.LinePaidUpdate, 0, len(c.Lines))
	for _, l := range c.Lines {
		updates = append(updates, order.LinePaidUpdate{
			SellerID:      l.SellerID,
			ProductType:   l.ProductType,
			ProductID:     l.ProductID,
			QtyPaid:       l.AmountOriginal.Qty,
			PaidTimestamp: now,
		})
	}

	pushResult, err := uc.OrderClient.PushPaidLines(ctx, c.Meta.OrderID, updates)
	if err != nil {
		// The local state machine has already advanced to
		// ProcessorCompleted; OrderAppSynced is only set once the order
		// service acknowledges, so a retry of refresh-status will retry
		// the push without re-querying the processor (spec.md §4.G).
		uc.Log.Event("push paid lines to order service failed", err)
		return RefreshStatusResult{State: charge.ProcessorCompleted}, err
	}
	if len(pushResult.Rejected) > 0 {
		uc.Log.Warn("order service rejected some paid-line updates", apperror.New(apperror.DataCorruption, "partial paid-line rejection"))
	}

	if err := uc.ChargeRepo.AdvanceState(ctx, key, charge.ProcessorCompleted, charge.OrderAppSynced, time.Now().UTC()); err != nil {
		return RefreshStatusResult{}, err
	}
	return RefreshStatusResult{State: charge.OrderAppSynced}, nil
}
