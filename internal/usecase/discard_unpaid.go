package usecase

import (
	"context"
	"time"

	"ecommerce-core/internal/apperror"
	"ecommerce-core/internal/logging"
	"ecommerce-core/internal/order"
	"ecommerce-core/internal/orderrepo"
	"ecommerce-core/internal/stock"
)

// DiscardUnpaidUseCase implements spec.md §4.J: the scheduler wakes it with
// an empty payload, it scans the reservation window since the last
// watermark, and returns unpaid stock for every expired line.
type DiscardUnpaidUseCase struct {
	OrderRepo orderrepo.Repository
	Log       logging.Logger
}

// Execute advances the watermark to `now` only if every batch in the
// window succeeds; on partial failure the watermark is left unchanged so
// the next run retries the same window (spec.md §4.J).
func (uc *DiscardUnpaidUseCase) Execute(ctx context.Context, now time.Time) error {
	lastRun, err := uc.OrderRepo.ScheduledJobLastTime(ctx)
	if err != nil {
		return err
	}

	var firstErr error
	scanErr := uc.OrderRepo.FetchLinesByReservedTimeRange(ctx, lastRun, now, func(ctx context.Context, orderID string, lines []order.Line) error {
		var reqs []stock.ReturnRequest
		for _, l := range lines {
			if l.QtyPaid >= l.QtyRequested {
				continue
			}
			reqs = append(reqs, stock.ReturnRequest{
				Identity: stock.Identity{StoreID: l.SellerID, ProductType: l.ProductType, ProductID: l.ProductID},
				Qty:      l.QtyRequested - l.QtyPaid,
			})
		}
		if len(reqs) == 0 {
			return nil
		}
		if errs := uc.OrderRepo.Stock().TryReturn(ctx, returnTransformer, reqs); len(errs) > 0 {
			uc.Log.Warn("partial stock return failure for order "+orderID, apperror.New(apperror.DataCorruption, "discard-unpaid: stock return rejected some lines"))
			if firstErr == nil {
				firstErr = apperror.New(apperror.DataCorruption, "discard-unpaid: stock return rejected some lines for order "+orderID)
			}
		}
		return nil
	})
	if scanErr != nil {
		return scanErr
	}
	if firstErr != nil {
		return firstErr
	}

	return uc.OrderRepo.ScheduledJobTimeUpdate(ctx, now)
}

// returnTransformer adapts stock.Set.TryReturn to the
// orderrepo.StockReturnFunc callback contract — its signature already
// matches, so no extra logic is needed here.
func returnTransformer(set *stock.Set, reqs []stock.ReturnRequest) []stock.ReturnError {
	return set.TryReturn(reqs)
}
