package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/shopspring/decimal"

	"ecommerce-core/internal/apperror"
	"ecommerce-core/internal/charge"
	"ecommerce-core/internal/chargerepo"
	"ecommerce-core/internal/logging"
	"ecommerce-core/internal/money"
	"ecommerce-core/internal/processor"
	"ecommerce-core/internal/refund"
	"ecommerce-core/internal/refundrepo"
)

// FinalizeRefundRequest is one merchant's refund-completion request
// against a single charge (spec.md §4.I).
type FinalizeRefundRequest struct {
	OrderID     string
	MerchantID  uint32
	ChargeOwner uint32
	ChargeCreateTime time.Time
	Completions []refund.CompletionLine
	Reason      string
}

// FinalizeRefundResult reports the processor's refund outcome.
type FinalizeRefundResult struct {
	RefundID string
	Status   processor.RefundStatus
}

// FinalizeRefundUseCase implements spec.md §4.I: validate a merchant's
// refund-completion request against the stored refund model, distribute
// the approved amount across the matching charge lines FIFO, and call the
// processor exactly once per round.
type FinalizeRefundUseCase struct {
	RefundRepo refundrepo.Repository
	ChargeRepo chargerepo.Repository
	Processor  processor.Adapter
	Log        logging.Logger
}

// chargeLineDelta is one charge line's share of this round's approved
// refund, resolved by refund.DistributeFIFO against its remaining balance.
type chargeLineDelta struct {
	sellerID    uint32
	productType uint8
	productID   uint64
	qty         uint32
	total       decimal.Decimal
}

func (uc *FinalizeRefundUseCase) Execute(ctx context.Context, req FinalizeRefundRequest) (FinalizeRefundResult, error) {
	orderRefund, err := uc.RefundRepo.FetchOrder(ctx, req.OrderID)
	if err != nil {
		return FinalizeRefundResult{}, err
	}

	// Step 1-4: validation is pure — any failing line rejects the whole
	// round (spec.md §4.I step 4), so the failures are joined and
	// returned before anything is mutated.
	if _, errs := orderRefund.Validate(req.MerchantID, req.Completions); len(errs) > 0 {
		var merr *multierror.Error
		for _, e := range errs {
			merr = multierror.Append(merr, e)
		}
		return FinalizeRefundResult{}, apperror.Wrap(apperror.QtyInsufficient, "refund completion validation failed", merr)
	}

	orderRefund.Apply(req.MerchantID, req.Completions)
	if err := uc.RefundRepo.ApplyResolution(ctx, req.OrderID, orderRefund); err != nil {
		return FinalizeRefundResult{}, err
	}

	key := chargerepo.Key{OwnerID: req.ChargeOwner, CreateTime: req.ChargeCreateTime.Truncate(time.Second)}
	c, err := uc.ChargeRepo.Fetch(ctx, key)
	if err != nil {
		return FinalizeRefundResult{}, err
	}
	currency := c.Currencies[req.MerchantID].Label

	var totalMinor int64
	var deltas []chargeLineDelta
	for _, l := range c.Lines {
		if l.SellerID != req.MerchantID {
			continue
		}
		remain := refund.ChargeLineRemain{
			PID:         refund.PID{SellerID: l.SellerID, ProductType: l.ProductType, ProductID: l.ProductID},
			RemainQty:   l.AmountOriginal.Qty - l.AmountRefunded.Qty,
			RemainTotal: l.AmountOriginal.Total.Sub(l.AmountRefunded.Total),
		}
		for _, r := range refund.DistributeFIFO(&remain, req.Completions) {
			if r.QtyFetched == 0 && r.TotalFetched.IsZero() {
				continue
			}
			minor, err := money.Represent(r.TotalFetched, currency)
			if err != nil {
				return FinalizeRefundResult{}, err
			}
			totalMinor += minor
			deltas = append(deltas, chargeLineDelta{
				sellerID: l.SellerID, productType: l.ProductType, productID: l.ProductID,
				qty: r.QtyFetched, total: r.TotalFetched,
			})
		}
	}
	if len(deltas) == 0 {
		return FinalizeRefundResult{}, apperror.New(apperror.MissingReqLine, "no charge line matched the requested refund")
	}

	paymentIntentID, err := processor.PaymentIntentID(c.Meta.Method)
	if err != nil {
		return FinalizeRefundResult{}, err
	}

	// Every call sends a freshly generated idempotency key, so the
	// processor treats a retried finalize-refund call as a new refund
	// request; the key is not derived from the resolution round.
	idempotencyKey := uuid.NewString()
	refundResult, err := uc.Processor.Refund(ctx, idempotencyKey, paymentIntentID, totalMinor, req.Reason)
	if err != nil {
		uc.Log.Event("processor refund failed", err)
		return FinalizeRefundResult{}, err
	}
	if refundResult.Status != processor.RefundSucceeded {
		return FinalizeRefundResult{RefundID: refundResult.RefundID, Status: refundResult.Status}, nil
	}

	for _, d := range deltas {
		delta := charge.Line{
			SellerID:       d.sellerID,
			ProductType:    d.productType,
			ProductID:      d.productID,
			AmountRefunded: money.Amount{Qty: d.qty, Total: d.total},
		}
		if err := uc.ChargeRepo.ApplyRefund(ctx, key, d.sellerID, d.productType, d.productID, delta); err != nil {
			return FinalizeRefundResult{}, err
		}
	}

	return FinalizeRefundResult{RefundID: refundResult.RefundID, Status: refundResult.Status}, nil
}
