package usecase

import (
	"context"
	"time"

	"ecommerce-core/internal/apperror"
	"ecommerce-core/internal/charge"
	"ecommerce-core/internal/chargerepo"
	"ecommerce-core/internal/logging"
	"ecommerce-core/internal/money"
	"ecommerce-core/internal/order"
	"ecommerce-core/internal/orderrepo"
	"ecommerce-core/internal/processor"
	"ecommerce-core/internal/synclock"
)

// ChargeReqLine is one line of a client's create-charge request.
type ChargeReqLine struct {
	SellerID    uint32
	ProductType uint8
	ProductID   uint64
	Qty         uint32
	Amount      money.Amount
}

// CreateChargeRequest is the client-facing input to the use case.
type CreateChargeRequest struct {
	UserID   uint32
	OrderID  string
	Lines    []ChargeReqLine
	Method   charge.ThirdPartyLabel
	Currency string
}

// CreateChargeResult is what the use case replies with on success.
type CreateChargeResult struct {
	ChargeToken  string
	ClientSecret string
	RedirectURL  string
}

// CreateChargeUseCase implements spec.md §4.F.
type CreateChargeUseCase struct {
	ChargeRepo  chargerepo.Repository
	OrderRepo   orderrepo.Repository
	OrderClient OrderServiceClient
	Processor   processor.Adapter
	Locks       *synclock.OrderSyncLockCache
	Log         logging.Logger
}

// Execute runs the full algorithm in spec.md §4.F.
func (uc *CreateChargeUseCase) Execute(ctx context.Context, req CreateChargeRequest) (CreateChargeResult, error) {
	lines, err := uc.OrderRepo.FetchAllLines(ctx, req.OrderID)
	switch {
	case err == nil:
		// Step 1: a local replica already exists (e.g. a prior create-charge
		// attempt already pulled it) — validate the request against it
		// without touching the sync lock or issuing another RPC.
		ownerID, ownerErr := uc.OrderRepo.OwnerID(ctx, req.OrderID)
		if ownerErr != nil {
			return CreateChargeResult{}, apperror.Wrap(apperror.LoadOrderInternalError, "load order owner", ownerErr)
		}
		if ownerID != req.UserID {
			return CreateChargeResult{}, apperror.New(apperror.OrderOwnerMismatch, "order owner does not match caller")
		}
	default:
		// Step 2/3: not present locally — acquire the single-flight lock,
		// RPC-pull the replica, persist it, and release on every exit path.
		lines, err = uc.pullReplica(ctx, req)
		if err != nil {
			return CreateChargeResult{}, err
		}
	}

	if err := validateAgainstReplica(lines, req.Lines, req.Currency); err != nil {
		return CreateChargeResult{}, err
	}

	chargeLines := buildChargeLines(req.Lines)
	now := time.Now().UTC()
	token := charge.Token(req.UserID, now)

	payResult, err := uc.Processor.PayInStart(ctx, token, processor.ChargeLineSet{
		BuyerID:  req.UserID,
		Lines:    chargeLines,
		Currency: req.Currency,
	})
	if err != nil {
		// Failure policy: no retry, no charge row persisted.
		uc.Log.Event("pay_in_start failed, no charge persisted", err)
		return CreateChargeResult{}, err
	}

	c := charge.Charge{
		Meta: charge.Meta{
			OwnerID:    req.UserID,
			CreateTime: now,
			OrderID:    req.OrderID,
			State:      charge.ProcessorAccepted,
			Timestamps: charge.StateTimestamps{ProcessorAcceptedTime: &now},
			Method:     payResult.MethodState,
		},
		Lines: chargeLines,
	}
	if err := uc.ChargeRepo.Create(ctx, c); err != nil {
		return CreateChargeResult{}, err
	}

	return CreateChargeResult{ChargeToken: token, ClientSecret: payResult.ClientSecret, RedirectURL: payResult.RedirectURL}, nil
}

// pullReplica implements steps 2-4: acquire the lock, RPC pull, persist,
// release on every exit path (spec.md §9 "scoped guard with guaranteed
// release").
func (uc *CreateChargeUseCase) pullReplica(ctx context.Context, req CreateChargeRequest) ([]order.Line, error) {
	release, ok := uc.Locks.Acquire(synclock.Key{UserID: req.UserID, OrderID: req.OrderID})
	if !ok {
		return nil, apperror.New(apperror.LoadOrderConflict, "order replica pull already in flight")
	}
	defer release()

	replica, err := uc.OrderClient.FetchOrderReplica(ctx, req.OrderID)
	if err != nil {
		return nil, apperror.Wrap(apperror.LoadOrderInternalError, "rpc pull order replica", err)
	}
	if replica.Order.OwnerID != req.UserID {
		return nil, apperror.New(apperror.OrderOwnerMismatch, "order owner does not match caller")
	}

	if _, err := uc.OrderRepo.Create(ctx, replica.Order); err != nil {
		return nil, apperror.Wrap(apperror.LoadOrderByteCorruption, "persist order replica", err)
	}
	return replica.Order.Lines, nil
}

// validateAgainstReplica implements spec.md §4.F step 1's cross-check:
// every requested line must match an existing order line, requested qty
// must be within the remaining balance, and amount.total must be
// consistent with amount.unit*qty within the currency's scale.
func validateAgainstReplica(lines []order.Line, reqLines []ChargeReqLine, currency string) error {
	for _, rl := range reqLines {
		var match *order.Line
		for i := range lines {
			if lines[i].SellerID == rl.SellerID && lines[i].ProductType == rl.ProductType && lines[i].ProductID == rl.ProductID {
				match = &lines[i]
				break
			}
		}
		if match == nil {
			return apperror.New(apperror.InvalidInput, "requested line not present on order")
		}
		if rl.Qty > match.Remaining() {
			return apperror.New(apperror.InvalidInput, "requested qty exceeds remaining order balance")
		}
		if !rl.Amount.ConsistentTotal(currency) {
			return apperror.New(apperror.InvalidInput, "amount.total inconsistent with amount.unit*qty")
		}
	}
	return nil
}

func buildChargeLines(reqLines []ChargeReqLine) []charge.Line {
	out := make([]charge.Line, 0, len(reqLines))
	for _, rl := range reqLines {
		out = append(out, charge.Line{
			SellerID:       rl.SellerID,
			ProductType:    rl.ProductType,
			ProductID:      rl.ProductID,
			AmountOriginal: rl.Amount,
		})
	}
	return out
}
