// Package usecase orchestrates components A-I into the create-charge,
// refresh-status, finalise-refund, onboarding, discard-unpaid and
// reporting entry points from spec.md §4.F-§4.J and SPEC_FULL.md §4.Q,
// grounded on original_source/services/payment/src/usecase/{create_charge,
// mod,reporting}.rs for the algorithms and on the teacher's
// internal/engine/engine.go for the orchestration-over-repositories style
// (a thin coordinator holding references to its collaborators, no
// business state of its own).
package usecase

import (
	"context"
	"time"

	"ecommerce-core/internal/apperror"
	"ecommerce-core/internal/order"
	"ecommerce-core/internal/orderrepo"
)

// OrderReplica is the RPC-pulled snapshot of one order, persisted locally
// by the payment service via the order repository (component E) before
// a charge is built against it (spec.md §2 create-charge data flow).
type OrderReplica struct {
	Order order.Order
}

// PushPaidLinesResult is the order service's reply to a paid-lines push:
// Accepted holds the updates it took, Rejected the per-line rejections.
// RefreshStatusUseCase only logs the rejections; it records no paid
// quantity, accepted or not, on the local charge.
type PushPaidLinesResult struct {
	Accepted []order.LinePaidUpdate
	Rejected []order.LinePayUpdateError
}

// OrderServiceClient is the payment service's RPC collaborator for
// everything that crosses the service boundary to the order service.
// Transport and serialisation are explicitly out of scope (spec.md §1);
// this interface is the replaceable seam, with DummyOrderClient standing
// in for the "dummy" config.RPCHandlerType backend.
type OrderServiceClient interface {
	FetchOrderReplica(ctx context.Context, orderID string) (OrderReplica, error)
	PushPaidLines(ctx context.Context, orderID string, updates []order.LinePaidUpdate) (PushPaidLinesResult, error)
}

// DummyOrderClient implements OrderServiceClient in-process against an
// orderrepo.Repository, i.e. the "dummy" RPC handler type from
// config.RPCHandlerDummy: no broker round-trip, same call semantics.
type DummyOrderClient struct {
	Repo orderrepo.Repository
}

func NewDummyOrderClient(repo orderrepo.Repository) *DummyOrderClient {
	return &DummyOrderClient{Repo: repo}
}

func (c *DummyOrderClient) FetchOrderReplica(ctx context.Context, orderID string) (OrderReplica, error) {
	lines, err := c.Repo.FetchAllLines(ctx, orderID)
	if err != nil {
		return OrderReplica{}, apperror.Wrap(apperror.LoadOrderInternalError, "fetch order lines", err)
	}
	billing, err := c.Repo.FetchBilling(ctx, orderID)
	if err != nil {
		return OrderReplica{}, apperror.Wrap(apperror.LoadOrderInternalError, "fetch order billing", err)
	}
	shipping, err := c.Repo.FetchShipping(ctx, orderID)
	if err != nil {
		return OrderReplica{}, apperror.Wrap(apperror.LoadOrderInternalError, "fetch order shipping", err)
	}
	ownerID, err := c.Repo.OwnerID(ctx, orderID)
	if err != nil {
		return OrderReplica{}, apperror.Wrap(apperror.LoadOrderInternalError, "fetch order owner", err)
	}
	createTime, err := c.Repo.CreatedTime(ctx, orderID)
	if err != nil {
		return OrderReplica{}, apperror.Wrap(apperror.LoadOrderInternalError, "fetch order create time", err)
	}
	return OrderReplica{Order: order.Order{
		ID:         orderID,
		OwnerID:    ownerID,
		CreateTime: createTime,
		Lines:      lines,
		Billing:    billing,
		Shipping:   shipping,
	}}, nil
}

func (c *DummyOrderClient) PushPaidLines(ctx context.Context, orderID string, updates []order.LinePaidUpdate) (PushPaidLinesResult, error) {
	now := updates0Time(updates)
	rejected, err := c.Repo.UpdateLinesPayment(ctx, orderID, updates, order.DefaultUpdateLinesPayment(now))
	if err != nil {
		return PushPaidLinesResult{}, apperror.Wrap(apperror.LoadOrderInternalError, "push paid lines", err)
	}
	rejectedSet := make(map[[3]uint64]bool, len(rejected))
	for _, r := range rejected {
		rejectedSet[lineKey(r.SellerID, r.ProductType, r.ProductID)] = true
	}
	var accepted []order.LinePaidUpdate
	for _, u := range updates {
		if !rejectedSet[lineKey(u.SellerID, u.ProductType, u.ProductID)] {
			accepted = append(accepted, u)
		}
	}
	return PushPaidLinesResult{Accepted: accepted, Rejected: rejected}, nil
}

func lineKey(sellerID uint32, productType uint8, productID uint64) [3]uint64 {
	return [3]uint64{uint64(sellerID), uint64(productType), productID}
}

func updates0Time(updates []order.LinePaidUpdate) time.Time {
	if len(updates) == 0 {
		return time.Now().UTC()
	}
	return updates[0].PaidTimestamp
}
