// Package order models an order's lines, billing, shipping and currency
// snapshots (spec.md §3), grounded on
// original_source/services/order/src/repository/mod.rs for the shape of
// the order-line update/fetch contracts.
package order

import (
	"time"

	"ecommerce-core/internal/money"
)

// Line is one order line. Invariant: QtyPaid <= QtyRequested;
// ReservedUntil > (the order's) CreateTime.
type Line struct {
	SellerID        uint32
	ProductType     uint8
	ProductID       uint64
	ReservedUntil   time.Time
	QtyRequested    uint32
	QtyPaid         uint32
	QtyPaidLastUpdate time.Time
	Amount          money.Amount
}

// Remaining is the unpaid quantity still owed on this line.
func (l Line) Remaining() uint32 {
	if l.QtyPaid >= l.QtyRequested {
		return 0
	}
	return l.QtyRequested - l.QtyPaid
}

func (l Line) Expired(now time.Time) bool {
	return now.After(l.ReservedUntil)
}

type Billing struct {
	ContactName  string
	ContactEmail string
	ContactPhone string
}

type Shipping struct {
	ContactName string
	Address     string
}

// Order is the order aggregate: header, lines, billing/shipping and the
// currency snapshot for the buyer and each involved seller.
type Order struct {
	ID          string
	OwnerID     uint32
	CreateTime  time.Time
	Lines       []Line
	Billing     Billing
	Shipping    Shipping
	Currencies  map[uint32]money.Snapshot // keyed by seller_id, 0 = buyer
}

// PayUpdateRejectKind mirrors the transformer's per-line rejection kinds
// from spec.md §4.D (update_lines_payment).
type PayUpdateRejectKind int

const (
	RejectReservationExpired PayUpdateRejectKind = iota
	RejectInvalidQuantity
	RejectOmitted
)

// LinePaidUpdate is one incoming payment-acceptance record for a line.
type LinePaidUpdate struct {
	SellerID      uint32
	ProductType   uint8
	ProductID     uint64
	QtyPaid       uint32
	PaidTimestamp time.Time
}

// LinePayUpdateError is the transformer's rejection for one line.
type LinePayUpdateError struct {
	SellerID    uint32
	ProductType uint8
	ProductID   uint64
	Kind        PayUpdateRejectKind
}

// UpdateLinesPaymentFunc is the callback-driven transformer contract from
// spec.md §9 "Callback-driven mutation": it mutates lines in place and
// returns per-line errors. Pure with respect to I/O; the repository owns
// load-mutate-persist atomicity.
type UpdateLinesPaymentFunc func(lines []Line, updates []LinePaidUpdate) []LinePayUpdateError

// DefaultUpdateLinesPayment is the reference transformer used by
// usecase.DummyOrderClient.PushPaidLines: it adds the paid qty to qty_paid
// when the line exists, is not expired and stays within qty_requested;
// otherwise it rejects the update (Omitted, ReservationExpired or
// InvalidQuantity).
func DefaultUpdateLinesPayment(now time.Time) UpdateLinesPaymentFunc {
	return func(lines []Line, updates []LinePaidUpdate) []LinePayUpdateError {
		var errs []LinePayUpdateError
		for _, u := range updates {
			idx := -1
			for i := range lines {
				l := lines[i]
				if l.SellerID == u.SellerID && l.ProductType == u.ProductType && l.ProductID == u.ProductID {
					idx = i
					break
				}
			}
			if idx < 0 {
				errs = append(errs, LinePayUpdateError{u.SellerID, u.ProductType, u.ProductID, RejectOmitted})
				continue
			}
			line := &lines[idx]
			if line.Expired(now) {
				errs = append(errs, LinePayUpdateError{u.SellerID, u.ProductType, u.ProductID, RejectReservationExpired})
				continue
			}
			if u.QtyPaid == 0 || line.QtyPaid+u.QtyPaid > line.QtyRequested {
				errs = append(errs, LinePayUpdateError{u.SellerID, u.ProductType, u.ProductID, RejectInvalidQuantity})
				continue
			}
			line.QtyPaid += u.QtyPaid
			line.QtyPaidLastUpdate = u.PaidTimestamp
		}
		return errs
	}
}
