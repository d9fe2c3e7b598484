// Package refund implements per-merchant refund-completion validation and
// the FIFO distribution of an approved refund across charge lines,
// grounded on original_source/services/payment/src/model/refund.rs.
package refund

import (
	"time"

	"github.com/shopspring/decimal"

	"ecommerce-core/internal/apperror"
)

// RejectReason is a tagged refund-line rejection category (spec.md §9
// "tagged variants over inheritance").
type RejectReason int

const (
	Damaged RejectReason = iota
	Fraudulent
)

// QtyReject tracks rejected quantity per reason for a single refund line.
type QtyReject map[RejectReason]uint32

func (q QtyReject) TotalQty() uint32 {
	var total uint32
	for _, n := range q {
		total += n
	}
	return total
}

// PID identifies a product within a single seller's catalogue.
type PID struct {
	SellerID    uint32
	ProductType uint8
	ProductID   uint64
}

// OLineRefund is the refundable state of one order line: what was
// requested, what has already been refunded or rejected across prior
// completion rounds.
type OLineRefund struct {
	PID             PID
	AmountRequested Amount
	TimeRequested   time.Time
	AmountRefunded  Amount
	Rejected        QtyReject
}

// Amount is the {unit, total, qty} triple used throughout refund
// resolution (spec.md §4.A).
type Amount struct {
	Unit  decimal.Decimal
	Total decimal.Decimal
	Qty   uint32
}

// CompletionLine is one line of a merchant's refund-completion request:
// how much of a previously-requested refund the merchant approves or
// rejects in this round.
type CompletionLine struct {
	PID          PID
	TimeIssued   time.Time
	ApprovalQty  uint32
	ApprovalTotal decimal.Decimal
	Reject       QtyReject
}

func (c CompletionLine) totalQtyRejected() uint32 {
	return c.Reject.TotalQty()
}

// Resolved is the outcome of validating one completion line against its
// matching OLineRefund: the refundable quantity/amount left over after
// this round.
type Resolved struct {
	PID         PID
	TimeIssued  time.Time
	RemainQty   uint32
	RemainTotal decimal.Decimal
}

// estimateRemainQuantity implements spec.md §4.I step 2: a checked
// subtraction chain where underflow at any step is QtyInsufficient.
func (l OLineRefund) estimateRemainQuantity(c CompletionLine) (uint32, error) {
	avail := l.AmountRequested.Qty
	for _, sub := range []uint32{l.AmountRefunded.Qty, l.Rejected.TotalQty(), c.ApprovalQty, c.totalQtyRejected()} {
		if sub > avail {
			return 0, apperror.New(apperror.QtyInsufficient, "refund qty exceeds remaining balance")
		}
		avail -= sub
	}
	return avail, nil
}

// estimateRemainAmount implements spec.md §4.I step 3: a checked,
// non-negative subtraction chain; underflow or a negative result is
// AmountInsufficient. Quantity rejected in earlier rounds is deducted at
// the requested unit price too, mirroring estimateRemainQuantity.
func (l OLineRefund) estimateRemainAmount(c CompletionLine) (decimal.Decimal, error) {
	qtyDiscard := decimal.NewFromInt(int64(c.totalQtyRejected()))
	rejectedAmt := qtyDiscard.Mul(l.AmountRequested.Unit)
	priorRejectedAmt := decimal.NewFromInt(int64(l.Rejected.TotalQty())).Mul(l.AmountRequested.Unit)

	avail := l.AmountRequested.Total
	for _, sub := range []decimal.Decimal{l.AmountRefunded.Total, priorRejectedAmt, c.ApprovalTotal, rejectedAmt} {
		avail = avail.Sub(sub)
		if avail.IsNegative() {
			return decimal.Zero, apperror.New(apperror.AmountInsufficient, "refund amount exceeds remaining balance")
		}
	}
	return avail, nil
}

func (l OLineRefund) estimateRemains(c CompletionLine) (Resolved, error) {
	qty, err := l.estimateRemainQuantity(c)
	if err != nil {
		return Resolved{}, err
	}
	total, err := l.estimateRemainAmount(c)
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{PID: c.PID, TimeIssued: c.TimeIssued, RemainQty: qty, RemainTotal: total}, nil
}

// OrderRefund is all refundable order lines for one order.
type OrderRefund struct {
	OrderID string
	Lines   []OLineRefund
}

// Validate resolves every completion line against its matching
// OLineRefund for the given merchant. Step 1: a completion line with no
// matching (store_id, product_type, product_id, time_requested) tuple
// produces MissingReqLine. Validation is a pure function — per spec.md
// §4.I step 4, no state changes if any line fails, so a non-empty error
// slice means the whole round is rejected and resolved is nil.
func (o OrderRefund) Validate(merchantID uint32, completions []CompletionLine) ([]Resolved, []error) {
	var errs []error
	var resolved []Resolved
	for _, c := range completions {
		key := PID{SellerID: merchantID, ProductType: c.PID.ProductType, ProductID: c.PID.ProductID}
		var match *OLineRefund
		for i := range o.Lines {
			if o.Lines[i].PID == key && o.Lines[i].TimeRequested.Equal(c.TimeIssued) {
				match = &o.Lines[i]
				break
			}
		}
		if match == nil {
			errs = append(errs, apperror.New(apperror.MissingReqLine, "no matching refund-requested line"))
			continue
		}
		r, err := match.estimateRemains(c)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		resolved = append(resolved, r)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return resolved, nil
}

// Apply mutates the matching OLineRefund lines in place with the approved
// qty/total and merged rejections from completions. Callers MUST call
// Validate first and only Apply the same completions if it returned no
// errors: per spec.md §4.I step 4, validation is pure and Apply performs
// no bounds checking of its own.
func (o *OrderRefund) Apply(merchantID uint32, completions []CompletionLine) {
	for _, c := range completions {
		key := PID{SellerID: merchantID, ProductType: c.PID.ProductType, ProductID: c.PID.ProductID}
		for i := range o.Lines {
			if o.Lines[i].PID != key || !o.Lines[i].TimeRequested.Equal(c.TimeIssued) {
				continue
			}
			l := &o.Lines[i]
			l.AmountRefunded.Qty += c.ApprovalQty
			l.AmountRefunded.Total = l.AmountRefunded.Total.Add(c.ApprovalTotal)
			if l.Rejected == nil {
				l.Rejected = QtyReject{}
			}
			for reason, n := range c.Reject {
				l.Rejected[reason] += n
			}
			break
		}
	}
}

// ChargeLineRemain is the refundable remainder on one charge line,
// consumed FIFO by distributeFIFO as successive completion rounds land.
type ChargeLineRemain struct {
	PID         PID
	RemainQty   uint32
	RemainTotal decimal.Decimal
}

// LineResolution is one FIFO-matched slice of a completion line's
// approval applied against a single charge line's remaining balance.
type LineResolution struct {
	PID        PID
	TimeIssued time.Time
	Reject     QtyReject
	QtyFetched uint32
	TotalFetched decimal.Decimal
}

func (r LineResolution) totalQtyCurrRound() uint32 {
	return r.Reject.TotalQty() + r.QtyFetched
}

// DistributeFIFO implements RefundReqResolutionModel::to_vec: for each
// completion line matching the charge line's product, it consumes
// `qty_fetched = min(remaining.qty, request.qty)` (and the analogous min
// for total) from the charge line's running remainder, in request order,
// leaving any residual available for the next completion. Lines whose
// combined approved+rejected quantity is zero are dropped.
func DistributeFIFO(remain *ChargeLineRemain, completions []CompletionLine) []LineResolution {
	var out []LineResolution
	for _, c := range completions {
		if c.PID.ProductID != remain.PID.ProductID || c.PID.ProductType != remain.PID.ProductType {
			continue
		}
		qtyFetched := minUint32(remain.RemainQty, c.ApprovalQty)
		totalFetched := decimal.Min(remain.RemainTotal, c.ApprovalTotal)
		if qtyFetched > 0 {
			remain.RemainQty -= qtyFetched
			remain.RemainTotal = remain.RemainTotal.Sub(totalFetched)
		}
		res := LineResolution{PID: remain.PID, TimeIssued: c.TimeIssued, Reject: c.Reject, QtyFetched: qtyFetched, TotalFetched: totalFetched}
		if res.totalQtyCurrRound() > 0 {
			out = append(out, res)
		}
	}
	return out
}

func minUint32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
