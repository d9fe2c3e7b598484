package refund

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ecommerce-core/internal/apperror"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func sampleOrder(reqTime time.Time) OrderRefund {
	pid := PID{SellerID: 49, ProductType: 1, ProductID: 195}
	return OrderRefund{
		OrderID: "order-3",
		Lines: []OLineRefund{
			{
				PID:             pid,
				TimeRequested:   reqTime,
				AmountRequested: Amount{Unit: dec("16"), Total: dec("144"), Qty: 9},
				AmountRefunded:  Amount{Unit: dec("16"), Total: dec("0"), Qty: 0},
				Rejected:        QtyReject{},
			},
		},
	}
}

// TestValidateTwoRoundRefund mirrors the two-round completion scenario:
// round 1 approves qty=3/total=48 and rejects 1; round 2 approves
// qty=2/total=32 against the now-accumulated line state. Remaining
// quantity/amount must shrink monotonically across rounds following the
// checked-subtraction chain in estimateRemainQuantity/Amount.
func TestValidateTwoRoundRefund(t *testing.T) {
	reqTime := time.Now().Add(-time.Hour)
	pid := PID{SellerID: 49, ProductType: 1, ProductID: 195}
	order := sampleOrder(reqTime)

	round1 := CompletionLine{PID: pid, TimeIssued: reqTime, ApprovalQty: 3, ApprovalTotal: dec("48"), Reject: QtyReject{Damaged: 1}}
	resolved, errs := order.Validate(49, []CompletionLine{round1})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(resolved) != 1 || resolved[0].RemainQty != 5 || !resolved[0].RemainTotal.Equal(dec("80")) {
		t.Fatalf("round1 remain mismatch: %+v", resolved)
	}

	// round 2 runs against the line as it stood after round 1's approval
	// and rejection were folded into amount_refunded / rejected.
	order.Lines[0].AmountRefunded = Amount{Unit: dec("16"), Total: dec("48"), Qty: 3}
	order.Lines[0].Rejected = QtyReject{Damaged: 1}

	round2 := CompletionLine{PID: pid, TimeIssued: reqTime, ApprovalQty: 2, ApprovalTotal: dec("32")}
	resolved, errs = order.Validate(49, []CompletionLine{round2})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(resolved) != 1 || resolved[0].RemainQty != 3 || !resolved[0].RemainTotal.Equal(dec("48")) {
		t.Fatalf("round2 remain mismatch: %+v", resolved)
	}
}

func TestValidateMissingReqLine(t *testing.T) {
	reqTime := time.Now().Add(-time.Hour)
	order := sampleOrder(reqTime)
	other := CompletionLine{PID: PID{SellerID: 49, ProductType: 1, ProductID: 999}, TimeIssued: reqTime, ApprovalQty: 1}
	_, errs := order.Validate(49, []CompletionLine{other})
	if len(errs) != 1 {
		t.Fatalf("expected exactly one error, got %v", errs)
	}
	code, _ := apperror.CodeOf(errs[0])
	if code != apperror.MissingReqLine {
		t.Fatalf("expected MissingReqLine, got %v", errs[0])
	}
}

func TestValidateQtyInsufficientIsPure(t *testing.T) {
	reqTime := time.Now().Add(-time.Hour)
	order := sampleOrder(reqTime)
	pid := PID{SellerID: 49, ProductType: 1, ProductID: 195}

	over := CompletionLine{PID: pid, TimeIssued: reqTime, ApprovalQty: 9999, ApprovalTotal: dec("0")}
	resolved, errs := order.Validate(49, []CompletionLine{over})
	if len(errs) != 1 || resolved != nil {
		t.Fatalf("expected single error and no resolved lines, got resolved=%v errs=%v", resolved, errs)
	}
	code, _ := apperror.CodeOf(errs[0])
	if code != apperror.QtyInsufficient {
		t.Fatalf("expected QtyInsufficient, got %v", errs[0])
	}
	// pure: the line's own accumulated state must be untouched.
	if order.Lines[0].AmountRefunded.Qty != 0 {
		t.Fatalf("validate mutated line state: %+v", order.Lines[0])
	}
}

func TestDistributeFIFOConsumesAcrossRounds(t *testing.T) {
	pid := PID{SellerID: 49, ProductType: 1, ProductID: 195}
	remain := &ChargeLineRemain{PID: pid, RemainQty: 9, RemainTotal: dec("144")}

	completions := []CompletionLine{
		{PID: pid, ApprovalQty: 3, ApprovalTotal: dec("48")},
		{PID: pid, ApprovalQty: 2, ApprovalTotal: dec("32")},
		{PID: PID{SellerID: 49, ProductType: 1, ProductID: 999}, ApprovalQty: 1, ApprovalTotal: dec("16")},
	}
	out := DistributeFIFO(remain, completions)
	if len(out) != 2 {
		t.Fatalf("expected 2 resolutions (non-matching product dropped), got %d", len(out))
	}
	if remain.RemainQty != 4 || !remain.RemainTotal.Equal(dec("64")) {
		t.Fatalf("unexpected remainder after distribution: %+v", remain)
	}
}

func TestDistributeFIFODropsZeroConsumptionLines(t *testing.T) {
	pid := PID{SellerID: 49, ProductType: 1, ProductID: 195}
	remain := &ChargeLineRemain{PID: pid, RemainQty: 0, RemainTotal: dec("0")}
	out := DistributeFIFO(remain, []CompletionLine{{PID: pid, ApprovalQty: 5, ApprovalTotal: dec("80")}})
	if len(out) != 0 {
		t.Fatalf("expected zero-fetch line to be dropped, got %v", out)
	}
}
