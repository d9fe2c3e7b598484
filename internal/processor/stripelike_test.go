package processor

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"ecommerce-core/internal/apperror"
	"ecommerce-core/internal/charge"
	"ecommerce-core/internal/money"
)

type fakeDoer struct {
	respBody   string
	statusCode int
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: f.statusCode,
		Body:       io.NopCloser(strings.NewReader(f.respBody)),
	}, nil
}

func TestRefundRejectsMismatchedPaymentIntent(t *testing.T) {
	body, _ := json.Marshal(map[string]any{
		"id":             "re_1",
		"status":         "succeeded",
		"payment_intent": "pi_other",
	})
	s := NewStripeLike("https://api.example.test", "sk_test", &fakeDoer{respBody: string(body), statusCode: 200}, 0)

	_, err := s.Refund(context.Background(), "idem-1", "pi_expected", 1999, "requested_by_customer")
	if err == nil {
		t.Fatal("expected corrupted-payment-intent error")
	}
	ae, ok := err.(*apperror.AppError)
	if !ok || ae.Code != apperror.ThirdParty || !strings.Contains(ae.Detail, "corrupted-payment-intent") {
		t.Fatalf("expected ThirdParty corrupted-payment-intent error, got %+v", err)
	}
}

func TestRefundSucceeds(t *testing.T) {
	body, _ := json.Marshal(map[string]any{
		"id":             "re_1",
		"status":         "succeeded",
		"payment_intent": "pi_expected",
	})
	s := NewStripeLike("https://api.example.test", "sk_test", &fakeDoer{respBody: string(body), statusCode: 200}, 0)

	res, err := s.Refund(context.Background(), "idem-1", "pi_expected", 1999, "requested_by_customer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.RefundID != "re_1" || res.Status != RefundSucceeded {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestPayInStartOverflowNeverCallsProcessor(t *testing.T) {
	// scenario 6: overflow must short-circuit before any HTTP call.
	doer := &fakeDoer{respBody: "{}", statusCode: 200}
	s := NewStripeLike("https://api.example.test", "sk_test", doer, 0)

	unit, _ := decimal.NewFromString("92233720368547758.08")
	lines := []charge.Line{{AmountOriginal: money.NewAmount(unit, 1)}}
	_, err := s.PayInStart(context.Background(), "idem", ChargeLineSet{Lines: lines, Currency: "USD"})
	if err == nil {
		t.Fatal("expected AmountOverflow before any processor call")
	}
	code, _ := apperror.CodeOf(err)
	if code != apperror.AmountOverflow {
		t.Fatalf("expected AmountOverflow, got %v", err)
	}
}
