// Package processor defines the uniform processor-adapter contract
// (spec.md §4.H) and a Stripe-like worked implementation, grounded on
// original_source/services/payment/src/adapter/processor/stripe/resources.rs.
package processor

import (
	"context"
	"encoding/json"
	"time"

	"ecommerce-core/internal/apperror"
	"ecommerce-core/internal/charge"
	"ecommerce-core/internal/money"
)

// ChargeLineSet is the input to PayInStart: the charge's lines plus
// buyer/seller currency context, enough to compute minor-unit totals.
type ChargeLineSet struct {
	BuyerID  uint32
	Lines    []charge.Line
	Currency string // buyer-facing currency label
}

// PayInResult is the processor's response to starting a pay-in.
type PayInResult struct {
	Completed    bool
	MethodState  charge.ThirdPartyState
	ClientSecret string
	RedirectURL  string
}

// RefundStatus mirrors the processor refund lifecycle.
type RefundStatus string

const (
	RefundPending        RefundStatus = "pending"
	RefundRequiresAction RefundStatus = "requires_action"
	RefundSucceeded      RefundStatus = "succeeded"
	RefundFailed         RefundStatus = "failed"
	RefundCanceled       RefundStatus = "canceled"
)

// RefundResult is returned by Refund.
type RefundResult struct {
	RefundID string
	Status   RefundStatus
}

// CapabilityState is returned by RefreshOnboard.
type CapabilityState struct {
	DetailsSubmitted bool
	PayoutsEnabled   bool
	TOSAccepted      bool
	TransfersActive  bool
}

// OnboardingComplete matches spec.md §4.H's conjunction exactly.
func (c CapabilityState) OnboardingComplete() bool {
	return c.DetailsSubmitted && c.PayoutsEnabled && c.TOSAccepted && c.TransfersActive
}

// StoreProfile is the merchant data needed to onboard a new connect account.
type StoreProfile struct {
	StoreID uint32
	Name    string
	Country string
}

// OnboardLinkURLs carries the refresh/return redirect targets.
type OnboardLinkURLs struct {
	Refresh string
	Return  string
}

// Adapter is the processor contract every backend (Stripe-like, mock)
// implements uniformly (spec.md §4.H). All operations may fail with
// ExternalProcessorError-class errors wrapped as *apperror.AppError with
// code apperror.ThirdParty.
type Adapter interface {
	PayInStart(ctx context.Context, idempotencyKey string, set ChargeLineSet) (PayInResult, error)
	RefreshStatus(ctx context.Context, state charge.ThirdPartyState) (charge.ThirdPartyState, error)

	OnboardMerchant(ctx context.Context, profile StoreProfile) (accountID string, err error)
	OnboardLink(ctx context.Context, accountID string, urls OnboardLinkURLs) (url string, err error)
	RefreshOnboard(ctx context.Context, accountID string) (CapabilityState, error)

	CreateTransfer(ctx context.Context, merchantAccount string, currency string, minorAmount int64, transferGroup string) (transferID string, err error)

	Refund(ctx context.Context, idempotencyKey string, paymentIntentID string, minorAmount int64, reason string) (RefundResult, error)
}

// Represent is the shared §4.A conversion every adapter implementation must
// route amounts through before talking to the wire.
func Represent(amount money.Amount, currency string) (int64, error) {
	minor, err := money.Represent(amount.Total, currency)
	if err != nil {
		return 0, err
	}
	return minor, nil
}

// deadlineFrom derives a per-call context given the configured processor
// timeout (spec.md §5 "processor calls carry a per-call deadline").
func deadlineFrom(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, timeout)
}

func thirdPartyErr(detail string) error {
	return apperror.New(apperror.ThirdParty, detail)
}

// statusDetail is the subset of every worked backend's 3rd-party detail
// JSON the refresh-status use case needs to drive the charge state
// machine, without reaching into a specific processor's concrete DTOs.
type statusDetail struct {
	Status        string `json:"status"`
	PaymentIntent string `json:"payment_intent"`
}

// IsCompleted reports whether state's detail JSON indicates terminal
// success (spec.md §4.E "status refresh shows terminal success"),
// independent of which processor backend produced it.
func IsCompleted(state charge.ThirdPartyState) (bool, error) {
	if err := state.Validate(); err != nil {
		return false, err
	}
	var d statusDetail
	if err := json.Unmarshal(state.Detail, &d); err != nil {
		return false, apperror.Wrap(apperror.DataCorruption, "decode 3rd-party status", err)
	}
	switch d.Status {
	case "complete", "succeeded":
		return true, nil
	default:
		return false, nil
	}
}

// PaymentIntentID extracts the underlying payment_intent id from state's
// detail JSON, used by refund finalisation to call Adapter.Refund.
func PaymentIntentID(state charge.ThirdPartyState) (string, error) {
	if err := state.Validate(); err != nil {
		return "", err
	}
	var d statusDetail
	if err := json.Unmarshal(state.Detail, &d); err != nil {
		return "", apperror.Wrap(apperror.DataCorruption, "decode 3rd-party payment_intent", err)
	}
	if d.PaymentIntent == "" {
		return "", apperror.New(apperror.DataCorruption, "3rd-party detail missing payment_intent")
	}
	return d.PaymentIntent, nil
}
