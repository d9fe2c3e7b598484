package usecase

import (
	"context"
	"encoding/json"

	"ecommerce-core/internal/charge"
	"ecommerce-core/internal/processor"
)

// fakeProcessor is an in-memory stand-in for processor.Adapter, letting
// each use-case test script the exact result/error each call should
// produce without reaching a real HTTP-backed processor.
type fakeProcessor struct {
	payInResult  processor.PayInResult
	payInErr     error
	refreshState charge.ThirdPartyState
	refreshErr   error
	refundResult processor.RefundResult
	refundErr    error

	onboardAccountID string
	onboardErr       error
	onboardLinkURL   string
	onboardLinkErr   error
	capability       processor.CapabilityState
	capabilityErr    error
}

func (f *fakeProcessor) PayInStart(ctx context.Context, idempotencyKey string, set processor.ChargeLineSet) (processor.PayInResult, error) {
	return f.payInResult, f.payInErr
}

func (f *fakeProcessor) RefreshStatus(ctx context.Context, state charge.ThirdPartyState) (charge.ThirdPartyState, error) {
	if f.refreshErr != nil {
		return charge.ThirdPartyState{}, f.refreshErr
	}
	return f.refreshState, nil
}

func (f *fakeProcessor) OnboardMerchant(ctx context.Context, profile processor.StoreProfile) (string, error) {
	return f.onboardAccountID, f.onboardErr
}

func (f *fakeProcessor) OnboardLink(ctx context.Context, accountID string, urls processor.OnboardLinkURLs) (string, error) {
	return f.onboardLinkURL, f.onboardLinkErr
}

func (f *fakeProcessor) RefreshOnboard(ctx context.Context, accountID string) (processor.CapabilityState, error) {
	return f.capability, f.capabilityErr
}

func (f *fakeProcessor) CreateTransfer(ctx context.Context, merchantAccount string, currency string, minorAmount int64, transferGroup string) (string, error) {
	return "tr_1", nil
}

func (f *fakeProcessor) Refund(ctx context.Context, idempotencyKey string, paymentIntentID string, minorAmount int64, reason string) (processor.RefundResult, error) {
	return f.refundResult, f.refundErr
}

func stripeState(status, paymentIntent string) charge.ThirdPartyState {
	body, _ := json.Marshal(map[string]string{"status": status, "payment_intent": paymentIntent})
	return charge.ThirdPartyState{Label: charge.ThirdPartyStripe, Detail: body}
}
