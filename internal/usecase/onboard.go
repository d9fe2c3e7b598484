package usecase

import (
	"context"

	"ecommerce-core/internal/logging"
	"ecommerce-core/internal/processor"
)

// OnboardMerchantRequest starts a new merchant's connect-account
// onboarding (spec.md §4.H onboard_merchant/onboard_link).
type OnboardMerchantRequest struct {
	Profile processor.StoreProfile
	Links   processor.OnboardLinkURLs
}

// OnboardMerchantResult carries the account id plus the hosted onboarding
// URL the client redirects the merchant to.
type OnboardMerchantResult struct {
	AccountID string
	URL       string
}

// OnboardMerchantUseCase wraps the processor's onboard_merchant +
// onboard_link pair into a single client-facing call.
type OnboardMerchantUseCase struct {
	Processor processor.Adapter
	Log       logging.Logger
}

func (uc *OnboardMerchantUseCase) Execute(ctx context.Context, req OnboardMerchantRequest) (OnboardMerchantResult, error) {
	accountID, err := uc.Processor.OnboardMerchant(ctx, req.Profile)
	if err != nil {
		uc.Log.Event("onboard_merchant failed", err)
		return OnboardMerchantResult{}, err
	}
	url, err := uc.Processor.OnboardLink(ctx, accountID, req.Links)
	if err != nil {
		uc.Log.Event("onboard_link failed", err)
		return OnboardMerchantResult{}, err
	}
	return OnboardMerchantResult{AccountID: accountID, URL: url}, nil
}

// RefreshOnboardUseCase polls the processor for a merchant's current
// capability state (spec.md §4.H refresh_onboard), used by both a client
// "finish onboarding" redirect and a periodic capability-recheck job.
type RefreshOnboardUseCase struct {
	Processor processor.Adapter
	Log       logging.Logger
}

// Execute reports whether accountID is now fully onboarded, matching
// spec.md §4.H's conjunction exactly via
// processor.CapabilityState.OnboardingComplete.
func (uc *RefreshOnboardUseCase) Execute(ctx context.Context, accountID string) (processor.CapabilityState, bool, error) {
	state, err := uc.Processor.RefreshOnboard(ctx, accountID)
	if err != nil {
		uc.Log.Event("refresh_onboard failed", err)
		return processor.CapabilityState{}, false, err
	}
	return state, state.OnboardingComplete(), nil
}
