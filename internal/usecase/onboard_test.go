package usecase

import (
	"context"
	"testing"

	"ecommerce-core/internal/logging"
	"ecommerce-core/internal/processor"
)

func TestOnboardMerchantExecute(t *testing.T) {
	uc := &OnboardMerchantUseCase{
		Processor: &fakeProcessor{onboardAccountID: "acct_1", onboardLinkURL: "https://onboard.example/acct_1"},
		Log:       logging.New("payment", "onboard-test"),
	}
	res, err := uc.Execute(context.Background(), OnboardMerchantRequest{
		Profile: processor.StoreProfile{StoreID: 17, Name: "Acme", Country: "US"},
		Links:   processor.OnboardLinkURLs{Refresh: "https://r", Return: "https://ret"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.AccountID != "acct_1" || res.URL == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRefreshOnboardReportsCompletion(t *testing.T) {
	uc := &RefreshOnboardUseCase{
		Processor: &fakeProcessor{capability: processor.CapabilityState{
			DetailsSubmitted: true, PayoutsEnabled: true, TOSAccepted: true, TransfersActive: true,
		}},
		Log: logging.New("payment", "onboard-test"),
	}
	_, complete, err := uc.Execute(context.Background(), "acct_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !complete {
		t.Fatal("expected onboarding complete")
	}
}

func TestRefreshOnboardReportsIncomplete(t *testing.T) {
	uc := &RefreshOnboardUseCase{
		Processor: &fakeProcessor{capability: processor.CapabilityState{DetailsSubmitted: true}},
		Log:       logging.New("payment", "onboard-test"),
	}
	_, complete, err := uc.Execute(context.Background(), "acct_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if complete {
		t.Fatal("expected onboarding incomplete")
	}
}
