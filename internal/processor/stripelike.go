package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ecommerce-core/internal/apperror"
	"ecommerce-core/internal/charge"
)

// HTTPDoer is the minimal surface stripelike needs from an HTTP client,
// letting tests substitute a fake without a live network call.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// checkoutSession mirrors CheckoutSession in
// original_source/.../stripe/resources.rs.
type checkoutSession struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	URL          string `json:"url"`
	PaymentIntent string `json:"payment_intent"`
	Status       string `json:"status"`
}

type connectAccount struct {
	ID               string `json:"id"`
	DetailsSubmitted bool   `json:"details_submitted"`
	PayoutsEnabled   bool   `json:"payouts_enabled"`
	TOSAcceptedDate  *int64 `json:"tos_acceptance_date"`
	TransfersActive  bool   `json:"transfers_active"`
}

type transferResp struct {
	ID string `json:"id"`
}

type refundResp struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	PaymentIntent  string `json:"payment_intent"`
}

// StripeLike implements Adapter against a Stripe-shaped REST API.
type StripeLike struct {
	BaseURL    string
	APIKey     string
	HTTPClient HTTPDoer
	Timeout    time.Duration
}

func NewStripeLike(baseURL, apiKey string, client HTTPDoer, timeout time.Duration) *StripeLike {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &StripeLike{BaseURL: baseURL, APIKey: apiKey, HTTPClient: client, Timeout: timeout}
}

func (s *StripeLike) do(ctx context.Context, method, path string, form url.Values, idempotencyKey string, out any) error {
	ctx, cancel := deadlineFrom(ctx, s.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, s.BaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return thirdPartyErr(fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+s.APIKey)
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return thirdPartyErr("processor call timed out")
		}
		return thirdPartyErr(fmt.Sprintf("transport error: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return thirdPartyErr(fmt.Sprintf("read response: %v", err))
	}
	if resp.StatusCode >= 400 {
		return thirdPartyErr(fmt.Sprintf("status %d: %s", resp.StatusCode, string(body)))
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return thirdPartyErr(fmt.Sprintf("decode response: %v", err))
		}
	}
	return nil
}

func (s *StripeLike) PayInStart(ctx context.Context, idempotencyKey string, set ChargeLineSet) (PayInResult, error) {
	total := int64(0)
	for _, l := range set.Lines {
		minor, err := Represent(l.AmountOriginal, set.Currency)
		if err != nil {
			return PayInResult{}, err
		}
		total += minor
	}
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("amount", fmt.Sprintf("%d", total))
	form.Set("currency", strings.ToUpper(set.Currency))
	form.Set("payment_intent_data[transfer_group]", idempotencyKey)

	var sess checkoutSession
	if err := s.do(ctx, http.MethodPost, "/v1/checkout/sessions", form, idempotencyKey, &sess); err != nil {
		return PayInResult{}, err
	}

	detail, _ := json.Marshal(sess)
	return PayInResult{
		Completed:    sess.Status == "complete",
		ClientSecret: sess.ClientSecret,
		RedirectURL:  sess.URL,
		MethodState:  charge.ThirdPartyState{Label: charge.ThirdPartyStripe, Detail: detail},
	}, nil
}

func (s *StripeLike) RefreshStatus(ctx context.Context, state charge.ThirdPartyState) (charge.ThirdPartyState, error) {
	if err := state.Validate(); err != nil {
		return charge.ThirdPartyState{}, err
	}
	var prior checkoutSession
	if err := json.Unmarshal(state.Detail, &prior); err != nil {
		return charge.ThirdPartyState{}, apperror.Wrap(apperror.DataCorruption, "decode prior method state", err)
	}

	var sess checkoutSession
	if err := s.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+prior.ID, url.Values{}, "", &sess); err != nil {
		return charge.ThirdPartyState{}, err
	}
	detail, _ := json.Marshal(sess)
	return charge.ThirdPartyState{Label: charge.ThirdPartyStripe, Detail: detail}, nil
}

func (s *StripeLike) OnboardMerchant(ctx context.Context, profile StoreProfile) (string, error) {
	form := url.Values{}
	form.Set("type", "express")
	form.Set("country", profile.Country)
	form.Set("business_profile[name]", profile.Name)
	var acct connectAccount
	if err := s.do(ctx, http.MethodPost, "/v1/accounts", form, "", &acct); err != nil {
		return "", err
	}
	return acct.ID, nil
}

func (s *StripeLike) OnboardLink(ctx context.Context, accountID string, urls OnboardLinkURLs) (string, error) {
	form := url.Values{}
	form.Set("account", accountID)
	form.Set("refresh_url", urls.Refresh)
	form.Set("return_url", urls.Return)
	form.Set("type", "account_onboarding")
	var out struct {
		URL string `json:"url"`
	}
	if err := s.do(ctx, http.MethodPost, "/v1/account_links", form, "", &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

func (s *StripeLike) RefreshOnboard(ctx context.Context, accountID string) (CapabilityState, error) {
	var acct connectAccount
	if err := s.do(ctx, http.MethodGet, "/v1/accounts/"+accountID, url.Values{}, "", &acct); err != nil {
		return CapabilityState{}, err
	}
	return CapabilityState{
		DetailsSubmitted: acct.DetailsSubmitted,
		PayoutsEnabled:   acct.PayoutsEnabled,
		TOSAccepted:      acct.TOSAcceptedDate != nil,
		TransfersActive:  acct.TransfersActive,
	}, nil
}

func (s *StripeLike) CreateTransfer(ctx context.Context, merchantAccount, currency string, minorAmount int64, transferGroup string) (string, error) {
	form := url.Values{}
	form.Set("amount", fmt.Sprintf("%d", minorAmount))
	form.Set("currency", strings.ToUpper(currency))
	form.Set("destination", merchantAccount)
	form.Set("transfer_group", transferGroup)
	var out transferResp
	if err := s.do(ctx, http.MethodPost, "/v1/transfers", form, transferGroup, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// Refund rejects a mismatched payment_intent in the response as
// ThirdParty("corrupted-payment-intent:...") per spec.md §4.H.
func (s *StripeLike) Refund(ctx context.Context, idempotencyKey, paymentIntentID string, minorAmount int64, reason string) (RefundResult, error) {
	form := url.Values{}
	form.Set("payment_intent", paymentIntentID)
	form.Set("amount", fmt.Sprintf("%d", minorAmount))
	form.Set("reason", reason)
	var out refundResp
	if err := s.do(ctx, http.MethodPost, "/v1/refunds", form, idempotencyKey, &out); err != nil {
		return RefundResult{}, err
	}
	if out.PaymentIntent != paymentIntentID {
		return RefundResult{}, thirdPartyErr(fmt.Sprintf("corrupted-payment-intent:%s", out.PaymentIntent))
	}
	return RefundResult{RefundID: out.ID, Status: RefundStatus(out.Status)}, nil
}

