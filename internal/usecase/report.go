package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"ecommerce-core/internal/chargerepo"
	"ecommerce-core/internal/logging"
)

// MerchantReportRequest scopes a charge roll-up to one merchant and time
// window (SPEC_FULL.md §4.Q).
type MerchantReportRequest struct {
	MerchantID uint32
	From       time.Time
	To         time.Time
}

// CurrencyTotals is one currency's roll-up for a merchant.
type CurrencyTotals struct {
	Currency string
	Charged  decimal.Decimal
	Refunded decimal.Decimal
	PaidOut  decimal.Decimal
}

// MerchantReportResult is the per-currency breakdown for the requested
// merchant and window.
type MerchantReportResult struct {
	MerchantID uint32
	Totals     []CurrencyTotals
}

// MerchantReportUseCase implements SPEC_FULL.md §4.Q: the one analytical
// feature spec.md's Non-goals allow, a per-merchant charge roll-up over a
// time range grounded on chargerepo.FetchByTimeRange.
type MerchantReportUseCase struct {
	ChargeRepo chargerepo.Repository
	Log        logging.Logger
}

func (uc *MerchantReportUseCase) Execute(ctx context.Context, req MerchantReportRequest) (MerchantReportResult, error) {
	charges, err := uc.ChargeRepo.FetchByTimeRange(ctx, req.From, req.To)
	if err != nil {
		return MerchantReportResult{}, err
	}

	byCurrency := make(map[string]*CurrencyTotals)
	order := make([]string, 0)
	for _, c := range charges {
		currency := c.Currencies[req.MerchantID].Label
		if currency == "" {
			continue
		}
		for _, l := range c.Lines {
			if l.SellerID != req.MerchantID {
				continue
			}
			t, ok := byCurrency[currency]
			if !ok {
				t = &CurrencyTotals{Currency: currency}
				byCurrency[currency] = t
				order = append(order, currency)
			}
			t.Charged = t.Charged.Add(l.AmountOriginal.Total)
			t.Refunded = t.Refunded.Add(l.AmountRefunded.Total)
		}
	}

	totals := make([]CurrencyTotals, 0, len(order))
	for _, cur := range order {
		t := byCurrency[cur]
		t.PaidOut = t.Charged.Sub(t.Refunded)
		totals = append(totals, *t)
	}

	return MerchantReportResult{MerchantID: req.MerchantID, Totals: totals}, nil
}
