// Package money implements currency-aware amounts with exact decimal
// arithmetic, grounded on the processor adapter's amount conversion in
// original_source/services/payment/src/adapter/processor/stripe/resources.rs
// (Charge3partyStripeModel::amount_represent) and spec.md §4.A.
package money

import (
	"math"

	"github.com/shopspring/decimal"

	"ecommerce-core/internal/apperror"
)

// Scale maps a currency label to the number of decimal places its minor
// unit represents (USD=2, JPY=0, ...). Unknown currencies default to 2,
// mirroring the conservative fallback a real deployment's currency table
// would apply before failing MissingCurrency elsewhere.
var Scale = map[string]int32{
	"USD": 2,
	"EUR": 2,
	"GBP": 2,
	"TWD": 2,
	"JPY": 0,
	"IDR": 0,
	"INR": 2,
	"THB": 2,
}

func ScaleOf(currency string) int32 {
	if s, ok := Scale[currency]; ok {
		return s
	}
	return 2
}

// Snapshot is the currency+rate pair carried by each party on an order,
// taken at order creation and never mutated (spec.md §3).
type Snapshot struct {
	Label        string
	ExchangeRate decimal.Decimal
}

// Amount is the {unit, total, qty} triple from spec.md §3. total == unit*qty
// is not strictly enforced — rounding and promotions allow drift — callers
// that need it check `total == unit*qty` within the currency's scale with
// ConsistentTotal (spec.md §4.F step 1).
type Amount struct {
	Unit  decimal.Decimal
	Total decimal.Decimal
	Qty   uint32
}

func NewAmount(unit decimal.Decimal, qty uint32) Amount {
	total := unit.Mul(decimal.NewFromInt(int64(qty)))
	return Amount{Unit: unit, Total: total, Qty: qty}
}

// Equal is exact decimal equality — no float conversion in the core path.
func (a Amount) Equal(b Amount) bool {
	return a.Unit.Equal(b.Unit) && a.Total.Equal(b.Total) && a.Qty == b.Qty
}

// ConsistentTotal reports whether Total equals Unit*Qty within the given
// currency's scale (spec.md §4.F: "per-line amount.total == amount.unit ×
// qty within currency scale").
func (a Amount) ConsistentTotal(currency string) bool {
	scale := ScaleOf(currency)
	expect := a.Unit.Mul(decimal.NewFromInt(int64(a.Qty))).Round(scale)
	got := a.Total.Round(scale)
	return expect.Equal(got)
}

// Represent converts a decimal amount to minor units for a given currency,
// rounding toward zero, per spec.md §4.A. It fails AmountOverflow if the
// result does not fit in a signed 64-bit integer.
func Represent(amount decimal.Decimal, currency string) (int64, error) {
	scale := ScaleOf(currency)
	factor := decimal.New(1, scale)
	minor := amount.Mul(factor).Truncate(0)

	maxInt64 := decimal.NewFromInt(math.MaxInt64)
	minInt64 := decimal.NewFromInt(math.MinInt64)
	if minor.GreaterThan(maxInt64) || minor.LessThan(minInt64) {
		return 0, apperror.New(apperror.AmountOverflow, "represent: exceeds int64 range")
	}
	return minor.IntPart(), nil
}

// FromMinor is the inverse of Represent, used when parsing processor
// responses back into decimal amounts.
func FromMinor(minor int64, currency string) decimal.Decimal {
	scale := ScaleOf(currency)
	factor := decimal.New(1, scale)
	return decimal.NewFromInt(minor).Div(factor)
}
