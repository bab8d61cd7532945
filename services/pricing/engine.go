// Package pricing derives campaign economics for a variant: the campaign
// and tier adjusted unit price, line totals and progress toward the minimum
// order quantity. Every function is pure and safe for concurrent use.
// Prices are kept at full precision; rounding belongs to the caller.
package pricing

import (
	"math"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CampaignUnitPrice applies the campaign discount percentage to basePrice.
func CampaignUnitPrice(basePrice, discountPercentage decimal.Decimal) (decimal.Decimal, error) {
	if basePrice.IsNegative() {
		return decimal.Zero, invalid("base_price", "must not be negative")
	}
	if discountPercentage.IsNegative() || discountPercentage.GreaterThan(hundred) {
		return decimal.Zero, invalid("campaign_discount_percentage", "must be within [0, 100]")
	}
	// Shift(-2) divides by 100 without the precision cap of Div.
	return basePrice.Mul(hundred.Sub(discountPercentage)).Shift(-2), nil
}

// EffectiveUnitPrice is the campaign price with the tier multiplier stacked
// on top of it.
func EffectiveUnitPrice(basePrice, discountPercentage decimal.Decimal, tier PaymentTier) (decimal.Decimal, error) {
	multiplier, err := tier.Multiplier()
	if err != nil {
		return decimal.Zero, err
	}
	campaignPrice, err := CampaignUnitPrice(basePrice, discountPercentage)
	if err != nil {
		return decimal.Zero, err
	}
	return campaignPrice.Mul(multiplier), nil
}

// Total prices quantity units.
func Total(unitPrice decimal.Decimal, quantity int) (decimal.Decimal, error) {
	if unitPrice.IsNegative() {
		return decimal.Zero, invalid("unit_price", "must not be negative")
	}
	if quantity < 0 {
		return decimal.Zero, invalid("quantity", "must not be negative")
	}
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))), nil
}

// Band buckets progress for display.
type Band string

const (
	BandStarted  Band = "started"
	BandHalfway  Band = "halfway"
	BandClose    Band = "close"
	BandAlmost   Band = "almost"
	BandUnlocked Band = "unlocked"
)

var (
	fifty  = decimal.NewFromInt(50)
	eighty = decimal.NewFromInt(80)
	ninety = decimal.NewFromInt(90)
)

func bandFor(percentage decimal.Decimal) Band {
	switch {
	case percentage.GreaterThanOrEqual(hundred):
		return BandUnlocked
	case percentage.GreaterThanOrEqual(ninety):
		return BandAlmost
	case percentage.GreaterThanOrEqual(eighty):
		return BandClose
	case percentage.GreaterThanOrEqual(fifty):
		return BandHalfway
	default:
		return BandStarted
	}
}

// Progress is a snapshot of a campaign against its target quantity.
type Progress struct {
	Combined   int
	Target     int
	Percentage decimal.Decimal
	Remaining  int
	Achieved   bool
	Band       Band
}

// ComputeProgress combines the committed and requested quantities and
// measures them against target. Percentage is clamped to [0, 100].
func ComputeProgress(current, requested, target int) (Progress, error) {
	if target <= 0 {
		return Progress{}, invalid("target_quantity", "must be positive")
	}
	if current < 0 {
		return Progress{}, invalid("current_quantity", "must not be negative")
	}
	if requested < 0 {
		return Progress{}, invalid("requested_quantity", "must not be negative")
	}
	if current > math.MaxInt-requested {
		return Progress{}, invalid("requested_quantity", "overflows the combined quantity")
	}

	combined := current + requested
	percentage := decimal.NewFromInt(int64(combined)).Mul(hundred).Div(decimal.NewFromInt(int64(target)))
	if percentage.GreaterThan(hundred) {
		percentage = hundred
	}

	remaining := 0
	if combined < target {
		remaining = target - combined
	}

	return Progress{
		Combined:   combined,
		Target:     target,
		Percentage: percentage,
		Remaining:  remaining,
		Achieved:   combined >= target,
		Band:       bandFor(percentage),
	}, nil
}

// Unbounded marks a QuantityBounds without an upper limit.
const Unbounded = math.MaxInt

// QuantityBounds is the inclusive range the +/- controls may move within.
type QuantityBounds struct {
	Lower int
	Upper int
}

func DefaultBounds() QuantityBounds {
	return QuantityBounds{Lower: 1, Upper: Unbounded}
}

// StockBounds limits the quantity to what is in stock.
func StockBounds(stock int) QuantityBounds {
	if stock < 0 {
		stock = 0
	}
	return QuantityBounds{Lower: 1, Upper: stock}
}

func (b QuantityBounds) clamp(q int) int {
	if q > b.Upper {
		return b.Upper
	}
	if q < b.Lower {
		return b.Lower
	}
	return q
}

// AdjustRequestedQuantity moves current by delta. A step past Upper is
// refused and leaves the quantity where it was; a step below Lower stops at
// Lower. A range with Upper < Lower is empty and yields Upper.
func AdjustRequestedQuantity(current, delta int, bounds QuantityBounds) int {
	if bounds.Upper < bounds.Lower {
		return bounds.Upper
	}
	if delta > 0 && current > bounds.Upper-delta {
		return bounds.clamp(current)
	}
	if delta < 0 && current < math.MinInt-delta {
		return bounds.Lower
	}
	return bounds.clamp(current + delta)
}
