package pricing

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// PaymentTier is the commitment level a participant picks when joining or
// starting a campaign. The zero value is not a valid tier.
type PaymentTier int

const (
	TierFree PaymentTier = iota + 1
	TierEarlyBird
	TierVIP
)

var tierMultipliers = map[PaymentTier]decimal.Decimal{
	TierFree:      decimal.NewFromInt(1),
	TierEarlyBird: decimal.RequireFromString("0.95"),
	TierVIP:       decimal.RequireFromString("0.75"),
}

// Accepted identifiers. The client sends payment_option values
// (free/basic/premium) on join and deal_type values (early_bird/vip_deal)
// on start.
var tierAliases = map[string]PaymentTier{
	"free":       TierFree,
	"basic":      TierEarlyBird,
	"early_bird": TierEarlyBird,
	"earlybird":  TierEarlyBird,
	"premium":    TierVIP,
	"vip_deal":   TierVIP,
	"vip":        TierVIP,
}

// Tiers lists every tier, cheapest multiplier last.
func Tiers() []PaymentTier {
	return []PaymentTier{TierFree, TierEarlyBird, TierVIP}
}

// ParseTier resolves a wire identifier to a tier.
func ParseTier(s string) (PaymentTier, error) {
	tier, ok := tierAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, invalid("tier", "unknown payment tier "+strconv.Quote(s))
	}
	return tier, nil
}

func (t PaymentTier) Valid() bool {
	_, ok := tierMultipliers[t]
	return ok
}

// Multiplier returns the factor applied on top of the campaign price.
func (t PaymentTier) Multiplier() (decimal.Decimal, error) {
	m, ok := tierMultipliers[t]
	if !ok {
		return decimal.Zero, invalid("tier", "not in the closed tier set")
	}
	return m, nil
}

func (t PaymentTier) String() string {
	switch t {
	case TierFree:
		return "free"
	case TierEarlyBird:
		return "early_bird"
	case TierVIP:
		return "vip"
	default:
		return "unknown"
	}
}

func (t PaymentTier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, invalid("tier", "not in the closed tier set")
	}
	return []byte(t.String()), nil
}

func (t *PaymentTier) UnmarshalText(text []byte) error {
	parsed, err := ParseTier(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
