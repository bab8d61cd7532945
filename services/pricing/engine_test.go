package pricing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}

func TestEffectiveUnitPriceScenarios(t *testing.T) {
	campaign, err := CampaignUnitPrice(dec("10.000"), dec("20"))
	require.NoError(t, err)
	assertDecimal(t, "8.000", campaign)

	earlyBird, err := EffectiveUnitPrice(dec("10.000"), dec("20"), TierEarlyBird)
	require.NoError(t, err)
	assertDecimal(t, "7.600", earlyBird)

	vip, err := EffectiveUnitPrice(dec("10.000"), dec("20"), TierVIP)
	require.NoError(t, err)
	assertDecimal(t, "6.000", vip)

	free, err := EffectiveUnitPrice(dec("10.000"), dec("20"), TierFree)
	require.NoError(t, err)
	assertDecimal(t, "8.000", free)
}

func TestEffectiveUnitPriceFreeTierIsCampaignPrice(t *testing.T) {
	prices := []string{"0", "0.001", "1.5", "10.000", "12.345", "999.999"}
	discounts := []string{"0", "0.5", "7", "20", "33.333", "99.99", "100"}

	for _, p := range prices {
		for _, d := range discounts {
			got, err := EffectiveUnitPrice(dec(p), dec(d), TierFree)
			require.NoError(t, err)
			want := dec(p).Mul(decimal.NewFromInt(1).Sub(dec(d).Div(decimal.NewFromInt(100))))
			assertDecimal(t, want.String(), got)
		}
	}
}

func TestEffectiveUnitPriceTierOrdering(t *testing.T) {
	prices := []string{"0", "3.250", "10.000", "149.990"}
	discounts := []string{"0", "15", "50", "100"}

	for _, p := range prices {
		for _, d := range discounts {
			free, err := EffectiveUnitPrice(dec(p), dec(d), TierFree)
			require.NoError(t, err)
			early, err := EffectiveUnitPrice(dec(p), dec(d), TierEarlyBird)
			require.NoError(t, err)
			vip, err := EffectiveUnitPrice(dec(p), dec(d), TierVIP)
			require.NoError(t, err)

			assert.True(t, vip.LessThanOrEqual(early), "vip <= early_bird for %s/%s", p, d)
			assert.True(t, early.LessThanOrEqual(free), "early_bird <= free for %s/%s", p, d)
		}
	}
}

func TestEffectiveUnitPriceInvalidInput(t *testing.T) {
	cases := []struct {
		name     string
		price    string
		discount string
		tier     PaymentTier
		field    string
	}{
		{"negative price", "-0.001", "10", TierFree, "base_price"},
		{"negative discount", "10", "-1", TierFree, "campaign_discount_percentage"},
		{"discount above 100", "10", "100.01", TierVIP, "campaign_discount_percentage"},
		{"zero tier", "10", "10", PaymentTier(0), "tier"},
		{"unknown tier", "10", "10", PaymentTier(42), "tier"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := EffectiveUnitPrice(dec(tc.price), dec(tc.discount), tc.tier)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput))

			var inputErr *InputError
			require.True(t, errors.As(err, &inputErr))
			assert.Equal(t, tc.field, inputErr.Field)
		})
	}
}

func TestTotal(t *testing.T) {
	got, err := Total(dec("7.6"), 5)
	require.NoError(t, err)
	assertDecimal(t, "38", got)

	zero, err := Total(dec("7.6"), 0)
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	_, err = Total(dec("7.6"), -1)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = Total(dec("-1"), 1)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTotalKeepsFullPrecision(t *testing.T) {
	prices := []string{"10.000", "3.333", "0.125", "17.77"}
	discounts := []string{"0", "12.5", "20", "33"}

	for _, p := range prices {
		for _, d := range discounts {
			for _, tier := range Tiers() {
				unit, err := EffectiveUnitPrice(dec(p), dec(d), tier)
				require.NoError(t, err)
				for _, q := range []int{0, 1, 3, 7, 1000} {
					total, err := Total(unit, q)
					require.NoError(t, err)
					assert.True(t, unit.Mul(decimal.NewFromInt(int64(q))).Equal(total))
				}
			}
		}
	}

	// 9.999 * 0.67 * 0.95 has more places than the KD display keeps.
	unit, err := EffectiveUnitPrice(dec("9.999"), dec("33"), TierEarlyBird)
	require.NoError(t, err)
	assertDecimal(t, "6.36436350", unit)
}

func TestComputeProgressScenarios(t *testing.T) {
	p, err := ComputeProgress(30, 5, 50)
	require.NoError(t, err)
	assertDecimal(t, "70", p.Percentage)
	assert.Equal(t, 15, p.Remaining)
	assert.False(t, p.Achieved)
	assert.Equal(t, 35, p.Combined)
	assert.Equal(t, BandHalfway, p.Band)

	p, err = ComputeProgress(48, 5, 50)
	require.NoError(t, err)
	assertDecimal(t, "100", p.Percentage)
	assert.Equal(t, 0, p.Remaining)
	assert.True(t, p.Achieved)
	assert.Equal(t, BandUnlocked, p.Band)
}

func TestComputeProgressClampsAndAchieves(t *testing.T) {
	for _, target := range []int{1, 3, 7, 50, 1000} {
		for _, current := range []int{0, 1, target / 2, target - 1, target, 10 * target} {
			for _, requested := range []int{0, 1, target} {
				p, err := ComputeProgress(current, requested, target)
				require.NoError(t, err)
				assert.True(t, p.Percentage.GreaterThanOrEqual(decimal.Zero))
				assert.True(t, p.Percentage.LessThanOrEqual(decimal.NewFromInt(100)))
				assert.Equal(t, current+requested >= target, p.Achieved)
				assert.GreaterOrEqual(t, p.Remaining, 0)
			}
		}
	}
}

func TestComputeProgressInvalidInput(t *testing.T) {
	_, err := ComputeProgress(1, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ComputeProgress(1, 1, -5)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ComputeProgress(-1, 1, 10)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ComputeProgress(1, -1, 10)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ComputeProgress(Unbounded, 1, 10)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestProgressBands(t *testing.T) {
	cases := map[int]Band{
		0:   BandStarted,
		49:  BandStarted,
		50:  BandHalfway,
		79:  BandHalfway,
		80:  BandClose,
		89:  BandClose,
		90:  BandAlmost,
		99:  BandAlmost,
		100: BandUnlocked,
		250: BandUnlocked,
	}
	for combined, want := range cases {
		p, err := ComputeProgress(combined, 0, 100)
		require.NoError(t, err)
		assert.Equal(t, want, p.Band, "combined %d", combined)
	}
}

func TestAdjustRequestedQuantity(t *testing.T) {
	stock := StockBounds(5)

	assert.Equal(t, 2, AdjustRequestedQuantity(1, 1, DefaultBounds()))
	assert.Equal(t, 1, AdjustRequestedQuantity(1, -1, DefaultBounds()))
	assert.Equal(t, 1, AdjustRequestedQuantity(4, -10, DefaultBounds()))

	assert.Equal(t, 5, AdjustRequestedQuantity(4, 1, stock))
	// The increment past stock is refused rather than clamped.
	assert.Equal(t, 5, AdjustRequestedQuantity(5, 1, stock))
	assert.Equal(t, 3, AdjustRequestedQuantity(3, 4, stock))

	// Zero lower bound backs the join screen, which may go down to nothing.
	join := QuantityBounds{Lower: 0, Upper: Unbounded}
	assert.Equal(t, 0, AdjustRequestedQuantity(1, -1, join))
	assert.Equal(t, 0, AdjustRequestedQuantity(0, -1, join))

	assert.Equal(t, Unbounded, AdjustRequestedQuantity(Unbounded, 1, DefaultBounds()))
	assert.Equal(t, 0, AdjustRequestedQuantity(0, 1, StockBounds(0)))
}

func TestAdjustRequestedQuantityStaysWithinBounds(t *testing.T) {
	bounds := []QuantityBounds{
		DefaultBounds(),
		StockBounds(1),
		StockBounds(10),
		{Lower: 0, Upper: 3},
		{Lower: 2, Upper: 2},
	}
	for _, b := range bounds {
		for current := -3; current <= 15; current++ {
			for _, delta := range []int{-100, -2, -1, 0, 1, 2, 100} {
				got := AdjustRequestedQuantity(current, delta, b)
				assert.GreaterOrEqual(t, got, b.Lower)
				assert.LessOrEqual(t, got, b.Upper)
			}
		}
	}
}
