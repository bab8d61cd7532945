package utils

import (
	"github.com/shopspring/decimal"
)

// CurrencyPlaces is the number of minor-unit digits of the Kuwaiti dinar.
const CurrencyPlaces = 3

// RoundKD rounds half-up to fils. Amounts are rounded only when they are
// stored or leave the service.
func RoundKD(value decimal.Decimal) decimal.Decimal {
	return value.Round(CurrencyPlaces)
}

// FormatKD renders an amount with exactly three decimals, e.g. "7.600".
func FormatKD(value decimal.Decimal) string {
	return value.StringFixed(CurrencyPlaces)
}

// FormatPercent renders a progress percentage with two decimals.
func FormatPercent(value decimal.Decimal) string {
	return value.StringFixed(2)
}
