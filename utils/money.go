package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

const CurrencySymbol = "₺"

// FormatCurrency renders an amount the Turkish way: "1.234,50 ₺".
func FormatCurrency(amount decimal.Decimal) string {
	rounded := amount.Round(2)

	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Abs()
	}

	whole, frac, _ := strings.Cut(rounded.StringFixed(2), ".")

	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}

	return sign + grouped.String() + "," + frac + " " + CurrencySymbol
}
