// Package money holds the decimal helpers used by every monetary rollup.
// Amounts are accumulated as decimal.Decimal and only rounded to cents when an output value is built.
package money

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of decimal places of every monetary output.
const Places = 2

var Zero = decimal.Zero

// Dec converts `f` to a decimal. NaN and infinities count as zero.
func Dec(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

// Float rounds `d` to cents and converts it back to a float64.
func Float(d decimal.Decimal) float64 {
	return d.Round(Places).InexactFloat64()
}

// Round rounds `f` to cents (half away from zero).
func Round(f float64) float64 {
	return Float(Dec(f))
}

// Sum adds up `fs` as decimals.
func Sum(fs ...float64) decimal.Decimal {
	total := decimal.Zero
	for _, f := range fs {
		total = total.Add(Dec(f))
	}
	return total
}

// FormatFR formats `f` with 2 decimals and a comma separator, eg. 1234.5 -> "1234,50".
func FormatFR(f float64) string {
	return strings.Replace(Dec(f).StringFixed(Places), ".", ",", 1)
}
