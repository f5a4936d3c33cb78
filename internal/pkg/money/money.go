package money

import (
	"fmt"
	"math"
)

// Amounts are whole Indonesian rupiah stored as int64. There is no
// fractional minor unit, so 1 is the smallest representable value.

// Percent computes pct% of amount, rounding half-up to the nearest rupiah.
// Negative inputs clamp to zero; commission math never produces debits.
func Percent(amount int64, pct float64) int64 {
	if amount <= 0 || pct <= 0 {
		return 0
	}
	v := math.Floor(float64(amount)*pct/100.0 + 0.5)
	return int64(v)
}

// Format renders an amount for logs and reports, e.g. "Rp1.500.000".
func Format(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	s := fmt.Sprintf("%d", amount)
	out := make([]byte, 0, len(s)+len(s)/3)
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, '.')
		}
		out = append(out, c)
	}
	if neg {
		return "-Rp" + string(out)
	}
	return "Rp" + string(out)
}
