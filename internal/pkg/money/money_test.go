package money_test

import (
	"testing"

	"github.com/eksporyuk/affiliate-api/internal/pkg/money"
)

func TestPercentRounding(t *testing.T) {
	cases := []struct {
		amount int64
		pct    float64
		want   int64
	}{
		{700000, 30, 210000},
		{1000000, 30, 300000},
		{99, 50, 50},  // 49.5 rounds up
		{101, 33, 33}, // 33.33 rounds down
		{1, 50, 1},    // 0.5 rounds up
		{0, 30, 0},
		{-500, 30, 0},
		{500000, 0, 0},
		{500000, -10, 0},
	}
	for _, c := range cases {
		if got := money.Percent(c.amount, c.pct); got != c.want {
			t.Errorf("Percent(%d, %v) = %d, want %d", c.amount, c.pct, got, c.want)
		}
	}
}

func TestFormat(t *testing.T) {
	cases := map[int64]string{
		0:       "Rp0",
		150000:  "Rp150.000",
		1500000: "Rp1.500.000",
		-250000: "-Rp250.000",
		999:     "Rp999",
	}
	for amount, want := range cases {
		if got := money.Format(amount); got != want {
			t.Errorf("Format(%d) = %q, want %q", amount, got, want)
		}
	}
}
