package commission_test

import (
	"database/sql"
	"strings"
	"testing"

	"github.com/eksporyuk/affiliate-api/internal/domain/catalog"
	"github.com/eksporyuk/affiliate-api/internal/domain/commission"
)

func flatItem(price, flat int64) *catalog.SellableItem {
	return &catalog.SellableItem{
		Type:              catalog.ItemTypeMembership,
		Price:             price,
		CommissionEnabled: true,
		CommissionType:    catalog.CommissionFlat,
		CommissionRate:    float64(flat),
	}
}

func pctItem(price int64, pct float64) *catalog.SellableItem {
	return &catalog.SellableItem{
		Type:              catalog.ItemTypeMembership,
		Price:             price,
		CommissionEnabled: true,
		CommissionType:    catalog.CommissionPercentage,
		CommissionRate:    pct,
	}
}

func TestResolveFlat(t *testing.T) {
	// Lifetime membership: price 500000, flat commission 150000.
	res := commission.Resolve(flatItem(500000, 150000), 500000)
	if res.Amount != 150000 {
		t.Fatalf("expected 150000, got %d", res.Amount)
	}
	if res.Type != catalog.CommissionFlat || res.Source != commission.SourceCatalog {
		t.Fatalf("unexpected resolution metadata: %+v", res)
	}
}

func TestResolveFlatCappedAtSaleAmount(t *testing.T) {
	// Heavy discount: flat 150000 but buyer paid 100000.
	for _, saleAmount := range []int64{0, 1, 99999, 100000, 150000, 150001} {
		res := commission.Resolve(flatItem(500000, 150000), saleAmount)
		if res.Amount > saleAmount {
			t.Errorf("flat commission %d exceeds sale amount %d", res.Amount, saleAmount)
		}
	}
}

func TestResolvePercentageOfPaidAmount(t *testing.T) {
	// 30% of the discounted 700000 actually paid, not of the
	// 1000000 catalog price.
	res := commission.Resolve(pctItem(1000000, 30), 700000)
	if res.Amount != 210000 {
		t.Fatalf("expected 210000, got %d", res.Amount)
	}
	if res.RateApplied != 30 {
		t.Fatalf("expected rate 30, got %g", res.RateApplied)
	}
}

func TestResolvePercentageBounds(t *testing.T) {
	for _, pct := range []float64{0, 0.5, 10, 33.3, 50, 99.9, 100} {
		for _, saleAmount := range []int64{0, 1, 999, 700000, 5000000} {
			res := commission.Resolve(pctItem(saleAmount, pct), saleAmount)
			if res.Amount < 0 || res.Amount > saleAmount {
				t.Errorf("pct=%g amount=%d: commission %d out of bounds", pct, saleAmount, res.Amount)
			}
		}
	}
}

func TestResolveDegradesToZero(t *testing.T) {
	disabled := pctItem(500000, 30)
	disabled.CommissionEnabled = false

	cases := map[string]commission.Resolution{
		"nil item":       commission.Resolve(nil, 500000),
		"disabled":       commission.Resolve(disabled, 500000),
		"zero rate":      commission.Resolve(pctItem(500000, 0), 500000),
		"negative rate":  commission.Resolve(pctItem(500000, -5), 500000),
		"rate above 100": commission.Resolve(pctItem(500000, 120), 500000),
		"zero sale":      commission.Resolve(pctItem(500000, 30), 0),
		"negative sale":  commission.Resolve(pctItem(500000, 30), -100),
	}
	for name, res := range cases {
		if res.Amount != 0 {
			t.Errorf("%s: expected 0, got %d", name, res.Amount)
		}
	}
}

func TestResolveWithOverridesPrefersLegacyTable(t *testing.T) {
	table, err := commission.ParseOverrideTable(strings.NewReader(`{
		"version": "2024-06",
		"entries": {
			"179":   {"amount": 250000, "source": "mysql-dump"},
			"13401": {"amount": 325000, "source": "mysql-dump"},
			"8684":  {"amount": 250000, "source": "api-snapshot"}
		}
	}`))
	if err != nil {
		t.Fatalf("parse override table: %v", err)
	}
	if table.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", table.Len())
	}

	item := pctItem(1000000, 30)
	item.LegacyExternalID = sql.NullInt64{Int64: 179, Valid: true}

	res := commission.ResolveWithOverrides(item, 1000000, table)
	if res.Amount != 250000 {
		t.Fatalf("expected override amount 250000, got %d", res.Amount)
	}
	if res.Source != "mysql-dump" {
		t.Fatalf("expected provenance mysql-dump, got %q", res.Source)
	}
	if res.Type != catalog.CommissionFlat {
		t.Fatalf("override resolutions are flat, got %s", res.Type)
	}
}

func TestResolveWithOverridesCapAndFallback(t *testing.T) {
	table, err := commission.ParseOverrideTable(strings.NewReader(`{
		"version": "2024-06",
		"entries": {"3840": {"amount": 300000, "source": "mysql-dump"}}
	}`))
	if err != nil {
		t.Fatalf("parse override table: %v", err)
	}

	// Override capped at what was paid.
	item := pctItem(1000000, 30)
	item.LegacyExternalID = sql.NullInt64{Int64: 3840, Valid: true}
	if res := commission.ResolveWithOverrides(item, 200000, table); res.Amount != 200000 {
		t.Fatalf("expected capped 200000, got %d", res.Amount)
	}

	// Unknown legacy id falls back to catalog fields.
	other := pctItem(1000000, 30)
	other.LegacyExternalID = sql.NullInt64{Int64: 99999, Valid: true}
	if res := commission.ResolveWithOverrides(other, 700000, table); res.Amount != 210000 {
		t.Fatalf("expected catalog fallback 210000, got %d", res.Amount)
	}

	// No legacy id at all behaves like live resolution.
	if res := commission.ResolveWithOverrides(pctItem(1000000, 30), 700000, table); res.Amount != 210000 {
		t.Fatalf("expected 210000, got %d", res.Amount)
	}

	// Nil table is valid outside reconciliation.
	if res := commission.ResolveWithOverrides(item, 200000, nil); res.Amount != 60000 {
		t.Fatalf("expected 60000 from catalog, got %d", res.Amount)
	}
}
