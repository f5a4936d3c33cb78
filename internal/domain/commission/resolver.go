package commission

import (
	"github.com/eksporyuk/affiliate-api/internal/domain/catalog"
	"github.com/eksporyuk/affiliate-api/internal/pkg/money"
)

// Resolution is the outcome of a commission computation, with enough
// audit detail to explain why the amount was chosen.
type Resolution struct {
	Amount      int64
	RateApplied float64
	Type        catalog.CommissionType
	Source      string
}

const (
	// SourceCatalog marks amounts computed from the item's own
	// commission fields. Live checkout always resolves here.
	SourceCatalog = "catalog"
)

// Resolve computes the commission owed for a sale of item at saleAmount
// using the catalog fields only. Resolution is total: misconfigured
// items resolve to zero, never to an error. saleAmount is the price the
// buyer actually paid; coupons make it differ from the catalog price.
func Resolve(item *catalog.SellableItem, saleAmount int64) Resolution {
	res := Resolution{Type: catalog.CommissionPercentage, Source: SourceCatalog}
	if item == nil || saleAmount <= 0 || !item.CommissionEnabled || item.CommissionRate <= 0 {
		return res
	}
	res.Type = item.CommissionType
	res.RateApplied = item.CommissionRate

	switch item.CommissionType {
	case catalog.CommissionFlat:
		// A flat commission can never exceed what was actually paid.
		flat := int64(item.CommissionRate)
		if flat > saleAmount {
			flat = saleAmount
		}
		res.Amount = flat
	case catalog.CommissionPercentage:
		if item.CommissionRate > 100 {
			return Resolution{Type: item.CommissionType, Source: SourceCatalog}
		}
		res.Amount = money.Percent(saleAmount, item.CommissionRate)
	}
	return res
}

// ResolveWithOverrides is the import/reconciliation path. When the item
// carries a legacy external id present in the override table, the legacy
// flat amount wins over the catalog fields: the legacy system's rules
// were not always captured faithfully at import time, so the override
// table is treated as ground truth for historical sales. Live checkout
// must never pass an override table here.
func ResolveWithOverrides(item *catalog.SellableItem, saleAmount int64, overrides *OverrideTable) Resolution {
	if overrides != nil && item != nil && item.LegacyExternalID.Valid {
		if entry, ok := overrides.Lookup(item.LegacyExternalID.Int64); ok {
			amount := entry.Amount
			if amount > saleAmount {
				amount = saleAmount
			}
			if amount < 0 {
				amount = 0
			}
			return Resolution{
				Amount:      amount,
				RateApplied: float64(entry.Amount),
				Type:        catalog.CommissionFlat,
				Source:      entry.Source,
			}
		}
	}
	return Resolve(item, saleAmount)
}
