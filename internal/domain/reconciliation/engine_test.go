package reconciliation

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/eksporyuk/affiliate-api/internal/domain/affiliate"
	"github.com/eksporyuk/affiliate-api/internal/domain/catalog"
	"github.com/eksporyuk/affiliate-api/internal/domain/commission"
)

type fakeLedger struct {
	entries []commission.Entry
}

func (f *fakeLedger) ListByExternalTransactionID(_ context.Context, externalID string) ([]commission.Entry, error) {
	var out []commission.Entry
	for _, e := range f.entries {
		if e.ExternalTransactionID.Valid && e.ExternalTransactionID.String == externalID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeLedger) ListWithExternalRef(context.Context) ([]commission.Entry, error) {
	var out []commission.Entry
	for _, e := range f.entries {
		if e.ExternalTransactionID.Valid {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeItems struct {
	byLegacyID map[int64]*catalog.SellableItem
}

func (f *fakeItems) GetByLegacyExternalID(_ context.Context, legacyID int64) (*catalog.SellableItem, error) {
	if item, ok := f.byLegacyID[legacyID]; ok {
		return item, nil
	}
	return nil, catalog.ErrItemNotFound
}

type fakeAffiliates struct {
	byLegacyID map[int64]*affiliate.Identity
}

func (f *fakeAffiliates) GetByLegacyExternalID(_ context.Context, legacyID int64) (*affiliate.Identity, error) {
	if ident, ok := f.byLegacyID[legacyID]; ok {
		return ident, nil
	}
	return nil, affiliate.ErrNotFound
}

func approvedIdentity(legacyID int64) *affiliate.Identity {
	return &affiliate.Identity{
		ID:               uuid.New(),
		UserID:           uuid.New(),
		ReferralCode:     "AFF" + uuid.NewString()[:8],
		ApprovalStatus:   affiliate.StatusApproved,
		LegacyExternalID: sql.NullInt64{Int64: legacyID, Valid: true},
	}
}

func flatItem(legacyID, rate int64) *catalog.SellableItem {
	return &catalog.SellableItem{
		ID:                uuid.New(),
		Type:              catalog.ItemTypeProduct,
		Price:             500000,
		CommissionEnabled: true,
		CommissionType:    catalog.CommissionFlat,
		CommissionRate:    float64(rate),
		LegacyExternalID:  sql.NullInt64{Int64: legacyID, Valid: true},
	}
}

func ledgerEntry(extID string, amount int64, source string, createdAt time.Time) commission.Entry {
	return commission.Entry{
		ID:                    uuid.New(),
		TransactionID:         uuid.New(),
		AffiliateIdentityID:   uuid.New(),
		CommissionAmount:      amount,
		Source:                source,
		ExternalTransactionID: sql.NullString{String: extID, Valid: true},
		CreatedAt:             createdAt,
	}
}

func newTestEngine(ledger *fakeLedger, items *fakeItems, affs *fakeAffiliates, epsilon int64) *Engine {
	if items == nil {
		items = &fakeItems{byLegacyID: map[int64]*catalog.SellableItem{}}
	}
	if affs == nil {
		affs = &fakeAffiliates{byLegacyID: map[int64]*affiliate.Identity{}}
	}
	return NewEngine(ledger, items, affs, nil, epsilon)
}

func TestEngineMatchedWithinEpsilon(t *testing.T) {
	ledger := &fakeLedger{entries: []commission.Entry{
		ledgerEntry("ORD-1", 150001, "mysql-dump", time.Now()),
	}}
	items := &fakeItems{byLegacyID: map[int64]*catalog.SellableItem{
		179: flatItem(179, 150000),
	}}
	affs := &fakeAffiliates{byLegacyID: map[int64]*affiliate.Identity{
		42: approvedIdentity(42),
	}}

	engine := newTestEngine(ledger, items, affs, 1)
	src := NewSliceSource("test", []AuthoritativeRecord{{
		ExternalTransactionID: "ORD-1",
		SellableExternalID:    179,
		AffiliateExternalID:   42,
		SaleAmount:            500000,
		Status:                "SUCCESS",
		CommissionAmount:      150000,
	}})

	findings, sum, err := engine.Reconcile(context.Background(), src)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if sum.Matched != 1 {
		t.Errorf("matched = %d, want 1", sum.Matched)
	}
	if len(findings) != 0 {
		t.Errorf("findings = %d, want 0", len(findings))
	}
}

func TestEngineMissing(t *testing.T) {
	items := &fakeItems{byLegacyID: map[int64]*catalog.SellableItem{
		13401: flatItem(13401, 325000),
	}}
	affs := &fakeAffiliates{byLegacyID: map[int64]*affiliate.Identity{
		42: approvedIdentity(42),
	}}

	engine := newTestEngine(&fakeLedger{}, items, affs, 1)
	src := NewSliceSource("test", []AuthoritativeRecord{{
		ExternalTransactionID: "ORD-2",
		SellableExternalID:    13401,
		AffiliateExternalID:   42,
		SaleAmount:            600000,
		Status:                "completed",
		CommissionAmount:      325000,
	}})

	findings, sum, err := engine.Reconcile(context.Background(), src)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if sum.Missing != 1 || len(findings) != 1 {
		t.Fatalf("missing = %d, findings = %d; want 1 and 1", sum.Missing, len(findings))
	}
	f := findings[0]
	if f.Row.State != StateMissing {
		t.Errorf("state = %s, want MISSING", f.Row.State)
	}
	if f.Expected.Amount != 325000 {
		t.Errorf("expected amount = %d, want 325000", f.Expected.Amount)
	}
	if f.Affiliate == nil {
		t.Error("finding should carry the resolved affiliate for repair")
	}
}

func TestEngineZeroCommissionNoRowIsMatched(t *testing.T) {
	// A legitimately-zero sale has no ledger row by policy and must not
	// be reported missing.
	affs := &fakeAffiliates{byLegacyID: map[int64]*affiliate.Identity{
		42: approvedIdentity(42),
	}}
	item := flatItem(99, 150000)
	item.CommissionEnabled = false
	items := &fakeItems{byLegacyID: map[int64]*catalog.SellableItem{99: item}}

	engine := newTestEngine(&fakeLedger{}, items, affs, 1)
	src := NewSliceSource("test", []AuthoritativeRecord{{
		ExternalTransactionID: "ORD-3",
		SellableExternalID:    99,
		AffiliateExternalID:   42,
		SaleAmount:            500000,
		Status:                "SUCCESS",
	}})

	findings, sum, err := engine.Reconcile(context.Background(), src)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if sum.Matched != 1 || len(findings) != 0 {
		t.Errorf("matched = %d, findings = %d; want 1 and 0", sum.Matched, len(findings))
	}
}

func TestEngineRateMismatch(t *testing.T) {
	// Ledger recorded zero where the authoritative table says 250000.
	ledger := &fakeLedger{entries: []commission.Entry{
		ledgerEntry("ORD-4", 0, "api-snapshot", time.Now()),
	}}
	items := &fakeItems{byLegacyID: map[int64]*catalog.SellableItem{
		179: flatItem(179, 250000),
	}}
	affs := &fakeAffiliates{byLegacyID: map[int64]*affiliate.Identity{
		42: approvedIdentity(42),
	}}

	engine := newTestEngine(ledger, items, affs, 1)
	src := NewSliceSource("test", []AuthoritativeRecord{{
		ExternalTransactionID: "ORD-4",
		SellableExternalID:    179,
		AffiliateExternalID:   42,
		SaleAmount:            500000,
		Status:                "SUCCESS",
		CommissionAmount:      250000,
	}})

	findings, sum, err := engine.Reconcile(context.Background(), src)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if sum.RateMismatch != 1 || len(findings) != 1 {
		t.Fatalf("rate_mismatch = %d, findings = %d; want 1 and 1", sum.RateMismatch, len(findings))
	}
	f := findings[0]
	if f.Row.BeforeAmount != 0 || f.Row.ExpectedAmount != 250000 {
		t.Errorf("before = %d, expected = %d; want 0 and 250000", f.Row.BeforeAmount, f.Row.ExpectedAmount)
	}
}

func TestEngineDuplicate(t *testing.T) {
	now := time.Now()
	ledger := &fakeLedger{entries: []commission.Entry{
		ledgerEntry("ORD-5", 150000, "api-snapshot", now),
		ledgerEntry("ORD-5", 150000, "mysql-dump", now.Add(time.Minute)),
	}}
	items := &fakeItems{byLegacyID: map[int64]*catalog.SellableItem{
		179: flatItem(179, 150000),
	}}
	affs := &fakeAffiliates{byLegacyID: map[int64]*affiliate.Identity{
		42: approvedIdentity(42),
	}}

	engine := newTestEngine(ledger, items, affs, 1)
	src := NewSliceSource("test", []AuthoritativeRecord{{
		ExternalTransactionID: "ORD-5",
		SellableExternalID:    179,
		AffiliateExternalID:   42,
		SaleAmount:            500000,
		Status:                "SUCCESS",
		CommissionAmount:      150000,
	}})

	findings, sum, err := engine.Reconcile(context.Background(), src)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if sum.Duplicate != 1 || len(findings) != 1 {
		t.Fatalf("duplicate = %d, findings = %d; want 1 and 1", sum.Duplicate, len(findings))
	}
	if got := findings[0].Row.BeforeAmount; got != 300000 {
		t.Errorf("before amount = %d, want 300000 (sum of both entries)", got)
	}
}

func TestEngineRepeatedSnapshotRecordClassifiedOnce(t *testing.T) {
	// A re-exported snapshot can list the same order twice. The single
	// correct ledger entry must still reconcile as one match, not get
	// flagged DUPLICATE or counted twice.
	ledger := &fakeLedger{entries: []commission.Entry{
		ledgerEntry("ORD-RE", 150000, "mysql-dump", time.Now()),
	}}
	items := &fakeItems{byLegacyID: map[int64]*catalog.SellableItem{
		179: flatItem(179, 150000),
	}}
	affs := &fakeAffiliates{byLegacyID: map[int64]*affiliate.Identity{
		42: approvedIdentity(42),
	}}

	rec := AuthoritativeRecord{
		ExternalTransactionID: "ORD-RE",
		SellableExternalID:    179,
		AffiliateExternalID:   42,
		SaleAmount:            500000,
		Status:                "SUCCESS",
		CommissionAmount:      150000,
	}

	engine := newTestEngine(ledger, items, affs, 1)
	findings, sum, err := engine.Reconcile(context.Background(), NewSliceSource("re-export", []AuthoritativeRecord{rec, rec, rec}))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if sum.Total != 1 || sum.Matched != 1 {
		t.Errorf("total = %d, matched = %d; want 1 and 1", sum.Total, sum.Matched)
	}
	if sum.Duplicate != 0 || len(findings) != 0 {
		t.Errorf("duplicate = %d, findings = %d; want 0 and 0", sum.Duplicate, len(findings))
	}
}

func TestEngineOrphanScan(t *testing.T) {
	ledger := &fakeLedger{entries: []commission.Entry{
		ledgerEntry("ORD-GONE", 85000, "manual", time.Now()),
	}}

	engine := newTestEngine(ledger, nil, nil, 1)
	src := NewSliceSource("test", nil)

	findings, sum, err := engine.Reconcile(context.Background(), src)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if sum.Orphaned != 1 || len(findings) != 1 {
		t.Fatalf("orphaned = %d, findings = %d; want 1 and 1", sum.Orphaned, len(findings))
	}
	if findings[0].Row.State != StateOrphaned {
		t.Errorf("state = %s, want ORPHANED", findings[0].Row.State)
	}
}

func TestEngineEntryForFailedSaleIsOrphaned(t *testing.T) {
	ledger := &fakeLedger{entries: []commission.Entry{
		ledgerEntry("ORD-6", 150000, "mysql-dump", time.Now()),
	}}

	engine := newTestEngine(ledger, nil, nil, 1)
	src := NewSliceSource("test", []AuthoritativeRecord{{
		ExternalTransactionID: "ORD-6",
		SellableExternalID:    179,
		AffiliateExternalID:   42,
		SaleAmount:            500000,
		Status:                "FAILED",
		CommissionAmount:      150000,
	}})

	findings, sum, err := engine.Reconcile(context.Background(), src)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if sum.Orphaned != 1 || len(findings) != 1 {
		t.Fatalf("orphaned = %d, findings = %d; want 1 and 1", sum.Orphaned, len(findings))
	}
}

func TestEngineUnmappedAffiliateExpectsZero(t *testing.T) {
	// A snapshot record whose affiliate never migrated resolves to no
	// commission, same as a live sale with a dead referral link.
	engine := newTestEngine(&fakeLedger{}, nil, nil, 1)
	src := NewSliceSource("test", []AuthoritativeRecord{{
		ExternalTransactionID: "ORD-7",
		SellableExternalID:    179,
		AffiliateExternalID:   9999,
		SaleAmount:            500000,
		Status:                "SUCCESS",
		CommissionAmount:      150000,
	}})

	findings, sum, err := engine.Reconcile(context.Background(), src)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if sum.Matched != 1 || len(findings) != 0 {
		t.Errorf("matched = %d, findings = %d; want 1 and 0", sum.Matched, len(findings))
	}
}

func TestEngineRoundTrip(t *testing.T) {
	// A ledger generated by resolving the snapshot itself reconciles
	// clean: zero missing, mismatched or duplicate rows.
	items := &fakeItems{byLegacyID: map[int64]*catalog.SellableItem{
		179:   flatItem(179, 150000),
		13401: flatItem(13401, 325000),
	}}
	pctItem := &catalog.SellableItem{
		ID:                uuid.New(),
		Type:              catalog.ItemTypeCourse,
		Price:             1000000,
		CommissionEnabled: true,
		CommissionType:    catalog.CommissionPercentage,
		CommissionRate:    30,
		LegacyExternalID:  sql.NullInt64{Int64: 5932, Valid: true},
	}
	items.byLegacyID[5932] = pctItem
	affs := &fakeAffiliates{byLegacyID: map[int64]*affiliate.Identity{
		42: approvedIdentity(42),
		43: approvedIdentity(43),
	}}

	records := []AuthoritativeRecord{
		{ExternalTransactionID: "RT-1", SellableExternalID: 179, AffiliateExternalID: 42, SaleAmount: 500000, Status: "SUCCESS"},
		{ExternalTransactionID: "RT-2", SellableExternalID: 13401, AffiliateExternalID: 43, SaleAmount: 600000, Status: "SUCCESS"},
		{ExternalTransactionID: "RT-3", SellableExternalID: 5932, AffiliateExternalID: 42, SaleAmount: 700000, Status: "SUCCESS"},
	}

	ledger := &fakeLedger{}
	for _, rec := range records {
		res := commission.Resolve(items.byLegacyID[rec.SellableExternalID], rec.SaleAmount)
		ledger.entries = append(ledger.entries, ledgerEntry(rec.ExternalTransactionID, res.Amount, res.Source, time.Now()))
	}

	engine := newTestEngine(ledger, items, affs, 1)
	findings, sum, err := engine.Reconcile(context.Background(), NewSliceSource("replay", records))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if sum.Missing != 0 || sum.RateMismatch != 0 || sum.Duplicate != 0 {
		t.Errorf("missing=%d rate_mismatch=%d duplicate=%d; want all zero", sum.Missing, sum.RateMismatch, sum.Duplicate)
	}
	if sum.Matched != len(records) || len(findings) != 0 {
		t.Errorf("matched = %d, findings = %d; want %d and 0", sum.Matched, len(findings), len(records))
	}
}

func TestEngineOverrideWithoutCatalogItem(t *testing.T) {
	affs := &fakeAffiliates{byLegacyID: map[int64]*affiliate.Identity{
		42: approvedIdentity(42),
	}}
	overrides := &commission.OverrideTable{
		Version: "test",
		Entries: map[int64]commission.OverrideEntry{
			3840: {Amount: 300000, Source: "legacy-product-table"},
		},
	}
	engine := NewEngine(&fakeLedger{}, &fakeItems{byLegacyID: map[int64]*catalog.SellableItem{}}, affs, overrides, 1)

	src := NewSliceSource("test", []AuthoritativeRecord{{
		ExternalTransactionID: "ORD-8",
		SellableExternalID:    3840,
		AffiliateExternalID:   42,
		SaleAmount:            750000,
		Status:                "SUCCESS",
		CommissionAmount:      275000,
	}})

	findings, _, err := engine.Reconcile(context.Background(), src)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("findings = %d, want 1", len(findings))
	}
	f := findings[0]
	if f.Expected.Amount != 300000 {
		t.Errorf("expected amount = %d, want 300000 from override", f.Expected.Amount)
	}
	if f.Expected.Source != "legacy-product-table" {
		t.Errorf("source = %q, want override provenance", f.Expected.Source)
	}
}
