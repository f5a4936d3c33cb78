package reconciliation

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/eksporyuk/affiliate-api/internal/domain/affiliate"
	"github.com/eksporyuk/affiliate-api/internal/domain/catalog"
	"github.com/eksporyuk/affiliate-api/internal/domain/commission"
)

// Narrow read interfaces so the engine can be exercised without a live
// database. The concrete repositories satisfy them.

type ledgerReader interface {
	ListByExternalTransactionID(ctx context.Context, externalID string) ([]commission.Entry, error)
	ListWithExternalRef(ctx context.Context) ([]commission.Entry, error)
}

type itemReader interface {
	GetByLegacyExternalID(ctx context.Context, legacyID int64) (*catalog.SellableItem, error)
}

type affiliateReader interface {
	GetByLegacyExternalID(ctx context.Context, legacyID int64) (*affiliate.Identity, error)
}

// SourceSnapshot marks amounts taken verbatim from the authoritative
// snapshot because no catalog item or override covers the legacy id.
const SourceSnapshot = "authoritative-snapshot"

// Finding is one classified record with everything a later repair
// needs: the raw record, the recomputed expectation, the resolved
// affiliate, and the ledger entries it touched.
type Finding struct {
	Row       Row
	Record    *AuthoritativeRecord
	Expected  commission.Resolution
	Affiliate *affiliate.Identity
	Entries   []commission.Entry
}

// Summary aggregates a run's classifications.
type Summary struct {
	Total        int
	Matched      int
	Missing      int
	Orphaned     int
	RateMismatch int
	Duplicate    int
}

// Engine classifies authoritative records against the commission
// ledger. It never mutates anything; repairs are a separate concern.
type Engine struct {
	ledger     ledgerReader
	items      itemReader
	affiliates affiliateReader
	overrides  *commission.OverrideTable
	epsilon    int64
}

func NewEngine(ledger ledgerReader, items itemReader, affiliates affiliateReader, overrides *commission.OverrideTable, epsilon int64) *Engine {
	if epsilon < 0 {
		epsilon = 0
	}
	return &Engine{
		ledger:     ledger,
		items:      items,
		affiliates: affiliates,
		overrides:  overrides,
		epsilon:    epsilon,
	}
}

// Reconcile walks the snapshot and classifies every record, then scans
// the ledger for entries the snapshot does not account for. Matched
// records are counted but produce no finding.
func (e *Engine) Reconcile(ctx context.Context, src Source) ([]*Finding, Summary, error) {
	var findings []*Finding
	var sum Summary
	seen := make(map[string]bool)

	for {
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return findings, sum, err
		}
		// A snapshot may carry the same order twice (re-exports, manual
		// appends). Classify each external id once; repeats would double
		// the counters or flag the ledger entry as a false duplicate.
		if seen[rec.ExternalTransactionID] {
			log.Warn().
				Str("external_transaction_id", rec.ExternalTransactionID).
				Msg("snapshot record repeated, skipping")
			continue
		}
		seen[rec.ExternalTransactionID] = true
		sum.Total++

		f, err := e.classify(ctx, rec)
		if err != nil {
			return findings, sum, err
		}
		if f == nil {
			continue
		}
		switch f.Row.State {
		case StateMatched:
			sum.Matched++
		case StateMissing:
			sum.Missing++
			findings = append(findings, f)
		case StateOrphaned:
			sum.Orphaned++
			findings = append(findings, f)
		case StateRateMismatch:
			sum.RateMismatch++
			findings = append(findings, f)
		case StateDuplicate:
			sum.Duplicate++
			findings = append(findings, f)
		}
	}

	orphans, err := e.scanOrphans(ctx, seen)
	if err != nil {
		return findings, sum, err
	}
	sum.Orphaned += len(orphans)
	findings = append(findings, orphans...)

	return findings, sum, nil
}

func (e *Engine) classify(ctx context.Context, rec *AuthoritativeRecord) (*Finding, error) {
	entries, err := e.ledger.ListByExternalTransactionID(ctx, rec.ExternalTransactionID)
	if err != nil {
		return nil, err
	}

	if !isSuccess(rec.Status) {
		// Entries for a non-successful authoritative sale should not
		// exist; never delete automatically, only flag.
		if len(entries) > 0 {
			f := &Finding{Record: rec, Entries: entries}
			f.Row = Row{
				ExternalTransactionID: rec.ExternalTransactionID,
				State:                 StateOrphaned,
				EntryID:               uuid.NullUUID{UUID: entries[0].ID, Valid: true},
				BeforeAmount:          sumAmounts(entries),
				AfterAmount:           sumAmounts(entries),
			}
			return f, nil
		}
		return nil, nil
	}

	res, ident, err := e.expected(ctx, rec)
	if err != nil {
		return nil, err
	}

	f := &Finding{Record: rec, Expected: res, Affiliate: ident, Entries: entries}
	f.Row = Row{
		ExternalTransactionID: rec.ExternalTransactionID,
		ExpectedAmount:        res.Amount,
		RateSource:            res.Source,
	}

	switch {
	case len(entries) == 0 && res.Amount == 0:
		// Zero-commission sales carry no ledger row by policy.
		f.Row.State = StateMatched
	case len(entries) == 0:
		f.Row.State = StateMissing
	case len(entries) > 1:
		f.Row.State = StateDuplicate
		f.Row.EntryID = uuid.NullUUID{UUID: entries[0].ID, Valid: true}
		f.Row.BeforeAmount = sumAmounts(entries)
		f.Row.AfterAmount = f.Row.BeforeAmount
	default:
		entry := entries[0]
		f.Row.EntryID = uuid.NullUUID{UUID: entry.ID, Valid: true}
		f.Row.BeforeAmount = entry.CommissionAmount
		f.Row.AfterAmount = entry.CommissionAmount
		if abs(entry.CommissionAmount-res.Amount) <= e.epsilon {
			f.Row.State = StateMatched
		} else {
			f.Row.State = StateRateMismatch
		}
	}
	return f, nil
}

// expected recomputes what the commission should be for one record. The
// catalog item (with overrides) is the preferred source; when the
// legacy item was never imported the snapshot's own figure stands.
func (e *Engine) expected(ctx context.Context, rec *AuthoritativeRecord) (commission.Resolution, *affiliate.Identity, error) {
	if rec.AffiliateExternalID == 0 {
		return commission.Resolution{Source: SourceSnapshot}, nil, nil
	}

	ident, err := e.affiliates.GetByLegacyExternalID(ctx, rec.AffiliateExternalID)
	if errors.Is(err, affiliate.ErrNotFound) {
		ident = nil
	} else if err != nil {
		return commission.Resolution{}, nil, err
	}
	if ident == nil || !ident.IsApproved() {
		// Fail open to no commission, same as live checkout.
		return commission.Resolution{Source: SourceSnapshot}, nil, nil
	}

	item, err := e.items.GetByLegacyExternalID(ctx, rec.SellableExternalID)
	if errors.Is(err, catalog.ErrItemNotFound) {
		item = nil
	} else if err != nil {
		return commission.Resolution{}, ident, err
	}

	if item != nil {
		return commission.ResolveWithOverrides(item, rec.SaleAmount, e.overrides), ident, nil
	}

	// No catalog item: overrides still apply by legacy product id,
	// otherwise trust the snapshot figure.
	if e.overrides != nil {
		if ov, ok := e.overrides.Lookup(rec.SellableExternalID); ok {
			amount := ov.Amount
			if amount > rec.SaleAmount {
				amount = rec.SaleAmount
			}
			return commission.Resolution{
				Amount:      amount,
				RateApplied: float64(ov.Amount),
				Type:        catalog.CommissionFlat,
				Source:      ov.Source,
			}, ident, nil
		}
	}
	return commission.Resolution{
		Amount:      rec.CommissionAmount,
		RateApplied: float64(rec.CommissionAmount),
		Type:        catalog.CommissionFlat,
		Source:      SourceSnapshot,
	}, ident, nil
}

func (e *Engine) scanOrphans(ctx context.Context, seen map[string]bool) ([]*Finding, error) {
	entries, err := e.ledger.ListWithExternalRef(ctx)
	if err != nil {
		return nil, err
	}

	var findings []*Finding
	for i := range entries {
		entry := entries[i]
		extID := entry.ExternalTransactionID.String
		if seen[extID] {
			continue
		}
		log.Debug().
			Str("external_transaction_id", extID).
			Str("entry_id", entry.ID.String()).
			Msg("ledger entry absent from authoritative snapshot")
		findings = append(findings, &Finding{
			Row: Row{
				ExternalTransactionID: extID,
				State:                 StateOrphaned,
				EntryID:               uuid.NullUUID{UUID: entry.ID, Valid: true},
				BeforeAmount:          entry.CommissionAmount,
				AfterAmount:           entry.CommissionAmount,
			},
			Entries: []commission.Entry{entry},
		})
	}
	return findings, nil
}

// isSuccess normalizes legacy status spellings at the boundary.
func isSuccess(status string) bool {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "SUCCESS", "COMPLETED":
		return true
	}
	return false
}

func sumAmounts(entries []commission.Entry) int64 {
	var total int64
	for _, e := range entries {
		total += e.CommissionAmount
	}
	return total
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
