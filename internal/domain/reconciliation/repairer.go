package reconciliation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/eksporyuk/affiliate-api/internal/domain/affiliate"
	"github.com/eksporyuk/affiliate-api/internal/domain/catalog"
	"github.com/eksporyuk/affiliate-api/internal/domain/commission"
	"github.com/eksporyuk/affiliate-api/internal/domain/transaction"
)

// Repairer applies per-row fixes for the repairable states. Every fix
// runs in its own short database transaction so one failure leaves
// earlier repairs intact and never blocks live checkout traffic.
type Repairer struct {
	writer       *commission.Writer
	transactions *transaction.Repository
	items        *catalog.Repository
	affiliates   *affiliate.Repository
	priority     []string
}

func NewRepairer(writer *commission.Writer, transactions *transaction.Repository, items *catalog.Repository, affiliates *affiliate.Repository, priority []string) *Repairer {
	return &Repairer{
		writer:       writer,
		transactions: transactions,
		items:        items,
		affiliates:   affiliates,
		priority:     priority,
	}
}

// Repair fixes one finding in place, recording the outcome on its row.
// Orphans are report-only. A failed repair marks the row and returns
// nil so the batch continues.
func (r *Repairer) Repair(ctx context.Context, f *Finding) {
	var err error
	switch f.Row.State {
	case StateMissing:
		err = r.repairMissing(ctx, f)
	case StateRateMismatch:
		err = r.repairRateMismatch(ctx, f)
	case StateDuplicate:
		err = r.repairDuplicate(ctx, f)
	case StateOrphaned:
		// Orphans may be legitimate post-snapshot sales; flagging is
		// the only safe action.
		return
	default:
		return
	}

	if err != nil {
		f.Row.RepairError = sql.NullString{String: err.Error(), Valid: true}
		log.Warn().Err(err).
			Str("external_transaction_id", f.Row.ExternalTransactionID).
			Str("state", string(f.Row.State)).
			Msg("repair failed, row left unrepaired")
		return
	}
	f.Row.Repaired = true
}

// repairMissing re-runs the ledger writer for the record, creating an
// imported platform transaction first when none exists.
func (r *Repairer) repairMissing(ctx context.Context, f *Finding) error {
	if f.Affiliate == nil || f.Expected.Amount <= 0 {
		return errors.New("nothing to write for record")
	}

	t, err := r.transactions.GetByExternalID(ctx, f.Record.ExternalTransactionID)
	if errors.Is(err, transaction.ErrNotFound) {
		t, err = r.importTransaction(ctx, f)
	}
	if err != nil {
		return err
	}
	if t.Status != transaction.StatusSuccess {
		return fmt.Errorf("platform transaction %s is %s, not SUCCESS", t.ID, t.Status)
	}

	entry, err := r.writer.Record(ctx, commission.Sale{
		TransactionID:         t.ID,
		TransactionStatus:     string(transaction.StatusSuccess),
		ExternalTransactionID: f.Record.ExternalTransactionID,
		Affiliate:             f.Affiliate,
		Resolution:            f.Expected,
	})
	if err != nil {
		return err
	}
	if entry == nil {
		// A concurrent writer got there first; that is a match now.
		return nil
	}

	f.Row.EntryID = uuid.NullUUID{UUID: entry.ID, Valid: true}
	f.Row.AfterAmount = entry.CommissionAmount
	f.Row.WalletDelta = entry.CommissionAmount
	return nil
}

func (r *Repairer) importTransaction(ctx context.Context, f *Finding) (*transaction.Transaction, error) {
	buyerID, err := r.affiliates.UserIDByLegacyID(ctx, f.Record.BuyerExternalID)
	if errors.Is(err, affiliate.ErrNotFound) {
		return nil, fmt.Errorf("legacy buyer %d is not mapped", f.Record.BuyerExternalID)
	}
	if err != nil {
		return nil, err
	}

	item, err := r.items.GetByLegacyExternalID(ctx, f.Record.SellableExternalID)
	if errors.Is(err, catalog.ErrItemNotFound) {
		return nil, fmt.Errorf("legacy item %d is not in the catalog", f.Record.SellableExternalID)
	}
	if err != nil {
		return nil, err
	}

	t := &transaction.Transaction{
		BuyerUserID:           buyerID,
		SellableItemID:        item.ID,
		Amount:                f.Record.SaleAmount,
		Status:                transaction.StatusSuccess,
		AffiliateIdentityID:   uuid.NullUUID{UUID: f.Affiliate.ID, Valid: true},
		ExternalTransactionID: sql.NullString{String: f.Record.ExternalTransactionID, Valid: true},
	}
	if err := r.transactions.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// repairRateMismatch corrects the entry amount and moves the wallet by
// the delta only, never recomputing unrelated wallet activity.
func (r *Repairer) repairRateMismatch(ctx context.Context, f *Finding) error {
	if !f.Row.EntryID.Valid {
		return errors.New("no entry to adjust")
	}
	delta, err := r.writer.AdjustAmount(ctx, f.Row.EntryID.UUID, f.Expected.Amount, f.Expected.RateApplied, f.Expected.Source)
	if err != nil {
		return err
	}
	f.Row.AfterAmount = f.Expected.Amount
	f.Row.WalletDelta = delta
	return nil
}

// repairDuplicate keeps exactly one entry per external sale and
// reverses the others' wallet credits. The keeper is chosen by import
// source priority, then earliest creation time.
func (r *Repairer) repairDuplicate(ctx context.Context, f *Finding) error {
	if len(f.Entries) < 2 {
		return errors.New("no duplicates to remove")
	}

	entries := make([]commission.Entry, len(f.Entries))
	copy(entries, f.Entries)
	sort.SliceStable(entries, func(i, j int) bool {
		ri, rj := r.sourceRank(entries[i].Source), r.sourceRank(entries[j].Source)
		if ri != rj {
			return ri < rj
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})

	keep := entries[0]
	var reversed int64
	for _, dup := range entries[1:] {
		if err := r.writer.RemoveDuplicate(ctx, dup.ID); err != nil {
			return fmt.Errorf("remove entry %s: %w", dup.ID, err)
		}
		reversed += dup.CommissionAmount
	}

	f.Row.EntryID = uuid.NullUUID{UUID: keep.ID, Valid: true}
	f.Row.AfterAmount = keep.CommissionAmount
	f.Row.WalletDelta = -reversed
	return nil
}

func (r *Repairer) sourceRank(source string) int {
	for i, s := range r.priority {
		if s == source {
			return i
		}
	}
	return len(r.priority)
}
