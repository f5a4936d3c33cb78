package commission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/eksporyuk/affiliate-api/internal/domain/affiliate"
	"github.com/eksporyuk/affiliate-api/internal/domain/catalog"
	"github.com/eksporyuk/affiliate-api/internal/domain/wallet"
	"github.com/eksporyuk/affiliate-api/internal/pkg/money"
)

// Notifier receives commission ledger events after a successful write.
// Delivery is fire-and-forget: failures are logged by the implementation
// and never reach the writer.
type Notifier interface {
	NotifyCommissionEarned(ctx context.Context, userID uuid.UUID, amount int64, entryID uuid.UUID)
	NotifyCommissionReversed(ctx context.Context, userID uuid.UUID, amount int64, entryID uuid.UUID)
}

// Sale is the writer's view of a completed purchase. The writer never
// computes the commission itself; callers resolve it first so the two
// stages can be tested and reconciled independently.
type Sale struct {
	TransactionID         uuid.UUID
	TransactionStatus     string // must be "SUCCESS"
	ExternalTransactionID string // legacy sale id, when imported
	Affiliate             *affiliate.Identity
	Resolution            Resolution
}

// Writer records commission entries and credits affiliate wallets in one
// atomic unit per sale, with at-most-once semantics per transaction.
type Writer struct {
	db         *sqlx.DB
	repo       *Repository
	wallets    *wallet.Repository
	affiliates *affiliate.Repository
	dest       wallet.Destination
	notifier   Notifier
}

func NewWriter(db *sqlx.DB, repo *Repository, wallets *wallet.Repository, affiliates *affiliate.Repository, dest wallet.Destination, notifier Notifier) *Writer {
	return &Writer{
		db:         db,
		repo:       repo,
		wallets:    wallets,
		affiliates: affiliates,
		dest:       dest,
		notifier:   notifier,
	}
}

// Record writes the commission ledger entry for a sale and credits the
// affiliate wallet, creating the wallet first if needed, inside a single
// database transaction. Returns (nil, nil) for every legitimate no-op:
// no affiliate, unapproved affiliate, zero commission, or a replayed
// transaction that already has an entry. Duplicate webhooks therefore
// retry safely.
func (w *Writer) Record(ctx context.Context, sale Sale) (*Entry, error) {
	if sale.TransactionStatus != "SUCCESS" {
		return nil, ErrTransactionNotSuccess
	}
	if sale.Resolution.Amount < 0 {
		return nil, ErrInvalidAmount
	}
	if sale.Affiliate == nil || !sale.Affiliate.IsApproved() {
		return nil, nil
	}
	if sale.Resolution.Amount == 0 {
		// Zero-commission sales get no ledger row. Reconciliation
		// knows this policy and does not flag them as missing.
		return nil, nil
	}

	tx, err := w.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	entry := &Entry{
		TransactionID:         sale.TransactionID,
		AffiliateIdentityID:   sale.Affiliate.ID,
		CommissionAmount:      sale.Resolution.Amount,
		CommissionRateApplied: sale.Resolution.RateApplied,
		CommissionType:        sale.Resolution.Type,
		Source:                sale.Resolution.Source,
	}
	if sale.ExternalTransactionID != "" {
		entry.ExternalTransactionID = sql.NullString{String: sale.ExternalTransactionID, Valid: true}
	}

	if err := w.repo.InsertTx(ctx, tx, entry); err != nil {
		if errors.Is(err, ErrAlreadyRecorded) {
			// Concurrent retry lost the race; the winner's write stands.
			log.Debug().
				Str("transaction_id", sale.TransactionID.String()).
				Msg("commission already recorded, skipping")
			return nil, nil
		}
		return nil, err
	}

	desc := fmt.Sprintf("affiliate commission (%s)", describeRate(sale.Resolution))
	if err := w.wallets.CreditTx(ctx, tx, sale.Affiliate.UserID, entry.CommissionAmount, w.dest, sale.TransactionID.String(), desc); err != nil {
		return nil, err
	}

	if err := w.affiliates.IncrementStatsTx(ctx, tx, sale.Affiliate.ID, entry.CommissionAmount); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Info().
		Str("transaction_id", sale.TransactionID.String()).
		Str("affiliate_id", sale.Affiliate.ID.String()).
		Int64("amount", entry.CommissionAmount).
		Str("source", entry.Source).
		Msg("commission recorded")

	if w.notifier != nil {
		w.notifier.NotifyCommissionEarned(ctx, sale.Affiliate.UserID, entry.CommissionAmount, entry.ID)
	}
	return entry, nil
}

// AdjustAmount corrects an entry to newAmount and moves the affiliate
// wallet by the delta only, so unrelated wallet activity is untouched.
// Used by rate-mismatch repair.
func (w *Writer) AdjustAmount(ctx context.Context, entryID uuid.UUID, newAmount int64, rateApplied float64, source string) (delta int64, err error) {
	if newAmount < 0 {
		return 0, ErrInvalidAmount
	}
	entry, err := w.repo.GetByID(ctx, entryID)
	if err != nil {
		return 0, err
	}
	ident, err := w.affiliates.GetByID(ctx, entry.AffiliateIdentityID)
	if err != nil {
		return 0, err
	}
	delta = newAmount - entry.CommissionAmount
	if delta == 0 {
		return 0, nil
	}

	tx, err := w.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if err := w.repo.UpdateAmountTx(ctx, tx, entryID, newAmount, rateApplied, source); err != nil {
		return 0, err
	}
	ref := fmt.Sprintf("adjust:%s", entry.TransactionID)
	desc := fmt.Sprintf("commission corrected %s -> %s", money.Format(entry.CommissionAmount), money.Format(newAmount))
	if err := w.wallets.AdjustTx(ctx, tx, ident.UserID, delta, w.dest, wallet.EntryTypeAdjustment, ref, desc); err != nil {
		return 0, err
	}
	if err := w.affiliates.AdjustStatsTx(ctx, tx, ident.ID, delta, 0); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	log.Info().
		Str("entry_id", entryID.String()).
		Int64("delta", delta).
		Int64("new_amount", newAmount).
		Msg("commission amount adjusted")
	return delta, nil
}

// RemoveDuplicate deletes a duplicate entry and reverses its wallet
// credit and affiliate counters. Only duplicate repair calls this.
func (w *Writer) RemoveDuplicate(ctx context.Context, entryID uuid.UUID) error {
	entry, err := w.repo.GetByID(ctx, entryID)
	if err != nil {
		return err
	}
	ident, err := w.affiliates.GetByID(ctx, entry.AffiliateIdentityID)
	if err != nil {
		return err
	}

	tx, err := w.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := w.repo.DeleteTx(ctx, tx, entryID); err != nil {
		return err
	}
	ref := fmt.Sprintf("duplicate:%s", entryID)
	desc := fmt.Sprintf("duplicate commission reversed for transaction %s", entry.TransactionID)
	if err := w.wallets.AdjustTx(ctx, tx, ident.UserID, -entry.CommissionAmount, w.dest, wallet.EntryTypeCommissionReversal, ref, desc); err != nil {
		return err
	}
	if err := w.affiliates.AdjustStatsTx(ctx, tx, ident.ID, -entry.CommissionAmount, -1); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	log.Info().
		Str("entry_id", entryID.String()).
		Str("transaction_id", entry.TransactionID.String()).
		Int64("amount", entry.CommissionAmount).
		Msg("duplicate commission removed")

	if w.notifier != nil {
		w.notifier.NotifyCommissionReversed(ctx, ident.UserID, entry.CommissionAmount, entryID)
	}
	return nil
}

func describeRate(res Resolution) string {
	if res.Type == catalog.CommissionFlat {
		return money.Format(int64(res.RateApplied)) + " flat"
	}
	return fmt.Sprintf("%g%%", res.RateApplied)
}
