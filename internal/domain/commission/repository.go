package commission

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const entryColumns = `
	id, transaction_id, affiliate_identity_id, commission_amount,
	commission_rate_applied, commission_type, source,
	external_transaction_id, paid_out, paid_out_at, created_at`

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// InsertTx writes a new entry inside the caller's transaction. The
// unique constraint on transaction_id is the idempotency mechanism: a
// 23505 surfaces as ErrAlreadyRecorded, which callers treat as a no-op.
func (r *Repository) InsertTx(ctx context.Context, tx *sqlx.Tx, entry *Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()

	_, err := tx.ExecContext(ctx, `
		INSERT INTO commission_entries
			(id, transaction_id, affiliate_identity_id, commission_amount,
			 commission_rate_applied, commission_type, source,
			 external_transaction_id, paid_out, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,false,$9)
	`, entry.ID, entry.TransactionID, entry.AffiliateIdentityID,
		entry.CommissionAmount, entry.CommissionRateApplied, entry.CommissionType,
		entry.Source, entry.ExternalTransactionID, entry.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrAlreadyRecorded
		}
		return err
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	var entry Entry
	err := r.db.GetContext(ctx, &entry,
		`SELECT `+entryColumns+` FROM commission_entries WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *Repository) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*Entry, error) {
	var entry Entry
	err := r.db.GetContext(ctx, &entry,
		`SELECT `+entryColumns+` FROM commission_entries WHERE transaction_id = $1`, transactionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListByExternalTransactionID returns every entry sharing one external
// sale identifier, oldest first. The internal unique constraint cannot
// catch cross-import duplicates; this lookup feeds duplicate detection.
func (r *Repository) ListByExternalTransactionID(ctx context.Context, externalID string) ([]Entry, error) {
	entries := []Entry{}
	err := r.db.SelectContext(ctx, &entries, `
		SELECT `+entryColumns+`
		FROM commission_entries
		WHERE external_transaction_id = $1
		ORDER BY created_at ASC
	`, externalID)
	return entries, err
}

// ListWithExternalRef returns every entry carrying an external sale
// identifier, oldest first. Reconciliation scans these for entries the
// authoritative snapshot no longer accounts for.
func (r *Repository) ListWithExternalRef(ctx context.Context) ([]Entry, error) {
	entries := []Entry{}
	err := r.db.SelectContext(ctx, &entries, `
		SELECT `+entryColumns+`
		FROM commission_entries
		WHERE external_transaction_id IS NOT NULL
		ORDER BY created_at ASC
	`)
	return entries, err
}

func (r *Repository) ListByAffiliate(ctx context.Context, affiliateID uuid.UUID, limit, offset int) ([]Entry, error) {
	entries := []Entry{}
	err := r.db.SelectContext(ctx, &entries, `
		SELECT `+entryColumns+`
		FROM commission_entries
		WHERE affiliate_identity_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, affiliateID, limit, offset)
	return entries, err
}

// SumByAffiliate returns total recorded commission per affiliate; used
// by reconciliation aggregate comparisons.
func (r *Repository) SumByAffiliate(ctx context.Context, affiliateID uuid.UUID) (int64, error) {
	var total sql.NullInt64
	err := r.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(commission_amount), 0)
		FROM commission_entries
		WHERE affiliate_identity_id = $1
	`, affiliateID)
	return total.Int64, err
}

// UpdateAmountTx corrects an entry after a rate-mismatch classification.
func (r *Repository) UpdateAmountTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, amount int64, rateApplied float64, source string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE commission_entries
		SET commission_amount = $2, commission_rate_applied = $3, source = $4
		WHERE id = $1
	`, id, amount, rateApplied, source)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// DeleteTx removes a duplicate entry. Only duplicate repair may delete.
func (r *Repository) DeleteTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM commission_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// MarkPaidOut flips the payout flag. Entries are otherwise immutable.
func (r *Repository) MarkPaidOut(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE commission_entries
		SET paid_out = true, paid_out_at = now()
		WHERE id = $1 AND paid_out = false
	`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEntryNotFound
	}
	return nil
}
