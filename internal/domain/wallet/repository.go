package wallet

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// BeginTx starts a transaction for callers that must combine a wallet
// credit with their own writes (the commission ledger writer).
func (r *Repository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

func (r *Repository) Get(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	var w Wallet
	err := r.db.GetContext(ctx, &w, `
		SELECT user_id, balance, balance_pending, total_earnings, total_payout, updated_at
		FROM wallets WHERE user_id = $1
	`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// lockWallet creates the wallet row if absent and takes a row lock for
// the remainder of the transaction.
func (r *Repository) lockWallet(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (*Wallet, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (user_id, balance, balance_pending, total_earnings, total_payout)
		VALUES ($1, 0, 0, 0, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, userID); err != nil {
		return nil, err
	}

	var w Wallet
	err := tx.GetContext(ctx, &w, `
		SELECT user_id, balance, balance_pending, total_earnings, total_payout, updated_at
		FROM wallets WHERE user_id = $1 FOR UPDATE
	`, userID)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *Repository) insertLedgerTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount int64, entryType EntryType, referenceID, description string) error {
	var ref interface{}
	if referenceID == "" {
		ref = nil
	} else {
		ref = referenceID
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_ledger (id, user_id, amount, type, reference_id, description)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New(), userID, amount, string(entryType), ref, description)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateReference
		}
		return err
	}
	return nil
}

// CreditTx credits a commission inside the caller's transaction.
// TotalEarnings always grows by amount; the withdrawable vs pending split
// is the caller's policy. Increments are pushed into SQL so concurrent
// commissions for the same affiliate never lose updates.
func (r *Repository) CreditTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount int64, dest Destination, referenceID, description string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if _, err := r.lockWallet(ctx, tx, userID); err != nil {
		return err
	}

	column := "balance"
	if dest == DestinationPending {
		column = "balance_pending"
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET `+column+` = `+column+` + $2,
		    total_earnings = total_earnings + $2,
		    updated_at = now()
		WHERE user_id = $1
	`, userID, amount); err != nil {
		return err
	}

	return r.insertLedgerTx(ctx, tx, userID, amount, EntryTypeCommission, referenceID, description)
}

// AdjustTx applies a signed reconciliation delta inside the caller's
// transaction. Negative deltas must not drive any balance below zero;
// that is a data-integrity failure and rolls the whole repair back.
func (r *Repository) AdjustTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, delta int64, dest Destination, entryType EntryType, referenceID, description string) error {
	if delta == 0 {
		return nil
	}
	w, err := r.lockWallet(ctx, tx, userID)
	if err != nil {
		return err
	}

	column := "balance"
	current := w.Balance
	if dest == DestinationPending {
		column = "balance_pending"
		current = w.BalancePending
	}
	if current+delta < 0 || w.TotalEarnings+delta < 0 {
		return ErrNegativeBalance
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET `+column+` = `+column+` + $2,
		    total_earnings = total_earnings + $2,
		    updated_at = now()
		WHERE user_id = $1
	`, userID, delta); err != nil {
		return err
	}

	return r.insertLedgerTx(ctx, tx, userID, delta, entryType, referenceID, description)
}

// ReleasePending moves an approved pending credit to the withdrawable
// balance. TotalEarnings was already counted at credit time.
func (r *Repository) ReleasePending(ctx context.Context, userID uuid.UUID, amount int64, referenceID, description string) error {
	tx, err := r.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	w, err := r.lockWallet(ctx, tx, userID)
	if err != nil {
		return err
	}
	if w.BalancePending < amount {
		return ErrInsufficientPending
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance_pending = balance_pending - $2,
		    balance = balance + $2,
		    updated_at = now()
		WHERE user_id = $1
	`, userID, amount); err != nil {
		return err
	}

	if err := r.insertLedgerTx(ctx, tx, userID, amount, EntryTypePendingRelease, referenceID, description); err != nil {
		return err
	}
	return tx.Commit()
}

// RejectPending removes a held credit. The amount was counted into
// TotalEarnings when credited, so the rejection reverses it there too.
func (r *Repository) RejectPending(ctx context.Context, userID uuid.UUID, amount int64, referenceID, description string) error {
	tx, err := r.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	w, err := r.lockWallet(ctx, tx, userID)
	if err != nil {
		return err
	}
	if w.BalancePending < amount {
		return ErrInsufficientPending
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance_pending = balance_pending - $2,
		    total_earnings = total_earnings - $2,
		    updated_at = now()
		WHERE user_id = $1
	`, userID, amount); err != nil {
		return err
	}

	if err := r.insertLedgerTx(ctx, tx, userID, -amount, EntryTypePendingReject, referenceID, description); err != nil {
		return err
	}
	return tx.Commit()
}

// RequestPayout debits the available balance into a pending payout.
// Lifetime earnings are untouched by withdrawals.
func (r *Repository) RequestPayout(ctx context.Context, userID uuid.UUID, amount int64, method string) (*Payout, error) {
	tx, err := r.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	w, err := r.lockWallet(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if w.Balance < amount {
		return nil, ErrInsufficientFunds
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = balance - $2,
		    total_payout = total_payout + $2,
		    updated_at = now()
		WHERE user_id = $1
	`, userID, amount); err != nil {
		return nil, err
	}

	payout := &Payout{
		ID:        uuid.New(),
		UserID:    userID,
		Amount:    amount,
		Method:    method,
		Status:    PayoutPending,
		CreatedAt: time.Now(),
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO payouts (id, user_id, amount, method, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, payout.ID, payout.UserID, payout.Amount, payout.Method, payout.Status, payout.CreatedAt); err != nil {
		return nil, err
	}

	if err := r.insertLedgerTx(ctx, tx, userID, -amount, EntryTypePayout, payout.ID.String(), "payout request via "+method); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return payout, nil
}

// ListLedger returns recent ledger entries for a user, newest first.
func (r *Repository) ListLedger(ctx context.Context, userID uuid.UUID, limit, offset int) ([]LedgerEntry, error) {
	entries := []LedgerEntry{}
	err := r.db.SelectContext(ctx, &entries, `
		SELECT id, user_id, amount, type, reference_id, description, created_at
		FROM wallet_ledger
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return entries, err
}
