package affiliate

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const identityColumns = `
	id, user_id, referral_code, approval_status, legacy_external_id,
	total_earnings, total_conversions, retired_at, created_at, updated_at`

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Identity, error) {
	var ident Identity
	err := r.db.GetContext(ctx, &ident,
		`SELECT `+identityColumns+` FROM affiliate_identities WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ident, nil
}

func (r *Repository) GetByUserID(ctx context.Context, userID uuid.UUID) (*Identity, error) {
	var ident Identity
	err := r.db.GetContext(ctx, &ident,
		`SELECT `+identityColumns+` FROM affiliate_identities WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ident, nil
}

func (r *Repository) GetByReferralCode(ctx context.Context, code string) (*Identity, error) {
	var ident Identity
	err := r.db.GetContext(ctx, &ident,
		`SELECT `+identityColumns+` FROM affiliate_identities WHERE referral_code = $1`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ident, nil
}

// GetByLegacyExternalID resolves a legacy affiliate id through the
// legacy_user_map chain first, falling back to the id stamped on the
// identity itself during import.
func (r *Repository) GetByLegacyExternalID(ctx context.Context, legacyID int64) (*Identity, error) {
	var ident Identity
	err := r.db.GetContext(ctx, &ident, `
		SELECT `+identityColumns+`
		FROM affiliate_identities
		WHERE user_id = (SELECT user_id FROM legacy_user_map WHERE legacy_user_id = $1)
		   OR legacy_external_id = $1
		LIMIT 1
	`, legacyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ident, nil
}

func (r *Repository) Create(ctx context.Context, ident *Identity) error {
	if ident.ID == uuid.Nil {
		ident.ID = uuid.New()
	}
	now := time.Now()
	ident.CreatedAt = now
	ident.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO affiliate_identities
			(id, user_id, referral_code, approval_status, legacy_external_id,
			 total_earnings, total_conversions, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,0,0,$6,$7)
	`, ident.ID, ident.UserID, ident.ReferralCode, ident.ApprovalStatus,
		ident.LegacyExternalID, ident.CreatedAt, ident.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			if pqErr.Constraint == "affiliate_identities_referral_code_key" {
				return ErrCodeTaken
			}
			return ErrAlreadyRegistered
		}
		return err
	}
	return nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status ApprovalStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE affiliate_identities
		SET approval_status = $2, updated_at = now()
		WHERE id = $1 AND approval_status = 'PENDING'
	`, id, status)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyDecided
	}
	return nil
}

func (r *Repository) Retire(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE affiliate_identities
		SET retired_at = now(), updated_at = now()
		WHERE id = $1 AND retired_at IS NULL
	`, id)
	return err
}

// IncrementStatsTx bumps the lifetime counters inside the caller's ledger
// transaction so the dashboard figures never drift from the wallet.
func (r *Repository) IncrementStatsTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, earnings int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE affiliate_identities
		SET total_earnings = total_earnings + $2,
		    total_conversions = total_conversions + 1,
		    updated_at = now()
		WHERE id = $1
	`, id, earnings)
	return err
}

// AdjustStatsTx applies a signed earnings delta during reconciliation repair.
// Conversions move by conversionDelta (-1, 0 or +1).
func (r *Repository) AdjustStatsTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, earningsDelta int64, conversionDelta int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE affiliate_identities
		SET total_earnings = total_earnings + $2,
		    total_conversions = total_conversions + $3,
		    updated_at = now()
		WHERE id = $1
	`, id, earningsDelta, conversionDelta)
	return err
}

// MapLegacyUser records one legacy-user-id → platform-user-id translation.
// The map is built once per import and queried many times.
func (r *Repository) MapLegacyUser(ctx context.Context, legacyUserID int64, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO legacy_user_map (legacy_user_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (legacy_user_id) DO UPDATE SET user_id = EXCLUDED.user_id
	`, legacyUserID, userID)
	return err
}

func (r *Repository) UserIDByLegacyID(ctx context.Context, legacyUserID int64) (uuid.UUID, error) {
	var userID uuid.UUID
	err := r.db.GetContext(ctx, &userID,
		`SELECT user_id FROM legacy_user_map WHERE legacy_user_id = $1`, legacyUserID)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, ErrNotFound
	}
	return userID, err
}
