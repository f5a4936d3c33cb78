package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*SellableItem, error) {
	var item SellableItem
	err := r.db.GetContext(ctx, &item, `
		SELECT id, type, name, price, commission_enabled, commission_type,
		       commission_rate, legacy_external_id, created_at, updated_at
		FROM sellable_items
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Repository) GetByLegacyExternalID(ctx context.Context, legacyID int64) (*SellableItem, error) {
	var item SellableItem
	err := r.db.GetContext(ctx, &item, `
		SELECT id, type, name, price, commission_enabled, commission_type,
		       commission_rate, legacy_external_id, created_at, updated_at
		FROM sellable_items
		WHERE legacy_external_id = $1
	`, legacyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Repository) List(ctx context.Context, limit, offset int) ([]SellableItem, error) {
	items := []SellableItem{}
	err := r.db.SelectContext(ctx, &items, `
		SELECT id, type, name, price, commission_enabled, commission_type,
		       commission_rate, legacy_external_id, created_at, updated_at
		FROM sellable_items
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	return items, err
}

func (r *Repository) Create(ctx context.Context, item *SellableItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sellable_items
			(id, type, name, price, commission_enabled, commission_type,
			 commission_rate, legacy_external_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, item.ID, item.Type, item.Name, item.Price, item.CommissionEnabled,
		item.CommissionType, item.CommissionRate, item.LegacyExternalID,
		item.CreatedAt, item.UpdatedAt)
	return err
}

func (r *Repository) Update(ctx context.Context, item *SellableItem) error {
	item.UpdatedAt = time.Now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE sellable_items
		SET name = $2, price = $3, commission_enabled = $4,
		    commission_type = $5, commission_rate = $6, updated_at = $7
		WHERE id = $1
	`, item.ID, item.Name, item.Price, item.CommissionEnabled,
		item.CommissionType, item.CommissionRate, item.UpdatedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrItemNotFound
	}
	return nil
}
