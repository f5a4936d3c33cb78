package reconciliation

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrRunNotFound = errors.New("reconciliation run not found")

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateRun(ctx context.Context, run *Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	run.StartedAt = time.Now()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reconciliation_runs (id, mode, snapshot_source, started_at)
		VALUES ($1, $2, $3, $4)
	`, run.ID, run.Mode, run.SnapshotSource, run.StartedAt)
	return err
}

// FinishRun stores the final counters and report location.
func (r *Repository) FinishRun(ctx context.Context, run *Run) error {
	run.FinishedAt = sql.NullTime{Time: time.Now(), Valid: true}

	_, err := r.db.ExecContext(ctx, `
		UPDATE reconciliation_runs
		SET total = $2, matched = $3, missing = $4, orphaned = $5,
		    rate_mismatch = $6, duplicate = $7, repaired = $8, failed = $9,
		    report_key = $10, finished_at = $11
		WHERE id = $1
	`, run.ID, run.Total, run.Matched, run.Missing, run.Orphaned,
		run.RateMismatch, run.Duplicate, run.Repaired, run.Failed,
		run.ReportKey, run.FinishedAt)
	return err
}

func (r *Repository) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	var run Run
	err := r.db.GetContext(ctx, &run, `
		SELECT id, mode, snapshot_source, total, matched, missing, orphaned,
		       rate_mismatch, duplicate, repaired, failed, report_key,
		       started_at, finished_at
		FROM reconciliation_runs
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *Repository) ListRuns(ctx context.Context, limit, offset int) ([]Run, error) {
	runs := []Run{}
	err := r.db.SelectContext(ctx, &runs, `
		SELECT id, mode, snapshot_source, total, matched, missing, orphaned,
		       rate_mismatch, duplicate, repaired, failed, report_key,
		       started_at, finished_at
		FROM reconciliation_runs
		ORDER BY started_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	return runs, err
}

// ListRunsWithReportBefore returns runs whose archived report predates
// cutoff, oldest first. Used by the retention sweep.
func (r *Repository) ListRunsWithReportBefore(ctx context.Context, cutoff time.Time, limit int) ([]Run, error) {
	runs := []Run{}
	err := r.db.SelectContext(ctx, &runs, `
		SELECT id, mode, snapshot_source, total, matched, missing, orphaned,
		       rate_mismatch, duplicate, repaired, failed, report_key,
		       started_at, finished_at
		FROM reconciliation_runs
		WHERE report_key IS NOT NULL AND started_at < $1
		ORDER BY started_at ASC
		LIMIT $2
	`, cutoff, limit)
	return runs, err
}

// ClearReportKey detaches a deleted report from its run. The run and
// its rows stay queryable.
func (r *Repository) ClearReportKey(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE reconciliation_runs SET report_key = NULL WHERE id = $1
	`, id)
	return err
}

func (r *Repository) InsertRow(ctx context.Context, row *Row) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	row.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reconciliation_rows
			(id, run_id, external_transaction_id, state, entry_id,
			 before_amount, expected_amount, after_amount, wallet_delta,
			 rate_source, repaired, repair_error, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, row.ID, row.RunID, row.ExternalTransactionID, row.State, row.EntryID,
		row.BeforeAmount, row.ExpectedAmount, row.AfterAmount, row.WalletDelta,
		row.RateSource, row.Repaired, row.RepairError, row.CreatedAt)
	return err
}

func (r *Repository) ListRows(ctx context.Context, runID uuid.UUID, limit, offset int) ([]Row, error) {
	rows := []Row{}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, run_id, external_transaction_id, state, entry_id,
		       before_amount, expected_amount, after_amount, wallet_delta,
		       rate_source, repaired, repair_error, created_at
		FROM reconciliation_rows
		WHERE run_id = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`, runID, limit, offset)
	return rows, err
}
