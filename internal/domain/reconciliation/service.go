package reconciliation

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/eksporyuk/affiliate-api/internal/pkg/storage"
)

// Service orchestrates reconciliation runs: classify, optionally
// repair, persist the outcome, and archive the report.
type Service struct {
	engine   *Engine
	repairer *Repairer
	repo     *Repository
	store    storage.Storage
}

// NewService creates the reconciliation service. store may be nil, in
// which case reports are persisted to the database only.
func NewService(engine *Engine, repairer *Repairer, repo *Repository, store storage.Storage) *Service {
	return &Service{
		engine:   engine,
		repairer: repairer,
		repo:     repo,
		store:    store,
	}
}

// RunFromKey reconciles against a snapshot object fetched from storage.
func (s *Service) RunFromKey(ctx context.Context, key string, mode Mode) (*Run, error) {
	if s.store == nil {
		return nil, fmt.Errorf("no snapshot storage configured")
	}
	rc, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot %s: %w", key, err)
	}
	defer rc.Close()
	return s.Run(ctx, NewJSONLSource(key, rc), mode)
}

// RunFromFile reconciles against a local snapshot file.
func (s *Service) RunFromFile(ctx context.Context, path string, mode Mode) (*Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return s.Run(ctx, NewJSONLSource(filepath.Base(path), f), mode)
}

// Run executes one reconciliation batch over src.
func (s *Service) Run(ctx context.Context, src Source, mode Mode) (*Run, error) {
	run := &Run{Mode: mode, SnapshotSource: src.Name()}
	if err := s.repo.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	log.Info().
		Str("run_id", run.ID.String()).
		Str("mode", string(mode)).
		Str("snapshot", run.SnapshotSource).
		Msg("reconciliation run started")

	findings, sum, err := s.engine.Reconcile(ctx, src)
	if err != nil {
		// Persist whatever was classified before the failure.
		s.finish(ctx, run, sum, findings)
		return run, err
	}

	if mode == ModeRepair {
		for _, f := range findings {
			s.repairer.Repair(ctx, f)
			switch {
			case f.Row.Repaired:
				run.Repaired++
			case f.Row.RepairError.Valid:
				run.Failed++
			}
		}
	}

	s.finish(ctx, run, sum, findings)

	log.Info().
		Str("run_id", run.ID.String()).
		Int("total", run.Total).
		Int("matched", run.Matched).
		Int("missing", run.Missing).
		Int("orphaned", run.Orphaned).
		Int("rate_mismatch", run.RateMismatch).
		Int("duplicate", run.Duplicate).
		Int("repaired", run.Repaired).
		Int("failed", run.Failed).
		Msg("reconciliation run finished")

	return run, nil
}

func (s *Service) finish(ctx context.Context, run *Run, sum Summary, findings []*Finding) {
	run.Total = sum.Total
	run.Matched = sum.Matched
	run.Missing = sum.Missing
	run.Orphaned = sum.Orphaned
	run.RateMismatch = sum.RateMismatch
	run.Duplicate = sum.Duplicate

	for _, f := range findings {
		f.Row.RunID = run.ID
		if err := s.repo.InsertRow(ctx, &f.Row); err != nil {
			log.Error().Err(err).
				Str("external_transaction_id", f.Row.ExternalTransactionID).
				Msg("failed to persist reconciliation row")
		}
	}

	if key, err := s.uploadReport(ctx, run, findings); err != nil {
		log.Warn().Err(err).Msg("failed to archive reconciliation report")
	} else if key != "" {
		run.ReportKey = sql.NullString{String: key, Valid: true}
	}

	if err := s.repo.FinishRun(ctx, run); err != nil {
		log.Error().Err(err).Str("run_id", run.ID.String()).Msg("failed to finalize reconciliation run")
	}
}

func (s *Service) uploadReport(ctx context.Context, run *Run, findings []*Finding) (string, error) {
	if s.store == nil {
		return "", nil
	}

	rows := make([]Row, len(findings))
	for i, f := range findings {
		rows[i] = f.Row
	}
	payload, err := json.MarshalIndent(struct {
		Run  *Run  `json:"run"`
		Rows []Row `json:"rows"`
	}{run, rows}, "", "  ")
	if err != nil {
		return "", err
	}

	key := "reconciliation/reports/" + run.ID.String() + ".json"
	if err := s.store.Put(ctx, key, bytes.NewReader(payload), "application/json"); err != nil {
		return "", err
	}
	return key, nil
}

// ReportURL returns the public URL of a run's archived report, or ""
// when no report exists or no storage is configured.
func (s *Service) ReportURL(run *Run) string {
	if s.store == nil || run == nil || !run.ReportKey.Valid {
		return ""
	}
	return s.store.GetURL(run.ReportKey.String)
}

// PruneReports deletes archived reports older than retention and
// detaches them from their runs. Run records and discrepancy rows are
// kept; only the bulky report objects expire.
func (s *Service) PruneReports(ctx context.Context, retention time.Duration) (int, error) {
	if s.store == nil {
		return 0, nil
	}

	cutoff := time.Now().Add(-retention)
	runs, err := s.repo.ListRunsWithReportBefore(ctx, cutoff, 500)
	if err != nil {
		return 0, err
	}

	pruned := 0
	for i := range runs {
		run := &runs[i]
		if err := s.store.Delete(ctx, run.ReportKey.String); err != nil {
			log.Warn().Err(err).
				Str("run_id", run.ID.String()).
				Str("report_key", run.ReportKey.String).
				Msg("failed to delete expired reconciliation report")
			continue
		}
		if err := s.repo.ClearReportKey(ctx, run.ID); err != nil {
			return pruned, err
		}
		pruned++
	}
	if pruned > 0 {
		log.Info().Int("pruned", pruned).Msg("expired reconciliation reports deleted")
	}
	return pruned, nil
}

// GetRun returns one run by id.
func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	return s.repo.GetRun(ctx, id)
}

// ListRuns returns recent runs.
func (s *Service) ListRuns(ctx context.Context, limit, offset int) ([]Run, error) {
	return s.repo.ListRuns(ctx, limit, offset)
}

// ListRows returns a run's stored discrepancy rows.
func (s *Service) ListRows(ctx context.Context, runID uuid.UUID, limit, offset int) ([]Row, error) {
	return s.repo.ListRows(ctx, runID, limit, offset)
}
