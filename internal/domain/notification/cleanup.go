package notification

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// CleanupJob handles notification retention cleanup
type CleanupJob struct {
	repo          Repository
	retentionDays int
}

// NewCleanupJob creates a cleanup job
func NewCleanupJob(repo Repository, retentionDays int) *CleanupJob {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &CleanupJob{
		repo:          repo,
		retentionDays: retentionDays,
	}
}

// RunOnce deletes read notifications past the retention window.
func (j *CleanupJob) RunOnce(ctx context.Context) (int64, error) {
	age := time.Duration(j.retentionDays) * 24 * time.Hour
	deleted, err := j.repo.DeleteOlderThan(ctx, age)
	if err != nil {
		log.Error().Err(err).Msg("Failed to cleanup old notifications")
		return 0, err
	}
	if deleted > 0 {
		log.Info().
			Int64("deleted", deleted).
			Int("retention_days", j.retentionDays).
			Msg("Cleaned up old notifications")
	}
	return deleted, nil
}
