package jobs

import (
	"context"
	"log"
	"time"

	"github.com/jhu-collab/coursechat-api/internal/services"
)

// RetentionCleanupJob permanently removes API keys that were soft-deleted
// longer ago than the retention window. Runs daily at 03:00 UTC.
type RetentionCleanupJob struct {
	keys      *services.APIKeyService
	retention time.Duration
}

// NewRetentionCleanupJob creates the job. retention is how long soft-deleted
// keys stay recoverable.
func NewRetentionCleanupJob(keys *services.APIKeyService, retention time.Duration) *RetentionCleanupJob {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &RetentionCleanupJob{keys: keys, retention: retention}
}

// Run purges expired soft-deleted keys.
func (j *RetentionCleanupJob) Run(ctx context.Context) error {
	cutoff := time.Now().Add(-j.retention)

	purged, err := j.keys.PurgeDeleted(ctx, cutoff)
	if err != nil {
		return err
	}
	if purged > 0 {
		log.Printf("🗑️ [RETENTION] Purged %d API keys deleted before %s", purged, cutoff.UTC().Format(time.RFC3339))
	}
	return nil
}

// NextRunTime returns the next 03:00 UTC.
func (j *RetentionCleanupJob) NextRunTime() time.Time {
	now := time.Now().UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), 3, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
