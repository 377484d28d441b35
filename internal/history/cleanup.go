package history

import (
	"time"

	"github.com/rs/zerolog"
)

// CleanupJob deletes screen runs older than the retention window.
// It satisfies the scheduler.Job interface.
type CleanupJob struct {
	store     *Store
	retention time.Duration
	log       zerolog.Logger
}

// NewCleanupJob creates a new history cleanup job
func NewCleanupJob(store *Store, retention time.Duration, log zerolog.Logger) *CleanupJob {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &CleanupJob{
		store:     store,
		retention: retention,
		log:       log.With().Str("component", "history_cleanup").Logger(),
	}
}

// Name returns the scheduler job name
func (j *CleanupJob) Name() string {
	return "history_cleanup"
}

// Run deletes runs past retention
func (j *CleanupJob) Run() error {
	deleted, err := j.store.DeleteOlderThan(j.store.now().Add(-j.retention))
	if err != nil {
		return err
	}
	if deleted > 0 {
		j.log.Info().Int64("deleted", deleted).Msg("Old screen runs removed")
	}
	return nil
}
