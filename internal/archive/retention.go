package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultRetentionSchedule runs the purge daily at 03:00.
const DefaultRetentionSchedule = "0 3 * * *"

// Purger deletes archived mappings older than a cutoff.
type Purger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionScheduler purges archived mappings on a cron schedule.
type RetentionScheduler struct {
	cron      *cron.Cron
	store     Purger
	retention time.Duration
	now       func() time.Time
}

// NewRetentionScheduler creates a scheduler that removes records older than
// retentionDays. Cron expressions use the standard 5-field format.
func NewRetentionScheduler(store Purger, retentionDays int) *RetentionScheduler {
	return &RetentionScheduler{
		cron:      cron.New(),
		store:     store,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		now:       time.Now,
	}
}

// Register adds the purge job. A non-positive retention disables it and an
// empty schedule selects DefaultRetentionSchedule.
func (s *RetentionScheduler) Register(schedule string) error {
	if s.retention <= 0 {
		return nil
	}
	if schedule == "" {
		schedule = DefaultRetentionSchedule
	}
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := s.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("archive_retention_failed")
		}
	})
	if err != nil {
		return fmt.Errorf("registering retention cron %q: %w", schedule, err)
	}
	return nil
}

// RunOnce purges expired records immediately.
func (s *RetentionScheduler) RunOnce(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)
	n, err := s.store.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	log.Info().Int64("purged", n).Time("cutoff", cutoff).Msg("archive_retention_ran")
	return n, nil
}

// Start begins executing the registered job.
func (s *RetentionScheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running purge to complete.
func (s *RetentionScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Entries returns the number of registered cron entries.
func (s *RetentionScheduler) Entries() int {
	return len(s.cron.Entries())
}
