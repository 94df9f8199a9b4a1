package deliveries

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Sweeper periodically deletes deliveries older than the retention window.
type Sweeper struct {
	store     *Store
	retention time.Duration
	cron      *cron.Cron
	now       func() time.Time
}

// NewSweeper schedules the retention sweep on a standard cron expression or
// descriptor such as "@hourly".
func NewSweeper(store *Store, retention time.Duration, schedule string) (*Sweeper, error) {
	s := &Sweeper{
		store:     store,
		retention: retention,
		cron:      cron.New(),
		now:       time.Now,
	}

	if _, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.RunOnce(context.Background()); err != nil {
			log.Error().Err(err).Msg("Delivery retention sweep failed")
		}
	}); err != nil {
		return nil, fmt.Errorf("scheduling retention sweep: %w", err)
	}

	return s, nil
}

// Start begins the schedule.
func (s *Sweeper) Start() {
	s.cron.Start()
	log.Info().Dur("retention", s.retention).Msg("Delivery retention sweeper started")
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce deletes every delivery older than the retention window.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)

	n, err := s.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if n > 0 {
		log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("Expired deliveries removed")
	}

	return n, nil
}
