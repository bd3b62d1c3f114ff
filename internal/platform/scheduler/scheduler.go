// Package scheduler triggers background syncs on a cron schedule inside the server.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Triggerer starts a background sync.
type Triggerer interface {
	Trigger(ctx context.Context) (string, error)
}

// Scheduler fires Triggerer on a cron expression.
type Scheduler struct {
	cron    *gocron.Scheduler
	trigger Triggerer
	busy    error
}

// New creates a scheduler running cronExpr in UTC. busy is the error the
// triggerer returns while a run is already in progress; it is logged at info.
func New(cronExpr string, trigger Triggerer, busy error) (*Scheduler, error) {
	s := &Scheduler{
		cron:    gocron.NewScheduler(time.UTC),
		trigger: trigger,
		busy:    busy,
	}
	if _, err := s.cron.Cron(cronExpr).Do(s.fire); err != nil {
		return nil, fmt.Errorf("invalid SYNC_CRON %q: %w", cronExpr, err)
	}
	return s, nil
}

func (s *Scheduler) fire() {
	runID, err := s.trigger.Trigger(context.Background())
	switch {
	case err == nil:
		slog.Info("scheduled sync started", "run_id", runID)
	case s.busy != nil && errors.Is(err, s.busy):
		slog.Info("scheduled sync skipped, previous run still in progress")
	default:
		slog.Warn("scheduled sync failed to start", "error", err)
	}
}

// Start starts the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.StartAsync()
	slog.Info("scheduler started")
}

// Stop stops the schedule. A run already handed to the triggerer is not affected.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	slog.Info("scheduler stopped")
}
