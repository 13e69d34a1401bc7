// Package supervisor periodically advances every pending governance process,
// catching remote changes no webhook would report.
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/agorahq/agora/pkg/process"
)

const sweepTimeout = 5 * time.Minute

// ProcessUpdater is the slice of the process manager the supervisor drives.
type ProcessUpdater interface {
	ListPending(ctx context.Context) ([]*process.Record, error)
	Update(ctx context.Context, id string) error
}

type Supervisor struct {
	updater  ProcessUpdater
	schedule string
	logger   *slog.Logger
	cron     *cron.Cron
}

// New creates a supervisor sweeping on the given cron schedule, e.g.
// "@every 1m".
func New(updater ProcessUpdater, schedule string, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		updater:  updater,
		schedule: schedule,
		logger:   logger.With("module", "supervisor"),
	}
}

// Start begins the periodic sweep. An immediate first sweep runs so restarts
// do not wait a full interval to catch up.
func (s *Supervisor) Start(ctx context.Context) error {
	s.cron = cron.New()

	_, err := s.cron.AddFunc(s.schedule, func() {
		s.Sweep(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "Supervisor started", "schedule", s.schedule)

	go s.Sweep(ctx)

	return nil
}

// Stop halts the sweep, waiting for a running sweep to finish.
func (s *Supervisor) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}

	stopped := s.cron.Stop()

	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}

	s.logger.InfoContext(ctx, "Supervisor stopped")
}

// Sweep updates every pending process once. Failures are logged per process;
// one broken process never blocks the rest, and the next sweep retries.
func (s *Supervisor) Sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	pending, err := s.updater.ListPending(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list pending processes", "error", err)

		return
	}

	for _, rec := range pending {
		if err := s.updater.Update(ctx, rec.ID); err != nil {
			s.logger.WarnContext(ctx, "Process update failed",
				"process_id", rec.ID, "process", rec.Name, "error", err)
		}
	}
}
