// Package scheduler runs the background token refresh sweep.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wyldephyre/jessica-core/internal/logging"
)

// Sweeper pre-refreshes a user's expiring tokens. Satisfied by
// token.Service.
type Sweeper interface {
	RefreshExpiring(ctx context.Context, userID string)
}

// Scheduler manages the cron jobs for token maintenance
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	userIDs []string
	logger  *slog.Logger
}

// New creates a scheduler that sweeps the given users' tokens on spec,
// e.g. "@every 10m"
func New(sweeper Sweeper, spec string, userIDs []string) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		sweeper: sweeper,
		userIDs: userIDs,
		logger:  logging.WithComponent("scheduler"),
	}
	if _, err := s.cron.AddFunc(spec, s.sweep); err != nil {
		return nil, err
	}
	return s, nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// sweep refreshes expiring tokens for every known user. Failures are logged
// inside the sweeper; a broken refresh never stops the sweep.
func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for _, userID := range s.userIDs {
		s.sweeper.RefreshExpiring(ctx, userID)
	}
	s.logger.Debug("token refresh sweep complete", "users", len(s.userIDs))
}
