// Package scheduler runs the periodic maintenance jobs of the festival
// service: purging dead session rows and, when configured, sweeping
// programs in DECISION for screenings that were never finally submitted.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SessionPurger deletes invalid or expired session rows.
type SessionPurger interface {
	PurgeSessions(ctx context.Context) (int64, error)
}

// DecisionSweeper auto-rejects non-final approved screenings across all
// programs in DECISION.
type DecisionSweeper interface {
	SweepDecisionPrograms(ctx context.Context) (int, error)
}

// Config selects the cron expressions.  An empty expression disables the job.
type Config struct {
	TokenPurge string
	AutoReject string
	// JobTimeout bounds a single run.  Zero means one minute.
	JobTimeout time.Duration
}

// Scheduler owns a cron runner and the jobs registered on it.
type Scheduler struct {
	cron    *cron.Cron
	cfg     Config
	purger  SessionPurger
	sweeper DecisionSweeper
	logger  *zap.Logger
}

// New creates a scheduler.  Jobs are registered by Start.
func New(cfg Config, purger SessionPurger, sweeper DecisionSweeper, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = time.Minute
	}
	return &Scheduler{
		cron:    cron.New(),
		cfg:     cfg,
		purger:  purger,
		sweeper: sweeper,
		logger:  logger.Named("scheduler"),
	}
}

// Start registers the configured jobs and starts the cron runner.
func (s *Scheduler) Start() error {
	if s.cfg.TokenPurge != "" && s.purger != nil {
		if _, err := s.cron.AddFunc(s.cfg.TokenPurge, s.PurgeSessions); err != nil {
			return fmt.Errorf("token purge schedule %q: %w", s.cfg.TokenPurge, err)
		}
	}
	if s.cfg.AutoReject != "" && s.sweeper != nil {
		if _, err := s.cron.AddFunc(s.cfg.AutoReject, s.SweepDecisions); err != nil {
			return fmt.Errorf("auto-reject schedule %q: %w", s.cfg.AutoReject, err)
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// Jobs returns the number of registered jobs.
func (s *Scheduler) Jobs() int { return len(s.cron.Entries()) }

// PurgeSessions runs the token purge job once.
func (s *Scheduler) PurgeSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	n, err := s.purger.PurgeSessions(ctx)
	if err != nil {
		s.logger.Error("session purge failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("purged sessions", zap.Int64("count", n))
	}
}

// SweepDecisions runs the auto-reject sweep once.
func (s *Scheduler) SweepDecisions() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	n, err := s.sweeper.SweepDecisionPrograms(ctx)
	if err != nil {
		s.logger.Error("auto-reject sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("auto-rejected screenings", zap.Int("count", n))
	}
}
