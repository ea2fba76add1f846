// Package scheduler submits periodic refresh commands to the bridge so the
// conversation list and unread markers stay current without user action.
package scheduler

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"kbchatbox/internal/domain"
)

// Submitter is the slice of the bridge handle the scheduler needs.
type Submitter func(domain.Command) error

// Scheduler runs recurring bridge commands using cron expressions or
// "@every" durations.
type Scheduler struct {
	cron    *cron.Cron
	submit  Submitter
	logger  *slog.Logger
	mu      sync.Mutex
	started bool
}

// New creates a scheduler.
func New(submit Submitter, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		submit: submit,
		logger: logger,
	}
}

// AddRefresh schedules a periodic ListConversations submission.
func (s *Scheduler) AddRefresh(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		err := s.submit(domain.NewListConversations())
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrQueueFull):
			// The worker is behind; the next tick will catch up.
			s.logger.Debug("refresh skipped, queue full")
		case errors.Is(err, domain.ErrWorkerStopped):
			s.logger.Debug("refresh skipped, worker stopped")
		default:
			s.logger.Warn("refresh submit failed", "error", err)
		}
	})
	if err != nil {
		return domain.WrapOp("scheduler.AddRefresh", err)
	}
	return nil
}

// Start begins firing scheduled tasks. Idempotent.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop halts scheduling and waits for any running submission to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}
