package main

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// UserIDLister defines methods for selecting users to rebuild
type UserIDLister interface {
	// ListIDsWithTerminalAnswers returns the IDs of users having at least one completed question
	ListIDsWithTerminalAnswers(ctx context.Context) ([]int, error)
}

// RebuildDispatcher defines methods for enqueuing reading level rebuilds
type RebuildDispatcher interface {
	RebuildReadingLevel(ctx context.Context, userID int) error
}

// Scheduler periodically enqueues reading level rebuilds
type Scheduler struct {
	cron       *cron.Cron
	users      UserIDLister
	dispatcher RebuildDispatcher
	logger     *zap.Logger
	timeout    time.Duration
}

// NewScheduler creates a new scheduler instance running a rebuild on every tick of the cron expression
func NewScheduler(spec string, users UserIDLister, dispatcher RebuildDispatcher, logger *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:       cron.New(),
		users:      users,
		dispatcher: dispatcher,
		logger:     logger,
		timeout:    5 * time.Minute,
	}

	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("invalid rebuild schedule %q: %w", spec, err)
	}

	return s, nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started")
}

// Stop stops the scheduler and waits for a running rebuild to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	enqueued, err := s.EnqueueRebuilds(ctx)
	if err != nil {
		s.logger.Error("Reading level rebuild failed", zap.Error(err))
		return
	}
	s.logger.Info("Reading level rebuilds enqueued", zap.Int("users", enqueued))
}

// EnqueueRebuilds enqueues one rebuild per user with completed questions.
// A failed enqueue is logged and skipped; the number of enqueued rebuilds is returned.
func (s *Scheduler) EnqueueRebuilds(ctx context.Context) (int, error) {
	userIDs, err := s.users.ListIDsWithTerminalAnswers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list users: %w", err)
	}

	enqueued := 0
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return enqueued, err
		}
		if err := s.dispatcher.RebuildReadingLevel(ctx, userID); err != nil {
			s.logger.Error("Failed to enqueue reading level rebuild", zap.Int("user_id", userID), zap.Error(err))
			continue
		}
		enqueued++
	}

	return enqueued, nil
}
