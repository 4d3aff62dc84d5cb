package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Scheduler periodically sweeps the outbox for due retries and for jobs
// that were committed but never dispatched
type Scheduler struct {
	queue     *Queue
	interval  time.Duration
	scheduler *gocron.Scheduler
	cancel    context.CancelFunc
}

// NewScheduler creates a scheduler for the queue
func NewScheduler(q *Queue) *Scheduler {
	interval := q.cfg.PollInterval
	if interval <= 0 {
		interval = time.Minute
	}

	return &Scheduler{
		queue:     q,
		interval:  interval,
		scheduler: gocron.NewScheduler(time.UTC),
	}
}

// Start registers the sweep job and starts the scheduler in the background
func (s *Scheduler) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(func() {
		s.queue.retryHandler.ProcessRetryQueue(ctx)
		s.queue.ProcessStale(ctx)
	})
	if err != nil {
		cancel()
		return fmt.Errorf("failed to schedule outbox sweep: %w", err)
	}

	s.scheduler.StartAsync()
	s.queue.log.Info("outbox scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.scheduler.Stop()
	s.queue.log.Info("outbox scheduler stopped")
}
