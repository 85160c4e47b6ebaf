package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// Scheduler runs the refresh job on a fixed interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	job       *RefreshJob
	interval  time.Duration
	logger    zerolog.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	last   *RefreshResult
}

// NewScheduler creates a scheduler for job. A non-positive interval
// defaults to 30 minutes.
func NewScheduler(job *RefreshJob, interval time.Duration, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		job:       job,
		interval:  interval,
		logger:    logger,
	}
}

// Start registers the job and starts the scheduler in the background. The
// first run happens immediately. ctx bounds every run.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	if _, err := s.scheduler.Every(s.interval).Do(s.tick); err != nil {
		return fmt.Errorf("scheduling forecast refresh: %w", err)
	}

	s.scheduler.StartAsync()
	s.logger.Info().Dur("interval", s.interval).Msg("forecast refresh scheduler started")
	return nil
}

// Stop stops the scheduler and cancels a run in progress.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.scheduler.Stop()
	s.logger.Info().Msg("forecast refresh scheduler stopped")
}

// LastResult returns the result of the most recent completed run, or nil.
func (s *Scheduler) LastResult() *RefreshResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	result := s.job.Run(ctx)

	s.mu.Lock()
	s.last = result
	s.mu.Unlock()
}
