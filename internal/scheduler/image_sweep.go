// Package scheduler runs periodic maintenance jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mrlokans/tastier/internal/logger"
)

// ImageSweeper removes cached images that no favorite references.
type ImageSweeper interface {
	SweepImages(ctx context.Context) (int, error)
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateCronSchedule checks a 5-field cron expression or descriptor.
func ValidateCronSchedule(schedule string) error {
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", schedule, err)
	}
	return nil
}

// ImageSweepScheduler periodically deletes orphaned recipe images.
type ImageSweepScheduler struct {
	sweeper  ImageSweeper
	schedule string
	log      *zap.Logger

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
}

func NewImageSweepScheduler(sweeper ImageSweeper, schedule string, log *zap.Logger) *ImageSweepScheduler {
	return &ImageSweepScheduler{
		sweeper:  sweeper,
		schedule: schedule,
		log:      logger.OrNop(log).Named("image_sweep"),
		cron:     cron.New(cron.WithParser(parser)),
	}
}

// Start registers the sweep job and starts the cron runner. The scheduler
// stops on its own when ctx is cancelled.
func (s *ImageSweepScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}
	if err := ValidateCronSchedule(s.schedule); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	entryID, err := s.cron.AddFunc(s.schedule, func() {
		s.runSweep(runCtx)
	})
	if err != nil {
		cancel()
		return fmt.Errorf("failed to schedule image sweep: %w", err)
	}
	s.entryID = entryID
	s.cancelFunc = cancel

	s.cron.Start()
	s.isRunning = true

	s.log.Info("image sweep scheduler started",
		zap.String("schedule", s.schedule),
		zap.Time("next_run", s.cron.Entry(entryID).Next))

	go func() {
		<-runCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop waits for a running sweep to finish and stops the scheduler.
func (s *ImageSweepScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()

	s.cron.Remove(s.entryID)
	if s.cancelFunc != nil {
		s.cancelFunc()
		s.cancelFunc = nil
	}
	s.isRunning = false

	s.log.Info("image sweep scheduler stopped")
}

// RunNow performs a sweep immediately.
func (s *ImageSweepScheduler) RunNow(ctx context.Context) (int, error) {
	return s.sweeper.SweepImages(ctx)
}

func (s *ImageSweepScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRunTime returns when the next sweep will happen, or nil when stopped.
func (s *ImageSweepScheduler) NextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	next := s.cron.Entry(s.entryID).Next
	return &next
}

func (s *ImageSweepScheduler) runSweep(ctx context.Context) {
	removed, err := s.sweeper.SweepImages(ctx)
	if err != nil {
		s.log.Error("image sweep failed", zap.Error(err))
		return
	}
	if removed > 0 {
		s.log.Info("removed orphaned images", zap.Int("count", removed))
	}
}
