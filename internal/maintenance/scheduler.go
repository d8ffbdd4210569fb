package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"coworking/pkg/logger"

	"github.com/robfig/cron/v3"
)

const DefaultSchedule = "0 3 * * *"

type Runner interface {
	Run(ctx context.Context) *Report
}

// Scheduler runs maintenance on a cron schedule evaluated in the business
// timezone. Overlapping runs are skipped.
type Scheduler struct {
	cron     *cron.Cron
	runner   Runner
	schedule string
	timeout  time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	running bool
}

func NewScheduler(runner Runner, schedule string, loc *time.Location, timeout time.Duration, log *logger.Logger) *Scheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		runner:   runner,
		schedule: schedule,
		timeout:  timeout,
		log:      log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.tick); err != nil {
		return fmt.Errorf("invalid maintenance schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.log.Info("Maintenance scheduler started", "schedule", s.schedule)
	return nil
}

// Stop waits for a run in progress to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("Maintenance scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("Maintenance scheduler stop timed out", "error", ctx.Err())
	}
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn("Previous maintenance run still in progress, skipping")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	s.runner.Run(ctx)
}
