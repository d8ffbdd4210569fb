// Package maintenance runs the periodic reconciliation jobs: lock expiry,
// stale draft cleanup and stored occupancy repair.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"coworking/internal/inventory/repository"
	"coworking/internal/locks"
	"coworking/pkg/clock"
	"coworking/pkg/logger"
)

type LockSweeper interface {
	Sweep(ctx context.Context) (locks.SweepReport, error)
}

type DraftSweeper interface {
	DeleteStale(ctx context.Context, createdBefore time.Time) (int64, error)
}

type OccupancyRepairer interface {
	Repair(ctx context.Context) (repository.RepairReport, error)
}

type Config struct {
	// DraftGraceWindow is how long an unpaid draft outlives its creation.
	// It must exceed the longest lock hold.
	DraftGraceWindow time.Duration
}

type Report struct {
	StartedAt     time.Time               `json:"started_at"`
	Duration      string                  `json:"duration"`
	Locks         locks.SweepReport       `json:"locks"`
	DraftsDeleted int64                   `json:"drafts_deleted"`
	Repair        repository.RepairReport `json:"repair"`
	Errors        []string                `json:"errors,omitempty"`
}

func (r *Report) Failed() bool {
	return len(r.Errors) > 0
}

type Sweeper struct {
	locks    LockSweeper
	drafts   DraftSweeper
	repairer OccupancyRepairer
	cfg      Config
	clock    clock.Clock
	log      *logger.Logger
}

func NewSweeper(lockSweeper LockSweeper, drafts DraftSweeper, repairer OccupancyRepairer, cfg Config, c clock.Clock, log *logger.Logger) *Sweeper {
	if c == nil {
		c = clock.NewSystem()
	}
	return &Sweeper{
		locks:    lockSweeper,
		drafts:   drafts,
		repairer: repairer,
		cfg:      cfg,
		clock:    c,
		log:      log,
	}
}

// Run executes every job. A failing job is recorded in the report and does
// not stop the others.
func (s *Sweeper) Run(ctx context.Context) *Report {
	started := s.clock.Now()
	report := &Report{StartedAt: started}

	if lockReport, err := s.locks.Sweep(ctx); err != nil {
		s.fail(report, "lock sweep", err)
	} else {
		report.Locks = lockReport
	}

	cutoff := started.Add(-s.cfg.DraftGraceWindow)
	if deleted, err := s.drafts.DeleteStale(ctx, cutoff); err != nil {
		s.fail(report, "draft sweep", err)
	} else {
		report.DraftsDeleted = deleted
	}

	if repairReport, err := s.repairer.Repair(ctx); err != nil {
		s.fail(report, "occupancy repair", err)
	} else {
		report.Repair = repairReport
	}

	report.Duration = s.clock.Now().Sub(started).String()

	s.log.Info("Maintenance finished",
		"locks_pruned", report.Locks.Pruned,
		"lock_collections_deleted", report.Locks.Deleted,
		"drafts_deleted", report.DraftsDeleted,
		"occupancy_repaired", report.Repair.Repaired,
		"errors", len(report.Errors),
		"duration", report.Duration,
	)
	return report
}

func (s *Sweeper) fail(report *Report, job string, err error) {
	s.log.Error("Maintenance job failed", "job", job, "error", err)
	report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", job, err))
}
