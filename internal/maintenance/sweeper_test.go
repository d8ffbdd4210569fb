package maintenance

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"coworking/internal/inventory/repository"
	"coworking/internal/locks"
	"coworking/pkg/clock"
	"coworking/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLockSweeper struct {
	sweepFunc func(ctx context.Context) (locks.SweepReport, error)
}

func (m *mockLockSweeper) Sweep(ctx context.Context) (locks.SweepReport, error) {
	return m.sweepFunc(ctx)
}

type mockDraftSweeper struct {
	deleteStaleFunc func(ctx context.Context, createdBefore time.Time) (int64, error)
}

func (m *mockDraftSweeper) DeleteStale(ctx context.Context, createdBefore time.Time) (int64, error) {
	return m.deleteStaleFunc(ctx, createdBefore)
}

type mockRepairer struct {
	repairFunc func(ctx context.Context) (repository.RepairReport, error)
}

func (m *mockRepairer) Repair(ctx context.Context) (repository.RepairReport, error) {
	return m.repairFunc(ctx)
}

var now = time.Date(2025, time.June, 2, 3, 0, 0, 0, time.UTC)

func TestSweeper_Run(t *testing.T) {
	var cutoff time.Time
	sweeper := NewSweeper(
		&mockLockSweeper{sweepFunc: func(ctx context.Context) (locks.SweepReport, error) {
			return locks.SweepReport{Collections: 4, Pruned: 3, Deleted: 1}, nil
		}},
		&mockDraftSweeper{deleteStaleFunc: func(ctx context.Context, createdBefore time.Time) (int64, error) {
			cutoff = createdBefore
			return 2, nil
		}},
		&mockRepairer{repairFunc: func(ctx context.Context) (repository.RepairReport, error) {
			return repository.RepairReport{Scanned: 5, Repaired: 1}, nil
		}},
		Config{DraftGraceWindow: 24 * time.Hour},
		clock.NewManual(now),
		logger.Discard(),
	)

	report := sweeper.Run(context.Background())

	assert.False(t, report.Failed())
	assert.Equal(t, 3, report.Locks.Pruned)
	assert.Equal(t, int64(2), report.DraftsDeleted)
	assert.Equal(t, 1, report.Repair.Repaired)
	assert.Equal(t, now.Add(-24*time.Hour), cutoff)
}

func TestSweeper_JobsAreIndependent(t *testing.T) {
	var repaired atomic.Bool
	sweeper := NewSweeper(
		&mockLockSweeper{sweepFunc: func(ctx context.Context) (locks.SweepReport, error) {
			return locks.SweepReport{}, errors.New("redis down")
		}},
		&mockDraftSweeper{deleteStaleFunc: func(ctx context.Context, createdBefore time.Time) (int64, error) {
			return 0, errors.New("mongo down")
		}},
		&mockRepairer{repairFunc: func(ctx context.Context) (repository.RepairReport, error) {
			repaired.Store(true)
			return repository.RepairReport{Scanned: 1}, nil
		}},
		Config{DraftGraceWindow: time.Hour},
		clock.NewManual(now),
		logger.Discard(),
	)

	report := sweeper.Run(context.Background())

	require.True(t, report.Failed())
	assert.Len(t, report.Errors, 2)
	assert.Contains(t, report.Errors[0], "lock sweep")
	assert.Contains(t, report.Errors[1], "draft sweep")
	assert.True(t, repaired.Load())
	assert.Equal(t, 1, report.Repair.Scanned)
}

type countingRunner struct {
	runs    atomic.Int32
	release chan struct{}
}

func (r *countingRunner) Run(ctx context.Context) *Report {
	r.runs.Add(1)
	if r.release != nil {
		<-r.release
	}
	return &Report{}
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := NewScheduler(&countingRunner{}, "every morning", time.UTC, 0, logger.Discard())
	assert.Error(t, s.Start())
}

func TestScheduler_SkipsOverlappingRuns(t *testing.T) {
	runner := &countingRunner{release: make(chan struct{})}
	s := NewScheduler(runner, "", time.UTC, time.Second, logger.Discard())

	done := make(chan struct{})
	go func() {
		s.tick()
		close(done)
	}()
	require.Eventually(t, func() bool { return runner.runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	s.tick()
	assert.Equal(t, int32(1), runner.runs.Load())

	close(runner.release)
	<-done

	runner.release = nil
	s.tick()
	assert.Equal(t, int32(2), runner.runs.Load())
}

func TestScheduler_StartStop(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	s := NewScheduler(&countingRunner{}, DefaultSchedule, loc, 0, logger.Discard())

	require.NoError(t, s.Start())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
