// Package locks maintains the short-lived, per-resource holds placed by
// checkout attempts. Every read filters by expiry explicitly; the storage TTL
// is only a coarse garbage collector.
package locks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"coworking/internal/calendar"
	inventoryerrors "coworking/internal/inventory/errors"
	"coworking/pkg/clock"
	"coworking/pkg/logger"
	"coworking/pkg/model"
)

type ResourceReader interface {
	FindByID(ctx context.Context, id string) (*model.Resource, error)
}

type Config struct {
	Policy          Policy
	DefaultCapacity int
}

type LockRequest struct {
	ResourceID string
	Range      calendar.Range
	Token      string
	Quantity   int
	// Capacity, when positive, is used instead of reading the resource so
	// that one operation resolves capacity only once.
	Capacity int
}

// AdmitFunc runs inside the atomic section with the active locks of the
// resource, the requester's own token excluded. A non-nil error refuses the
// lock and is returned unchanged from Acquire.
type AdmitFunc func(active []model.Lock) error

type SweepReport struct {
	Collections int `json:"collections"`
	Pruned      int `json:"pruned"`
	Deleted     int `json:"deleted"`
	Failed      int `json:"failed"`
}

type Manager struct {
	store     Store
	resources ResourceReader
	cfg       Config
	clock     clock.Clock
	log       *logger.Logger
}

func NewManager(store Store, resources ResourceReader, cfg Config, c clock.Clock, log *logger.Logger) *Manager {
	if cfg.DefaultCapacity < 1 {
		cfg.DefaultCapacity = 1
	}
	cfg.Policy = cfg.Policy.withDefaults()
	if c == nil {
		c = clock.NewSystem()
	}
	return &Manager{store: store, resources: resources, cfg: cfg, clock: c, log: log}
}

func (m *Manager) Policy() Policy {
	return m.cfg.Policy
}

// AddLock places an unconditional hold of one unit.
func (m *Manager) AddLock(ctx context.Context, resourceID string, r calendar.Range, token string) (*model.Lock, error) {
	return m.Acquire(ctx, LockRequest{ResourceID: resourceID, Range: r, Token: token, Quantity: 1}, nil)
}

// Acquire prunes expired locks, consults admit, then appends the new lock and
// persists the collection, all as one atomic step. A lock already stored under
// the same token is replaced rather than duplicated.
func (m *Manager) Acquire(ctx context.Context, req LockRequest, admit AdmitFunc) (*model.Lock, error) {
	if req.ResourceID == "" || req.Token == "" {
		return nil, fmt.Errorf("%w: resource and token are required", ErrInvalidLock)
	}
	if err := req.Range.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLock, err)
	}

	capacity := req.Capacity
	if capacity <= 0 {
		var err error
		if capacity, err = m.capacity(ctx, req.ResourceID); err != nil {
			return nil, err
		}
	}

	hold := m.cfg.Policy.Duration(capacity)
	now := m.clock.Now()
	lock := model.Lock{
		Start:     req.Range.Start,
		End:       req.Range.End,
		Quantity:  max(1, req.Quantity),
		Token:     req.Token,
		ExpiresAt: now.Add(hold),
		Kind:      m.cfg.Policy.Kind(hold),
	}

	err := m.store.Update(ctx, req.ResourceID, func(current []model.Lock) ([]model.Lock, time.Duration, error) {
		active := withoutToken(prune(current, now), req.Token)
		if admit != nil {
			if err := admit(active); err != nil {
				return nil, 0, err
			}
		}
		return append(active, lock), hold, nil
	})
	if err != nil {
		return nil, err
	}

	m.log.Debug("Lock added",
		"resource_id", req.ResourceID,
		"range", req.Range.String(),
		"hold", hold.String(),
		"lock_type", lock.Kind,
	)
	return &lock, nil
}

// RemoveLockByToken is idempotent; an unknown token is not an error. A failed
// capacity lookup does not block the removal.
func (m *Manager) RemoveLockByToken(ctx context.Context, resourceID, token string) error {
	hold := m.holdOrMax(ctx, resourceID)
	now := m.clock.Now()
	return m.store.Update(ctx, resourceID, func(current []model.Lock) ([]model.Lock, time.Duration, error) {
		return withoutToken(prune(current, now), token), hold, nil
	})
}

// ActiveLocks is read-only: expired entries are filtered, never pruned.
func (m *Manager) ActiveLocks(ctx context.Context, resourceID string) ([]model.Lock, error) {
	stored, err := m.store.Load(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	return prune(stored, m.clock.Now()), nil
}

// Refresh extends the token's lock to a full policy duration from now. It
// reports false when the token holds no active lock.
func (m *Manager) Refresh(ctx context.Context, resourceID, token string) (*model.Lock, bool, error) {
	hold, err := m.hold(ctx, resourceID)
	if err != nil {
		return nil, false, err
	}
	now := m.clock.Now()

	var refreshed *model.Lock
	err = m.store.Update(ctx, resourceID, func(current []model.Lock) ([]model.Lock, time.Duration, error) {
		refreshed = nil
		active := prune(current, now)
		for i := range active {
			if active[i].Token == token {
				active[i].ExpiresAt = now.Add(hold)
				active[i].Kind = m.cfg.Policy.Kind(hold)
				l := active[i]
				refreshed = &l
			}
		}
		return active, hold, nil
	})
	if err != nil {
		return nil, false, err
	}
	return refreshed, refreshed != nil, nil
}

// Sweep prunes every stored collection, deleting the ones left empty.
func (m *Manager) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	ids, err := m.store.Resources(ctx)
	if err != nil {
		return report, err
	}
	report.Collections = len(ids)

	now := m.clock.Now()
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		hold := m.holdOrMax(ctx, id)

		var pruned int
		var emptied bool
		err := m.store.Update(ctx, id, func(current []model.Lock) ([]model.Lock, time.Duration, error) {
			active := prune(current, now)
			pruned = len(current) - len(active)
			emptied = len(active) == 0
			return active, hold, nil
		})
		if err != nil {
			report.Failed++
			m.log.Error("Failed to sweep lock collection", "resource_id", id, "error", err)
			continue
		}

		report.Pruned += pruned
		if emptied {
			report.Deleted++
		}
	}

	return report, nil
}

func (m *Manager) hold(ctx context.Context, resourceID string) (time.Duration, error) {
	capacity, err := m.capacity(ctx, resourceID)
	if errors.Is(err, inventoryerrors.ErrResourceNotFound) {
		capacity, err = m.cfg.DefaultCapacity, nil
	}
	if err != nil {
		return 0, err
	}
	return m.cfg.Policy.Duration(capacity), nil
}

// holdOrMax is hold for writes that only shrink a collection. When the
// capacity lookup fails the longest hold keeps every remaining lock alive
// until its own expiry.
func (m *Manager) holdOrMax(ctx context.Context, resourceID string) time.Duration {
	hold, err := m.hold(ctx, resourceID)
	if err != nil {
		m.log.Warn("Failed to resolve lock policy, using longest hold",
			"resource_id", resourceID,
			"error", err,
		)
		return m.cfg.Policy.MaxHold()
	}
	return hold
}

func (m *Manager) capacity(ctx context.Context, resourceID string) (int, error) {
	resource, err := m.resources.FindByID(ctx, resourceID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve capacity of %s: %w", resourceID, err)
	}
	return resource.EffectiveCapacity(m.cfg.DefaultCapacity), nil
}

func prune(locks []model.Lock, now time.Time) []model.Lock {
	return slices.DeleteFunc(slices.Clone(locks), func(l model.Lock) bool {
		return !l.ActiveAt(now)
	})
}

func withoutToken(locks []model.Lock, token string) []model.Lock {
	return slices.DeleteFunc(locks, func(l model.Lock) bool {
		return l.Token == token
	})
}
