package locks

import (
	"context"
	"slices"
	"sync"
	"time"

	"coworking/pkg/clock"
	"coworking/pkg/model"
)

type memoryEntry struct {
	locks     []model.Lock
	expiresAt time.Time
}

// MemoryStore is a single-process Store. Writers of the same resource are
// serialized by a per-resource mutex; the collection TTL is emulated against
// the injected clock.
type MemoryStore struct {
	mu      sync.Mutex
	keys    map[string]*sync.Mutex
	entries map[string]memoryEntry
	clock   clock.Clock
}

func NewMemoryStore(c clock.Clock) *MemoryStore {
	if c == nil {
		c = clock.NewSystem()
	}
	return &MemoryStore{
		keys:    make(map[string]*sync.Mutex),
		entries: make(map[string]memoryEntry),
		clock:   c,
	}
}

func (s *MemoryStore) keyMutex(resourceID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	km, ok := s.keys[resourceID]
	if !ok {
		km = &sync.Mutex{}
		s.keys[resourceID] = km
	}
	return km
}

func (s *MemoryStore) get(resourceID string) []model.Lock {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[resourceID]
	if !ok || !entry.expiresAt.After(s.clock.Now()) {
		return nil
	}
	return slices.Clone(entry.locks)
}

func (s *MemoryStore) Load(_ context.Context, resourceID string) ([]model.Lock, error) {
	return s.get(resourceID), nil
}

func (s *MemoryStore) Update(ctx context.Context, resourceID string, fn UpdateFunc) error {
	km := s.keyMutex(resourceID)
	km.Lock()
	defer km.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	next, ttl, err := fn(s.get(resourceID))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(next) == 0 || ttl <= 0 {
		delete(s.entries, resourceID)
		return nil
	}
	s.entries[resourceID] = memoryEntry{
		locks:     slices.Clone(next),
		expiresAt: s.clock.Now().Add(ttl),
	}
	return nil
}

// Resources includes collections whose TTL elapsed but were not yet swept.
func (s *MemoryStore) Resources(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}
