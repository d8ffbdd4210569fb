package locks

import (
	"context"
	"errors"
	"time"

	"coworking/pkg/model"
)

var (
	ErrInvalidLock = errors.New("invalid lock request")
	// ErrContention is returned when the optimistic update kept losing races
	// against other writers of the same resource.
	ErrContention = errors.New("lock collection is under contention")
)

// UpdateFunc receives the stored collection (expired entries included) and
// returns the collection to persist along with its TTL. An empty result
// removes the collection. Returning an error aborts without writing.
type UpdateFunc func(current []model.Lock) (next []model.Lock, ttl time.Duration, err error)

// Store persists one lock collection per resource.
//
// Update must be atomic with respect to every other Update on the same
// resource: the collection passed to fn is the one being replaced.
type Store interface {
	Load(ctx context.Context, resourceID string) ([]model.Lock, error)
	Update(ctx context.Context, resourceID string, fn UpdateFunc) error
	Resources(ctx context.Context) ([]string, error)
}
