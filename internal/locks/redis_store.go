package locks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"coworking/internal/calendar"
	"coworking/pkg/logger"
	"coworking/pkg/model"

	"github.com/redis/go-redis/v9"
)

const (
	KeyPrefix         = "locks:"
	DefaultMaxRetries = 16
	scanCount         = 100
)

func lockKey(resourceID string) string {
	return KeyPrefix + resourceID
}

// lockRecord is the stored shape of a lock; expires_at is unix seconds.
type lockRecord struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	Quantity  int    `json:"quantity"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
	LockType  string `json:"lock_type"`
}

// RedisStore keeps each collection as a JSON array under locks:<resourceID>
// and serializes writers of the same key with WATCH/MULTI.
type RedisStore struct {
	client     *redis.Client
	maxRetries int
	log        *logger.Logger
}

func NewRedisStore(client *redis.Client, maxRetries int, log *logger.Logger) *RedisStore {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &RedisStore{client: client, maxRetries: maxRetries, log: log}
}

func (s *RedisStore) Load(ctx context.Context, resourceID string) ([]model.Lock, error) {
	data, err := s.client.Get(ctx, lockKey(resourceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load locks for %s: %w", resourceID, err)
	}
	return s.decode(resourceID, data), nil
}

func (s *RedisStore) Update(ctx context.Context, resourceID string, fn UpdateFunc) error {
	key := lockKey(resourceID)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to read locks for %s: %w", resourceID, err)
		}

		next, ttl, err := fn(s.decode(resourceID, data))
		if err != nil {
			return err
		}

		var payload []byte
		if len(next) > 0 {
			if payload, err = encode(next); err != nil {
				return fmt.Errorf("failed to encode locks for %s: %w", resourceID, err)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(next) == 0 {
				pipe.Del(ctx, key)
				return nil
			}
			pipe.Set(ctx, key, payload, ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}

	s.log.Warn("Lock collection update kept conflicting",
		"resource_id", resourceID,
		"attempts", s.maxRetries,
	)
	return fmt.Errorf("%w: %s", ErrContention, resourceID)
}

func (s *RedisStore) Resources(ctx context.Context) ([]string, error) {
	var ids []string
	iter := s.client.Scan(ctx, 0, KeyPrefix+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), KeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan lock collections: %w", err)
	}
	return ids, nil
}

// decode never fails: unreadable payloads count as an empty collection and
// malformed entries are skipped.
func (s *RedisStore) decode(resourceID string, data []byte) []model.Lock {
	if len(data) == 0 {
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.log.Warn("Unreadable lock collection treated as empty",
			"resource_id", resourceID,
			"error", err,
		)
		return nil
	}

	locks := make([]model.Lock, 0, len(raw))
	for _, item := range raw {
		var rec lockRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			continue
		}
		lock, ok := rec.toModel()
		if !ok {
			continue
		}
		locks = append(locks, lock)
	}

	if skipped := len(raw) - len(locks); skipped > 0 {
		s.log.Warn("Skipped malformed lock entries",
			"resource_id", resourceID,
			"skipped", skipped,
		)
	}
	return locks
}

func (r lockRecord) toModel() (model.Lock, bool) {
	if r.Token == "" || r.ExpiresAt == 0 {
		return model.Lock{}, false
	}
	rng, err := calendar.ParseRange(r.Start, r.End)
	if err != nil || r.End == "" {
		return model.Lock{}, false
	}
	return model.Lock{
		Start:     rng.Start,
		End:       rng.End,
		Quantity:  max(1, r.Quantity),
		Token:     r.Token,
		ExpiresAt: time.Unix(r.ExpiresAt, 0).UTC(),
		Kind:      model.LockKind(r.LockType),
	}, true
}

func encode(locks []model.Lock) ([]byte, error) {
	records := make([]lockRecord, 0, len(locks))
	for _, l := range locks {
		records = append(records, lockRecord{
			Start:     l.Start.String(),
			End:       l.End.String(),
			Quantity:  max(1, l.Quantity),
			Token:     l.Token,
			ExpiresAt: l.ExpiresAt.Unix(),
			LockType:  string(l.Kind),
		})
	}
	return json.Marshal(records)
}
