package locks

import (
	"time"

	"coworking/pkg/config"
	"coworking/pkg/model"
)

const (
	DefaultExclusiveCapacity = 1
	DefaultLongHold          = 20 * time.Minute
	DefaultShortHold         = 5 * time.Minute
	DefaultStrictThreshold   = 15 * time.Minute
)

// Policy derives hold durations from a resource's capacity. Exclusive
// resources hold longer since only one party can ever own the slot; shared
// resources release contested inventory quickly.
type Policy struct {
	ExclusiveCapacity int
	LongHold          time.Duration
	ShortHold         time.Duration
	StrictThreshold   time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		ExclusiveCapacity: DefaultExclusiveCapacity,
		LongHold:          DefaultLongHold,
		ShortHold:         DefaultShortHold,
		StrictThreshold:   DefaultStrictThreshold,
	}
}

// PolicyFromConfig reads the hold policy from the process configuration.
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		ExclusiveCapacity: cfg.LockExclusiveCapacity,
		LongHold:          cfg.LockLongHold,
		ShortHold:         cfg.LockShortHold,
		StrictThreshold:   cfg.LockStrictThreshold,
	}.withDefaults()
}

// withDefaults replaces unset fields with the default policy. A zero hold
// would store lock collections without a TTL.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.ExclusiveCapacity < 1 {
		p.ExclusiveCapacity = d.ExclusiveCapacity
	}
	if p.LongHold <= 0 {
		p.LongHold = d.LongHold
	}
	if p.ShortHold <= 0 {
		p.ShortHold = d.ShortHold
	}
	if p.StrictThreshold <= 0 {
		p.StrictThreshold = d.StrictThreshold
	}
	return p
}

// MaxHold is the longest hold the policy grants.
func (p Policy) MaxHold() time.Duration {
	return max(p.LongHold, p.ShortHold)
}

func (p Policy) Duration(capacity int) time.Duration {
	if capacity <= p.ExclusiveCapacity {
		return p.LongHold
	}
	return p.ShortHold
}

func (p Policy) Kind(hold time.Duration) model.LockKind {
	if hold >= p.StrictThreshold {
		return model.LockStrict
	}
	return model.LockFlexible
}
