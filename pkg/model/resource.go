package model

import "time"

type Tier string

const (
	TierDay   Tier = "day"
	TierWeek  Tier = "week"
	TierMonth Tier = "month"
)

func (t Tier) Valid() bool {
	switch t {
	case TierDay, TierWeek, TierMonth:
		return true
	}
	return false
}

// Prices holds the per-unit price of each duration tier as configured on the
// resource. A zero value means the tier has no dedicated price.
type Prices struct {
	Day   float64 `json:"day" bson:"day"`
	Week  float64 `json:"week" bson:"week"`
	Month float64 `json:"month" bson:"month"`
}

// Resource is a bookable unit of inventory. It is owned by resource
// management and read-only here.
type Resource struct {
	ID           string    `json:"id" bson:"_id"`
	Name         string    `json:"name" bson:"name"`
	Capacity     int       `json:"capacity" bson:"capacity"`
	Prices       Prices    `json:"prices" bson:"prices"`
	BlockedDates []string  `json:"blocked_dates,omitempty" bson:"blocked_dates,omitempty"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

// EffectiveCapacity returns the stored capacity, or fallback when the stored
// value is unset or invalid.
func (r *Resource) EffectiveCapacity(fallback int) int {
	if r == nil || r.Capacity < 1 {
		return fallback
	}
	return r.Capacity
}
