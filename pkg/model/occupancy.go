package model

import (
	"time"

	"coworking/internal/calendar"
)

// OccupancyRecord is a span of days consuming capacity on a resource.
type OccupancyRecord struct {
	Start    calendar.Date `json:"start"`
	End      calendar.Date `json:"end"`
	Quantity int           `json:"quantity"`
	Tier     Tier          `json:"tier,omitempty"`
	OrderID  string        `json:"order,omitempty"`
	Token    string        `json:"token,omitempty"`
}

// Units is the quantity consumed, never less than one.
func (r OccupancyRecord) Units() int {
	return max(1, r.Quantity)
}

func (r OccupancyRecord) Covers(d calendar.Date) bool {
	return r.Range().Contains(d)
}

func (r OccupancyRecord) Range() calendar.Range {
	return calendar.Range{Start: r.Start, End: r.End}
}

type LockKind string

const (
	LockStrict   LockKind = "strict"
	LockFlexible LockKind = "flexible"
)

// Lock is an ephemeral hold placed by an in-progress checkout attempt.
type Lock struct {
	Start     calendar.Date `json:"start"`
	End       calendar.Date `json:"end"`
	Quantity  int           `json:"quantity"`
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	Kind      LockKind      `json:"lock_type"`
}

func (l Lock) ActiveAt(now time.Time) bool {
	return l.ExpiresAt.After(now)
}

func (l Lock) Occupancy() OccupancyRecord {
	return OccupancyRecord{Start: l.Start, End: l.End, Quantity: max(1, l.Quantity), Token: l.Token}
}

// Occupancies folds locks into the same accounting shape as confirmed records.
func Occupancies(locks []Lock) []OccupancyRecord {
	records := make([]OccupancyRecord, 0, len(locks))
	for _, l := range locks {
		records = append(records, l.Occupancy())
	}
	return records
}
