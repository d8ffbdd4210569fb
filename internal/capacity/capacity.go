// Package capacity turns a resource's nominal capacity and its occupancy
// records into per-day remaining slots and a status bucket.
package capacity

import (
	"strings"

	"coworking/internal/calendar"
	"coworking/pkg/model"
)

const DefaultLowThreshold = 2

type Policy struct {
	// LowThreshold is the largest non-zero slot count reported as "low".
	LowThreshold int
}

func DefaultPolicy() Policy {
	return Policy{LowThreshold: DefaultLowThreshold}
}

// Blocks is the set of manually blocked days of a resource.
type Blocks map[calendar.Date]struct{}

func (b Blocks) Contains(d calendar.Date) bool {
	_, ok := b[d]
	return ok
}

// ParseBlocks reads free-form block lines. An entry may hold several
// newline-separated dates; blank or unparseable lines are ignored.
func ParseBlocks(lines []string) Blocks {
	blocks := make(Blocks)
	for _, entry := range lines {
		for _, line := range strings.Split(entry, "\n") {
			d, err := calendar.ParseDate(strings.TrimSpace(line))
			if err != nil {
				continue
			}
			blocks[d] = struct{}{}
		}
	}
	return blocks
}

// Reserved sums the quantity of every record covering d.
func Reserved(d calendar.Date, records []model.OccupancyRecord) int {
	total := 0
	for _, r := range records {
		if r.Covers(d) {
			total += r.Units()
		}
	}
	return total
}

// ComputeDay classifies a single day. Past and blocked days are unavailable
// whatever their slot count; exhaustion is checked before the low threshold.
func ComputeDay(d, today calendar.Date, capacity int, records []model.OccupancyRecord, blocks Blocks, policy Policy) model.DayAvailability {
	slots := max(0, capacity-Reserved(d, records))
	isPast := !d.After(today)

	status := model.StatusAvailable
	switch {
	case isPast || blocks.Contains(d):
		status = model.StatusUnavailable
	case slots == 0:
		status = model.StatusFull
	case slots <= policy.LowThreshold:
		status = model.StatusLow
	}

	return model.DayAvailability{
		Date:     d,
		Status:   status,
		Slots:    slots,
		Capacity: capacity,
		IsPast:   isPast,
	}
}

// ComputeMonth applies ComputeDay to every day of the month.
func ComputeMonth(month calendar.MonthKey, today calendar.Date, capacity int, records []model.OccupancyRecord, blocks Blocks, policy Policy) map[calendar.Date]model.DayAvailability {
	days := make(map[calendar.Date]model.DayAvailability, month.Days())
	for d := range month.Range().Days() {
		days[d] = ComputeDay(d, today, capacity, records, blocks, policy)
	}
	return days
}
