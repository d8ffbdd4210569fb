package service

import (
	"coworking/internal/calendar"
	"coworking/internal/capacity"
	apperrors "coworking/pkg/errors"
	"coworking/pkg/model"
)

const (
	daysPerWeek   = 5
	weeksPerMonth = 4
)

// Snapshot is the durable state of one resource as read for one operation.
type Snapshot struct {
	Resource  *model.Resource
	Capacity  int
	Confirmed []model.OccupancyRecord
	Blocks    capacity.Blocks
}

// Occupancy merges the confirmed set with the given active locks.
func (s *Snapshot) Occupancy(active []model.Lock) []model.OccupancyRecord {
	records := make([]model.OccupancyRecord, 0, len(s.Confirmed)+len(active))
	records = append(records, s.Confirmed...)
	return append(records, model.Occupancies(active)...)
}

// Evaluate walks every day of r and reports the first one that is blocked or
// cannot take quantity more units on top of confirmed and locked occupancy.
func Evaluate(s *Snapshot, active []model.Lock, r calendar.Range, quantity int) model.RangeCheck {
	occupancy := s.Occupancy(active)
	units := max(1, quantity)

	for d := range r.Days() {
		if s.Blocks.Contains(d) {
			return model.NotBookable(d, model.FailureBlocked)
		}
		if capacity.Reserved(d, occupancy)+units > s.Capacity {
			return model.NotBookable(d, model.FailureFull)
		}
	}
	return model.Bookable()
}

// Admit checks r against the snapshot's confirmed set as read. Lock
// acquisition goes through the service's Guard, which reloads it first.
func (s *Snapshot) Admit(r calendar.Range, quantity int) func(active []model.Lock) error {
	return func(active []model.Lock) error {
		if check := Evaluate(s, active, r, quantity); !check.Bookable {
			return apperrors.RangeUnavailable(check.FirstFailingDate.String())
		}
		return nil
	}
}

// ResolvePrice returns the price of tier. Week falls back to five days and
// month to four stored weeks; zero means no price is configured.
func ResolvePrice(p model.Prices, tier model.Tier) float64 {
	switch tier {
	case model.TierDay:
		return p.Day
	case model.TierWeek:
		if p.Week > 0 {
			return p.Week
		}
		return p.Day * daysPerWeek
	case model.TierMonth:
		if p.Month > 0 {
			return p.Month
		}
		return p.Week * weeksPerMonth
	}
	return 0
}

// ResolvePrices applies ResolvePrice to every tier.
func ResolvePrices(p model.Prices) model.Prices {
	return model.Prices{
		Day:   ResolvePrice(p, model.TierDay),
		Week:  ResolvePrice(p, model.TierWeek),
		Month: ResolvePrice(p, model.TierMonth),
	}
}
