// Package calendar holds the pure day arithmetic used by availability and
// booking: month lengths, inclusive day ranges and the "today" boundary.
package calendar

import (
	"errors"
	"fmt"
	"iter"
	"time"

	"coworking/pkg/clock"
)

var (
	ErrInvalidMonth = errors.New("invalid month")
	ErrInvalidDate  = errors.New("invalid date")
	ErrInvalidRange = errors.New("invalid range: end is before start")
)

// DaysInMonth returns the number of Gregorian days in the month.
func DaysInMonth(year, month int) (int, error) {
	if month < 1 || month > 12 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidMonth, month)
	}
	// Day 0 of the following month normalizes to the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day(), nil
}

// EnumerateDates yields every day from start to end inclusive. The returned
// sequence can be ranged over any number of times.
func EnumerateDates(start, end Date) (iter.Seq[Date], error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvalidRange, start, end)
	}
	return func(yield func(Date) bool) {
		for d := start; !d.After(end); d = d.AddDays(1) {
			if !yield(d) {
				return
			}
		}
	}, nil
}

// MonthsSpanned lists every month touched by [start, end] in ascending order.
func MonthsSpanned(start, end Date) ([]MonthKey, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvalidRange, start, end)
	}
	last := end.MonthKey()
	var months []MonthKey
	for m := start.MonthKey(); ; m = m.Next() {
		months = append(months, m)
		if m == last {
			break
		}
	}
	return months, nil
}

// Range is an inclusive span of days.
type Range struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

func NewRange(start, end Date) (Range, error) {
	r := Range{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

// ParseRange parses both bounds; an empty end defaults to start.
func ParseRange(start, end string) (Range, error) {
	s, err := ParseDate(start)
	if err != nil {
		return Range{}, err
	}
	if end == "" {
		return Range{Start: s, End: s}, nil
	}
	e, err := ParseDate(end)
	if err != nil {
		return Range{}, err
	}
	return NewRange(s, e)
}

func (r Range) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("%w: missing bound", ErrInvalidDate)
	}
	if r.End.Before(r.Start) {
		return fmt.Errorf("%w: %s > %s", ErrInvalidRange, r.Start, r.End)
	}
	return nil
}

func (r Range) Contains(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

func (r Range) Overlaps(o Range) bool {
	return !r.End.Before(o.Start) && !o.End.Before(r.Start)
}

// Days yields every day of the range; an inverted range yields nothing.
func (r Range) Days() iter.Seq[Date] {
	seq, err := EnumerateDates(r.Start, r.End)
	if err != nil {
		return func(func(Date) bool) {}
	}
	return seq
}

func (r Range) String() string {
	return r.Start.String() + ".." + r.End.String()
}

// Calendar resolves "today" in the configured timezone.
type Calendar struct {
	clock    clock.Clock
	location *time.Location
}

func New(c clock.Clock, loc *time.Location) *Calendar {
	if c == nil {
		c = clock.NewSystem()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{clock: c, location: loc}
}

func (c *Calendar) Now() time.Time {
	return c.clock.Now()
}

func (c *Calendar) Today() Date {
	return DateOf(c.clock.Now(), c.location)
}

func (c *Calendar) CurrentMonth() MonthKey {
	return c.Today().MonthKey()
}

func (c *Calendar) Location() *time.Location {
	return c.location
}
