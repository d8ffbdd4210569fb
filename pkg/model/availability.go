package model

import "coworking/internal/calendar"

type DayStatus string

const (
	StatusAvailable   DayStatus = "available"
	StatusLow         DayStatus = "low"
	StatusFull        DayStatus = "full"
	StatusUnavailable DayStatus = "unavailable"
)

// DayAvailability is derived per request and never stored.
type DayAvailability struct {
	Date     calendar.Date `json:"date"`
	Status   DayStatus     `json:"status"`
	Slots    int           `json:"slots"`
	Capacity int           `json:"capacity"`
	IsPast   bool          `json:"is_past"`
}

type MonthAvailability struct {
	ResourceID   string                            `json:"resource_id"`
	Month        calendar.MonthKey                 `json:"month"`
	Availability map[calendar.Date]DayAvailability `json:"availability"`
	Prices       Prices                            `json:"prices"`
}

type RangeFailure string

const (
	FailureBlocked RangeFailure = "blocked"
	FailureFull    RangeFailure = "full"
)

type RangeCheck struct {
	Bookable         bool           `json:"bookable"`
	FirstFailingDate *calendar.Date `json:"first_failing_date"`
	Reason           RangeFailure   `json:"reason,omitempty"`
}

func Bookable() RangeCheck {
	return RangeCheck{Bookable: true}
}

func NotBookable(d calendar.Date, reason RangeFailure) RangeCheck {
	return RangeCheck{FirstFailingDate: &d, Reason: reason}
}

type QuoteRequest struct {
	ResourceID string `json:"resource_id" validate:"required,max=128"`
	Tier       Tier   `json:"tier" validate:"required,oneof=day week month"`
	Start      string `json:"start" validate:"required,isodate"`
	End        string `json:"end" validate:"omitempty,isodate"`
}

type Quote struct {
	ResourceID string        `json:"resource_id"`
	Tier       Tier          `json:"tier"`
	Start      calendar.Date `json:"start"`
	End        calendar.Date `json:"end"`
	Price      float64       `json:"price"`
}
