package model

import "time"

const (
	EventReservationLocked    = "reservation.locked"
	EventReservationConfirmed = "reservation.confirmed"
	EventReservationReleased  = "reservation.released"
	EventReservationEvicted   = "reservation.evicted"
)

// BookingEvent is published for downstream consumers such as notifications.
type BookingEvent struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	ResourceID  string    `json:"resource_id"`
	Token       string    `json:"token,omitempty"`
	OrderID     string    `json:"order_id,omitempty"`
	Start       string    `json:"start,omitempty"`
	End         string    `json:"end,omitempty"`
	FailingDate string    `json:"failing_date,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}
