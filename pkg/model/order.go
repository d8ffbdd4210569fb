package model

import "time"

type OrderStatus string

const (
	OrderCompleted  OrderStatus = "completed"
	OrderProcessing OrderStatus = "processing"
	OrderCancelled  OrderStatus = "cancelled"
	OrderRefunded   OrderStatus = "refunded"
)

// Finalizes reports whether the status confirms the reservation.
func (s OrderStatus) Finalizes() bool {
	return s == OrderCompleted || s == OrderProcessing
}

// Releases reports whether the status undoes the reservation.
func (s OrderStatus) Releases() bool {
	return s == OrderCancelled || s == OrderRefunded
}

type Customer struct {
	Name  string `json:"name" bson:"name" validate:"max=200"`
	Email string `json:"email" bson:"email" validate:"omitempty,email"`
}

// OrderLine is one coworking item of an external order. Only the lock token
// is required; the remaining fields are filled in from the draft when absent.
type OrderLine struct {
	LockToken  string  `json:"lock_token" bson:"lock_token" validate:"required,max=64"`
	ResourceID string  `json:"resource_id,omitempty" bson:"resource_id" validate:"max=128"`
	Tier       Tier    `json:"tier,omitempty" bson:"tier" validate:"omitempty,oneof=day week month"`
	Start      string  `json:"start,omitempty" bson:"start" validate:"omitempty,isodate"`
	End        string  `json:"end,omitempty" bson:"end" validate:"omitempty,isodate"`
	Price      float64 `json:"price,omitempty" bson:"price" validate:"gte=0"`
}

// OrderEvent is an order lifecycle notification from the external order system.
type OrderEvent struct {
	OrderID    string      `json:"order_id" validate:"required,max=64"`
	Status     OrderStatus `json:"status" validate:"required"`
	Consent    bool        `json:"consent"`
	ConsentAt  *time.Time  `json:"consent_at,omitempty"`
	Customer   *Customer   `json:"customer,omitempty"`
	Lines      []OrderLine `json:"lines" validate:"max=50,dive"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// Order is the processed-flag record kept per external order.
type Order struct {
	ID          string      `json:"id" bson:"_id"`
	Processed   bool        `json:"processed" bson:"processed"`
	ProcessedAt *time.Time  `json:"processed_at,omitempty" bson:"processed_at,omitempty"`
	Status      OrderStatus `json:"status" bson:"status"`
	Consent     bool        `json:"consent" bson:"consent"`
	Lines       []OrderLine `json:"lines" bson:"lines"`
	UpdatedAt   time.Time   `json:"updated_at" bson:"updated_at"`
}

type OrderAction string

const (
	ActionFinalized OrderAction = "finalized"
	ActionCancelled OrderAction = "cancelled"
	ActionDuplicate OrderAction = "duplicate"
	ActionIgnored   OrderAction = "ignored"
)

// OrderOutcome reports what handling an order event changed.
type OrderOutcome struct {
	OrderID       string      `json:"order_id"`
	Action        OrderAction `json:"action"`
	Recorded      int         `json:"recorded"`
	Removed       int         `json:"removed"`
	LocksReleased int         `json:"locks_released"`
	Skipped       []string    `json:"skipped,omitempty"`
}

type RebuildResult struct {
	ResourceID string `json:"resource_id"`
	Orders     int    `json:"orders"`
	Records    int    `json:"records"`
}
