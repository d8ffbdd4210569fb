package model

import (
	"time"
)

// AttemptState tracks a booking attempt through the reserve pipeline.
type AttemptState string

const (
	StateRequested AttemptState = "REQUESTED"
	StateValidated AttemptState = "VALIDATED"
	StateLocked    AttemptState = "LOCKED"
	StateConfirmed AttemptState = "CONFIRMED"
	StateReleased  AttemptState = "RELEASED"
	StateRejected  AttemptState = "REJECTED"
)

var transitions = map[AttemptState][]AttemptState{
	StateRequested: {StateValidated, StateRejected},
	StateValidated: {StateLocked, StateRejected},
	StateLocked:    {StateConfirmed, StateReleased},
	StateConfirmed: {StateReleased},
}

func (s AttemptState) CanTransition(to AttemptState) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s AttemptState) IsTerminal() bool {
	return s == StateReleased || s == StateRejected
}

func (s AttemptState) String() string {
	return string(s)
}

type ReservationRequest struct {
	ResourceID string `json:"resource_id" validate:"required,max=128"`
	Tier       Tier   `json:"tier" validate:"required,oneof=day week month"`
	Start      string `json:"start" validate:"required,isodate"`
	End        string `json:"end" validate:"omitempty,isodate"`
}

type ReservationResult struct {
	Token       string    `json:"token"`
	RedirectURL string    `json:"redirect_url"`
	ResourceID  string    `json:"resource_id"`
	Tier        Tier      `json:"tier"`
	Start       string    `json:"start"`
	End         string    `json:"end"`
	Price       float64   `json:"price"`
	ExpiresAt   time.Time `json:"expires_at"`
	LockType    LockKind  `json:"lock_type"`
}

// Draft is the per-attempt record keyed by the lock token. Customer fields
// are only filled once an order with consent is finalized.
type Draft struct {
	Token         string       `json:"token" bson:"_id"`
	ResourceID    string       `json:"resource_id" bson:"resource_id"`
	ResourceName  string       `json:"resource_name" bson:"resource_name"`
	ProductID     string       `json:"product_id" bson:"product_id"`
	Tier          Tier         `json:"tier" bson:"tier"`
	Start         string       `json:"start" bson:"start"`
	End           string       `json:"end" bson:"end"`
	Price         float64      `json:"price" bson:"price"`
	State         AttemptState `json:"state" bson:"state"`
	OrderID       string       `json:"order_id,omitempty" bson:"order_id,omitempty"`
	CustomerName  string       `json:"customer_name,omitempty" bson:"customer_name,omitempty"`
	CustomerEmail string       `json:"customer_email,omitempty" bson:"customer_email,omitempty"`
	ConsentAt     *time.Time   `json:"consent_at,omitempty" bson:"consent_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at" bson:"updated_at"`
}

// CartHandoff is what the external order system needs to put an attempt in a cart.
type CartHandoff struct {
	Token      string  `json:"token"`
	ProductID  string  `json:"product_id"`
	ResourceID string  `json:"resource_id"`
	Tier       Tier    `json:"tier"`
	Start      string  `json:"start"`
	End        string  `json:"end"`
	Price      float64 `json:"price"`
}

type CartLine struct {
	ResourceID string `json:"resource_id" validate:"required,max=128"`
	Start      string `json:"start" validate:"required,isodate"`
	End        string `json:"end" validate:"required,isodate"`
	LockToken  string `json:"lock_token" validate:"required,max=64"`
}

type RevalidationRequest struct {
	Lines []CartLine `json:"lines" validate:"required,min=1,max=50,dive"`
}

type LineOutcome string

const (
	OutcomeKept     LineOutcome = "kept"
	OutcomeRestored LineOutcome = "restored"
	OutcomeEvicted  LineOutcome = "evicted"
)

type LineResult struct {
	LockToken   string      `json:"lock_token"`
	ResourceID  string      `json:"resource_id"`
	Outcome     LineOutcome `json:"outcome"`
	FailingDate string      `json:"failing_date,omitempty"`
	Message     string      `json:"message,omitempty"`
}

type RevalidationResult struct {
	Lines   []LineResult `json:"lines"`
	Evicted int          `json:"evicted"`
}
