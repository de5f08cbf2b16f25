package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType represents what happened to an entity
type EventType string

const (
	EventTypeCreated         EventType = "created"
	EventTypeUpdated         EventType = "updated"
	EventTypeDeleted         EventType = "deleted"
	EventTypePaymentRecorded EventType = "payment_recorded"
	EventTypePenaltyRecorded EventType = "penalty_recorded"
	EventTypeSubscribed      EventType = "subscribed"
)

// EntityType represents the type of entity the event is about
type EntityType string

const (
	EntityTypeLoan EntityType = "loan"
)

// Event represents a WebSocket event message sent to clients
// Format: { type, entity, payload, timestamp }
type Event struct {
	Type      string      `json:"type"`      // Combined type e.g. "loan.created"
	Entity    EntityType  `json:"entity"`    // Entity type e.g. "loan"
	Payload   interface{} `json:"payload"`   // Rendered loan
	Timestamp time.Time   `json:"timestamp"` // Event timestamp
}

// NewEvent creates a new event with the given type, entity, and payload
func NewEvent(eventType EventType, entityType EntityType, payload interface{}) Event {
	return Event{
		Type:      fmt.Sprintf("%s.%s", entityType, eventType),
		Entity:    entityType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON serializes the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LoanCreated creates a loan.created event
func LoanCreated(payload interface{}) Event {
	return NewEvent(EventTypeCreated, EntityTypeLoan, payload)
}

// LoanUpdated creates a loan.updated event
func LoanUpdated(payload interface{}) Event {
	return NewEvent(EventTypeUpdated, EntityTypeLoan, payload)
}

// LoanDeleted creates a loan.deleted event
func LoanDeleted(payload interface{}) Event {
	return NewEvent(EventTypeDeleted, EntityTypeLoan, payload)
}

// LoanPaymentRecorded creates a loan.payment_recorded event
func LoanPaymentRecorded(payload interface{}) Event {
	return NewEvent(EventTypePaymentRecorded, EntityTypeLoan, payload)
}

// LoanPenaltyRecorded creates a loan.penalty_recorded event
func LoanPenaltyRecorded(payload interface{}) Event {
	return NewEvent(EventTypePenaltyRecorded, EntityTypeLoan, payload)
}

// Subscription is the payload of a loan.subscribed event. LoanID is nil for
// clients following every loan.
type Subscription struct {
	LoanID *string `json:"loanId"`
}

// Subscribed creates the loan.subscribed event a client receives on connect
func Subscribed(loanID uuid.UUID) Event {
	var sub Subscription
	if loanID != uuid.Nil {
		id := loanID.String()
		sub.LoanID = &id
	}
	return NewEvent(EventTypeSubscribed, EntityTypeLoan, sub)
}
