package domain

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventOrderCreated         EventType = "order.created"
	EventOrderSettled         EventType = "order.settled"
	EventPaymentRecorded      EventType = "payment.recorded"
	EventApplicationSubmitted EventType = "credit_application.submitted"
	EventApplicationResolved  EventType = "credit_application.resolved"
)

// OutboxEvent is a domain event written in the same transaction as the state
// change it describes, waiting to be relayed to the event bus.
type OutboxEvent struct {
	ID          string          `json:"event_id"`
	Type        EventType       `json:"event_type"`
	AggregateID string          `json:"aggregate_id"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"occurred_at"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
}

// Envelope is the wire format on the events topic.
type Envelope struct {
	EventID     string          `json:"event_id"`
	EventType   EventType       `json:"event_type"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Producer    string          `json:"producer"`
	AggregateID string          `json:"aggregate_id"`
	Payload     json.RawMessage `json:"payload"`
}

type OrderCreatedEvent struct {
	OrderID       string        `json:"order_id"`
	OwnerID       string        `json:"owner_id"`
	Total         Money         `json:"total"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	DueDate       *time.Time    `json:"due_date,omitempty"`
	Items         []LineItem    `json:"items"`
	Timestamp     time.Time     `json:"timestamp"`
}

type PaymentRecordedEvent struct {
	PaymentID string    `json:"payment_id"`
	OrderID   string    `json:"order_id"`
	OwnerID   string    `json:"owner_id"`
	Amount    Money     `json:"amount"`
	Remaining Money     `json:"remaining"`
	Settled   bool      `json:"settled"`
	Timestamp time.Time `json:"timestamp"`
}

type OrderSettledEvent struct {
	OrderID   string    `json:"order_id"`
	OwnerID   string    `json:"owner_id"`
	Total     Money     `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

type ApplicationEvent struct {
	ApplicationID  string            `json:"application_id"`
	OwnerID        string            `json:"owner_id"`
	RequestedLimit Money             `json:"requested_limit"`
	Status         ApplicationStatus `json:"status"`
	Timestamp      time.Time         `json:"timestamp"`
}
