// Package outbox implements the transactional outbox used to hand
// notifications and domain events to the message broker. Rows are written in
// the same transaction as the state change they describe and drained by the
// worker's processor.
package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/voltahq/volta/internal/shared/domain"
)

// Message represents an outbox message ready for publishing.
type Message struct {
	ID               int64
	EventID          uuid.UUID
	AggregateType    string
	AggregateID      uuid.UUID
	RoutingKey       string
	Payload          json.RawMessage
	CreatedAt        time.Time
	PublishedAt      *time.Time
	NextRetryAt      *time.Time
	RetryCount       int
	LastError        *string
	DeadLetteredAt   *time.Time
	DeadLetterReason *string
}

// NewMessage creates an outbox message from a domain event.
func NewMessage(event domain.DomainEvent) (*Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	return &Message{
		EventID:       event.EventID(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		RoutingKey:    event.RoutingKey(),
		Payload:       payload,
		CreatedAt:     event.OccurredAt(),
	}, nil
}

// NewRawMessage creates an outbox message from an already-encoded payload.
func NewRawMessage(aggregateType string, aggregateID uuid.UUID, routingKey string, payload json.RawMessage) *Message {
	return &Message{
		EventID:       uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		RoutingKey:    routingKey,
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
	}
}

// IsPublished returns true if the message has been published.
func (m *Message) IsPublished() bool {
	return m.PublishedAt != nil
}

// CanRetry returns true if the message can be retried.
func (m *Message) CanRetry(maxRetries int) bool {
	return m.RetryCount < maxRetries
}
