package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/sipasera/internal/domain"
)

// AddEvent marshals payload and queues it in the outbox of tx.
func AddEvent(ctx context.Context, tx Store, eventType domain.EventType, aggregateID string, payload any, at time.Time) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return tx.AddOutboxEvent(ctx, &domain.OutboxEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		AggregateID: aggregateID,
		Payload:     data,
		CreatedAt:   at,
	})
}
