package postgres

import (
	"context"
	"time"

	"github.com/lib/pq"

	"github.com/joao-fontenele/sipasera/internal/domain"
)

func (s *Store) AddOutboxEvent(ctx context.Context, e *domain.OutboxEvent) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO outbox_events (id, event_type, aggregate_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.ID, e.Type, e.AggregateID, []byte(e.Payload), e.CreatedAt)
	return domain.Backend("insert outbox event", err)
}

// PendingOutboxEvents orders by insertion sequence. Events written in one
// transaction share created_at, so the timestamp cannot break ties.
func (s *Store) PendingOutboxEvents(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	query := `
		SELECT id, event_type, aggregate_id, payload, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY seq
		LIMIT $1`
	if s.inTx {
		query += ` FOR UPDATE SKIP LOCKED`
	}

	rows, err := s.q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, domain.Backend("select outbox events", err)
	}
	defer func() { _ = rows.Close() }()

	events := []domain.OutboxEvent{}
	for rows.Next() {
		var e domain.OutboxEvent
		var payload []byte
		if err := rows.Scan(&e.ID, &e.Type, &e.AggregateID, &payload, &e.CreatedAt); err != nil {
			return nil, domain.Backend("scan outbox event", err)
		}
		e.Payload = payload
		events = append(events, e)
	}

	return events, domain.Backend("select outbox events", rows.Err())
}

func (s *Store) MarkOutboxPublished(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.q.ExecContext(ctx, `
		UPDATE outbox_events SET published_at = $2
		WHERE id = ANY($1)
	`, pq.Array(ids), at)
	return domain.Backend("mark outbox events published", err)
}
