package postgres

import (
	"context"

	"github.com/lib/pq"

	"github.com/joao-fontenele/sipasera/internal/domain"
)

func (s *Store) CreatePayment(ctx context.Context, p *domain.Payment) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO payments (id, order_id, owner_id, amount, method, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.OrderID, p.OwnerID, p.Amount, p.Method, p.Note, p.CreatedAt)
	return domain.Backend("insert payment", err)
}

func (s *Store) ListPayments(ctx context.Context, orderID string) ([]domain.Payment, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, order_id, owner_id, amount, method, note, created_at
		FROM payments
		WHERE order_id = $1
		ORDER BY created_at
	`, orderID)
	if err != nil {
		return nil, domain.Backend("select payments", err)
	}
	defer func() { _ = rows.Close() }()

	payments := []domain.Payment{}
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.OwnerID, &p.Amount, &p.Method, &p.Note, &p.CreatedAt); err != nil {
			return nil, domain.Backend("scan payment", err)
		}
		payments = append(payments, p)
	}

	return payments, domain.Backend("select payments", rows.Err())
}

func (s *Store) PaidTotals(ctx context.Context, orderIDs []string) (map[string]domain.Money, error) {
	totals := make(map[string]domain.Money, len(orderIDs))
	if len(orderIDs) == 0 {
		return totals, nil
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT order_id, SUM(amount)
		FROM payments
		WHERE order_id = ANY($1)
		GROUP BY order_id
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, domain.Backend("sum payments", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var orderID string
		var paid domain.Money
		if err := rows.Scan(&orderID, &paid); err != nil {
			return nil, domain.Backend("scan payment total", err)
		}
		totals[orderID] = paid
	}

	return totals, domain.Backend("sum payments", rows.Err())
}
