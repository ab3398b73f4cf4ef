package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/joao-fontenele/sipasera/internal/domain"
	"github.com/joao-fontenele/sipasera/internal/store"
)

const orderColumns = `id, owner_id, total, payment_method, status, due_date, created_at`

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	o := &domain.Order{Items: []domain.LineItem{}}
	var due sql.NullTime
	if err := row.Scan(&o.ID, &o.OwnerID, &o.Total, &o.PaymentMethod, &o.Status, &due, &o.CreatedAt); err != nil {
		return nil, err
	}
	if due.Valid {
		t := due.Time
		o.DueDate = &t
	}
	return o, nil
}

func (s *Store) CreateOrder(ctx context.Context, order *domain.Order) error {
	return s.transact(ctx, func(tx *Store) error {
		var due sql.NullTime
		if order.DueDate != nil {
			due = sql.NullTime{Time: *order.DueDate, Valid: true}
		}

		_, err := tx.q.ExecContext(ctx, `
			INSERT INTO orders (id, owner_id, total, payment_method, status, due_date, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		`, order.ID, order.OwnerID, order.Total, order.PaymentMethod, order.Status, due, order.CreatedAt)
		if err != nil {
			return domain.Backend("insert order", err)
		}

		for _, item := range order.Items {
			_, err = tx.q.ExecContext(ctx, `
				INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price)
				VALUES ($1, $2, $3, $4, $5)
			`, order.ID, item.ProductID, item.Name, item.Quantity, item.UnitPrice)
			if err != nil {
				return domain.Backend("insert order item", err)
			}
		}

		return nil
	})
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.getOrder(ctx, id, false)
}

func (s *Store) LockOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.getOrder(ctx, id, true)
}

func (s *Store) getOrder(ctx context.Context, id string, lock bool) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	order, err := scanOrder(s.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.Backend("select order", err)
	}

	if err := s.loadItems(ctx, map[string]*domain.Order{order.ID: order}, []string{order.ID}); err != nil {
		return nil, err
	}

	return order, nil
}

func (s *Store) ListOrders(ctx context.Context, filter store.OrderFilter) ([]domain.Order, error) {
	var w where
	if filter.OwnerID != "" {
		w.add("owner_id = $%d", filter.OwnerID)
	}
	if filter.Method != "" {
		w.add("payment_method = $%d", filter.Method)
	}
	if filter.Status != "" {
		w.add("status = $%d", filter.Status)
	}

	rows, err := s.q.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders`+w.String()+` ORDER BY created_at DESC`, w.args...)
	if err != nil {
		return nil, domain.Backend("select orders", err)
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, domain.Backend("scan order", err)
		}
		orderMap[order.ID] = order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, domain.Backend("select orders", err)
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	if err := s.loadItems(ctx, orderMap, orderIDs); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

func (s *Store) loadItems(ctx context.Context, orderMap map[string]*domain.Order, orderIDs []string) error {
	rows, err := s.q.QueryContext(ctx, `
		SELECT order_id, product_id, product_name, quantity, unit_price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id
	`, pq.Array(orderIDs))
	if err != nil {
		return domain.Backend("select order items", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var orderID string
		var item domain.LineItem
		if err := rows.Scan(&orderID, &item.ProductID, &item.Name, &item.Quantity, &item.UnitPrice); err != nil {
			return domain.Backend("scan order item", err)
		}
		order := orderMap[orderID]
		order.Items = append(order.Items, item)
	}

	return domain.Backend("select order items", rows.Err())
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	result, err := s.q.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = $3
		WHERE id = $2
	`, status, id, time.Now().UTC())
	if err != nil {
		return domain.Backend("update order status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return domain.Backend("update order status", err)
	}

	if rowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}
