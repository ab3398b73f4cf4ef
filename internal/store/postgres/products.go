package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/joao-fontenele/sipasera/internal/domain"
)

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, name, description, category, price, stock
		FROM products
		ORDER BY name
	`)
	if err != nil {
		return nil, domain.Backend("select products", err)
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Price, &p.Stock); err != nil {
			return nil, domain.Backend("scan product", err)
		}
		products = append(products, p)
	}

	return products, domain.Backend("select products", rows.Err())
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p := &domain.Product{}

	err := s.q.QueryRowContext(ctx, `
		SELECT id, name, description, category, price, stock
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Price, &p.Stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.Backend("select product", err)
	}

	return p, nil
}

func (s *Store) DecrementStock(ctx context.Context, productID string, quantity int) error {
	result, err := s.q.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $2
		WHERE id = $1 AND stock >= $2
	`, productID, quantity)
	if err != nil {
		return domain.Backend("decrement stock", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return domain.Backend("decrement stock", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: product %s", domain.ErrOutOfStock, productID)
	}

	return nil
}
