package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/joao-fontenele/sipasera/internal/domain"
)

const uniqueViolation = "23505"

func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO users (id, name, email, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, user.ID, user.Name, user.Email, user.Role, user.CreatedAt).Scan(&user.CreatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == "users_email_key" {
		return fmt.Errorf("%w: %s", domain.ErrEmailTaken, user.Email)
	}
	return domain.Backend("insert user", err)
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user := &domain.User{}

	err := s.q.QueryRowContext(ctx, `
		SELECT id, name, email, role, created_at
		FROM users
		WHERE id = $1
	`, id).Scan(&user.ID, &user.Name, &user.Email, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.Backend("select user", err)
	}

	return user, nil
}
