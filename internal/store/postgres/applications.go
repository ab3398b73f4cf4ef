package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/joao-fontenele/sipasera/internal/domain"
	"github.com/joao-fontenele/sipasera/internal/store"
)

const applicationColumns = `id, owner_id, requested_limit, reason, status, created_at, approved_at, resolved_at, notified`

func scanApplication(row interface{ Scan(...any) error }) (*domain.CreditApplication, error) {
	a := &domain.CreditApplication{}
	var approved, resolved sql.NullTime
	if err := row.Scan(&a.ID, &a.OwnerID, &a.RequestedLimit, &a.Reason, &a.Status, &a.CreatedAt, &approved, &resolved, &a.Notified); err != nil {
		return nil, err
	}
	a.ApprovedAt = nullTime(approved)
	a.ResolvedAt = nullTime(resolved)
	return a, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func (s *Store) CreateApplication(ctx context.Context, a *domain.CreditApplication) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO credit_applications (id, owner_id, requested_limit, reason, status, created_at, notified)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.ID, a.OwnerID, a.RequestedLimit, a.Reason, a.Status, a.CreatedAt, a.Notified)
	return domain.Backend("insert credit application", err)
}

func (s *Store) GetApplication(ctx context.Context, id string) (*domain.CreditApplication, error) {
	a, err := scanApplication(s.q.QueryRowContext(ctx, `
		SELECT `+applicationColumns+`
		FROM credit_applications
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.Backend("select credit application", err)
	}
	return a, nil
}

func (s *Store) ResolveApplication(ctx context.Context, id string, status domain.ApplicationStatus, at time.Time) (*domain.CreditApplication, error) {
	var approvedAt sql.NullTime
	if status == domain.ApplicationApproved {
		approvedAt = sql.NullTime{Time: at, Valid: true}
	}

	a, err := scanApplication(s.q.QueryRowContext(ctx, `
		UPDATE credit_applications
		SET status = $2, resolved_at = $3, approved_at = $4, notified = FALSE
		WHERE id = $1 AND status = 'pending'
		RETURNING `+applicationColumns, id, status, at, approvedAt))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Backend("resolve credit application", err)
	}

	existing, err := s.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, domain.ErrNotFound
	}
	return nil, domain.ErrInvalidState
}

func (s *Store) AcknowledgeApplication(ctx context.Context, id string) error {
	result, err := s.q.ExecContext(ctx, `
		UPDATE credit_applications SET notified = TRUE
		WHERE id = $1
	`, id)
	if err != nil {
		return domain.Backend("acknowledge credit application", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return domain.Backend("acknowledge credit application", err)
	}

	if rowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func (s *Store) ListApplications(ctx context.Context, filter store.ApplicationFilter) ([]domain.CreditApplication, error) {
	var w where
	if filter.OwnerID != "" {
		w.add("owner_id = $%d", filter.OwnerID)
	}
	if filter.Status != "" {
		w.add("status = $%d", filter.Status)
	}
	if filter.Unacknowledged {
		w.raw("status <> 'pending' AND notified = FALSE")
	}

	rows, err := s.q.QueryContext(ctx, `SELECT `+applicationColumns+` FROM credit_applications`+w.String()+` ORDER BY created_at DESC`, w.args...)
	if err != nil {
		return nil, domain.Backend("select credit applications", err)
	}
	defer func() { _ = rows.Close() }()

	apps := []domain.CreditApplication{}
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, domain.Backend("scan credit application", err)
		}
		apps = append(apps, *a)
	}

	return apps, domain.Backend("select credit applications", rows.Err())
}
