package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/joao-fontenele/sipasera/internal/domain"
)

const creditColumns = `owner_id, credit_limit, used, status, created_at, updated_at`

func scanCredit(row interface{ Scan(...any) error }) (*domain.CreditAccount, error) {
	a := &domain.CreditAccount{}
	if err := row.Scan(&a.OwnerID, &a.Limit, &a.Used, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) GetCreditAccount(ctx context.Context, ownerID string) (*domain.CreditAccount, error) {
	a, err := scanCredit(s.q.QueryRowContext(ctx, `
		SELECT `+creditColumns+`
		FROM credit_accounts
		WHERE owner_id = $1
	`, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.Backend("select credit account", err)
	}
	return a, nil
}

func (s *Store) CreateCreditAccount(ctx context.Context, ownerID string, limit domain.Money) (*domain.CreditAccount, error) {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO credit_accounts (owner_id, credit_limit, used, status)
		VALUES ($1, $2, 0, $3)
		ON CONFLICT (owner_id) DO NOTHING
	`, ownerID, limit, domain.AccountStatusActive)
	if err != nil {
		return nil, domain.Backend("insert credit account", err)
	}
	return s.GetCreditAccount(ctx, ownerID)
}

func (s *Store) IncreaseUsed(ctx context.Context, ownerID string, amount domain.Money) (*domain.CreditAccount, error) {
	a, err := scanCredit(s.q.QueryRowContext(ctx, `
		UPDATE credit_accounts
		SET used = used + $2, updated_at = NOW()
		WHERE owner_id = $1 AND used + $2 <= credit_limit
		RETURNING `+creditColumns, ownerID, amount))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Backend("increase credit used", err)
	}

	existing, err := s.GetCreditAccount(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, domain.ErrNoCreditAccount
	}
	return nil, domain.ErrInsufficientCredit
}

func (s *Store) DecreaseUsed(ctx context.Context, ownerID string, amount domain.Money) (*domain.CreditAccount, error) {
	a, err := scanCredit(s.q.QueryRowContext(ctx, `
		UPDATE credit_accounts
		SET used = GREATEST(used - $2, 0), updated_at = NOW()
		WHERE owner_id = $1
		RETURNING `+creditColumns, ownerID, amount))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.Backend("decrease credit used", err)
	}
	return a, nil
}

func (s *Store) IncreaseLimit(ctx context.Context, ownerID string, amount domain.Money) (*domain.CreditAccount, error) {
	a, err := scanCredit(s.q.QueryRowContext(ctx, `
		INSERT INTO credit_accounts (owner_id, credit_limit, used, status)
		VALUES ($1, $2, 0, $3)
		ON CONFLICT (owner_id) DO UPDATE
		SET credit_limit = credit_accounts.credit_limit + EXCLUDED.credit_limit, updated_at = NOW()
		RETURNING `+creditColumns, ownerID, amount, domain.AccountStatusActive))
	if err != nil {
		return nil, domain.Backend("increase credit limit", err)
	}
	return a, nil
}

func (s *Store) ListCreditAccounts(ctx context.Context) ([]domain.CreditAccount, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+creditColumns+`
		FROM credit_accounts
		ORDER BY owner_id
	`)
	if err != nil {
		return nil, domain.Backend("select credit accounts", err)
	}
	defer func() { _ = rows.Close() }()

	accounts := []domain.CreditAccount{}
	for rows.Next() {
		a, err := scanCredit(rows)
		if err != nil {
			return nil, domain.Backend("scan credit account", err)
		}
		accounts = append(accounts, *a)
	}

	return accounts, domain.Backend("select credit accounts", rows.Err())
}
