package memory

import (
	"context"
	"sort"

	"github.com/joao-fontenele/sipasera/internal/domain"
)

func (s *Store) GetCreditAccount(ctx context.Context, ownerID string) (*domain.CreditAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.d.credit[ownerID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *Store) CreateCreditAccount(ctx context.Context, ownerID string, limit domain.Money) (*domain.CreditAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("insert credit account"); err != nil {
		return nil, err
	}
	if a, ok := s.d.credit[ownerID]; ok {
		return &a, nil
	}
	now := s.now()
	a := domain.CreditAccount{
		OwnerID:   ownerID,
		Limit:     limit,
		Status:    domain.AccountStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.d.credit[ownerID] = a
	return &a, nil
}

func (s *Store) IncreaseUsed(ctx context.Context, ownerID string, amount domain.Money) (*domain.CreditAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("increase credit used"); err != nil {
		return nil, err
	}
	a, ok := s.d.credit[ownerID]
	if !ok {
		return nil, domain.ErrNoCreditAccount
	}
	if a.Used+amount > a.Limit {
		return nil, domain.ErrInsufficientCredit
	}
	a.Used += amount
	a.UpdatedAt = s.now()
	s.d.credit[ownerID] = a
	return &a, nil
}

func (s *Store) DecreaseUsed(ctx context.Context, ownerID string, amount domain.Money) (*domain.CreditAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("decrease credit used"); err != nil {
		return nil, err
	}
	a, ok := s.d.credit[ownerID]
	if !ok {
		return nil, nil
	}
	a.Used -= amount
	if a.Used < 0 {
		a.Used = 0
	}
	a.UpdatedAt = s.now()
	s.d.credit[ownerID] = a
	return &a, nil
}

func (s *Store) IncreaseLimit(ctx context.Context, ownerID string, amount domain.Money) (*domain.CreditAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("increase credit limit"); err != nil {
		return nil, err
	}
	now := s.now()
	a, ok := s.d.credit[ownerID]
	if !ok {
		a = domain.CreditAccount{OwnerID: ownerID, Status: domain.AccountStatusActive, CreatedAt: now}
	}
	a.Limit += amount
	a.UpdatedAt = now
	s.d.credit[ownerID] = a
	return &a, nil
}

func (s *Store) ListCreditAccounts(ctx context.Context) ([]domain.CreditAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	accounts := make([]domain.CreditAccount, 0, len(s.d.credit))
	for _, a := range s.d.credit {
		accounts = append(accounts, a)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].OwnerID < accounts[j].OwnerID })
	return accounts, nil
}
