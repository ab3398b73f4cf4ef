package memory

import (
	"context"
	"sort"
	"time"

	"github.com/joao-fontenele/sipasera/internal/domain"
	"github.com/joao-fontenele/sipasera/internal/store"
)

func (s *Store) CreateApplication(ctx context.Context, a *domain.CreditApplication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("insert credit application"); err != nil {
		return err
	}
	s.d.applications[a.ID] = *a
	return nil
}

func (s *Store) GetApplication(ctx context.Context, id string) (*domain.CreditApplication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.d.applications[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *Store) ResolveApplication(ctx context.Context, id string, status domain.ApplicationStatus, at time.Time) (*domain.CreditApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("resolve credit application"); err != nil {
		return nil, err
	}
	a, ok := s.d.applications[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if a.Status != domain.ApplicationPending {
		return nil, domain.ErrInvalidState
	}
	a.Status = status
	a.ResolvedAt = &at
	if status == domain.ApplicationApproved {
		a.ApprovedAt = &at
	}
	a.Notified = false
	s.d.applications[id] = a
	return &a, nil
}

func (s *Store) AcknowledgeApplication(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.d.applications[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.Notified = true
	s.d.applications[id] = a
	return nil
}

func (s *Store) ListApplications(ctx context.Context, filter store.ApplicationFilter) ([]domain.CreditApplication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	apps := []domain.CreditApplication{}
	for _, a := range s.d.applications {
		if filter.OwnerID != "" && a.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.Unacknowledged && (!a.Status.Resolved() || a.Notified) {
			continue
		}
		apps = append(apps, a)
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].CreatedAt.After(apps[j].CreatedAt) })
	return apps, nil
}
