package memory

import (
	"context"
	"sort"
	"time"

	"github.com/joao-fontenele/sipasera/internal/domain"
	"github.com/joao-fontenele/sipasera/internal/store"
)

func (s *Store) CreateReportEntry(ctx context.Context, e *domain.ReportEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("insert report entry"); err != nil {
		return err
	}
	s.d.reports = append(s.d.reports, *e)
	return nil
}

func (s *Store) ListReportEntries(ctx context.Context, filter store.ReportFilter) ([]domain.ReportEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := []domain.ReportEntry{}
	for _, e := range s.d.reports {
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		if !filter.From.IsZero() && e.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !e.CreatedAt.Before(filter.To) {
			continue
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	return entries, nil
}

func (s *Store) AddOutboxEvent(ctx context.Context, e *domain.OutboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("insert outbox event"); err != nil {
		return err
	}
	s.d.outbox = append(s.d.outbox, *e)
	return nil
}

func (s *Store) PendingOutboxEvents(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := []domain.OutboxEvent{}
	for _, e := range s.d.outbox {
		if e.PublishedAt != nil {
			continue
		}
		events = append(events, e)
		if len(events) == limit {
			break
		}
	}
	return events, nil
}

func (s *Store) MarkOutboxPublished(ctx context.Context, ids []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	marked := make(map[string]bool, len(ids))
	for _, id := range ids {
		marked[id] = true
	}
	for i := range s.d.outbox {
		if marked[s.d.outbox[i].ID] {
			t := at
			s.d.outbox[i].PublishedAt = &t
		}
	}
	return nil
}
