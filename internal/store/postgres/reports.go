package postgres

import (
	"context"

	"github.com/joao-fontenele/sipasera/internal/domain"
	"github.com/joao-fontenele/sipasera/internal/store"
)

func (s *Store) CreateReportEntry(ctx context.Context, e *domain.ReportEntry) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO report_entries (id, type, description, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.ID, e.Type, e.Description, e.Amount, e.CreatedAt)
	return domain.Backend("insert report entry", err)
}

func (s *Store) ListReportEntries(ctx context.Context, filter store.ReportFilter) ([]domain.ReportEntry, error) {
	var w where
	if filter.Type != "" {
		w.add("type = $%d", filter.Type)
	}
	if !filter.From.IsZero() {
		w.add("created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		w.add("created_at < $%d", filter.To)
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT id, type, description, amount, created_at
		FROM report_entries`+w.String()+`
		ORDER BY created_at DESC
	`, w.args...)
	if err != nil {
		return nil, domain.Backend("select report entries", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []domain.ReportEntry{}
	for rows.Next() {
		var e domain.ReportEntry
		if err := rows.Scan(&e.ID, &e.Type, &e.Description, &e.Amount, &e.CreatedAt); err != nil {
			return nil, domain.Backend("scan report entry", err)
		}
		entries = append(entries, e)
	}

	return entries, domain.Backend("select report entries", rows.Err())
}
