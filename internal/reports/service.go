// Package reports keeps the shop's income and expense journal and the
// figures the admin dashboard is built from.
package reports

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joao-fontenele/sipasera/internal/credit"
	"github.com/joao-fontenele/sipasera/internal/domain"
	"github.com/joao-fontenele/sipasera/internal/id"
	"github.com/joao-fontenele/sipasera/internal/store"
)

// LowStockThreshold is the stock level at which the dashboard flags a product.
const LowStockThreshold = 5

type Service struct {
	store  store.Store
	credit *credit.Ledger
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(st store.Store, creditLedger *credit.Ledger, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  st,
		credit: creditLedger,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type Expense struct {
	Category    domain.ExpenseCategory
	Description string
	Amount      domain.Money
}

// RecordExpense journals an operational expense as "CATEGORY - description".
func (s *Service) RecordExpense(ctx context.Context, actorID string, e Expense) (*domain.ReportEntry, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	if !domain.ValidExpenseCategory(e.Category) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCategory, e.Category)
	}
	if !e.Amount.Positive() {
		return nil, domain.ErrInvalidAmount
	}

	entry := &domain.ReportEntry{
		ID:          id.NewReportID(),
		Type:        domain.ReportExpense,
		Description: strings.ToUpper(string(e.Category)) + " - " + strings.TrimSpace(e.Description),
		Amount:      e.Amount,
		CreatedAt:   s.now(),
	}
	if err := s.store.CreateReportEntry(ctx, entry); err != nil {
		return nil, err
	}

	s.logger.Info("expense recorded", "entry_id", entry.ID, "category", e.Category, "amount", int64(e.Amount), "actor_id", actorID)
	return entry, nil
}

type Summary struct {
	Entries           []domain.ReportEntry                    `json:"entries"`
	Income            domain.Money                            `json:"income"`
	Expense           domain.Money                            `json:"expense"`
	Net               domain.Money                            `json:"net"`
	ExpenseByCategory map[domain.ExpenseCategory]domain.Money `json:"expense_by_category"`
}

func (s *Service) Summary(ctx context.Context, actorID string, filter store.ReportFilter) (*Summary, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}

	entries, err := s.store.ListReportEntries(ctx, filter)
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		Entries:           entries,
		ExpenseByCategory: make(map[domain.ExpenseCategory]domain.Money),
	}
	for _, e := range entries {
		switch e.Type {
		case domain.ReportIncome:
			sum.Income += e.Amount
		case domain.ReportExpense:
			sum.Expense += e.Amount
			sum.ExpenseByCategory[categoryOf(e.Description)] += e.Amount
		}
	}
	sum.Net = sum.Income - sum.Expense
	return sum, nil
}

// categoryOf recovers the category prefix written by RecordExpense.
func categoryOf(description string) domain.ExpenseCategory {
	prefix, _, ok := strings.Cut(description, " - ")
	if !ok {
		return domain.ExpenseOther
	}
	c := domain.ExpenseCategory(strings.ToLower(prefix))
	if !domain.ValidExpenseCategory(c) {
		return domain.ExpenseOther
	}
	return c
}

type Dashboard struct {
	Income            domain.Money               `json:"income"`
	Expense           domain.Money               `json:"expense"`
	Net               domain.Money               `json:"net"`
	OutstandingCredit domain.Money               `json:"outstanding_credit"`
	Orders            int                        `json:"orders"`
	OrdersByStatus    map[domain.OrderStatus]int `json:"orders_by_status"`
	LowStock          []domain.Product           `json:"low_stock"`
}

func (s *Service) Dashboard(ctx context.Context, actorID string) (*Dashboard, error) {
	sum, err := s.Summary(ctx, actorID, store.ReportFilter{})
	if err != nil {
		return nil, err
	}

	outstanding, err := s.credit.Outstanding(ctx)
	if err != nil {
		return nil, err
	}

	orders, err := s.store.ListOrders(ctx, store.OrderFilter{})
	if err != nil {
		return nil, err
	}

	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		Income:            sum.Income,
		Expense:           sum.Expense,
		Net:               sum.Net,
		OutstandingCredit: outstanding,
		Orders:            len(orders),
		OrdersByStatus:    make(map[domain.OrderStatus]int),
		LowStock:          []domain.Product{},
	}
	for _, o := range orders {
		d.OrdersByStatus[o.Status]++
	}
	for _, p := range products {
		if p.Stock <= LowStockThreshold {
			d.LowStock = append(d.LowStock, p)
		}
	}
	return d, nil
}

func (s *Service) requireAdmin(ctx context.Context, actorID string) error {
	actor, err := s.store.GetUser(ctx, actorID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return domain.ErrForbidden
	}
	return nil
}
