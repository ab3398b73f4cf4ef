// Package store defines the persistence boundary. Every backend implements
// Store; WithTx runs fn against a transactional view so multi-step
// operations commit or roll back as one unit.
package store

import (
	"context"
	"time"

	"github.com/joao-fontenele/sipasera/internal/domain"
)

type Store interface {
	UserStore
	ProductStore
	CreditStore
	OrderStore
	PaymentStore
	ApplicationStore
	ReportStore
	OutboxStore

	// WithTx runs fn inside a transaction. Calling WithTx on the store passed
	// to fn joins the running transaction.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

type UserStore interface {
	CreateUser(ctx context.Context, user *domain.User) error
	// GetUser returns nil, nil when the user does not exist.
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

type ProductStore interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	// DecrementStock fails with domain.ErrOutOfStock when stock < quantity.
	DecrementStock(ctx context.Context, productID string, quantity int) error
}

type CreditStore interface {
	GetCreditAccount(ctx context.Context, ownerID string) (*domain.CreditAccount, error)
	// CreateCreditAccount inserts an account with used = 0. An existing
	// account is returned unchanged.
	CreateCreditAccount(ctx context.Context, ownerID string, limit domain.Money) (*domain.CreditAccount, error)
	// IncreaseUsed adds amount to used only if the result stays within the
	// limit, failing with domain.ErrInsufficientCredit otherwise and
	// domain.ErrNoCreditAccount when there is no account.
	IncreaseUsed(ctx context.Context, ownerID string, amount domain.Money) (*domain.CreditAccount, error)
	// DecreaseUsed subtracts amount from used, clamping at zero. It returns
	// nil, nil when there is no account.
	DecreaseUsed(ctx context.Context, ownerID string, amount domain.Money) (*domain.CreditAccount, error)
	// IncreaseLimit adds amount to the limit, opening the account if absent.
	IncreaseLimit(ctx context.Context, ownerID string, amount domain.Money) (*domain.CreditAccount, error)
	ListCreditAccounts(ctx context.Context) ([]domain.CreditAccount, error)
}

type OrderFilter struct {
	OwnerID string
	Method  domain.PaymentMethod
	Status  domain.OrderStatus
}

type OrderStore interface {
	// CreateOrder persists the order and its line items.
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	// LockOrder reads the order and holds it until the transaction ends, so
	// concurrent payments on the same order serialize.
	LockOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) error
}

type PaymentStore interface {
	CreatePayment(ctx context.Context, payment *domain.Payment) error
	ListPayments(ctx context.Context, orderID string) ([]domain.Payment, error)
	// PaidTotals sums payments per order. Orders without payments are absent.
	PaidTotals(ctx context.Context, orderIDs []string) (map[string]domain.Money, error)
}

type ApplicationFilter struct {
	OwnerID string
	Status  domain.ApplicationStatus
	// Unacknowledged selects resolved applications whose owner has not
	// dismissed the outcome yet.
	Unacknowledged bool
}

type ApplicationStore interface {
	CreateApplication(ctx context.Context, app *domain.CreditApplication) error
	GetApplication(ctx context.Context, id string) (*domain.CreditApplication, error)
	// ResolveApplication moves a pending application to status. It fails with
	// domain.ErrNotFound or domain.ErrInvalidState when the application is
	// missing or already resolved.
	ResolveApplication(ctx context.Context, id string, status domain.ApplicationStatus, at time.Time) (*domain.CreditApplication, error)
	AcknowledgeApplication(ctx context.Context, id string) error
	ListApplications(ctx context.Context, filter ApplicationFilter) ([]domain.CreditApplication, error)
}

type ReportFilter struct {
	Type domain.ReportType
	From time.Time
	To   time.Time
}

type ReportStore interface {
	CreateReportEntry(ctx context.Context, entry *domain.ReportEntry) error
	ListReportEntries(ctx context.Context, filter ReportFilter) ([]domain.ReportEntry, error)
}

type OutboxStore interface {
	AddOutboxEvent(ctx context.Context, event *domain.OutboxEvent) error
	// PendingOutboxEvents returns unpublished events oldest first. Inside a
	// transaction the rows stay claimed until it ends.
	PendingOutboxEvents(ctx context.Context, limit int) ([]domain.OutboxEvent, error)
	MarkOutboxPublished(ctx context.Context, ids []string, at time.Time) error
}
