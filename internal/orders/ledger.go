// Package orders records orders and the payments made against them.
// An order's remaining balance is always derived from its payments.
package orders

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/joao-fontenele/sipasera/internal/domain"
	"github.com/joao-fontenele/sipasera/internal/id"
	"github.com/joao-fontenele/sipasera/internal/store"
)

const DefaultTermDays = 30

// DueSoonDays is how close to the due date a bill starts being flagged.
const DueSoonDays = 7

type Ledger struct {
	store    store.Store
	termDays int
	now      func() time.Time
}

type Option func(*Ledger)

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithTermDays sets how long a paylater order has until it is due.
func WithTermDays(days int) Option {
	return func(l *Ledger) {
		if days > 0 {
			l.termDays = days
		}
	}
}

func NewLedger(st store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:    st,
		termDays: DefaultTermDays,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// In returns a ledger bound to the transaction tx.
func (l *Ledger) In(tx store.Store) *Ledger {
	c := *l
	c.store = tx
	return &c
}

func (l *Ledger) Now() time.Time { return l.now() }

func (l *Ledger) CreateOrder(ctx context.Context, ownerID string, method domain.PaymentMethod, items []domain.LineItem) (*domain.Order, error) {
	if !domain.ValidCheckoutMethod(method) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidMethod, method)
	}
	if len(items) == 0 {
		return nil, domain.ErrEmptyCart
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity %d for product %s", domain.ErrInvalidAmount, item.Quantity, item.ProductID)
		}
		if item.UnitPrice < 0 {
			return nil, fmt.Errorf("%w: unit price for product %s", domain.ErrInvalidAmount, item.ProductID)
		}
	}

	now := l.now()
	order := &domain.Order{
		ID:            id.NewOrderID(),
		OwnerID:       ownerID,
		Items:         append([]domain.LineItem(nil), items...),
		Total:         domain.Total(items),
		PaymentMethod: method,
		Status:        domain.OrderStatusCompleted,
		CreatedAt:     now,
	}
	if method == domain.MethodPaylater {
		due := now.AddDate(0, 0, l.termDays)
		order.DueDate = &due
	}
	order.Remaining = order.Total

	if err := l.store.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	return order, nil
}

type PaymentRequest struct {
	OrderID string
	// Amount is ignored when PayInFull is set; the remaining balance read
	// under the order lock is used instead.
	Amount    domain.Money
	PayInFull bool
	Method    domain.PaymentMethod
	Note      string
}

type Recorded struct {
	Payment domain.Payment `json:"payment"`
	Order   domain.Order   `json:"order"`
	Settled bool           `json:"settled"`
}

// RecordPayment appends a payment and settles the order when nothing
// remains. The order row is locked for the duration, so two concurrent
// payments are validated one after the other.
func (l *Ledger) RecordPayment(ctx context.Context, req PaymentRequest) (*Recorded, error) {
	if !req.PayInFull && !req.Amount.Positive() {
		return nil, domain.ErrInvalidAmount
	}

	var rec *Recorded
	err := l.store.WithTx(ctx, func(tx store.Store) error {
		order, err := tx.LockOrder(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrNotFound
		}

		payments, err := tx.ListPayments(ctx, order.ID)
		if err != nil {
			return err
		}
		paid := domain.SumPayments(payments)
		remaining := domain.Remaining(order.Total, paid)

		amount := req.Amount
		if req.PayInFull {
			if remaining == 0 {
				return fmt.Errorf("%w: order %s is already settled", domain.ErrInvalidState, order.ID)
			}
			amount = remaining
		}
		if amount > remaining {
			return fmt.Errorf("%w: %s exceeds remaining %s", domain.ErrOverpaymentRejected, amount, remaining)
		}

		payment := domain.Payment{
			ID:        id.NewPaymentID(),
			OrderID:   order.ID,
			OwnerID:   order.OwnerID,
			Amount:    amount,
			Method:    req.Method,
			Note:      req.Note,
			CreatedAt: l.now(),
		}
		if err := tx.CreatePayment(ctx, &payment); err != nil {
			return err
		}

		order.Paid = paid + amount
		order.Remaining = remaining - amount
		settled := order.Remaining == 0
		if settled && domain.CanTransition(order.Status, domain.OrderStatusPaid) {
			if err := tx.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusPaid); err != nil {
				return err
			}
			order.Status = domain.OrderStatusPaid
		}

		rec = &Recorded{Payment: payment, Order: *order, Settled: settled}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// Get returns the order with paid and remaining filled in, or nil when it
// does not exist.
func (l *Ledger) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := l.store.GetOrder(ctx, orderID)
	if err != nil || order == nil {
		return nil, err
	}

	payments, err := l.store.ListPayments(ctx, orderID)
	if err != nil {
		return nil, err
	}

	order.Paid = domain.SumPayments(payments)
	order.Remaining = domain.Remaining(order.Total, order.Paid)
	return order, nil
}

func (l *Ledger) Payments(ctx context.Context, orderID string) ([]domain.Payment, error) {
	return l.store.ListPayments(ctx, orderID)
}

func (l *Ledger) Remaining(ctx context.Context, orderID string) (domain.Money, error) {
	order, err := l.Get(ctx, orderID)
	if err != nil {
		return 0, err
	}
	if order == nil {
		return 0, domain.ErrNotFound
	}
	return order.Remaining, nil
}

func (l *Ledger) IsSettled(ctx context.Context, orderID string) (bool, error) {
	remaining, err := l.Remaining(ctx, orderID)
	if err != nil {
		return false, err
	}
	return remaining == 0, nil
}

func (l *Ledger) List(ctx context.Context, filter store.OrderFilter) ([]domain.Order, error) {
	orders, err := l.store.ListOrders(ctx, filter)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}

	paid, err := l.store.PaidTotals(ctx, ids)
	if err != nil {
		return nil, err
	}

	for i := range orders {
		orders[i].Paid = paid[orders[i].ID]
		orders[i].Remaining = domain.Remaining(orders[i].Total, orders[i].Paid)
	}
	return orders, nil
}

type Bill struct {
	domain.Order
	DaysRemaining int  `json:"days_remaining"`
	DueSoon       bool `json:"due_soon"`
	Overdue       bool `json:"overdue"`
}

// Outstanding lists the owner's unsettled paylater orders, earliest due
// first.
func (l *Ledger) Outstanding(ctx context.Context, ownerID string) ([]Bill, error) {
	orders, err := l.List(ctx, store.OrderFilter{OwnerID: ownerID, Method: domain.MethodPaylater})
	if err != nil {
		return nil, err
	}

	now := l.now()
	bills := []Bill{}
	for _, o := range orders {
		if o.Remaining == 0 {
			continue
		}
		bills = append(bills, newBill(o, now))
	}

	sort.SliceStable(bills, func(i, j int) bool {
		return bills[i].DaysRemaining < bills[j].DaysRemaining
	})
	return bills, nil
}

func newBill(o domain.Order, now time.Time) Bill {
	b := Bill{Order: o}
	if o.DueDate == nil {
		return b
	}
	b.DaysRemaining = int(math.Ceil(o.DueDate.Sub(now).Hours() / 24))
	b.Overdue = now.After(*o.DueDate)
	b.DueSoon = !b.Overdue && b.DaysRemaining <= DueSoonDays
	return b
}
