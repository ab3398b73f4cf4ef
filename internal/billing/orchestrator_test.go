package billing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/joao-fontenele/sipasera/internal/credit"
	"github.com/joao-fontenele/sipasera/internal/domain"
	"github.com/joao-fontenele/sipasera/internal/orders"
	"github.com/joao-fontenele/sipasera/internal/store"
	"github.com/joao-fontenele/sipasera/internal/store/memory"
)

var now = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	st     *memory.Store
	orders *orders.Ledger
	o      *Orchestrator
}

func setup(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st := memory.New()
	st.PutUser(domain.User{ID: "usr_budi", Name: "Budi", Role: domain.RoleCustomer})
	st.PutUser(domain.User{ID: "usr_siti", Name: "Siti", Role: domain.RoleCustomer})
	st.PutCreditAccount(domain.CreditAccount{OwnerID: "usr_budi", Limit: 5_000_000, Used: 1_800_000})

	orderLedger := orders.NewLedger(st, orders.WithClock(func() time.Time { return now }))
	return &fixture{
		st:     st,
		orders: orderLedger,
		o:      NewOrchestrator(st, credit.NewLedger(st, 0, logger), orderLedger, logger),
	}
}

func (f *fixture) order(t *testing.T, owner string, method domain.PaymentMethod, total domain.Money) *domain.Order {
	t.Helper()
	o, err := f.orders.CreateOrder(context.Background(), owner, method, []domain.LineItem{
		{ProductID: "prd_beras", Quantity: 1, UnitPrice: total},
	})
	if err != nil {
		t.Fatalf("failed to create order: %v", err)
	}
	return o
}

func (f *fixture) used(t *testing.T) domain.Money {
	t.Helper()
	a, _ := f.st.GetCreditAccount(context.Background(), "usr_budi")
	return a.Used
}

func TestOrchestrator_PartialThenSettle(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	order := f.order(t, "usr_budi", domain.MethodPaylater, 300_000)

	res, err := f.o.Pay(ctx, Request{OwnerID: "usr_budi", OrderID: order.ID, Amount: 100_000, Method: domain.MethodTransfer})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Settled || res.Order.Remaining != 200_000 || res.Order.Status != domain.OrderStatusCompleted {
		t.Errorf("unexpected result after partial payment: %+v", res)
	}
	if got := f.used(t); got != 1_700_000 {
		t.Errorf("expected used 1700000, got %d", got)
	}

	res, err = f.o.Pay(ctx, Request{OwnerID: "usr_budi", OrderID: order.ID, Amount: 200_000, Method: domain.MethodCash})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Settled || res.Order.Remaining != 0 || res.Order.Status != domain.OrderStatusPaid {
		t.Errorf("expected settled order, got %+v", res)
	}
	if got := f.used(t); got != 1_500_000 {
		t.Errorf("expected used 1500000, got %d", got)
	}

	entries, _ := f.st.ListReportEntries(ctx, store.ReportFilter{Type: domain.ReportIncome})
	if len(entries) != 2 {
		t.Errorf("expected two income entries, got %d", len(entries))
	}

	events, _ := f.st.PendingOutboxEvents(ctx, 10)
	var types []domain.EventType
	for _, e := range events {
		types = append(types, e.Type)
	}
	want := []domain.EventType{domain.EventPaymentRecorded, domain.EventPaymentRecorded, domain.EventOrderSettled}
	if len(types) != len(want) {
		t.Fatalf("expected events %v, got %v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], types[i])
		}
	}

	settled, err := f.orders.IsSettled(ctx, order.ID)
	if err != nil || !settled {
		t.Errorf("expected settled order, got %v, %v", settled, err)
	}
}

func TestOrchestrator_Rejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		owner string
		build func(f *fixture, t *testing.T) *domain.Order
		req   func(orderID string) Request
		want  error
	}{
		{
			name: "overpayment",
			build: func(f *fixture, t *testing.T) *domain.Order {
				return f.order(t, "usr_budi", domain.MethodPaylater, 300_000)
			},
			req: func(orderID string) Request {
				return Request{OwnerID: "usr_budi", OrderID: orderID, Amount: 300_001, Method: domain.MethodTransfer}
			},
			want: domain.ErrOverpaymentRejected,
		},
		{
			name: "zero amount",
			build: func(f *fixture, t *testing.T) *domain.Order {
				return f.order(t, "usr_budi", domain.MethodPaylater, 300_000)
			},
			req: func(orderID string) Request {
				return Request{OwnerID: "usr_budi", OrderID: orderID, Amount: 0, Method: domain.MethodTransfer}
			},
			want: domain.ErrInvalidAmount,
		},
		{
			name: "someone else's order",
			build: func(f *fixture, t *testing.T) *domain.Order {
				return f.order(t, "usr_budi", domain.MethodPaylater, 300_000)
			},
			req: func(orderID string) Request {
				return Request{OwnerID: "usr_siti", OrderID: orderID, Amount: 1_000, Method: domain.MethodTransfer}
			},
			want: domain.ErrNotFound,
		},
		{
			name: "cash order",
			build: func(f *fixture, t *testing.T) *domain.Order {
				return f.order(t, "usr_budi", domain.MethodCash, 300_000)
			},
			req: func(orderID string) Request {
				return Request{OwnerID: "usr_budi", OrderID: orderID, Amount: 1_000, Method: domain.MethodTransfer}
			},
			want: domain.ErrInvalidState,
		},
		{
			name: "paylater is not a repayment method",
			build: func(f *fixture, t *testing.T) *domain.Order {
				return f.order(t, "usr_budi", domain.MethodPaylater, 300_000)
			},
			req: func(orderID string) Request {
				return Request{OwnerID: "usr_budi", OrderID: orderID, Amount: 1_000, Method: domain.MethodPaylater}
			},
			want: domain.ErrInvalidMethod,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			order := tt.build(f, t)

			_, err := f.o.Pay(ctx, tt.req(order.ID))
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}

			payments, _ := f.st.ListPayments(ctx, order.ID)
			if len(payments) != 0 {
				t.Errorf("expected no payments, got %d", len(payments))
			}
			if got := f.used(t); got != 1_800_000 {
				t.Errorf("expected used unchanged, got %d", got)
			}
		})
	}
}

func TestOrchestrator_PayInFull(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	order := f.order(t, "usr_budi", domain.MethodPaylater, 300_000)

	if _, err := f.o.Pay(ctx, Request{OwnerID: "usr_budi", OrderID: order.ID, Amount: 120_000, Method: domain.MethodTransfer}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := f.o.Pay(ctx, Request{OwnerID: "usr_budi", OrderID: order.ID, PayInFull: true, Method: domain.MethodEWallet})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Payment.Amount != 180_000 || !res.Settled {
		t.Errorf("expected full payment of 180000, got %+v", res.Payment)
	}

	_, err = f.o.Pay(ctx, Request{OwnerID: "usr_budi", OrderID: order.ID, PayInFull: true, Method: domain.MethodEWallet})
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState on a settled order, got %v", err)
	}
}

func TestOrchestrator_ConcurrentPaymentsCannotOverpay(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	order := f.order(t, "usr_budi", domain.MethodPaylater, 300_000)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.o.Pay(ctx, Request{OwnerID: "usr_budi", OrderID: order.ID, Amount: 200_000, Method: domain.MethodTransfer})
		}(i)
	}
	wg.Wait()

	var succeeded, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrOverpaymentRejected):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || rejected != 1 {
		t.Fatalf("expected one success and one rejection, got %d and %d", succeeded, rejected)
	}

	remaining, _ := f.orders.Remaining(ctx, order.ID)
	if remaining != 100_000 {
		t.Errorf("expected remaining 100000, got %d", remaining)
	}
}

func TestOrchestrator_NoCreditAccountStillRecordsPayment(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.st.PutUser(domain.User{ID: "usr_old", Name: "Old"})
	order := f.order(t, "usr_old", domain.MethodPaylater, 50_000)

	res, err := f.o.Pay(ctx, Request{OwnerID: "usr_old", OrderID: order.ID, Amount: 50_000, Method: domain.MethodCash})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Credit != nil || !res.Settled {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestOrchestrator_RollsBackOnBackendFailure(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	order := f.order(t, "usr_budi", domain.MethodPaylater, 300_000)
	f.st.FailOn("decrease credit used", errors.New("connection reset"))

	_, err := f.o.Pay(ctx, Request{OwnerID: "usr_budi", OrderID: order.ID, Amount: 300_000, Method: domain.MethodTransfer})
	var be *domain.BackendError
	if !errors.As(err, &be) {
		t.Fatalf("expected BackendError, got %v", err)
	}

	got, _ := f.orders.Get(ctx, order.ID)
	if got.Remaining != 300_000 || got.Status != domain.OrderStatusCompleted {
		t.Errorf("expected order untouched, got %+v", got)
	}
}

func TestOrchestrator_Bills(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	order := f.order(t, "usr_budi", domain.MethodPaylater, 300_000)
	f.order(t, "usr_budi", domain.MethodCash, 10_000)

	bills, err := f.o.Bills(ctx, "usr_budi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bills) != 1 || bills[0].ID != order.ID {
		t.Fatalf("expected only the paylater order, got %+v", bills)
	}
	if bills[0].DaysRemaining != 30 || bills[0].Overdue || bills[0].DueSoon {
		t.Errorf("unexpected due info %+v", bills[0])
	}
}
