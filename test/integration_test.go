//go:build integration

package test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/joao-fontenele/sipasera/internal/applications"
	"github.com/joao-fontenele/sipasera/internal/billing"
	"github.com/joao-fontenele/sipasera/internal/cart"
	"github.com/joao-fontenele/sipasera/internal/checkout"
	"github.com/joao-fontenele/sipasera/internal/credit"
	"github.com/joao-fontenele/sipasera/internal/domain"
	"github.com/joao-fontenele/sipasera/internal/idempotency"
	"github.com/joao-fontenele/sipasera/internal/messaging"
	"github.com/joao-fontenele/sipasera/internal/notify"
	"github.com/joao-fontenele/sipasera/internal/orders"
	"github.com/joao-fontenele/sipasera/internal/outbox"
	"github.com/joao-fontenele/sipasera/internal/store"
	"github.com/joao-fontenele/sipasera/internal/store/postgres"
	"github.com/joao-fontenele/sipasera/internal/worker"
)

type services struct {
	st       *postgres.Store
	credit   *credit.Ledger
	checkout *checkout.Orchestrator
	billing  *billing.Orchestrator
	workflow *applications.Workflow
}

func newServices(t *testing.T, connStr string) *services {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st := postgres.New(OpenDB(t, connStr))
	creditLedger := credit.NewLedger(st, 0, logger)
	orderLedger := orders.NewLedger(st)

	return &services{
		st:       st,
		credit:   creditLedger,
		checkout: checkout.NewOrchestrator(st, creditLedger, orderLedger, cart.NewMemoryStore(), logger),
		billing:  billing.NewOrchestrator(st, creditLedger, orderLedger, logger),
		workflow: applications.NewWorkflow(st, creditLedger, logger),
	}
}

func (s *services) used(ctx context.Context, t *testing.T, ownerID string) domain.Money {
	t.Helper()
	account, err := s.st.GetCreditAccount(ctx, ownerID)
	if err != nil {
		t.Fatalf("failed to get credit account: %v", err)
	}
	return account.Used
}

func TestPaylaterCheckoutAndSettle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	connStr := SetupPostgres(ctx, t)
	s := newServices(t, connStr)

	res, err := s.checkout.Checkout(ctx, checkout.Request{
		OwnerID: "usr_budi",
		Method:  domain.MethodPaylater,
		Items:   []cart.Line{{ProductID: "prd_beras", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if res.Order.Total != 150_000 {
		t.Fatalf("expected total 150000, got %d", res.Order.Total)
	}
	if res.Order.DueDate == nil {
		t.Fatal("expected paylater order to carry a due date")
	}
	if used := s.used(ctx, t, "usr_budi"); used != 1_650_000 {
		t.Fatalf("expected used 1650000 after checkout, got %d", used)
	}

	beras, err := s.st.GetProduct(ctx, "prd_beras")
	if err != nil {
		t.Fatalf("failed to get product: %v", err)
	}
	if beras.Stock != 98 {
		t.Fatalf("expected stock 98, got %d", beras.Stock)
	}

	partial, err := s.billing.Pay(ctx, billing.Request{
		OwnerID: "usr_budi",
		OrderID: res.Order.ID,
		Amount:  50_000,
		Method:  domain.MethodTransfer,
	})
	if err != nil {
		t.Fatalf("partial payment failed: %v", err)
	}
	if partial.Settled || partial.Order.Remaining != 100_000 {
		t.Fatalf("expected remaining 100000 and unsettled, got %d settled=%v", partial.Order.Remaining, partial.Settled)
	}

	_, err = s.billing.Pay(ctx, billing.Request{
		OwnerID: "usr_budi",
		OrderID: res.Order.ID,
		Amount:  150_000,
		Method:  domain.MethodTransfer,
	})
	if !errors.Is(err, domain.ErrOverpaymentRejected) {
		t.Fatalf("expected overpayment rejection, got %v", err)
	}

	full, err := s.billing.Pay(ctx, billing.Request{
		OwnerID:   "usr_budi",
		OrderID:   res.Order.ID,
		PayInFull: true,
		Method:    domain.MethodCash,
	})
	if err != nil {
		t.Fatalf("final payment failed: %v", err)
	}
	if !full.Settled || full.Order.Status != domain.OrderStatusPaid {
		t.Fatalf("expected settled paid order, got status %s settled=%v", full.Order.Status, full.Settled)
	}
	if used := s.used(ctx, t, "usr_budi"); used != 1_500_000 {
		t.Fatalf("expected used back at 1500000, got %d", used)
	}

	payments, err := s.st.ListPayments(ctx, res.Order.ID)
	if err != nil {
		t.Fatalf("failed to list payments: %v", err)
	}
	if len(payments) != 2 {
		t.Fatalf("expected 2 payments, got %d", len(payments))
	}

	income, err := s.st.ListReportEntries(ctx, store.ReportFilter{Type: domain.ReportIncome})
	if err != nil {
		t.Fatalf("failed to list report entries: %v", err)
	}
	var received domain.Money
	for _, e := range income {
		received += e.Amount
	}
	if received < 150_000 {
		t.Fatalf("expected at least 150000 income recorded, got %d", received)
	}
}

func TestPaylaterRequiresApprovedLimit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	connStr := SetupPostgres(ctx, t)
	s := newServices(t, connStr)
	order := checkout.Request{
		OwnerID: "usr_siti",
		Method:  domain.MethodPaylater,
		Items:   []cart.Line{{ProductID: "prd_telur", Quantity: 1}},
	}

	if _, err := s.checkout.Checkout(ctx, order); !errors.Is(err, domain.ErrCreditNotEligible) {
		t.Fatalf("expected not eligible before approval, got %v", err)
	}

	app, err := s.workflow.Submit(ctx, "usr_siti", 2_000_000, "belanja bulanan")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if _, err := s.workflow.Resolve(ctx, "usr_siti", app.ID, domain.ApplicationApproved); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected customer resolve to be forbidden, got %v", err)
	}

	resolution, err := s.workflow.Resolve(ctx, "usr_admin", app.ID, domain.ApplicationApproved)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolution.Credit == nil || resolution.Credit.Limit != 2_000_000 {
		t.Fatalf("expected limit 2000000, got %+v", resolution.Credit)
	}

	if _, err := s.workflow.Resolve(ctx, "usr_admin", app.ID, domain.ApplicationRejected); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected second resolution to fail, got %v", err)
	}

	if _, err := s.checkout.Checkout(ctx, order); err != nil {
		t.Fatalf("checkout after approval failed: %v", err)
	}
	if used := s.used(ctx, t, "usr_siti"); used != 29_000 {
		t.Fatalf("expected used 29000, got %d", used)
	}
}

func TestConcurrentPaymentsNeverOverpay(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	connStr := SetupPostgres(ctx, t)
	s := newServices(t, connStr)

	res, err := s.checkout.Checkout(ctx, checkout.Request{
		OwnerID: "usr_budi",
		Method:  domain.MethodPaylater,
		Items:   []cart.Line{{ProductID: "prd_minyak", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	const attempts = 5
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.billing.Pay(ctx, billing.Request{
				OwnerID: "usr_budi",
				OrderID: res.Order.ID,
				Amount:  38_000,
				Method:  domain.MethodTransfer,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrOverpaymentRejected), errors.Is(err, domain.ErrInvalidState):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || rejected != attempts-1 {
		t.Fatalf("expected exactly one payment to succeed, got %d succeeded and %d rejected", succeeded, rejected)
	}

	payments, err := s.st.ListPayments(ctx, res.Order.ID)
	if err != nil {
		t.Fatalf("failed to list payments: %v", err)
	}
	if len(payments) != 1 {
		t.Fatalf("expected 1 payment row, got %d", len(payments))
	}
	if used := s.used(ctx, t, "usr_budi"); used != 1_500_000 {
		t.Fatalf("expected used 1500000, got %d", used)
	}
}

type capturingNotifier struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (n *capturingNotifier) Notify(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return nil
}

func (n *capturingNotifier) snapshot() []notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.Message, len(n.messages))
	copy(out, n.messages)
	return out
}

func TestOutboxRelayDeliversNotifications(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	connStr := SetupPostgres(ctx, t)
	brokers := SetupKafka(ctx, t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := newServices(t, connStr)
	const topic = "sipasera.events.test"

	res, err := s.checkout.Checkout(ctx, checkout.Request{
		OwnerID: "usr_budi",
		Method:  domain.MethodPaylater,
		Items:   []cart.Line{{ProductID: "prd_gula", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	// Settling writes payment.recorded and order.settled in one transaction
	// with the same timestamp.
	if _, err := s.billing.Pay(ctx, billing.Request{
		OwnerID:   "usr_budi",
		OrderID:   res.Order.ID,
		PayInFull: true,
		Method:    domain.MethodTransfer,
	}); err != nil {
		t.Fatalf("payment failed: %v", err)
	}

	want := []string{
		string(domain.EventOrderCreated),
		string(domain.EventPaymentRecorded),
		string(domain.EventOrderSettled),
	}

	pending, err := s.st.PendingOutboxEvents(ctx, 10)
	if err != nil {
		t.Fatalf("failed to list pending events: %v", err)
	}
	var queued []string
	for _, e := range pending {
		queued = append(queued, string(e.Type))
	}
	if !slices.Equal(queued, want) {
		t.Fatalf("expected outbox order %v, got %v", want, queued)
	}

	producer := messaging.NewProducer(brokers, topic)
	defer func() { _ = producer.Close() }()

	relay := outbox.NewRelay(s.st, producer, logger)

	// the first publish may race topic auto-creation
	for attempt := 0; attempt < 10; attempt++ {
		if _, err = relay.RelayOnce(ctx); err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		t.Fatalf("relay failed: %v", err)
	}

	pending, err = s.st.PendingOutboxEvents(ctx, 10)
	if err != nil {
		t.Fatalf("failed to list pending events: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected outbox drained, got %d pending", len(pending))
	}

	notifier := &capturingNotifier{}
	handler := worker.NewNotificationHandler(notifier, idempotency.NewMemoryStore(), logger)

	var (
		mu       sync.Mutex
		received []string
	)
	record := func(ctx context.Context, eventType string, payload []byte) error {
		mu.Lock()
		received = append(received, eventType)
		mu.Unlock()
		return handler.Handle(ctx, eventType, payload)
	}
	consumed := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return slices.Clone(received)
	}

	consumer := messaging.NewConsumer(brokers, topic, "integration-test", messaging.WithStartOffset(kafka.FirstOffset))
	defer func() { _ = consumer.Close() }()

	consumeCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = consumer.Consume(consumeCtx, record)
	}()

	deadline := time.After(30 * time.Second)
	for len(consumed()) < len(want) {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for events, got %v", consumed())
		case <-time.After(200 * time.Millisecond):
		}
	}

	stopConsumer()
	<-done

	if got := consumed(); !slices.Equal(got, want) {
		t.Fatalf("expected delivery order %v, got %v", want, got)
	}

	msgs := notifier.snapshot()
	if len(msgs) != 2 {
		t.Fatalf("expected order placed and settled notifications, got %+v", msgs)
	}
	if msgs[0].UserID != "usr_budi" || !strings.Contains(msgs[0].Text, res.Order.ID) || !strings.Contains(msgs[0].Text, "Rp 34.000") {
		t.Fatalf("unexpected first notification: %+v", msgs[0])
	}
	if !strings.Contains(msgs[1].Text, "fully paid") {
		t.Fatalf("expected settlement notification last, got %q", msgs[1].Text)
	}
}

func TestConcurrentPaylaterCheckoutsStayWithinLimit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	connStr := SetupPostgres(ctx, t)
	s := newServices(t, connStr)

	before, err := s.st.GetCreditAccount(ctx, "usr_budi")
	if err != nil {
		t.Fatalf("failed to get credit account: %v", err)
	}

	// 10 x Beras Premium = 750.000 per order; 8 orders need 6.000.000.
	const (
		attempts = 8
		total    = domain.Money(750_000)
	)
	wantSucceeded := int(before.Available() / total)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.checkout.Checkout(ctx, checkout.Request{
				OwnerID: "usr_budi",
				Method:  domain.MethodPaylater,
				Items:   []cart.Line{{ProductID: "prd_beras", Quantity: 10}},
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrInsufficientCredit):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != wantSucceeded || rejected != attempts-wantSucceeded {
		t.Fatalf("expected %d checkouts to succeed, got %d succeeded and %d rejected", wantSucceeded, succeeded, rejected)
	}

	after, err := s.st.GetCreditAccount(ctx, "usr_budi")
	if err != nil {
		t.Fatalf("failed to get credit account: %v", err)
	}
	if after.Used < 0 || after.Used > after.Limit {
		t.Fatalf("credit out of bounds: used %d limit %d", after.Used, after.Limit)
	}
	if want := before.Used + total*domain.Money(wantSucceeded); after.Used != want {
		t.Fatalf("expected used %d, got %d", want, after.Used)
	}

	beras, err := s.st.GetProduct(ctx, "prd_beras")
	if err != nil {
		t.Fatalf("failed to get product: %v", err)
	}
	if beras.Stock != 100-10*wantSucceeded {
		t.Fatalf("expected rejected checkouts to leave stock alone, got %d", beras.Stock)
	}
}
