// Package billing takes repayments against paylater orders and gives the
// repaid amount back to the customer's credit line.
package billing

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/sipasera/internal/credit"
	"github.com/joao-fontenele/sipasera/internal/domain"
	"github.com/joao-fontenele/sipasera/internal/id"
	"github.com/joao-fontenele/sipasera/internal/orders"
	"github.com/joao-fontenele/sipasera/internal/store"
	"github.com/joao-fontenele/sipasera/internal/telemetry"
)

var tracer = otel.Tracer("billing")

type Orchestrator struct {
	store    store.Store
	credit   *credit.Ledger
	orders   *orders.Ledger
	logger   *slog.Logger
	payments metric.Int64Counter
}

func NewOrchestrator(st store.Store, creditLedger *credit.Ledger, orderLedger *orders.Ledger, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:    st,
		credit:   creditLedger,
		orders:   orderLedger,
		logger:   logger,
		payments: telemetry.Counter("billing", "billing.payments", "Paylater repayments by method and outcome"),
	}
}

type Request struct {
	OwnerID   string
	OrderID   string
	Amount    domain.Money
	PayInFull bool
	Method    domain.PaymentMethod
	Note      string
}

type Result struct {
	Payment domain.Payment        `json:"payment"`
	Order   domain.Order          `json:"order"`
	Settled bool                  `json:"settled"`
	Credit  *domain.CreditAccount `json:"credit,omitempty"`
}

func (o *Orchestrator) Pay(ctx context.Context, req Request) (res *Result, err error) {
	ctx, span := tracer.Start(ctx, "pay bill", trace.WithAttributes(
		attribute.String("owner_id", req.OwnerID),
		attribute.String("order_id", req.OrderID),
		attribute.String("payment_method", string(req.Method)),
	))
	defer func() {
		telemetry.End(ctx, span, o.payments, err, attribute.String("payment_method", string(req.Method)))
	}()

	if !domain.ValidRepaymentMethod(req.Method) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidMethod, req.Method)
	}

	order, err := o.orders.Get(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil || order.OwnerID != req.OwnerID {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, req.OrderID)
	}
	if !order.IsPaylater() {
		return nil, fmt.Errorf("%w: order %s is not a paylater order", domain.ErrInvalidState, order.ID)
	}
	if order.Remaining == 0 {
		return nil, fmt.Errorf("%w: order %s is already settled", domain.ErrInvalidState, order.ID)
	}

	if !req.PayInFull {
		if !req.Amount.Positive() {
			return nil, domain.ErrInvalidAmount
		}
		if req.Amount > order.Remaining {
			return nil, fmt.Errorf("%w: %s exceeds remaining %s", domain.ErrOverpaymentRejected, req.Amount, order.Remaining)
		}
	}

	owner, err := o.store.GetUser(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}
	ownerName := req.OwnerID
	if owner != nil {
		ownerName = owner.Name
	}

	err = o.store.WithTx(ctx, func(tx store.Store) error {
		rec, err := o.orders.In(tx).RecordPayment(ctx, orders.PaymentRequest{
			OrderID:   order.ID,
			Amount:    req.Amount,
			PayInFull: req.PayInFull,
			Method:    req.Method,
			Note:      req.Note,
		})
		if err != nil {
			return err
		}
		res = &Result{Payment: rec.Payment, Order: rec.Order, Settled: rec.Settled}
		amount := rec.Payment.Amount

		account, err := o.credit.In(tx).DecreaseUsed(ctx, req.OwnerID, amount)
		if err != nil {
			return err
		}
		res.Credit = account

		if err := tx.CreateReportEntry(ctx, &domain.ReportEntry{
			ID:          id.NewReportID(),
			Type:        domain.ReportIncome,
			Description: fmt.Sprintf("Payment for order %s - %s", order.ID, ownerName),
			Amount:      amount,
			CreatedAt:   rec.Payment.CreatedAt,
		}); err != nil {
			return err
		}

		if err := store.AddEvent(ctx, tx, domain.EventPaymentRecorded, order.ID, domain.PaymentRecordedEvent{
			PaymentID: rec.Payment.ID,
			OrderID:   order.ID,
			OwnerID:   req.OwnerID,
			Amount:    amount,
			Remaining: rec.Order.Remaining,
			Settled:   rec.Settled,
			Timestamp: rec.Payment.CreatedAt,
		}, rec.Payment.CreatedAt); err != nil {
			return err
		}

		if !rec.Settled {
			return nil
		}
		return store.AddEvent(ctx, tx, domain.EventOrderSettled, order.ID, domain.OrderSettledEvent{
			OrderID:   order.ID,
			OwnerID:   req.OwnerID,
			Total:     order.Total,
			Timestamp: rec.Payment.CreatedAt,
		}, rec.Payment.CreatedAt)
	})
	if err != nil {
		return nil, err
	}

	o.logger.Info("payment recorded",
		"payment_id", res.Payment.ID,
		"order_id", order.ID,
		"owner_id", req.OwnerID,
		"amount", int64(res.Payment.Amount),
		"remaining", int64(res.Order.Remaining),
		"settled", res.Settled,
	)
	return res, nil
}

// Bills lists the owner's outstanding paylater orders.
func (o *Orchestrator) Bills(ctx context.Context, ownerID string) ([]orders.Bill, error) {
	return o.orders.Outstanding(ctx, ownerID)
}
