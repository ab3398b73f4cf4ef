// Package checkout turns a cart into an order. Validation runs first with no
// side effects; the order, stock, credit, report and event writes then commit
// together in one transaction.
package checkout

import (
	"context"
	"fmt"
	"math"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/sipasera/internal/cart"
	"github.com/joao-fontenele/sipasera/internal/credit"
	"github.com/joao-fontenele/sipasera/internal/domain"
	"github.com/joao-fontenele/sipasera/internal/id"
	"github.com/joao-fontenele/sipasera/internal/orders"
	"github.com/joao-fontenele/sipasera/internal/store"
	"github.com/joao-fontenele/sipasera/internal/telemetry"
)

var tracer = otel.Tracer("checkout")

type Orchestrator struct {
	store   store.Store
	credit  *credit.Ledger
	orders  *orders.Ledger
	carts   cart.Store
	logger  *slog.Logger
	checked metric.Int64Counter
}

// NewOrchestrator wires checkout. carts may be nil, in which case requests
// must carry their items.
func NewOrchestrator(st store.Store, creditLedger *credit.Ledger, orderLedger *orders.Ledger, carts cart.Store, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:   st,
		credit:  creditLedger,
		orders:  orderLedger,
		carts:   carts,
		logger:  logger,
		checked: telemetry.Counter("checkout", "checkout.attempts", "Checkout attempts by payment method and outcome"),
	}
}

type Request struct {
	OwnerID string
	Method  domain.PaymentMethod
	// Items overrides the stored cart when non-empty.
	Items []cart.Line
}

type Result struct {
	Order  *domain.Order         `json:"order"`
	Credit *domain.CreditAccount `json:"credit,omitempty"`
}

func (o *Orchestrator) Checkout(ctx context.Context, req Request) (res *Result, err error) {
	ctx, span := tracer.Start(ctx, "checkout", trace.WithAttributes(
		attribute.String("owner_id", req.OwnerID),
		attribute.String("payment_method", string(req.Method)),
	))
	defer func() {
		telemetry.End(ctx, span, o.checked, err, attribute.String("payment_method", string(req.Method)))
	}()

	if !domain.ValidCheckoutMethod(req.Method) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidMethod, req.Method)
	}

	owner, err := o.store.GetUser(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, req.OwnerID)
	}

	lines := req.Items
	fromCart := len(lines) == 0
	if fromCart && o.carts != nil {
		lines, err = o.carts.Items(ctx, req.OwnerID)
		if err != nil {
			return nil, err
		}
	}

	items, err := o.price(ctx, lines)
	if err != nil {
		return nil, err
	}
	total := domain.Total(items)
	span.SetAttributes(attribute.Int64("order.total", int64(total)))

	if req.Method == domain.MethodPaylater {
		account, err := o.credit.Account(ctx, req.OwnerID)
		if err != nil {
			return nil, err
		}
		if err := o.credit.CheckAvailable(account, total); err != nil {
			return nil, err
		}
	}

	res = &Result{}
	err = o.store.WithTx(ctx, func(tx store.Store) error {
		order, err := o.orders.In(tx).CreateOrder(ctx, req.OwnerID, req.Method, items)
		if err != nil {
			return err
		}
		res.Order = order

		for _, item := range items {
			if err := tx.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		if req.Method == domain.MethodPaylater {
			account, err := o.credit.In(tx).IncreaseUsed(ctx, req.OwnerID, total)
			if err != nil {
				return err
			}
			res.Credit = account
		}

		if err := tx.CreateReportEntry(ctx, &domain.ReportEntry{
			ID:          id.NewReportID(),
			Type:        domain.ReportIncome,
			Description: fmt.Sprintf("Order %s - %s", order.ID, owner.Name),
			Amount:      order.Total,
			CreatedAt:   order.CreatedAt,
		}); err != nil {
			return err
		}

		return store.AddEvent(ctx, tx, domain.EventOrderCreated, order.ID, domain.OrderCreatedEvent{
			OrderID:       order.ID,
			OwnerID:       order.OwnerID,
			Total:         order.Total,
			PaymentMethod: order.PaymentMethod,
			DueDate:       order.DueDate,
			Items:         order.Items,
			Timestamp:     order.CreatedAt,
		}, order.CreatedAt)
	})
	if err != nil {
		return nil, err
	}

	if o.carts != nil {
		if err := o.carts.Clear(ctx, req.OwnerID); err != nil {
			o.logger.Error("failed to clear cart", "error", err, "owner_id", req.OwnerID, "order_id", res.Order.ID)
		}
	}

	o.logger.Info("order created",
		"order_id", res.Order.ID,
		"owner_id", req.OwnerID,
		"payment_method", req.Method,
		"total", int64(res.Order.Total),
		"from_cart", fromCart,
	)
	return res, nil
}

// maxLineQuantity is the bound of order_items.quantity.
const maxLineQuantity = math.MaxInt32

// price captures the current catalog price for every line. Repeated products
// are merged and the stock check here lets a short cart fail before any
// write; the guarded decrement still enforces it.
func (o *Orchestrator) price(ctx context.Context, lines []cart.Line) ([]domain.LineItem, error) {
	if len(lines) == 0 {
		return nil, domain.ErrEmptyCart
	}

	index := make(map[string]int, len(lines))
	var merged []cart.Line
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity %d for product %s", domain.ErrInvalidAmount, line.Quantity, line.ProductID)
		}
		if line.Quantity > maxLineQuantity {
			return nil, fmt.Errorf("%w: quantity %d for product %s", domain.ErrInvalidAmount, line.Quantity, line.ProductID)
		}
		if i, ok := index[line.ProductID]; ok {
			if line.Quantity > maxLineQuantity-merged[i].Quantity {
				return nil, fmt.Errorf("%w: combined quantity for product %s is too large", domain.ErrInvalidAmount, line.ProductID)
			}
			merged[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}

	items := make([]domain.LineItem, 0, len(merged))
	for _, line := range merged {
		product, err := o.store.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		if product == nil {
			return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, line.ProductID)
		}
		if product.Stock < line.Quantity {
			return nil, fmt.Errorf("%w: product %s has %d left", domain.ErrOutOfStock, product.ID, product.Stock)
		}
		items = append(items, domain.LineItem{
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  line.Quantity,
			UnitPrice: product.Price,
		})
	}
	return items, nil
}
