package memory

import (
	"context"
	"sort"

	"github.com/joao-fontenele/sipasera/internal/domain"
	"github.com/joao-fontenele/sipasera/internal/store"
)

func copyOrder(o domain.Order) *domain.Order {
	o.Items = append([]domain.LineItem{}, o.Items...)
	return &o
}

func (s *Store) CreateOrder(ctx context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("insert order"); err != nil {
		return err
	}
	s.d.orders[order.ID] = *copyOrder(*order)
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.d.orders[id]
	if !ok {
		return nil, nil
	}
	return copyOrder(o), nil
}

// LockOrder is GetOrder; WithTx already serializes writers.
func (s *Store) LockOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.GetOrder(ctx, id)
}

func (s *Store) ListOrders(ctx context.Context, filter store.OrderFilter) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orders := []domain.Order{}
	for _, o := range s.d.orders {
		if filter.OwnerID != "" && o.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Method != "" && o.PaymentMethod != filter.Method {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		orders = append(orders, *copyOrder(o))
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("update order status"); err != nil {
		return err
	}
	o, ok := s.d.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.Status = status
	s.d.orders[id] = o
	return nil
}

func (s *Store) CreatePayment(ctx context.Context, p *domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("insert payment"); err != nil {
		return err
	}
	s.d.payments = append(s.d.payments, *p)
	return nil
}

func (s *Store) ListPayments(ctx context.Context, orderID string) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payments := []domain.Payment{}
	for _, p := range s.d.payments {
		if p.OrderID == orderID {
			payments = append(payments, p)
		}
	}
	return payments, nil
}

func (s *Store) PaidTotals(ctx context.Context, orderIDs []string) (map[string]domain.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := make(map[string]bool, len(orderIDs))
	for _, id := range orderIDs {
		wanted[id] = true
	}
	totals := make(map[string]domain.Money)
	for _, p := range s.d.payments {
		if wanted[p.OrderID] {
			totals[p.OrderID] += p.Amount
		}
	}
	return totals, nil
}
