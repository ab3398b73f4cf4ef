// Package memory is an in-process store.Store. Transactions are serialized
// and roll back by restoring a snapshot taken when they begin.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/joao-fontenele/sipasera/internal/domain"
	"github.com/joao-fontenele/sipasera/internal/store"
)

type data struct {
	users        map[string]domain.User
	products     map[string]domain.Product
	credit       map[string]domain.CreditAccount
	orders       map[string]domain.Order
	payments     []domain.Payment
	applications map[string]domain.CreditApplication
	reports      []domain.ReportEntry
	outbox       []domain.OutboxEvent
}

func newData() *data {
	return &data{
		users:        make(map[string]domain.User),
		products:     make(map[string]domain.Product),
		credit:       make(map[string]domain.CreditAccount),
		orders:       make(map[string]domain.Order),
		applications: make(map[string]domain.CreditApplication),
	}
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.products {
		c.products[k] = v
	}
	for k, v := range d.credit {
		c.credit[k] = v
	}
	for k, v := range d.orders {
		v.Items = append([]domain.LineItem(nil), v.Items...)
		c.orders[k] = v
	}
	for k, v := range d.applications {
		c.applications[k] = v
	}
	c.payments = append([]domain.Payment(nil), d.payments...)
	c.reports = append([]domain.ReportEntry(nil), d.reports...)
	c.outbox = append([]domain.OutboxEvent(nil), d.outbox...)
	return c
}

type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	d    *data
	now  func() time.Time

	// failOn makes the named operation return an error, for exercising
	// rollback paths in tests.
	failOn map[string]error
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		d:      newData(),
		now:    func() time.Time { return time.Now().UTC() },
		failOn: make(map[string]error),
	}
}

// FailOn makes every later call to op fail with err. A nil err clears it.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failOn, op)
		return
	}
	s.failOn[op] = err
}

func (s *Store) injected(op string) error {
	if err, ok := s.failOn[op]; ok {
		return &domain.BackendError{Op: op, Err: err}
	}
	return nil
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.d.clone()
	s.mu.RUnlock()

	if err := fn(&txStore{Store: s}); err != nil {
		s.mu.Lock()
		s.d = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// txStore joins the transaction that created it.
type txStore struct {
	*Store
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(t)
}

// Seed helpers for tests and local runs.

func (s *Store) PutUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.users[u.ID] = u
}

func (s *Store) PutProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.products[p.ID] = p
}

func (s *Store) PutCreditAccount(a domain.CreditAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.credit[a.OwnerID] = a
}

func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("insert user"); err != nil {
		return err
	}
	if _, ok := s.d.users[user.ID]; ok {
		return &domain.BackendError{Op: "insert user", Err: fmt.Errorf("duplicate id %s", user.ID)}
	}
	for _, u := range s.d.users {
		if u.Email == user.Email {
			return fmt.Errorf("%w: %s", domain.ErrEmailTaken, user.Email)
		}
	}
	s.d.users[user.ID] = *user
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.d.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	products := make([]domain.Product, 0, len(s.d.products))
	for _, p := range s.d.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.d.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) DecrementStock(ctx context.Context, productID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("decrement stock"); err != nil {
		return err
	}
	p, ok := s.d.products[productID]
	if !ok || p.Stock < quantity {
		return fmt.Errorf("%w: product %s", domain.ErrOutOfStock, productID)
	}
	p.Stock -= quantity
	s.d.products[productID] = p
	return nil
}
