// Package credit keeps each customer's paylater line: how much they may
// borrow and how much is currently outstanding.
package credit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joao-fontenele/sipasera/internal/domain"
	"github.com/joao-fontenele/sipasera/internal/store"
)

type Ledger struct {
	store        store.CreditStore
	nominalLimit domain.Money
	logger       *slog.Logger
}

// NewLedger returns a ledger over st. Accounts whose limit does not exceed
// nominalLimit exist but cannot be used for paylater.
func NewLedger(st store.CreditStore, nominalLimit domain.Money, logger *slog.Logger) *Ledger {
	return &Ledger{
		store:        st,
		nominalLimit: nominalLimit,
		logger:       logger,
	}
}

// In returns a ledger bound to the transaction tx.
func (l *Ledger) In(tx store.CreditStore) *Ledger {
	c := *l
	c.store = tx
	return &c
}

func (l *Ledger) NominalLimit() domain.Money { return l.nominalLimit }

// Account returns nil when the owner has no credit account.
func (l *Ledger) Account(ctx context.Context, ownerID string) (*domain.CreditAccount, error) {
	return l.store.GetCreditAccount(ctx, ownerID)
}

// OpenAccount creates the nominal account given to every new customer.
func (l *Ledger) OpenAccount(ctx context.Context, ownerID string) (*domain.CreditAccount, error) {
	return l.store.CreateCreditAccount(ctx, ownerID, l.nominalLimit)
}

func (l *Ledger) IncreaseUsed(ctx context.Context, ownerID string, amount domain.Money) (*domain.CreditAccount, error) {
	if !amount.Positive() {
		return nil, domain.ErrInvalidAmount
	}

	account, err := l.store.IncreaseUsed(ctx, ownerID, amount)
	if err != nil {
		return nil, err
	}

	l.logger.Info("credit used increased", "owner_id", ownerID, "amount", int64(amount), "used", int64(account.Used), "limit", int64(account.Limit))
	return account, nil
}

// DecreaseUsed clamps used at zero. It returns nil, nil when the owner has no
// account.
func (l *Ledger) DecreaseUsed(ctx context.Context, ownerID string, amount domain.Money) (*domain.CreditAccount, error) {
	if !amount.Positive() {
		return nil, domain.ErrInvalidAmount
	}

	account, err := l.store.DecreaseUsed(ctx, ownerID, amount)
	if err != nil {
		return nil, err
	}

	if account == nil {
		l.logger.Warn("no credit account to decrease", "owner_id", ownerID, "amount", int64(amount))
		return nil, nil
	}

	l.logger.Info("credit used decreased", "owner_id", ownerID, "amount", int64(amount), "used", int64(account.Used))
	return account, nil
}

func (l *Ledger) IncreaseLimit(ctx context.Context, ownerID string, amount domain.Money) (*domain.CreditAccount, error) {
	if !amount.Positive() {
		return nil, domain.ErrInvalidAmount
	}

	account, err := l.store.IncreaseLimit(ctx, ownerID, amount)
	if err != nil {
		return nil, err
	}

	l.logger.Info("credit limit increased", "owner_id", ownerID, "amount", int64(amount), "limit", int64(account.Limit))
	return account, nil
}

// CheckAvailable is the paylater pre-flight run before any write.
func (l *Ledger) CheckAvailable(account *domain.CreditAccount, amount domain.Money) error {
	if !amount.Positive() {
		return fmt.Errorf("%w: %d", domain.ErrInvalidAmount, amount)
	}
	if account == nil {
		return domain.ErrNoCreditAccount
	}
	if account.Limit <= l.nominalLimit {
		return domain.ErrCreditNotEligible
	}
	if amount > account.Available() {
		return domain.ErrInsufficientCredit
	}
	return nil
}

type Summary struct {
	OwnerID   string       `json:"owner_id"`
	Limit     domain.Money `json:"limit"`
	Used      domain.Money `json:"used"`
	Available domain.Money `json:"available"`
	Eligible  bool         `json:"eligible"`
}

func (l *Ledger) Summary(ctx context.Context, ownerID string) (*Summary, error) {
	account, err := l.Account(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrNoCreditAccount
	}
	return &Summary{
		OwnerID:   ownerID,
		Limit:     account.Limit,
		Used:      account.Used,
		Available: account.Available(),
		Eligible:  account.Limit > l.nominalLimit,
	}, nil
}

// Outstanding sums used credit across all accounts.
func (l *Ledger) Outstanding(ctx context.Context) (domain.Money, error) {
	accounts, err := l.store.ListCreditAccounts(ctx)
	if err != nil {
		return 0, err
	}
	var total domain.Money
	for _, a := range accounts {
		total += a.Used
	}
	return total, nil
}
