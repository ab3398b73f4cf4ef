// Package users registers customers. Every new customer starts with a
// nominal paylater account that an admin can later raise.
package users

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/joao-fontenele/sipasera/internal/credit"
	"github.com/joao-fontenele/sipasera/internal/domain"
	"github.com/joao-fontenele/sipasera/internal/id"
	"github.com/joao-fontenele/sipasera/internal/store"
)

type Service struct {
	store  store.Store
	credit *credit.Ledger
	logger *slog.Logger
	now    func() time.Time
}

func NewService(st store.Store, creditLedger *credit.Ledger, logger *slog.Logger) *Service {
	return &Service{
		store:  st,
		credit: creditLedger,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type Registration struct {
	User   domain.User           `json:"user"`
	Credit *domain.CreditAccount `json:"credit"`
}

func (s *Service) Register(ctx context.Context, name, email string) (*Registration, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("%w: email %q", domain.ErrInvalidInput, email)
	}

	reg := &Registration{
		User: domain.User{
			ID:        id.NewUserID(),
			Name:      name,
			Email:     strings.ToLower(addr.Address),
			Role:      domain.RoleCustomer,
			CreatedAt: s.now(),
		},
	}

	err = s.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.CreateUser(ctx, &reg.User); err != nil {
			return err
		}
		account, err := s.credit.In(tx).OpenAccount(ctx, reg.User.ID)
		if err != nil {
			return err
		}
		reg.Credit = account
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", reg.User.ID, "credit_limit", int64(reg.Credit.Limit))
	return reg, nil
}

func (s *Service) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.store.GetUser(ctx, userID)
}
