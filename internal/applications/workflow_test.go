package applications

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/joao-fontenele/sipasera/internal/credit"
	"github.com/joao-fontenele/sipasera/internal/domain"
	"github.com/joao-fontenele/sipasera/internal/store/memory"
)

func setup(t *testing.T) (*Workflow, *memory.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := memory.New()
	st.PutUser(domain.User{ID: "usr_admin", Name: "Admin", Role: domain.RoleAdmin})
	st.PutUser(domain.User{ID: "usr_budi", Name: "Budi", Role: domain.RoleCustomer})
	return NewWorkflow(st, credit.NewLedger(st, 0, logger), logger), st
}

func TestWorkflow_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a pending application", func(t *testing.T) {
		w, st := setup(t)

		app, err := w.Submit(ctx, "usr_budi", 2_000_000, "modal warung")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if app.Status != domain.ApplicationPending || app.Notified {
			t.Errorf("unexpected application %+v", app)
		}

		events, _ := st.PendingOutboxEvents(ctx, 10)
		if len(events) != 1 || events[0].Type != domain.EventApplicationSubmitted {
			t.Errorf("expected one submitted event, got %+v", events)
		}
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		w, _ := setup(t)
		for _, amount := range []domain.Money{0, -5} {
			if _, err := w.Submit(ctx, "usr_budi", amount, ""); !errors.Is(err, domain.ErrInvalidAmount) {
				t.Errorf("amount %d: expected ErrInvalidAmount, got %v", amount, err)
			}
		}
	})
}

func TestWorkflow_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("approval raises the limit of an existing account", func(t *testing.T) {
		w, st := setup(t)
		st.PutCreditAccount(domain.CreditAccount{OwnerID: "usr_budi", Limit: 0, Used: 0})
		app, _ := w.Submit(ctx, "usr_budi", 1_000_000, "")

		res, err := w.Resolve(ctx, "usr_admin", app.ID, domain.ApplicationApproved)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Application.Status != domain.ApplicationApproved || res.Application.ApprovedAt == nil {
			t.Errorf("expected approved with approved_at, got %+v", res.Application)
		}
		if res.Application.Notified {
			t.Error("expected notified=false after resolution")
		}

		account, _ := st.GetCreditAccount(ctx, "usr_budi")
		if account.Limit != 1_000_000 || account.Used != 0 {
			t.Errorf("expected limit 1000000 used 0, got %+v", account)
		}
	})

	t.Run("approval opens an account when absent", func(t *testing.T) {
		w, st := setup(t)
		app, _ := w.Submit(ctx, "usr_budi", 750_000, "")

		if _, err := w.Resolve(ctx, "usr_admin", app.ID, domain.ApplicationApproved); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		account, _ := st.GetCreditAccount(ctx, "usr_budi")
		if account == nil || account.Limit != 750_000 {
			t.Errorf("expected new account with limit 750000, got %+v", account)
		}
	})

	t.Run("rejection leaves the limit alone", func(t *testing.T) {
		w, st := setup(t)
		st.PutCreditAccount(domain.CreditAccount{OwnerID: "usr_budi", Limit: 100_000})
		app, _ := w.Submit(ctx, "usr_budi", 1_000_000, "")

		res, err := w.Resolve(ctx, "usr_admin", app.ID, domain.ApplicationRejected)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Application.ApprovedAt != nil {
			t.Error("approved_at must stay empty on rejection")
		}

		account, _ := st.GetCreditAccount(ctx, "usr_budi")
		if account.Limit != 100_000 {
			t.Errorf("expected limit unchanged, got %d", account.Limit)
		}
	})

	t.Run("resolves at most once", func(t *testing.T) {
		w, st := setup(t)
		app, _ := w.Submit(ctx, "usr_budi", 1_000_000, "")

		if _, err := w.Resolve(ctx, "usr_admin", app.ID, domain.ApplicationApproved); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, err := w.Resolve(ctx, "usr_admin", app.ID, domain.ApplicationApproved)
		if !errors.Is(err, domain.ErrInvalidState) {
			t.Fatalf("expected ErrInvalidState, got %v", err)
		}

		account, _ := st.GetCreditAccount(ctx, "usr_budi")
		if account.Limit != 1_000_000 {
			t.Errorf("limit must be raised only once, got %d", account.Limit)
		}
	})

	t.Run("customers cannot resolve", func(t *testing.T) {
		w, _ := setup(t)
		app, _ := w.Submit(ctx, "usr_budi", 1_000_000, "")

		if _, err := w.Resolve(ctx, "usr_budi", app.ID, domain.ApplicationApproved); !errors.Is(err, domain.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("unknown application", func(t *testing.T) {
		w, _ := setup(t)
		if _, err := w.Resolve(ctx, "usr_admin", "capp_missing", domain.ApplicationApproved); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("failed limit increase rolls back the resolution", func(t *testing.T) {
		w, st := setup(t)
		app, _ := w.Submit(ctx, "usr_budi", 1_000_000, "")
		st.FailOn("increase credit limit", errors.New("connection reset"))

		if _, err := w.Resolve(ctx, "usr_admin", app.ID, domain.ApplicationApproved); err == nil {
			t.Fatal("expected error")
		}

		got, _ := st.GetApplication(ctx, app.ID)
		if got.Status != domain.ApplicationPending {
			t.Errorf("expected application still pending, got %s", got.Status)
		}
	})
}

func TestWorkflow_Acknowledge(t *testing.T) {
	ctx := context.Background()
	w, _ := setup(t)
	app, _ := w.Submit(ctx, "usr_budi", 1_000_000, "")

	if _, err := w.Acknowledge(ctx, "usr_budi", app.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("pending applications cannot be acknowledged, got %v", err)
	}

	if _, err := w.Resolve(ctx, "usr_admin", app.ID, domain.ApplicationApproved); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	notices, err := w.Notices(ctx, "usr_budi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notices) != 1 {
		t.Fatalf("expected one notice, got %d", len(notices))
	}

	for i := 0; i < 2; i++ {
		got, err := w.Acknowledge(ctx, "usr_budi", app.ID)
		if err != nil {
			t.Fatalf("acknowledge #%d: unexpected error: %v", i+1, err)
		}
		if !got.Notified {
			t.Errorf("acknowledge #%d: expected notified=true", i+1)
		}
	}

	notices, _ = w.Notices(ctx, "usr_budi")
	if len(notices) != 0 {
		t.Errorf("expected no notices after acknowledge, got %d", len(notices))
	}

	if _, err := w.Acknowledge(ctx, "usr_admin", app.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("only the owner may acknowledge, got %v", err)
	}
}
