// Package applications runs customer requests for a higher paylater limit
// through admin review.
package applications

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/sipasera/internal/credit"
	"github.com/joao-fontenele/sipasera/internal/domain"
	"github.com/joao-fontenele/sipasera/internal/id"
	"github.com/joao-fontenele/sipasera/internal/store"
	"github.com/joao-fontenele/sipasera/internal/telemetry"
)

var tracer = otel.Tracer("applications")

type Workflow struct {
	store       store.Store
	credit      *credit.Ledger
	logger      *slog.Logger
	now         func() time.Time
	resolutions metric.Int64Counter
}

func NewWorkflow(st store.Store, ledger *credit.Ledger, logger *slog.Logger) *Workflow {
	return &Workflow{
		store:       st,
		credit:      ledger,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		resolutions: telemetry.Counter("applications", "credit_applications.resolved", "Credit applications resolved by admins"),
	}
}

func (w *Workflow) Submit(ctx context.Context, ownerID string, requested domain.Money, reason string) (*domain.CreditApplication, error) {
	if !requested.Positive() {
		return nil, domain.ErrInvalidAmount
	}

	owner, err := w.store.GetUser(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, ownerID)
	}

	app := &domain.CreditApplication{
		ID:             id.NewApplicationID(),
		OwnerID:        ownerID,
		RequestedLimit: requested,
		Reason:         strings.TrimSpace(reason),
		Status:         domain.ApplicationPending,
		CreatedAt:      w.now(),
	}

	err = w.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.CreateApplication(ctx, app); err != nil {
			return err
		}
		return store.AddEvent(ctx, tx, domain.EventApplicationSubmitted, app.ID, applicationEvent(app), app.CreatedAt)
	})
	if err != nil {
		return nil, err
	}

	w.logger.Info("credit application submitted", "application_id", app.ID, "owner_id", ownerID, "requested_limit", int64(requested))
	return app, nil
}

type Resolution struct {
	Application domain.CreditApplication `json:"application"`
	Credit      *domain.CreditAccount    `json:"credit,omitempty"`
}

// Resolve approves or rejects a pending application. Only admins may call it,
// and an application is resolved at most once.
func (w *Workflow) Resolve(ctx context.Context, actorID, applicationID string, decision domain.ApplicationStatus) (res *Resolution, err error) {
	ctx, span := tracer.Start(ctx, "resolve credit application")
	defer func() {
		telemetry.End(ctx, span, w.resolutions, err, attribute.String("decision", string(decision)))
	}()

	actor, err := w.store.GetUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if !decision.Resolved() {
		return nil, fmt.Errorf("%w: decision must be approved or rejected, got %q", domain.ErrInvalidState, decision)
	}

	err = w.store.WithTx(ctx, func(tx store.Store) error {
		app, err := tx.ResolveApplication(ctx, applicationID, decision, w.now())
		if err != nil {
			return err
		}
		res = &Resolution{Application: *app}

		if decision == domain.ApplicationApproved {
			account, err := w.credit.In(tx).IncreaseLimit(ctx, app.OwnerID, app.RequestedLimit)
			if err != nil {
				return err
			}
			res.Credit = account
		}

		return store.AddEvent(ctx, tx, domain.EventApplicationResolved, app.ID, applicationEvent(app), *app.ResolvedAt)
	})
	if err != nil {
		return nil, err
	}

	w.logger.Info("credit application resolved",
		"application_id", applicationID,
		"owner_id", res.Application.OwnerID,
		"status", res.Application.Status,
		"actor_id", actorID,
	)
	return res, nil
}

// Acknowledge records that the owner has seen the outcome. Repeating it is a
// no-op.
func (w *Workflow) Acknowledge(ctx context.Context, ownerID, applicationID string) (*domain.CreditApplication, error) {
	app, err := w.store.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app == nil || app.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	if !app.Status.Resolved() {
		return nil, fmt.Errorf("%w: application %s is still pending", domain.ErrInvalidState, app.ID)
	}
	if app.Notified {
		return app, nil
	}

	if err := w.store.AcknowledgeApplication(ctx, applicationID); err != nil {
		return nil, err
	}
	app.Notified = true

	w.logger.Info("credit application acknowledged", "application_id", applicationID, "owner_id", ownerID)
	return app, nil
}

// Notices returns the owner's resolved applications that have not been
// acknowledged yet.
func (w *Workflow) Notices(ctx context.Context, ownerID string) ([]domain.CreditApplication, error) {
	return w.store.ListApplications(ctx, store.ApplicationFilter{OwnerID: ownerID, Unacknowledged: true})
}

func (w *Workflow) List(ctx context.Context, filter store.ApplicationFilter) ([]domain.CreditApplication, error) {
	return w.store.ListApplications(ctx, filter)
}

func (w *Workflow) Get(ctx context.Context, applicationID string) (*domain.CreditApplication, error) {
	return w.store.GetApplication(ctx, applicationID)
}

func applicationEvent(app *domain.CreditApplication) domain.ApplicationEvent {
	at := app.CreatedAt
	if app.ResolvedAt != nil {
		at = *app.ResolvedAt
	}
	return domain.ApplicationEvent{
		ApplicationID:  app.ID,
		OwnerID:        app.OwnerID,
		RequestedLimit: app.RequestedLimit,
		Status:         app.Status,
		Timestamp:      at,
	}
}
