// Package worker turns domain events from the event bus into customer
// notifications.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joao-fontenele/sipasera/internal/domain"
	"github.com/joao-fontenele/sipasera/internal/httpx"
	"github.com/joao-fontenele/sipasera/internal/idempotency"
	"github.com/joao-fontenele/sipasera/internal/notify"
)

const (
	dedupeScope = "event"
	dedupeOwner = "notification-worker"
)

type NotificationHandler struct {
	notifier notify.Notifier
	seen     idempotency.Store
	logger   *slog.Logger
}

// NewNotificationHandler builds the handler. seen dedupes redelivered
// events by id and may be nil.
func NewNotificationHandler(notifier notify.Notifier, seen idempotency.Store, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifier: notifier,
		seen:     seen,
		logger:   logger,
	}
}

// Handle matches messaging.HandlerFunc. Malformed and unknown events are
// logged and skipped; only a failed delivery returns an error.
func (h *NotificationHandler) Handle(ctx context.Context, eventType string, payload []byte) error {
	var env domain.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		h.logger.Error("failed to decode event envelope", "error", err, "event_type", eventType)
		return nil
	}

	msg, ok, err := messageFor(env)
	if err != nil {
		h.logger.Error("failed to decode event payload", "error", err, "event_id", env.EventID, "event_type", env.EventType)
		return nil
	}
	if !ok {
		return nil
	}

	if h.seen != nil {
		done, err := h.seen.Begin(ctx, dedupeScope, dedupeOwner, env.EventID)
		if errors.Is(err, domain.ErrDuplicateRequest) || (err == nil && done != "") {
			h.logger.Info("skipping duplicate event", "event_id", env.EventID, "event_type", env.EventType)
			return nil
		}
		if err != nil {
			return fmt.Errorf("claim event %s: %w", env.EventID, err)
		}
	}

	if err := h.notifier.Notify(ctx, msg); err != nil {
		h.release(ctx, env.EventID)
		return fmt.Errorf("notify user %s of %s: %w", msg.UserID, env.EventType, err)
	}

	if h.seen != nil {
		if err := h.seen.Complete(ctx, dedupeScope, dedupeOwner, env.EventID, string(env.EventType)); err != nil {
			h.logger.Error("failed to record delivered event", "error", err, "event_id", env.EventID)
		}
	}

	h.logger.Info("event processed", "event_id", env.EventID, "event_type", env.EventType, "user_id", msg.UserID)
	return nil
}

func (h *NotificationHandler) release(ctx context.Context, eventID string) {
	if h.seen == nil {
		return
	}
	if err := h.seen.Release(ctx, dedupeScope, dedupeOwner, eventID); err != nil {
		h.logger.Error("failed to release event claim", "error", err, "event_id", eventID)
	}
}

// messageFor returns false for events that do not notify anyone.
func messageFor(env domain.Envelope) (notify.Message, bool, error) {
	switch env.EventType {
	case domain.EventApplicationResolved:
		var e domain.ApplicationEvent
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return notify.Message{}, false, err
		}
		switch e.Status {
		case domain.ApplicationApproved:
			return notify.Message{
				UserID:   e.OwnerID,
				Text:     fmt.Sprintf("Your paylater limit increase of %s was approved", e.RequestedLimit),
				Severity: httpx.SeveritySuccess,
			}, true, nil
		case domain.ApplicationRejected:
			return notify.Message{
				UserID:   e.OwnerID,
				Text:     fmt.Sprintf("Your paylater limit increase of %s was rejected", e.RequestedLimit),
				Severity: httpx.SeverityWarning,
			}, true, nil
		}

	case domain.EventOrderCreated:
		var e domain.OrderCreatedEvent
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return notify.Message{}, false, err
		}
		if e.PaymentMethod != domain.MethodPaylater || e.DueDate == nil {
			return notify.Message{}, false, nil
		}
		return notify.Message{
			UserID:   e.OwnerID,
			Text:     fmt.Sprintf("Order %s placed with paylater. %s is due on %s", e.OrderID, e.Total, e.DueDate.Format("2 Jan 2006")),
			Severity: httpx.SeverityInfo,
		}, true, nil

	case domain.EventPaymentRecorded:
		var e domain.PaymentRecordedEvent
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return notify.Message{}, false, err
		}
		// The settled event carries the final message.
		if e.Settled {
			return notify.Message{}, false, nil
		}
		return notify.Message{
			UserID:   e.OwnerID,
			Text:     fmt.Sprintf("Payment of %s received for order %s. Remaining balance %s", e.Amount, e.OrderID, e.Remaining),
			Severity: httpx.SeveritySuccess,
		}, true, nil

	case domain.EventOrderSettled:
		var e domain.OrderSettledEvent
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return notify.Message{}, false, err
		}
		return notify.Message{
			UserID:   e.OwnerID,
			Text:     fmt.Sprintf("Order %s is fully paid. Thank you!", e.OrderID),
			Severity: httpx.SeveritySuccess,
		}, true, nil
	}

	return notify.Message{}, false, nil
}
