package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"

	"github.com/joao-fontenele/sipasera/internal/domain"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{fmt.Errorf("checkout: %w", domain.ErrInsufficientCredit), "rejected"},
		{&domain.BackendError{Op: "insert order", Err: errors.New("connection reset")}, "error"},
	}
	for _, tt := range tests {
		if got := Outcome(tt.err); got != tt.want {
			t.Errorf("Outcome(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestEnd(t *testing.T) {
	ctx, span := otel.Tracer("test").Start(context.Background(), "op")
	End(ctx, span, Counter("test", "test.ops", "ops"), domain.ErrNotFound)
	if span.IsRecording() {
		t.Error("expected span to be ended")
	}
}

func TestWithHTTPRoute(t *testing.T) {
	var called bool
	mux := http.NewServeMux()
	mux.HandleFunc("GET /orders/{id}", WithHTTPRoute(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/ord_1", nil))
	if !called {
		t.Error("expected handler to be called")
	}
}

func TestSpanName(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/orders/ord_1/payments", nil)
	if got := spanName("api", r); got != "POST /orders/ord_1/payments" {
		t.Errorf("unexpected unrouted span name %q", got)
	}

	r.Pattern = "POST /orders/{id}/payments"
	if got := spanName("api", r); got != r.Pattern {
		t.Errorf("expected pattern as span name, got %q", got)
	}
}
