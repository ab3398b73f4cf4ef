package credit

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/joao-fontenele/sipasera/internal/domain"
	"github.com/joao-fontenele/sipasera/internal/httpx"
)

func TestHandler_HandleSummary(t *testing.T) {
	l, st := newLedger(t)
	st.PutCreditAccount(domain.CreditAccount{OwnerID: "usr_budi", Limit: 5_000_000, Used: 1_500_000})
	h := NewHandler(l, slog.New(slog.NewTextHandler(io.Discard, nil)))

	get := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/credit", nil)
		req.Header.Set(httpx.UserHeader, user)
		rec := httptest.NewRecorder()
		h.HandleSummary(rec, req)
		return rec
	}

	t.Run("summary", func(t *testing.T) {
		rec := get("usr_budi")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var s Summary
		if err := json.NewDecoder(rec.Body).Decode(&s); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if s.Available != 3_500_000 || !s.Eligible {
			t.Errorf("unexpected summary %+v", s)
		}
	})

	t.Run("no account", func(t *testing.T) {
		if rec := get("usr_siti"); rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected 422, got %d", rec.Code)
		}
	})
}
