package catalog

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/joao-fontenele/sipasera/internal/domain"
	"github.com/joao-fontenele/sipasera/internal/store/memory"
)

func newHandler() *Handler {
	st := memory.New()
	st.PutProduct(domain.Product{ID: "prd_beras", Name: "Beras Premium 5kg", Category: "sembako", Price: 75_000, Stock: 10})
	st.PutProduct(domain.Product{ID: "prd_gula", Name: "Gula Pasir 1kg", Category: "sembako", Price: 17_000, Stock: 4})
	st.PutProduct(domain.Product{ID: "prd_teh", Name: "Teh Celup", Category: "minuman", Price: 8_500, Stock: 40})
	return NewHandler(st, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandler_HandleList(t *testing.T) {
	h := newHandler()

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"all", "", 3},
		{"by category", "?category=sembako", 2},
		{"by name", "?q=GULA", 1},
		{"no match", "?category=minuman&q=beras", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.HandleList(rec, httptest.NewRequest(http.MethodGet, "/products"+tt.query, nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			var products []domain.Product
			if err := json.NewDecoder(rec.Body).Decode(&products); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if len(products) != tt.want {
				t.Errorf("expected %d products, got %d", tt.want, len(products))
			}
		})
	}
}

func TestHandler_HandleGet(t *testing.T) {
	h := newHandler()

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/products/prd_gula", nil)
		req.SetPathValue("id", "prd_gula")
		rec := httptest.NewRecorder()
		h.HandleGet(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var p domain.Product
		if err := json.NewDecoder(rec.Body).Decode(&p); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if p.Price != 17_000 || p.Stock != 4 {
			t.Errorf("unexpected product %+v", p)
		}
	})

	t.Run("missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/products/prd_kopi", nil)
		req.SetPathValue("id", "prd_kopi")
		rec := httptest.NewRecorder()
		h.HandleGet(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}
