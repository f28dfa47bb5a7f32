package claim_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/mwork/rewards-api/internal/domain/claim"
	"github.com/mwork/rewards-api/internal/middleware"
)

func passthrough(next http.Handler) http.Handler { return next }

func adminRouter(f *fixture) http.Handler {
	h := claim.NewHandler(f.engine, func(ctx context.Context) int {
		n, _ := f.engine.SweepMaturity(ctx, f.clock.Now())
		return n
	})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithIdentity(req.Context(), "admin-1", "admin")))
		})
	})
	r.Mount("/", h.AdminRoutes(passthrough, passthrough))
	return r
}

func TestRejectWithEmptyBody(t *testing.T) {
	f := newFixture(t)
	c := f.submit(t, "u1", "A1", "10", "standard")

	rr := httptest.NewRecorder()
	adminRouter(f).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/"+c.ID.String()+"/reject", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	got, err := f.engine.Get(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != claim.StatusRejected || got.ReviewerID == nil || *got.ReviewerID != "admin-1" {
		t.Fatalf("claim after reject: %+v", got)
	}
}

func TestReviewRejectsBadID(t *testing.T) {
	f := newFixture(t)

	rr := httptest.NewRecorder()
	adminRouter(f).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/not-a-uuid/approve", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestReviewMalformedBody(t *testing.T) {
	f := newFixture(t)
	c := f.submit(t, "u1", "A1", "10", "standard")

	rr := httptest.NewRecorder()
	adminRouter(f).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/"+c.ID.String()+"/approve", strings.NewReader("{")))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestSweepEndpoint(t *testing.T) {
	f := newFixture(t)
	c := f.submit(t, "u1", "B1", "1", "bill-pay")
	if _, err := f.engine.Approve(context.Background(), c.ID, "admin-1", ""); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	f.clock.Set(t0.AddDate(0, 0, 3))

	rr := httptest.NewRecorder()
	adminRouter(f).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/sweep", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var body struct {
		Data claim.SweepResponse `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Matured != 1 {
		t.Fatalf("matured = %d", body.Data.Matured)
	}
}
