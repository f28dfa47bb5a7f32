package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/mwork/rewards-api/internal/config"
	"github.com/mwork/rewards-api/internal/domain/claim"
	"github.com/mwork/rewards-api/internal/domain/wallet"
	"github.com/mwork/rewards-api/internal/pkg/clock"
	"github.com/mwork/rewards-api/internal/pkg/jwt"
	"github.com/mwork/rewards-api/internal/storage/boltstore"
)

type testServer struct {
	handler http.Handler
	jwt     *jwt.Service
	ledger  *wallet.Ledger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	clk := clock.NewManual(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	store, err := boltstore.Open(filepath.Join(t.TempDir(), "api.db"), clk)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ledger := wallet.NewLedger(store.Wallets(), clk)
	engine := claim.NewEngine(store.Claims(), ledger, claim.DefaultRules(), clk, nil)
	sweep := func(ctx context.Context) int {
		n, _ := engine.SweepMaturity(ctx, clk.Now())
		return n
	}

	jwtSvc := jwt.NewService("test-secret", time.Hour)
	cfg := &config.Config{AllowedOrigins: []string{"http://localhost:3000"}}
	r := newRouter(cfg, jwtSvc, wallet.NewHandler(ledger, wallet.NewPercentPolicy(60)), claim.NewHandler(engine, sweep))

	return &testServer{handler: r, jwt: jwtSvc, ledger: ledger}
}

func (s *testServer) do(t *testing.T, method, path, userID, role string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		token, err := s.jwt.GenerateAccessToken(userID, role)
		if err != nil {
			t.Fatalf("token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return env
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	if rr := s.do(t, http.MethodGet, "/health", "", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestWalletRequiresAuth(t *testing.T) {
	s := newTestServer(t)
	if rr := s.do(t, http.MethodGet, "/api/v1/wallet/balance", "", "", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	s := newTestServer(t)
	if rr := s.do(t, http.MethodGet, "/api/admin/claims/pending", "u1", jwt.RoleUser, nil); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	if rr := s.do(t, http.MethodGet, "/api/admin/claims/pending", "admin-1", jwt.RoleAdmin, nil); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestSpendEndpointEnforcesLimit(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	if _, err := s.ledger.Credit(ctx, "u1", 100, wallet.SourceSpin, "seed-1", nil); err != nil {
		t.Fatalf("seed credit: %v", err)
	}

	rr := s.do(t, http.MethodPost, "/api/v1/wallet/spend", "u1", jwt.RoleUser, wallet.SpendRequest{Amount: 61, ReferenceID: "s1"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("spend 61: expected 422, got %d", rr.Code)
	}
	if env := decode(t, rr); env.Error == nil || env.Error.Code != "SPEND_LIMIT_EXCEEDED" {
		t.Fatalf("spend 61: unexpected body %s", rr.Body.String())
	}

	rr = s.do(t, http.MethodPost, "/api/v1/wallet/spend", "u1", jwt.RoleUser, wallet.SpendRequest{Amount: 60, ReferenceID: "s2"})
	if rr.Code != http.StatusOK {
		t.Fatalf("spend 60: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp wallet.TransactionResponse
	if err := json.Unmarshal(decode(t, rr).Data, &resp); err != nil {
		t.Fatalf("decode spend: %v", err)
	}
	if resp.Balance.UnlockedBalance != 40 || resp.Balance.TotalSpent != 60 {
		t.Fatalf("balance after spend = %+v", resp.Balance)
	}

	// Retrying with the same reference returns the original debit.
	rr = s.do(t, http.MethodPost, "/api/v1/wallet/spend", "u1", jwt.RoleUser, wallet.SpendRequest{Amount: 60, ReferenceID: "s2"})
	if rr.Code != http.StatusOK {
		t.Fatalf("replay: expected 200, got %d", rr.Code)
	}
	w, _ := s.ledger.GetBalance(ctx, "u1")
	if w.UnlockedBalance != 40 {
		t.Fatalf("replay changed balance: %d", w.UnlockedBalance)
	}
}

func TestClaimSubmitAndApprove(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodPost, "/api/v1/claims", "u1", jwt.RoleUser, claim.SubmitRequest{
		OrderID:     "A1",
		OrderAmount: "500.00",
		Category:    "standard",
		EvidenceRef: "claims/pending/u1/A1.png",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("submit: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var c claim.Claim
	if err := json.Unmarshal(decode(t, rr).Data, &c); err != nil {
		t.Fatalf("decode claim: %v", err)
	}
	if c.RewardCoins != 500 || c.MaturityDays != 60 {
		t.Fatalf("claim = %+v", c)
	}

	rr = s.do(t, http.MethodPost, "/api/v1/claims", "u2", jwt.RoleUser, claim.SubmitRequest{
		OrderID:     "A1",
		OrderAmount: "10",
		Category:    "standard",
		EvidenceRef: "claims/pending/u2/A1.png",
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate order: expected 409, got %d", rr.Code)
	}

	rr = s.do(t, http.MethodPost, "/api/admin/claims/"+c.ID.String()+"/approve", "admin-1", jwt.RoleAdmin, claim.ReviewRequest{Note: "receipt ok"})
	if rr.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = s.do(t, http.MethodPost, "/api/admin/claims/"+c.ID.String()+"/approve", "admin-1", jwt.RoleAdmin, nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("second approve: expected 409, got %d", rr.Code)
	}

	rr = s.do(t, http.MethodGet, "/api/v1/wallet/balance", "u1", jwt.RoleUser, nil)
	var bal wallet.BalanceResponse
	if err := json.Unmarshal(decode(t, rr).Data, &bal); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	if bal.LockedBalance != 500 || bal.UnlockedBalance != 0 {
		t.Fatalf("balance after approve = %+v", bal)
	}
}

func TestClaimSubmitValidation(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodPost, "/api/v1/claims", "u1", jwt.RoleUser, claim.SubmitRequest{
		OrderID:     "B1",
		OrderAmount: "abc",
		Category:    "standard",
		EvidenceRef: "x",
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad amount: expected 422, got %d", rr.Code)
	}

	rr = s.do(t, http.MethodPost, "/api/v1/claims", "u1", jwt.RoleUser, claim.SubmitRequest{
		OrderID:     "B2",
		OrderAmount: "10",
		Category:    "lottery",
		EvidenceRef: "x",
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown category: expected 422, got %d", rr.Code)
	}

	for _, amount := range []string{"10000000000000000000", "12.345"} {
		rr = s.do(t, http.MethodPost, "/api/v1/claims", "u1", jwt.RoleUser, claim.SubmitRequest{
			OrderID:     "B3",
			OrderAmount: amount,
			Category:    "standard",
			EvidenceRef: "x",
		})
		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("amount %s: expected 422, got %d", amount, rr.Code)
		}
	}
}

func TestSpendReferenceOwnedByAnotherUser(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	for _, u := range []string{"alice", "bob"} {
		if _, err := s.ledger.Credit(ctx, u, 100, wallet.SourceSpin, "seed-"+u, nil); err != nil {
			t.Fatalf("seed %s: %v", u, err)
		}
	}

	rr := s.do(t, http.MethodPost, "/api/v1/wallet/spend", "alice", jwt.RoleUser, wallet.SpendRequest{Amount: 10, ReferenceID: "order-42"})
	if rr.Code != http.StatusOK {
		t.Fatalf("alice spend: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = s.do(t, http.MethodPost, "/api/v1/wallet/spend", "bob", jwt.RoleUser, wallet.SpendRequest{Amount: 10, ReferenceID: "order-42"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("bob spend: expected 409, got %d: %s", rr.Code, rr.Body.String())
	}
	env := decode(t, rr)
	if env.Error == nil || env.Error.Code != "REFERENCE_CONFLICT" || len(env.Data) != 0 {
		t.Fatalf("bob spend: unexpected body %s", rr.Body.String())
	}
	if w, _ := s.ledger.GetBalance(ctx, "bob"); w.UnlockedBalance != 100 {
		t.Fatalf("bob balance changed: %d", w.UnlockedBalance)
	}
}

func TestAdminAudit(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	if _, err := s.ledger.CreditLocked(ctx, "u5", 300, wallet.SourceAffiliate, "claim_approved_x", nil); err != nil {
		t.Fatalf("credit locked: %v", err)
	}
	if _, err := s.ledger.ReleaseLocked(ctx, "u5", 300, "claim_matured_x", nil); err != nil {
		t.Fatalf("release: %v", err)
	}

	rr := s.do(t, http.MethodGet, "/api/admin/wallets/u5/audit", "admin-1", jwt.RoleAdmin, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("audit: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var report wallet.AuditReport
	if err := json.Unmarshal(decode(t, rr).Data, &report); err != nil {
		t.Fatalf("decode audit: %v", err)
	}
	if !report.Consistent || report.LedgerTotal != 300 || report.Transfers != 300 {
		t.Fatalf("audit = %+v", report)
	}
}

func TestAdminAdjustAndFreeze(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodPost, "/api/admin/wallets/u9/adjust", "admin-1", jwt.RoleAdmin, wallet.AdjustRequest{
		Amount: 25, Direction: "CREDIT", Reason: "support goodwill", ReferenceID: "ticket-7",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("adjust: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = s.do(t, http.MethodPost, "/api/admin/wallets/u9/status", "admin-1", jwt.RoleAdmin, wallet.StatusRequest{Status: "frozen"})
	if rr.Code != http.StatusOK {
		t.Fatalf("freeze: expected 200, got %d", rr.Code)
	}

	rr = s.do(t, http.MethodPost, "/api/v1/wallet/spend", "u9", jwt.RoleUser, wallet.SpendRequest{Amount: 1, ReferenceID: "s-frozen"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("spend on frozen wallet: expected 409, got %d", rr.Code)
	}

	rr = s.do(t, http.MethodGet, "/api/admin/wallets/u9", "admin-1", jwt.RoleAdmin, nil)
	var bal wallet.BalanceResponse
	if err := json.Unmarshal(decode(t, rr).Data, &bal); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	if bal.UnlockedBalance != 25 || bal.Status != wallet.StatusFrozen {
		t.Fatalf("admin view = %+v", bal)
	}
}
