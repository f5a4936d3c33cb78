package wallet_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/eksporyuk/affiliate-api/internal/domain/wallet"
	"github.com/eksporyuk/affiliate-api/internal/middleware"
	"github.com/eksporyuk/affiliate-api/internal/pkg/jwt"
)

type walletAPIResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Balance        int64 `json:"balance"`
		BalancePending int64 `json:"balance_pending"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestWalletEndpointsIntegration(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(db)

	userID := uuid.New()
	repo := wallet.NewRepository(db)
	svc := wallet.NewService(repo, nil)
	h := wallet.NewHandler(svc)

	jwtSvc := jwt.NewService("wallet-integration-secret", time.Hour)
	authMW := middleware.Auth(jwtSvc)
	adminMW := func(next http.Handler) http.Handler {
		return authMW(middleware.RequireAdmin()(next))
	}

	r := chi.NewRouter()
	r.Mount("/wallets", h.Routes(adminMW))

	adminToken, err := jwtSvc.GenerateAccessToken(uuid.New(), "admin")
	if err != nil {
		t.Fatalf("token gen: %v", err)
	}
	userToken, err := jwtSvc.GenerateAccessToken(userID, "affiliate")
	if err != nil {
		t.Fatalf("token gen: %v", err)
	}

	creditWallet(t, repo, userID, 200000, wallet.DestinationPending, "integration-1")

	t.Run("get wallet shows pending credit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/wallets/"+userID.String(), nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		var resp walletAPIResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Data.BalancePending != 200000 {
			t.Errorf("balance_pending = %d, want 200000", resp.Data.BalancePending)
		}
	})

	t.Run("pending release requires admin", func(t *testing.T) {
		body, _ := json.Marshal(map[string]interface{}{
			"amount":       200000,
			"reference_id": "approve-int-1",
		})
		req := httptest.NewRequest(http.MethodPost, "/wallets/"+userID.String()+"/pending/release", bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+userToken)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403 for non-admin", w.Code)
		}
	})

	t.Run("admin releases pending", func(t *testing.T) {
		body, _ := json.Marshal(map[string]interface{}{
			"amount":       200000,
			"reference_id": "approve-int-2",
		})
		req := httptest.NewRequest(http.MethodPost, "/wallets/"+userID.String()+"/pending/release", bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+adminToken)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want 204: %s", w.Code, w.Body.String())
		}

		getReq := httptest.NewRequest(http.MethodGet, "/wallets/"+userID.String(), nil)
		getW := httptest.NewRecorder()
		r.ServeHTTP(getW, getReq)

		var resp walletAPIResponse
		if err := json.Unmarshal(getW.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Data.Balance != 200000 || resp.Data.BalancePending != 0 {
			t.Errorf("balance=%d pending=%d; want 200000 and 0", resp.Data.Balance, resp.Data.BalancePending)
		}
	})

	t.Run("payout from released balance", func(t *testing.T) {
		body, _ := json.Marshal(map[string]interface{}{
			"amount": 150000,
			"method": "bank_transfer",
		})
		req := httptest.NewRequest(http.MethodPost, "/wallets/"+userID.String()+"/payouts", bytes.NewReader(body))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
		}
	})

	t.Run("payout exceeding balance conflicts", func(t *testing.T) {
		body, _ := json.Marshal(map[string]interface{}{
			"amount": 150000,
			"method": "bank_transfer",
		})
		req := httptest.NewRequest(http.MethodPost, "/wallets/"+userID.String()+"/payouts", bytes.NewReader(body))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409: %s", w.Code, w.Body.String())
		}
		var resp walletAPIResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Error == nil || resp.Error.Code != "CONFLICT" {
			t.Errorf("error = %+v, want CONFLICT", resp.Error)
		}
	})
}
