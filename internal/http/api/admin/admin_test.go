package admin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/giftar/giftpin/internal/binding"
	"github.com/giftar/giftpin/internal/config"
	"github.com/giftar/giftpin/internal/dbtest"
	"github.com/giftar/giftpin/internal/issuance"
	"github.com/giftar/giftpin/internal/ledger"
	"github.com/giftar/giftpin/internal/models"
	"github.com/giftar/giftpin/internal/override"
	"github.com/giftar/giftpin/internal/permissions"
	"github.com/giftar/giftpin/internal/pins"
	"github.com/giftar/giftpin/internal/security"
)

const testSecret = "admin-test-secret"

type testServer struct {
	conn        *gorm.DB
	router      *gin.Engine
	guard       *binding.Guard
	coordinator *issuance.Coordinator
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn := dbtest.Open(t)
	l, err := ledger.New(conn, 1)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	registry := pins.NewRegistry(conn, pins.Options{})
	guard := binding.NewGuard(conn)
	router := gin.New()
	jwtCfg := config.JWTConfig{Secret: testSecret, ShopTokenTTL: time.Hour, OperatorTokenTTL: time.Hour}
	RegisterAdminRoutes(router, conn, jwtCfg, override.NewService(conn, l, guard, registry))
	return testServer{
		conn:        conn,
		router:      router,
		guard:       guard,
		coordinator: issuance.NewCoordinator(conn, l, registry),
	}
}

func (s testServer) createOperator(t *testing.T, username string, super bool, granted ...string) models.Operator {
	t.Helper()
	operator := models.Operator{
		Username:        username,
		Password:        "unused",
		Active:          true,
		IsSuperOperator: super,
		Permissions:     permissions.EncodePermissions(granted),
	}
	if err := s.conn.Create(&operator).Error; err != nil {
		t.Fatalf("create operator: %v", err)
	}
	return operator
}

func (s testServer) token(t *testing.T, operator models.Operator) string {
	t.Helper()
	token, err := security.GenerateOperatorToken(testSecret, operator.ID, operator.Username, time.Hour)
	if err != nil {
		t.Fatalf("operator token: %v", err)
	}
	return token
}

func (s testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		payload = encoded
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	s.router.ServeHTTP(recorder, req)

	var decoded map[string]any
	if recorder.Body.Len() > 0 {
		if err := json.Unmarshal(recorder.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode %s %s response %q: %v", method, path, recorder.Body.String(), err)
		}
	}
	return recorder, decoded
}

func TestLoginIssuesOperatorToken(t *testing.T) {
	s := newTestServer(t)
	hash, err := security.HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	operator := models.Operator{Username: "root", Password: hash, Active: true, IsSuperOperator: true}
	if err := s.conn.Create(&operator).Error; err != nil {
		t.Fatalf("create operator: %v", err)
	}

	if recorder, _ := s.do(t, http.MethodPost, "/v0/admin/login", "", map[string]any{"username": "root", "password": "wrong-horse"}); recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", recorder.Code)
	}
	if recorder, _ := s.do(t, http.MethodPost, "/v0/admin/login", "", map[string]any{"username": "root"}); recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", recorder.Code)
	}

	recorder, body := s.do(t, http.MethodPost, "/v0/admin/login", "", map[string]any{"username": " root ", "password": "correct-horse"})
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %v", recorder.Code, body)
	}
	token, _ := body["token"].(string)
	claims, err := security.ParseOperatorToken(testSecret, token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.OperatorID != operator.ID {
		t.Fatalf("expected operator %d, got %d", operator.ID, claims.OperatorID)
	}

	if err := s.conn.Model(&models.Operator{}).Where("id = ?", operator.ID).Update("active", false).Error; err != nil {
		t.Fatalf("disable operator: %v", err)
	}
	if recorder, _ := s.do(t, http.MethodPost, "/v0/admin/login", "", map[string]any{"username": "root", "password": "correct-horse"}); recorder.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 for disabled operator, got %d", recorder.Code)
	}
	if recorder, _ := s.do(t, http.MethodGet, "/v0/admin/shops", token, nil); recorder.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 for disabled operator token, got %d", recorder.Code)
	}
}

func TestAdminRoutesRejectOtherTokens(t *testing.T) {
	s := newTestServer(t)
	shop := dbtest.CreateShop(t, s.conn, "corner", 0)
	shopToken, err := security.GenerateShopToken(testSecret, shop.ID, time.Hour)
	if err != nil {
		t.Fatalf("shop token: %v", err)
	}

	for _, token := range []string{"", "junk", shopToken} {
		if recorder, _ := s.do(t, http.MethodGet, "/v0/admin/shops", token, nil); recorder.Code != http.StatusUnauthorized {
			t.Fatalf("expected status 401 for token %q, got %d", token, recorder.Code)
		}
	}
}

func TestAdminRoutesEnforcePermissions(t *testing.T) {
	s := newTestServer(t)
	shop := dbtest.CreateShop(t, s.conn, "corner", 0)
	support := s.createOperator(t, "support", false, permissions.GiftsReset)
	root := s.createOperator(t, "root", true)
	creditPath := fmt.Sprintf("/v0/admin/shops/%d/credit", shop.ID)

	recorder, _ := s.do(t, http.MethodPost, creditPath, s.token(t, support), map[string]any{"amount": 3})
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", recorder.Code)
	}
	if got := dbtest.Balance(t, s.conn, shop.ID); got != 0 {
		t.Fatalf("expected balance untouched, got %d", got)
	}

	recorder, body := s.do(t, http.MethodPost, creditPath, s.token(t, root), map[string]any{"amount": 3})
	if recorder.Code != http.StatusOK || body["new_balance"] != float64(3) {
		t.Fatalf("expected new_balance 3, got %d: %v", recorder.Code, body)
	}
}

func TestAdminShopLifecycle(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, s.createOperator(t, "root", true))

	recorder, body := s.do(t, http.MethodPost, "/v0/admin/shops", token, map[string]any{"name": "Corner", "balance": 2})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %v", recorder.Code, body)
	}
	shop, _ := body["shop"].(map[string]any)
	shopID := uint64(shop["id"].(float64))
	if shop["balance"] != float64(2) {
		t.Fatalf("unexpected shop %v", shop)
	}

	cases := []struct {
		method string
		path   string
		body   any
		status int
	}{
		{http.MethodPost, "/v0/admin/shops", map[string]any{"name": " ", "balance": 1}, http.StatusBadRequest},
		{http.MethodPost, "/v0/admin/shops", map[string]any{"name": "Neg", "balance": -1}, http.StatusBadRequest},
		{http.MethodPost, fmt.Sprintf("/v0/admin/shops/%d/credit", shopID), map[string]any{"amount": 0}, http.StatusBadRequest},
		{http.MethodPost, "/v0/admin/shops/abc/credit", map[string]any{"amount": 1}, http.StatusBadRequest},
		{http.MethodPost, "/v0/admin/shops/9999/credit", map[string]any{"amount": 1}, http.StatusNotFound},
		{http.MethodPost, fmt.Sprintf("/v0/admin/shops/%d/block", shopID), nil, http.StatusOK},
		{http.MethodPost, fmt.Sprintf("/v0/admin/shops/%d/unblock", shopID), nil, http.StatusOK},
		{http.MethodPost, "/v0/admin/shops/9999/block", nil, http.StatusNotFound},
		{http.MethodGet, fmt.Sprintf("/v0/admin/shops/%d", shopID), nil, http.StatusOK},
		{http.MethodGet, "/v0/admin/shops", nil, http.StatusOK},
	}
	for _, tc := range cases {
		if recorder, body := s.do(t, tc.method, tc.path, token, tc.body); recorder.Code != tc.status {
			t.Fatalf("%s %s: expected status %d, got %d: %v", tc.method, tc.path, tc.status, recorder.Code, body)
		}
	}

	recorder, body = s.do(t, http.MethodPost, fmt.Sprintf("/v0/admin/shops/%d/token", shopID), token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %v", recorder.Code, body)
	}
	shopToken, _ := body["token"].(string)
	claims, err := security.ParseShopToken(testSecret, shopToken)
	if err != nil || claims.ShopID != shopID {
		t.Fatalf("unexpected shop token claims %+v (err %v)", claims, err)
	}
}

func TestAdminGiftOverrides(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, s.createOperator(t, "root", true))
	shop := dbtest.CreateShop(t, s.conn, "corner", 1)

	gift, err := s.coordinator.Create(t.Context(), shop.ID, issuance.Payload{RequestedPin: "GOLD1", ContentRef: "content/a"})
	if err != nil {
		t.Fatalf("create gift: %v", err)
	}
	if _, err := s.guard.Verify(t.Context(), "GOLD1", "D1"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	giftPath := fmt.Sprintf("/v0/admin/gifts/%d", gift.ID)

	if recorder, body := s.do(t, http.MethodPost, giftPath+"/reset-binding", token, nil); recorder.Code != http.StatusOK || body["success"] != true {
		t.Fatalf("expected reset success, got %d: %v", recorder.Code, body)
	}
	if _, err := s.guard.Verify(t.Context(), "GOLD1", "D2"); err != nil {
		t.Fatalf("verify after reset: %v", err)
	}

	recorder, body := s.do(t, http.MethodGet, giftPath, token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}
	detail, _ := body["gift"].(map[string]any)
	events, _ := body["events"].([]any)
	if detail["bound_device_id"] != "D2" || detail["scan_count"] != float64(2) || len(events) != 3 {
		t.Fatalf("unexpected gift detail %v", body)
	}

	recorder, body = s.do(t, http.MethodGet, fmt.Sprintf("/v0/admin/gifts?shop_id=%d", shop.ID), token, nil)
	if recorder.Code != http.StatusOK || body["total"] != float64(1) {
		t.Fatalf("unexpected gift list %d: %v", recorder.Code, body)
	}

	if recorder, _ := s.do(t, http.MethodDelete, giftPath, token, nil); recorder.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", recorder.Code)
	}
	if recorder, body := s.do(t, http.MethodGet, giftPath, token, nil); recorder.Code != http.StatusNotFound || body["error"] != "NotFound" {
		t.Fatalf("expected 404 NotFound, got %d: %v", recorder.Code, body)
	}
	if got := dbtest.Balance(t, s.conn, shop.ID); got != 0 {
		t.Fatalf("expected no refund after delete, got %d", got)
	}
}
