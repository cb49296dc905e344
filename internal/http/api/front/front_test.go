package front

import (
	"bytes"
	"encoding/json"
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
	"github.com/giftar/giftpin/internal/pins"
	"github.com/giftar/giftpin/internal/security"
)

const testSecret = "front-test-secret"

type testServer struct {
	conn   *gorm.DB
	router *gin.Engine
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
	router := gin.New()
	RegisterFrontRoutes(router, Deps{
		DB:          conn,
		JWT:         config.JWTConfig{Secret: testSecret, ShopTokenTTL: time.Hour},
		Guard:       binding.NewGuard(conn),
		Coordinator: issuance.NewCoordinator(conn, l, registry),
		Ledger:      l,
	})
	return testServer{conn: conn, router: router}
}

func (s testServer) shopToken(t *testing.T, shop models.ShopAccount) string {
	t.Helper()
	token, err := security.GenerateShopToken(testSecret, shop.ID, time.Hour)
	if err != nil {
		t.Fatalf("shop token: %v", err)
	}
	return token
}

func (s testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var payload []byte
	switch v := body.(type) {
	case nil:
	case string:
		payload = []byte(v)
	default:
		encoded, err := json.Marshal(v)
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

func TestShopRoutesRequireShopToken(t *testing.T) {
	s := newTestServer(t)
	operatorToken, err := security.GenerateOperatorToken(testSecret, 1, "root", time.Hour)
	if err != nil {
		t.Fatalf("operator token: %v", err)
	}

	for _, token := range []string{"", "junk", operatorToken} {
		recorder, _ := s.do(t, http.MethodGet, "/v0/shop/balance", token, nil)
		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("expected status 401 for token %q, got %d", token, recorder.Code)
		}
	}

	ghost, err := security.GenerateShopToken(testSecret, 999, time.Hour)
	if err != nil {
		t.Fatalf("shop token: %v", err)
	}
	if recorder, _ := s.do(t, http.MethodGet, "/v0/shop/balance", ghost, nil); recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 for unknown shop, got %d", recorder.Code)
	}
}

func TestCreateGiftAndVerifyFlow(t *testing.T) {
	s := newTestServer(t)
	shop := dbtest.CreateShop(t, s.conn, "corner", 2)
	token := s.shopToken(t, shop)

	recorder, body := s.do(t, http.MethodPost, "/v0/shop/gifts", token, map[string]any{
		"requested_pin": "gold1",
		"content_ref":   "content/a",
		"metadata":      map[string]any{"to": "Ana"},
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %v", recorder.Code, body)
	}
	gift, _ := body["gift"].(map[string]any)
	if gift["pin"] != "GOLD1" || gift["bound"] != false {
		t.Fatalf("unexpected gift %v", gift)
	}

	recorder, body = s.do(t, http.MethodPost, "/v0/shop/gifts", token, map[string]any{
		"requested_pin": "GOLD1",
		"content_ref":   "content/b",
	})
	if recorder.Code != http.StatusConflict || body["error"] != "PinConflict" {
		t.Fatalf("expected 409 PinConflict, got %d: %v", recorder.Code, body)
	}
	recorder, body = s.do(t, http.MethodGet, "/v0/shop/balance", token, nil)
	if recorder.Code != http.StatusOK || body["balance"] != float64(1) {
		t.Fatalf("expected refunded balance 1, got %d: %v", recorder.Code, body)
	}

	recorder, body = s.do(t, http.MethodPost, "/v0/viewer/verify-pin", "", map[string]any{"pin": "gold1", "device_id": "D1"})
	if recorder.Code != http.StatusOK || body["success"] != true || body["scan_count"] != float64(1) || body["content"] != "content/a" {
		t.Fatalf("unexpected first verify %d: %v", recorder.Code, body)
	}
	if _, ok := body["content_url"]; ok {
		t.Fatalf("content_url must be absent without storage")
	}

	recorder, body = s.do(t, http.MethodPost, "/v0/viewer/verify-pin", "", map[string]any{"pin": "GOLD1", "device_id": "D2"})
	if recorder.Code != http.StatusConflict || body["error"] != "DeviceMismatch" || body["success"] != false {
		t.Fatalf("expected 409 DeviceMismatch, got %d: %v", recorder.Code, body)
	}

	recorder, body = s.do(t, http.MethodPost, "/v0/viewer/verify-pin", "", map[string]any{"pin": "GOLD1", "device_id": "D1"})
	if recorder.Code != http.StatusOK || body["scan_count"] != float64(2) {
		t.Fatalf("unexpected rescan %d: %v", recorder.Code, body)
	}

	recorder, body = s.do(t, http.MethodPost, "/v0/viewer/verify-pin", "", map[string]any{"pin": "NOPE99", "device_id": "D1"})
	if recorder.Code != http.StatusNotFound || body["error"] != "NotFound" {
		t.Fatalf("expected 404 NotFound, got %d: %v", recorder.Code, body)
	}

	recorder, body = s.do(t, http.MethodGet, "/v0/shop/gifts", token, nil)
	if recorder.Code != http.StatusOK || body["total"] != float64(1) {
		t.Fatalf("unexpected gift list %d: %v", recorder.Code, body)
	}
}

func TestVerifyPinRejectsBadRequests(t *testing.T) {
	s := newTestServer(t)

	if recorder, _ := s.do(t, http.MethodPost, "/v0/viewer/verify-pin", "", "{"); recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for invalid json, got %d", recorder.Code)
	}
	if recorder, _ := s.do(t, http.MethodPost, "/v0/viewer/verify-pin", "", map[string]any{"pin": "GOLD1"}); recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 without device, got %d", recorder.Code)
	}
}

func TestCreateGiftStatusMapping(t *testing.T) {
	s := newTestServer(t)
	empty := dbtest.CreateShop(t, s.conn, "empty", 0)
	blocked := dbtest.CreateShop(t, s.conn, "blocked", 5)
	if err := s.conn.Model(&models.ShopAccount{}).Where("id = ?", blocked.ID).Update("blocked", true).Error; err != nil {
		t.Fatalf("block shop: %v", err)
	}

	cases := []struct {
		name   string
		shop   models.ShopAccount
		body   map[string]any
		status int
		code   string
	}{
		{"insufficient balance", empty, map[string]any{"content_ref": "content/a"}, http.StatusPaymentRequired, "InsufficientBalance"},
		{"blocked shop", blocked, map[string]any{"content_ref": "content/a"}, http.StatusForbidden, "TenantBlocked"},
		{"missing content", blocked, map[string]any{"requested_pin": "GOLD1"}, http.StatusBadRequest, ""},
		{"malformed pin", empty, map[string]any{"requested_pin": "no-dash", "content_ref": "content/a"}, http.StatusBadRequest, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			recorder, body := s.do(t, http.MethodPost, "/v0/shop/gifts", s.shopToken(t, tc.shop), tc.body)
			if recorder.Code != tc.status {
				t.Fatalf("expected status %d, got %d: %v", tc.status, recorder.Code, body)
			}
			if tc.code != "" && body["error"] != tc.code {
				t.Fatalf("expected error %s, got %v", tc.code, body["error"])
			}
		})
	}
	if got := dbtest.Balance(t, s.conn, blocked.ID); got != 5 {
		t.Fatalf("expected blocked balance untouched, got %d", got)
	}
}

func TestUploadWithoutStorage(t *testing.T) {
	s := newTestServer(t)
	shop := dbtest.CreateShop(t, s.conn, "corner", 0)

	recorder, _ := s.do(t, http.MethodPost, "/v0/shop/content", s.shopToken(t, shop), nil)
	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", recorder.Code)
	}
}

func TestShopLedgerListsJournal(t *testing.T) {
	s := newTestServer(t)
	shop := dbtest.CreateShop(t, s.conn, "corner", 1)
	token := s.shopToken(t, shop)

	if recorder, body := s.do(t, http.MethodPost, "/v0/shop/gifts", token, map[string]any{"content_ref": "content/a"}); recorder.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %v", recorder.Code, body)
	}
	recorder, body := s.do(t, http.MethodGet, "/v0/shop/ledger", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}
	entries, _ := body["entries"].([]any)
	if len(entries) != 1 {
		t.Fatalf("expected one debit entry, got %v", body)
	}
	entry, _ := entries[0].(map[string]any)
	if entry["kind"] != models.CreditEntryDebit || entry["delta"] != float64(-1) {
		t.Fatalf("unexpected entry %v", entry)
	}
}
