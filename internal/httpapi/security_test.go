package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"partsledger/backend/internal/domain"
)

func TestMiddlewareSetsSecurityHeaders(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if got := res.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected X-Content-Type-Options nosniff, got %q", got)
	}
	if got := res.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("expected X-Frame-Options DENY, got %q", got)
	}
	if got := res.Header().Get("Referrer-Policy"); got == "" {
		t.Fatalf("expected Referrer-Policy to be set")
	}
}

func TestPreflightReturnsNoContent(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sales", nil)
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", res.Code)
	}
	if got := res.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "DELETE") {
		t.Fatalf("expected DELETE in allowed methods, got %q", got)
	}
}

func TestLoginRateLimitReturns429(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	body, _ := json.Marshal(domain.LoginRequest{Username: "admin", Password: "wrong-pass"})

	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "127.0.0.1:5000"
		res := httptest.NewRecorder()

		handler.ServeHTTP(res, req)

		if i < 5 && res.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d expected 401 before limit, got %d", i+1, res.Code)
		}
		if i == 5 && res.Code != http.StatusTooManyRequests {
			t.Fatalf("attempt 6 expected 429, got %d", res.Code)
		}
	}

	// Another client is counted separately.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "127.0.0.2:5000"
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a fresh client, got %d", res.Code)
	}
}

func TestNewRejectsMalformedLoginRate(t *testing.T) {
	if _, err := New(nil, NewAuthManager("secret", 0), Options{LoginRate: "often"}); err == nil {
		t.Fatalf("expected malformed login rate to be rejected")
	}
}

func TestJSONBodyTooLargeRejected(t *testing.T) {
	api := newTestAPI(t)
	veryLong := strings.Repeat("a", (1<<20)+1024)
	body := fmt.Sprintf(`{"username":"%s","password":"x"}`, veryLong)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for too large body, got %d", res.Code)
	}
}

func TestUnknownJSONFieldsRejected(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "admin", "admin123")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", strings.NewReader(`{"buyer_name":"Ravi","total":"1"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()

	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", res.Code)
	}
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	res := httptest.NewRecorder()
	writeError(res, http.StatusInternalServerError, fmt.Errorf("write /var/lib/ledger/parts.json: disk full"))

	var payload map[string]string
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["error"] != "internal server error" {
		t.Fatalf("expected generic message, got %q", payload["error"])
	}
}

func TestStatusForMapsDomainErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{err: domain.ErrNotFound, want: http.StatusNotFound},
		{err: domain.ErrInvalidState, want: http.StatusConflict},
		{err: domain.ErrNotApplicable, want: http.StatusUnprocessableEntity},
		{err: domain.ErrInvalidInput, want: http.StatusBadRequest},
		{err: fmt.Errorf("save: %w", domain.ErrStorage), want: http.StatusInternalServerError},
		{err: fmt.Errorf("sale SAL-1 %w", domain.ErrNotFound), want: http.StatusNotFound},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestActionPath(t *testing.T) {
	id, action, ok := actionPath("/api/v1/sales/SAL-1/cancel", "/api/v1/sales/")
	if !ok || id != "SAL-1" || action != "cancel" {
		t.Fatalf("unexpected split %q %q %v", id, action, ok)
	}
	id, action, ok = actionPath("/api/v1/sales/SAL-1", "/api/v1/sales/")
	if !ok || id != "SAL-1" || action != "" {
		t.Fatalf("unexpected split %q %q %v", id, action, ok)
	}
	if _, _, ok := actionPath("/api/v1/sales/a/b/c", "/api/v1/sales/"); ok {
		t.Fatalf("expected deep path to be rejected")
	}
}

func TestPanicBeforeWriteReturns500(t *testing.T) {
	api := newTestAPI(t)
	handler := api.withMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("ledger exploded")
	}))
	res := httptest.NewRecorder()

	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/v1/parts", nil))

	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "internal server error") {
		t.Fatalf("expected generic error body, got %q", res.Body.String())
	}
}

func TestPanicAfterWriteKeepsResponse(t *testing.T) {
	api := newTestAPI(t)
	handler := api.withMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		panic("late failure")
	}))
	res := httptest.NewRecorder()

	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/v1/parts", nil))

	if res.Code != http.StatusOK {
		t.Fatalf("expected original 200 to stand, got %d", res.Code)
	}
	var payload map[string]any
	decoder := json.NewDecoder(res.Body)
	if err := decoder.Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["ok"] != true {
		t.Fatalf("expected handler body, got %v", payload)
	}
	if decoder.More() {
		t.Fatalf("expected no error body appended after panic")
	}
}
