package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/draftwise/coverletter-api/internal/http/handlers"
	"github.com/draftwise/coverletter-api/pkg/config"
)

// ---------- Mocks ----------

// mockRateLimitRepo mirrors the fixed-window counter: allow until the count
// for a key exceeds the limit, regardless of how the calls are spaced.
type mockRateLimitRepo struct {
	mu     sync.Mutex
	counts map[string]int
	keys   []string

	checkErr error
}

func newMockRateLimitRepo() *mockRateLimitRepo {
	return &mockRateLimitRepo{counts: make(map[string]int)}
}

func (m *mockRateLimitRepo) CheckRateLimit(_ context.Context, key string, requests int, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.checkErr != nil {
		return true, m.checkErr
	}
	m.counts[key]++
	m.keys = append(m.keys, key)
	return m.counts[key] <= requests, nil
}

func (m *mockRateLimitRepo) CleanupExpired(context.Context) (int64, error) { return 0, nil }

// ---------- Test Setup ----------

func setupAuthServer(t *testing.T) (*httptest.Server, *mockRateLimitRepo) {
	t.Helper()

	rateLimits := newMockRateLimitRepo()
	handler := handlers.NewAuthHandler(newMockAuthService(), rateLimits, &config.Config{})

	r := chi.NewRouter()
	r.Mount("/v1/auth", handler.Routes())

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, rateLimits
}

func postLogin(t *testing.T, srv *httptest.Server) *http.Response {
	t.Helper()

	body := `{"email":"visitor@example.com","password":"secret123"}`
	resp, err := http.Post(srv.URL+"/v1/auth/login", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to POST login: %v", err)
	}
	return resp
}

// ---------- Tests ----------

func TestLogin_RateLimitedAfterTenAttempts(t *testing.T) {
	srv, _ := setupAuthServer(t)

	for i := 1; i <= 10; i++ {
		resp := postLogin(t, srv)
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			t.Fatalf("Attempt %d should not be rate limited", i)
		}
	}

	resp := postLogin(t, srv)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("Attempt 11 should return 429, got %d", resp.StatusCode)
	}

	var errResp struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	if errResp.Code != "RATE_LIMIT_EXCEEDED" {
		t.Fatalf("Expected code RATE_LIMIT_EXCEEDED, got %q", errResp.Code)
	}
}

func TestLogin_RateLimitKeyScopedByAction(t *testing.T) {
	srv, rateLimits := setupAuthServer(t)

	resp := postLogin(t, srv)
	resp.Body.Close()

	resp, err := http.Post(srv.URL+"/v1/auth/register", "application/json",
		strings.NewReader(`{"email":"visitor@example.com","password":"secret123","name":"Visitor"}`))
	if err != nil {
		t.Fatalf("Failed to POST register: %v", err)
	}
	resp.Body.Close()

	rateLimits.mu.Lock()
	defer rateLimits.mu.Unlock()
	if len(rateLimits.keys) != 2 {
		t.Fatalf("Expected 2 rate limit checks, got %d", len(rateLimits.keys))
	}
	if rateLimits.keys[0] == rateLimits.keys[1] {
		t.Fatalf("Login and register must not share a rate limit key, both got %q", rateLimits.keys[0])
	}
	for i, action := range []string{"login", "register"} {
		if !strings.HasPrefix(rateLimits.keys[i], "auth:"+action+":") {
			t.Fatalf("Key %d = %q, expected prefix %q", i, rateLimits.keys[i], "auth:"+action+":")
		}
	}
}

func TestLogin_FailsOpenOnRateLimitError(t *testing.T) {
	srv, rateLimits := setupAuthServer(t)
	rateLimits.checkErr = fmt.Errorf("connection refused")

	resp := postLogin(t, srv)
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		t.Fatal("Storage errors must not block the request")
	}
}
