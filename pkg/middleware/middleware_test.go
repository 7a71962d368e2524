package middleware_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	mw "github.com/draftwise/coverletter-api/pkg/middleware"

	"github.com/draftwise/coverletter-api/pkg/logger"
)

// ---------- Mocks ----------

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]string)}
}

func (s *memoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *memoryStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memoryStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// ---------- Test Setup ----------

// countingHandler answers with a body unique to the caller so a cross-user
// cache mixup is visible in the response.
func countingHandler(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"caller":"%v","call":%d}`, r.Context().Value(logger.UserIDKey), *calls)
	})
}

func postAs(t *testing.T, h http.Handler, userID int64, idempotencyKey string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/v1/credits/orders", strings.NewReader(`{"package_id":"basic"}`))
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	ctx := context.WithValue(req.Context(), logger.UserIDKey, userID)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

// ---------- Tests ----------

func TestIdempotency_ReplaysCachedResponseForSameCaller(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	h := mw.Idempotency(store)(countingHandler(&calls))

	first := postAs(t, h, 1, "order-abc")
	second := postAs(t, h, 1, "order-abc")

	if calls != 1 {
		t.Fatalf("Handler should run once, ran %d times", calls)
	}
	if second.Header().Get("X-Idempotent-Replay") != "true" {
		t.Fatal("Second response should be marked as a replay")
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("Replay body %q should match original %q", second.Body.String(), first.Body.String())
	}
}

func TestIdempotency_DifferentUsersDoNotShareSlots(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	h := mw.Idempotency(store)(countingHandler(&calls))

	first := postAs(t, h, 1, "order-abc")
	second := postAs(t, h, 2, "order-abc")

	if calls != 2 {
		t.Fatalf("Both users should reach the handler, got %d calls", calls)
	}
	if second.Header().Get("X-Idempotent-Replay") == "true" {
		t.Fatal("User 2 must not receive user 1's cached response")
	}
	if first.Body.String() == second.Body.String() {
		t.Fatalf("Users sharing a key got the same body: %q", first.Body.String())
	}
	if store.len() != 2 {
		t.Fatalf("Expected 2 cache entries, got %d", store.len())
	}
}

func TestIdempotency_KeyScopedByPath(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	inner := countingHandler(&calls)
	h := mw.Idempotency(store)(inner)

	postAs(t, h, 1, "order-abc")

	req := httptest.NewRequest(http.MethodPost, "/v1/letters/generate", strings.NewReader(`{}`))
	req.Header.Set("Idempotency-Key", "order-abc")
	ctx := context.WithValue(req.Context(), logger.UserIDKey, int64(1))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(ctx))

	if calls != 2 {
		t.Fatalf("Same key on a different path should reach the handler, got %d calls", calls)
	}
	if rec.Header().Get("X-Idempotent-Replay") == "true" {
		t.Fatal("A different endpoint must not replay another endpoint's response")
	}
}

func TestIdempotency_SkipsRequestsWithoutKey(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	h := mw.Idempotency(store)(countingHandler(&calls))

	postAs(t, h, 1, "")
	postAs(t, h, 1, "")

	if calls != 2 {
		t.Fatalf("Requests without a key must not be cached, got %d calls", calls)
	}
	if store.len() != 0 {
		t.Fatalf("Expected empty cache, got %d entries", store.len())
	}
}

func TestIdempotency_DoesNotCacheErrors(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	failing := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid package"}`)
	})
	h := mw.Idempotency(store)(failing)

	postAs(t, h, 1, "order-abc")
	second := postAs(t, h, 1, "order-abc")

	if calls != 2 {
		t.Fatalf("Failed responses must not be replayed, got %d calls", calls)
	}
	if second.Header().Get("X-Idempotent-Replay") == "true" {
		t.Fatal("Error responses must not be cached")
	}
}
