package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/draftwise/coverletter-api/internal/repo/postgres"
)

// Exercises the real upsert against Postgres. Set TEST_DATABASE_URL to run.
func setupRateLimitRepo(t *testing.T) *postgres.RateLimitRepoImpl {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	const ddl = `
CREATE TABLE IF NOT EXISTS rate_limits (
	rl_key       TEXT PRIMARY KEY,
	count        INTEGER NOT NULL,
	window_start TIMESTAMPTZ NOT NULL,
	expires_at   TIMESTAMPTZ NOT NULL
)`
	if _, err := pool.Exec(ctx, ddl); err != nil {
		t.Fatalf("Failed to create rate_limits table: %v", err)
	}

	return postgres.NewRateLimitRepo(pool)
}

func TestCheckRateLimit_BlocksAfterLimitWithinWindow(t *testing.T) {
	repo := setupRateLimitRepo(t)
	ctx := context.Background()

	key := fmt.Sprintf("test:block:%d", time.Now().UnixNano())
	const limit = 3

	for i := 1; i <= limit; i++ {
		allowed, err := repo.CheckRateLimit(ctx, key, limit, time.Minute)
		if err != nil {
			t.Fatalf("Call %d returned error: %v", i, err)
		}
		if !allowed {
			t.Fatalf("Call %d should be allowed, got blocked", i)
		}
	}

	allowed, err := repo.CheckRateLimit(ctx, key, limit, time.Minute)
	if err != nil {
		t.Fatalf("Call %d returned error: %v", limit+1, err)
	}
	if allowed {
		t.Fatalf("Call %d inside the window should be blocked", limit+1)
	}
}

func TestCheckRateLimit_ResetsAfterWindowElapsed(t *testing.T) {
	repo := setupRateLimitRepo(t)
	ctx := context.Background()

	key := fmt.Sprintf("test:reset:%d", time.Now().UnixNano())
	const limit = 2
	window := 200 * time.Millisecond

	for i := 1; i <= limit; i++ {
		if allowed, err := repo.CheckRateLimit(ctx, key, limit, window); err != nil || !allowed {
			t.Fatalf("Call %d should be allowed, got allowed=%v err=%v", i, allowed, err)
		}
	}
	if allowed, _ := repo.CheckRateLimit(ctx, key, limit, window); allowed {
		t.Fatal("Expected block once the limit is exhausted")
	}

	time.Sleep(window + 50*time.Millisecond)

	allowed, err := repo.CheckRateLimit(ctx, key, limit, window)
	if err != nil {
		t.Fatalf("Call after window elapsed returned error: %v", err)
	}
	if !allowed {
		t.Fatal("Expected a fresh window after the previous one elapsed")
	}
}

func TestCheckRateLimit_KeysAreIsolated(t *testing.T) {
	repo := setupRateLimitRepo(t)
	ctx := context.Background()

	base := time.Now().UnixNano()
	keyA := fmt.Sprintf("test:iso:a:%d", base)
	keyB := fmt.Sprintf("test:iso:b:%d", base)

	if allowed, _ := repo.CheckRateLimit(ctx, keyA, 1, time.Minute); !allowed {
		t.Fatal("First call for key A should be allowed")
	}
	if allowed, _ := repo.CheckRateLimit(ctx, keyA, 1, time.Minute); allowed {
		t.Fatal("Second call for key A should be blocked")
	}
	if allowed, _ := repo.CheckRateLimit(ctx, keyB, 1, time.Minute); !allowed {
		t.Fatal("Key B should not share key A's window")
	}
}
