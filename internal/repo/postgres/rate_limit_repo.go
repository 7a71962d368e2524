package postgres

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type RateLimitRepo interface {
	// CheckRateLimit reports whether a caller identified by key is still within
	// requests per window. Fails open on storage errors.
	CheckRateLimit(ctx context.Context, key string, requests int, window time.Duration) (bool, error)
	CleanupExpired(ctx context.Context) (int64, error)
}

type RateLimitRepoImpl struct{ pool *pgxpool.Pool }

func NewRateLimitRepo(pool *pgxpool.Pool) *RateLimitRepoImpl { return &RateLimitRepoImpl{pool: pool} }

func (r *RateLimitRepoImpl) CheckRateLimit(ctx context.Context, key string, requests int, window time.Duration) (bool, error) {
	// Hash the key for privacy
	hasher := sha256.New()
	hasher.Write([]byte(key))
	hashedKey := fmt.Sprintf("%x", hasher.Sum(nil))

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	now := time.Now()
	cutoff := now.Add(-window)

	// Atomic check-and-count via upsert. A fresh window starts at now; the
	// count only resets once the stored start has aged past the cutoff.
	const q = `
INSERT INTO rate_limits (rl_key, count, window_start, expires_at)
VALUES ($1, 1, $2, $3)
ON CONFLICT (rl_key) DO UPDATE SET
	count = CASE
		WHEN rate_limits.window_start < $4 THEN 1
		ELSE rate_limits.count + 1
	END,
	window_start = CASE
		WHEN rate_limits.window_start < $4 THEN $2
		ELSE rate_limits.window_start
	END,
	expires_at = $3
RETURNING count`

	var count int
	err := r.pool.QueryRow(ctx, q, hashedKey, now, now.Add(time.Hour), cutoff).Scan(&count)
	if err != nil {
		// Fail open: never block traffic on a rate-limit storage error.
		return true, nil
	}

	return count <= requests, nil
}

func (r *RateLimitRepoImpl) CleanupExpired(ctx context.Context) (int64, error) {
	const q = `DELETE FROM rate_limits WHERE expires_at < now()`

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ RateLimitRepo = (*RateLimitRepoImpl)(nil)
