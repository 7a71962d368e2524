package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// VerifyRepo manages one-time email verification tokens.
type VerifyRepo interface {
	CreateEmailVerification(ctx context.Context, userID int64, token string, expiresAt time.Time) error
	// ConsumeEmailVerification marks a token used if valid and returns the
	// owning user id (0 if not found, already used or expired).
	ConsumeEmailVerification(ctx context.Context, token string) (int64, error)
	DeleteExpiredTokens(ctx context.Context) (int64, error)
}

type VerifyRepoImpl struct{ pool *pgxpool.Pool }

func NewVerifyRepo(pool *pgxpool.Pool) *VerifyRepoImpl { return &VerifyRepoImpl{pool: pool} }

func (r *VerifyRepoImpl) CreateEmailVerification(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	const q = `
INSERT INTO email_verification_tokens (user_id, token, expires_at)
VALUES ($1, $2, $3)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, userID, token, expiresAt)
	return err
}

func (r *VerifyRepoImpl) ConsumeEmailVerification(ctx context.Context, token string) (int64, error) {
	// Mark used and return the user id in one statement, only if unused and
	// unexpired.
	const q = `
UPDATE email_verification_tokens
SET used_at = now()
WHERE token = $1
  AND used_at IS NULL
  AND expires_at > now()
RETURNING user_id`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var userID int64
	err := r.pool.QueryRow(ctx, q, token).Scan(&userID)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	return userID, err
}

func (r *VerifyRepoImpl) DeleteExpiredTokens(ctx context.Context) (int64, error) {
	const q = `
DELETE FROM email_verification_tokens
WHERE (used_at IS NOT NULL AND used_at < now() - interval '30 days')
   OR (used_at IS NULL AND expires_at < now() - interval '30 days')`

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ VerifyRepo = (*VerifyRepoImpl)(nil)
