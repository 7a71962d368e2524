package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/draftwise/coverletter-api/internal/domain"
)

type UserRepo interface {
	Create(ctx context.Context, email, passwordHash, name, provider string, useLimit int) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	MarkVerified(ctx context.Context, userID int64) error

	// AddCredits atomically raises the user's allowance. The increment happens
	// at the storage layer, never as an application-level read-modify-write.
	AddCredits(ctx context.Context, userID int64, amount int) error

	// ConsumeUse atomically spends one use if any allowance remains, reporting
	// whether the spend applied. The check and the increment are one statement,
	// so concurrent requests for the same user cannot overspend.
	ConsumeUse(ctx context.Context, userID int64) (bool, error)
}

type UserRepoImpl struct{ pool *pgxpool.Pool }

func NewUserRepo(pool *pgxpool.Pool) *UserRepoImpl { return &UserRepoImpl{pool: pool} }

const userCols = `id, role, email, password_hash, name, provider, is_verified, use_limit, exhausted_uses, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Role, &u.Email, &u.PasswordHash, &u.Name, &u.Provider,
		&u.IsVerified, &u.UseLimit, &u.ExhaustedUses, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepoImpl) Create(ctx context.Context, email, passwordHash, name, provider string, useLimit int) (*domain.User, error) {
	const q = `
INSERT INTO users (role, email, password_hash, name, provider, is_verified, use_limit, exhausted_uses)
VALUES ('user', $1, $2, $3, $4, false, $5, 0)
RETURNING ` + userCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanUser(r.pool.QueryRow(ctx, q, email, passwordHash, name, provider, useLimit))
}

func (r *UserRepoImpl) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE email = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanUser(r.pool.QueryRow(ctx, q, email))
}

func (r *UserRepoImpl) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanUser(r.pool.QueryRow(ctx, q, id))
}

func (r *UserRepoImpl) MarkVerified(ctx context.Context, userID int64) error {
	const q = `UPDATE users SET is_verified = true, updated_at = now() WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *UserRepoImpl) AddCredits(ctx context.Context, userID int64, amount int) error {
	const q = `UPDATE users SET use_limit = use_limit + $2, updated_at = now() WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, userID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *UserRepoImpl) ConsumeUse(ctx context.Context, userID int64) (bool, error) {
	const q = `
UPDATE users
SET exhausted_uses = exhausted_uses + 1, updated_at = now()
WHERE id = $1 AND exhausted_uses < use_limit`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

var _ UserRepo = (*UserRepoImpl)(nil)
