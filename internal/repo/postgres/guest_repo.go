package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/draftwise/coverletter-api/internal/domain"
)

type GuestRepo interface {
	// FindOrCreateByIP returns the guest record for an IP, creating it with the
	// default allowance on first sight. One row exists per unique IP.
	FindOrCreateByIP(ctx context.Context, ip string, defaultUseLimit int) (*domain.Guest, error)

	// ConsumeUse atomically spends one use if allowance remains.
	ConsumeUse(ctx context.Context, guestID int64) (bool, error)
}

type GuestRepoImpl struct{ pool *pgxpool.Pool }

func NewGuestRepo(pool *pgxpool.Pool) *GuestRepoImpl { return &GuestRepoImpl{pool: pool} }

const guestCols = `id, ip, use_limit, exhausted_uses, created_at, updated_at`

func (r *GuestRepoImpl) FindOrCreateByIP(ctx context.Context, ip string, defaultUseLimit int) (*domain.Guest, error) {
	// Upsert keyed on ip so concurrent first requests from the same address
	// settle on a single row.
	const q = `
INSERT INTO guests (ip, use_limit, exhausted_uses)
VALUES ($1, $2, 0)
ON CONFLICT (ip) DO UPDATE SET updated_at = now()
RETURNING ` + guestCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var g domain.Guest
	err := r.pool.QueryRow(ctx, q, ip, defaultUseLimit).Scan(
		&g.ID, &g.IP, &g.UseLimit, &g.ExhaustedUses, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *GuestRepoImpl) ConsumeUse(ctx context.Context, guestID int64) (bool, error) {
	const q = `
UPDATE guests
SET exhausted_uses = exhausted_uses + 1, updated_at = now()
WHERE id = $1 AND exhausted_uses < use_limit`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, guestID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

var _ GuestRepo = (*GuestRepoImpl)(nil)
