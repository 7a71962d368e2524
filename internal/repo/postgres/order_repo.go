package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/draftwise/coverletter-api/internal/domain"
)

type OrderRepo interface {
	Create(ctx context.Context, o *domain.CreditOrder) error
	GetByID(ctx context.Context, id string) (*domain.CreditOrder, error)

	// MarkPaid transitions an order created → paid, setting the payment
	// reference and verification time. The update is conditional on the current
	// status, so exactly one of any number of concurrent callers wins; the
	// return value reports whether this caller's transition applied.
	MarkPaid(ctx context.Context, id, paymentID string, verifiedAt time.Time) (bool, error)

	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.CreditOrder, error)
}

type OrderRepoImpl struct{ pool *pgxpool.Pool }

func NewOrderRepo(pool *pgxpool.Pool) *OrderRepoImpl { return &OrderRepoImpl{pool: pool} }

const orderCols = `id, user_id, amount, currency, gateway, status, receipt, payment_id, payment_verified_at, notes, created_at`

func scanOrder(row pgx.Row) (*domain.CreditOrder, error) {
	var o domain.CreditOrder
	err := row.Scan(
		&o.ID, &o.UserID, &o.Amount, &o.Currency, &o.Gateway, &o.Status,
		&o.Receipt, &o.PaymentID, &o.PaymentVerifiedAt, &o.Notes, &o.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepoImpl) Create(ctx context.Context, o *domain.CreditOrder) error {
	const q = `
INSERT INTO credit_orders (id, user_id, amount, currency, gateway, status, receipt, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING created_at`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return r.pool.QueryRow(ctx, q,
		o.ID, o.UserID, o.Amount, o.Currency, o.Gateway, o.Status, o.Receipt, o.Notes,
	).Scan(&o.CreatedAt)
}

func (r *OrderRepoImpl) GetByID(ctx context.Context, id string) (*domain.CreditOrder, error) {
	const q = `SELECT ` + orderCols + ` FROM credit_orders WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanOrder(r.pool.QueryRow(ctx, q, id))
}

func (r *OrderRepoImpl) MarkPaid(ctx context.Context, id, paymentID string, verifiedAt time.Time) (bool, error) {
	const q = `
UPDATE credit_orders
SET status = $2, payment_id = $3, payment_verified_at = $4
WHERE id = $1 AND status = $5`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, id, domain.OrderPaid, paymentID, verifiedAt, domain.OrderCreated)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *OrderRepoImpl) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.CreditOrder, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	const q = `
SELECT ` + orderCols + `
FROM credit_orders
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.CreditOrder
	for rows.Next() {
		var o domain.CreditOrder
		if err := rows.Scan(
			&o.ID, &o.UserID, &o.Amount, &o.Currency, &o.Gateway, &o.Status,
			&o.Receipt, &o.PaymentID, &o.PaymentVerifiedAt, &o.Notes, &o.CreatedAt,
		); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}

	return orders, rows.Err()
}

var _ OrderRepo = (*OrderRepoImpl)(nil)
