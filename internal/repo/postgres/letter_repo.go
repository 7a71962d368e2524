package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/draftwise/coverletter-api/internal/domain"
)

type LetterRepo interface {
	Create(ctx context.Context, l *domain.Letter) error
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Letter, error)
}

type LetterRepoImpl struct{ pool *pgxpool.Pool }

func NewLetterRepo(pool *pgxpool.Pool) *LetterRepoImpl { return &LetterRepoImpl{pool: pool} }

func (r *LetterRepoImpl) Create(ctx context.Context, l *domain.Letter) error {
	const q = `
INSERT INTO letters (user_id, guest_ip, job_title, company_name, content)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var guestIP *string
	if l.GuestIP != "" {
		guestIP = &l.GuestIP
	}

	return r.pool.QueryRow(ctx, q, l.UserID, guestIP, l.JobTitle, l.CompanyName, l.Content).
		Scan(&l.ID, &l.CreatedAt)
}

func (r *LetterRepoImpl) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Letter, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	const q = `
SELECT id, user_id, job_title, company_name, content, created_at
FROM letters
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

	var letters []domain.Letter
	for rows.Next() {
		var l domain.Letter
		if err := rows.Scan(&l.ID, &l.UserID, &l.JobTitle, &l.CompanyName, &l.Content, &l.CreatedAt); err != nil {
			return nil, err
		}
		letters = append(letters, l)
	}

	return letters, rows.Err()
}

var _ LetterRepo = (*LetterRepoImpl)(nil)
