package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/proctorly/proctorly-backend/internal/model"
)

// ExaminerRepository handles examiner account data access.
type ExaminerRepository struct {
	pool *pgxpool.Pool
}

// NewExaminerRepository creates a new ExaminerRepository.
func NewExaminerRepository(pool *pgxpool.Pool) *ExaminerRepository {
	return &ExaminerRepository{pool: pool}
}

// GetByEmail retrieves an examiner by email.
func (r *ExaminerRepository) GetByEmail(ctx context.Context, email string) (*model.Examiner, error) {
	e := &model.Examiner{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, created_at, updated_at
		 FROM examiners WHERE email = $1`, email,
	).Scan(&e.ID, &e.Email, &e.Name, &e.PasswordHash, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetByID retrieves an examiner by id.
func (r *ExaminerRepository) GetByID(ctx context.Context, id int) (*model.Examiner, error) {
	e := &model.Examiner{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, created_at, updated_at
		 FROM examiners WHERE id = $1`, id,
	).Scan(&e.ID, &e.Email, &e.Name, &e.PasswordHash, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Create inserts a new examiner.
func (r *ExaminerRepository) Create(ctx context.Context, e *model.Examiner) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO examiners (email, name, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		e.Email, e.Name, e.PasswordHash,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}
