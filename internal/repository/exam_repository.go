package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/proctorly/proctorly-backend/internal/model"
)

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

const examColumns = `id, owner_id, title, description, duration_minutes,
	allow_backtracking, join_code, start_time, end_time, status, created_at, updated_at`

func scanExam(row interface{ Scan(...any) error }, e *model.Exam) error {
	return row.Scan(&e.ID, &e.OwnerID, &e.Title, &e.Description, &e.DurationMinutes,
		&e.AllowBacktracking, &e.JoinCode, &e.StartTime, &e.EndTime, &e.Status,
		&e.CreatedAt, &e.UpdatedAt)
}

// GetByID retrieves an exam by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	row := r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, id)
	if err := scanExam(row, e); err != nil {
		return nil, err
	}
	return e, nil
}

// GetByJoinCode retrieves an exam by its human-readable join code.
func (r *ExamRepository) GetByJoinCode(ctx context.Context, code string) (*model.Exam, error) {
	e := &model.Exam{}
	row := r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE join_code = $1`, code)
	if err := scanExam(row, e); err != nil {
		return nil, err
	}
	return e, nil
}

// JoinCodeExists reports whether a join code is already taken.
func (r *ExamRepository) JoinCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM exams WHERE join_code = $1)`, code,
	).Scan(&exists)
	return exists, err
}

// Create inserts a new exam.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (owner_id, title, description, duration_minutes,
		                    allow_backtracking, join_code, start_time, end_time, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at, updated_at`,
		e.OwnerID, e.Title, e.Description, e.DurationMinutes,
		e.AllowBacktracking, e.JoinCode, e.StartTime, e.EndTime, e.Status,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// Update modifies an existing exam's editable fields.
func (r *ExamRepository) Update(ctx context.Context, e *model.Exam) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exams
		 SET title = $1, description = $2, duration_minutes = $3,
		     allow_backtracking = $4, start_time = $5, end_time = $6, updated_at = NOW()
		 WHERE id = $7`,
		e.Title, e.Description, e.DurationMinutes,
		e.AllowBacktracking, e.StartTime, e.EndTime, e.ID)
	return err
}

// UpdateStatus updates an exam's stored status.
func (r *ExamRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ExamStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exams SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id)
	return err
}

// Delete removes an exam. Only callable for drafts (enforced in the service).
func (r *ExamRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM exams WHERE id = $1`, id)
	return err
}

// ListByOwnerPaginated retrieves exams filtered by owner with pagination,
// including the embedded question count.
func (r *ExamRepository) ListByOwnerPaginated(ctx context.Context, ownerID, limit, offset int) ([]model.Exam, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exams WHERE owner_id = $1`, ownerID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+`,
		        (SELECT COUNT(*) FROM questions q WHERE q.exam_id = exams.id)
		 FROM exams
		 WHERE owner_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`, ownerID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.Title, &e.Description, &e.DurationMinutes,
			&e.AllowBacktracking, &e.JoinCode, &e.StartTime, &e.EndTime, &e.Status,
			&e.CreatedAt, &e.UpdatedAt, &e.QuestionCount); err != nil {
			return nil, 0, err
		}
		exams = append(exams, e)
	}
	return exams, total, rows.Err()
}

// ListPublished returns all exams with PUBLISHED or ONGOING stored status.
// Used for cache prewarming on application startup.
func (r *ExamRepository) ListPublished(ctx context.Context) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+`
		 FROM exams WHERE status = $1 OR status = $2
		 ORDER BY created_at DESC`,
		model.ExamStatusPublished, model.ExamStatusOngoing)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := scanExam(rows, &e); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}
