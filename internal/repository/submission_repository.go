package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/proctorly/proctorly-backend/internal/model"
)

// SubmissionResult combines participant data with their submission details,
// as listed on the examiner's results screen.
type SubmissionResult struct {
	ParticipantID int                    `json:"participant_id"`
	Name          string                 `json:"name"`
	Email         string                 `json:"email"`
	Status        model.SubmissionStatus `json:"status"`
	AnswerCount   int                    `json:"answer_count"`
	FlagCount     int                    `json:"flag_count"`
	StartedAt     *time.Time             `json:"started_at"`
	SubmittedAt   *time.Time             `json:"submitted_at"`
}

// SubmissionRepository handles submission data access.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// GetByExamAndParticipant retrieves a submission for a specific
// exam-participant combination.
func (r *SubmissionRepository) GetByExamAndParticipant(ctx context.Context, examID uuid.UUID, participantID int) (*model.Submission, error) {
	s := &model.Submission{}
	var answersRaw, flagsRaw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, participant_id, status, answers, flagged_events, started_at, submitted_at
		 FROM submissions
		 WHERE exam_id = $1 AND participant_id = $2`, examID, participantID,
	).Scan(&s.ID, &s.ExamID, &s.ParticipantID, &s.Status, &answersRaw, &flagsRaw, &s.StartedAt, &s.SubmittedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(answersRaw, &s.Answers); err != nil {
		return nil, fmt.Errorf("unmarshal answers: %w", err)
	}
	if err := json.Unmarshal(flagsRaw, &s.FlaggedEvents); err != nil {
		return nil, fmt.Errorf("unmarshal flagged events: %w", err)
	}
	return s, nil
}

// CreateInProgress inserts an IN_PROGRESS submission when the exam-taking
// state machine starts. ON CONFLICT DO NOTHING keeps the call idempotent
// under a concurrent start; pgx.ErrNoRows signals the row already existed.
func (r *SubmissionRepository) CreateInProgress(ctx context.Context, s *model.Submission) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO submissions (exam_id, participant_id, status, answers, flagged_events)
		 VALUES ($1, $2, $3, '{}'::jsonb, '[]'::jsonb)
		 ON CONFLICT (exam_id, participant_id) DO NOTHING
		 RETURNING id, started_at`,
		s.ExamID, s.ParticipantID, model.SubmissionInProgress,
	).Scan(&s.ID, &s.StartedAt)
}

// FinalizeCompleted upserts the terminal submission record. The WHERE clause
// on the conflict branch refuses to touch a row that is already COMPLETED,
// so a racing duplicate finalize can never overwrite persisted answers.
// pgx.ErrNoRows therefore means "already completed".
func (r *SubmissionRepository) FinalizeCompleted(ctx context.Context, examID uuid.UUID, participantID int, answers map[string]string, flags []model.FlaggedEvent, submittedAt time.Time) (uuid.UUID, error) {
	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal answers: %w", err)
	}
	if flags == nil {
		flags = []model.FlaggedEvent{}
	}
	flagsJSON, err := json.Marshal(flags)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal flagged events: %w", err)
	}

	var id uuid.UUID
	err = r.pool.QueryRow(ctx,
		`INSERT INTO submissions (exam_id, participant_id, status, answers, flagged_events, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (exam_id, participant_id) DO UPDATE
		 SET status = EXCLUDED.status,
		     answers = EXCLUDED.answers,
		     flagged_events = EXCLUDED.flagged_events,
		     submitted_at = EXCLUDED.submitted_at
		 WHERE submissions.status <> $3
		 RETURNING id`,
		examID, participantID, model.SubmissionCompleted, answersJSON, flagsJSON, submittedAt,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// ListByExam retrieves paginated submission results for an exam.
func (r *SubmissionRepository) ListByExam(ctx context.Context, examID uuid.UUID, limit, offset int) ([]SubmissionResult, int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM submissions WHERE exam_id = $1`, examID,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT s.participant_id, p.name, p.email, s.status,
		        (SELECT COUNT(*) FROM jsonb_object_keys(s.answers)),
		        jsonb_array_length(s.flagged_events),
		        s.started_at, s.submitted_at
		 FROM submissions s
		 JOIN participants p ON s.participant_id = p.id
		 WHERE s.exam_id = $1
		 ORDER BY p.name ASC
		 LIMIT $2 OFFSET $3`, examID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []SubmissionResult
	for rows.Next() {
		var sr SubmissionResult
		if err := rows.Scan(
			&sr.ParticipantID, &sr.Name, &sr.Email, &sr.Status,
			&sr.AnswerCount, &sr.FlagCount, &sr.StartedAt, &sr.SubmittedAt,
		); err != nil {
			return nil, 0, err
		}
		results = append(results, sr)
	}
	return results, total, rows.Err()
}

// HasCompleted reports whether a COMPLETED submission exists for the pair.
func (r *SubmissionRepository) HasCompleted(ctx context.Context, examID uuid.UUID, participantID int) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM submissions
		   WHERE exam_id = $1 AND participant_id = $2 AND status = $3
		 )`, examID, participantID, model.SubmissionCompleted,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
