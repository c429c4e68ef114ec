package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/proctorly/proctorly-backend/internal/model"
)

// EntryTokenRepository handles entry token data access. Rows are never
// deleted; claimed and expired tokens remain for audit.
type EntryTokenRepository struct {
	pool *pgxpool.Pool
}

// NewEntryTokenRepository creates a new EntryTokenRepository.
func NewEntryTokenRepository(pool *pgxpool.Pool) *EntryTokenRepository {
	return &EntryTokenRepository{pool: pool}
}

// Create inserts a new PENDING token.
func (r *EntryTokenRepository) Create(ctx context.Context, t *model.EntryToken) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO entry_tokens (token, participant_id, exam_id, status, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		t.Token, t.ParticipantID, t.ExamID, model.EntryTokenPending, t.ExpiresAt,
	).Scan(&t.CreatedAt)
}

// ClaimPending atomically transitions a PENDING, unexpired token to CLAIMED
// and returns the bound identifiers. The single conditional UPDATE is what
// guarantees exactly one winner under concurrent claims — there is no
// read-then-write window. pgx.ErrNoRows means the token was missing, already
// used, or expired; GetByToken distinguishes those cases.
func (r *EntryTokenRepository) ClaimPending(ctx context.Context, token string, now time.Time) (int, uuid.UUID, error) {
	var participantID int
	var examID uuid.UUID
	err := r.pool.QueryRow(ctx,
		`UPDATE entry_tokens
		 SET status = $1, claimed_at = $2
		 WHERE token = $3 AND status = $4 AND expires_at > $2
		 RETURNING participant_id, exam_id`,
		model.EntryTokenClaimed, now, token, model.EntryTokenPending,
	).Scan(&participantID, &examID)
	if err != nil {
		return 0, uuid.Nil, err
	}
	return participantID, examID, nil
}

// GetByToken retrieves a token row regardless of status.
func (r *EntryTokenRepository) GetByToken(ctx context.Context, token string) (*model.EntryToken, error) {
	t := &model.EntryToken{}
	err := r.pool.QueryRow(ctx,
		`SELECT token, participant_id, exam_id, status, created_at, expires_at, claimed_at
		 FROM entry_tokens WHERE token = $1`, token,
	).Scan(&t.Token, &t.ParticipantID, &t.ExamID, &t.Status, &t.CreatedAt, &t.ExpiresAt, &t.ClaimedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// MarkExpired transitions a PENDING token to EXPIRED. The status condition
// keeps CLAIMED rows untouched if a claim raced ahead of the expiry write.
func (r *EntryTokenRepository) MarkExpired(ctx context.Context, token string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE entry_tokens SET status = $1
		 WHERE token = $2 AND status = $3`,
		model.EntryTokenExpired, token, model.EntryTokenPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ExpireStale marks every PENDING token past its expiry as EXPIRED and
// returns how many rows changed. Used by the background sweeper.
func (r *EntryTokenRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE entry_tokens SET status = $1
		 WHERE status = $2 AND expires_at <= $3`,
		model.EntryTokenExpired, model.EntryTokenPending, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
