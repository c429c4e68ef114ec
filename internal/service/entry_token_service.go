package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/proctorly/proctorly-backend/internal/model"
)

// Entry token errors. All of them are terminal for the session attempt; the
// only next action offered to the user is returning to the dashboard.
var (
	ErrTokenNotFound    = errors.New("entry token not found")
	ErrTokenAlreadyUsed = errors.New("entry token already used")
	ErrTokenExpired     = errors.New("entry token expired")
)

// TokenStore is the storage surface the entry token service needs. The
// conditional-claim semantics live in the store, not here: ClaimPending must
// be a single atomic UPDATE so concurrent claims produce exactly one winner.
type TokenStore interface {
	Create(ctx context.Context, t *model.EntryToken) error
	ClaimPending(ctx context.Context, token string, now time.Time) (int, uuid.UUID, error)
	GetByToken(ctx context.Context, token string) (*model.EntryToken, error)
	MarkExpired(ctx context.Context, token string) error
}

// EntryTokenService mints and validates single-use session credentials.
type EntryTokenService struct {
	store TokenStore
	ttl   time.Duration
	now   func() time.Time
}

// NewEntryTokenService creates an EntryTokenService with the given token
// lifetime.
func NewEntryTokenService(store TokenStore, ttl time.Duration) *EntryTokenService {
	return &EntryTokenService{store: store, ttl: ttl, now: time.Now}
}

// Issue mints an opaque token bound to {participant, exam}, stored PENDING
// with a short expiry. Two concatenated UUIDs give a 256-bit value; no
// collision retry is needed.
func (s *EntryTokenService) Issue(ctx context.Context, participantID int, examID uuid.UUID) (*model.EntryToken, error) {
	raw := strings.ReplaceAll(uuid.New().String()+uuid.New().String(), "-", "")
	now := s.now()

	t := &model.EntryToken{
		Token:         raw,
		ParticipantID: participantID,
		ExamID:        examID,
		Status:        model.EntryTokenPending,
		ExpiresAt:     now.Add(s.ttl),
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("store entry token: %w", err)
	}
	return t, nil
}

// ValidateAndClaim transitions a PENDING token to CLAIMED exactly once and
// returns the bound identifiers. Callers must treat this as non-idempotent:
// one call per session attempt. Failure modes:
//   - ErrTokenNotFound: no such token row
//   - ErrTokenAlreadyUsed: already CLAIMED (or lost a race to another claim)
//   - ErrTokenExpired: expiry passed; the row is marked EXPIRED as a side effect
func (s *EntryTokenService) ValidateAndClaim(ctx context.Context, token string) (int, uuid.UUID, error) {
	now := s.now()

	participantID, examID, err := s.store.ClaimPending(ctx, token, now)
	if err == nil {
		return participantID, examID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, uuid.Nil, fmt.Errorf("claim token: %w", err)
	}

	// The conditional update matched nothing. Classify why.
	t, err := s.store.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, uuid.Nil, ErrTokenNotFound
		}
		return 0, uuid.Nil, fmt.Errorf("load token: %w", err)
	}

	switch t.Status {
	case model.EntryTokenClaimed:
		return 0, uuid.Nil, ErrTokenAlreadyUsed
	case model.EntryTokenExpired:
		return 0, uuid.Nil, ErrTokenExpired
	}

	// Still PENDING, so the claim can only have failed on the expiry bound.
	if t.IsExpired(now) {
		if err := s.store.MarkExpired(ctx, token); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return 0, uuid.Nil, fmt.Errorf("mark token expired: %w", err)
		}
		return 0, uuid.Nil, ErrTokenExpired
	}

	// A concurrent claim won between our UPDATE and the SELECT.
	return 0, uuid.Nil, ErrTokenAlreadyUsed
}
