package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/proctorly/proctorly-backend/internal/model"
	"github.com/stretchr/testify/require"
)

// fakeTokenStore holds a single token row and mimics the repository's
// conditional-claim contract.
type fakeTokenStore struct {
	row         *model.EntryToken
	markedCalls int
}

func (f *fakeTokenStore) Create(_ context.Context, t *model.EntryToken) error {
	f.row = t
	return nil
}

func (f *fakeTokenStore) ClaimPending(_ context.Context, token string, now time.Time) (int, uuid.UUID, error) {
	if f.row == nil || f.row.Token != token {
		return 0, uuid.Nil, pgx.ErrNoRows
	}
	if f.row.Status != model.EntryTokenPending || !f.row.ExpiresAt.After(now) {
		return 0, uuid.Nil, pgx.ErrNoRows
	}
	f.row.Status = model.EntryTokenClaimed
	return f.row.ParticipantID, f.row.ExamID, nil
}

func (f *fakeTokenStore) GetByToken(_ context.Context, token string) (*model.EntryToken, error) {
	if f.row == nil || f.row.Token != token {
		return nil, pgx.ErrNoRows
	}
	cp := *f.row
	return &cp, nil
}

func (f *fakeTokenStore) MarkExpired(_ context.Context, token string) error {
	f.markedCalls++
	if f.row != nil && f.row.Token == token && f.row.Status == model.EntryTokenPending {
		f.row.Status = model.EntryTokenExpired
		return nil
	}
	return pgx.ErrNoRows
}

func TestEntryTokenService_IssueAndClaim(t *testing.T) {
	store := &fakeTokenStore{}
	svc := NewEntryTokenService(store, 10*time.Minute)
	examID := uuid.New()

	token, err := svc.Issue(context.Background(), 42, examID)
	require.NoError(t, err)
	require.Len(t, token.Token, 64, "two dash-stripped UUIDs")
	require.Equal(t, model.EntryTokenPending, token.Status)

	participantID, gotExam, err := svc.ValidateAndClaim(context.Background(), token.Token)
	require.NoError(t, err)
	require.Equal(t, 42, participantID)
	require.Equal(t, examID, gotExam)
}

func TestEntryTokenService_ClaimIsSingleUse(t *testing.T) {
	store := &fakeTokenStore{}
	svc := NewEntryTokenService(store, 10*time.Minute)

	token, err := svc.Issue(context.Background(), 1, uuid.New())
	require.NoError(t, err)

	_, _, err = svc.ValidateAndClaim(context.Background(), token.Token)
	require.NoError(t, err)

	// The exact same link, presented again, is rejected.
	_, _, err = svc.ValidateAndClaim(context.Background(), token.Token)
	require.ErrorIs(t, err, ErrTokenAlreadyUsed)
}

func TestEntryTokenService_UnknownToken(t *testing.T) {
	svc := NewEntryTokenService(&fakeTokenStore{}, 10*time.Minute)

	_, _, err := svc.ValidateAndClaim(context.Background(), "nope")
	require.ErrorIs(t, err, ErrTokenNotFound)
}

func TestEntryTokenService_ExpiredToken(t *testing.T) {
	store := &fakeTokenStore{}
	svc := NewEntryTokenService(store, 10*time.Minute)

	token, err := svc.Issue(context.Background(), 1, uuid.New())
	require.NoError(t, err)

	// Advance the service's clock past the expiry.
	svc.now = func() time.Time { return token.ExpiresAt.Add(time.Second) }

	_, _, err = svc.ValidateAndClaim(context.Background(), token.Token)
	require.ErrorIs(t, err, ErrTokenExpired)
	require.Equal(t, 1, store.markedCalls, "expired-on-read marks the row")
	require.Equal(t, model.EntryTokenExpired, store.row.Status)

	// A later attempt classifies from the stored EXPIRED status.
	_, _, err = svc.ValidateAndClaim(context.Background(), token.Token)
	require.ErrorIs(t, err, ErrTokenExpired)
}
