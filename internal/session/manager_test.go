package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/proctorly/proctorly-backend/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeFinalizer struct {
	calls int
	err   error
	last  map[string]string
}

func (f *fakeFinalizer) Finalize(_ context.Context, _ uuid.UUID, _ int, answers map[string]string, _ []model.FlaggedEvent, _ time.Time) error {
	f.calls++
	f.last = answers
	return f.err
}

func newTestManagerMachine(fin Finalizer) (*Manager, *Machine) {
	mgr := NewManager(fin, zerolog.Nop())
	m := New(Config{
		ExamID:        uuid.New(),
		ParticipantID: 1,
		Questions: []QuestionRef{
			{ID: "q1", OptionIDs: []string{"a", "b"}},
		},
		AllowBacktracking: true,
		Duration:          time.Minute,
	})
	return mgr, m
}

func TestManager_RegisterDeduplicates(t *testing.T) {
	mgr, m := newTestManagerMachine(&fakeFinalizer{})

	got := mgr.Register(m)
	require.Same(t, m, got)

	dup := New(Config{ExamID: m.ExamID(), ParticipantID: m.ParticipantID(), Duration: time.Minute})
	got = mgr.Register(dup)
	require.Same(t, m, got, "second register for the same pair returns the live machine")
}

func TestManager_FinalizeSuccessRemovesSession(t *testing.T) {
	fin := &fakeFinalizer{}
	mgr, m := newTestManagerMachine(fin)
	mgr.Register(m)
	m.Start()
	require.NoError(t, m.Answer("q1", "a"))
	require.NoError(t, m.ConfirmSubmit())

	require.NoError(t, mgr.Finalize(context.Background(), m))
	require.Equal(t, 1, fin.calls)
	require.Equal(t, "a", fin.last["q1"])
	require.Equal(t, StateCompleted, m.State())

	_, ok := mgr.Get(m.ExamID(), m.ParticipantID())
	require.False(t, ok)
}

func TestManager_FinalizeAlreadyCompletedCountsAsSuccess(t *testing.T) {
	fin := &fakeFinalizer{err: ErrAlreadyCompleted}
	mgr, m := newTestManagerMachine(fin)
	mgr.Register(m)
	m.Start()
	require.NoError(t, m.ConfirmSubmit())

	require.NoError(t, mgr.Finalize(context.Background(), m))
	require.Equal(t, StateCompleted, m.State())
	_, ok := mgr.Get(m.ExamID(), m.ParticipantID())
	require.False(t, ok)
}

func TestManager_FinalizeFailureKeepsSessionForRetry(t *testing.T) {
	fin := &fakeFinalizer{err: errors.New("db down")}
	mgr, m := newTestManagerMachine(fin)
	mgr.Register(m)
	m.Start()
	require.NoError(t, m.ConfirmSubmit())

	require.Error(t, mgr.Finalize(context.Background(), m))
	require.Equal(t, StateSubmitting, m.State())
	require.True(t, m.NeedsFinalize())
	_, ok := mgr.Get(m.ExamID(), m.ParticipantID())
	require.True(t, ok, "failed finalize keeps the machine registered")

	// The next attempt succeeds and clears the session.
	fin.err = nil
	require.NoError(t, mgr.Finalize(context.Background(), m))
	require.Equal(t, 2, fin.calls)
	require.Equal(t, StateCompleted, m.State())
}
