package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/proctorly/proctorly-backend/internal/model"
	"github.com/stretchr/testify/require"
)

func testMachine(t *testing.T, backtracking bool, duration time.Duration) *Machine {
	t.Helper()
	return New(Config{
		ExamID:        uuid.New(),
		ParticipantID: 7,
		Questions: []QuestionRef{
			{ID: "q1", OptionIDs: []string{"a", "b"}},
			{ID: "q2", OptionIDs: []string{"c", "d"}},
			{ID: "q3", OptionIDs: []string{"e", "f"}},
		},
		AllowBacktracking: backtracking,
		Duration:          duration,
	})
}

func TestMachine_StartIsIdempotent(t *testing.T) {
	m := testMachine(t, true, time.Minute)
	require.Equal(t, StateStarting, m.State())

	m.Start()
	require.Equal(t, StateInProgress, m.State())
	started := m.StartedAt()

	m.Start()
	require.Equal(t, started, m.StartedAt())
}

func TestMachine_AnswerLastWriteWins(t *testing.T) {
	m := testMachine(t, true, time.Minute)
	m.Start()

	require.NoError(t, m.Answer("q1", "a"))
	require.NoError(t, m.Answer("q1", "b"))

	snap := m.Snapshot()
	require.Equal(t, "b", snap.Answers["q1"])
	require.Equal(t, 2, snap.Unanswered)
}

func TestMachine_AnswerValidation(t *testing.T) {
	m := testMachine(t, true, time.Minute)
	m.Start()

	// q2 is not the current question.
	require.ErrorIs(t, m.Answer("q2", "c"), ErrUnknownQuestion)
	// "z" is not an option of q1.
	require.ErrorIs(t, m.Answer("q1", "z"), ErrUnknownOption)
	// Rejections leave no answer behind.
	require.Empty(t, m.Snapshot().Answers)
}

func TestMachine_BacktrackingDisabled(t *testing.T) {
	m := testMachine(t, false, time.Minute)
	m.Start()

	require.NoError(t, m.Next())
	require.Equal(t, 1, m.Snapshot().Cursor)

	// The rejected move must leave the cursor untouched.
	require.ErrorIs(t, m.Previous(), ErrBacktrackingDisabled)
	require.Equal(t, 1, m.Snapshot().Cursor)

	require.ErrorIs(t, m.JumpTo(0), ErrBacktrackingDisabled)
	require.Equal(t, 1, m.Snapshot().Cursor)

	// Forward jumps stay allowed.
	require.NoError(t, m.JumpTo(2))
	require.Equal(t, 2, m.Snapshot().Cursor)
}

func TestMachine_BacktrackingEnabled(t *testing.T) {
	m := testMachine(t, true, time.Minute)
	m.Start()

	require.NoError(t, m.Next())
	require.NoError(t, m.Previous())
	require.Equal(t, 0, m.Snapshot().Cursor)

	require.ErrorIs(t, m.JumpTo(3), ErrIndexOutOfRange)
	require.ErrorIs(t, m.JumpTo(-1), ErrIndexOutOfRange)
}

func TestMachine_TimerFiresSubmitExactlyOnce(t *testing.T) {
	m := testMachine(t, true, 3*time.Second)
	m.Start()
	require.NoError(t, m.Answer("q1", "a"))

	require.False(t, m.Tick())
	require.False(t, m.Tick())
	fired := m.Tick()
	require.True(t, fired)
	require.Equal(t, StateSubmitting, m.State())
	require.Equal(t, SubmitTimer, m.Snapshot().SubmitReason)

	// Further ticks are no-ops and never fire again.
	require.False(t, m.Tick())
	require.False(t, m.Tick())

	// The answers recorded before expiry ride along.
	answers, _, err := m.BeginFinalize()
	require.NoError(t, err)
	require.Equal(t, map[string]string{"q1": "a"}, answers)
}

func TestMachine_ManualConfirmAfterTimerIsInFlight(t *testing.T) {
	m := testMachine(t, true, time.Second)
	m.Start()
	require.True(t, m.Tick())

	require.ErrorIs(t, m.ConfirmSubmit(), ErrSubmitInFlight)
	require.Equal(t, SubmitTimer, m.Snapshot().SubmitReason)
}

func TestMachine_ConfirmSubmitTransitions(t *testing.T) {
	m := testMachine(t, true, time.Minute)
	m.Start()

	unanswered, err := m.RequestSubmit()
	require.NoError(t, err)
	require.Equal(t, 3, unanswered)

	require.NoError(t, m.ConfirmSubmit())
	require.Equal(t, StateSubmitting, m.State())
	require.Equal(t, SubmitManual, m.Snapshot().SubmitReason)

	// No answering or navigating after the submit intent is set.
	require.ErrorIs(t, m.Answer("q1", "a"), ErrNotInProgress)
	require.ErrorIs(t, m.Next(), ErrNotInProgress)

	// A second confirm while finalize is pending reports in-flight.
	require.ErrorIs(t, m.ConfirmSubmit(), ErrSubmitInFlight)

	_, _, err = m.BeginFinalize()
	require.NoError(t, err)
	m.FinalizeSucceeded()
	require.Equal(t, StateCompleted, m.State())
	require.ErrorIs(t, m.ConfirmSubmit(), ErrAlreadyCompleted)
}

func TestMachine_FinalizeRetryKeepsAnswers(t *testing.T) {
	m := testMachine(t, true, time.Minute)
	m.Start()
	require.NoError(t, m.Answer("q1", "b"))
	require.NoError(t, m.ConfirmSubmit())

	answers, _, err := m.BeginFinalize()
	require.NoError(t, err)
	require.Len(t, answers, 1)

	// Only one attempt may be in flight.
	_, _, err = m.BeginFinalize()
	require.ErrorIs(t, err, ErrSubmitInFlight)

	// A failed attempt releases the claim without losing state.
	m.FinalizeFailed()
	require.Equal(t, StateSubmitting, m.State())
	require.Equal(t, 1, m.FinalizeAttempts())
	require.True(t, m.NeedsFinalize())

	answers, _, err = m.BeginFinalize()
	require.NoError(t, err)
	require.Equal(t, "b", answers["q1"])

	m.FinalizeSucceeded()
	require.Equal(t, StateCompleted, m.State())
	require.False(t, m.NeedsFinalize())
}

func TestMachine_FlagsAppendOnly(t *testing.T) {
	m := testMachine(t, true, time.Minute)
	m.Start()

	require.NoError(t, m.AddFlag(model.FlagFocusLoss, "window blurred"))
	require.NoError(t, m.AddFlag(model.FlagFullscreenExit, ""))
	require.ErrorIs(t, m.AddFlag(model.FlagType("MADE_UP"), ""), ErrUnknownFlagType)
	require.Equal(t, 2, m.Snapshot().FlagCount)

	require.NoError(t, m.ConfirmSubmit())
	_, flags, err := m.BeginFinalize()
	require.NoError(t, err)
	require.Len(t, flags, 2)
	require.Equal(t, model.FlagFocusLoss, flags[0].Type)
}

func TestMachine_ReviewToggle(t *testing.T) {
	m := testMachine(t, true, time.Minute)
	m.Start()

	require.NoError(t, m.ToggleReview("q2"))
	require.Equal(t, []string{"q2"}, m.Snapshot().Review)

	require.NoError(t, m.ToggleReview("q2"))
	require.Empty(t, m.Snapshot().Review)

	// Marked-for-review has no effect on submission eligibility.
	require.NoError(t, m.ToggleReview("q1"))
	require.NoError(t, m.ConfirmSubmit())
}

func TestMachine_SnapshotIsACopy(t *testing.T) {
	m := testMachine(t, true, time.Minute)
	m.Start()
	require.NoError(t, m.Answer("q1", "a"))

	snap := m.Snapshot()
	snap.Answers["q1"] = "tampered"
	require.Equal(t, "a", m.Snapshot().Answers["q1"])
}
