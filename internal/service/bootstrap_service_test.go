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

type fakeClaimer struct {
	participantID int
	examID        uuid.UUID
	err           error
	calls         int
}

func (f *fakeClaimer) ValidateAndClaim(_ context.Context, _ string) (int, uuid.UUID, error) {
	f.calls++
	return f.participantID, f.examID, f.err
}

type fakeExamLoader struct{ exam *model.Exam }

func (f *fakeExamLoader) GetByID(_ context.Context, _ uuid.UUID) (*model.Exam, error) {
	if f.exam == nil {
		return nil, pgx.ErrNoRows
	}
	return f.exam, nil
}

type fakeQuestionLoader struct{ questions []model.Question }

func (f *fakeQuestionLoader) ListByExam(_ context.Context, _ uuid.UUID) ([]model.Question, error) {
	return f.questions, nil
}

type fakeParticipantLoader struct{ participant *model.Participant }

func (f *fakeParticipantLoader) GetByID(_ context.Context, _ int) (*model.Participant, error) {
	if f.participant == nil {
		return nil, pgx.ErrNoRows
	}
	return f.participant, nil
}

type fakeCompletionChecker struct{ completed bool }

func (f *fakeCompletionChecker) HasCompleted(_ context.Context, _ uuid.UUID, _ int) (bool, error) {
	return f.completed, nil
}

func bootstrapFixture(t *testing.T) (*fakeClaimer, *fakeExamLoader, *fakeQuestionLoader, *fakeParticipantLoader, *fakeCompletionChecker, *BootstrapService) {
	t.Helper()
	examID := uuid.New()
	now := time.Now()

	claimer := &fakeClaimer{participantID: 5, examID: examID}
	exams := &fakeExamLoader{exam: &model.Exam{
		ID:        examID,
		Title:     "Network Fundamentals",
		Status:    model.ExamStatusPublished,
		StartTime: now.Add(-time.Hour),
		EndTime:   now.Add(time.Hour),
	}}
	questions := &fakeQuestionLoader{questions: []model.Question{
		{ID: uuid.New(), Options: []model.Option{{ID: "a"}, {ID: "b"}}, CorrectOptionID: "a"},
	}}
	participants := &fakeParticipantLoader{participant: &model.Participant{ID: 5, Name: "Riley"}}
	completions := &fakeCompletionChecker{}

	svc := NewBootstrapService(claimer, exams, questions, participants, completions)
	return claimer, exams, questions, participants, completions, svc
}

func TestBootstrap_Ready(t *testing.T) {
	claimer, _, _, _, _, svc := bootstrapFixture(t)

	res, err := svc.Bootstrap(context.Background(), "tok")
	require.NoError(t, err)
	require.Equal(t, BootstrapReady, res.State)
	require.Equal(t, 5, res.Participant.ID)
	require.Len(t, res.Questions, 1)
	require.Equal(t, 1, claimer.calls, "the single-use claim runs exactly once")
}

func TestBootstrap_AlreadyCompleted(t *testing.T) {
	_, _, _, _, completions, svc := bootstrapFixture(t)
	completions.completed = true

	res, err := svc.Bootstrap(context.Background(), "tok")
	require.NoError(t, err)
	require.Equal(t, BootstrapAlreadyCompleted, res.State)
	require.Nil(t, res.Questions, "no content ships to a finished participant")
}

func TestBootstrap_TokenErrorPassesThrough(t *testing.T) {
	claimer, _, _, _, _, svc := bootstrapFixture(t)
	claimer.err = ErrTokenAlreadyUsed

	_, err := svc.Bootstrap(context.Background(), "tok")
	require.ErrorIs(t, err, ErrTokenAlreadyUsed)
}

func TestBootstrap_ExamNotOngoing(t *testing.T) {
	_, exams, _, _, _, svc := bootstrapFixture(t)
	exams.exam.StartTime = time.Now().Add(time.Hour)
	exams.exam.EndTime = time.Now().Add(2 * time.Hour)

	_, err := svc.Bootstrap(context.Background(), "tok")
	require.ErrorIs(t, err, ErrExamNotAvailable)
}

func TestBootstrap_NoQuestions(t *testing.T) {
	_, _, questions, _, _, svc := bootstrapFixture(t)
	questions.questions = nil

	_, err := svc.Bootstrap(context.Background(), "tok")
	require.ErrorIs(t, err, ErrNoQuestions)
}

func TestBootstrap_MissingParticipant(t *testing.T) {
	_, _, _, participants, _, svc := bootstrapFixture(t)
	participants.participant = nil

	_, err := svc.Bootstrap(context.Background(), "tok")
	require.ErrorIs(t, err, ErrParticipantNotFound)
}
