package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/proctorly/proctorly-backend/internal/model"
	"golang.org/x/sync/errgroup"
)

// Bootstrap content errors. Terminal for the session; the user is shown the
// reason and offered only an exit action.
var (
	ErrExamNotAvailable    = errors.New("exam is not currently ongoing")
	ErrNoQuestions         = errors.New("exam has no questions")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrExamNotFound        = errors.New("exam not found")
)

// BootstrapState enumerates the session bootstrap states.
type BootstrapState string

const (
	BootstrapValidating       BootstrapState = "VALIDATING"
	BootstrapLoadingContent   BootstrapState = "LOADING_CONTENT"
	BootstrapReady            BootstrapState = "READY"
	BootstrapAlreadyCompleted BootstrapState = "ALREADY_COMPLETED"
	BootstrapError            BootstrapState = "ERROR"
)

// BootstrapResult is the terminal outcome of a bootstrap run. On READY it
// carries everything the environment guard and state machine need.
type BootstrapResult struct {
	State       BootstrapState
	Participant *model.Participant
	Exam        *model.Exam
	Questions   []model.Question
}

// TokenClaimer validates and claims an entry token (see EntryTokenService).
type TokenClaimer interface {
	ValidateAndClaim(ctx context.Context, token string) (int, uuid.UUID, error)
}

// ExamLoader loads exam content.
type ExamLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
}

// QuestionLoader loads an exam's ordered questions.
type QuestionLoader interface {
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error)
}

// ParticipantLoader loads participant profiles.
type ParticipantLoader interface {
	GetByID(ctx context.Context, id int) (*model.Participant, error)
}

// CompletionChecker reports whether a COMPLETED submission already exists.
type CompletionChecker interface {
	HasCompleted(ctx context.Context, examID uuid.UUID, participantID int) (bool, error)
}

// BootstrapService turns a claimed entry token into a ready-to-run exam
// session: VALIDATING → LOADING_CONTENT → READY | ALREADY_COMPLETED | ERROR.
type BootstrapService struct {
	tokens       TokenClaimer
	exams        ExamLoader
	questions    QuestionLoader
	participants ParticipantLoader
	submissions  CompletionChecker
	now          func() time.Time
}

// NewBootstrapService creates a BootstrapService.
func NewBootstrapService(
	tokens TokenClaimer,
	exams ExamLoader,
	questions QuestionLoader,
	participants ParticipantLoader,
	submissions CompletionChecker,
) *BootstrapService {
	return &BootstrapService{
		tokens:       tokens,
		exams:        exams,
		questions:    questions,
		participants: participants,
		submissions:  submissions,
		now:          time.Now,
	}
}

// Bootstrap runs the full sequence for one entry token. Token and content
// failures are returned as errors (the handler maps them onto the finite
// error states); ALREADY_COMPLETED is not an error, it is a valid terminal
// state.
func (s *BootstrapService) Bootstrap(ctx context.Context, token string) (*BootstrapResult, error) {
	// VALIDATING: claim the token — single use, so this runs exactly once
	// per session attempt.
	participantID, examID, err := s.tokens.ValidateAndClaim(ctx, token)
	if err != nil {
		return nil, err
	}

	// LOADING_CONTENT: exam and participant profile load concurrently.
	var (
		exam        *model.Exam
		questions   []model.Question
		participant *model.Participant
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		e, err := s.exams.GetByID(gctx, examID)
		if err != nil {
			return ErrExamNotFound
		}
		exam = e
		qs, err := s.questions.ListByExam(gctx, examID)
		if err != nil {
			return fmt.Errorf("load questions: %w", err)
		}
		questions = qs
		return nil
	})
	g.Go(func() error {
		p, err := s.participants.GetByID(gctx, participantID)
		if err != nil {
			return ErrParticipantNotFound
		}
		participant = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// A session may only start while the exam is effectively ONGOING and
	// holds at least one question.
	if exam.EffectiveStatusAt(s.now()) != model.EffectiveOngoing {
		return nil, ErrExamNotAvailable
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	// Idempotent guard against re-entry after completion.
	done, err := s.submissions.HasCompleted(ctx, examID, participantID)
	if err != nil {
		return nil, fmt.Errorf("check prior submission: %w", err)
	}
	if done {
		return &BootstrapResult{
			State:       BootstrapAlreadyCompleted,
			Participant: participant,
			Exam:        exam,
		}, nil
	}

	return &BootstrapResult{
		State:       BootstrapReady,
		Participant: participant,
		Exam:        exam,
		Questions:   questions,
	}, nil
}
