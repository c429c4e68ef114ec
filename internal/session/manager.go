package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/proctorly/proctorly-backend/internal/model"
	"github.com/rs/zerolog"
)

// Finalizer persists the terminal submission record. An "already completed"
// outcome must be reported as ErrAlreadyCompleted; the manager treats it the
// same as success.
type Finalizer interface {
	Finalize(ctx context.Context, examID uuid.UUID, participantID int, answers map[string]string, flags []model.FlaggedEvent, submittedAt time.Time) error
}

// Manager holds the live exam-taking machines, one per (exam, participant)
// pair, and drives their countdowns from a single shared ticker.
type Manager struct {
	mu        sync.Mutex
	sessions  map[string]*Machine
	finalizer Finalizer
	log       zerolog.Logger
}

// NewManager creates a session manager.
func NewManager(finalizer Finalizer, log zerolog.Logger) *Manager {
	return &Manager{
		sessions:  make(map[string]*Machine),
		finalizer: finalizer,
		log:       log.With().Str("component", "session_manager").Logger(),
	}
}

func sessionKey(examID uuid.UUID, participantID int) string {
	return fmt.Sprintf("%s:%d", examID, participantID)
}

// Register stores a machine under its (exam, participant) key. If a machine
// is already live for the pair, the existing one is returned instead — one
// logical session per participant per exam.
func (mgr *Manager) Register(m *Machine) *Machine {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	key := sessionKey(m.ExamID(), m.ParticipantID())
	if existing, ok := mgr.sessions[key]; ok {
		return existing
	}
	mgr.sessions[key] = m
	return m
}

// Get returns the live machine for the pair, if any.
func (mgr *Manager) Get(examID uuid.UUID, participantID int) (*Machine, bool) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	m, ok := mgr.sessions[sessionKey(examID, participantID)]
	return m, ok
}

// Remove drops the machine for the pair. Used on exit (abandoning the
// session) and after completion.
func (mgr *Manager) Remove(examID uuid.UUID, participantID int) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	delete(mgr.sessions, sessionKey(examID, participantID))
}

// Run drives all live machines on a one-second tick until ctx is cancelled.
// Call in a goroutine.
func (mgr *Manager) Run(ctx context.Context) {
	mgr.log.Info().Msg("Session manager started")
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			mgr.log.Info().Msg("Session manager stopping")
			return
		case <-ticker.C:
			mgr.tickAll(ctx)
		}
	}
}

func (mgr *Manager) tickAll(ctx context.Context) {
	mgr.mu.Lock()
	machines := make([]*Machine, 0, len(mgr.sessions))
	for _, m := range mgr.sessions {
		machines = append(machines, m)
	}
	mgr.mu.Unlock()

	for _, m := range machines {
		if fired := m.Tick(); fired {
			mgr.log.Info().
				Str("exam_id", m.ExamID().String()).
				Int("participant_id", m.ParticipantID()).
				Msg("Timer expired, auto-submitting")
		}
		// Covers both the tick that just fired and earlier finalize
		// failures: answers are never dropped, the attempt just repeats
		// on the next tick.
		if m.NeedsFinalize() {
			go mgr.Finalize(ctx, m)
		}
	}
}

// Finalize runs one finalize attempt for the machine. Safe to call from the
// ticker and from a manual-submit handler at the same time: BeginFinalize
// admits a single attempt and the rest observe ErrSubmitInFlight.
func (mgr *Manager) Finalize(ctx context.Context, m *Machine) error {
	answers, flags, err := m.BeginFinalize()
	if err != nil {
		if errors.Is(err, ErrSubmitInFlight) {
			return nil
		}
		return err
	}

	err = mgr.finalizer.Finalize(ctx, m.ExamID(), m.ParticipantID(), answers, flags, m.SubmittedAt())
	if err != nil && !errors.Is(err, ErrAlreadyCompleted) {
		m.FinalizeFailed()
		mgr.log.Error().Err(err).
			Str("exam_id", m.ExamID().String()).
			Int("participant_id", m.ParticipantID()).
			Int("attempts", m.FinalizeAttempts()).
			Msg("Finalize failed, will retry")
		return err
	}

	m.FinalizeSucceeded()
	mgr.Remove(m.ExamID(), m.ParticipantID())
	mgr.log.Info().
		Str("exam_id", m.ExamID().String()).
		Int("participant_id", m.ParticipantID()).
		Str("reason", string(m.Snapshot().SubmitReason)).
		Msg("Submission finalized")
	return nil
}
