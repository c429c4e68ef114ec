package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/proctorly/proctorly-backend/internal/model"
)

// State enumerates the exam-taking machine states.
type State string

const (
	StateStarting   State = "STARTING"
	StateInProgress State = "IN_PROGRESS"
	StateSubmitting State = "SUBMITTING"
	StateCompleted  State = "COMPLETED"
)

// SubmitReason records what moved the machine into SUBMITTING.
type SubmitReason string

const (
	SubmitManual SubmitReason = "MANUAL"
	SubmitTimer  SubmitReason = "TIMER"
)

// Machine errors.
var (
	ErrNotInProgress        = errors.New("session is not in progress")
	ErrBacktrackingDisabled = errors.New("backtracking is disabled for this exam")
	ErrIndexOutOfRange      = errors.New("question index out of range")
	ErrUnknownQuestion      = errors.New("question is not the current one")
	ErrUnknownOption        = errors.New("option does not belong to the current question")
	ErrUnknownFlagType      = errors.New("unknown flag type")
	ErrSubmitInFlight       = errors.New("submission already in flight")
	ErrNotSubmitting        = errors.New("session is not submitting")
	ErrAlreadyCompleted     = errors.New("submission already completed")
)

// QuestionRef is the slice of a question the machine needs: its identity and
// the ids of its options. Texts stay in the cached exam payload.
type QuestionRef struct {
	ID        string
	OptionIDs []string
}

// Config describes one exam-taking session.
type Config struct {
	ExamID            uuid.UUID
	ParticipantID     int
	Questions         []QuestionRef
	AllowBacktracking bool
	Duration          time.Duration
	// Now is the clock; defaults to time.Now. Injected in tests.
	Now func() time.Time
}

// Machine is the timed, gated question-answering loop for one session:
// STARTING → IN_PROGRESS → SUBMITTING → COMPLETED. All transitions are
// applied under a single mutex, so no two are ever concurrent. The timer is
// driven externally by Tick, once per second.
type Machine struct {
	mu  sync.Mutex
	cfg Config

	state     State
	cursor    int
	remaining int // seconds
	answers   map[string]string
	review    map[string]struct{}
	flags     []model.FlaggedEvent

	startedAt    time.Time
	submittedAt  time.Time
	submitReason SubmitReason

	finalizeInFlight bool
	finalizeAttempts int
}

// Snapshot is a consistent, copied view of the machine for clients
// resynchronizing after a reconnect.
type Snapshot struct {
	State        State             `json:"state"`
	Cursor       int               `json:"cursor"`
	Remaining    int               `json:"remaining_seconds"`
	Answers      map[string]string `json:"answers"`
	Review       []string          `json:"marked_for_review"`
	FlagCount    int               `json:"flag_count"`
	Unanswered   int               `json:"unanswered"`
	SubmitReason SubmitReason      `json:"submit_reason,omitempty"`
}

// New creates a machine in STARTING.
func New(cfg Config) *Machine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Machine{
		cfg:     cfg,
		state:   StateStarting,
		answers: make(map[string]string),
		review:  make(map[string]struct{}),
	}
}

// Start arms the countdown and moves to IN_PROGRESS. Calling it twice is a
// no-op.
func (m *Machine) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateStarting {
		return
	}
	m.state = StateInProgress
	m.remaining = int(m.cfg.Duration.Seconds())
	m.startedAt = m.cfg.Now()
	m.cursor = 0
}

// Tick decrements the countdown by one second. When it reaches zero the
// machine transitions to SUBMITTING exactly once, carrying whatever answers
// exist at that instant; the state change itself is the idempotency guard
// against a near-simultaneous manual submit. Returns true on the tick that
// fired the transition.
func (m *Machine) Tick() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateInProgress {
		return false
	}
	m.remaining--
	if m.remaining > 0 {
		return false
	}
	m.remaining = 0
	m.beginSubmitLocked(SubmitTimer)
	return true
}

// Answer records the chosen option for the current question. Last write
// wins; the cursor does not advance.
func (m *Machine) Answer(questionID, optionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateInProgress {
		return ErrNotInProgress
	}
	q := m.cfg.Questions[m.cursor]
	if q.ID != questionID {
		return ErrUnknownQuestion
	}
	valid := false
	for _, id := range q.OptionIDs {
		if id == optionID {
			valid = true
			break
		}
	}
	if !valid {
		return ErrUnknownOption
	}
	m.answers[questionID] = optionID
	return nil
}

// Next moves the cursor forward. Always permitted while not on the last
// question.
func (m *Machine) Next() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateInProgress {
		return ErrNotInProgress
	}
	if m.cursor >= len(m.cfg.Questions)-1 {
		return ErrIndexOutOfRange
	}
	m.cursor++
	return nil
}

// Previous moves the cursor back by one. Rejected when backtracking is
// disabled: the cursor stays where it is. This is a hard constraint, not a
// UI hint.
func (m *Machine) Previous() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateInProgress {
		return ErrNotInProgress
	}
	return m.jumpLocked(m.cursor - 1)
}

// JumpTo moves the cursor to an arbitrary index, subject to the same
// backtracking rule as Previous.
func (m *Machine) JumpTo(idx int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateInProgress {
		return ErrNotInProgress
	}
	return m.jumpLocked(idx)
}

func (m *Machine) jumpLocked(idx int) error {
	if idx < 0 || idx >= len(m.cfg.Questions) {
		return ErrIndexOutOfRange
	}
	if idx < m.cursor && !m.cfg.AllowBacktracking {
		return ErrBacktrackingDisabled
	}
	m.cursor = idx
	return nil
}

// ToggleReview flips a question in or out of the advisory marked-for-review
// set. It has no effect on navigation or submission eligibility.
func (m *Machine) ToggleReview(questionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateInProgress {
		return ErrNotInProgress
	}
	if _, ok := m.review[questionID]; ok {
		delete(m.review, questionID)
	} else {
		m.review[questionID] = struct{}{}
	}
	return nil
}

// AddFlag appends a suspicious-activity event. The list is append-only and
// only grows while the session is in progress.
func (m *Machine) AddFlag(flagType model.FlagType, details string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateInProgress {
		return ErrNotInProgress
	}
	if !model.KnownFlagType(flagType) {
		return ErrUnknownFlagType
	}
	m.flags = append(m.flags, model.FlaggedEvent{
		Type:          flagType,
		At:            m.cfg.Now(),
		ParticipantID: m.cfg.ParticipantID,
		ExamID:        m.cfg.ExamID,
		Details:       details,
	})
	return nil
}

// RequestSubmit reports the number of unanswered questions so the client can
// show the confirmation step. It does not transition.
func (m *Machine) RequestSubmit() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateInProgress {
		return 0, ErrNotInProgress
	}
	return m.unansweredLocked(), nil
}

// ConfirmSubmit moves IN_PROGRESS → SUBMITTING after explicit user
// confirmation. If the timer already fired, the confirmation is a no-op
// reported as ErrSubmitInFlight.
func (m *Machine) ConfirmSubmit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case StateInProgress:
		m.beginSubmitLocked(SubmitManual)
		return nil
	case StateSubmitting:
		return ErrSubmitInFlight
	case StateCompleted:
		return ErrAlreadyCompleted
	default:
		return ErrNotInProgress
	}
}

func (m *Machine) beginSubmitLocked(reason SubmitReason) {
	m.state = StateSubmitting
	m.submitReason = reason
	m.submittedAt = m.cfg.Now()
}

// BeginFinalize claims the finalize step, returning copies of the answers
// map and flag list to persist. Only one finalize attempt may be in flight
// at a time; a failed attempt releases the claim so a retry can follow
// without resetting the submit intent.
func (m *Machine) BeginFinalize() (map[string]string, []model.FlaggedEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateSubmitting {
		return nil, nil, ErrNotSubmitting
	}
	if m.finalizeInFlight {
		return nil, nil, ErrSubmitInFlight
	}
	m.finalizeInFlight = true

	answers := make(map[string]string, len(m.answers))
	for k, v := range m.answers {
		answers[k] = v
	}
	flags := make([]model.FlaggedEvent, len(m.flags))
	copy(flags, m.flags)
	return answers, flags, nil
}

// FinalizeSucceeded moves SUBMITTING → COMPLETED.
func (m *Machine) FinalizeSucceeded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateSubmitting {
		return
	}
	m.finalizeInFlight = false
	m.state = StateCompleted
}

// FinalizeFailed releases the in-flight claim but keeps the machine in
// SUBMITTING: the answers are preserved and the finalize step can be
// retried.
func (m *Machine) FinalizeFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finalizeInFlight = false
	m.finalizeAttempts++
}

// NeedsFinalize reports whether a finalize attempt should be started.
func (m *Machine) NeedsFinalize() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateSubmitting && !m.finalizeInFlight
}

// State returns the current machine state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ExamID returns the bound exam id.
func (m *Machine) ExamID() uuid.UUID { return m.cfg.ExamID }

// ParticipantID returns the bound participant id.
func (m *Machine) ParticipantID() int { return m.cfg.ParticipantID }

// StartedAt returns when the countdown was armed.
func (m *Machine) StartedAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startedAt
}

// SubmittedAt returns when the machine entered SUBMITTING.
func (m *Machine) SubmittedAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submittedAt
}

// FinalizeAttempts returns the number of failed finalize attempts so far.
func (m *Machine) FinalizeAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finalizeAttempts
}

// Snapshot returns a copied view of the session.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	answers := make(map[string]string, len(m.answers))
	for k, v := range m.answers {
		answers[k] = v
	}
	review := make([]string, 0, len(m.review))
	for id := range m.review {
		review = append(review, id)
	}

	return Snapshot{
		State:        m.state,
		Cursor:       m.cursor,
		Remaining:    m.remaining,
		Answers:      answers,
		Review:       review,
		FlagCount:    len(m.flags),
		Unanswered:   m.unansweredLocked(),
		SubmitReason: m.submitReason,
	}
}

func (m *Machine) unansweredLocked() int {
	n := 0
	for _, q := range m.cfg.Questions {
		if _, ok := m.answers[q.ID]; !ok {
			n++
		}
	}
	return n
}
