package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the stored states of an exam.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusOngoing   ExamStatus = "ONGOING"
	ExamStatusCompleted ExamStatus = "COMPLETED"
)

// EffectiveStatus is an exam's status as computed from the current time
// against its scheduled window. It may override the stored status.
type EffectiveStatus string

const (
	EffectiveUpcoming  EffectiveStatus = "UPCOMING"
	EffectiveOngoing   EffectiveStatus = "ONGOING"
	EffectiveCompleted EffectiveStatus = "COMPLETED"
)

// Exam represents an exam entity. Questions are embedded and ordered, not a
// separate top-level collection.
type Exam struct {
	ID                uuid.UUID  `json:"id"`
	OwnerID           int        `json:"owner_id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	DurationMinutes   int        `json:"duration_minutes"`
	AllowBacktracking bool       `json:"allow_backtracking"`
	JoinCode          string     `json:"join_code"`
	StartTime         time.Time  `json:"start_time"`
	EndTime           time.Time  `json:"end_time"`
	Status            ExamStatus `json:"status"`
	QuestionCount     int        `json:"question_count,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// EffectiveStatusAt derives the exam's status from the clock. A stored
// COMPLETED always wins; otherwise the schedule window decides, regardless
// of the stored status. The window is half-open: [StartTime, EndTime) is
// ONGOING, so now == EndTime is already COMPLETED.
func (e *Exam) EffectiveStatusAt(now time.Time) EffectiveStatus {
	if e.Status == ExamStatusCompleted {
		return EffectiveCompleted
	}
	if !now.Before(e.EndTime) {
		return EffectiveCompleted
	}
	if !now.Before(e.StartTime) {
		return EffectiveOngoing
	}
	return EffectiveUpcoming
}

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	Title             string    `json:"title" binding:"required,min=3,max=255"`
	Description       string    `json:"description" binding:"max=2000"`
	DurationMinutes   int       `json:"duration_minutes" binding:"required,min=1,max=480"`
	AllowBacktracking bool      `json:"allow_backtracking"`
	StartTime         time.Time `json:"start_time" binding:"required"`
	EndTime           time.Time `json:"end_time" binding:"required,gtfield=StartTime"`
}

// UpdateExamRequest is the payload for updating an existing draft exam.
type UpdateExamRequest struct {
	Title             string     `json:"title" binding:"omitempty,min=3,max=255"`
	Description       *string    `json:"description" binding:"omitempty,max=2000"`
	DurationMinutes   int        `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
	AllowBacktracking *bool      `json:"allow_backtracking" binding:"omitempty"`
	StartTime         *time.Time `json:"start_time" binding:"omitempty"`
	EndTime           *time.Time `json:"end_time" binding:"omitempty"`
}

// ExamPayload is the Redis-cached payload sent to participants (no correct
// answers).
type ExamPayload struct {
	ExamID            uuid.UUID                `json:"exam_id"`
	Title             string                   `json:"title"`
	DurationMinutes   int                      `json:"duration_minutes"`
	AllowBacktracking bool                     `json:"allow_backtracking"`
	Questions         []QuestionForParticipant `json:"questions"`
}
