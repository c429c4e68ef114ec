package model

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionStatus enumerates submission states.
type SubmissionStatus string

const (
	SubmissionInProgress SubmissionStatus = "IN_PROGRESS"
	SubmissionCompleted  SubmissionStatus = "COMPLETED"
)

// Submission is a participant's attempt at an exam, unique per
// (exam_id, participant_id). Once COMPLETED the record is immutable from
// the client's perspective: later finalize attempts are rejected without
// touching the stored answers.
type Submission struct {
	ID            uuid.UUID         `json:"id"`
	ExamID        uuid.UUID         `json:"exam_id"`
	ParticipantID int               `json:"participant_id"`
	Status        SubmissionStatus  `json:"status"`
	Answers       map[string]string `json:"answers"`
	FlaggedEvents []FlaggedEvent    `json:"flagged_events"`
	StartedAt     time.Time         `json:"started_at"`
	SubmittedAt   *time.Time        `json:"submitted_at,omitempty"`
}
