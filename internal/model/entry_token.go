package model

import (
	"time"

	"github.com/google/uuid"
)

// EntryTokenStatus enumerates entry token states.
// A token transitions PENDING → CLAIMED at most once, or PENDING → EXPIRED
// when read after its expiry. No other transitions are legal, and rows are
// never deleted (kept for audit).
type EntryTokenStatus string

const (
	EntryTokenPending EntryTokenStatus = "PENDING"
	EntryTokenClaimed EntryTokenStatus = "CLAIMED"
	EntryTokenExpired EntryTokenStatus = "EXPIRED"
)

// EntryToken is the single-use credential binding a participant to an exam
// for one session attempt inside the secure browser.
type EntryToken struct {
	Token         string           `json:"token"`
	ParticipantID int              `json:"participant_id"`
	ExamID        uuid.UUID        `json:"exam_id"`
	Status        EntryTokenStatus `json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
	ExpiresAt     time.Time        `json:"expires_at"`
	ClaimedAt     *time.Time       `json:"claimed_at,omitempty"`
}

// IsExpired reports whether the token's expiry has passed at the given instant.
func (t *EntryToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// IssueTokenRequest is the payload for requesting an entry token.
type IssueTokenRequest struct {
	ExamID string `json:"exam_id" binding:"required,uuid"`
}

// ValidateTokenRequest is the payload for claiming an entry token.
type ValidateTokenRequest struct {
	Token string `json:"token" binding:"required,min=16,max=128"`
}
