package model

import (
	"time"

	"github.com/google/uuid"
)

// FlagType is the closed enumeration of suspicious-activity event kinds
// reported by the secure browser during a session.
type FlagType string

const (
	FlagVisibilityChange  FlagType = "VISIBILITY_CHANGE"
	FlagFullscreenExit    FlagType = "FULLSCREEN_EXIT"
	FlagFocusLoss         FlagType = "FOCUS_LOSS"
	FlagCopyPasteAttempt  FlagType = "COPY_PASTE_ATTEMPT"
	FlagShortcutAttempt   FlagType = "SHORTCUT_ATTEMPT"
	FlagAutomationTool    FlagType = "AUTOMATION_TOOL"
	FlagDevToolsDetected  FlagType = "DEVTOOLS_DETECTED"
)

// KnownFlagType reports whether t is one of the recognized flag kinds.
// Unknown kinds are rejected at the transport boundary so the stored audit
// trail stays a closed set.
func KnownFlagType(t FlagType) bool {
	switch t {
	case FlagVisibilityChange, FlagFullscreenExit, FlagFocusLoss,
		FlagCopyPasteAttempt, FlagShortcutAttempt, FlagAutomationTool,
		FlagDevToolsDetected:
		return true
	}
	return false
}

// FlaggedEvent records a single suspicious-activity observation. The list
// held by a session is append-only; events are merged into the submission
// at finalize time and also archived to the exam_flags audit table.
type FlaggedEvent struct {
	Type          FlagType  `json:"type"`
	At            time.Time `json:"at"`
	ParticipantID int       `json:"participant_id"`
	ExamID        uuid.UUID `json:"exam_id"`
	Details       string    `json:"details,omitempty"`
}
