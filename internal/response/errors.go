package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden           ErrCode = "FORBIDDEN"
	ErrParticipantOnly     ErrCode = "PARTICIPANT_ACCESS_ONLY"
	ErrExaminerOnly        ErrCode = "EXAMINER_ACCESS_ONLY"
	ErrNotSecureBrowser    ErrCode = "NOT_SECURE_BROWSER"
	ErrEnvironmentBlocked  ErrCode = "ENVIRONMENT_BLOCKED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Registration ──────────────────────────────────────────────────
	ErrEmailTaken            ErrCode = "EMAIL_TAKEN"
	ErrLicenseKeyUnavailable ErrCode = "LICENSE_KEY_UNAVAILABLE"

	// ─── Entry tokens ──────────────────────────────────────────────────
	ErrEntryTokenNotFound ErrCode = "ENTRY_TOKEN_NOT_FOUND"
	ErrEntryTokenUsed     ErrCode = "ENTRY_TOKEN_ALREADY_USED"
	ErrEntryTokenExpired  ErrCode = "ENTRY_TOKEN_EXPIRED"

	// ─── Exam / session ────────────────────────────────────────────────
	ErrExamNotAvailable  ErrCode = "EXAM_NOT_AVAILABLE"
	ErrExamNotPublished  ErrCode = "EXAM_NOT_PUBLISHED"
	ErrNotExamOwner      ErrCode = "NOT_EXAM_OWNER"
	ErrNoQuestions       ErrCode = "NO_QUESTIONS"
	ErrAlreadyCompleted  ErrCode = "ALREADY_COMPLETED"
	ErrNoActiveSession   ErrCode = "NO_ACTIVE_SESSION"
	ErrJoinCodeExhausted ErrCode = "JOIN_CODE_EXHAUSTED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
// Every failure message maps to exactly one next action for the user
// (retry, exit, or return to the dashboard) — never a dead end.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid. Please sign in again."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrParticipantOnly:
		return "This resource is restricted to exam participants."
	case ErrExaminerOnly:
		return "This resource is restricted to examiners."
	case ErrNotSecureBrowser:
		return "This exam can only be opened inside the secure browser. Return to the dashboard and relaunch."
	case ErrEnvironmentBlocked:
		return "Your environment failed a required security check. Exit and restart the exam from the dashboard."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "The identifier format is invalid."
	case ErrInvalidPayload:
		return "The request payload is invalid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "The requested resource was not found."
	case ErrConflict:
		return "The resource already exists."

	// ─── Registration ──────────────────────────────────────────────────
	case ErrEmailTaken:
		return "An account with this email already exists. Sign in instead."
	case ErrLicenseKeyUnavailable:
		return "This license key is not valid or has already been used. Contact your administrator for a new one."

	// ─── Entry tokens ──────────────────────────────────────────────────
	case ErrEntryTokenNotFound:
		return "This exam entry link is not recognized. Return to the dashboard and request a new one."
	case ErrEntryTokenUsed:
		return "This exam entry link has already been used. Return to the dashboard and request a new one."
	case ErrEntryTokenExpired:
		return "This exam entry link has expired. Return to the dashboard and request a new one."

	// ─── Exam / session ────────────────────────────────────────────────
	case ErrExamNotAvailable:
		return "This exam is not currently open for taking."
	case ErrExamNotPublished:
		return "This exam has not been published yet."
	case ErrNotExamOwner:
		return "You are not the owner of this exam."
	case ErrNoQuestions:
		return "This exam has no questions."
	case ErrAlreadyCompleted:
		return "You have already completed this exam."
	case ErrNoActiveSession:
		return "No active exam session was found. Return to the dashboard to start again."
	case ErrJoinCodeExhausted:
		return "Could not generate a unique join code. Please try again."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
