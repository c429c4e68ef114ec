package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer        Action = "answer"
	ActionNext          Action = "next"
	ActionPrevious      Action = "previous"
	ActionGoto          Action = "goto"
	ActionMarkReview    Action = "mark_review"
	ActionFlag          Action = "flag"
	ActionSubmitRequest Action = "submit_request"
	ActionSubmitConfirm Action = "submit_confirm"
	ActionState         Action = "state"
	ActionPing          Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest records the chosen option for the current question.
type AnswerRequest struct {
	Action     Action `json:"action"`
	QuestionID string `json:"q_id"`
	OptionID   string `json:"opt_id"`
}

// GotoRequest moves the cursor to an arbitrary question index.
type GotoRequest struct {
	Action Action `json:"action"`
	Index  int    `json:"index"`
}

// MarkReviewRequest toggles a question's marked-for-review state.
type MarkReviewRequest struct {
	Action     Action `json:"action"`
	QuestionID string `json:"q_id"`
}

// FlagRequest reports a suspicious-activity event observed by the client.
type FlagRequest struct {
	Action  Action `json:"action"`
	Type    string `json:"type"`
	Details string `json:"details"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState Event = "state"
	// EventNotice carries a rejected-action explanation (e.g. backtracking
	// disabled) without tearing down the connection.
	EventNotice        Event = "notice"
	EventSubmitPending Event = "submit_pending"
	EventCompleted     Event = "completed"
	EventError         Event = "error"
	EventPong          Event = "pong"
)

// StateResponse is the full session snapshot, sent after every mutating
// action and on reconnect.
type StateResponse struct {
	Event    Event       `json:"event"`
	Snapshot interface{} `json:"snapshot"`
}

// NoticeResponse explains a rejected action. The session continues.
type NoticeResponse struct {
	Event  Event  `json:"event"`
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// SubmitPendingResponse asks the client to confirm submission, reporting how
// many questions remain unanswered.
type SubmitPendingResponse struct {
	Event      Event `json:"event"`
	Unanswered int   `json:"unanswered"`
}

// CompletedResponse tells the client the submission has been accepted and the
// session is over.
type CompletedResponse struct {
	Event  Event  `json:"event"`
	Reason string `json:"reason"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
