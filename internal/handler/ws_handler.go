package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/proctorly/proctorly-backend/internal/config"
	"github.com/proctorly/proctorly-backend/internal/middleware"
	"github.com/proctorly/proctorly-backend/internal/model"
	"github.com/proctorly/proctorly-backend/internal/response"
	"github.com/proctorly/proctorly-backend/internal/session"
	ws "github.com/proctorly/proctorly-backend/internal/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowed list permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams exam-taking actions over a WebSocket, driving the
// session state machine. Every action is answered with either the refreshed
// snapshot, a notice (for rejected actions), or a terminal event.
type WSHandler struct {
	manager  *session.Manager
	rdb      *redis.Client
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(manager *session.Manager, rdb *redis.Client, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		manager:  manager,
		rdb:      rdb,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/participant/session/:exam_id/stream
// Upgrades to a WebSocket carrying the exam-taking action stream.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	machine, ok := h.manager.Get(examID, claims.UserID)
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("participant_id", claims.UserID).
		Str("exam_id", examID.String()).
		Logger()
	wsLog.Info().Msg("Participant connected")

	answersKey := config.CacheKey.ParticipantAnswersKey(examID.String(), claims.UserID)

	// Resync the client immediately on connect.
	ws.WriteTyped(conn, ws.StateResponse{Event: ws.EventState, Snapshot: machine.Snapshot()})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		action, payload := peekAction(raw)
		switch action {
		case ws.ActionAnswer:
			h.handleAnswer(conn, machine, answersKey, payload)
		case ws.ActionNext:
			h.respond(conn, machine, machine.Next())
		case ws.ActionPrevious:
			h.respond(conn, machine, machine.Previous())
		case ws.ActionGoto:
			var req ws.GotoRequest
			if !decode(conn, payload, &req) {
				continue
			}
			h.respond(conn, machine, machine.JumpTo(req.Index))
		case ws.ActionMarkReview:
			var req ws.MarkReviewRequest
			if !decode(conn, payload, &req) {
				continue
			}
			h.respond(conn, machine, machine.ToggleReview(req.QuestionID))
		case ws.ActionFlag:
			var req ws.FlagRequest
			if !decode(conn, payload, &req) {
				continue
			}
			h.respond(conn, machine, machine.AddFlag(model.FlagType(req.Type), req.Details))
		case ws.ActionSubmitRequest:
			h.handleSubmitRequest(conn, machine)
		case ws.ActionSubmitConfirm:
			h.handleSubmitConfirm(conn, wsLog, machine)
		case ws.ActionState:
			ws.WriteTyped(conn, ws.StateResponse{Event: ws.EventState, Snapshot: machine.Snapshot()})
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(action)).Msg("Unknown action")
			ws.WriteError(conn, "unknown action: "+string(action))
		}
	}
}

// peekAction extracts the action field without losing the raw payload.
func peekAction(raw []byte) (ws.Action, []byte) {
	var env ws.RequestEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", raw
	}
	return env.Action, raw
}

func decode(conn *websocket.Conn, raw []byte, dst interface{}) bool {
	if err := json.Unmarshal(raw, dst); err != nil {
		ws.WriteError(conn, "malformed payload")
		return false
	}
	return true
}

// respond maps a machine transition result onto the wire: rejected actions
// become notices (the session stays live), successes echo the new snapshot.
func (h *WSHandler) respond(conn *websocket.Conn, machine *session.Machine, err error) {
	if err == nil {
		ws.WriteTyped(conn, ws.StateResponse{Event: ws.EventState, Snapshot: machine.Snapshot()})
		return
	}
	switch {
	case errors.Is(err, session.ErrBacktrackingDisabled):
		ws.WriteTyped(conn, ws.NoticeResponse{
			Event:  ws.EventNotice,
			Code:   "BACKTRACKING_DISABLED",
			Detail: "Returning to earlier questions is disabled for this exam.",
		})
	case errors.Is(err, session.ErrAlreadyCompleted):
		ws.WriteTyped(conn, ws.CompletedResponse{
			Event:  ws.EventCompleted,
			Reason: string(machine.Snapshot().SubmitReason),
		})
	case errors.Is(err, session.ErrNotInProgress):
		// The timer may have fired between the client's read and this
		// action; report the current state instead of a dead error.
		snap := machine.Snapshot()
		if snap.State == session.StateCompleted || snap.State == session.StateSubmitting {
			ws.WriteTyped(conn, ws.CompletedResponse{Event: ws.EventCompleted, Reason: string(snap.SubmitReason)})
			return
		}
		ws.WriteError(conn, err.Error())
	default:
		ws.WriteTyped(conn, ws.NoticeResponse{Event: ws.EventNotice, Code: "REJECTED", Detail: err.Error()})
	}
}

func (h *WSHandler) handleAnswer(conn *websocket.Conn, machine *session.Machine, answersKey string, raw []byte) {
	var req ws.AnswerRequest
	if !decode(conn, raw, &req) {
		return
	}
	if req.QuestionID == "" || req.OptionID == "" {
		ws.WriteError(conn, "q_id and opt_id are required")
		return
	}
	if _, err := uuid.Parse(req.QuestionID); err != nil {
		ws.WriteError(conn, "invalid q_id format")
		return
	}

	if err := machine.Answer(req.QuestionID, req.OptionID); err != nil {
		h.respond(conn, machine, err)
		return
	}

	// Mirror the answer into Redis so a crashed process can be audited
	// against the live answer set. The machine remains the source of truth.
	if err := h.rdb.HSet(context.Background(), answersKey, req.QuestionID, req.OptionID).Err(); err != nil {
		h.log.Warn().Err(err).Msg("Answer mirror write failed")
	}

	ws.WriteTyped(conn, ws.StateResponse{Event: ws.EventState, Snapshot: machine.Snapshot()})
}

func (h *WSHandler) handleSubmitRequest(conn *websocket.Conn, machine *session.Machine) {
	unanswered, err := machine.RequestSubmit()
	if err != nil {
		h.respond(conn, machine, err)
		return
	}
	ws.WriteTyped(conn, ws.SubmitPendingResponse{Event: ws.EventSubmitPending, Unanswered: unanswered})
}

func (h *WSHandler) handleSubmitConfirm(conn *websocket.Conn, wsLog zerolog.Logger, machine *session.Machine) {
	if err := machine.ConfirmSubmit(); err != nil {
		if errors.Is(err, session.ErrSubmitInFlight) {
			// The timer beat the confirmation; finalize proceeds either way.
			wsLog.Debug().Msg("Manual confirm raced with timer submit")
		} else {
			h.respond(conn, machine, err)
			return
		}
	}

	if err := h.manager.Finalize(context.Background(), machine); err != nil {
		ws.WriteTyped(conn, ws.NoticeResponse{
			Event:  ws.EventNotice,
			Code:   "FINALIZE_RETRYING",
			Detail: "Your submission is saved and will be recorded shortly.",
		})
		return
	}

	ws.WriteTyped(conn, ws.CompletedResponse{
		Event:  ws.EventCompleted,
		Reason: string(machine.Snapshot().SubmitReason),
	})
}
