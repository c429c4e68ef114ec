package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/proctorly/proctorly-backend/internal/config"
	"github.com/proctorly/proctorly-backend/internal/middleware"
	"github.com/proctorly/proctorly-backend/internal/model"
	"github.com/proctorly/proctorly-backend/internal/repository"
	"github.com/proctorly/proctorly-backend/internal/response"
	"github.com/proctorly/proctorly-backend/internal/service"
	"github.com/proctorly/proctorly-backend/internal/session"
	"github.com/proctorly/proctorly-backend/internal/validator"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// SessionHandler handles the participant session lifecycle: join code lookup,
// entry token issuance, session entry (bootstrap + environment guard), state
// resync, and exit.
type SessionHandler struct {
	entryTokenService *service.EntryTokenService
	bootstrapService  *service.BootstrapService
	guardService      *service.GuardService
	examService       *service.ExamService
	submissionRepo    *repository.SubmissionRepository
	manager           *session.Manager
	rdb               *redis.Client
	log               zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(
	entryTokenService *service.EntryTokenService,
	bootstrapService *service.BootstrapService,
	guardService *service.GuardService,
	examService *service.ExamService,
	submissionRepo *repository.SubmissionRepository,
	manager *session.Manager,
	rdb *redis.Client,
	log zerolog.Logger,
) *SessionHandler {
	return &SessionHandler{
		entryTokenService: entryTokenService,
		bootstrapService:  bootstrapService,
		guardService:      guardService,
		examService:       examService,
		submissionRepo:    submissionRepo,
		manager:           manager,
		rdb:               rdb,
		log:               log.With().Str("component", "session_handler").Logger(),
	}
}

// joinRequest is the payload for resolving a join code.
type joinRequest struct {
	JoinCode string `json:"join_code" binding:"required,len=6"`
}

// enterRequest is the payload for entering an exam session.
type enterRequest struct {
	EntryToken string              `json:"entry_token" binding:"required,min=32,max=128"`
	Guard      service.GuardReport `json:"guard"`
}

// JoinExam godoc
// POST /api/v1/participant/exams/join
// Resolves a join code to an exam summary with its effective status.
func (h *SessionHandler) JoinExam(c *gin.Context) {
	var req joinRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.GetByJoinCode(c.Request.Context(), req.JoinCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if exam.Status == model.ExamStatusDraft {
		// Drafts are invisible to participants even with the right code.
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"exam": gin.H{
			"id":               exam.ID,
			"title":            exam.Title,
			"description":      exam.Description,
			"duration_minutes": exam.DurationMinutes,
			"start_time":       exam.StartTime,
			"end_time":         exam.EndTime,
			"effective_status": exam.EffectiveStatusAt(time.Now()),
		},
	})
}

// IssueEntryToken godoc
// POST /api/v1/participant/exams/:exam_id/entry-token
// Mints a short-lived single-use token for launching the exam in the secure
// browser.
func (h *SessionHandler) IssueEntryToken(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if exam.EffectiveStatusAt(time.Now()) != model.EffectiveOngoing {
		response.Fail(c, http.StatusConflict, response.ErrExamNotAvailable)
		return
	}

	token, err := h.entryTokenService.Issue(c.Request.Context(), claims.UserID, examID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"entry_token": token.Token,
		"expires_at":  token.ExpiresAt,
	})
}

// EnterSession godoc
// POST /api/v1/participant/session/enter
// Runs the full entry sequence: claims the entry token, bootstraps content,
// evaluates the environment guard, and starts the exam-taking state machine.
func (h *SessionHandler) EnterSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	var req enterRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	ctx := c.Request.Context()
	result, err := h.bootstrapService.Bootstrap(ctx, req.EntryToken)
	if err != nil {
		h.bootstrapError(c, err)
		return
	}

	if result.State == service.BootstrapAlreadyCompleted {
		response.Success(c, http.StatusOK, gin.H{
			"state": result.State,
			"exam":  gin.H{"id": result.Exam.ID, "title": result.Exam.Title},
		})
		return
	}

	// The token is bound to a participant; reject a claim made under someone
	// else's JWT.
	if result.Participant.ID != claims.UserID {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	}

	guard := h.guardService.Evaluate(ctx, result.Exam.ID, claims.UserID, req.Guard)
	if guard.State == service.GuardBlocked {
		response.FailWithFields(c, http.StatusForbidden, response.ErrEnvironmentBlocked,
			map[string]string{"failed_check": guard.FailedCheck})
		return
	}

	refs := make([]session.QuestionRef, len(result.Questions))
	for i, q := range result.Questions {
		optIDs := make([]string, len(q.Options))
		for j, opt := range q.Options {
			optIDs[j] = opt.ID
		}
		refs[i] = session.QuestionRef{ID: q.ID.String(), OptionIDs: optIDs}
	}

	machine := session.New(session.Config{
		ExamID:            result.Exam.ID,
		ParticipantID:     claims.UserID,
		Questions:         refs,
		AllowBacktracking: result.Exam.AllowBacktracking,
		Duration:          time.Duration(result.Exam.DurationMinutes) * time.Minute,
	})
	machine = h.manager.Register(machine)
	machine.Start()

	if guard.Advisory {
		// Automation tooling was observed but is not blocking. Record it.
		if err := machine.AddFlag(model.FlagAutomationTool, "reported by environment guard"); err != nil {
			h.log.Warn().Err(err).Msg("Could not record advisory guard flag")
		}
	}

	sub := &model.Submission{ExamID: result.Exam.ID, ParticipantID: claims.UserID}
	if err := h.submissionRepo.CreateInProgress(ctx, sub); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		h.log.Error().Err(err).Msg("Could not create in-progress submission")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	startKey := config.CacheKey.SessionStartKey(result.Exam.ID.String(), claims.UserID)
	if err := h.rdb.Set(ctx, startKey, machine.StartedAt().Unix(),
		time.Duration(result.Exam.DurationMinutes)*time.Minute+time.Hour).Err(); err != nil {
		h.log.Warn().Err(err).Msg("Could not record session start in cache")
	}

	payload, err := h.examService.GetExamPayload(ctx, result.Exam.ID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"state":    service.BootstrapReady,
		"guard":    guard,
		"exam":     payload,
		"snapshot": machine.Snapshot(),
	})
}

// SessionState godoc
// GET /api/v1/participant/session/:exam_id/state
// Returns the live session snapshot, used by the client to resync after a
// reconnect.
func (h *SessionHandler) SessionState(c *gin.Context) {
	claims := middleware.GetClaims(c)
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
	response.Success(c, http.StatusOK, gin.H{"snapshot": machine.Snapshot()})
}

// ExitSession godoc
// POST /api/v1/participant/session/:exam_id/exit
// Abandons a live session without submitting. Sessions already submitting or
// completed are left alone so the finalizer can run to completion.
func (h *SessionHandler) ExitSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
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
	if machine.State() == session.StateInProgress || machine.State() == session.StateStarting {
		h.manager.Remove(examID, claims.UserID)
		h.log.Info().
			Str("exam_id", examID.String()).
			Int("participant_id", claims.UserID).
			Msg("Session abandoned")
	}
	response.Success(c, http.StatusOK, gin.H{})
}

func (h *SessionHandler) bootstrapError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTokenNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrEntryTokenNotFound)
	case errors.Is(err, service.ErrTokenAlreadyUsed):
		response.Fail(c, http.StatusConflict, response.ErrEntryTokenUsed)
	case errors.Is(err, service.ErrTokenExpired):
		response.Fail(c, http.StatusGone, response.ErrEntryTokenExpired)
	case errors.Is(err, service.ErrExamNotAvailable):
		response.Fail(c, http.StatusConflict, response.ErrExamNotAvailable)
	case errors.Is(err, service.ErrNoQuestions):
		response.Fail(c, http.StatusConflict, response.ErrNoQuestions)
	case errors.Is(err, service.ErrExamNotFound), errors.Is(err, service.ErrParticipantNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
