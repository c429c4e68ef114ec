package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/proctorly/proctorly-backend/internal/middleware"
	"github.com/proctorly/proctorly-backend/internal/model"
	"github.com/proctorly/proctorly-backend/internal/repository"
	"github.com/proctorly/proctorly-backend/internal/response"
	"github.com/proctorly/proctorly-backend/internal/service"
	"github.com/proctorly/proctorly-backend/internal/validator"
)

// AuthHandler handles authentication and registration endpoints.
type AuthHandler struct {
	accountService  *service.AccountService
	participantRepo *repository.ParticipantRepository
	examinerRepo    *repository.ExaminerRepository
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(
	accountService *service.AccountService,
	participantRepo *repository.ParticipantRepository,
	examinerRepo *repository.ExaminerRepository,
) *AuthHandler {
	return &AuthHandler{
		accountService:  accountService,
		participantRepo: participantRepo,
		examinerRepo:    examinerRepo,
	}
}

// RegisterParticipant godoc
// POST /api/v1/auth/participant/register
// Creates a participant account, consuming a license key.
func (h *AuthHandler) RegisterParticipant(c *gin.Context) {
	var req model.RegisterParticipantRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	p, err := h.accountService.RegisterParticipant(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailTaken):
			response.Fail(c, http.StatusConflict, response.ErrEmailTaken)
		case errors.Is(err, repository.ErrLicenseKeyUnavailable):
			response.Fail(c, http.StatusConflict, response.ErrLicenseKeyUnavailable)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"participant": p})
}

// LoginParticipant godoc
// POST /api/v1/auth/participant/login
func (h *AuthHandler) LoginParticipant(c *gin.Context) {
	var req model.ParticipantLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.accountService.LoginParticipant(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, res)
}

// LoginExaminer godoc
// POST /api/v1/auth/examiner/login
func (h *AuthHandler) LoginExaminer(c *gin.Context) {
	var req model.ExaminerLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.accountService.LoginExaminer(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, res)
}

// GetParticipantProfile godoc
// GET /api/v1/auth/participant/me
func (h *AuthHandler) GetParticipantProfile(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	p, err := h.participantRepo.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"participant": p})
}

// GetExaminerProfile godoc
// GET /api/v1/auth/examiner/me
func (h *AuthHandler) GetExaminerProfile(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	e, err := h.examinerRepo.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"examiner": e})
}
