package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/proctorly/proctorly-backend/internal/model"
	"github.com/proctorly/proctorly-backend/internal/repository"
	"github.com/rs/zerolog"
)

// ErrEmailTaken is returned when a registration email already has an account.
var ErrEmailTaken = errors.New("email already registered")

// AccountService handles participant registration and both login flows.
type AccountService struct {
	participantRepo *repository.ParticipantRepository
	examinerRepo    *repository.ExaminerRepository
	auth            *AuthService
	log             zerolog.Logger
}

// NewAccountService creates an AccountService.
func NewAccountService(
	participantRepo *repository.ParticipantRepository,
	examinerRepo *repository.ExaminerRepository,
	auth *AuthService,
	log zerolog.Logger,
) *AccountService {
	return &AccountService{
		participantRepo: participantRepo,
		examinerRepo:    examinerRepo,
		auth:            auth,
		log:             log.With().Str("component", "account_service").Logger(),
	}
}

// RegisterParticipant creates a participant account, consuming a license key.
// The key claim and the account insert commit together or not at all.
func (s *AccountService) RegisterParticipant(ctx context.Context, req *model.RegisterParticipantRequest) (*model.Participant, error) {
	if _, err := s.participantRepo.GetByEmail(ctx, req.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	hash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	p := &model.Participant{
		Email:        req.Email,
		Name:         req.Name,
		LicenseKey:   req.LicenseKey,
		PasswordHash: hash,
	}
	if err := s.participantRepo.RegisterWithLicense(ctx, p); err != nil {
		return nil, err
	}

	s.log.Info().Int("participant_id", p.ID).Msg("Participant registered")
	return p, nil
}

// LoginParticipant authenticates a participant and issues a JWT.
func (s *AccountService) LoginParticipant(ctx context.Context, req *model.ParticipantLoginRequest) (*model.ParticipantLoginResponse, error) {
	p, err := s.participantRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load participant: %w", err)
	}
	if err := s.auth.CheckPassword(p.PasswordHash, req.Password); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.auth.GenerateToken(TokenTypeParticipant, p.ID)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &model.ParticipantLoginResponse{Token: token, Participant: *p}, nil
}

// LoginExaminer authenticates an examiner and issues a JWT.
func (s *AccountService) LoginExaminer(ctx context.Context, req *model.ExaminerLoginRequest) (*model.ExaminerLoginResponse, error) {
	e, err := s.examinerRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load examiner: %w", err)
	}
	if err := s.auth.CheckPassword(e.PasswordHash, req.Password); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.auth.GenerateToken(TokenTypeExaminer, e.ID)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &model.ExaminerLoginResponse{Token: token, Examiner: *e}, nil
}
