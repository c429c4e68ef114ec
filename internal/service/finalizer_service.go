package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/proctorly/proctorly-backend/internal/config"
	"github.com/proctorly/proctorly-backend/internal/model"
	"github.com/proctorly/proctorly-backend/internal/repository"
	"github.com/proctorly/proctorly-backend/internal/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// FinalizerService persists terminal submissions. It implements
// session.Finalizer: the session manager calls it when a machine enters
// SUBMITTING, whether by manual confirm or timer expiry.
type FinalizerService struct {
	submissionRepo *repository.SubmissionRepository
	redis          *redis.Client
	log            zerolog.Logger
}

// NewFinalizerService creates a FinalizerService.
func NewFinalizerService(submissionRepo *repository.SubmissionRepository, redisClient *redis.Client, log zerolog.Logger) *FinalizerService {
	return &FinalizerService{
		submissionRepo: submissionRepo,
		redis:          redisClient,
		log:            log.With().Str("component", "finalizer_service").Logger(),
	}
}

// Finalize writes the COMPLETED submission row, then queues the session's
// flagged events for the audit worker and drops the session's Redis mirrors.
// The database write is the idempotency point: a conflict against an already
// COMPLETED row surfaces as session.ErrAlreadyCompleted and never overwrites
// persisted answers. Queue and cache cleanup failures are logged but do not
// fail the finalize — the submission is already durable.
func (s *FinalizerService) Finalize(ctx context.Context, examID uuid.UUID, participantID int, answers map[string]string, flags []model.FlaggedEvent, submittedAt time.Time) error {
	_, err := s.submissionRepo.FinalizeCompleted(ctx, examID, participantID, answers, flags, submittedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return session.ErrAlreadyCompleted
		}
		return fmt.Errorf("finalize submission: %w", err)
	}

	s.enqueueFlags(ctx, flags)
	s.cleanupCache(ctx, examID, participantID)
	return nil
}

func (s *FinalizerService) enqueueFlags(ctx context.Context, flags []model.FlaggedEvent) {
	for _, f := range flags {
		payload, err := json.Marshal(f)
		if err != nil {
			s.log.Error().Err(err).Msg("Failed to marshal flagged event")
			continue
		}
		if err := s.redis.RPush(ctx, config.WorkerKey.PersistFlagsQueue, payload).Err(); err != nil {
			s.log.Error().Err(err).
				Str("flag_type", string(f.Type)).
				Msg("Failed to queue flagged event")
		}
	}
}

func (s *FinalizerService) cleanupCache(ctx context.Context, examID uuid.UUID, participantID int) {
	keys := []string{
		config.CacheKey.ParticipantAnswersKey(examID.String(), participantID),
		config.CacheKey.SessionStartKey(examID.String(), participantID),
		config.CacheKey.GuardProbeKey(examID.String(), participantID),
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		s.log.Warn().Err(err).
			Str("exam_id", examID.String()).
			Int("participant_id", participantID).
			Msg("Failed to clean up session cache keys")
	}
}
