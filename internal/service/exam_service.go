package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/proctorly/proctorly-backend/internal/config"
	"github.com/proctorly/proctorly-backend/internal/model"
	"github.com/proctorly/proctorly-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Exam service errors.
var (
	ErrExamNotOwned      = errors.New("exam does not belong to this examiner")
	ErrExamNotDraft      = errors.New("exam can only be modified while in draft")
	ErrPublishNoQuestion = errors.New("exam cannot be published without questions")
	ErrJoinCodeExhausted = errors.New("could not allocate a unique join code")
)

// joinCodeAlphabet omits visually ambiguous characters (0/O, 1/I/L).
const joinCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const joinCodeLength = 6

// joinCodeAttempts bounds the collision retry loop when allocating codes.
const joinCodeAttempts = 5

// GenerateJoinCode allocates a random join code not already in use, retrying
// a bounded number of times on collision before giving up with
// ErrJoinCodeExhausted.
func GenerateJoinCode(ctx context.Context, exists func(ctx context.Context, code string) (bool, error)) (string, error) {
	for attempt := 0; attempt < joinCodeAttempts; attempt++ {
		code, err := randomJoinCode()
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check join code: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrJoinCodeExhausted
}

func randomJoinCode() (string, error) {
	buf := make([]byte, joinCodeLength)
	max := big.NewInt(int64(len(joinCodeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate join code: %w", err)
		}
		buf[i] = joinCodeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// ExamService handles exam authoring, publishing, and the cached
// participant-facing payload.
type ExamService struct {
	examRepo     *repository.ExamRepository
	questionRepo *repository.QuestionRepository
	redis        *redis.Client
	log          zerolog.Logger
}

// NewExamService creates an ExamService.
func NewExamService(examRepo *repository.ExamRepository, questionRepo *repository.QuestionRepository, redisClient *redis.Client, log zerolog.Logger) *ExamService {
	return &ExamService{
		examRepo:     examRepo,
		questionRepo: questionRepo,
		redis:        redisClient,
		log:          log.With().Str("component", "exam_service").Logger(),
	}
}

// Create inserts a new draft exam with a freshly allocated join code.
func (s *ExamService) Create(ctx context.Context, ownerID int, req *model.CreateExamRequest) (*model.Exam, error) {
	code, err := GenerateJoinCode(ctx, s.examRepo.JoinCodeExists)
	if err != nil {
		return nil, err
	}

	exam := &model.Exam{
		OwnerID:           ownerID,
		Title:             req.Title,
		Description:       req.Description,
		DurationMinutes:   req.DurationMinutes,
		AllowBacktracking: req.AllowBacktracking,
		JoinCode:          code,
		StartTime:         req.StartTime,
		EndTime:           req.EndTime,
		Status:            model.ExamStatusDraft,
	}
	if err := s.examRepo.Create(ctx, exam); err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}
	return exam, nil
}

// GetOwned loads an exam and verifies ownership.
func (s *ExamService) GetOwned(ctx context.Context, examID uuid.UUID, ownerID int) (*model.Exam, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.OwnerID != ownerID {
		return nil, ErrExamNotOwned
	}
	return exam, nil
}

// Update modifies a draft exam's editable fields. Published exams are frozen:
// participants may already hold its schedule.
func (s *ExamService) Update(ctx context.Context, examID uuid.UUID, ownerID int, req *model.UpdateExamRequest) (*model.Exam, error) {
	exam, err := s.GetOwned(ctx, examID, ownerID)
	if err != nil {
		return nil, err
	}
	if exam.Status != model.ExamStatusDraft {
		return nil, ErrExamNotDraft
	}

	if req.Title != "" {
		exam.Title = req.Title
	}
	if req.Description != nil {
		exam.Description = *req.Description
	}
	if req.DurationMinutes > 0 {
		exam.DurationMinutes = req.DurationMinutes
	}
	if req.AllowBacktracking != nil {
		exam.AllowBacktracking = *req.AllowBacktracking
	}
	if req.StartTime != nil {
		exam.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		exam.EndTime = *req.EndTime
	}
	if !exam.EndTime.After(exam.StartTime) {
		return nil, errors.New("end_time must be after start_time")
	}

	if err := s.examRepo.Update(ctx, exam); err != nil {
		return nil, fmt.Errorf("update exam: %w", err)
	}
	return exam, nil
}

// Delete removes a draft exam.
func (s *ExamService) Delete(ctx context.Context, examID uuid.UUID, ownerID int) error {
	exam, err := s.GetOwned(ctx, examID, ownerID)
	if err != nil {
		return err
	}
	if exam.Status != model.ExamStatusDraft {
		return ErrExamNotDraft
	}
	return s.examRepo.Delete(ctx, examID)
}

// ListByOwner returns the examiner's exams, newest first.
func (s *ExamService) ListByOwner(ctx context.Context, ownerID, limit, offset int) ([]model.Exam, int, error) {
	return s.examRepo.ListByOwnerPaginated(ctx, ownerID, limit, offset)
}

// ReplaceQuestions swaps the full ordered question list of a draft exam.
// Every question is validated before anything is written.
func (s *ExamService) ReplaceQuestions(ctx context.Context, examID uuid.UUID, ownerID int, req *model.ReplaceQuestionsRequest) ([]model.Question, error) {
	exam, err := s.GetOwned(ctx, examID, ownerID)
	if err != nil {
		return nil, err
	}
	if exam.Status != model.ExamStatusDraft {
		return nil, ErrExamNotDraft
	}

	questions := make([]model.Question, len(req.Questions))
	for i, qr := range req.Questions {
		q := model.Question{
			ExamID:          examID,
			Text:            qr.Text,
			Options:         qr.Options,
			CorrectOptionID: qr.CorrectOptionID,
			OrderNum:        i + 1,
		}
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		questions[i] = q
	}

	if err := s.questionRepo.ReplaceForExam(ctx, examID, questions); err != nil {
		return nil, fmt.Errorf("replace questions: %w", err)
	}
	return questions, nil
}

// Publish transitions a draft exam to PUBLISHED and warms its payload cache.
// An exam without questions cannot be published: it could never host a
// session.
func (s *ExamService) Publish(ctx context.Context, examID uuid.UUID, ownerID int) (*model.Exam, error) {
	exam, err := s.GetOwned(ctx, examID, ownerID)
	if err != nil {
		return nil, err
	}
	if exam.Status != model.ExamStatusDraft {
		return nil, ErrExamNotDraft
	}

	count, err := s.questionRepo.CountByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("count questions: %w", err)
	}
	if count == 0 {
		return nil, ErrPublishNoQuestion
	}

	if err := s.examRepo.UpdateStatus(ctx, examID, model.ExamStatusPublished); err != nil {
		return nil, fmt.Errorf("publish exam: %w", err)
	}
	exam.Status = model.ExamStatusPublished

	if err := s.WarmExamCache(ctx, exam); err != nil {
		// The cache is an optimization; GetExamPayload falls back to the
		// database on miss.
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to warm exam payload cache")
	}
	return exam, nil
}

// GetByJoinCode resolves a join code to an exam. Used by the participant
// dashboard to discover an exam before requesting an entry token.
func (s *ExamService) GetByJoinCode(ctx context.Context, code string) (*model.Exam, error) {
	return s.examRepo.GetByJoinCode(ctx, code)
}

// GetByID loads an exam without an ownership check. Participant-facing
// callers must not expose fields beyond the schedule and title.
func (s *ExamService) GetByID(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	return s.examRepo.GetByID(ctx, examID)
}

// GetExamPayload returns the participant-facing payload (questions stripped
// of correct answers), cache-first with a database fallback that rewarms the
// cache.
func (s *ExamService) GetExamPayload(ctx context.Context, examID uuid.UUID) (*model.ExamPayload, error) {
	key := config.CacheKey.ExamPayloadKey(examID.String())
	raw, err := s.redis.Get(ctx, key).Bytes()
	if err == nil {
		payload := &model.ExamPayload{}
		if err := json.Unmarshal(raw, payload); err == nil {
			return payload, nil
		}
		s.log.Warn().Str("exam_id", examID.String()).Msg("Corrupt cached exam payload, rebuilding")
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Msg("Exam payload cache read failed, falling back to database")
	}

	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	payload, err := s.buildPayload(ctx, exam)
	if err != nil {
		return nil, err
	}
	if err := s.cachePayload(ctx, exam, payload); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to rewarm exam payload cache")
	}
	return payload, nil
}

// WarmExamCache builds and stores the exam's participant-facing payload.
func (s *ExamService) WarmExamCache(ctx context.Context, exam *model.Exam) error {
	payload, err := s.buildPayload(ctx, exam)
	if err != nil {
		return err
	}
	return s.cachePayload(ctx, exam, payload)
}

// PrewarmAllCaches warms the payload cache for every published exam. Called
// once on startup.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	exams, err := s.examRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published exams: %w", err)
	}
	for i := range exams {
		if err := s.WarmExamCache(ctx, &exams[i]); err != nil {
			s.log.Warn().Err(err).Str("exam_id", exams[i].ID.String()).Msg("Prewarm failed for exam")
			continue
		}
	}
	s.log.Info().Int("count", len(exams)).Msg("Exam payload caches prewarmed")
	return nil
}

func (s *ExamService) buildPayload(ctx context.Context, exam *model.Exam) (*model.ExamPayload, error) {
	questions, err := s.questionRepo.ListByExam(ctx, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	stripped := make([]model.QuestionForParticipant, len(questions))
	for i, q := range questions {
		stripped[i] = model.QuestionForParticipant{
			ID:       q.ID,
			Text:     q.Text,
			Options:  q.Options,
			OrderNum: q.OrderNum,
		}
	}
	return &model.ExamPayload{
		ExamID:            exam.ID,
		Title:             exam.Title,
		DurationMinutes:   exam.DurationMinutes,
		AllowBacktracking: exam.AllowBacktracking,
		Questions:         stripped,
	}, nil
}

// cachePayload stores the payload until one hour past the exam's end, when
// no new session could need it anymore.
func (s *ExamService) cachePayload(ctx context.Context, exam *model.Exam, payload *model.ExamPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	ttl := time.Until(exam.EndTime.Add(time.Hour))
	if ttl <= 0 {
		return nil
	}
	key := config.CacheKey.ExamPayloadKey(exam.ID.String())
	return s.redis.Set(ctx, key, raw, ttl).Err()
}
