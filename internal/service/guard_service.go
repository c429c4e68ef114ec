package service

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/google/uuid"
	"github.com/proctorly/proctorly-backend/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// GuardState is the terminal outcome of the environment guard.
type GuardState string

const (
	// GuardArmed means every critical check passed; the session may start.
	GuardArmed GuardState = "ARMED"
	// GuardBlocked means a critical check failed; the session must not start.
	GuardBlocked GuardState = "BLOCKED"
)

// Guard check names, reported to the client so it can show which requirement
// failed.
const (
	CheckSecureBrowser  = "secure_browser"
	CheckBackendReach   = "backend_reachability"
	CheckAntiDebug      = "anti_debug"
	CheckAutomationTool = "automation_tool"
)

// GuardReport is the environment evidence submitted by the client before a
// session starts.
type GuardReport struct {
	// SecureBrowserKey is the config-key hash reported by the locked-down
	// browser shell. Compared against the configured accepted keys.
	SecureBrowserKey string `json:"secure_browser_key"`
	// DebuggerDetected is set when the client's anti-debug probe tripped.
	DebuggerDetected bool `json:"debugger_detected"`
	// AutomationDetected is set when automation tooling (webdriver etc.) was
	// observed. Advisory only: it flags, it does not block.
	AutomationDetected bool `json:"automation_detected"`
}

// CheckResult is the outcome of a single guard check.
type CheckResult struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Critical bool   `json:"critical"`
}

// GuardResult is the full guard verdict. FailedCheck names the first failing
// critical check when Blocked.
type GuardResult struct {
	State       GuardState    `json:"state"`
	FailedCheck string        `json:"failed_check,omitempty"`
	Checks      []CheckResult `json:"checks"`
	// Advisory is true when a non-critical check failed; the caller records a
	// flagged event but lets the session proceed.
	Advisory bool `json:"advisory"`
}

// GuardService verifies the client environment between bootstrap and session
// start. Checks run in a fixed order and all of them always run, so the
// report shows the complete picture even when an early one fails.
type GuardService struct {
	cfg   *config.Config
	redis *redis.Client
	log   zerolog.Logger
}

// NewGuardService creates a GuardService.
func NewGuardService(cfg *config.Config, redisClient *redis.Client, log zerolog.Logger) *GuardService {
	return &GuardService{
		cfg:   cfg,
		redis: redisClient,
		log:   log.With().Str("component", "guard_service").Logger(),
	}
}

// Evaluate runs the guard checks against the submitted report. Critical
// failures yield Blocked with the first failing check's name; an automation
// signal alone yields Armed with Advisory set.
func (s *GuardService) Evaluate(ctx context.Context, examID uuid.UUID, participantID int, report GuardReport) GuardResult {
	checks := []CheckResult{
		{Name: CheckSecureBrowser, Passed: s.secureBrowserOK(report.SecureBrowserKey), Critical: true},
		{Name: CheckBackendReach, Passed: s.backendReachable(ctx, examID, participantID), Critical: true},
		{Name: CheckAntiDebug, Passed: !report.DebuggerDetected, Critical: true},
		{Name: CheckAutomationTool, Passed: !report.AutomationDetected, Critical: false},
	}

	result := GuardResult{State: GuardArmed, Checks: checks}
	for _, c := range checks {
		if c.Passed {
			continue
		}
		if c.Critical {
			if result.State == GuardArmed {
				result.State = GuardBlocked
				result.FailedCheck = c.Name
			}
		} else {
			result.Advisory = true
		}
	}

	if result.State == GuardBlocked {
		s.log.Warn().
			Str("exam_id", examID.String()).
			Int("participant_id", participantID).
			Str("failed_check", result.FailedCheck).
			Msg("Environment guard blocked session")
	}
	return result
}

// secureBrowserOK compares the reported config-key hash against the accepted
// set. An empty accepted set disables the comparison (development).
func (s *GuardService) secureBrowserOK(reported string) bool {
	if len(s.cfg.SecureBrowserKeys) == 0 {
		return true
	}
	if reported == "" {
		return false
	}
	for _, key := range s.cfg.SecureBrowserKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(reported)) == 1 {
			return true
		}
	}
	return false
}

// backendReachable round-trips a short-lived probe key through Redis. A
// failure here means live session state could not be maintained either.
func (s *GuardService) backendReachable(ctx context.Context, examID uuid.UUID, participantID int) bool {
	key := config.CacheKey.GuardProbeKey(examID.String(), participantID)
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := s.redis.Set(probeCtx, key, time.Now().Unix(), time.Minute).Err(); err != nil {
		s.log.Error().Err(err).Msg("Guard reachability probe write failed")
		return false
	}
	if err := s.redis.Get(probeCtx, key).Err(); err != nil {
		s.log.Error().Err(err).Msg("Guard reachability probe read failed")
		return false
	}
	return true
}
