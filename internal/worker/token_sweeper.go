package worker

import (
	"context"
	"time"

	"github.com/proctorly/proctorly-backend/internal/repository"
	"github.com/rs/zerolog"
)

// TokenSweeper periodically marks stale PENDING entry tokens as EXPIRED.
// Expiry is already enforced at claim time by the conditional UPDATE; the
// sweeper only keeps the stored status in line with the clock so audit
// queries do not see years-old PENDING rows.
type TokenSweeper struct {
	repo     *repository.EntryTokenRepository
	interval time.Duration
	log      zerolog.Logger
}

// NewTokenSweeper creates a TokenSweeper.
func NewTokenSweeper(repo *repository.EntryTokenRepository, interval time.Duration, log zerolog.Logger) *TokenSweeper {
	return &TokenSweeper{
		repo:     repo,
		interval: interval,
		log:      log.With().Str("component", "token_sweeper").Logger(),
	}
}

// Start runs the sweep loop until ctx is cancelled. Call in a goroutine.
func (w *TokenSweeper) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("TokenSweeper started")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("TokenSweeper stopping")
			return
		case <-ticker.C:
			n, err := w.repo.ExpireStale(ctx, time.Now())
			if err != nil {
				w.log.Error().Err(err).Msg("Token sweep failed")
				continue
			}
			if n > 0 {
				w.log.Info().Int64("expired", n).Msg("Swept stale entry tokens")
			}
		}
	}
}
