package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/proctorly/proctorly-backend/internal/config"
	"github.com/proctorly/proctorly-backend/internal/database"
	"github.com/proctorly/proctorly-backend/internal/logger"
	"github.com/proctorly/proctorly-backend/internal/repository"
)

// Mints a batch of AVAILABLE license keys for participant registration and
// prints them, one per line, for distribution out-of-band.
func main() {
	var count int
	flag.IntVar(&count, "count", 10, "Number of license keys to generate")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	participantRepo := repository.NewParticipantRepository(pool)

	for i := 0; i < count; i++ {
		key := strings.ReplaceAll(uuid.New().String(), "-", "")
		if err := participantRepo.CreateLicenseKey(ctx, key); err != nil {
			log.Fatal().Err(err).Msg("Failed to create license key")
		}
		fmt.Println(key)
	}

	log.Info().Int("count", count).Msg("License keys generated")
}
