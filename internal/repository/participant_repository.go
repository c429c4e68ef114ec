package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/proctorly/proctorly-backend/internal/model"
)

// ErrLicenseKeyUnavailable is returned when a registration license key does
// not exist or has already been consumed.
var ErrLicenseKeyUnavailable = errors.New("license key not found or already used")

// ParticipantRepository handles participant account data access.
type ParticipantRepository struct {
	pool *pgxpool.Pool
}

// NewParticipantRepository creates a new ParticipantRepository.
func NewParticipantRepository(pool *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{pool: pool}
}

// GetByID retrieves a participant by id.
func (r *ParticipantRepository) GetByID(ctx context.Context, id int) (*model.Participant, error) {
	p := &model.Participant{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, name, license_key, password_hash, created_at, updated_at
		 FROM participants WHERE id = $1`, id,
	).Scan(&p.ID, &p.Email, &p.Name, &p.LicenseKey, &p.PasswordHash, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetByEmail retrieves a participant by email.
func (r *ParticipantRepository) GetByEmail(ctx context.Context, email string) (*model.Participant, error) {
	p := &model.Participant{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, name, license_key, password_hash, created_at, updated_at
		 FROM participants WHERE email = $1`, email,
	).Scan(&p.ID, &p.Email, &p.Name, &p.LicenseKey, &p.PasswordHash, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// RegisterWithLicense creates a participant and consumes their license key in
// one transaction. The key is claimed by a conditional UPDATE (AVAILABLE →
// USED), the same idiom the entry-token claim uses, so two registrations
// racing on one key produce exactly one account.
func (r *ParticipantRepository) RegisterWithLicense(ctx context.Context, p *model.Participant) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`INSERT INTO participants (email, name, license_key, password_hash)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id, created_at, updated_at`,
			p.Email, p.Name, p.LicenseKey, p.PasswordHash,
		).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}

		tag, err := tx.Exec(ctx,
			`UPDATE license_keys
			 SET status = $1, used_by = $2, used_at = NOW()
			 WHERE key = $3 AND status = $4`,
			model.LicenseKeyUsed, p.ID, p.LicenseKey, model.LicenseKeyAvailable)
		if err != nil {
			return fmt.Errorf("claim license key: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrLicenseKeyUnavailable
		}
		return nil
	})
}

// CreateLicenseKey inserts a new AVAILABLE license key.
func (r *ParticipantRepository) CreateLicenseKey(ctx context.Context, key string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO license_keys (key, status) VALUES ($1, $2)`,
		key, model.LicenseKeyAvailable)
	return err
}
