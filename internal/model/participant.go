package model

import "time"

// Participant represents an exam taker.
type Participant struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	LicenseKey   string    `json:"license_key,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LicenseKeyStatus enumerates license key states.
type LicenseKeyStatus string

const (
	LicenseKeyAvailable LicenseKeyStatus = "AVAILABLE"
	LicenseKeyUsed      LicenseKeyStatus = "USED"
)

// LicenseKey is a registration credential issued out-of-band. A key is
// consumed at most once, by the participant who registers with it.
type LicenseKey struct {
	Key       string           `json:"key"`
	Status    LicenseKeyStatus `json:"status"`
	UsedBy    *int             `json:"used_by,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UsedAt    *time.Time       `json:"used_at,omitempty"`
}

// RegisterParticipantRequest is the payload for license-key registration.
type RegisterParticipantRequest struct {
	LicenseKey string `json:"license_key" binding:"required,min=8,max=64"`
	Email      string `json:"email" binding:"required,email,max=255"`
	Name       string `json:"name" binding:"required,min=2,max=100"`
	Password   string `json:"password" binding:"required,min=6,max=128"`
}

// ParticipantLoginRequest is the payload for participant authentication.
type ParticipantLoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// ParticipantLoginResponse is returned after successful participant login.
type ParticipantLoginResponse struct {
	Token       string      `json:"token"`
	Participant Participant `json:"participant"`
}
