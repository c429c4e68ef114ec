package service

import (
	"testing"

	"github.com/proctorly/proctorly-backend/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newGuardService(keys []string) *GuardService {
	// The reachability probe is exercised against a live Redis in
	// integration environments; these tests cover the pure checks.
	return NewGuardService(&config.Config{SecureBrowserKeys: keys}, nil, zerolog.Nop())
}

func TestGuard_SecureBrowserKeyMatching(t *testing.T) {
	svc := newGuardService([]string{"hash-one", "hash-two"})

	require.True(t, svc.secureBrowserOK("hash-one"))
	require.True(t, svc.secureBrowserOK("hash-two"))
	require.False(t, svc.secureBrowserOK("hash-three"))
	require.False(t, svc.secureBrowserOK(""))
}

func TestGuard_SecureBrowserDisabledWithoutConfiguredKeys(t *testing.T) {
	svc := newGuardService(nil)

	// No configured keys disables the comparison entirely (dev mode).
	require.True(t, svc.secureBrowserOK(""))
	require.True(t, svc.secureBrowserOK("anything"))
}
