package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateJoinCode_Format(t *testing.T) {
	neverTaken := func(_ context.Context, _ string) (bool, error) { return false, nil }

	code, err := GenerateJoinCode(context.Background(), neverTaken)
	require.NoError(t, err)
	require.Len(t, code, joinCodeLength)
	for _, r := range code {
		require.True(t, strings.ContainsRune(joinCodeAlphabet, r), "unexpected character %q", r)
	}
}

func TestGenerateJoinCode_RetriesOnCollision(t *testing.T) {
	attempts := 0
	// The first two draws collide, the third is free.
	exists := func(_ context.Context, _ string) (bool, error) {
		attempts++
		return attempts <= 2, nil
	}

	code, err := GenerateJoinCode(context.Background(), exists)
	require.NoError(t, err)
	require.NotEmpty(t, code)
	require.Equal(t, 3, attempts)
}

func TestGenerateJoinCode_BoundedRetry(t *testing.T) {
	attempts := 0
	alwaysTaken := func(_ context.Context, _ string) (bool, error) {
		attempts++
		return true, nil
	}

	_, err := GenerateJoinCode(context.Background(), alwaysTaken)
	require.ErrorIs(t, err, ErrJoinCodeExhausted)
	require.Equal(t, joinCodeAttempts, attempts, "gives up after the attempt budget")
}
