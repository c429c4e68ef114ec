package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQuestion_Validate(t *testing.T) {
	valid := Question{
		Text:            "Which layer does TLS operate at?",
		Options:         []Option{{ID: "a", Text: "Transport"}, {ID: "b", Text: "Physical"}},
		CorrectOptionID: "a",
	}
	require.NoError(t, valid.Validate())

	tooFew := valid
	tooFew.Options = valid.Options[:1]
	require.Error(t, tooFew.Validate())

	duplicate := valid
	duplicate.Options = []Option{{ID: "a"}, {ID: "a"}}
	require.Error(t, duplicate.Validate())

	noMatch := valid
	noMatch.CorrectOptionID = "z"
	require.ErrorIs(t, noMatch.Validate(), ErrCorrectOptionMismatch)

	emptyID := valid
	emptyID.Options = []Option{{ID: ""}, {ID: "b"}}
	require.Error(t, emptyID.Validate())
}

func TestKnownFlagType(t *testing.T) {
	require.True(t, KnownFlagType(FlagVisibilityChange))
	require.True(t, KnownFlagType(FlagDevToolsDetected))
	require.False(t, KnownFlagType(FlagType("TOTALLY_NEW")))
	require.False(t, KnownFlagType(FlagType("")))
}
