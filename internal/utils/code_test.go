package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campfield/ticketoffice/internal/model"
)

func TestNewCheckinCode(t *testing.T) {
	code, err := NewCheckinCode(8)
	require.NoError(t, err)
	assert.Len(t, code, 8)
	assert.True(t, model.ValidateSafeChars(code))
}

func TestNewCheckinCodeClampsLength(t *testing.T) {
	for _, n := range []int{0, -1, model.MaxCodeLength + 5} {
		code, err := NewCheckinCode(n)
		require.NoError(t, err)
		assert.Len(t, code, model.MaxCodeLength)
	}
}

func TestNewCheckinCodeVaries(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := NewCheckinCode(8)
		require.NoError(t, err)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 45, "codes should be effectively unique")
}
