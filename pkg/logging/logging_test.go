package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionIDIsStable(t *testing.T) {
	first := SessionID()
	require.NotEmpty(t, first)
	assert.Equal(t, first, SessionID())
}

func TestNewReturnsUsableLogger(t *testing.T) {
	log, closer, err := New(true)
	require.NoError(t, err)
	defer closer()

	log.Debug("probe")
	log.Warn("probe")
}
