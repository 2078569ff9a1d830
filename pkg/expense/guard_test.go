package expense

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuardAdmitsOneRunningAttempt(t *testing.T) {
	var g Guard
	assert.True(t, g.TryStart())
	assert.False(t, g.TryStart(), "second claim while running")
}

func TestGuardSuppressesAfterDone(t *testing.T) {
	var g Guard
	assert.True(t, g.TryStart())
	g.MarkDone()
	assert.True(t, g.Done())
	assert.False(t, g.TryStart(), "completed attempts are not repeated")
}

func TestGuardResetReopensBothPaths(t *testing.T) {
	var g Guard

	// Timed-out attempt: claim released, not done.
	assert.True(t, g.TryStart())
	g.Reset()
	assert.False(t, g.Done())
	assert.True(t, g.TryStart())

	// Route change after completion: done cleared too.
	g.MarkDone()
	g.Reset()
	assert.True(t, g.TryStart())
}
