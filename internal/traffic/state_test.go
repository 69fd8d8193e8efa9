package traffic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStateStartsIdle(t *testing.T) {
	s := NewState()
	snap := s.Snapshot()

	assert.Equal(t, ScenarioIdle, snap.Scenario)
	assert.Empty(t, snap.Active)
	assert.False(t, snap.Running)
	assert.Zero(t, snap.Cycle)
}

func TestSetScenarioReplacesActiveSet(t *testing.T) {
	s := NewState()
	s.SetScenario(ScenarioHighway, []string{"h1", "h2"})

	snap := s.Snapshot()
	assert.Equal(t, ScenarioHighway, snap.Scenario)
	assert.True(t, snap.IsActive("h1"))
	assert.True(t, snap.IsActive("h2"))
	assert.False(t, snap.IsActive("h3"))

	s.SetScenario(ScenarioUrban, []string{"h6"})
	snap = s.Snapshot()
	assert.Equal(t, ScenarioUrban, snap.Scenario)
	assert.True(t, snap.IsActive("h6"))
	assert.False(t, snap.IsActive("h1"), "previous active set must be cleared")
}

func TestSnapshotIsDetachedFromLiveState(t *testing.T) {
	s := NewState()
	s.SetScenario(ScenarioSuburb, []string{"h12"})

	snap := s.Snapshot()
	require.True(t, snap.IsActive("h12"))

	// Mutating the state after the snapshot must not leak into it.
	s.SetScenario(ScenarioIdle, nil)
	assert.Equal(t, ScenarioSuburb, snap.Scenario)
	assert.True(t, snap.IsActive("h12"))

	// And mutating the snapshot's map must not leak back.
	snap.Active["h13"] = true
	assert.False(t, s.Snapshot().IsActive("h13"))
}

func TestIncrementCycle(t *testing.T) {
	s := NewState()
	assert.Equal(t, 1, s.IncrementCycle())
	assert.Equal(t, 2, s.IncrementCycle())
	assert.Equal(t, 2, s.Snapshot().Cycle)
}

func TestMarkRunning(t *testing.T) {
	s := NewState()
	s.MarkRunning(true)
	assert.True(t, s.Snapshot().Running)
	s.MarkRunning(false)
	assert.False(t, s.Snapshot().Running)
}
