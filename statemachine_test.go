package dicomul

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTableCanonicalClientPath(t *testing.T) {
	// Establish -> transfer -> release, per P3.8 Table 9-1.
	steps := []struct {
		state  stateType
		event  eventType
		action string
	}{
		{sta01, evt01, "AE-1"},
		{sta04, evt02, "AE-2"},
		{sta05, evt03, "AE-3"},
		{sta06, evt09, "DT-1"},
		{sta06, evt10, "DT-2"},
		{sta06, evt11, "AR-1"},
		{sta07, evt13, "AR-3"},
	}
	for _, step := range steps {
		action := findAction(step.state, step.event)
		require.NotNil(t, action, "state %v event %v", step.state, step.event)
		assert.Equal(t, step.action, action.Name, "state %v event %v", step.state, step.event)
	}
}

func TestTransitionTableProviderPath(t *testing.T) {
	// The Move secondary connection: accept, receive, answer release.
	steps := []struct {
		state  stateType
		event  eventType
		action string
	}{
		{sta01, evt05, "AE-5"},
		{sta02, evt06, "AE-6"},
		{sta03, evt07, "AE-7"},
		{sta06, evt12, "AR-2"},
		{sta08, evt14, "AR-4"},
		{sta13, evt17, "AR-5"},
	}
	for _, step := range steps {
		action := findAction(step.state, step.event)
		require.NotNil(t, action, "state %v event %v", step.state, step.event)
		assert.Equal(t, step.action, action.Name, "state %v event %v", step.state, step.event)
	}
}

func TestTransitionTableTimerRows(t *testing.T) {
	// ARTIM expiry must be handled in every state that can be waiting on a
	// peer, and it must land the machine back in Sta1 (directly, or via
	// Sta13 and the close that follows).
	for _, state := range []stateType{sta02, sta05, sta06, sta07, sta08, sta13} {
		action := findAction(state, evt18)
		require.NotNil(t, action, "no ARTIM row for %v", state)
		assert.Contains(t, []string{"AA-2", "AA-4"}, action.Name, "ARTIM row for %v must close to Sta1", state)
	}
}

func TestTransitionTableRejectAndAbortRows(t *testing.T) {
	assert.Equal(t, "AE-4", findAction(sta05, evt04).Name)
	assert.Equal(t, "AA-3", findAction(sta06, evt16).Name)
	assert.Equal(t, "AA-4", findAction(sta06, evt17).Name)
	assert.Equal(t, "AA-1", findAction(sta06, evt15).Name)
}

func TestFindActionUnknownTransition(t *testing.T) {
	// evt01 is a local association request; receiving it in Sta6 is not a
	// defined transition.
	assert.Nil(t, findAction(sta06, evt01))
	assert.Nil(t, findAction(sta01, evt03))
}

func TestTransitionTableStatesAreValid(t *testing.T) {
	// Every row must be keyed by a real state/event pair.
	for key := range stateTransitions {
		assert.GreaterOrEqual(t, int(key.current), int(sta01))
		assert.LessOrEqual(t, int(key.current), int(sta13))
		assert.GreaterOrEqual(t, int(key.event), int(evt01))
		assert.LessOrEqual(t, int(key.event), int(evt19))
	}
}

func TestArtimTimer(t *testing.T) {
	var timer artimTimer
	assert.False(t, timer.Expired(), "unarmed timer never expires")

	timer.SetTimeout(time.Hour)
	timer.Start()
	assert.False(t, timer.Expired())

	timer.SetTimeout(-time.Second)
	timer.Start()
	assert.True(t, timer.Expired())

	timer.Stop()
	assert.False(t, timer.Expired())
}
