// ABOUTME: Tests for LinkState naming and JSON round-trips.
// ABOUTME: The wire names are load-bearing: subscribers match on them.

package link

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkState_String(t *testing.T) {
	tests := []struct {
		state LinkState
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateDiscovering, "discovering"},
		{StateConnected, "connected"},
		{StateAuthFailed, "auth-failed"},
		{LinkState(99), "unknown(99)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}

func TestLinkState_JSONRoundTrip(t *testing.T) {
	for _, state := range []LinkState{StateDisconnected, StateDiscovering, StateConnected, StateAuthFailed} {
		data, err := json.Marshal(state)
		require.NoError(t, err)

		var got LinkState
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, state, got)
	}
}

func TestLinkState_UnmarshalRejectsUnknownName(t *testing.T) {
	var s LinkState
	err := json.Unmarshal([]byte(`"warp-speed"`), &s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "warp-speed")
}

func TestStateChange_JSONShape(t *testing.T) {
	change := StateChange{Old: StateDiscovering, New: StateConnected, Reason: "authenticated"}

	data, err := json.Marshal(change)
	require.NoError(t, err)
	assert.JSONEq(t, `{"old":"discovering","new":"connected","reason":"authenticated"}`, string(data))
}
