// ABOUTME: LinkState enum and the StateChange payload published on transitions
// ABOUTME: States serialize as readable names for subscribers and transcripts

package link

import (
	"encoding/json"
	"fmt"
)

// LinkState is the connection lifecycle state of a Link. Exactly one value is
// live at a time.
type LinkState int

const (
	// StateDisconnected means no socket is open.
	StateDisconnected LinkState = iota
	// StateDiscovering means the socket is opening and authentication has
	// not been confirmed yet.
	StateDiscovering
	// StateConnected means the gateway acknowledged authentication and the
	// link is fully operational.
	StateConnected
	// StateAuthFailed means the gateway explicitly rejected the credentials.
	// The state is sticky until the next Connect, UpdateConfig, or
	// Disconnect call.
	StateAuthFailed
)

// String returns the wire name of the state.
func (s LinkState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateDiscovering:
		return "discovering"
	case StateConnected:
		return "connected"
	case StateAuthFailed:
		return "auth-failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// MarshalJSON encodes the state as its string name.
func (s LinkState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a state from its string name.
func (s *LinkState) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "disconnected":
		*s = StateDisconnected
	case "discovering":
		*s = StateDiscovering
	case "connected":
		*s = StateConnected
	case "auth-failed":
		*s = StateAuthFailed
	default:
		return fmt.Errorf("unknown link state %q", name)
	}
	return nil
}

// StateChange is the payload published on the connection-status topic for
// every state transition.
type StateChange struct {
	Old    LinkState `json:"old"`
	New    LinkState `json:"new"`
	Reason string    `json:"reason,omitempty"`
}
