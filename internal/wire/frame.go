// ABOUTME: Frame envelope and discriminator constants for the gateway protocol
// ABOUTME: Every message on the link is one JSON-encoded Frame per websocket text message

package wire

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the frame protocol revision spoken by this client.
// It is advertised in the auth frame as both minimum and maximum.
const ProtocolVersion = 1

// Frame type discriminators. Unknown values are dropped by the router.
const (
	TypeAuth      = "auth"       // client -> gateway, first frame after dial
	TypeAuthOK    = "auth-ok"    // gateway -> client, auth acknowledgment
	TypeAuthError = "auth-error" // gateway -> client, explicit credential rejection
	TypeRequest   = "req"        // client -> gateway, correlated command
	TypeResponse  = "res"        // gateway -> client, correlated reply
	TypeEvent     = "event"      // gateway -> client, topic broadcast
	TypePing      = "ping"       // client -> gateway, liveness probe
	TypePong      = "pong"       // gateway -> client, probe reply
)

// Topics carried by event frames. The subscriber registry accepts arbitrary
// topic strings; these are the ones known to cross the link today.
// TopicConnectionStatus is synthesized locally by the link on every state
// transition and never arrives from the gateway.
const (
	TopicConnectionStatus = "connection-status"
	TopicIdentity         = "identity"
	TopicVaultIndex       = "vault-index"
	TopicBrowserUpdate    = "browser-update"
	TopicTradingEvent     = "trading-event"
)

// MethodStateSync is the request issued by the link itself right after
// authentication to pull the gateway's current snapshot.
const MethodStateSync = "state-sync"

// Error codes used on auth-error and failed res frames.
const (
	CodeAuthRejected  = "auth_rejected"
	CodeUnknownMethod = "unknown_method"
	CodeBadRequest    = "bad_request"
)

// Frame is the single envelope for every message crossing the link.
// Which fields are populated depends on Type; the zero value of every other
// field is omitted on the wire.
type Frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	OK      bool            `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Event   string          `json:"event,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is the structured failure attached to auth-error frames and to res
// frames with ok=false.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface so frame errors can be returned and
// wrapped directly.
func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ClientInfo identifies the connecting client inside the auth frame.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// AuthParams is the params body of the auth frame. Token is preferred; the
// email/password pair is the legacy fallback. Both may be present, in which
// case the gateway tries the token first.
type AuthParams struct {
	Token       string     `json:"token,omitempty"`
	Email       string     `json:"email,omitempty"`
	Password    string     `json:"password,omitempty"`
	MinProtocol int        `json:"minProtocol"`
	MaxProtocol int        `json:"maxProtocol"`
	Client      ClientInfo `json:"client"`
}

// NewAuth builds the auth frame sent immediately after the socket opens.
func NewAuth(params AuthParams) (*Frame, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encoding auth params: %w", err)
	}
	return &Frame{Type: TypeAuth, Params: raw}, nil
}

// NewRequest builds a correlated request frame. The id must be unique among
// requests outstanding on the same connection.
func NewRequest(id, method string, params json.RawMessage) *Frame {
	return &Frame{Type: TypeRequest, ID: id, Method: method, Params: params}
}

// NewResponse builds a successful reply to the request with the given id.
func NewResponse(id string, payload json.RawMessage) *Frame {
	return &Frame{Type: TypeResponse, ID: id, OK: true, Payload: payload}
}

// NewErrorResponse builds a failed reply to the request with the given id.
func NewErrorResponse(id, code, message string) *Frame {
	return &Frame{Type: TypeResponse, ID: id, Error: &Error{Code: code, Message: message}}
}

// NewEvent builds a topic broadcast frame.
func NewEvent(topic string, payload json.RawMessage) *Frame {
	return &Frame{Type: TypeEvent, Event: topic, Payload: payload}
}

// Ping builds a liveness probe frame.
func Ping() *Frame {
	return &Frame{Type: TypePing}
}

// Pong builds the reply to a liveness probe.
func Pong() *Frame {
	return &Frame{Type: TypePong}
}

// Decode parses one websocket text message into a Frame. A frame without a
// type discriminator is malformed.
func Decode(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}
	if f.Type == "" {
		return nil, fmt.Errorf("frame missing type discriminator")
	}
	return &f, nil
}

// Encode serializes a frame for the wire.
func Encode(f *Frame) ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	return data, nil
}

// MustRaw marshals v and panics on failure. For fixtures and tests where the
// value is known to be encodable.
func MustRaw(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
