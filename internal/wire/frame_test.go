// ABOUTME: Tests for frame encoding, decoding, and envelope construction
// ABOUTME: Covers discriminator validation and error formatting

package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_EventFrame(t *testing.T) {
	data := []byte(`{"type":"event","event":"vault-index","payload":{"files":["a.md"]}}`)

	f, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, TypeEvent, f.Type)
	assert.Equal(t, TopicVaultIndex, f.Event)
	assert.JSONEq(t, `{"files":["a.md"]}`, string(f.Payload))
}

func TestDecode_MissingTypeRejected(t *testing.T) {
	_, err := Decode([]byte(`{"id":"abc","method":"state-sync"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "type discriminator")
}

func TestDecode_MalformedJSON(t *testing.T) {
	_, err := Decode([]byte(`{"type":`))
	require.Error(t, err)
}

func TestNewAuth_CarriesProtocolBounds(t *testing.T) {
	f, err := NewAuth(AuthParams{
		Token:       "tok-123",
		MinProtocol: ProtocolVersion,
		MaxProtocol: ProtocolVersion,
		Client:      ClientInfo{Name: "clawlink", Version: "dev"},
	})
	require.NoError(t, err)
	require.Equal(t, TypeAuth, f.Type)

	var params AuthParams
	require.NoError(t, json.Unmarshal(f.Params, &params))
	assert.Equal(t, "tok-123", params.Token)
	assert.Equal(t, ProtocolVersion, params.MinProtocol)
	assert.Equal(t, ProtocolVersion, params.MaxProtocol)
	assert.Equal(t, "clawlink", params.Client.Name)
}

func TestNewErrorResponse_RoundTrip(t *testing.T) {
	f := NewErrorResponse("req-1", CodeUnknownMethod, "no handler for vault.burn")

	data, err := Encode(f)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	require.NotNil(t, decoded.Error)
	assert.False(t, decoded.OK)
	assert.Equal(t, "req-1", decoded.ID)
	assert.Equal(t, CodeUnknownMethod, decoded.Error.Code)
}

func TestError_Formatting(t *testing.T) {
	withMessage := &Error{Code: CodeAuthRejected, Message: "bad token"}
	assert.Equal(t, "auth_rejected: bad token", withMessage.Error())

	codeOnly := &Error{Code: CodeAuthRejected}
	assert.Equal(t, "auth_rejected", codeOnly.Error())
}
