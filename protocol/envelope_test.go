package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperborea/hyperborea/crypto"
)

type pingRequest struct {
	Nonce uint64 `json:"nonce"`
}

func TestRequestRoundTrip(t *testing.T) {
	secret, err := crypto.Generate()
	require.NoError(t, err)

	req := NewRequest(secret, pingRequest{Nonce: 42})

	raw, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded Request[pingRequest]
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, req.Standard, decoded.Standard)
	assert.Equal(t, req.ProofSeed, decoded.ProofSeed)
	assert.True(t, req.PublicKey.Equal(decoded.PublicKey))
	assert.Equal(t, req.Body, decoded.Body)
	assert.NoError(t, decoded.Validate())
}

func TestRequestValidateRejectsLowSeed(t *testing.T) {
	secret, err := crypto.Generate()
	require.NoError(t, err)

	req := NewRequest(secret, pingRequest{Nonce: 1})
	req.ProofSeed = 1
	req.ProofSign = crypto.Sign(secret, seedBytes(1))

	err = req.Validate()
	require.Error(t, err)
	protoErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, KindIntegrity, protoErr.Kind)
}

func TestRequestValidateRejectsBadSignature(t *testing.T) {
	secret, err := crypto.Generate()
	require.NoError(t, err)
	other, err := crypto.Generate()
	require.NoError(t, err)

	req := NewRequest(secret, pingRequest{Nonce: 1})
	req.PublicKey = other.PublicKey()

	assert.Error(t, req.Validate())
}

func TestSeedSurvivesHighBitThroughJSON(t *testing.T) {
	raw, err := json.Marshal(seed(1 << 63))
	require.NoError(t, err)
	assert.Equal(t, `"9223372036854775808"`, string(raw))

	var s seed
	require.NoError(t, json.Unmarshal(raw, &s))
	assert.Equal(t, uint64(1<<63), uint64(s))
}

func TestResponseRoundTripSuccess(t *testing.T) {
	client, err := crypto.Generate()
	require.NoError(t, err)
	server, err := crypto.Generate()
	require.NoError(t, err)

	req := NewRequest(client, pingRequest{})
	resp := NewSuccessResponse(StatusSuccess, server, req.ProofSeed, pingRequest{Nonce: 7})

	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded Response[pingRequest]
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.True(t, decoded.Status.IsSuccess())
	assert.NoError(t, decoded.Validate(req.ProofSeed))
	assert.Equal(t, uint64(7), decoded.Body.Nonce)
}

func TestResponseRoundTripError(t *testing.T) {
	resp := NewErrorResponse[pingRequest](StatusNotConnected, "target not connected")

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"public_key"`)

	var decoded Response[pingRequest]
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.False(t, decoded.Status.IsSuccess())
	assert.Equal(t, "target not connected", decoded.Reason)
	assert.NoError(t, decoded.Validate(0))
}

func TestResponseValidateRejectsMismatchedSeed(t *testing.T) {
	client, err := crypto.Generate()
	require.NoError(t, err)
	server, err := crypto.Generate()
	require.NoError(t, err)

	req := NewRequest(client, pingRequest{})
	resp := NewSuccessResponse(StatusSuccess, server, req.ProofSeed, pingRequest{})

	otherSeed := req.ProofSeed ^ 1
	assert.Error(t, resp.Validate(otherSeed))
}
