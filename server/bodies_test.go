package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperborea/hyperborea/crypto"
	"github.com/hyperborea/hyperborea/protocol"
	"github.com/hyperborea/hyperborea/traversal"
)

func TestLookupResponseBodyJSONRoundTrip(t *testing.T) {
	clientKey, err := crypto.Generate()
	require.NoError(t, err)
	serverKey, err := crypto.Generate()
	require.NoError(t, err)

	cases := []LookupResponseBody{
		{Disposition: traversal.DispositionLocal, Client: protocol.Client{PublicKey: clientKey.PublicKey(), Info: protocol.ThinClient()}, Available: true},
		{Disposition: traversal.DispositionRemote, Client: protocol.Client{PublicKey: clientKey.PublicKey(), Info: protocol.ThinClient()}, Server: protocol.Server{PublicKey: serverKey.PublicKey(), Address: "a"}, Available: false},
		{Disposition: traversal.DispositionHint, Hint: []protocol.Server{{PublicKey: serverKey.PublicKey(), Address: "b"}}},
	}

	for _, c := range cases {
		encoded, err := json.Marshal(c)
		require.NoError(t, err)

		var decoded LookupResponseBody
		require.NoError(t, json.Unmarshal(encoded, &decoded))
		assert.Equal(t, c.Disposition, decoded.Disposition)
		assert.Equal(t, c.Available, decoded.Available)
	}
}

func TestLookupResponseBodyWireShape(t *testing.T) {
	clientKey, err := crypto.Generate()
	require.NoError(t, err)

	body := LookupResponseBody{Disposition: traversal.DispositionLocal, Client: protocol.Client{PublicKey: clientKey.PublicKey()}, Available: true}
	encoded, err := json.Marshal(body)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(encoded, &raw))
	assert.Equal(t, "local", raw["disposition"])
	assert.Contains(t, raw, "result")
}

func TestAnnounceRequestBodyJSONRoundTrip(t *testing.T) {
	clientKey, err := crypto.Generate()
	require.NoError(t, err)
	serverKey, err := crypto.Generate()
	require.NoError(t, err)
	server := protocol.Server{PublicKey: serverKey.PublicKey(), Address: "peer:1"}

	clientAnnounce := AnnounceRequestBody{Kind: AnnounceClient, Client: protocol.Client{PublicKey: clientKey.PublicKey(), Info: protocol.ThinClient()}, Server: server}
	encoded, err := json.Marshal(clientAnnounce)
	require.NoError(t, err)

	var decoded AnnounceRequestBody
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, AnnounceClient, decoded.Kind)
	assert.True(t, decoded.Client.PublicKey.Equal(clientKey.PublicKey()))

	serverAnnounce := AnnounceRequestBody{Kind: AnnounceServer, Server: server}
	encoded, err = json.Marshal(serverAnnounce)
	require.NoError(t, err)

	var decodedServer AnnounceRequestBody
	require.NoError(t, json.Unmarshal(encoded, &decodedServer))
	assert.Equal(t, AnnounceServer, decodedServer.Kind)
	assert.True(t, decodedServer.Server.PublicKey.Equal(serverKey.PublicKey()))
}

func TestAnnounceRequestBodyRejectsUnknownVariant(t *testing.T) {
	serverKey, err := crypto.Generate()
	require.NoError(t, err)
	server, err := json.Marshal(protocol.Server{PublicKey: serverKey.PublicKey(), Address: "a"})
	require.NoError(t, err)

	var decoded AnnounceRequestBody
	err = json.Unmarshal([]byte(`{"announce":"bogus","server":`+string(server)+`}`), &decoded)
	assert.Error(t, err)
}

func TestSendRequestBodyJSONShape(t *testing.T) {
	senderKey, err := crypto.Generate()
	require.NoError(t, err)
	serverKey, err := crypto.Generate()
	require.NoError(t, err)
	receiverKey, err := crypto.Generate()
	require.NoError(t, err)

	body := SendRequestBody{
		Sender: protocol.Sender{
			Client: protocol.Client{PublicKey: senderKey.PublicKey(), Info: protocol.ThinClient()},
			Server: protocol.Server{PublicKey: serverKey.PublicKey(), Address: "a"},
		},
		Receiver: receiverKey.PublicKey(),
		Channel:  "chat",
	}

	encoded, err := json.Marshal(body)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(encoded, &raw))
	receiver, ok := raw["receiver"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, receiver, "public_key")

	var decoded SendRequestBody
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.True(t, decoded.Receiver.Equal(receiverKey.PublicKey()))
	assert.Equal(t, "chat", decoded.Channel)
}

func TestInfoResponseJSONShape(t *testing.T) {
	serverKey, err := crypto.Generate()
	require.NoError(t, err)
	seed := uint64(1) << 63

	resp := InfoResponse{
		Standard:  protocol.StandardVersion,
		PublicKey: serverKey.PublicKey(),
		ProofSeed: seed,
		ProofSign: crypto.Sign(serverKey, protocol.SeedBytes(seed)),
	}

	encoded, err := json.Marshal(resp)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(encoded, &raw))
	assert.Contains(t, raw, "server")
	assert.Contains(t, raw, "proof")

	var decoded InfoResponse
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	require.NoError(t, decoded.Validate())
}
