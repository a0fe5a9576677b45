package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientInfoThinRoundTrip(t *testing.T) {
	raw, err := json.Marshal(ThinClient())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"thin"}`, string(raw))

	var decoded ClientInfo
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, ThinClient(), decoded)
	assert.False(t, decoded.Reachable())
}

func TestClientInfoThickRoundTrip(t *testing.T) {
	info := ThickClient("https://example.org:7777")
	raw, err := json.Marshal(info)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"thick","address":"https://example.org:7777"}`, string(raw))

	var decoded ClientInfo
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, info, decoded)
	assert.True(t, decoded.Reachable())
}

func TestClientInfoRejectsUnknownType(t *testing.T) {
	var decoded ClientInfo
	err := json.Unmarshal([]byte(`{"type":"bogus"}`), &decoded)
	assert.Error(t, err)
}
