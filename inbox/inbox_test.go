package inbox

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperborea/hyperborea/crypto"
	"github.com/hyperborea/hyperborea/message"
	"github.com/hyperborea/hyperborea/protocol"
)

func makeMessage(t *testing.T, i int) message.Message {
	t.Helper()
	secret, err := crypto.Generate()
	require.NoError(t, err)

	pipeline, err := message.ParsePipeline("base64")
	require.NoError(t, err)

	plaintext := []byte(fmt.Sprintf("payload-%d", i))
	msg, err := message.New(pipeline, plaintext, secret, message.Endpoints{
		Sender:   secret.PublicKey(),
		Receiver: secret.PublicKey(),
		Channel:  "x",
		Seed:     1 << 63,
	})
	require.NoError(t, err)
	return *msg
}

func TestPushPollFIFOOrder(t *testing.T) {
	receiverKey, err := crypto.Generate()
	require.NoError(t, err)

	ib := New(DefaultConfig())

	for i := 0; i < 3; i++ {
		msg := makeMessage(t, i)
		require.NoError(t, ib.Push(receiverKey.PublicKey(), protocol.InboxMessage{Channel: "x", Message: msg}))
	}

	messages, remaining := ib.Poll(receiverKey.PublicKey(), "x", 2)
	require.Len(t, messages, 2)
	assert.Equal(t, 1, remaining)

	messages, remaining = ib.Poll(receiverKey.PublicKey(), "x", 2)
	require.Len(t, messages, 1)
	assert.Equal(t, 0, remaining)
}

func TestPushOverflowChannelCap(t *testing.T) {
	receiverKey, err := crypto.Generate()
	require.NoError(t, err)

	cfg := Config{ChannelCap: 2, AggregateCap: 100, DefaultPollLimit: 64}
	ib := New(cfg)

	require.NoError(t, ib.Push(receiverKey.PublicKey(), protocol.InboxMessage{Channel: "x", Message: makeMessage(t, 0)}))
	require.NoError(t, ib.Push(receiverKey.PublicKey(), protocol.InboxMessage{Channel: "x", Message: makeMessage(t, 1)}))

	err = ib.Push(receiverKey.PublicKey(), protocol.InboxMessage{Channel: "x", Message: makeMessage(t, 2)})
	require.Error(t, err)

	protoErr, ok := err.(*protocol.Error)
	require.True(t, ok)
	assert.Equal(t, protocol.KindInboxFull, protoErr.Kind)

	messages, remaining := ib.Poll(receiverKey.PublicKey(), "x", 0)
	assert.Len(t, messages, 2)
	assert.Equal(t, 0, remaining)
}

func TestPollEmptyChannel(t *testing.T) {
	receiverKey, err := crypto.Generate()
	require.NoError(t, err)

	ib := New(DefaultConfig())
	messages, remaining := ib.Poll(receiverKey.PublicKey(), "absent", 0)
	assert.Nil(t, messages)
	assert.Equal(t, 0, remaining)
}

func TestChannelsAreIndependent(t *testing.T) {
	receiverKey, err := crypto.Generate()
	require.NoError(t, err)

	ib := New(DefaultConfig())
	require.NoError(t, ib.Push(receiverKey.PublicKey(), protocol.InboxMessage{Channel: "a", Message: makeMessage(t, 0)}))
	require.NoError(t, ib.Push(receiverKey.PublicKey(), protocol.InboxMessage{Channel: "b", Message: makeMessage(t, 1)}))

	messages, remaining := ib.Poll(receiverKey.PublicKey(), "a", 0)
	assert.Len(t, messages, 1)
	assert.Equal(t, 0, remaining)

	messages, remaining = ib.Poll(receiverKey.PublicKey(), "b", 0)
	assert.Len(t, messages, 1)
	assert.Equal(t, 0, remaining)
}
