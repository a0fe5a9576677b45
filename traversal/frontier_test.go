package traversal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperborea/hyperborea/crypto"
	"github.com/hyperborea/hyperborea/protocol"
)

func TestFrontierQueueOrdersByXORDistance(t *testing.T) {
	target, err := crypto.Generate()
	require.NoError(t, err)

	var servers []protocol.Server
	for i := 0; i < 5; i++ {
		key, err := crypto.Generate()
		require.NoError(t, err)
		servers = append(servers, protocol.Server{PublicKey: key.PublicKey(), Address: "peer"})
	}

	q := newFrontierQueue(servers, target.PublicKey())
	ordered := q.closest(0)
	require.Len(t, ordered, len(servers))

	targetBytes := target.PublicKey().Bytes()
	prev := xorDistance(ordered[0].PublicKey, targetBytes)
	for _, s := range ordered[1:] {
		d := xorDistance(s.PublicKey, targetBytes)
		assert.LessOrEqual(t, lexCompare(prev, d), 0)
		prev = d
	}
}

func TestFrontierQueueClosestRespectsWidth(t *testing.T) {
	target, err := crypto.Generate()
	require.NoError(t, err)

	var servers []protocol.Server
	for i := 0; i < 10; i++ {
		key, err := crypto.Generate()
		require.NoError(t, err)
		servers = append(servers, protocol.Server{PublicKey: key.PublicKey(), Address: "peer"})
	}

	q := newFrontierQueue(servers, target.PublicKey())
	closest := q.closest(3)
	assert.Len(t, closest, 3)
}

func TestFrontierQueueEmpty(t *testing.T) {
	target, err := crypto.Generate()
	require.NoError(t, err)

	q := newFrontierQueue(nil, target.PublicKey())
	assert.Empty(t, q.closest(5))
}

func lexCompare(a, b [33]byte) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
