package traversal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperborea/hyperborea/crypto"
	"github.com/hyperborea/hyperborea/protocol"
)

type scriptedTransport struct {
	byServer map[string]Answer
}

func (s *scriptedTransport) Lookup(_ context.Context, target protocol.Server, _ *crypto.PublicKey, _ *protocol.ClientKind) (Answer, error) {
	return s.byServer[addrKey(target)], nil
}

func addrKey(s protocol.Server) string {
	b := s.PublicKey.Bytes()
	return string(b[:])
}

func genServer(t *testing.T) (protocol.Server, *crypto.PrivateKey) {
	t.Helper()
	k, err := crypto.Generate()
	require.NoError(t, err)
	return protocol.Server{PublicKey: k.PublicKey(), Address: "addr"}, k
}

func TestRunFindsRemoteInOneHop(t *testing.T) {
	self, err := crypto.Generate()
	require.NoError(t, err)
	target, err := crypto.Generate()
	require.NoError(t, err)

	s1, _ := genServer(t)
	holder, _ := genServer(t)

	transport := &scriptedTransport{byServer: map[string]Answer{
		addrKey(s1): {
			Disposition: DispositionRemote,
			Client:      protocol.Client{PublicKey: target.PublicKey()},
			Server:      holder,
			Available:   true,
		},
	}}

	result, err := Run(context.Background(), transport, self.PublicKey(), target.PublicKey(), nil, []protocol.Server{s1}, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, DispositionRemote, result.Disposition)
	assert.True(t, result.Server.PublicKey.Equal(holder.PublicKey))
}

func TestRunFollowsHintsAcrossDepth(t *testing.T) {
	self, err := crypto.Generate()
	require.NoError(t, err)
	target, err := crypto.Generate()
	require.NoError(t, err)

	s1, _ := genServer(t)
	s2, _ := genServer(t)
	holder, _ := genServer(t)

	transport := &scriptedTransport{byServer: map[string]Answer{
		addrKey(s1): {Disposition: DispositionHint, Hint: []protocol.Server{s2}},
		addrKey(s2): {
			Disposition: DispositionRemote,
			Client:      protocol.Client{PublicKey: target.PublicKey()},
			Server:      holder,
			Available:   true,
		},
	}}

	cfg := DefaultConfig()
	result, err := Run(context.Background(), transport, self.PublicKey(), target.PublicKey(), nil, []protocol.Server{s1}, cfg)
	require.NoError(t, err)
	assert.True(t, result.Server.PublicKey.Equal(holder.PublicKey))
}

func TestRunReturnsNotFoundOnExhaustedFrontier(t *testing.T) {
	self, err := crypto.Generate()
	require.NoError(t, err)
	target, err := crypto.Generate()
	require.NoError(t, err)

	s1, _ := genServer(t)
	transport := &scriptedTransport{byServer: map[string]Answer{
		addrKey(s1): {Disposition: DispositionHint},
	}}

	_, err = Run(context.Background(), transport, self.PublicKey(), target.PublicKey(), nil, []protocol.Server{s1}, DefaultConfig())
	require.Error(t, err)
	protoErr, ok := err.(*protocol.Error)
	require.True(t, ok)
	assert.Equal(t, protocol.KindNotFound, protoErr.Kind)
}

func TestRunRespectsMaxDepth(t *testing.T) {
	self, err := crypto.Generate()
	require.NoError(t, err)
	target, err := crypto.Generate()
	require.NoError(t, err)

	s1, _ := genServer(t)
	s2, _ := genServer(t)
	holder, _ := genServer(t)

	transport := &scriptedTransport{byServer: map[string]Answer{
		addrKey(s1): {Disposition: DispositionHint, Hint: []protocol.Server{s2}},
		addrKey(s2): {
			Disposition: DispositionRemote,
			Client:      protocol.Client{PublicKey: target.PublicKey()},
			Server:      holder,
			Available:   true,
		},
	}}

	cfg := DefaultConfig()
	cfg.MaxDepth = 1

	_, err = Run(context.Background(), transport, self.PublicKey(), target.PublicKey(), nil, []protocol.Server{s1}, cfg)
	require.Error(t, err)
}

func TestRunRespectsDeadline(t *testing.T) {
	self, err := crypto.Generate()
	require.NoError(t, err)
	target, err := crypto.Generate()
	require.NoError(t, err)

	s1, _ := genServer(t)
	transport := &scriptedTransport{byServer: map[string]Answer{}}

	cfg := DefaultConfig()
	cfg.Timeout = time.Nanosecond

	_, err = Run(context.Background(), transport, self.PublicKey(), target.PublicKey(), nil, []protocol.Server{s1}, cfg)
	require.Error(t, err)
}
