package server

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/op/go-logging.v1"

	"github.com/hyperborea/hyperborea/cert"
	"github.com/hyperborea/hyperborea/crypto"
	"github.com/hyperborea/hyperborea/crypto/compression"
	"github.com/hyperborea/hyperborea/crypto/encryption"
	"github.com/hyperborea/hyperborea/message"
	"github.com/hyperborea/hyperborea/protocol"
)

func newTestContext(t *testing.T) (*Context, *crypto.PrivateKey) {
	t.Helper()
	serverKey, err := crypto.Generate()
	require.NoError(t, err)
	cfg := DefaultConfig(serverKey, "127.0.0.1:0")
	return New(cfg, testLogger(t), nil, nil, nil), serverKey
}

// testLogger builds a real go-logging Logger backed by a discard writer,
// so tests exercise the same logging path production callers wire through
// server.New rather than always passing nil.
func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	backend := logging.AddModuleLevel(logging.NewLogBackend(io.Discard, "", 0))
	backend.SetLevel(logging.DEBUG, "")
	l := logging.MustGetLogger("server_test")
	l.SetBackend(backend)
	return l
}

func connectClient(t *testing.T, sc *Context, serverKey *crypto.PrivateKey) *crypto.PrivateKey {
	t.Helper()
	clientKey, err := crypto.Generate()
	require.NoError(t, err)

	certificate := cert.Build(clientKey, serverKey.PublicKey(), 1000)
	body := ConnectRequestBody{Certificate: certificate, Client: protocol.ThinClient()}
	req := protocol.NewRequest(clientKey, body)

	resp := sc.Connect(context.Background(), req)
	require.True(t, resp.Status.IsSuccess(), "connect: %s", resp.Reason)
	return clientKey
}

func TestConnectThenClientsListsIt(t *testing.T) {
	sc, serverKey := newTestContext(t)
	clientKey := connectClient(t, sc, serverKey)

	clients := sc.Clients()
	require.Len(t, clients.Clients, 1)
	assert.True(t, clients.Clients[0].PublicKey.Equal(clientKey.PublicKey()))
}

func TestConnectRejectsBadProof(t *testing.T) {
	sc, serverKey := newTestContext(t)
	clientKey, err := crypto.Generate()
	require.NoError(t, err)

	certificate := cert.Build(clientKey, serverKey.PublicKey(), 1000)
	body := ConnectRequestBody{Certificate: certificate, Client: protocol.ThinClient()}
	req := protocol.NewRequest(clientKey, body)
	req.ProofSign = crypto.Signature{} // corrupt the envelope's proof-of-key

	resp := sc.Connect(context.Background(), req)
	assert.Equal(t, protocol.StatusCertificateInvalid, resp.Status)
}

func TestInfoCarriesSelfSignedProof(t *testing.T) {
	sc, serverKey := newTestContext(t)
	info := sc.Info()

	require.NoError(t, info.Validate())
	assert.True(t, info.PublicKey.Equal(serverKey.PublicKey()))
	require.NotNil(t, info.Stats)
	assert.Equal(t, 0, info.Stats.ConnectedClients)
}

func TestLookupLocalHit(t *testing.T) {
	sc, serverKey := newTestContext(t)
	clientKey := connectClient(t, sc, serverKey)

	req := protocol.NewRequest(clientKey, LookupRequestBody{PublicKey: clientKey.PublicKey()})
	resp := sc.Lookup(context.Background(), req)

	require.True(t, resp.Status.IsSuccess())
	assert.Equal(t, int(resp.Body.Disposition), 0) // DispositionLocal == 0
	assert.True(t, resp.Body.Client.PublicKey.Equal(clientKey.PublicKey()))
}

func TestLookupMissReturnsHint(t *testing.T) {
	sc, _ := newTestContext(t)
	requester, err := crypto.Generate()
	require.NoError(t, err)
	target, err := crypto.Generate()
	require.NoError(t, err)

	hintServer, err := crypto.Generate()
	require.NoError(t, err)
	sc.router.ObserveServer(protocol.Server{PublicKey: hintServer.PublicKey(), Address: "peer:1"}, uint64(time.Now().Unix()))

	req := protocol.NewRequest(requester, LookupRequestBody{PublicKey: target.PublicKey()})
	resp := sc.Lookup(context.Background(), req)

	require.True(t, resp.Status.IsSuccess())
	require.Len(t, resp.Body.Hint, 1)
	assert.True(t, resp.Body.Hint[0].PublicKey.Equal(hintServer.PublicKey()))
}

func buildMessage(t *testing.T, sender *crypto.PrivateKey, receiver *crypto.PublicKey, plaintext []byte) message.Message {
	t.Helper()
	pipeline := message.Pipeline{Compression: compression.None, Encryption: encryption.None}
	msg, err := message.New(pipeline, plaintext, sender, message.Endpoints{
		Sender:   sender.PublicKey(),
		Receiver: receiver,
		Channel:  "chat",
		Seed:     1,
	})
	require.NoError(t, err)
	return *msg
}

func TestSendDeliversToLocalInbox(t *testing.T) {
	sc, serverKey := newTestContext(t)
	receiverKey := connectClient(t, sc, serverKey)
	senderKey, err := crypto.Generate()
	require.NoError(t, err)

	senderCert := cert.Build(senderKey, serverKey.PublicKey(), 1000)
	senderClient := protocol.Client{PublicKey: senderKey.PublicKey(), Certificate: senderCert, Info: protocol.ThinClient()}
	self := protocol.Server{PublicKey: serverKey.PublicKey(), Address: "self"}

	body := SendRequestBody{
		Sender:   protocol.Sender{Client: senderClient, Server: self},
		Receiver: receiverKey.PublicKey(),
		Channel:  "chat",
		Message:  buildMessage(t, senderKey, receiverKey.PublicKey(), []byte("hello")),
	}
	req := protocol.NewRequest(senderKey, body)
	resp := sc.Send(context.Background(), req)
	require.True(t, resp.Status.IsSuccess(), "send: %s", resp.Reason)

	pollReq := protocol.NewRequest(receiverKey, PollRequestBody{Channel: "chat"})
	pollResp := sc.Poll(context.Background(), pollReq)
	require.True(t, pollResp.Status.IsSuccess())
	require.Len(t, pollResp.Body.Messages, 1)
	assert.Equal(t, uint64(0), pollResp.Body.Remaining)
}

func TestSendToUnknownReceiverIsNotConnected(t *testing.T) {
	sc, serverKey := newTestContext(t)
	senderKey, err := crypto.Generate()
	require.NoError(t, err)
	receiverKey, err := crypto.Generate()
	require.NoError(t, err)

	senderCert := cert.Build(senderKey, serverKey.PublicKey(), 1000)
	senderClient := protocol.Client{PublicKey: senderKey.PublicKey(), Certificate: senderCert, Info: protocol.ThinClient()}
	self := protocol.Server{PublicKey: serverKey.PublicKey(), Address: "self"}

	body := SendRequestBody{
		Sender:   protocol.Sender{Client: senderClient, Server: self},
		Receiver: receiverKey.PublicKey(),
		Channel:  "chat",
		Message:  buildMessage(t, senderKey, receiverKey.PublicKey(), []byte("hello")),
	}
	req := protocol.NewRequest(senderKey, body)
	resp := sc.Send(context.Background(), req)

	assert.Equal(t, protocol.StatusNotConnected, resp.Status)
}

type stubForwarder struct {
	calls int
	resp  protocol.Response[SendResponseBody]
	err   error
}

func (s *stubForwarder) ForwardSend(_ context.Context, _ protocol.Server, _ protocol.Request[SendRequestBody]) (protocol.Response[SendResponseBody], error) {
	s.calls++
	return s.resp, s.err
}

func TestSendForwardsToKnownRemoteBinding(t *testing.T) {
	serverKey, err := crypto.Generate()
	require.NoError(t, err)
	remoteServerKey, err := crypto.Generate()
	require.NoError(t, err)
	receiverKey, err := crypto.Generate()
	require.NoError(t, err)
	senderKey, err := crypto.Generate()
	require.NoError(t, err)

	forwarder := &stubForwarder{resp: protocol.NewSuccessResponse(protocol.StatusSuccess, remoteServerKey, 1<<63, SendResponseBody{})}

	cfg := DefaultConfig(serverKey, "127.0.0.1:0")
	sc := New(cfg, nil, forwarder, nil, nil)

	remoteServer := protocol.Server{PublicKey: remoteServerKey.PublicKey(), Address: "remote:1"}
	receiverCert := cert.Build(receiverKey, remoteServerKey.PublicKey(), 1000)
	receiverClient := protocol.Client{PublicKey: receiverKey.PublicKey(), Certificate: receiverCert, Info: protocol.ThinClient()}
	require.NoError(t, sc.router.ObserveClient(receiverClient, remoteServer, uint64(time.Now().Unix())))

	senderCert := cert.Build(senderKey, serverKey.PublicKey(), 1000)
	senderClient := protocol.Client{PublicKey: senderKey.PublicKey(), Certificate: senderCert, Info: protocol.ThinClient()}
	self := protocol.Server{PublicKey: serverKey.PublicKey(), Address: "self"}

	body := SendRequestBody{
		Sender:   protocol.Sender{Client: senderClient, Server: self},
		Receiver: receiverKey.PublicKey(),
		Channel:  "chat",
		Message:  buildMessage(t, senderKey, receiverKey.PublicKey(), []byte("hello")),
	}
	req := protocol.NewRequest(senderKey, body)
	resp := sc.Send(context.Background(), req)

	require.True(t, resp.Status.IsSuccess(), "send: %s", resp.Reason)
	assert.Equal(t, 1, forwarder.calls)
}

func TestSendHopBudgetExhaustion(t *testing.T) {
	serverKey, err := crypto.Generate()
	require.NoError(t, err)
	remoteServerKey, err := crypto.Generate()
	require.NoError(t, err)
	receiverKey, err := crypto.Generate()
	require.NoError(t, err)
	senderKey, err := crypto.Generate()
	require.NoError(t, err)

	forwarder := &stubForwarder{resp: protocol.NewSuccessResponse(protocol.StatusSuccess, remoteServerKey, 1<<63, SendResponseBody{})}

	cfg := DefaultConfig(serverKey, "127.0.0.1:0")
	cfg.HopBudget = 2
	sc := New(cfg, nil, forwarder, nil, nil)

	remoteServer := protocol.Server{PublicKey: remoteServerKey.PublicKey(), Address: "remote:1"}
	receiverCert := cert.Build(receiverKey, remoteServerKey.PublicKey(), 1000)
	receiverClient := protocol.Client{PublicKey: receiverKey.PublicKey(), Certificate: receiverCert, Info: protocol.ThinClient()}
	require.NoError(t, sc.router.ObserveClient(receiverClient, remoteServer, uint64(time.Now().Unix())))

	senderCert := cert.Build(senderKey, serverKey.PublicKey(), 1000)
	senderClient := protocol.Client{PublicKey: senderKey.PublicKey(), Certificate: senderCert, Info: protocol.ThinClient()}
	self := protocol.Server{PublicKey: serverKey.PublicKey(), Address: "self"}

	body := SendRequestBody{
		Sender:   protocol.Sender{Client: senderClient, Server: self},
		Receiver: receiverKey.PublicKey(),
		Channel:  "chat",
		Message:  buildMessage(t, senderKey, receiverKey.PublicKey(), []byte("hello")),
	}
	req := protocol.NewRequest(senderKey, body)

	for i := 0; i < cfg.HopBudget; i++ {
		resp := sc.Send(context.Background(), req)
		require.True(t, resp.Status.IsSuccess())
	}

	resp := sc.Send(context.Background(), req)
	assert.Equal(t, protocol.StatusNotConnected, resp.Status)
	assert.Equal(t, cfg.HopBudget, forwarder.calls)
}

func TestRateLimitRejectsBurst(t *testing.T) {
	sc, serverKey := newTestContext(t)
	sc.limiters = newLimiterRegistry(0, 1)
	clientKey, err := crypto.Generate()
	require.NoError(t, err)

	certificate := cert.Build(clientKey, serverKey.PublicKey(), 1000)
	body := ConnectRequestBody{Certificate: certificate, Client: protocol.ThinClient()}
	req := protocol.NewRequest(clientKey, body)

	first := sc.Connect(context.Background(), req)
	require.True(t, first.Status.IsSuccess())

	second := sc.Connect(context.Background(), req)
	assert.Equal(t, protocol.StatusInternalError, second.Status)
}
