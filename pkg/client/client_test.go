package client

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelcontext/duplex/pkg/channel"
	"github.com/modelcontext/duplex/pkg/engine"
	duplexerrors "github.com/modelcontext/duplex/pkg/errors"
	"github.com/modelcontext/duplex/pkg/logging"
	"github.com/modelcontext/duplex/pkg/protocol"
	"github.com/modelcontext/duplex/pkg/server"
)

func testClientInfo() protocol.ClientInfo {
	return protocol.ClientInfo{Name: "test-client", Version: "0.1.0"}
}

// startPair connects c to a fresh server and returns the server for
// registry setup done before the call.
func startPair(t *testing.T, c *Client, srv *server.Server) {
	t.Helper()
	serverEnd, clientEnd := channel.NewPair()
	require.NoError(t, srv.Serve(context.Background(), serverEnd))
	t.Cleanup(func() { _ = srv.Close() })
	require.NoError(t, c.Connect(context.Background(), clientEnd))
	t.Cleanup(func() { _ = c.Close() })
}

func newTestServer(opts ...server.Option) *server.Server {
	opts = append([]server.Option{server.WithLogger(logging.NopLogger())}, opts...)
	return server.New(protocol.ServerInfo{Name: "test-server", Version: "0.1.0"}, opts...)
}

func TestInitializeHandshake(t *testing.T) {
	c := New(testClientInfo(), WithLogger(logging.NopLogger()))
	srv := newTestServer(server.WithInstructions("demo"))
	startPair(t, c, srv)

	assert.Equal(t, StateUnconnected, c.State())

	handshake, err := c.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateReady, c.State())
	assert.Equal(t, protocol.ProtocolVersion, handshake.ProtocolVersion)
	assert.Equal(t, int64(1), handshake.RequestID)
	assert.Equal(t, "test-server", handshake.ServerInfo.Name)
	assert.Equal(t, "demo", handshake.Instructions)
	// Roots are always declared; sampling only with a provider.
	assert.NotNil(t, handshake.ClientCapabilities.Roots)
	assert.Nil(t, handshake.ClientCapabilities.Sampling)
	assert.Same(t, handshake, c.Handshake())
}

func TestInitializeBeforeConnect(t *testing.T) {
	c := New(testClientInfo(), WithLogger(logging.NopLogger()))
	_, err := c.Initialize(context.Background())
	require.Error(t, err)
}

func TestInitializeTwiceFails(t *testing.T) {
	c := New(testClientInfo(), WithLogger(logging.NopLogger()))
	startPair(t, c, newTestServer())

	_, err := c.Initialize(context.Background())
	require.NoError(t, err)
	_, err = c.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state ready")
}

// A server answering with a different protocol version must leave the
// client not-Ready, and Initialize must be retryable.
func TestInitializeRejectsVersionSkew(t *testing.T) {
	serverEnd, clientEnd := channel.NewPair()
	peer := engine.New(serverEnd, engine.WithLogger(logging.NopLogger()))

	answers := make(chan string, 2)
	answers <- "1999-12-31"
	answers <- protocol.ProtocolVersion
	peer.RegisterRequestHandler(protocol.MethodInitialize,
		func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			return &protocol.InitializeResult{
				ProtocolVersion: <-answers,
				ServerInfo:      protocol.ServerInfo{Name: "skewed", Version: "0.0.1"},
			}, nil
		})
	peer.Start(context.Background())
	t.Cleanup(func() { _ = peer.Close() })

	c := New(testClientInfo(), WithLogger(logging.NopLogger()))
	require.NoError(t, c.Connect(context.Background(), clientEnd))
	t.Cleanup(func() { _ = c.Close() })

	_, err := c.Initialize(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateUnconnected, c.State())
	assert.Nil(t, c.Handshake())

	// Second attempt against a corrected answer succeeds.
	handshake, err := c.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateReady, c.State())
	assert.Equal(t, "skewed", handshake.ServerInfo.Name)
}

func TestWrappersRequireReady(t *testing.T) {
	c := New(testClientInfo(), WithLogger(logging.NopLogger()))
	startPair(t, c, newTestServer())

	_, err := c.ListTools(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not ready")

	// Ping works pre-handshake.
	require.NoError(t, c.Ping(context.Background()))
}

func TestSetRootsAnnouncesReplacement(t *testing.T) {
	c := New(testClientInfo(),
		WithLogger(logging.NopLogger()),
		WithRoots([]protocol.Root{{URI: "file:///old", Name: "old"}}),
	)
	startPair(t, c, newTestServer())
	_, err := c.Initialize(context.Background())
	require.NoError(t, err)

	roots, err := srvListRoots(c)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, "file:///old", roots[0].URI)

	require.NoError(t, c.SetRoots(context.Background(), []protocol.Root{
		{URI: "file:///a", Name: "a"},
		{URI: "file:///b", Name: "b"},
	}))

	roots, err = srvListRoots(c)
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, "file:///a", roots[0].URI)
}

// srvListRoots asks the client for its root set through the wire, the way
// a server would.
func srvListRoots(c *Client) ([]protocol.Root, error) {
	result, err := c.handleListRoots(context.Background(), nil)
	if err != nil {
		return nil, err
	}
	return result.(*protocol.ListRootsResult).Roots, nil
}

func TestSamplingWithoutProviderFails(t *testing.T) {
	c := New(testClientInfo(), WithLogger(logging.NopLogger()))

	_, err := c.handleCreateMessage(context.Background(), json.RawMessage(`{"messages":[]}`))
	var protoErr duplexerrors.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, duplexerrors.CodeInvalidParams, protoErr.Code())
}

func TestElicitationWithoutHandlerFails(t *testing.T) {
	c := New(testClientInfo(), WithLogger(logging.NopLogger()))

	_, err := c.handleElicit(context.Background(), json.RawMessage(`{"message":"q"}`))
	var protoErr duplexerrors.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, duplexerrors.CodeInvalidParams, protoErr.Code())
}

func TestLogMessageCallback(t *testing.T) {
	received := make(chan protocol.LogMessageParams, 1)
	c := New(testClientInfo(),
		WithLogger(logging.NopLogger()),
		WithLogMessageHandler(func(p protocol.LogMessageParams) { received <- p }),
	)
	srv := newTestServer()
	startPair(t, c, srv)
	_, err := c.Initialize(context.Background())
	require.NoError(t, err)

	require.NoError(t, srv.LogMessage(context.Background(), protocol.LogLevelWarning, "core", "heads up"))

	select {
	case p := <-received:
		assert.Equal(t, string(protocol.LogLevelWarning), p.Level)
		assert.Equal(t, "core", p.Logger)
	case <-time.After(time.Second):
		t.Fatal("log message never arrived")
	}
}

func TestCloseIsTerminal(t *testing.T) {
	c := New(testClientInfo(), WithLogger(logging.NopLogger()))
	startPair(t, c, newTestServer())
	_, err := c.Initialize(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.Close())
	assert.Equal(t, StateClosed, c.State())

	_, err = c.ListTools(context.Background())
	require.Error(t, err)
	_, err = c.Initialize(context.Background())
	require.Error(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unconnected", StateUnconnected.String())
	assert.Equal(t, "negotiating", StateNegotiating.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "closed", StateClosed.String())
}
