package server

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelcontext/duplex/pkg/logging"
	"github.com/modelcontext/duplex/pkg/protocol"
)

func TestCreateMessageDelegation(t *testing.T) {
	srv := New(testInfo(), WithLogger(logging.NopLogger()))
	drv := startServer(t, srv)
	drv.RegisterRequestHandler(protocol.MethodCreateMessage,
		func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			var p protocol.CreateMessageParams
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, err
			}
			require.Len(t, p.Messages, 1)
			return &protocol.CreateMessageResult{
				Role:       protocol.RoleAssistant,
				Content:    protocol.TextContent("generated answer"),
				Model:      "test-model",
				StopReason: "endTurn",
			}, nil
		})
	initialize(t, drv)

	result := srv.CreateMessage(context.Background(), &protocol.CreateMessageParams{
		Messages: []protocol.SamplingMessage{{
			Role:    protocol.RoleUser,
			Content: protocol.TextContent("question"),
		}},
	})
	require.NotNil(t, result)
	assert.Equal(t, "generated answer", result.Content.Text)
	assert.Equal(t, "endTurn", result.StopReason)
}

func TestCreateMessageFailureYieldsFallback(t *testing.T) {
	srv := New(testInfo(), WithLogger(logging.NopLogger()))
	drv := startServer(t, srv)
	drv.RegisterRequestHandler(protocol.MethodCreateMessage,
		func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			return nil, errors.New("no provider configured")
		})
	initialize(t, drv)

	result := srv.CreateMessage(context.Background(), &protocol.CreateMessageParams{
		Messages: []protocol.SamplingMessage{{
			Role:    protocol.RoleUser,
			Content: protocol.TextContent("question"),
		}},
	})
	// Sampling never fails the caller: the fallback is labeled, not an error.
	require.NotNil(t, result)
	assert.Equal(t, "error", result.StopReason)
	assert.Contains(t, result.Content.Text, "[sampling unavailable]")
}

func TestCreateMessageBeforeServe(t *testing.T) {
	srv := New(testInfo(), WithLogger(logging.NopLogger()))
	result := srv.CreateMessage(context.Background(), &protocol.CreateMessageParams{})
	require.NotNil(t, result)
	assert.Equal(t, "error", result.StopReason)
}

func TestElicitDelegation(t *testing.T) {
	srv := New(testInfo(), WithLogger(logging.NopLogger()))
	drv := startServer(t, srv)

	answers := map[string]protocol.ElicitResult{
		"accept":  {Action: protocol.ElicitActionAccept, Content: map[string]string{"name": "ada"}},
		"decline": {Action: protocol.ElicitActionDecline},
		"cancel":  {Action: protocol.ElicitActionCancel},
	}
	drv.RegisterRequestHandler(protocol.MethodElicit,
		func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			var p protocol.ElicitParams
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, err
			}
			answer := answers[p.Message]
			return &answer, nil
		})
	initialize(t, drv)

	result, err := srv.Elicit(context.Background(), "accept", map[string]interface{}{
		"type": "object",
	})
	require.NoError(t, err)
	assert.Equal(t, protocol.ElicitActionAccept, result.Action)
	assert.Equal(t, "ada", result.Content["name"])

	// Decline and cancel are normal outcomes.
	result, err = srv.Elicit(context.Background(), "decline", nil)
	require.NoError(t, err)
	assert.Equal(t, protocol.ElicitActionDecline, result.Action)
	assert.Empty(t, result.Content)

	result, err = srv.Elicit(context.Background(), "cancel", nil)
	require.NoError(t, err)
	assert.Equal(t, protocol.ElicitActionCancel, result.Action)
}

func TestElicitRejectsUnknownAction(t *testing.T) {
	srv := New(testInfo(), WithLogger(logging.NopLogger()))
	drv := startServer(t, srv)
	drv.RegisterRequestHandler(protocol.MethodElicit,
		func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			return &protocol.ElicitResult{Action: "maybe"}, nil
		})
	initialize(t, drv)

	_, err := srv.Elicit(context.Background(), "q", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown elicitation action")
}

func TestListRootsDelegation(t *testing.T) {
	srv := New(testInfo(), WithLogger(logging.NopLogger()))
	drv := startServer(t, srv)
	drv.RegisterRequestHandler(protocol.MethodListRoots,
		func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			return &protocol.ListRootsResult{Roots: []protocol.Root{
				{URI: "file:///work", Name: "work"},
				{URI: "file:///home", Name: "home"},
			}}, nil
		})
	initialize(t, drv)

	roots, err := srv.ListRoots(context.Background())
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, "file:///work", roots[0].URI)
}

func TestDelegationsRequireServing(t *testing.T) {
	srv := New(testInfo(), WithLogger(logging.NopLogger()))

	_, err := srv.Elicit(context.Background(), "q", nil)
	require.Error(t, err)
	_, err = srv.ListRoots(context.Background())
	require.Error(t, err)
	require.Error(t, srv.Ping(context.Background()))
}
