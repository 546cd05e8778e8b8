package sampling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelcontext/duplex/pkg/logging"
	"github.com/modelcontext/duplex/pkg/protocol"
)

func TestCreateMessage(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"model": "test-model",
			"choices": []map[string]interface{}{
				{
					"message":       map[string]string{"role": "assistant", "content": "generated text"},
					"finish_reason": "stop",
				},
			},
		})
	}))
	defer server.Close()

	provider := NewHTTPProvider(Config{
		BaseURL: server.URL + "/v1",
		Model:   "test-model",
		Logger:  logging.NopLogger(),
	})

	result, err := provider.CreateMessage(context.Background(), &protocol.CreateMessageParams{
		Messages: []protocol.SamplingMessage{
			{Role: protocol.RoleUser, Content: protocol.TextContent("hello")},
		},
		SystemPrompt: "be brief",
		MaxTokens:    64,
	})
	require.NoError(t, err)

	assert.Equal(t, protocol.RoleAssistant, result.Role)
	assert.Equal(t, "generated text", result.Content.Text)
	assert.Equal(t, "test-model", result.Model)
	assert.Equal(t, "endTurn", result.StopReason)

	// System prompt rides ahead of the conversation.
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "be brief", captured.Messages[0].Content)
	assert.Equal(t, 64, captured.MaxTokens)
}

func TestBackendFailureBecomesTextResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model melted", http.StatusInternalServerError)
	}))
	defer server.Close()

	provider := NewHTTPProvider(Config{
		BaseURL: server.URL + "/v1",
		Logger:  logging.NopLogger(),
	})

	result, err := provider.CreateMessage(context.Background(), &protocol.CreateMessageParams{
		Messages: []protocol.SamplingMessage{
			{Role: protocol.RoleUser, Content: protocol.TextContent("hello")},
		},
	})

	// Backend failures must not surface as errors.
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.Content.Text, "[sampling error]"), result.Content.Text)
	assert.Equal(t, "error", result.StopReason)
}

func TestUnreachableBackend(t *testing.T) {
	provider := NewHTTPProvider(Config{
		BaseURL: "http://127.0.0.1:1/v1",
		Logger:  logging.NopLogger(),
	})

	result, err := provider.CreateMessage(context.Background(), &protocol.CreateMessageParams{})
	require.NoError(t, err)
	assert.Contains(t, result.Content.Text, "[sampling error]")
}

func TestNonStopFinishReasonPreserved(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{
					"message":       map[string]string{"role": "assistant", "content": "cut short"},
					"finish_reason": "length",
				},
			},
		})
	}))
	defer server.Close()

	provider := NewHTTPProvider(Config{BaseURL: server.URL + "/v1", Model: "m", Logger: logging.NopLogger()})
	result, err := provider.CreateMessage(context.Background(), &protocol.CreateMessageParams{})
	require.NoError(t, err)
	assert.Equal(t, "length", result.StopReason)
	// Backend omitted the model name; config fills it in.
	assert.Equal(t, "m", result.Model)
}

func TestProviderFunc(t *testing.T) {
	provider := ProviderFunc(func(ctx context.Context, req *protocol.CreateMessageParams) (*protocol.CreateMessageResult, error) {
		return &protocol.CreateMessageResult{Role: protocol.RoleAssistant, StopReason: "endTurn"}, nil
	})
	result, err := provider.CreateMessage(context.Background(), &protocol.CreateMessageParams{})
	require.NoError(t, err)
	assert.Equal(t, "endTurn", result.StopReason)
}
