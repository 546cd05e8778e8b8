// Package sampling defines the generation provider consumed by the client
// when the server delegates a sampling/createMessage request, plus an HTTP
// provider targeting an OpenAI-compatible chat-completions endpoint.
package sampling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/modelcontext/duplex/pkg/logging"
	"github.com/modelcontext/duplex/pkg/protocol"
)

// Provider produces a generation for a delegated sampling request
type Provider interface {
	CreateMessage(ctx context.Context, req *protocol.CreateMessageParams) (*protocol.CreateMessageResult, error)
}

// Config configures the HTTP provider
type Config struct {
	// BaseURL of the OpenAI-compatible server, without the trailing
	// /chat/completions path
	BaseURL string

	// Model name passed through to the backend
	Model string

	// RequestTimeout bounds one completion call
	RequestTimeout time.Duration

	// MaxTokens used when the delegated request does not set its own bound
	MaxTokens int

	// HTTPClient overrides the default client, mainly for tests
	HTTPClient *http.Client

	// Logger for request/failure logging
	Logger logging.Logger
}

// DefaultConfig returns a config pointed at a local model server
func DefaultConfig() Config {
	return Config{
		BaseURL:        "http://localhost:8000/v1",
		Model:          "local-model",
		RequestTimeout: 120 * time.Second,
		MaxTokens:      512,
	}
}

// HTTPProvider calls an OpenAI-compatible chat-completions endpoint. A
// failed call still yields a well-formed result carrying an error-flavored
// text block, so a broken backend never corrupts the protocol exchange.
type HTTPProvider struct {
	config Config
	client *http.Client
	logger logging.Logger
}

// NewHTTPProvider creates a provider from the given config
func NewHTTPProvider(config Config) *HTTPProvider {
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = defaults.RequestTimeout
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = defaults.MaxTokens
	}

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: config.RequestTimeout}
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.NewComponent("sampling")
	}

	return &HTTPProvider{
		config: config,
		client: client,
		logger: logger,
	}
}

// chat-completions wire types
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// CreateMessage runs one generation. It never returns an error for backend
// failures; those come back as an error-flavored text result instead.
func (p *HTTPProvider) CreateMessage(ctx context.Context, req *protocol.CreateMessageParams) (*protocol.CreateMessageResult, error) {
	result, err := p.complete(ctx, req)
	if err != nil {
		p.logger.WithError(err).Warn("sampling backend failed")
		return &protocol.CreateMessageResult{
			Role:       protocol.RoleAssistant,
			Content:    protocol.TextContent(fmt.Sprintf("[sampling error] %v", err)),
			Model:      p.config.Model,
			StopReason: "error",
		}, nil
	}
	return result, nil
}

func (p *HTTPProvider) complete(ctx context.Context, req *protocol.CreateMessageParams) (*protocol.CreateMessageResult, error) {
	messages := make([]chatMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		messages = append(messages, chatMessage{Role: m.Role, Content: m.Content.Text})
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}

	body, err := json.Marshal(chatRequest{
		Model:     p.config.Model,
		Messages:  messages,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode completion request: %w", err)
	}

	url := p.config.BaseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("completion call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("completion call returned %d: %s", resp.StatusCode, raw)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("completion response carried no choices")
	}

	choice := parsed.Choices[0]
	stopReason := "endTurn"
	if choice.FinishReason != "" && choice.FinishReason != "stop" {
		stopReason = choice.FinishReason
	}
	model := parsed.Model
	if model == "" {
		model = p.config.Model
	}

	return &protocol.CreateMessageResult{
		Role:       protocol.RoleAssistant,
		Content:    protocol.TextContent(choice.Message.Content),
		Model:      model,
		StopReason: stopReason,
	}, nil
}

// ProviderFunc adapts a function to the Provider interface
type ProviderFunc func(ctx context.Context, req *protocol.CreateMessageParams) (*protocol.CreateMessageResult, error)

// CreateMessage implements Provider
func (f ProviderFunc) CreateMessage(ctx context.Context, req *protocol.CreateMessageParams) (*protocol.CreateMessageResult, error) {
	return f(ctx, req)
}
