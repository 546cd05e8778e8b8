// Package client implements the initiator role: it drives the initialize
// handshake, wraps every responder operation in a typed call, serves the
// small request surface a server may turn around and ask of it (sampling,
// elicitation, roots, ping), and dispatches server notifications to
// registered callbacks.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/modelcontext/duplex/pkg/channel"
	"github.com/modelcontext/duplex/pkg/engine"
	duplexerrors "github.com/modelcontext/duplex/pkg/errors"
	"github.com/modelcontext/duplex/pkg/logging"
	"github.com/modelcontext/duplex/pkg/protocol"
	"github.com/modelcontext/duplex/pkg/sampling"
)

// State tracks the client lifecycle. Transitions run strictly forward:
// Unconnected -> Negotiating -> Ready, with Closed terminal from anywhere.
type State int

const (
	StateUnconnected State = iota
	StateNegotiating
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateNegotiating:
		return "negotiating"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ElicitationHandler answers a server-initiated elicitation/create request.
type ElicitationHandler func(ctx context.Context, params *protocol.ElicitParams) (*protocol.ElicitResult, error)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the structured logger.
func WithLogger(logger logging.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSamplingProvider wires the generation backend answering
// sampling/createMessage. Without one, sampling requests fail.
func WithSamplingProvider(provider sampling.Provider) Option {
	return func(c *Client) {
		c.provider = provider
	}
}

// WithElicitationHandler wires the callback answering elicitation/create.
// Without one, elicitation requests fail.
func WithElicitationHandler(handler ElicitationHandler) Option {
	return func(c *Client) {
		c.elicitation = handler
	}
}

// WithRoots sets the initial workspace root set served from roots/list.
func WithRoots(roots []protocol.Root) Option {
	return func(c *Client) {
		c.roots = append([]protocol.Root(nil), roots...)
	}
}

// WithEngineOptions forwards extra options (metrics, tracing, telemetry
// recorder) to the engine built by Connect.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(c *Client) {
		c.engineOpts = append(c.engineOpts, opts...)
	}
}

// WithResourceUpdatedHandler registers the callback for
// notifications/resources/updated.
func WithResourceUpdatedHandler(f func(protocol.ResourceUpdatedParams)) Option {
	return func(c *Client) {
		c.onResourceUpdated = f
	}
}

// WithToolsChangedHandler registers the callback for
// notifications/tools/list_changed.
func WithToolsChangedHandler(f func()) Option {
	return func(c *Client) {
		c.onToolsChanged = f
	}
}

// WithResourcesChangedHandler registers the callback for
// notifications/resources/list_changed.
func WithResourcesChangedHandler(f func()) Option {
	return func(c *Client) {
		c.onResourcesChanged = f
	}
}

// WithPromptsChangedHandler registers the callback for
// notifications/prompts/list_changed.
func WithPromptsChangedHandler(f func()) Option {
	return func(c *Client) {
		c.onPromptsChanged = f
	}
}

// WithLogMessageHandler registers the callback for notifications/message.
func WithLogMessageHandler(f func(protocol.LogMessageParams)) Option {
	return func(c *Client) {
		c.onLogMessage = f
	}
}

// Client is the initiator side of a connection.
type Client struct {
	info        protocol.ClientInfo
	logger      logging.Logger
	provider    sampling.Provider
	elicitation ElicitationHandler
	engineOpts  []engine.Option

	onResourceUpdated  func(protocol.ResourceUpdatedParams)
	onToolsChanged     func()
	onResourcesChanged func()
	onPromptsChanged   func()
	onLogMessage       func(protocol.LogMessageParams)

	mu        sync.RWMutex
	state     State
	engine    *engine.Engine
	roots     []protocol.Root
	handshake *protocol.HandshakeResult
}

// New creates a Client identified by info.
func New(info protocol.ClientInfo, opts ...Option) *Client {
	c := &Client{
		info:   info,
		logger: logging.NewComponent("client"),
		state:  StateUnconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Handshake returns the negotiation record. It is nil before Initialize
// completes.
func (c *Client) Handshake() *protocol.HandshakeResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handshake
}

// Connect binds the client to ch and starts the engine. The client is not
// usable until Initialize completes the handshake.
func (c *Client) Connect(ctx context.Context, ch channel.Channel) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateUnconnected {
		return fmt.Errorf("connect in state %s", c.state)
	}
	if c.engine != nil {
		return fmt.Errorf("client already connected")
	}

	opts := append([]engine.Option{
		engine.WithRole("client"),
		engine.WithLogger(c.logger),
	}, c.engineOpts...)
	eng := engine.New(ch, opts...)

	eng.RegisterRequestHandler(protocol.MethodCreateMessage, c.handleCreateMessage)
	eng.RegisterRequestHandler(protocol.MethodElicit, c.handleElicit)
	eng.RegisterRequestHandler(protocol.MethodListRoots, c.handleListRoots)
	eng.RegisterRequestHandler(protocol.MethodPing, c.handlePing)
	eng.RegisterNotificationHandler(protocol.MethodNotifyResourceUpdated, c.handleResourceUpdated)
	eng.RegisterNotificationHandler(protocol.MethodNotifyToolsChanged, c.handleToolsChanged)
	eng.RegisterNotificationHandler(protocol.MethodNotifyResourcesChanged, c.handleResourcesChanged)
	eng.RegisterNotificationHandler(protocol.MethodNotifyPromptsChanged, c.handlePromptsChanged)
	eng.RegisterNotificationHandler(protocol.MethodNotifyLogMessage, c.handleLogMessage)

	eng.Start(ctx)
	c.engine = eng
	return nil
}

// Initialize runs the handshake: it sends initialize with the client's
// declared capabilities, validates the server's answer, confirms with
// notifications/initialized, and transitions to Ready. A failure leaves the
// client not-Ready; Initialize may be retried.
func (c *Client) Initialize(ctx context.Context) (*protocol.HandshakeResult, error) {
	c.mu.Lock()
	if c.engine == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("initialize before connect")
	}
	if c.state != StateUnconnected {
		state := c.state
		c.mu.Unlock()
		return nil, fmt.Errorf("initialize in state %s", state)
	}
	c.state = StateNegotiating
	eng := c.engine
	caps := c.capabilitiesLocked()
	c.mu.Unlock()

	fail := func(err error) (*protocol.HandshakeResult, error) {
		c.mu.Lock()
		if c.state == StateNegotiating {
			c.state = StateUnconnected
		}
		c.mu.Unlock()
		return nil, err
	}

	raw, requestID, err := eng.SendRequestWithID(ctx, protocol.MethodInitialize, protocol.InitializeParams{
		ProtocolVersion: protocol.ProtocolVersion,
		Capabilities:    caps,
		ClientInfo:      c.info,
	})
	if err != nil {
		return fail(err)
	}

	var result protocol.InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return fail(duplexerrors.HandshakeFailed(fmt.Sprintf("malformed initialize result: %v", err)))
	}
	if result.ProtocolVersion != protocol.ProtocolVersion {
		return fail(duplexerrors.HandshakeFailed(
			fmt.Sprintf("server answered with protocol version %q, want %q", result.ProtocolVersion, protocol.ProtocolVersion)))
	}
	if result.ServerInfo.Name == "" {
		return fail(duplexerrors.HandshakeFailed("initialize result is missing serverInfo.name"))
	}

	if err := eng.SendNotification(ctx, protocol.MethodNotifyInitialized, nil); err != nil {
		return fail(err)
	}

	handshake := &protocol.HandshakeResult{
		ProtocolVersion:    result.ProtocolVersion,
		RequestID:          requestID,
		ClientCapabilities: caps,
		ServerCapabilities: result.Capabilities,
		ClientInfo:         c.info,
		ServerInfo:         result.ServerInfo,
		Instructions:       result.Instructions,
	}

	c.mu.Lock()
	c.handshake = handshake
	c.state = StateReady
	c.mu.Unlock()

	c.logger.Info("handshake complete",
		logging.String("server", result.ServerInfo.Name),
		logging.String("server_version", result.ServerInfo.Version),
	)
	return handshake, nil
}

// capabilitiesLocked derives the declared capability set from the client's
// configuration. The roots block is always declared; sampling and
// elicitation only when a backend is wired.
func (c *Client) capabilitiesLocked() protocol.ClientCapabilities {
	caps := protocol.ClientCapabilities{
		Roots: &protocol.RootsCapability{ListChanged: true},
	}
	if c.provider != nil {
		caps.Sampling = &protocol.SamplingCapability{}
	}
	if c.elicitation != nil {
		caps.Elicitation = &protocol.ElicitationCapability{}
	}
	return caps
}

// Close tears the connection down. The state becomes Closed and stays there.
func (c *Client) Close() error {
	c.mu.Lock()
	eng := c.engine
	c.state = StateClosed
	c.mu.Unlock()
	if eng == nil {
		return nil
	}
	return eng.Close()
}

// SetRoots replaces the whole workspace root set and announces the change.
// Roots are never patched incrementally; the server re-fetches with
// roots/list.
func (c *Client) SetRoots(ctx context.Context, roots []protocol.Root) error {
	c.mu.Lock()
	c.roots = append([]protocol.Root(nil), roots...)
	eng := c.engine
	c.mu.Unlock()

	if eng == nil {
		return nil
	}
	return eng.SendNotification(ctx, protocol.MethodNotifyRootsChanged, nil)
}

// Roots returns the current root set.
func (c *Client) Roots() []protocol.Root {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]protocol.Root(nil), c.roots...)
}

func (c *Client) ready() (*engine.Engine, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateReady {
		return nil, fmt.Errorf("client not ready (state %s)", c.state)
	}
	return c.engine, nil
}

func (c *Client) call(ctx context.Context, method string, params, result interface{}) error {
	eng, err := c.ready()
	if err != nil {
		return err
	}
	raw, err := eng.SendRequest(ctx, method, params)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("malformed %s result: %w", method, err)
	}
	return nil
}

// --- responder operation wrappers ---

// ListTools fetches the server's tool catalog in registration order.
func (c *Client) ListTools(ctx context.Context) ([]protocol.ToolDefinition, error) {
	var result protocol.ListToolsResult
	if err := c.call(ctx, protocol.MethodListTools, nil, &result); err != nil {
		return nil, err
	}
	return result.Tools, nil
}

// CallTool invokes a tool by name. arguments is marshaled as the tool's
// argument object; pass nil for tools that take none. A tool-level failure
// comes back with IsError set, not as a returned error.
func (c *Client) CallTool(ctx context.Context, name string, arguments interface{}) (*protocol.CallToolResult, error) {
	var args json.RawMessage
	if arguments != nil {
		data, err := json.Marshal(arguments)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal tool arguments: %w", err)
		}
		args = data
	}

	var result protocol.CallToolResult
	if err := c.call(ctx, protocol.MethodCallTool, protocol.CallToolParams{Name: name, Arguments: args}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListResources fetches the server's resource catalog.
func (c *Client) ListResources(ctx context.Context) ([]protocol.ResourceDescriptor, error) {
	var result protocol.ListResourcesResult
	if err := c.call(ctx, protocol.MethodListResources, nil, &result); err != nil {
		return nil, err
	}
	return result.Resources, nil
}

// ReadResource fetches the current contents of one resource.
func (c *Client) ReadResource(ctx context.Context, uri string) ([]protocol.ResourceContent, error) {
	var result protocol.ReadResourceResult
	if err := c.call(ctx, protocol.MethodReadResource, protocol.ReadResourceParams{URI: uri}, &result); err != nil {
		return nil, err
	}
	return result.Contents, nil
}

// SubscribeResource registers interest in update notifications for uri.
// Subscribing twice is a no-op.
func (c *Client) SubscribeResource(ctx context.Context, uri string) error {
	return c.call(ctx, protocol.MethodSubscribeResource, protocol.SubscribeResourceParams{URI: uri}, nil)
}

// ListResourceTemplates fetches the server's template catalog.
func (c *Client) ListResourceTemplates(ctx context.Context) ([]protocol.ResourceTemplate, error) {
	var result protocol.ListResourceTemplatesResult
	if err := c.call(ctx, protocol.MethodListResourceTemplates, nil, &result); err != nil {
		return nil, err
	}
	return result.ResourceTemplates, nil
}

// ListPrompts fetches the server's prompt catalog.
func (c *Client) ListPrompts(ctx context.Context) ([]protocol.PromptDefinition, error) {
	var result protocol.ListPromptsResult
	if err := c.call(ctx, protocol.MethodListPrompts, nil, &result); err != nil {
		return nil, err
	}
	return result.Prompts, nil
}

// GetPrompt renders a prompt with the given arguments.
func (c *Client) GetPrompt(ctx context.Context, name string, arguments map[string]string) (*protocol.GetPromptResult, error) {
	var result protocol.GetPromptResult
	if err := c.call(ctx, protocol.MethodGetPrompt, protocol.GetPromptParams{Name: name, Arguments: arguments}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SetLogLevel moves the server's emission threshold.
func (c *Client) SetLogLevel(ctx context.Context, level protocol.LogLevel) error {
	return c.call(ctx, protocol.MethodSetLogLevel, protocol.SetLogLevelParams{Level: string(level)}, nil)
}

// Ping checks liveness. Unlike the other wrappers it works as soon as the
// engine runs, before the handshake.
func (c *Client) Ping(ctx context.Context) error {
	c.mu.RLock()
	eng := c.engine
	c.mu.RUnlock()
	if eng == nil {
		return fmt.Errorf("ping before connect")
	}
	_, err := eng.SendRequest(ctx, protocol.MethodPing, protocol.PingParams{})
	return err
}
