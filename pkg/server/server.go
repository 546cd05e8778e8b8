// Package server implements the responder role: it owns the tool, resource,
// resource-template and prompt registries, answers the full request table,
// emits subscription-gated and level-gated notifications, and can turn
// around and issue delegated requests (sampling, elicitation, roots) to the
// connected client.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/yosida95/uritemplate/v3"

	"github.com/modelcontext/duplex/pkg/channel"
	"github.com/modelcontext/duplex/pkg/engine"
	duplexerrors "github.com/modelcontext/duplex/pkg/errors"
	"github.com/modelcontext/duplex/pkg/logging"
	"github.com/modelcontext/duplex/pkg/protocol"
)

// ToolHandler executes one tool call. A returned error is reported in-band
// through CallToolResult.IsError, never as a protocol error.
type ToolHandler func(ctx context.Context, args json.RawMessage) ([]protocol.ContentBlock, error)

// PromptHandler renders one prompt from its arguments.
type PromptHandler func(ctx context.Context, args map[string]string) (*protocol.GetPromptResult, error)

type toolEntry struct {
	def     protocol.ToolDefinition
	handler ToolHandler
}

type resourceEntry struct {
	desc    protocol.ResourceDescriptor
	content protocol.ResourceContent
}

type templateEntry struct {
	def      protocol.ResourceTemplate
	compiled *uritemplate.Template
}

type promptEntry struct {
	def     protocol.PromptDefinition
	handler PromptHandler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithInstructions sets the free-text usage hints returned from initialize.
func WithInstructions(instructions string) Option {
	return func(s *Server) {
		s.instructions = instructions
	}
}

// WithEngineOptions forwards extra options (metrics, tracing, telemetry
// recorder) to the engine built by Serve.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(s *Server) {
		s.engineOpts = append(s.engineOpts, opts...)
	}
}

// Server is the responder side of a connection. Registration may happen
// before or after Serve; list results preserve registration order.
type Server struct {
	info         protocol.ServerInfo
	instructions string
	logger       logging.Logger
	engineOpts   []engine.Option

	mu     sync.RWMutex
	engine *engine.Engine

	toolOrder []string
	tools     map[string]toolEntry

	resourceOrder []string
	resources     map[string]*resourceEntry

	templateOrder []string
	templates     map[string]templateEntry

	promptOrder []string
	prompts     map[string]promptEntry

	subs     map[string]struct{}
	minLevel protocol.LogLevel

	initialized bool
	clientInfo  protocol.ClientInfo
	clientCaps  protocol.ClientCapabilities
}

// New creates a Server identified by info. The log-level threshold starts at
// info; logging/setLevel moves it.
func New(info protocol.ServerInfo, opts ...Option) *Server {
	s := &Server{
		info:      info,
		logger:    logging.NewComponent("server"),
		tools:     make(map[string]toolEntry),
		resources: make(map[string]*resourceEntry),
		templates: make(map[string]templateEntry),
		prompts:   make(map[string]promptEntry),
		subs:      make(map[string]struct{}),
		minLevel:  protocol.LogLevelInfo,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterTool adds a tool under def.Name. Names are unique.
func (s *Server) RegisterTool(def protocol.ToolDefinition, handler ToolHandler) error {
	if def.Name == "" {
		return fmt.Errorf("tool name must not be empty")
	}
	if handler == nil {
		return fmt.Errorf("tool %s: handler must not be nil", def.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tools[def.Name]; exists {
		return fmt.Errorf("tool already registered: %s", def.Name)
	}
	s.toolOrder = append(s.toolOrder, def.Name)
	s.tools[def.Name] = toolEntry{def: def, handler: handler}
	return nil
}

// RegisterResource adds a resource and its initial content under desc.URI.
func (s *Server) RegisterResource(desc protocol.ResourceDescriptor, content protocol.ResourceContent) error {
	if desc.URI == "" {
		return fmt.Errorf("resource URI must not be empty")
	}
	content.URI = desc.URI
	if content.MIMEType == "" {
		content.MIMEType = desc.MIMEType
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.resources[desc.URI]; exists {
		return fmt.Errorf("resource already registered: %s", desc.URI)
	}
	s.resourceOrder = append(s.resourceOrder, desc.URI)
	s.resources[desc.URI] = &resourceEntry{desc: desc, content: content}
	return nil
}

// RegisterResourceTemplate adds a parameterized resource family. The
// template string is validated (RFC 6570) at registration time.
func (s *Server) RegisterResourceTemplate(def protocol.ResourceTemplate) error {
	if def.URITemplate == "" {
		return fmt.Errorf("resource template URI must not be empty")
	}
	compiled, err := uritemplate.New(def.URITemplate)
	if err != nil {
		return fmt.Errorf("invalid resource template %s: %w", def.URITemplate, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.templates[def.URITemplate]; exists {
		return fmt.Errorf("resource template already registered: %s", def.URITemplate)
	}
	s.templateOrder = append(s.templateOrder, def.URITemplate)
	s.templates[def.URITemplate] = templateEntry{def: def, compiled: compiled}
	return nil
}

// RegisterPrompt adds a prompt under def.Name.
func (s *Server) RegisterPrompt(def protocol.PromptDefinition, handler PromptHandler) error {
	if def.Name == "" {
		return fmt.Errorf("prompt name must not be empty")
	}
	if handler == nil {
		return fmt.Errorf("prompt %s: handler must not be nil", def.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.prompts[def.Name]; exists {
		return fmt.Errorf("prompt already registered: %s", def.Name)
	}
	s.promptOrder = append(s.promptOrder, def.Name)
	s.prompts[def.Name] = promptEntry{def: def, handler: handler}
	return nil
}

// UpdateResource mutates the stored text content for uri in place and, when
// the client holds a subscription, announces the change. A read issued after
// the notification sees the new content.
func (s *Server) UpdateResource(ctx context.Context, uri, text string) error {
	s.mu.Lock()
	entry, ok := s.resources[uri]
	if !ok {
		s.mu.Unlock()
		return duplexerrors.ResourceNotFound(uri)
	}
	entry.content.Text = text
	entry.content.Blob = ""
	title := entry.desc.Title
	s.mu.Unlock()

	return s.notifyResourceUpdated(ctx, uri, title)
}

// MatchTemplate reports the first registered template (in registration
// order) whose expansion set contains uri.
func (s *Server) MatchTemplate(uri string) (protocol.ResourceTemplate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, key := range s.templateOrder {
		entry := s.templates[key]
		if entry.compiled.Match(uri) != nil {
			return entry.def, true
		}
	}
	return protocol.ResourceTemplate{}, false
}

// Serve binds the server to ch: it builds the engine, registers every
// request and notification handler, and starts the receive loop. Serve
// returns immediately; the engine runs until Close or channel closure.
func (s *Server) Serve(ctx context.Context, ch channel.Channel) error {
	s.mu.Lock()
	if s.engine != nil {
		s.mu.Unlock()
		return fmt.Errorf("server already serving")
	}

	opts := append([]engine.Option{
		engine.WithRole("server"),
		engine.WithLogger(s.logger),
	}, s.engineOpts...)
	eng := engine.New(ch, opts...)
	s.engine = eng
	s.mu.Unlock()

	eng.RegisterRequestHandler(protocol.MethodInitialize, s.handleInitialize)
	eng.RegisterRequestHandler(protocol.MethodPing, s.handlePing)
	eng.RegisterRequestHandler(protocol.MethodListTools, s.handleListTools)
	eng.RegisterRequestHandler(protocol.MethodCallTool, s.handleCallTool)
	eng.RegisterRequestHandler(protocol.MethodListResources, s.handleListResources)
	eng.RegisterRequestHandler(protocol.MethodReadResource, s.handleReadResource)
	eng.RegisterRequestHandler(protocol.MethodSubscribeResource, s.handleSubscribeResource)
	eng.RegisterRequestHandler(protocol.MethodListResourceTemplates, s.handleListResourceTemplates)
	eng.RegisterRequestHandler(protocol.MethodListPrompts, s.handleListPrompts)
	eng.RegisterRequestHandler(protocol.MethodGetPrompt, s.handleGetPrompt)
	eng.RegisterRequestHandler(protocol.MethodSetLogLevel, s.handleSetLogLevel)
	eng.RegisterNotificationHandler(protocol.MethodNotifyInitialized, s.handleInitialized)
	eng.RegisterNotificationHandler(protocol.MethodNotifyRootsChanged, s.handleRootsChanged)

	eng.Start(ctx)
	return nil
}

// Close shuts the engine down, sending a best-effort shutdown notification.
func (s *Server) Close() error {
	s.mu.Lock()
	eng := s.engine
	s.mu.Unlock()
	if eng == nil {
		return nil
	}
	return eng.Close()
}

// ClientInfo returns the identity the client declared during initialization.
// The second return value is false before the handshake completes.
func (s *Server) ClientInfo() (protocol.ClientInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientInfo, s.initialized
}

// ClientCapabilities returns the capability set the client declared.
func (s *Server) ClientCapabilities() protocol.ClientCapabilities {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientCaps
}

// Ping sends a ping request and waits for the pong.
func (s *Server) Ping(ctx context.Context) error {
	eng, err := s.running()
	if err != nil {
		return err
	}
	_, err = eng.SendRequest(ctx, protocol.MethodPing, protocol.PingParams{})
	return err
}

func (s *Server) running() (*engine.Engine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.engine == nil {
		return nil, fmt.Errorf("server not serving")
	}
	return s.engine, nil
}

// --- request handlers ---

func (s *Server) handleInitialize(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p protocol.InitializeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, duplexerrors.InvalidParams(protocol.MethodInitialize, err.Error())
	}
	if p.ProtocolVersion != protocol.ProtocolVersion {
		return nil, duplexerrors.UnsupportedProtocolVersion(p.ProtocolVersion, protocol.ProtocolVersion)
	}

	s.mu.Lock()
	s.clientInfo = p.ClientInfo
	s.clientCaps = p.Capabilities
	caps := s.capabilitiesLocked()
	s.mu.Unlock()

	s.logger.Info("client negotiating",
		logging.String("client", p.ClientInfo.Name),
		logging.String("client_version", p.ClientInfo.Version),
	)

	return &protocol.InitializeResult{
		ProtocolVersion: protocol.ProtocolVersion,
		Capabilities:    caps,
		ServerInfo:      s.info,
		Instructions:    s.instructions,
	}, nil
}

// capabilitiesLocked derives the advertised capability set from the current
// registries. Empty registries stay absent from the wire form.
func (s *Server) capabilitiesLocked() protocol.ServerCapabilities {
	caps := protocol.ServerCapabilities{
		Logging: &protocol.LoggingCapability{},
	}
	if len(s.toolOrder) > 0 {
		caps.Tools = &protocol.ToolsCapability{ListChanged: true}
	}
	if len(s.resourceOrder) > 0 || len(s.templateOrder) > 0 {
		caps.Resources = &protocol.ResourcesCapability{Subscribe: true, ListChanged: true}
	}
	if len(s.promptOrder) > 0 {
		caps.Prompts = &protocol.PromptsCapability{ListChanged: true}
	}
	return caps
}

func (s *Server) handleInitialized(ctx context.Context, params json.RawMessage) error {
	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
	s.logger.Info("client initialized")
	return nil
}

// handleRootsChanged notes the announcement; the next ListRoots call
// fetches the replacement set.
func (s *Server) handleRootsChanged(ctx context.Context, params json.RawMessage) error {
	s.logger.Debug("client root set changed")
	return nil
}

func (s *Server) handlePing(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return &protocol.PingResult{}, nil
}

func (s *Server) handleListTools(ctx context.Context, params json.RawMessage) (interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := &protocol.ListToolsResult{Tools: make([]protocol.ToolDefinition, 0, len(s.toolOrder))}
	for _, name := range s.toolOrder {
		result.Tools = append(result.Tools, s.tools[name].def)
	}
	return result, nil
}

func (s *Server) handleCallTool(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p protocol.CallToolParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, duplexerrors.InvalidParams(protocol.MethodCallTool, err.Error())
	}

	s.mu.RLock()
	entry, ok := s.tools[p.Name]
	s.mu.RUnlock()
	if !ok {
		return nil, duplexerrors.UnknownTool(p.Name)
	}

	return s.invokeTool(ctx, entry, &p), nil
}

// invokeTool converts every failure mode, error return and panic alike,
// into an in-band result with IsError set. A tool can fail without the call
// itself failing.
func (s *Server) invokeTool(ctx context.Context, entry toolEntry, p *protocol.CallToolParams) (result *protocol.CallToolResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tool handler panicked",
				logging.String("tool", p.Name),
				logging.Any("panic", r),
			)
			result = &protocol.CallToolResult{
				Content: []protocol.ContentBlock{protocol.TextContent(fmt.Sprintf("tool %s panicked: %v", p.Name, r))},
				IsError: true,
			}
		}
	}()

	blocks, err := entry.handler(ctx, p.Arguments)
	if err != nil {
		s.logger.WithError(err).Warn("tool handler failed", logging.String("tool", p.Name))
		return &protocol.CallToolResult{
			Content: []protocol.ContentBlock{protocol.TextContent(err.Error())},
			IsError: true,
		}
	}
	if blocks == nil {
		blocks = []protocol.ContentBlock{}
	}
	return &protocol.CallToolResult{Content: blocks}
}

func (s *Server) handleListResources(ctx context.Context, params json.RawMessage) (interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := &protocol.ListResourcesResult{Resources: make([]protocol.ResourceDescriptor, 0, len(s.resourceOrder))}
	for _, uri := range s.resourceOrder {
		result.Resources = append(result.Resources, s.resources[uri].desc)
	}
	return result, nil
}

func (s *Server) handleReadResource(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p protocol.ReadResourceParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, duplexerrors.InvalidParams(protocol.MethodReadResource, err.Error())
	}

	s.mu.RLock()
	entry, ok := s.resources[p.URI]
	if !ok {
		s.mu.RUnlock()
		return nil, duplexerrors.ResourceNotFound(p.URI)
	}
	content := entry.content
	if content.Text == "" && content.Blob == "" {
		// Nothing stored yet; fall back to the descriptor's description so
		// the read still yields a text block.
		content.Text = entry.desc.Description
	}
	s.mu.RUnlock()

	return &protocol.ReadResourceResult{Contents: []protocol.ResourceContent{content}}, nil
}

func (s *Server) handleListResourceTemplates(ctx context.Context, params json.RawMessage) (interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := &protocol.ListResourceTemplatesResult{
		ResourceTemplates: make([]protocol.ResourceTemplate, 0, len(s.templateOrder)),
	}
	for _, key := range s.templateOrder {
		result.ResourceTemplates = append(result.ResourceTemplates, s.templates[key].def)
	}
	return result, nil
}

func (s *Server) handleListPrompts(ctx context.Context, params json.RawMessage) (interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := &protocol.ListPromptsResult{Prompts: make([]protocol.PromptDefinition, 0, len(s.promptOrder))}
	for _, name := range s.promptOrder {
		result.Prompts = append(result.Prompts, s.prompts[name].def)
	}
	return result, nil
}

func (s *Server) handleGetPrompt(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p protocol.GetPromptParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, duplexerrors.InvalidParams(protocol.MethodGetPrompt, err.Error())
	}

	s.mu.RLock()
	entry, ok := s.prompts[p.Name]
	s.mu.RUnlock()
	if !ok {
		return nil, duplexerrors.InvalidParams(protocol.MethodGetPrompt, fmt.Sprintf("unknown prompt: %s", p.Name))
	}

	result, err := entry.handler(ctx, p.Arguments)
	if err != nil {
		// Unlike tools, a prompt failure is a protocol error.
		return nil, duplexerrors.InternalHandlerError(protocol.MethodGetPrompt, err)
	}
	return result, nil
}

func (s *Server) handleSetLogLevel(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p protocol.SetLogLevelParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, duplexerrors.InvalidParams(protocol.MethodSetLogLevel, err.Error())
	}
	level, err := protocol.ParseLogLevel(p.Level)
	if err != nil {
		return nil, duplexerrors.InvalidParams(protocol.MethodSetLogLevel, err.Error())
	}

	s.mu.Lock()
	s.minLevel = level
	s.mu.Unlock()

	s.logger.Debug("log level changed", logging.String("level", string(level)))
	return &protocol.SetLogLevelResult{}, nil
}
