package server

import (
	"context"
	"encoding/json"

	duplexerrors "github.com/modelcontext/duplex/pkg/errors"
	"github.com/modelcontext/duplex/pkg/logging"
	"github.com/modelcontext/duplex/pkg/protocol"
)

func (s *Server) handleSubscribeResource(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p protocol.SubscribeResourceParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, duplexerrors.InvalidParams(protocol.MethodSubscribeResource, err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.resources[p.URI]; !ok {
		return nil, duplexerrors.ResourceNotFound(p.URI)
	}
	// Subscribing twice is a no-op.
	s.subs[p.URI] = struct{}{}
	return &protocol.SubscribeResourceResult{}, nil
}

// Subscribed reports whether the client currently holds a subscription for
// uri.
func (s *Server) Subscribed(uri string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.subs[uri]
	return ok
}

// NotifyResourceUpdated announces a content change for uri. The notification
// is sent only when the client has subscribed to that exact URI; otherwise
// it is silently skipped.
func (s *Server) NotifyResourceUpdated(ctx context.Context, uri string) error {
	s.mu.RLock()
	var title string
	if entry, ok := s.resources[uri]; ok {
		title = entry.desc.Title
	}
	s.mu.RUnlock()
	return s.notifyResourceUpdated(ctx, uri, title)
}

func (s *Server) notifyResourceUpdated(ctx context.Context, uri, title string) error {
	if !s.Subscribed(uri) {
		s.logger.Debug("resource update suppressed, no subscriber",
			logging.String("uri", uri),
		)
		return nil
	}
	eng, err := s.running()
	if err != nil {
		return err
	}
	return eng.SendNotification(ctx, protocol.MethodNotifyResourceUpdated,
		protocol.ResourceUpdatedParams{URI: uri, Title: title})
}

// NotifyResourcesChanged broadcasts that the resource list itself changed.
// List-changed notifications are unconditional; only per-URI updates are
// subscription-gated.
func (s *Server) NotifyResourcesChanged(ctx context.Context) error {
	return s.broadcast(ctx, protocol.MethodNotifyResourcesChanged)
}

// NotifyToolsChanged broadcasts that the tool list changed.
func (s *Server) NotifyToolsChanged(ctx context.Context) error {
	return s.broadcast(ctx, protocol.MethodNotifyToolsChanged)
}

// NotifyPromptsChanged broadcasts that the prompt list changed.
func (s *Server) NotifyPromptsChanged(ctx context.Context) error {
	return s.broadcast(ctx, protocol.MethodNotifyPromptsChanged)
}

func (s *Server) broadcast(ctx context.Context, method string) error {
	eng, err := s.running()
	if err != nil {
		return err
	}
	return eng.SendNotification(ctx, method, nil)
}

// LogMessage emits a notifications/message at the given level. Messages
// below the negotiated threshold are dropped before serialization. The
// comparison follows the syslog ordering, never the lexical one.
func (s *Server) LogMessage(ctx context.Context, level protocol.LogLevel, loggerName string, data interface{}) error {
	if !level.Valid() {
		return duplexerrors.InvalidParams(protocol.MethodNotifyLogMessage, "unknown log level: "+string(level))
	}

	s.mu.RLock()
	min := s.minLevel
	s.mu.RUnlock()
	if !level.AtLeast(min) {
		return nil
	}

	eng, err := s.running()
	if err != nil {
		return err
	}
	return eng.SendNotification(ctx, protocol.MethodNotifyLogMessage, protocol.LogMessageParams{
		Level:  string(level),
		Logger: loggerName,
		Data:   data,
	})
}
