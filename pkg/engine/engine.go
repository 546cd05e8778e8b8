// Package engine implements the bidirectional protocol engine shared by
// both peer roles. An engine owns one channel, a monotonic request-id
// allocator, a pending-request table, dispatch tables for inbound requests
// and notifications, and one background receive loop.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/modelcontext/duplex/pkg/channel"
	duplexerrors "github.com/modelcontext/duplex/pkg/errors"
	"github.com/modelcontext/duplex/pkg/logging"
	"github.com/modelcontext/duplex/pkg/observability"
	"github.com/modelcontext/duplex/pkg/protocol"
	"github.com/modelcontext/duplex/pkg/telemetry"
)

// RequestHandler responds to one inbound request. Handlers may block; the
// engine invokes each one on its own goroutine. A returned error becomes an
// error response toward the peer, never a loop failure.
type RequestHandler func(ctx context.Context, params json.RawMessage) (interface{}, error)

// NotificationHandler handles one inbound notification. Notifications have
// no reply channel; a returned error is logged and dropped.
type NotificationHandler func(ctx context.Context, params json.RawMessage) error

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine's logger
func WithLogger(logger logging.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRecorder sets the telemetry recorder every inbound and outbound
// message passes through
func WithRecorder(recorder telemetry.Recorder) Option {
	return func(e *Engine) {
		e.recorder = recorder
	}
}

// WithMetrics sets the metrics interceptor
func WithMetrics(metrics *observability.EngineMetrics) Option {
	return func(e *Engine) {
		e.metrics = metrics
	}
}

// WithTracing sets the tracing provider used to span inbound request
// dispatch
func WithTracing(tracing *observability.TracingProvider) Option {
	return func(e *Engine) {
		e.tracing = tracing
	}
}

// WithRole tags log output and telemetry with the peer role
func WithRole(role string) Option {
	return func(e *Engine) {
		e.role = role
	}
}

// Engine drives one side of a duplex protocol connection
type Engine struct {
	ch       channel.Channel
	role     string
	connID   string
	logger   logging.Logger
	recorder telemetry.Recorder
	metrics  *observability.EngineMetrics
	tracing  *observability.TracingProvider

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan *protocol.Response

	handlersMu           sync.RWMutex
	requestHandlers      map[string]RequestHandler
	notificationHandlers map[string]NotificationHandler

	// sendMu serializes writes so interleaved responses stay whole
	sendMu sync.Mutex

	started  atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	group    *errgroup.Group
	handlers sync.WaitGroup
}

// New creates an engine over the given channel. Start must be called before
// any traffic flows.
func New(ch channel.Channel, opts ...Option) *Engine {
	e := &Engine{
		ch:                   ch,
		role:                 "peer",
		connID:               uuid.New().String(),
		pending:              make(map[int64]chan *protocol.Response),
		requestHandlers:      make(map[string]RequestHandler),
		notificationHandlers: make(map[string]NotificationHandler),
		done:                 make(chan struct{}),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = logging.NewComponent("engine")
	}
	e.logger = e.logger.WithFields(
		logging.String("role", e.role),
		logging.String("conn_id", e.connID),
	)

	return e
}

// ConnID returns the engine's connection identifier
func (e *Engine) ConnID() string {
	return e.connID
}

// RegisterRequestHandler installs a responder for inbound requests named
// method. Later registrations replace earlier ones.
func (e *Engine) RegisterRequestHandler(method string, handler RequestHandler) {
	e.handlersMu.Lock()
	defer e.handlersMu.Unlock()
	e.requestHandlers[method] = handler
}

// RegisterNotificationHandler installs a responder for inbound notifications
// named method
func (e *Engine) RegisterNotificationHandler(method string, handler NotificationHandler) {
	e.handlersMu.Lock()
	defer e.handlersMu.Unlock()
	e.notificationHandlers[method] = handler
}

// Start launches the background receive loop. Calling Start again is a
// logged no-op.
func (e *Engine) Start(ctx context.Context) {
	if !e.started.CompareAndSwap(false, true) {
		e.logger.Warn("engine already started")
		return
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.group, _ = errgroup.WithContext(e.ctx)
	e.group.Go(e.receiveLoop)
	e.logger.Debug("engine started")
}

// SendRequest issues a request toward the peer and blocks until the
// correlated response arrives, the context is cancelled, or the channel
// closes. Concurrent calls are safe and independent; responses match purely
// by id. There is no built-in timeout.
func (e *Engine) SendRequest(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	result, _, err := e.SendRequestWithID(ctx, method, params)
	return result, err
}

// SendRequestWithID is SendRequest plus the allocated request id, for
// callers that need to record the correlation.
func (e *Engine) SendRequestWithID(ctx context.Context, method string, params interface{}) (json.RawMessage, int64, error) {
	if !e.started.Load() {
		return nil, 0, fmt.Errorf("engine not started")
	}
	select {
	case <-e.done:
		return nil, 0, channel.ErrClosed
	default:
	}

	id := e.allocateID()
	req, err := protocol.NewRequest(id, method, params)
	if err != nil {
		return nil, 0, err
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	waiter := make(chan *protocol.Response, 1)
	e.mu.Lock()
	e.pending[id] = waiter
	e.mu.Unlock()
	e.metrics.PendingRequestsAdd(1)

	start := time.Now()
	e.record(telemetry.DirectionOutbound, telemetry.KindRequest, method, id)

	if err := e.send(data); err != nil {
		e.removePending(id)
		e.metrics.RecordRequest(method, observability.StatusError, time.Since(start))
		return nil, id, err
	}

	e.logger.Debug("request sent",
		logging.String("method", method),
		logging.Int64("request_id", id),
	)

	select {
	case resp := <-waiter:
		if resp.Error != nil {
			e.metrics.RecordRequest(method, observability.StatusError, time.Since(start))
			e.metrics.RecordError("remote", method)
			remote := &duplexerrors.RemoteError{
				ErrCode:    int(resp.Error.Code),
				ErrMessage: resp.Error.Message,
			}
			if resp.Error.Data != nil {
				if raw, err := json.Marshal(resp.Error.Data); err == nil {
					remote.ErrData = raw
				}
			}
			return nil, id, remote
		}
		e.metrics.RecordRequest(method, observability.StatusSuccess, time.Since(start))
		return resp.Result, id, nil

	case <-ctx.Done():
		e.removePending(id)
		e.metrics.RecordRequest(method, observability.StatusError, time.Since(start))
		return nil, id, ctx.Err()

	case <-e.done:
		e.removePending(id)
		e.metrics.RecordRequest(method, observability.StatusError, time.Since(start))
		return nil, id, channel.ErrClosed
	}
}

// SendNotification fires a notification toward the peer. It never waits for
// acknowledgment and does not watch ctx; the only failure it surfaces is
// channel closure.
func (e *Engine) SendNotification(ctx context.Context, method string, params interface{}) error {
	if !e.started.Load() {
		return fmt.Errorf("engine not started")
	}
	select {
	case <-e.done:
		return channel.ErrClosed
	default:
	}

	notif, err := protocol.NewNotification(method, params)
	if err != nil {
		return err
	}
	data, err := json.Marshal(notif)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	e.record(telemetry.DirectionOutbound, telemetry.KindNotification, method, 0)

	if err := e.send(data); err != nil {
		e.metrics.RecordNotification(method, observability.StatusError)
		return err
	}
	e.metrics.RecordNotification(method, observability.StatusSuccess)
	return nil
}

// Close shuts the engine down: best-effort farewell notification, stop the
// receive loop, release the channel, and fail all pending waiters.
func (e *Engine) Close() error {
	e.shutdown(true)
	if e.group != nil {
		_ = e.group.Wait()
	}
	e.handlers.Wait()
	return nil
}

// shutdown performs the irreversible half of Close. It is safe to call from
// the receive loop itself; farewell selects whether we still announce the
// shutdown to the peer.
func (e *Engine) shutdown(farewell bool) {
	e.stopOnce.Do(func() {
		if farewell {
			if notif, err := protocol.NewNotification(protocol.MethodNotifyShutdown, nil); err == nil {
				if data, err := json.Marshal(notif); err == nil {
					_ = e.send(data)
				}
			}
		}

		close(e.done)
		if e.cancel != nil {
			e.cancel()
		}
		_ = e.ch.Close()
		e.ch.Halt()
		e.failPending()
		e.logger.Info("engine closed")
	})
}

// receiveLoop classifies every inbound message and dispatches it. It exits
// only on channel closure or engine shutdown; handler failures never kill
// it.
func (e *Engine) receiveLoop() error {
	for {
		data, err := e.ch.Receive()
		if err != nil {
			e.logger.Debug("receive loop exiting", logging.ErrorField(err))
			e.shutdown(false)
			return nil
		}

		switch {
		case protocol.IsResponse(data):
			e.handleResponse(data)
		case protocol.IsRequest(data):
			var req protocol.Request
			if err := json.Unmarshal(data, &req); err != nil {
				e.logger.Warn("dropping malformed request", logging.ErrorField(err))
				continue
			}
			e.record(telemetry.DirectionInbound, telemetry.KindRequest, req.Method, req.ID)
			// Independent requests interleave; each runs on its own
			// goroutine while the loop keeps reading.
			e.handlers.Add(1)
			go func() {
				defer e.handlers.Done()
				e.handleRequest(&req)
			}()
		case protocol.IsNotification(data):
			var notif protocol.Notification
			if err := json.Unmarshal(data, &notif); err != nil {
				e.logger.Warn("dropping malformed notification", logging.ErrorField(err))
				continue
			}
			e.record(telemetry.DirectionInbound, telemetry.KindNotification, notif.Method, 0)
			if notif.Method == protocol.MethodNotifyShutdown {
				e.logger.Info("peer announced shutdown")
				e.shutdown(false)
				return nil
			}
			e.handleNotification(&notif)
		default:
			e.logger.Warn("dropping unclassifiable message")
		}
	}
}

// handleResponse resolves the waiter registered for the response's id
func (e *Engine) handleResponse(data []byte) {
	var resp protocol.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		e.logger.Warn("dropping malformed response", logging.ErrorField(err))
		return
	}
	e.record(telemetry.DirectionInbound, telemetry.KindResponse, "", resp.ID)

	e.mu.Lock()
	waiter, ok := e.pending[resp.ID]
	if ok {
		delete(e.pending, resp.ID)
	}
	e.mu.Unlock()

	if !ok {
		e.logger.Debug("response for unknown request id",
			logging.Int64("request_id", resp.ID),
		)
		return
	}
	e.metrics.PendingRequestsAdd(-1)
	waiter <- &resp
}

// handleRequest runs the registered handler and writes exactly one response.
// Panics and errors are converted to error responses; the loop above is
// never affected.
func (e *Engine) handleRequest(req *protocol.Request) {
	start := time.Now()
	status := observability.StatusSuccess

	ctx := e.ctx
	if e.tracing != nil {
		var span trace.Span
		ctx, span = e.tracing.StartMethodSpan(ctx, req.Method, trace.SpanKindServer)
		defer span.End()
	}

	defer func() {
		if r := recover(); r != nil {
			status = observability.StatusError
			e.logger.Error("panic in request handler",
				logging.String("method", req.Method),
				logging.Any("panic", r),
			)
			e.metrics.RecordError("panic", req.Method)
			e.respondError(req.ID, protocol.InternalHandlerError,
				fmt.Sprintf("internal error in handler for %s: %v", req.Method, r), nil)
		}
		e.metrics.RecordIncomingRequest(req.Method, status, time.Since(start))
	}()

	e.handlersMu.RLock()
	handler, ok := e.requestHandlers[req.Method]
	e.handlersMu.RUnlock()

	if !ok {
		status = observability.StatusError
		e.metrics.RecordError("method_not_found", req.Method)
		e.respondError(req.ID, protocol.MethodNotFound,
			fmt.Sprintf("method not found: %s", req.Method), nil)
		return
	}

	result, err := handler(ctx, req.Params)
	if err != nil {
		status = observability.StatusError
		e.respondHandlerError(req, err)
		return
	}

	resp, err := protocol.NewResponse(req.ID, result)
	if err != nil {
		status = observability.StatusError
		e.respondError(req.ID, protocol.InternalHandlerError,
			fmt.Sprintf("failed to encode result for %s: %v", req.Method, err), nil)
		return
	}
	e.sendResponse(resp)
}

// respondHandlerError maps a handler failure onto the wire. Structured
// protocol errors keep their code and data; anything else becomes an
// internal handler error.
func (e *Engine) respondHandlerError(req *protocol.Request, err error) {
	e.logger.WithError(err).Warn("request handler failed",
		logging.String("method", req.Method),
		logging.Int64("request_id", req.ID),
	)
	e.metrics.RecordError("handler", req.Method)

	if protoErr, ok := duplexerrors.AsProtocolError(err); ok {
		e.respondError(req.ID, protocol.ErrorCode(protoErr.Code()), protoErr.Message(), protoErr.Data())
		return
	}
	e.respondError(req.ID, protocol.InternalHandlerError,
		fmt.Sprintf("handler for %s failed: %v", req.Method, err), nil)
}

// handleNotification runs synchronously with the receive loop
func (e *Engine) handleNotification(notif *protocol.Notification) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic in notification handler",
				logging.String("method", notif.Method),
				logging.Any("panic", r),
			)
			e.metrics.RecordError("panic", notif.Method)
		}
	}()

	e.handlersMu.RLock()
	handler, ok := e.notificationHandlers[notif.Method]
	e.handlersMu.RUnlock()

	if !ok {
		// Notifications have no reply channel, so an unknown method is
		// logged and dropped rather than answered with an error.
		e.logger.Debug("no handler for notification",
			logging.String("method", notif.Method),
		)
		e.metrics.RecordIncomingNotification(notif.Method, observability.StatusError)
		return
	}

	if err := handler(e.ctx, notif.Params); err != nil {
		e.logger.WithError(err).Warn("notification handler failed",
			logging.String("method", notif.Method),
		)
		e.metrics.RecordIncomingNotification(notif.Method, observability.StatusError)
		return
	}
	e.metrics.RecordIncomingNotification(notif.Method, observability.StatusSuccess)
}

// respondError writes an error response for the given request id
func (e *Engine) respondError(id int64, code protocol.ErrorCode, message string, data interface{}) {
	resp, err := protocol.NewErrorResponse(id, code, message, data)
	if err != nil {
		e.logger.Error("failed to build error response", logging.ErrorField(err))
		return
	}
	e.sendResponse(resp)
}

func (e *Engine) sendResponse(resp *protocol.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		e.logger.Error("failed to marshal response", logging.ErrorField(err))
		return
	}
	e.record(telemetry.DirectionOutbound, telemetry.KindResponse, "", resp.ID)
	if err := e.send(data); err != nil {
		e.logger.Debug("failed to send response", logging.ErrorField(err))
	}
}

func (e *Engine) send(data []byte) error {
	e.sendMu.Lock()
	defer e.sendMu.Unlock()
	return e.ch.Send(data)
}

func (e *Engine) allocateID() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	return e.nextID
}

func (e *Engine) removePending(id int64) {
	e.mu.Lock()
	_, ok := e.pending[id]
	delete(e.pending, id)
	e.mu.Unlock()
	if ok {
		e.metrics.PendingRequestsAdd(-1)
	}
}

// failPending unblocks every outstanding SendRequest; each one observes
// channel closure through the engine's done channel.
func (e *Engine) failPending() {
	e.mu.Lock()
	n := len(e.pending)
	e.pending = make(map[int64]chan *protocol.Response)
	e.mu.Unlock()
	if n > 0 {
		e.metrics.PendingRequestsAdd(float64(-n))
		e.logger.Warn("failed pending requests on shutdown", logging.Int("count", n))
	}
}

func (e *Engine) record(direction, kind, method string, requestID int64) {
	if e.recorder == nil {
		return
	}
	e.recorder.Record(telemetry.Event{
		ConnID:    e.connID,
		Direction: direction,
		Kind:      kind,
		Method:    method,
		RequestID: requestID,
	})
}
