package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontext/duplex/pkg/logging"
	"github.com/modelcontext/duplex/pkg/protocol"
)

// CreateMessage delegates a generation to the client's sampling provider.
// Sampling is best-effort enrichment: any failure (transport, remote error,
// malformed result) is swallowed and replaced with a clearly-labeled
// synthetic fallback so the caller's own work can proceed.
func (s *Server) CreateMessage(ctx context.Context, params *protocol.CreateMessageParams) *protocol.CreateMessageResult {
	eng, err := s.running()
	if err != nil {
		return sampleFallback(err)
	}

	raw, err := eng.SendRequest(ctx, protocol.MethodCreateMessage, params)
	if err != nil {
		s.logger.WithError(err).Warn("sampling delegation failed")
		return sampleFallback(err)
	}

	var result protocol.CreateMessageResult
	if err := json.Unmarshal(raw, &result); err != nil {
		s.logger.WithError(err).Warn("sampling delegation returned malformed result")
		return sampleFallback(err)
	}
	return &result
}

func sampleFallback(cause error) *protocol.CreateMessageResult {
	return &protocol.CreateMessageResult{
		Role:       protocol.RoleAssistant,
		Content:    protocol.TextContent(fmt.Sprintf("[sampling unavailable] %v", cause)),
		StopReason: "error",
	}
}

// Elicit asks the client to collect structured input from the user. A
// decline or cancel answer is a normal result, not an error.
func (s *Server) Elicit(ctx context.Context, message string, schema map[string]interface{}) (*protocol.ElicitResult, error) {
	eng, err := s.running()
	if err != nil {
		return nil, err
	}

	raw, err := eng.SendRequest(ctx, protocol.MethodElicit, &protocol.ElicitParams{
		Message:         message,
		RequestedSchema: schema,
	})
	if err != nil {
		return nil, err
	}

	var result protocol.ElicitResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("malformed elicitation result: %w", err)
	}
	switch result.Action {
	case protocol.ElicitActionAccept, protocol.ElicitActionDecline, protocol.ElicitActionCancel:
	default:
		return nil, fmt.Errorf("unknown elicitation action: %s", result.Action)
	}
	return &result, nil
}

// ListRoots fetches the client's full current root set. The set is always
// replaced wholesale; callers should not merge it with a previous snapshot.
func (s *Server) ListRoots(ctx context.Context) ([]protocol.Root, error) {
	eng, err := s.running()
	if err != nil {
		return nil, err
	}

	raw, err := eng.SendRequest(ctx, protocol.MethodListRoots, protocol.ListRootsParams{})
	if err != nil {
		return nil, err
	}

	var result protocol.ListRootsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("malformed roots result: %w", err)
	}
	s.logger.Debug("fetched client roots", logging.Int("count", len(result.Roots)))
	return result.Roots, nil
}
