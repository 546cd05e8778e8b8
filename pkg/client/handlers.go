package client

import (
	"context"
	"encoding/json"
	"fmt"

	duplexerrors "github.com/modelcontext/duplex/pkg/errors"
	"github.com/modelcontext/duplex/pkg/logging"
	"github.com/modelcontext/duplex/pkg/protocol"
)

// handleCreateMessage answers a server-delegated generation. The provider
// absorbs backend failures itself; a missing provider is the only failure
// surfaced as an error here.
func (c *Client) handleCreateMessage(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if c.provider == nil {
		return nil, duplexerrors.InvalidParams(protocol.MethodCreateMessage, "no sampling provider configured")
	}

	var p protocol.CreateMessageParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, duplexerrors.InvalidParams(protocol.MethodCreateMessage, err.Error())
	}
	return c.provider.CreateMessage(ctx, &p)
}

func (c *Client) handleElicit(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if c.elicitation == nil {
		return nil, duplexerrors.InvalidParams(protocol.MethodElicit, "no elicitation handler configured")
	}

	var p protocol.ElicitParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, duplexerrors.InvalidParams(protocol.MethodElicit, err.Error())
	}

	result, err := c.elicitation(ctx, &p)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("elicitation handler returned no result")
	}
	return result, nil
}

func (c *Client) handleListRoots(ctx context.Context, params json.RawMessage) (interface{}, error) {
	c.mu.RLock()
	roots := append([]protocol.Root(nil), c.roots...)
	c.mu.RUnlock()
	if roots == nil {
		roots = []protocol.Root{}
	}
	return &protocol.ListRootsResult{Roots: roots}, nil
}

func (c *Client) handlePing(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return &protocol.PingResult{}, nil
}

// --- notification dispatch ---

func (c *Client) handleResourceUpdated(ctx context.Context, params json.RawMessage) error {
	var p protocol.ResourceUpdatedParams
	if err := json.Unmarshal(params, &p); err != nil {
		return err
	}
	if c.onResourceUpdated != nil {
		c.onResourceUpdated(p)
	}
	return nil
}

func (c *Client) handleToolsChanged(ctx context.Context, params json.RawMessage) error {
	if c.onToolsChanged != nil {
		c.onToolsChanged()
	}
	return nil
}

func (c *Client) handleResourcesChanged(ctx context.Context, params json.RawMessage) error {
	if c.onResourcesChanged != nil {
		c.onResourcesChanged()
	}
	return nil
}

func (c *Client) handlePromptsChanged(ctx context.Context, params json.RawMessage) error {
	if c.onPromptsChanged != nil {
		c.onPromptsChanged()
	}
	return nil
}

func (c *Client) handleLogMessage(ctx context.Context, params json.RawMessage) error {
	var p protocol.LogMessageParams
	if err := json.Unmarshal(params, &p); err != nil {
		return err
	}
	if c.onLogMessage != nil {
		c.onLogMessage(p)
		return nil
	}
	c.logger.Debug("server log message",
		logging.String("level", p.Level),
		logging.String("logger", p.Logger),
	)
	return nil
}
