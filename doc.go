// Package duplex implements a bidirectional JSON-RPC 2.0 protocol engine
// for model-context sessions: two peers negotiate capabilities over a
// duplex channel, after which the client drives tool, resource and prompt
// operations while the server can turn around and delegate sampling,
// elicitation and root discovery back to the client.
//
// The module is organized into sub-packages:
//
//   - pkg/protocol: wire types, method names, capability sets, log levels
//   - pkg/channel: the duplex transport abstraction and an in-memory pair
//   - pkg/engine: the role-agnostic request/response/notification engine
//   - pkg/client: the initiator (handshake, typed wrappers, delegations served)
//   - pkg/server: the responder (registries, subscriptions, delegations issued)
//   - pkg/sampling: generation providers answering sampling/createMessage
//   - pkg/errors: structured protocol errors and remote error surfacing
//   - pkg/logging, pkg/observability, pkg/telemetry: the ambient layers
//
// A minimal session connects both peers over an in-memory pair:
//
//	serverEnd, clientEnd := channel.NewPair()
//
//	srv := server.New(protocol.ServerInfo{Name: "demo", Version: "1.0.0"})
//	_ = srv.RegisterTool(echoDef, echoHandler)
//	_ = srv.Serve(ctx, serverEnd)
//
//	c := client.New(protocol.ClientInfo{Name: "demo-client", Version: "1.0.0"})
//	_ = c.Connect(ctx, clientEnd)
//	handshake, _ := c.Initialize(ctx)
//
// After Initialize the client is Ready and every operation wrapper is
// available; see examples/inmemory for a complete session.
package duplex
