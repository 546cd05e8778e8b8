// Package protocol defines the JSON-RPC 2.0 message envelope and the typed
// payloads exchanged between the two peers: capabilities, tool, resource,
// prompt, and root descriptors, content blocks, sampling and elicitation
// payloads, and the log-level vocabulary.
//
// Payload types carry omitempty tags on every optional field so that absent
// blocks are omitted from the wire form rather than encoded as null.
package protocol
