package protocol

import (
	"encoding/json"
	"testing"
)

func TestNewRequest(t *testing.T) {
	req, err := NewRequest(1, MethodListTools, ListToolsParams{})
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	if req.JSONRPC != JSONRPCVersion {
		t.Errorf("expected jsonrpc %q, got %q", JSONRPCVersion, req.JSONRPC)
	}
	if req.ID != 1 {
		t.Errorf("expected id 1, got %d", req.ID)
	}
	if req.Method != MethodListTools {
		t.Errorf("expected method %q, got %q", MethodListTools, req.Method)
	}
}

func TestRequestOmitsNilParams(t *testing.T) {
	req, err := NewRequest(7, MethodPing, nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if _, ok := raw["params"]; ok {
		t.Error("nil params should be omitted from the wire form")
	}
}

func TestNilResultEncodedAsNull(t *testing.T) {
	resp, err := NewResponse(5, nil)
	if err != nil {
		t.Fatalf("NewResponse failed: %v", err)
	}
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	result, ok := raw["result"]
	if !ok {
		t.Fatal("result member must be present for a nil result")
	}
	if string(result) != "null" {
		t.Errorf("expected null result, got %s", result)
	}
	if !IsResponse(data) {
		t.Error("nil-result response must classify as a response")
	}
}

func TestNewErrorResponse(t *testing.T) {
	resp, err := NewErrorResponse(3, MethodNotFound, "method not found: bogus", nil)
	if err != nil {
		t.Fatalf("NewErrorResponse failed: %v", err)
	}
	if resp.Error == nil {
		t.Fatal("expected error object")
	}
	if resp.Error.Code != MethodNotFound {
		t.Errorf("expected code %d, got %d", MethodNotFound, resp.Error.Code)
	}
	if resp.Result != nil {
		t.Error("error response should not carry a result")
	}
}

func TestMessageClassification(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		request      bool
		response     bool
		notification bool
	}{
		{
			name:    "request",
			raw:     `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`,
			request: true,
		},
		{
			name:     "success response",
			raw:      `{"jsonrpc":"2.0","id":1,"result":{"tools":[]}}`,
			response: true,
		},
		{
			name:     "error response",
			raw:      `{"jsonrpc":"2.0","id":2,"error":{"code":-32601,"message":"nope"}}`,
			response: true,
		},
		{
			// The result member is present but null; key presence, not
			// value, decides the kind.
			name:     "null result response",
			raw:      `{"jsonrpc":"2.0","id":1,"result":null}`,
			response: true,
		},
		{
			name:         "notification",
			raw:          `{"jsonrpc":"2.0","method":"notifications/initialized"}`,
			notification: true,
		},
		{
			name: "wrong version",
			raw:  `{"jsonrpc":"1.0","id":1,"method":"tools/list"}`,
		},
		{
			name: "not json",
			raw:  `garbage`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := []byte(tt.raw)
			if got := IsRequest(data); got != tt.request {
				t.Errorf("IsRequest = %v, want %v", got, tt.request)
			}
			if got := IsResponse(data); got != tt.response {
				t.Errorf("IsResponse = %v, want %v", got, tt.response)
			}
			if got := IsNotification(data); got != tt.notification {
				t.Errorf("IsNotification = %v, want %v", got, tt.notification)
			}
		})
	}
}
