package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	duplexerrors "github.com/modelcontext/duplex/pkg/errors"
)

func newTestLogger(buf *bytes.Buffer) Logger {
	return New(buf, &TextFormatter{DisableColors: true, DisableTimestamp: true})
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)
	logger.SetLevel(WarnLevel)

	logger.Info("should be dropped")
	logger.Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Error("info message should not appear at warn level")
	}
	if !strings.Contains(out, "should appear") {
		t.Error("warn message missing from output")
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf).WithFields(String("conn_id", "abc123"))

	logger.Info("hello", Int64("request_id", 42))

	out := buf.String()
	if !strings.Contains(out, "conn_id=abc123") {
		t.Errorf("missing inherited field: %s", out)
	}
	if !strings.Contains(out, "request_id=42") {
		t.Errorf("missing call field: %s", out)
	}
}

func TestComponentHeader(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf).WithFields(String("component", "engine"))

	logger.Info("dispatched", String("method", "tools/call"))

	out := buf.String()
	if !strings.Contains(out, "engine/tools/call: dispatched") {
		t.Errorf("expected component/method header, got %s", out)
	}
	// Header fields must not repeat in the key=value tail.
	if strings.Contains(out, "component=") {
		t.Errorf("component duplicated in fields: %s", out)
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	logger.WithError(duplexerrors.UnknownTool("bogus")).Error("call failed")

	out := buf.String()
	if !strings.Contains(out, "error_code=-32001") {
		t.Errorf("missing error code field: %s", out)
	}
	if !strings.Contains(out, "error_category=not_found") {
		t.Errorf("missing error category field: %s", out)
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, &JSONFormatter{DisableTimestamp: true})

	logger.Info("connected", String("conn_id", "abc"))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["level"] != "INFO" || entry["message"] != "connected" || entry["conn_id"] != "abc" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	logger.Info("nothing happens")
	if logger.WithFields(String("k", "v")) != logger {
		t.Error("NopLogger.WithFields should return itself")
	}
}
