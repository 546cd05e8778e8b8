package protocol

import "testing"

func TestLogLevelOrdering(t *testing.T) {
	ordered := []LogLevel{
		LogLevelDebug, LogLevelInfo, LogLevelNotice, LogLevelWarning,
		LogLevelError, LogLevelCritical, LogLevelAlert, LogLevelEmergency,
	}
	for i, lower := range ordered {
		for _, higher := range ordered[i:] {
			if !higher.AtLeast(lower) {
				t.Errorf("%s should be at least %s", higher, lower)
			}
		}
		if i+1 < len(ordered) && lower.AtLeast(ordered[i+1]) {
			t.Errorf("%s should be below %s", lower, ordered[i+1])
		}
	}

	// "error" sorts below "warning" lexically; the rank order must win.
	if !LogLevelError.AtLeast(LogLevelWarning) {
		t.Error("error must rank above warning")
	}
}

func TestParseLogLevel(t *testing.T) {
	level, err := ParseLogLevel("warning")
	if err != nil {
		t.Fatalf("ParseLogLevel failed: %v", err)
	}
	if level != LogLevelWarning {
		t.Errorf("expected warning, got %s", level)
	}

	if _, err := ParseLogLevel("verbose"); err == nil {
		t.Error("expected error for unknown level name")
	}
}
