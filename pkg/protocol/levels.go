package protocol

import "fmt"

// LogLevel is a syslog-style severity name carried by logging/setLevel and
// notifications/message
type LogLevel string

// Log levels in increasing severity
const (
	LogLevelDebug     LogLevel = "debug"
	LogLevelInfo      LogLevel = "info"
	LogLevelNotice    LogLevel = "notice"
	LogLevelWarning   LogLevel = "warning"
	LogLevelError     LogLevel = "error"
	LogLevelCritical  LogLevel = "critical"
	LogLevelAlert     LogLevel = "alert"
	LogLevelEmergency LogLevel = "emergency"
)

// logLevelRank fixes the total order over level names. Comparison is always
// by rank, never lexical.
var logLevelRank = map[LogLevel]int{
	LogLevelDebug:     0,
	LogLevelInfo:      1,
	LogLevelNotice:    2,
	LogLevelWarning:   3,
	LogLevelError:     4,
	LogLevelCritical:  5,
	LogLevelAlert:     6,
	LogLevelEmergency: 7,
}

// ParseLogLevel validates a level name against the fixed level set
func ParseLogLevel(name string) (LogLevel, error) {
	level := LogLevel(name)
	if _, ok := logLevelRank[level]; !ok {
		return "", fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}

// AtLeast reports whether l is at or above the threshold min
func (l LogLevel) AtLeast(min LogLevel) bool {
	return logLevelRank[l] >= logLevelRank[min]
}

// Valid reports whether l names a known level
func (l LogLevel) Valid() bool {
	_, ok := logLevelRank[l]
	return ok
}

// SetLogLevelParams carries the new minimum-emit threshold
type SetLogLevelParams struct {
	Level string `json:"level"`
}

// SetLogLevelResult is the (empty) payload of a setLevel response
type SetLogLevelResult struct{}

// LogMessageParams is the payload of a notifications/message emission
type LogMessageParams struct {
	Level  string      `json:"level"`
	Logger string      `json:"logger,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}
