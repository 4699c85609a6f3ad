package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
		wantErr  bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{" warn ", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var records []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var record map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &record))
		records = append(records, record)
	}
	return records
}

func TestSlogLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelInfo, Format: "json", Output: &buf})

	ctx := context.Background()
	logger.Debug(ctx, "hidden")
	logger.WithComponent("accept").With("addr", "127.0.0.1:1234").
		Warn(ctx, errors.New("too many open files"), "accept failed", "attempt", 3)

	records := decodeLines(t, &buf)
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "accept failed", record["msg"])
	assert.Equal(t, "accept", record["component"])
	assert.Equal(t, "too many open files", record["error"])
	assert.Equal(t, "127.0.0.1:1234", record["addr"])
	assert.Equal(t, float64(3), record["attempt"])
}

func TestSlogLoggerDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Format: "text", Output: &buf})

	logger.Debug(context.Background(), "request served", "status", 200)

	assert.Contains(t, buf.String(), "request served")
	assert.Contains(t, buf.String(), "status=200")
}

func TestWithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLogger(&LoggerConfig{Level: LevelInfo, Format: "json", Output: &buf})
	_ = parent.With("worker", 1)

	parent.Info(context.Background(), "parent")

	records := decodeLines(t, &buf)
	require.Len(t, records, 1)
	assert.NotContains(t, records[0], "worker")
}

func TestSanitizeForLog(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "normal text",
			input:    "GET /index.html HTTP/1.1",
			expected: "GET /index.html HTTP/1.1",
		},
		{
			name:     "control characters escaped",
			input:    "GET /\r\nX-Injected: 1",
			expected: "GET /\\x0d\\x0aX-Injected: 1",
		},
		{
			name:     "long text truncation",
			input:    strings.Repeat("a", 300),
			expected: strings.Repeat("a", 256) + "...[TRUNCATED]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeForLog(tt.input))
		})
	}
}

func TestLogSecurityEvent(t *testing.T) {
	var capturedMessage string
	var capturedFields []interface{}

	mock := &mockLogger{
		warnFunc: func(ctx context.Context, err error, msg string, fields ...interface{}) {
			capturedMessage = msg
			capturedFields = fields
		},
	}

	LogSecurityEvent(mock, context.Background(), "path_escape", map[string]interface{}{
		"target": "/srv/dist/escape\n",
	})

	assert.Equal(t, "Security event occurred", capturedMessage)
	fieldsMap := fieldsToMap(capturedFields)
	assert.Equal(t, "security", fieldsMap["event_type"])
	assert.Equal(t, "path_escape", fieldsMap["event"])
	assert.Equal(t, "/srv/dist/escape\\x0a", fieldsMap["target"])
}

// Mock logger for testing
type mockLogger struct {
	warnFunc func(ctx context.Context, err error, msg string, fields ...interface{})
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, err error, msg string, fields ...interface{}) {
	if m.warnFunc != nil {
		m.warnFunc(ctx, err, msg, fields...)
	}
}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...interface{}) {}
func (m *mockLogger) With(fields ...interface{}) Logger                                     { return m }
func (m *mockLogger) WithComponent(component string) Logger                                 { return m }

// Helper function to convert fields slice to map
func fieldsToMap(fields []interface{}) map[string]interface{} {
	result := make(map[string]interface{})
	for i := 0; i+1 < len(fields); i += 2 {
		if key, ok := fields[i].(string); ok {
			result[key] = fields[i+1]
		}
	}
	return result
}
