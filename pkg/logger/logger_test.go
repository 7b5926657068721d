package logger

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"twarchive/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{
			name: "valid config with info level",
			cfg: &config.LoggingConfig{
				Level: "info",
			},
			wantErr: false,
		},
		{
			name: "valid config with debug level",
			cfg: &config.LoggingConfig{
				Level: "debug",
			},
			wantErr: false,
		},
		{
			name: "invalid log level",
			cfg: &config.LoggingConfig{
				Level: "invalid",
			},
			wantErr: true,
		},
		{
			name: "config with file output",
			cfg: &config.LoggingConfig{
				Level: "info",
				File:  filepath.Join(t.TempDir(), "twarchive.log"),
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"fatal", zerolog.FatalLevel, false},
		{"panic", zerolog.PanicLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"invalid", zerolog.InfoLevel, true},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel() = %v, want %v", level, tt.expected)
			}
		})
	}
}

func TestLoggerMethods(t *testing.T) {
	var buf bytes.Buffer

	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	zlog := zerolog.New(&buf).With().Timestamp().Logger().Level(zerolog.DebugLevel)
	logger := &zerologLogger{
		logger: &zlog,
		fields: make(map[string]interface{}),
	}

	t.Run("Debug", func(t *testing.T) {
		buf.Reset()
		logger.Debug("debug message")
		if !strings.Contains(buf.String(), "debug message") {
			t.Error("Debug message not found in output")
		}
	})

	t.Run("Info", func(t *testing.T) {
		buf.Reset()
		logger.Info("info message")
		if !strings.Contains(buf.String(), "info message") {
			t.Error("Info message not found in output")
		}
	})

	t.Run("Warn", func(t *testing.T) {
		buf.Reset()
		logger.Warn("warn message")
		if !strings.Contains(buf.String(), "warn message") {
			t.Error("Warn message not found in output")
		}
	})

	t.Run("Error", func(t *testing.T) {
		buf.Reset()
		logger.Error("error message")
		if !strings.Contains(buf.String(), "error message") {
			t.Error("Error message not found in output")
		}
	})
}

func TestWithField(t *testing.T) {
	var buf bytes.Buffer
	zlog := zerolog.New(&buf).With().Timestamp().Logger()
	logger := &zerologLogger{
		logger: &zlog,
		fields: make(map[string]interface{}),
	}

	newLogger := logger.WithField("query", "ferguson")
	newLogger.Info("search started")

	output := buf.String()
	if !strings.Contains(output, "search started") {
		t.Error("Message not found in output")
	}
	if !strings.Contains(output, `"query":"ferguson"`) {
		t.Error("Field not found in output")
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	zlog := zerolog.New(&buf).With().Timestamp().Logger()
	logger := &zerologLogger{
		logger: &zlog,
		fields: make(map[string]interface{}),
	}

	fields := map[string]interface{}{
		"string": "value",
		"int":    42,
		"bool":   true,
		"float":  3.14,
	}

	newLogger := logger.WithFields(fields)
	newLogger.Info("test message")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Error("Message not found in output")
	}
	if !strings.Contains(output, `"string":"value"`) {
		t.Error("String field not found in output")
	}
	if !strings.Contains(output, `"int":42`) {
		t.Error("Int field not found in output")
	}
	if !strings.Contains(output, `"bool":true`) {
		t.Error("Bool field not found in output")
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	zlog := zerolog.New(&buf).With().Timestamp().Logger()
	logger := &zerologLogger{
		logger: &zlog,
		fields: make(map[string]interface{}),
	}

	logger1 := logger.WithError(nil)
	if logger1 != logger {
		t.Error("WithError(nil) should return the same logger")
	}

	testErr := &testError{msg: "connection reset"}
	logger2 := logger.WithError(testErr)
	logger2.Error("fetch failed")

	output := buf.String()
	if !strings.Contains(output, "fetch failed") {
		t.Error("Message not found in output")
	}
	if !strings.Contains(output, "connection reset") {
		t.Error("Error message not found in output")
	}
}

func TestStructuredLogging(t *testing.T) {
	var buf bytes.Buffer
	zlog := zerolog.New(&buf).With().Timestamp().Logger()
	logger := &zerologLogger{
		logger: &zlog,
		fields: make(map[string]interface{}),
	}

	fields := map[string]interface{}{
		"query":    "ferguson",
		"action":   "archive",
		"archived": 237,
	}

	logger.InfoWithFields("run completed", fields)

	output := buf.String()
	if !strings.Contains(output, "run completed") {
		t.Error("Message not found in output")
	}
	if !strings.Contains(output, `"query":"ferguson"`) {
		t.Error("Query field not found in output")
	}
	if !strings.Contains(output, `"action":"archive"`) {
		t.Error("Action field not found in output")
	}
	if !strings.Contains(output, `"archived":237`) {
		t.Error("Archived count field not found in output")
	}
}

func TestFieldTypes(t *testing.T) {
	var buf bytes.Buffer
	zlog := zerolog.New(&buf).With().Timestamp().Logger()
	logger := &zerologLogger{
		logger: &zlog,
		fields: make(map[string]interface{}),
	}

	fields := map[string]interface{}{
		"string":   "test",
		"int":      123,
		"int64":    int64(456),
		"float":    3.14,
		"bool":     true,
		"time":     time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		"duration": time.Second * 5,
		"strings":  []string{"a", "b", "c"},
		"ints":     []int{1, 2, 3},
		"custom":   struct{ Name string }{Name: "test"},
	}

	logger.WithFields(fields).Info("test all types")

	output := buf.String()
	if !strings.Contains(output, "test all types") {
		t.Error("Message not found in output")
	}
}

func TestGlobalLogger(t *testing.T) {
	cfg := &config.LoggingConfig{
		Level: "debug",
	}

	err := Initialize(cfg)
	if err != nil {
		t.Fatalf("Failed to initialize logger: %v", err)
	}

	logger := GetLogger()
	if logger == nil {
		t.Error("GetLogger() returned nil")
	}

	// Convenience functions must not panic
	Debug("debug message")
	Info("info message")
	Warn("warn message")
	Error("error message")

	WithField("key", "value").Info("with field")
	WithFields(map[string]interface{}{"k1": "v1", "k2": "v2"}).Info("with fields")
	WithError(&testError{msg: "test"}).Error("with error")
}

func TestFieldChaining(t *testing.T) {
	var buf bytes.Buffer
	zlog := zerolog.New(&buf).With().Timestamp().Logger()
	logger := &zerologLogger{
		logger: &zlog,
		fields: make(map[string]interface{}),
	}

	logger.
		WithField("field1", "value1").
		WithField("field2", "value2").
		WithFields(map[string]interface{}{
			"field3": "value3",
			"field4": 4,
		}).
		Info("chained fields")

	output := buf.String()
	if !strings.Contains(output, "chained fields") {
		t.Error("Message not found in output")
	}
	if !strings.Contains(output, `"field1":"value1"`) {
		t.Error("Field1 not found in output")
	}
	if !strings.Contains(output, `"field2":"value2"`) {
		t.Error("Field2 not found in output")
	}
	if !strings.Contains(output, `"field3":"value3"`) {
		t.Error("Field3 not found in output")
	}
	if !strings.Contains(output, `"field4":4`) {
		t.Error("Field4 not found in output")
	}
}

func TestLogRequestLevels(t *testing.T) {
	tests := []struct {
		name   string
		status int
		level  string
		msg    string
	}{
		{"success logged at debug", 200, "DEBUG", "HTTP request completed"},
		{"redirect logged at debug", 302, "DEBUG", "HTTP request completed"},
		{"client error logged at warn", 404, "WARN", "HTTP request client error"},
		{"server error logged at error", 503, "ERROR", "HTTP request server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := NewTestLogger()
			LogRequest(tl, "GET", "https://api.twitter.com/1.1/search/tweets.json", tt.status, 120*time.Millisecond)

			msgs := tl.GetMessagesByLevel(tt.level)
			if len(msgs) != 1 {
				t.Fatalf("%s count = %d, want 1", tt.level, len(msgs))
			}
			if msgs[0].Message != tt.msg {
				t.Errorf("message = %q, want %q", msgs[0].Message, tt.msg)
			}
			if msgs[0].Fields["status"] != tt.status {
				t.Errorf("status field = %v, want %d", msgs[0].Fields["status"], tt.status)
			}
			if msgs[0].Fields["method"] != "GET" {
				t.Errorf("method field = %v, want GET", msgs[0].Fields["method"])
			}
		})
	}
}

func TestLogComponentLifecycle(t *testing.T) {
	tl := NewTestLogger()

	LogComponentStart(tl, "search", map[string]interface{}{"query": "ferguson"})
	LogComponentStop(tl, "search", "complete")

	msgs := tl.GetMessagesByLevel("INFO")
	if len(msgs) != 2 {
		t.Fatalf("INFO count = %d, want 2", len(msgs))
	}

	if msgs[0].Message != "component started" {
		t.Errorf("start message = %q, want %q", msgs[0].Message, "component started")
	}
	if msgs[0].Fields["component"] != "search" {
		t.Errorf("component field = %v, want search", msgs[0].Fields["component"])
	}
	if msgs[0].Fields["query"] != "ferguson" {
		t.Errorf("query field = %v, want ferguson", msgs[0].Fields["query"])
	}

	if msgs[1].Message != "component stopped" {
		t.Errorf("stop message = %q, want %q", msgs[1].Message, "component stopped")
	}
	if msgs[1].Fields["reason"] != "complete" {
		t.Errorf("reason field = %v, want complete", msgs[1].Fields["reason"])
	}
}

func TestTestLoggerCapture(t *testing.T) {
	tl := NewTestLogger()

	tl.Info("plain message")
	tl.WithField("id", "42").Warn("with field")
	tl.WithError(&testError{msg: "boom"}).Error("with error")

	if !tl.HasMessage("plain message") {
		t.Error("plain message not captured")
	}
	if got := len(tl.GetMessagesByLevel("WARN")); got != 1 {
		t.Errorf("WARN count = %d, want 1", got)
	}
	if !tl.HasError() {
		t.Error("error message not captured")
	}

	msgs := tl.GetMessagesByLevel("WARN")
	if msgs[0].Fields["id"] != "42" {
		t.Errorf("field id = %v, want 42", msgs[0].Fields["id"])
	}

	tl.Clear()
	if len(tl.GetMessages()) != 0 {
		t.Error("Clear did not drop captured messages")
	}
}

// Helper error type for testing
type testError struct {
	msg string
}

func (e *testError) Error() string {
	return e.msg
}
