package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/telhawk-systems/sportsagg/common/middleware"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		level  slog.Level
		format string
	}{
		{
			name:   "json format with info level",
			level:  slog.LevelInfo,
			format: "json",
		},
		{
			name:   "text format with debug level",
			level:  slog.LevelDebug,
			format: "text",
		},
		{
			name:   "default format (json) with error level",
			level:  slog.LevelError,
			format: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.level, tt.format)
			if logger == nil {
				t.Fatal("expected non-nil logger")
			}
			if logger.Logger == nil {
				t.Fatal("expected non-nil underlying logger")
			}
		})
	}
}

func TestNewWithWriter_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelInfo, "json")
	logger.Info("hello", Fingerprint("abc"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if entry[FieldFingerprint] != "abc" {
		t.Errorf("expected fingerprint field, got %v", entry)
	}

	buf.Reset()
	text := NewWithWriter(&buf, slog.LevelInfo, "text")
	text.Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("expected text output, got %q", buf.String())
	}
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelInfo, "json")

	tests := []struct {
		name        string
		ctx         context.Context
		expectReqID bool
	}{
		{
			name:        "context with message ID",
			ctx:         middleware.WithRequestID(context.Background(), "msg-123"),
			expectReqID: true,
		},
		{
			name:        "context without message ID",
			ctx:         context.Background(),
			expectReqID: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()

			logger.WithContext(tt.ctx).Info("test message")

			hasID := strings.Contains(buf.String(), `"request_id":"msg-123"`)
			if hasID != tt.expectReqID {
				t.Errorf("request_id present = %v, want %v; output: %s", hasID, tt.expectReqID, buf.String())
			}
		})
	}
}

func TestContextLevels(t *testing.T) {
	tests := []struct {
		name  string
		log   func(l *Logger, ctx context.Context)
		level string
	}{
		{"info", func(l *Logger, ctx context.Context) { l.InfoContext(ctx, "m") }, "INFO"},
		{"warn", func(l *Logger, ctx context.Context) { l.WarnContext(ctx, "m") }, "WARN"},
		{"error", func(l *Logger, ctx context.Context) { l.ErrorContext(ctx, "m") }, "ERROR"},
		{"debug", func(l *Logger, ctx context.Context) { l.DebugContext(ctx, "m") }, "DEBUG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithWriter(&buf, slog.LevelDebug, "json")
			ctx := middleware.WithRequestID(context.Background(), "ctx-1")

			tt.log(logger, ctx)

			output := buf.String()
			if !strings.Contains(output, tt.level) {
				t.Errorf("expected %s level in output, got: %s", tt.level, output)
			}
			if !strings.Contains(output, "ctx-1") {
				t.Errorf("expected request ID in output, got: %s", output)
			}
		})
	}
}

func TestWithAndComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelInfo, "json")

	logger.With("version", "1.0").Component("oracle").Info("test message")
	output := buf.String()

	if !strings.Contains(output, `"component":"oracle"`) {
		t.Errorf("expected component field in output, got: %s", output)
	}
	if !strings.Contains(output, "1.0") {
		t.Errorf("expected version field in output, got: %s", output)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"DEBUG", slog.LevelDebug},
		{" Error ", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSetDefault(t *testing.T) {
	originalDefault := slog.Default()
	defer slog.SetDefault(originalDefault)

	logger := New(slog.LevelInfo, "json")
	SetDefault(logger)

	if slog.Default() != logger.Logger {
		t.Error("SetDefault did not update slog.Default()")
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	if logger == nil || logger.Logger == nil {
		t.Fatal("expected usable discard logger")
	}
	logger.Error("dropped")
}
