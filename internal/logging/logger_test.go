package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"genguard/internal/config"
	"genguard/internal/logging"
	"genguard/internal/services"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from test")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "genguard.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "hello from test") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{
		Format:  "console",
		Level:   "info",
		Outputs: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "retry").Info("message without caller", logging.Int("attempt", 2))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", line)
	}
	if !strings.Contains(line, "INFO retry: message without caller attempt=2") {
		t.Fatalf("unexpected console line: %q", line)
	}
}

func TestConsoleLoggerTagsRequestAndAttempt(t *testing.T) {
	cases := []struct {
		name   string
		attrs  []logging.Attr
		expect string
	}{
		{
			name:   "request and attempt",
			attrs:  []logging.Attr{logging.String(logging.FieldRequestID, "req-7"), logging.Int(logging.FieldAttempt, 3), logging.String(logging.FieldStrategy, "full-genericization")},
			expect: "INFO retry[req-7#3]: attempt failed strategy=full-genericization",
		},
		{
			name:   "request only",
			attrs:  []logging.Attr{logging.String(logging.FieldRequestID, "req-7")},
			expect: "INFO retry[req-7]: attempt failed",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			logPath := filepath.Join(t.TempDir(), "console.log")
			logger, err := logging.New(logging.Options{
				Format:  "console",
				Level:   "info",
				Outputs: []string{logPath},
			})
			if err != nil {
				t.Fatalf("New returned error: %v", err)
			}
			logging.NewComponentLogger(logger, "retry").Info("attempt failed", logging.Args(tc.attrs...)...)

			content, err := os.ReadFile(logPath)
			if err != nil {
				t.Fatalf("read log file: %v", err)
			}
			if !strings.Contains(string(content), tc.expect) {
				t.Fatalf("expected %q in %q", tc.expect, content)
			}
		})
	}
}

func TestJSONLoggerRenamesTimeKey(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{
		Format:  "json",
		Level:   "info",
		Outputs: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("store unavailable", logging.String(logging.FieldCategory, "unknown"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &entry); err != nil {
		t.Fatalf("decode json line: %v", err)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", entry)
	}
	if entry["level"] != "warn" {
		t.Fatalf("expected lowercase level, got %v", entry["level"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsRequestFields(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := services.WithRequestID(context.Background(), "req-9")
	ctx = services.WithSegment(ctx, 4)
	logging.WithContext(ctx, base).Info("attempt started")

	out := buf.String()
	if !strings.Contains(out, "request_id=req-9") || !strings.Contains(out, "segment=4") {
		t.Fatalf("expected context fields, got %q", out)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	logging.WarnWithContext(base, "degraded", "strategy_exhausted", logging.String(logging.FieldImpact, "resubmitting unmodified input"))

	out := buf.String()
	if !strings.Contains(out, "event_type=strategy_exhausted") {
		t.Fatalf("expected event_type, got %q", out)
	}
	if !strings.Contains(out, "error_hint=") {
		t.Fatalf("expected default error_hint, got %q", out)
	}
	if strings.Count(out, "impact=") != 1 {
		t.Fatalf("expected caller impact to be preserved once, got %q", out)
	}
}

func TestDomainAttrs(t *testing.T) {
	tests := []struct {
		attr logging.Attr
		key  string
		want string
	}{
		{attr: logging.Strategy(""), key: logging.FieldStrategy, want: "unmodified"},
		{attr: logging.Strategy("strip-qualifier:messi"), key: logging.FieldStrategy, want: "strip-qualifier:messi"},
		{attr: logging.Category(""), key: logging.FieldCategory, want: "unclassified"},
		{attr: logging.Category("provider_timeout"), key: logging.FieldCategory, want: "provider_timeout"},
		{attr: logging.Attempt(3), key: logging.FieldAttempt, want: "3"},
		{attr: logging.Transition("failed_retryable"), key: "state", want: "failed_retryable"},
	}
	for _, tt := range tests {
		if tt.attr.Key != tt.key || tt.attr.Value.String() != tt.want {
			t.Errorf("got %s=%s, want %s=%s", tt.attr.Key, tt.attr.Value, tt.key, tt.want)
		}
	}
}

func TestConsoleLoggerPrefixesGroups(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "groups.log")
	logger, err := logging.New(logging.Options{Level: "debug", Outputs: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.WithGroup("batch").Debug("job done", logging.Int("index", 2), logging.Bool("ok", true))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if !strings.Contains(line, "DEBUG job done [") || !strings.Contains(line, "batch.index=2 batch.ok=true") {
		t.Fatalf("unexpected console line: %q", line)
	}
}
