package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/chrisgleissner/sidflow-sub004/internal/services"
)

func TestConsoleHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	logger = NewComponentLogger(logger, "renderpool")
	logger.Info("worker replaced", Int("slot", 2), String("reason", "crash"))

	line := buf.String()
	if !strings.Contains(line, "INFO renderpool: worker replaced") {
		t.Errorf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "slot=2") || !strings.Contains(line, "reason=crash") {
		t.Errorf("missing attrs: %q", line)
	}
}

func TestConsoleHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newConsoleHandler(&buf, new(slog.LevelVar)))
	logger.Warn("retrying", String("message", "file busy"))
	if !strings.Contains(buf.String(), `message="file busy"`) {
		t.Errorf("value not quoted: %q", buf.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(newConsoleHandler(&buf, new(slog.LevelVar)))

	ctx := services.WithFile(context.Background(), "a.sid")
	ctx = services.WithPhase(ctx, "building")
	ctx = services.WithThread(ctx, 1)

	WithContext(ctx, base).Info("probe")
	line := buf.String()
	for _, want := range []string{"file=a.sid", "phase=building", "thread=1"} {
		if !strings.Contains(line, want) {
			t.Errorf("missing %q in %q", want, line)
		}
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	logger.Error("should not panic", Error(nil))
}
