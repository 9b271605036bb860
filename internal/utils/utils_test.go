package utils

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"DEBUG":    slog.LevelDebug,
		"info":     slog.LevelInfo,
		"WARNING":  slog.LevelWarn,
		"error":    slog.LevelError,
		"CRITICAL": slog.LevelError,
		"bogus":    slog.LevelInfo,
		"":         slog.LevelInfo,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNewLoggerToHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "WARNING", false)
	logger.Info("hidden")
	logger.Warn("shown", slog.String("k", "v"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record should be filtered: %s", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "k=v") {
		t.Fatalf("expected warn record with attrs, got %s", out)
	}
}

func TestUserMessage(t *testing.T) {
	base := errors.New("disk full")
	err := NewAppError("save upload", "Could not store the file.", base)

	if got := UserMessage(err, "fallback"); got != "Could not store the file." {
		t.Fatalf("unexpected message %q", got)
	}
	if !errors.Is(err, base) {
		t.Fatalf("AppError should unwrap to the cause")
	}
	if got := UserMessage(base, "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestStamp(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)
	if s := Stamp(ts); s != "20240309_140507" {
		t.Fatalf("unexpected stamp %s", s)
	}
}

func TestAgeNeverNegative(t *testing.T) {
	now := time.Now()
	if Age(now, now.Add(time.Hour)) != 0 {
		t.Fatalf("future timestamps should have zero age")
	}
	if Age(now, now.Add(-time.Minute)) != time.Minute {
		t.Fatalf("unexpected age")
	}
}
