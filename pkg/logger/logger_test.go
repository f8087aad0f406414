package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func decodeLast(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
		t.Fatalf("decode entry %q: %v", lines[len(lines)-1], err)
	}
	return entry
}

func TestErrorCarriesContextFieldsAndStack(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Level: ParseLevel("debug"), Output: buf})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithPlaceID(ctx, "place-1")
	log.Error(ctx, "delete failed", errors.New("boom"))

	entry := decodeLast(t, buf)
	for key, want := range map[string]string{
		"service":    "api",
		"request_id": "req-123",
		"place_id":   "place-1",
		"error":      "boom",
		"level":      "error",
	} {
		if entry[key] != want {
			t.Fatalf("expected %s=%q, got %v", key, want, entry[key])
		}
	}
	if _, ok := entry["stack"]; !ok {
		t.Fatalf("expected stack on error entry")
	}
}

func TestFieldsDoNotLeakAcrossContexts(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Output: buf})

	base := log.WithUserID(context.Background(), "u1")
	_ = log.WithPlaceID(base, "p1")
	log.Info(base, "toggle")

	entry := decodeLast(t, buf)
	if entry["user_id"] != "u1" {
		t.Fatalf("expected user_id on parent context")
	}
	if _, ok := entry["place_id"]; ok {
		t.Fatalf("child field leaked into parent context")
	}
}

func TestWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{ServiceName: "test", Output: buf, WarnStack: true}).Warn(context.Background(), "slow purge")
	if _, ok := decodeLast(t, buf)["stack"]; !ok {
		t.Fatalf("expected stack when warn stack enabled")
	}

	buf.Reset()
	New(Options{ServiceName: "test", Output: buf}).Warn(context.Background(), "slow purge")
	if _, ok := decodeLast(t, buf)["stack"]; ok {
		t.Fatalf("expected no stack when warn stack disabled")
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{ServiceName: "test", Output: buf}).Debug(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug entry written at info level: %s", buf.String())
	}
}

func TestConsoleFormatIsNotJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{ServiceName: "test", Output: buf, Format: "console"}).Info(context.Background(), "hello")
	if json.Valid(bytes.TrimSpace(buf.Bytes())) || !strings.Contains(buf.String(), "hello") {
		t.Fatalf("expected console output, got %q", buf.String())
	}
}

func TestParseLevelDefaults(t *testing.T) {
	for input, want := range map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"invalid": zerolog.InfoLevel,
		" WARN ":  zerolog.WarnLevel,
		"debug":   zerolog.DebugLevel,
	} {
		if got := ParseLevel(input); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}
