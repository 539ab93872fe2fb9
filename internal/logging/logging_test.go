package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"debug":   "debug",
		" WARN ":  "warn",
		"warning": "warn",
		"error":   "error",
		"":        "info",
		"verbose": "info",
	}
	for input, want := range cases {
		if got := ParseLevel(input).String(); got != want {
			t.Fatalf("%q: got %s want %s", input, got, want)
		}
	}
}

func TestNewWritesJSONToFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "talkbridge.log")
	logger, err := New("warn", path)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	logger.Info("hidden")
	logger.Warn("playback failed", zap.String("speaker", "A"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected only the warn line, got %q", data)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "playback failed" || entry["speaker"] != "A" || entry["logger"] != "talkbridge" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if _, ok := entry["ts"].(string); !ok {
		t.Fatalf("expected ISO8601 timestamp, got %v", entry["ts"])
	}
}
