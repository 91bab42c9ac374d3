package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWithWriter_JSONCarriesCorrelation(t *testing.T) {
	var buf bytes.Buffer
	logger := CorrelationLogger(NewWithWriter(Config{Level: "info", Format: "json"}, &buf), "corr-1", "tenant-a")
	logger.Info("converted", "base", "USD")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if rec["corrId"] != "corr-1" || rec["tenantId"] != "tenant-a" || rec["base"] != "USD" {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestNewWithWriter_TextAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(Config{Level: "warn", Format: "text"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "msg=shown") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
