package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	t.Run("level filters records", func(t *testing.T) {
		var buf bytes.Buffer
		logger := newLogger(&buf, "development", slog.LevelWarn)

		logger.Info("page opened")
		logger.Warn("browser not started")

		out := buf.String()
		if strings.Contains(out, "page opened") {
			t.Errorf("info record logged at warn level: %s", out)
		}
		if !strings.Contains(out, "browser not started") {
			t.Errorf("warn record missing: %s", out)
		}
	})

	t.Run("production logs JSON", func(t *testing.T) {
		var buf bytes.Buffer
		logger := newLogger(&buf, "production", slog.LevelInfo)

		logger.Info("configuration loaded", slog.String("browser_mode", "remote"))

		var record map[string]any
		if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
			t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
		}
		if record["browser_mode"] != "remote" {
			t.Errorf("browser_mode = %v, want remote", record["browser_mode"])
		}
	})

	t.Run("debug adds source", func(t *testing.T) {
		var buf bytes.Buffer
		logger := newLogger(&buf, "development", slog.LevelDebug)

		logger.Debug("widget ready")

		if !strings.Contains(buf.String(), "source=") {
			t.Errorf("source location missing: %s", buf.String())
		}
	})
}
