package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/biolumen/lumacq/types"
)

func TestLogger_IncludesRunContext(t *testing.T) {
	meta := &types.RunMeta{RunID: "run-123", Device: "IOIFAST"}
	var buf bytes.Buffer
	logger := newLoggerWithWriter(meta, &buf)

	logger.Info("run starting", map[string]any{"frequency_hz": 4.0})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v\n%s", err, buf.String())
	}
	if entry["run_id"] != "run-123" {
		t.Errorf("run_id = %v, want run-123", entry["run_id"])
	}
	if entry["device"] != "IOIFAST" {
		t.Errorf("device = %v, want IOIFAST", entry["device"])
	}
	if entry["message"] != "run starting" {
		t.Errorf("message = %v, want 'run starting'", entry["message"])
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v, want info", entry["level"])
	}
}

func TestLogger_OmitsEmptyDevice(t *testing.T) {
	meta := &types.RunMeta{RunID: "run-456"}
	var buf bytes.Buffer
	logger := newLoggerWithWriter(meta, &buf)

	logger.Warn("exposure clamped", nil)

	if strings.Contains(buf.String(), "device") {
		t.Errorf("empty device should be omitted, got %s", buf.String())
	}
}

func TestLogger_Levels(t *testing.T) {
	meta := &types.RunMeta{RunID: "run-789"}
	var buf bytes.Buffer
	logger := newLoggerWithWriter(meta, &buf)

	logger.Debug("d", nil)
	logger.Info("i", nil)
	logger.Warn("w", nil)
	logger.Error("e", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 log lines, got %d", len(lines))
	}
	for i, level := range []string{"debug", "info", "warn", "error"} {
		var entry map[string]any
		if err := json.Unmarshal([]byte(lines[i]), &entry); err != nil {
			t.Fatalf("line %d is not JSON: %v", i, err)
		}
		if entry["level"] != level {
			t.Errorf("line %d level = %v, want %s", i, entry["level"], level)
		}
	}
}

func TestSugaredLogger_Printf(t *testing.T) {
	meta := &types.RunMeta{RunID: "run-abc"}
	var buf bytes.Buffer
	logger := newLoggerWithWriter(meta, &buf)

	logger.Sugar().Infof("tick %d of mode %s", 42, "blue")

	if !strings.Contains(buf.String(), "tick 42 of mode blue") {
		t.Errorf("sugared output missing formatted message: %s", buf.String())
	}
}

func TestLogger_WithOutput(t *testing.T) {
	meta := &types.RunMeta{RunID: "run-out"}
	var first, second bytes.Buffer
	logger := newLoggerWithWriter(meta, &first)

	redirected := logger.WithOutput(&second)
	redirected.Info("redirected", nil)

	if first.Len() != 0 {
		t.Errorf("original writer should be untouched, got %s", first.String())
	}
	if !strings.Contains(second.String(), "redirected") {
		t.Errorf("new writer missing entry: %s", second.String())
	}
}
