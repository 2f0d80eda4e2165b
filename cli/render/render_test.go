package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/biolumen/lumacq/cli/reader"
)

func TestParseFormat(t *testing.T) {
	cases := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"JSON", FormatJSON, false},
		{"table", FormatTable, false},
		{"yaml", FormatYAML, false},
		{"", "", false},
		{"xml", "", true},
	}
	for _, tc := range cases {
		got, err := ParseFormat(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseFormat(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFormat(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRender_JSON(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatJSON, false, &buf)

	resp := &reader.StackResponse{
		Path:   "/data/blue_20260102_030405.stack",
		RunID:  "run-abc",
		Mode:   "blue",
		Frames: 42,
	}
	if err := r.Render(resp); err != nil {
		t.Fatalf("Render: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["run_id"] != "run-abc" {
		t.Errorf("run_id = %v", decoded["run_id"])
	}
	if decoded["frames"] != float64(42) {
		t.Errorf("frames = %v", decoded["frames"])
	}
}

func TestRender_YAML(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatYAML, false, &buf)

	if err := r.Render(map[string]any{"mode": "green"}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(buf.String(), "mode: green") {
		t.Errorf("yaml output missing field: %q", buf.String())
	}
}

func TestRender_TableStruct(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, true, &buf)

	resp := &reader.StackResponse{RunID: "run-abc", Mode: "blue", Frames: 7}
	if err := r.Render(resp); err != nil {
		t.Fatalf("Render: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "run_id:") || !strings.Contains(out, "run-abc") {
		t.Errorf("table output missing run_id row: %q", out)
	}
}

func TestRender_TableSlice(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, true, &buf)

	items := []reader.ListRunItem{
		{RunID: "run-1", Status: "success", Ticks: 10},
		{RunID: "run-2", Status: "device_fault", Ticks: 3},
	}
	if err := r.Render(items); err != nil {
		t.Fatalf("Render: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "run_id") {
		t.Errorf("missing header row: %q", out)
	}
	if !strings.Contains(out, "run-1") || !strings.Contains(out, "run-2") {
		t.Errorf("missing data rows: %q", out)
	}
}

func TestRender_TableEmptySlice(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, true, &buf)

	if err := r.Render([]reader.ListRunItem{}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(buf.String(), "(no results)") {
		t.Errorf("empty slice output = %q", buf.String())
	}
}

func TestRender_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(Format("bogus"), false, &buf)
	if err := r.Render(struct{}{}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
