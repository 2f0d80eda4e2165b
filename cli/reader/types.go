// Package reader provides the read-side data access layer for the
// lumacq CLI.
//
// All read-only commands go through this package: it opens stack
// artifacts and metadata sidecars from an output directory and never
// touches acquisition internals.
package reader

import "time"

// StackResponse is the deep view of one stack artifact.
type StackResponse struct {
	Path      string `json:"path"`
	RunID     string `json:"run_id"`
	Mode      string `json:"mode"`
	Device    string `json:"device,omitempty"`
	StartedAt string `json:"started_at"`
	Frames    int64  `json:"frames"`
	FirstSeq  int64  `json:"first_seq"`
	LastSeq   int64  `json:"last_seq"`
	SizeBytes int64  `json:"size_bytes"`
	Truncated bool   `json:"truncated"`
}

// ModeStatsEntry is one mode's counters from a run's metadata sidecar.
type ModeStatsEntry struct {
	FramesRouted int64   `json:"frames_routed" yaml:"frames_routed"`
	Timeouts     int64   `json:"timeouts" yaml:"timeouts"`
	Dropped      int64   `json:"dropped" yaml:"dropped"`
	AchievedHz   float64 `json:"achieved_hz" yaml:"achieved_hz"`
}

// ArtifactEntry is one artifact reference from a run's metadata sidecar.
type ArtifactEntry struct {
	Mode      string `json:"mode" yaml:"mode"`
	Path      string `json:"path" yaml:"path"`
	Frames    int64  `json:"frames" yaml:"frames"`
	SizeBytes int64  `json:"size_bytes" yaml:"size_bytes"`
}

// RunResponse is the deep view of one completed run, read from its
// metadata sidecar.
type RunResponse struct {
	RunID       string                    `json:"run_id" yaml:"run_id"`
	Device      string                    `json:"device,omitempty" yaml:"device"`
	StartedAt   time.Time                 `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time                 `json:"finished_at" yaml:"finished_at"`
	FrequencyHz float64                   `json:"frequency_hz" yaml:"frequency_hz"`
	Modes       []string                  `json:"modes" yaml:"modes"`
	LineMap     string                    `json:"line_map" yaml:"line_map"`
	Status      string                    `json:"status" yaml:"status"`
	Message     string                    `json:"message,omitempty" yaml:"message"`
	Ticks       int64                     `json:"ticks" yaml:"ticks"`
	ModeStats   map[string]ModeStatsEntry `json:"mode_stats" yaml:"mode_stats"`
	Artifacts   []ArtifactEntry           `json:"artifacts" yaml:"artifacts"`
}

// ListRunItem is one row in the run listing.
type ListRunItem struct {
	RunID     string    `json:"run_id"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Ticks     int64     `json:"ticks"`
	Path      string    `json:"path"`
}

// DirStats summarizes an output directory.
type DirStats struct {
	Runs       int              `json:"runs"`
	Stacks     int              `json:"stacks"`
	Frames     int64            `json:"frames"`
	SizeBytes  int64            `json:"size_bytes"`
	Truncated  int              `json:"truncated"`
	ByStatus   map[string]int   `json:"by_status"`
	FramesMode map[string]int64 `json:"frames_by_mode"`
}
