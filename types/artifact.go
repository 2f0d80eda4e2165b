package types

import "fmt"

// StackExt is the file extension for stack artifacts.
const StackExt = ".stack"

// StackFileName returns the deterministic artifact name for a mode's stack:
// {mode}_{run-start-timestamp}.stack.
func StackFileName(m Mode, meta *RunMeta) string {
	return fmt.Sprintf("%s_%s%s", m, meta.Timestamp(), StackExt)
}

// MetadataFileName returns the name of the run metadata sidecar.
func MetadataFileName(meta *RunMeta) string {
	return fmt.Sprintf("metadata_%s.yaml", meta.Timestamp())
}

// StackHeader is the first record of every stack artifact. It binds the
// artifact to its run so a stack file is self-describing even when moved
// out of its output directory.
type StackHeader struct {
	// Magic identifies the format; always StackMagic.
	Magic string `msgpack:"magic"`
	// FormatVersion is the stack format version, starting at 1.
	FormatVersion int `msgpack:"format_version"`
	// RunID is the producing run.
	RunID string `msgpack:"run_id"`
	// Mode is the single mode persisted in this artifact.
	Mode Mode `msgpack:"mode"`
	// Device is the DAQ device identifier.
	Device string `msgpack:"device"`
	// StartedAt is the run start time in RFC 3339 UTC.
	StartedAt string `msgpack:"started_at"`
}

// StackMagic is the header magic for stack artifacts.
const StackMagic = "lumacq-stack"

// StackFormatVersion is the current stack format version.
const StackFormatVersion = 1

// ArtifactInfo describes one finalized stack artifact in a session result.
type ArtifactInfo struct {
	// Mode is the persisted mode.
	Mode Mode
	// Path is the artifact location on disk.
	Path string
	// Frames is the number of frame records written.
	Frames int64
	// SizeBytes is the final artifact size.
	SizeBytes int64
}
