package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Frequency bounds for the supported DAQ hardware. The usable range is
// device-dependent; these are the envelope the core will accept.
const (
	MinFrequencyHz = 0.1
	MaxFrequencyHz = 100.0
)

// LineMapName selects one of the built-in digital line map variants.
type LineMapName string

// Built-in line map variants. Both hardware installations are supported;
// the correct one is installation-specific and chosen by configuration.
const (
	// LineMapSharedPort is a single 8-bit port: bit0 bioluminescence
	// (unwired), bit1 blue, bit2 green, bit4 exposure trigger.
	LineMapSharedPort LineMapName = "shared_port"
	// LineMapDiscrete is four discrete lines: line0 exposure trigger,
	// line1 bioluminescence, line2 blue, line3 green.
	LineMapDiscrete LineMapName = "discrete"
)

// Valid reports whether the name is a known line map variant.
func (n LineMapName) Valid() bool {
	return n == LineMapSharedPort || n == LineMapDiscrete
}

// RunMeta is the run identity attached to every log line and artifact.
type RunMeta struct {
	// RunID is the canonical run identifier.
	RunID string
	// Device is the DAQ device identifier string (e.g. "IOIFAST").
	Device string
	// StartedAt is the run start time; stack artifact names derive from it.
	StartedAt time.Time
}

// NewRunMeta creates run metadata with a fresh run ID.
func NewRunMeta(device string) *RunMeta {
	return &RunMeta{
		RunID:     uuid.New().String(),
		Device:    device,
		StartedAt: time.Now(),
	}
}

// Validate checks run metadata per the session contract.
func (m *RunMeta) Validate() error {
	if m == nil {
		return fmt.Errorf("run metadata is nil")
	}
	if m.RunID == "" {
		return fmt.Errorf("run_id is required")
	}
	if m.StartedAt.IsZero() {
		return fmt.Errorf("start time is required")
	}
	return nil
}

// Timestamp returns the run-start timestamp in artifact-name form.
func (m *RunMeta) Timestamp() string {
	return m.StartedAt.Format("20060102_150405")
}

// RunConfig is the immutable configuration for one acquisition run.
// Built once at session construction from operator parameters; no field
// changes after the scheduler arms.
type RunConfig struct {
	// FrequencyHz is the acquisition frequency. With more than one enabled
	// mode the per-mode repetition rate is FrequencyHz / len(Modes).
	FrequencyHz float64
	// Modes is the enabled mode set in cycling order. Must be non-empty.
	Modes ModeSet
	// ExposureOverrides replaces per-mode default exposures.
	// Overrides are clamped to fit the period, never rejected.
	ExposureOverrides map[Mode]time.Duration
	// LineMap selects the digital output wiring variant.
	LineMap LineMapName
	// SaveEnabled routes frames to the stack writer when true.
	SaveEnabled bool
	// OutputDir is the directory for stack artifacts and the metadata
	// sidecar. Required when SaveEnabled.
	OutputDir string
	// Device is the DAQ device identifier string.
	Device string
	// DeadlineSlack scales the frame-pull deadline: deadline =
	// tick period × DeadlineSlack. Zero means the default of 2.0.
	DeadlineSlack float64
	// QueueDepth is the per-mode stack writer queue capacity.
	// Zero means the default of 64.
	QueueDepth int
	// OverrideReadiness arms the run even when the readiness gate
	// (temperature stabilization) has not confirmed.
	OverrideReadiness bool
}

// Defaults for optional RunConfig fields.
const (
	DefaultDeadlineSlack = 2.0
	DefaultQueueDepth    = 64
)

// Validate checks the run configuration before any trigger is issued.
func (c *RunConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("run config is nil")
	}
	if err := c.Modes.Validate(); err != nil {
		return err
	}
	if c.FrequencyHz < MinFrequencyHz || c.FrequencyHz > MaxFrequencyHz {
		return fmt.Errorf("frequency %.3f Hz outside supported range [%.1f, %.1f]",
			c.FrequencyHz, MinFrequencyHz, MaxFrequencyHz)
	}
	for m := range c.ExposureOverrides {
		if !c.Modes.Contains(m) {
			return fmt.Errorf("exposure override for mode %q not in mode set", m)
		}
	}
	if !c.LineMap.Valid() {
		return fmt.Errorf("unknown line map %q", c.LineMap)
	}
	if c.SaveEnabled && c.OutputDir == "" {
		return fmt.Errorf("save enabled but no output directory configured")
	}
	if c.DeadlineSlack < 0 {
		return fmt.Errorf("deadline slack must be non-negative")
	}
	if c.QueueDepth < 0 {
		return fmt.Errorf("queue depth must be non-negative")
	}
	return nil
}

// TickPeriod returns the scheduling interval: one tick per enabled mode,
// so a full cycle over n modes completes at FrequencyHz / n per mode.
// With a single mode the tick period is simply 1/frequency.
func (c *RunConfig) TickPeriod() time.Duration {
	return time.Duration(float64(time.Second) / c.FrequencyHz)
}

// Exposure returns the effective exposure for a mode: the configured
// override when present, else the mode default.
func (c *RunConfig) Exposure(m Mode) time.Duration {
	if d, ok := c.ExposureOverrides[m]; ok {
		return d
	}
	return m.Spec().DefaultExposure
}

// Deadline returns the frame-pull deadline for one tick.
func (c *RunConfig) Deadline() time.Duration {
	slack := c.DeadlineSlack
	if slack == 0 {
		slack = DefaultDeadlineSlack
	}
	return time.Duration(float64(c.TickPeriod()) * slack)
}
