package types

import "time"

// SampleRate is the digital-output sample clock in Hz. One pattern sample
// holds the line state for one millisecond, matching the DAQ update rate.
const SampleRate = 1000

// TriggerPattern is the digital-line assertion plan for one mode's tick.
// Computed per scheduled tick by the pattern encoder, owned by the
// scheduler for the duration of that tick.
type TriggerPattern struct {
	// Mode is the mode this pattern realizes.
	Mode Mode
	// Mask is the line state asserted during the exposure window:
	// the mode's illumination bit (if any) OR'd with the exposure-trigger
	// bit of the configured line map.
	Mask byte
	// Samples holds one byte of line state per sample at SampleRate.
	// len(Samples) spans exactly one acquisition period.
	Samples []byte
	// ExposureSamples is the number of leading samples with Mask asserted.
	ExposureSamples int
	// Period is the total pattern duration (len(Samples) sample intervals).
	Period time.Duration
	// Clamped is set when the requested exposure exceeded the period
	// budget and was clamped to fit. Advisory, never fatal.
	Clamped bool
}

// Exposure returns the realized exposure duration.
func (p *TriggerPattern) Exposure() time.Duration {
	return time.Duration(p.ExposureSamples) * time.Second / SampleRate
}

// Duration returns the total pattern duration derived from the sample count.
func (p *TriggerPattern) Duration() time.Duration {
	return time.Duration(len(p.Samples)) * time.Second / SampleRate
}
