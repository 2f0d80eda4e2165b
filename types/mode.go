// Package types defines the core data model for lumacq acquisition runs.
//
// Types here are leaf definitions with no internal dependencies. Modes and
// run configuration are immutable once a run is armed; mutation after that
// point is a programming error.
package types

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Mode identifies an illumination/exposure condition cycled during
// acquisition. The set is fixed but extensible: new modes register a
// ModeSpec in specs below and a line assignment in each LineMap.
type Mode string

// Built-in acquisition modes.
const (
	ModeBioluminescence Mode = "biolum"
	ModeBlue            Mode = "blue"
	ModeGreen           Mode = "green"
)

// ModeSpec holds the per-mode acquisition defaults.
type ModeSpec struct {
	// Mode is the mode this spec describes.
	Mode Mode
	// Illuminated is false for modes with no illumination line
	// (bioluminescence: the sample emits, nothing is driven).
	Illuminated bool
	// DefaultExposure is the exposure used when no override is configured.
	DefaultExposure time.Duration
	// MaxExposureFraction bounds exposure to a fraction of the acquisition
	// period. Exposures beyond it are clamped, never rejected.
	MaxExposureFraction float64
}

// specs is the built-in mode registry. Exposure defaults follow the
// instrument's field configuration: long bioluminescence integration,
// short fluorescence pulses.
var specs = map[Mode]ModeSpec{
	ModeBioluminescence: {
		Mode:                ModeBioluminescence,
		Illuminated:         false,
		DefaultExposure:     700 * time.Millisecond,
		MaxExposureFraction: 0.9,
	},
	ModeBlue: {
		Mode:                ModeBlue,
		Illuminated:         true,
		DefaultExposure:     10 * time.Millisecond,
		MaxExposureFraction: 0.9,
	},
	ModeGreen: {
		Mode:                ModeGreen,
		Illuminated:         true,
		DefaultExposure:     10 * time.Millisecond,
		MaxExposureFraction: 0.9,
	},
}

// Spec returns the ModeSpec for the mode.
// Returns a zero ModeSpec for unknown modes; check Valid first.
func (m Mode) Spec() ModeSpec {
	return specs[m]
}

// Valid reports whether the mode is a registered mode.
func (m Mode) Valid() bool {
	_, ok := specs[m]
	return ok
}

// String returns the mode name.
func (m Mode) String() string {
	return string(m)
}

// ParseMode converts a config/CLI string to a Mode.
// Accepts the canonical short names plus the long spellings used by the
// operator UI ("bioluminescence").
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "biolum", "bioluminescence":
		return ModeBioluminescence, nil
	case "blue":
		return ModeBlue, nil
	case "green":
		return ModeGreen, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// AllModes returns all registered modes in deterministic order.
func AllModes() []Mode {
	modes := make([]Mode, 0, len(specs))
	for m := range specs {
		modes = append(modes, m)
	}
	sort.Slice(modes, func(i, j int) bool { return modes[i] < modes[j] })
	return modes
}

// ModeSet is the ordered subset of modes enabled for a run.
// Order is the round-robin cycling order; it is fixed for the run lifetime.
type ModeSet []Mode

// Validate checks that the set is non-empty, contains only registered
// modes, and has no duplicates. A run must not arm with an invalid set.
func (s ModeSet) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("mode set is empty: at least one mode is required")
	}
	seen := make(map[Mode]bool, len(s))
	for _, m := range s {
		if !m.Valid() {
			return fmt.Errorf("unknown mode %q in mode set", m)
		}
		if seen[m] {
			return fmt.Errorf("duplicate mode %q in mode set", m)
		}
		seen[m] = true
	}
	return nil
}

// Contains reports whether the set contains the mode.
func (s ModeSet) Contains(m Mode) bool {
	for _, member := range s {
		if member == m {
			return true
		}
	}
	return false
}

// At returns the mode for tick i, round-robin with wraparound.
func (s ModeSet) At(i int64) Mode {
	return s[int(i%int64(len(s)))]
}

// String returns a comma-joined list of mode names.
func (s ModeSet) String() string {
	names := make([]string, len(s))
	for i, m := range s {
		names[i] = string(m)
	}
	return strings.Join(names, ",")
}
