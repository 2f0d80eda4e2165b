// Package pattern computes digital trigger patterns for acquisition ticks.
//
// The encoder is pure: same mode, period, and exposure always yield the
// same pattern, with no side effects. Hardware wiring differences are
// isolated behind the LineMap interface with two built-in variants.
package pattern

import (
	"fmt"

	"github.com/biolumen/lumacq/types"
)

// LineMap maps modes to digital output bits for one hardware installation.
//
// Two wirings exist in the field and disagree on bit assignments; they are
// kept as independent variants rather than reconciled, since the correct
// mapping is installation-specific.
type LineMap interface {
	// Name identifies the variant for configuration and logging.
	Name() types.LineMapName

	// IlluminationBit returns the bitmask that drives the mode's
	// illumination line. Zero means the mode has no line on this wiring
	// (bioluminescence on the shared port: the sample emits on its own).
	IlluminationBit(m types.Mode) (byte, error)

	// ExposureBit returns the bitmask of the camera exposure-trigger line.
	// Asserted for every mode during the exposure window.
	ExposureBit() byte
}

// ForName returns the built-in LineMap for a config name.
func ForName(name types.LineMapName) (LineMap, error) {
	switch name {
	case types.LineMapSharedPort:
		return SharedPortMap{}, nil
	case types.LineMapDiscrete:
		return DiscreteLinesMap{}, nil
	}
	return nil, fmt.Errorf("unknown line map %q", name)
}

// SharedPortMap is the single 8-bit port wiring:
// bit1 blue, bit2 green, bit4 exposure trigger. Bioluminescence drives
// no line.
type SharedPortMap struct{}

// Name implements LineMap.
func (SharedPortMap) Name() types.LineMapName { return types.LineMapSharedPort }

// IlluminationBit implements LineMap.
func (SharedPortMap) IlluminationBit(m types.Mode) (byte, error) {
	switch m {
	case types.ModeBioluminescence:
		return 0, nil
	case types.ModeBlue:
		return 1 << 1, nil
	case types.ModeGreen:
		return 1 << 2, nil
	}
	return 0, fmt.Errorf("mode %q has no shared-port line assignment", m)
}

// ExposureBit implements LineMap.
func (SharedPortMap) ExposureBit() byte { return 1 << 4 }

// DiscreteLinesMap is the four discrete line wiring:
// line0 exposure trigger, line1 bioluminescence, line2 blue, line3 green.
type DiscreteLinesMap struct{}

// Name implements LineMap.
func (DiscreteLinesMap) Name() types.LineMapName { return types.LineMapDiscrete }

// IlluminationBit implements LineMap.
func (DiscreteLinesMap) IlluminationBit(m types.Mode) (byte, error) {
	switch m {
	case types.ModeBioluminescence:
		return 1 << 1, nil
	case types.ModeBlue:
		return 1 << 2, nil
	case types.ModeGreen:
		return 1 << 3, nil
	}
	return 0, fmt.Errorf("mode %q has no discrete line assignment", m)
}

// ExposureBit implements LineMap.
func (DiscreteLinesMap) ExposureBit() byte { return 1 << 0 }

// Verify both variants implement LineMap.
var (
	_ LineMap = SharedPortMap{}
	_ LineMap = DiscreteLinesMap{}
)
