package pattern

import (
	"fmt"
	"time"

	"github.com/biolumen/lumacq/types"
)

// MinSettleMargin is the minimum gap between the end of the exposure
// window and the end of the period. The camera needs it to read out
// before the next trigger edge.
const MinSettleMargin = 5 * time.Millisecond

// Encoder computes trigger patterns for one line map.
type Encoder struct {
	lineMap LineMap
}

// NewEncoder creates an encoder for the given line map.
func NewEncoder(lm LineMap) *Encoder {
	return &Encoder{lineMap: lm}
}

// LineMap returns the encoder's line map.
func (e *Encoder) LineMap() LineMap { return e.lineMap }

// Encode computes the trigger pattern for one tick of the given mode.
//
// The pattern spans exactly one period at types.SampleRate. The mode's
// illumination bit (if any) and the exposure-trigger bit are asserted for
// the exposure window at the start of the period, then all lines drop.
//
// An exposure that does not fit the period budget (period minus
// MinSettleMargin, bounded by the mode's MaxExposureFraction) is clamped
// to fit and the returned pattern has Clamped set. Clamping is advisory,
// never an error.
func (e *Encoder) Encode(m types.Mode, period, exposure time.Duration) (*types.TriggerPattern, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("cannot encode unknown mode %q", m)
	}
	if period < time.Second/types.SampleRate {
		return nil, fmt.Errorf("period %v shorter than one sample interval", period)
	}
	if exposure <= 0 {
		return nil, fmt.Errorf("exposure must be positive, got %v", exposure)
	}

	illum, err := e.lineMap.IlluminationBit(m)
	if err != nil {
		return nil, err
	}
	mask := illum | e.lineMap.ExposureBit()

	totalSamples := durationToSamples(period)
	expSamples := durationToSamples(exposure)

	// The window must leave the settle margin free and stay within the
	// mode's period fraction, whichever is tighter.
	limit := totalSamples - durationToSamples(MinSettleMargin)
	if byFraction := int(float64(totalSamples) * m.Spec().MaxExposureFraction); byFraction < limit {
		limit = byFraction
	}
	if limit < 1 {
		limit = 1
	}

	clamped := false
	if expSamples > limit {
		expSamples = limit
		clamped = true
	}

	samples := make([]byte, totalSamples)
	for i := 0; i < expSamples; i++ {
		samples[i] = mask
	}

	return &types.TriggerPattern{
		Mode:            m,
		Mask:            mask,
		Samples:         samples,
		ExposureSamples: expSamples,
		Period:          period,
		Clamped:         clamped,
	}, nil
}

// durationToSamples converts a duration to a sample count at SampleRate,
// rounding down. Minimum one sample.
func durationToSamples(d time.Duration) int {
	n := int(d * types.SampleRate / time.Second)
	if n < 1 {
		n = 1
	}
	return n
}
