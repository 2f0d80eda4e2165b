package device

import (
	"context"
	"sync"
	"time"

	"github.com/biolumen/lumacq/types"
)

// RecorderDriver is a TriggerDriver that records asserted patterns.
// Use in tests and dry runs to verify trigger sequences without hardware.
type RecorderDriver struct {
	mu sync.Mutex

	// Asserted holds every pattern passed to AssertPattern, in order.
	Asserted []*types.TriggerPattern
	// Released indicates whether Release was called.
	Released bool
	// FailOn, when > 0, makes the FailOn-th AssertPattern call (1-based)
	// return a DeviceFault.
	FailOn int

	calls int
}

// NewRecorderDriver creates a recording trigger driver.
func NewRecorderDriver() *RecorderDriver {
	return &RecorderDriver{}
}

// AssertPattern implements TriggerDriver by recording the pattern.
func (d *RecorderDriver) AssertPattern(_ context.Context, p *types.TriggerPattern) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls++
	if d.FailOn > 0 && d.calls >= d.FailOn {
		return &DeviceFault{Op: "assert_pattern", Device: "sim"}
	}
	d.Asserted = append(d.Asserted, p)
	return nil
}

// Release implements TriggerDriver.
func (d *RecorderDriver) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Released = true
	return nil
}

// Patterns returns a snapshot of the asserted patterns.
func (d *RecorderDriver) Patterns() []*types.TriggerPattern {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*types.TriggerPattern, len(d.Asserted))
	copy(out, d.Asserted)
	return out
}

// Verify RecorderDriver implements TriggerDriver.
var _ TriggerDriver = (*RecorderDriver)(nil)

// SimAcquirer is a FrameAcquirer producing deterministic synthetic
// frames. Pulls are scriptable: individual pulls can time out or fault
// to exercise the recovery paths.
type SimAcquirer struct {
	mu sync.Mutex

	// Width and Height are the synthetic frame dimensions.
	// Zero values default to 64x64.
	Width, Height int
	// TimeoutOn makes the listed pulls (1-based) return ErrFrameTimeout.
	TimeoutOn map[int]bool
	// FaultOn, when > 0, makes the FaultOn-th pull return a DeviceFault.
	FaultOn int
	// Delay, when set, is slept before each successful pull to simulate
	// exposure latency.
	Delay time.Duration

	pulls int
}

// NewSimAcquirer creates a simulated acquirer with 64x64 frames.
func NewSimAcquirer() *SimAcquirer {
	return &SimAcquirer{}
}

// PullFrame implements FrameAcquirer.
func (a *SimAcquirer) PullFrame(ctx context.Context, timeout time.Duration) (*types.FrameRecord, error) {
	a.mu.Lock()
	a.pulls++
	pull := a.pulls
	w, h := a.Width, a.Height
	delay := a.Delay
	timedOut := a.TimeoutOn[pull]
	faulted := a.FaultOn > 0 && pull >= a.FaultOn
	a.mu.Unlock()

	if faulted {
		return nil, &DeviceFault{Op: "pull_frame", Device: "sim"}
	}
	if timedOut {
		return nil, ErrFrameTimeout
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if w == 0 {
		w = 64
	}
	if h == 0 {
		h = 64
	}

	// Pixel payload keyed to the pull number so tests can verify that
	// frames land in the right stack in the right order.
	pixels := make([]byte, w*h*2)
	for i := range pixels {
		pixels[i] = byte(pull)
	}

	return &types.FrameRecord{
		Timestamp:     time.Now(),
		Width:         w,
		Height:        h,
		BitsPerSample: 16,
		Pixels:        pixels,
	}, nil
}

// Pulls returns the number of PullFrame calls so far.
func (a *SimAcquirer) Pulls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pulls
}

// Verify SimAcquirer implements FrameAcquirer.
var _ FrameAcquirer = (*SimAcquirer)(nil)
