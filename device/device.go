// Package device defines the hardware collaborator interfaces the
// acquisition core depends on, plus simulated implementations for tests
// and dry runs.
//
// The core never performs hardware-specific configuration (gain,
// temperature, cooling); devices are handed over ready. Real drivers
// live outside this module and satisfy these interfaces.
package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/biolumen/lumacq/types"
)

// DeviceFault reports a lost hardware link. Always fatal to the run.
type DeviceFault struct {
	// Op is the operation that observed the fault.
	Op string
	// Device is the device identifier.
	Device string
	// Err is the underlying driver error.
	Err error
}

func (e *DeviceFault) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("device fault on %s (%s): %v", e.Device, e.Op, e.Err)
	}
	return fmt.Sprintf("device fault on %s (%s)", e.Device, e.Op)
}

func (e *DeviceFault) Unwrap() error {
	return e.Err
}

// IsDeviceFault reports whether the error is (or wraps) a DeviceFault.
func IsDeviceFault(err error) bool {
	var fault *DeviceFault
	return errors.As(err, &fault)
}

// ErrFrameTimeout is returned by PullFrame when no frame arrives within
// the deadline. Recoverable: the tick is recorded and the run continues.
var ErrFrameTimeout = errors.New("frame pull timed out")

// IsFrameTimeout reports whether the error is a frame timeout.
func IsFrameTimeout(err error) bool {
	return errors.Is(err, ErrFrameTimeout)
}

// ErrNotReady is returned by a ReadinessChecker that has not confirmed.
var ErrNotReady = errors.New("device not ready")

// TriggerDriver drives the digital output lines.
//
// AssertPattern writes one pattern cycle to the output task and returns
// once the cycle has completed; the hardware plays the per-sample states
// at types.SampleRate for the pattern duration, so the call itself paces
// the tick loop at the acquisition period. A failure is a *DeviceFault
// and fatal to the run.
//
// Release sets all lines low and frees the output task. Safe to call
// more than once.
type TriggerDriver interface {
	AssertPattern(ctx context.Context, p *types.TriggerPattern) error
	Release() error
}

// FrameAcquirer delivers frames from the camera.
//
// PullFrame blocks until the next frame or the timeout, whichever comes
// first. On timeout it returns ErrFrameTimeout; a broken camera link
// returns a *DeviceFault. The returned record has no mode tag yet; the
// router assigns it.
type FrameAcquirer interface {
	PullFrame(ctx context.Context, timeout time.Duration) (*types.FrameRecord, error)
}

// ReadinessChecker gates arming on external conditions, typically sensor
// temperature stabilization. Ready returns nil when the run may arm, or
// an error wrapping ErrNotReady with the reason.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// AlwaysReady is a ReadinessChecker that never blocks arming.
type AlwaysReady struct{}

// Ready implements ReadinessChecker.
func (AlwaysReady) Ready(context.Context) error { return nil }

// Verify AlwaysReady implements ReadinessChecker.
var _ ReadinessChecker = AlwaysReady{}
