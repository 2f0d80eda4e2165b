// Package route binds delivered frames to the mode that triggered them
// and fans them out to persistence and live display.
package route

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/biolumen/lumacq/device"
	"github.com/biolumen/lumacq/health"
	"github.com/biolumen/lumacq/log"
	"github.com/biolumen/lumacq/stack"
	"github.com/biolumen/lumacq/types"
)

// Result classifies the outcome of routing one tick.
type Result int

const (
	// ResultRouted means a frame arrived in time and was forwarded.
	ResultRouted Result = iota
	// ResultTimeout means no frame arrived before the deadline. The
	// tick is recorded against the mode and the scheduler moves on.
	ResultTimeout
	// ResultDropped means a frame arrived but persistence was
	// saturated and the frame was discarded.
	ResultDropped
)

func (r Result) String() string {
	switch r {
	case ResultRouted:
		return "routed"
	case ResultTimeout:
		return "timeout"
	case ResultDropped:
		return "dropped"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// Persister receives routed frames for durable storage. Implementations
// must not block the caller; see stack.Writer.
type Persister interface {
	Append(mode types.Mode, rec *types.FrameRecord) error
}

var _ Persister = (*stack.Writer)(nil)

// DisplaySink receives routed frames for live consumption (preview,
// ROI intensity). Calls happen on the scheduling path, so
// implementations must be non-blocking; a sink that falls behind drops
// its own frames rather than stalling acquisition.
type DisplaySink interface {
	Display(rec *types.FrameRecord)
}

// Router attributes each delivered frame to the mode whose trigger
// produced it, then forwards the stamped record downstream.
//
// Exactly one goroutine calls Route at a time (the scheduler's tick
// loop), so frames for a given mode reach the persister in trigger
// order even though modes interleave.
type Router struct {
	acquirer  device.FrameAcquirer
	persister Persister
	display   DisplaySink
	monitor   *health.Monitor
	logger    *log.Logger
}

// NewRouter creates a router. persister may be nil when saving is
// disabled; display and monitor may be nil.
func NewRouter(acquirer device.FrameAcquirer, persister Persister, display DisplaySink, monitor *health.Monitor, logger *log.Logger) *Router {
	return &Router{
		acquirer:  acquirer,
		persister: persister,
		display:   display,
		monitor:   monitor,
		logger:    logger,
	}
}

// Route pulls the frame expected for one tick and attributes it to mode.
//
// Waits at most deadline for the frame. A timeout is recorded against
// the mode and routing reports ResultTimeout with no error, so a
// stalled camera costs one tick, not the run. A delivered frame is
// stamped with the mode tag and sequence number, handed to the
// persister, and offered to the display sink.
//
// A non-nil error is fatal to the run: a device fault or a canceled
// context.
func (r *Router) Route(ctx context.Context, seq int64, mode types.Mode, deadline time.Duration) (Result, error) {
	rec, err := r.acquirer.PullFrame(ctx, deadline)
	if err != nil {
		if device.IsFrameTimeout(err) {
			r.monitor.RecordTimeout(mode)
			if r.logger != nil {
				r.logger.Warn("frame deadline missed", map[string]any{
					"mode":     string(mode),
					"seq":      seq,
					"deadline": deadline.String(),
				})
			}
			return ResultTimeout, nil
		}
		if ctx.Err() != nil {
			return ResultTimeout, ctx.Err()
		}
		return ResultTimeout, err
	}

	rec.Seq = seq
	rec.Mode = mode
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	result := ResultRouted
	if r.persister != nil {
		switch err := r.persister.Append(mode, rec); {
		case err == nil:
		case errors.Is(err, stack.ErrQueueSaturated):
			// Already logged by the writer; count it and move on.
			r.monitor.RecordDrop(mode)
			result = ResultDropped
		default:
			return ResultDropped, fmt.Errorf("persist frame %d for %s: %w", seq, mode, err)
		}
	}

	if result == ResultRouted {
		r.monitor.RecordFrame(mode, rec.Timestamp)
	}

	if r.display != nil {
		r.display.Display(rec)
	}
	return result, nil
}
