// Package schedule runs the acquisition tick loop: cycling the enabled
// modes round-robin, asserting each mode's trigger pattern, and routing
// the resulting frame.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/biolumen/lumacq/device"
	"github.com/biolumen/lumacq/health"
	"github.com/biolumen/lumacq/log"
	"github.com/biolumen/lumacq/pattern"
	"github.com/biolumen/lumacq/route"
	"github.com/biolumen/lumacq/types"
)

// State is the scheduler lifecycle state.
type State int32

const (
	// StateIdle is the initial state: constructed, not yet armed.
	StateIdle State = iota
	// StateArmed means readiness has been confirmed and the run may start.
	StateArmed
	// StateRunning means the tick loop is cycling modes.
	StateRunning
	// StateDraining means a stop was requested and the loop is finishing
	// its current tick before releasing the trigger lines.
	StateDraining
	// StateStopped is terminal.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// rateLogEvery controls the cadence of tick-rate debug logs.
const rateLogEvery = 100

// Config assembles a scheduler's collaborators.
type Config struct {
	Run       *types.RunConfig
	Encoder   *pattern.Encoder
	Driver    device.TriggerDriver
	Router    *route.Router
	Monitor   *health.Monitor
	Readiness device.ReadinessChecker
	Logger    *log.Logger

	// TickLimit stops the run after this many ticks. Zero runs until
	// Stop or context cancellation.
	TickLimit int64
}

// Scheduler owns the tick loop. Exactly one goroutine runs the loop;
// Stop and State may be called from any goroutine.
//
// Each tick serves one mode: encode the trigger pattern, assert it
// (the driver call spans the acquisition period), then route the frame
// the exposure produced. Modes rotate in the ModeSet's order, so with n
// enabled modes each mode achieves frequency/n.
type Scheduler struct {
	cfg Config

	state    atomic.Int32
	stopOnce sync.Once
	stopCh   chan struct{}

	ticks atomic.Int64

	// clampWarned tracks which modes already logged a clamp advisory.
	mu          sync.Mutex
	clampWarned map[types.Mode]bool
}

// New creates a scheduler in StateIdle.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Run == nil {
		return nil, errors.New("schedule: nil run config")
	}
	if err := cfg.Run.Validate(); err != nil {
		return nil, err
	}
	if cfg.Encoder == nil || cfg.Driver == nil || cfg.Router == nil {
		return nil, errors.New("schedule: encoder, driver, and router are required")
	}
	return &Scheduler{
		cfg:         cfg,
		stopCh:      make(chan struct{}),
		clampWarned: make(map[types.Mode]bool),
	}, nil
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Ticks returns the number of ticks started so far.
func (s *Scheduler) Ticks() int64 {
	return s.ticks.Load()
}

// Arm transitions Idle to Armed after the readiness gate passes.
//
// The gate is typically sensor temperature stabilization. A run config
// with OverrideReadiness set skips the check; the override is logged.
func (s *Scheduler) Arm(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateArmed)) {
		return fmt.Errorf("cannot arm from state %s", s.State())
	}

	if s.cfg.Run.OverrideReadiness {
		if s.cfg.Logger != nil {
			s.cfg.Logger.Warn("readiness gate overridden by operator", nil)
		}
		return nil
	}
	if s.cfg.Readiness != nil {
		if err := s.cfg.Readiness.Ready(ctx); err != nil {
			s.state.Store(int32(StateIdle))
			return fmt.Errorf("readiness gate: %w", err)
		}
	}
	return nil
}

// Run executes the tick loop until the tick limit is reached, Stop is
// called, the context is canceled, or a fatal fault occurs. Requires
// StateArmed. The scheduler always ends in StateStopped with the
// trigger lines released.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateArmed), int32(StateRunning)) {
		return fmt.Errorf("cannot run from state %s", s.State())
	}

	err := s.loop(ctx)

	s.state.Store(int32(StateDraining))
	if relErr := s.cfg.Driver.Release(); relErr != nil {
		if s.cfg.Logger != nil {
			s.cfg.Logger.Error("trigger release failed", map[string]any{
				"error": relErr.Error(),
			})
		}
		if err == nil {
			err = relErr
		}
	}
	s.state.Store(int32(StateStopped))

	if s.cfg.Logger != nil {
		s.cfg.Logger.Info("scheduler stopped", map[string]any{
			"ticks": s.ticks.Load(),
		})
	}
	return err
}

// Stop requests a cooperative stop. The loop finishes the tick in
// flight, then drains and releases the trigger lines. A running
// scheduler is observable in StateDraining from the moment the stop is
// requested. Safe to call multiple times and from any goroutine.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.state.CompareAndSwap(int32(StateRunning), int32(StateDraining))
}

func (s *Scheduler) loop(ctx context.Context) error {
	run := s.cfg.Run
	period := run.TickPeriod()
	deadline := run.Deadline()

	for seq := int64(0); ; seq++ {
		if s.cfg.TickLimit > 0 && seq >= s.cfg.TickLimit {
			return nil
		}
		select {
		case <-s.stopCh:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		s.ticks.Add(1)
		mode := run.Modes.At(seq)

		pat, err := s.cfg.Encoder.Encode(mode, period, run.Exposure(mode))
		if err != nil {
			return fmt.Errorf("encode pattern for %s: %w", mode, err)
		}
		if pat.Clamped {
			s.warnClamp(mode, run.Exposure(mode), pat.Exposure())
		}

		if err := s.cfg.Driver.AssertPattern(ctx, pat); err != nil {
			return fmt.Errorf("assert pattern for %s: %w", mode, err)
		}

		if _, err := s.cfg.Router.Route(ctx, seq, mode, deadline); err != nil {
			return err
		}

		if n := seq + 1; n%rateLogEvery == 0 && s.cfg.Logger != nil {
			s.cfg.Logger.Debug("tick progress", map[string]any{
				"ticks":  n,
				"mode":   string(mode),
				"health": s.cfg.Monitor.IsHealthy(mode),
			})
		}
	}
}

// warnClamp logs the exposure clamp advisory once per mode per run.
func (s *Scheduler) warnClamp(mode types.Mode, requested, actual time.Duration) {
	s.mu.Lock()
	warned := s.clampWarned[mode]
	s.clampWarned[mode] = true
	s.mu.Unlock()
	if warned || s.cfg.Logger == nil {
		return
	}
	s.cfg.Logger.Warn("exposure clamped to fit acquisition period", map[string]any{
		"mode":      string(mode),
		"requested": requested.String(),
		"actual":    actual.String(),
	})
}
