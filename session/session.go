// Package session owns the acquisition run lifecycle: it validates the
// run configuration, wires the scheduler, router, health monitor, and
// stack writer together, and guarantees every termination path leaves
// finalized, readable artifacts behind.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/biolumen/lumacq/device"
	"github.com/biolumen/lumacq/health"
	"github.com/biolumen/lumacq/log"
	"github.com/biolumen/lumacq/pattern"
	"github.com/biolumen/lumacq/route"
	"github.com/biolumen/lumacq/schedule"
	"github.com/biolumen/lumacq/stack"
	"github.com/biolumen/lumacq/types"
)

// Options supplies the session's external collaborators. Driver and
// Acquirer are required; the rest are optional.
type Options struct {
	Driver    device.TriggerDriver
	Acquirer  device.FrameAcquirer
	Readiness device.ReadinessChecker
	Display   route.DisplaySink
	Logger    *log.Logger

	// TickLimit ends the run after this many ticks. Zero runs until
	// Stop or context cancellation.
	TickLimit int64
}

// Result reports how a run went.
type Result struct {
	Meta    *types.RunMeta
	Outcome types.RunOutcome
	Ticks   int64
	// Modes holds the final per-mode counters and rate statistics.
	Modes map[types.Mode]health.ModeHealth
	// Artifacts lists the finalized stack files, sorted by mode.
	// Empty when saving was disabled.
	Artifacts []types.ArtifactInfo
	// MetadataPath is the metadata sidecar location, empty when saving
	// was disabled.
	MetadataPath string
}

// Session is the single entry point external callers drive. One
// session runs at most once.
type Session struct {
	cfg  *types.RunConfig
	opts Options
	meta *types.RunMeta

	mu            sync.Mutex
	sched         *schedule.Scheduler
	stopRequested bool
}

// New validates the run configuration and assembles a session.
// Rejection here means no trigger was or will be issued.
func New(cfg *types.RunConfig, opts Options) (*Session, error) {
	if cfg == nil {
		return nil, errors.New("session: nil run config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Driver == nil || opts.Acquirer == nil {
		return nil, errors.New("session: trigger driver and frame acquirer are required")
	}
	return &Session{
		cfg:  cfg,
		opts: opts,
		meta: types.NewRunMeta(cfg.Device),
	}, nil
}

// Meta returns the run identity assigned at construction.
func (s *Session) Meta() *types.RunMeta {
	return s.meta
}

// Stop requests a cooperative stop of a running session. Safe to call
// from any goroutine, before or during Run.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopRequested = true
	if s.sched != nil {
		s.sched.Stop()
	}
}

// Run executes the acquisition and blocks until it drains.
//
// The returned Result is always non-nil with the outcome filled in; the
// error mirrors the fatal cause when the outcome is a failure. Stacks
// are flushed and closed on every path, so an aborted run still leaves
// artifacts valid up to the last routed frame.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	logger := s.opts.Logger
	result := &Result{Meta: s.meta}

	lineMap, err := pattern.ForName(s.cfg.LineMap)
	if err != nil {
		result.Outcome = types.RunOutcome{Status: types.OutcomeInvalidConfig, Message: err.Error()}
		return result, err
	}

	monitor := health.NewMonitor(s.cfg.Modes, health.Config{
		TargetInterval: s.cfg.TickPeriod() * time.Duration(len(s.cfg.Modes)),
		OnAdvisory: func(mode types.Mode, reason string) {
			if logger != nil {
				logger.Warn("acquisition rate degraded", map[string]any{
					"mode":   string(mode),
					"reason": reason,
				})
			}
		},
	})

	var writer *stack.Writer
	if s.cfg.SaveEnabled {
		writer, err = stack.NewWriter(s.cfg.OutputDir, s.meta, s.cfg.QueueDepth, logger)
		if err != nil {
			result.Outcome = types.RunOutcome{Status: types.OutcomeInvalidConfig, Message: err.Error()}
			return result, err
		}
	}

	var persister route.Persister
	if writer != nil {
		persister = writer
	}
	router := route.NewRouter(s.opts.Acquirer, persister, s.opts.Display, monitor, logger)

	sched, err := schedule.New(schedule.Config{
		Run:       s.cfg,
		Encoder:   pattern.NewEncoder(lineMap),
		Driver:    s.opts.Driver,
		Router:    router,
		Monitor:   monitor,
		Readiness: s.opts.Readiness,
		Logger:    logger,
		TickLimit: s.opts.TickLimit,
	})
	if err != nil {
		result.Outcome = types.RunOutcome{Status: types.OutcomeInvalidConfig, Message: err.Error()}
		return result, err
	}

	s.mu.Lock()
	s.sched = sched
	if s.stopRequested {
		sched.Stop()
	}
	s.mu.Unlock()

	if logger != nil {
		logger.Info("run starting", map[string]any{
			"modes":        s.cfg.Modes.String(),
			"frequency_hz": s.cfg.FrequencyHz,
			"line_map":     string(s.cfg.LineMap),
			"save_enabled": s.cfg.SaveEnabled,
		})
	}

	runErr := sched.Arm(ctx)
	if runErr == nil {
		runErr = sched.Run(ctx)
	}

	result.Ticks = sched.Ticks()
	result.Modes = monitor.Snapshot()
	result.Outcome = classify(runErr)

	if writer != nil {
		artifacts, closeErr := writer.CloseAll()
		result.Artifacts = artifacts
		if closeErr != nil && runErr == nil {
			runErr = closeErr
			result.Outcome = types.RunOutcome{Status: types.OutcomeDeviceFault, Message: closeErr.Error()}
		}
		if path, err := s.writeMetadata(result); err != nil {
			if logger != nil {
				logger.Error("metadata sidecar write failed", map[string]any{
					"error": err.Error(),
				})
			}
		} else {
			result.MetadataPath = path
		}
	}

	if logger != nil {
		logger.Info("run finished", map[string]any{
			"status": string(result.Outcome.Status),
			"ticks":  result.Ticks,
		})
	}
	return result, runErr
}

// classify maps the scheduler's terminal error to a run outcome.
func classify(err error) types.RunOutcome {
	switch {
	case err == nil:
		return types.RunOutcome{Status: types.OutcomeSuccess}
	case device.IsDeviceFault(err):
		return types.RunOutcome{Status: types.OutcomeDeviceFault, Message: err.Error()}
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return types.RunOutcome{Status: types.OutcomeCanceled, Message: err.Error()}
	case errors.Is(err, device.ErrNotReady):
		return types.RunOutcome{Status: types.OutcomeInvalidConfig, Message: err.Error()}
	default:
		return types.RunOutcome{Status: types.OutcomeDeviceFault, Message: err.Error()}
	}
}

// runMetadata is the YAML sidecar written next to the stack artifacts.
type runMetadata struct {
	RunID       string    `yaml:"run_id"`
	Device      string    `yaml:"device,omitempty"`
	StartedAt   time.Time `yaml:"started_at"`
	FinishedAt  time.Time `yaml:"finished_at"`
	FrequencyHz float64   `yaml:"frequency_hz"`
	Modes       []string  `yaml:"modes"`
	LineMap     string    `yaml:"line_map"`
	Status      string    `yaml:"status"`
	Message     string    `yaml:"message,omitempty"`
	Ticks       int64     `yaml:"ticks"`

	ModeStats map[string]modeMetadata `yaml:"mode_stats"`
	Artifacts []artifactMetadata      `yaml:"artifacts"`
}

type modeMetadata struct {
	FramesRouted int64   `yaml:"frames_routed"`
	Timeouts     int64   `yaml:"timeouts"`
	Dropped      int64   `yaml:"dropped"`
	AchievedHz   float64 `yaml:"achieved_hz"`
}

type artifactMetadata struct {
	Mode      string `yaml:"mode"`
	Path      string `yaml:"path"`
	Frames    int64  `yaml:"frames"`
	SizeBytes int64  `yaml:"size_bytes"`
}

// writeMetadata records the run configuration and outcome next to the
// stacks so an artifact directory is self-describing.
func (s *Session) writeMetadata(result *Result) (string, error) {
	md := runMetadata{
		RunID:       s.meta.RunID,
		Device:      s.meta.Device,
		StartedAt:   s.meta.StartedAt,
		FinishedAt:  time.Now().UTC(),
		FrequencyHz: s.cfg.FrequencyHz,
		LineMap:     string(s.cfg.LineMap),
		Status:      string(result.Outcome.Status),
		Message:     result.Outcome.Message,
		Ticks:       result.Ticks,
		ModeStats:   make(map[string]modeMetadata, len(result.Modes)),
	}
	for _, m := range s.cfg.Modes {
		md.Modes = append(md.Modes, string(m))
	}
	for mode, h := range result.Modes {
		md.ModeStats[string(mode)] = modeMetadata{
			FramesRouted: h.FramesRouted,
			Timeouts:     h.Timeouts,
			Dropped:      h.Dropped,
			AchievedHz:   h.AchievedHz,
		}
	}
	for _, a := range result.Artifacts {
		md.Artifacts = append(md.Artifacts, artifactMetadata{
			Mode:      string(a.Mode),
			Path:      a.Path,
			Frames:    a.Frames,
			SizeBytes: a.SizeBytes,
		})
	}

	data, err := yaml.Marshal(&md)
	if err != nil {
		return "", fmt.Errorf("encode run metadata: %w", err)
	}
	path := filepath.Join(s.cfg.OutputDir, types.MetadataFileName(s.meta))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write run metadata: %w", err)
	}
	return path, nil
}
