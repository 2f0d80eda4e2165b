// Package health tracks achieved frame rate per mode against target.
//
// The Monitor accumulates counters during a single run. It is a leaf
// package with no internal dependencies. Reads are advisory snapshots for
// monitoring surfaces; sustained underrun raises a non-fatal advisory and
// never stops the run.
package health

import (
	"fmt"
	"sync"
	"time"

	"github.com/biolumen/lumacq/types"
)

// Defaults for monitor configuration.
const (
	// DefaultWindow is the trailing interval window per mode.
	DefaultWindow = 100
	// DefaultTolerance is the accepted deviation of the average interval
	// from target before a mode is flagged unhealthy.
	DefaultTolerance = 0.25
	// minSamples is the evidence floor: a mode with fewer recorded
	// intervals is considered healthy by default.
	minSamples = 5
)

// Config configures a Monitor.
type Config struct {
	// TargetInterval is the expected inter-frame interval per mode
	// (tick period x number of enabled modes).
	TargetInterval time.Duration
	// Tolerance is the accepted fractional deviation of the trailing
	// average from TargetInterval. Zero means DefaultTolerance.
	Tolerance float64
	// Window is the trailing interval count retained per mode.
	// Zero means DefaultWindow.
	Window int
	// OnAdvisory, when set, is called once per healthy-to-degraded
	// transition of a mode. Never called concurrently with itself.
	OnAdvisory func(m types.Mode, reason string)
}

// ModeHealth is an advisory snapshot of one mode's rate statistics.
type ModeHealth struct {
	Mode types.Mode
	// FramesRouted is the number of frames attributed to the mode.
	FramesRouted int64
	// Timeouts is the number of ticks that produced no frame in time.
	Timeouts int64
	// Dropped is the number of frames dropped downstream (writer overflow).
	Dropped int64
	// AverageInterval is the trailing-window mean inter-frame interval.
	// Zero until two frames have been routed.
	AverageInterval time.Duration
	// AchievedHz is 1/AverageInterval, or zero when unknown.
	AchievedHz float64
	// Healthy reflects the tolerance band check at snapshot time.
	Healthy bool
}

// Monitor maintains per-mode rate statistics for one run.
// Thread-safe; increment methods are nil-receiver safe so callers need
// no monitoring wiring in tests.
type Monitor struct {
	mu     sync.Mutex
	config Config
	modes  map[types.Mode]*modeStats
}

type modeStats struct {
	intervals []time.Duration // ring buffer, oldest overwritten
	next      int
	filled    bool
	lastFrame time.Time

	framesRouted int64
	timeouts     int64
	dropped      int64

	degraded bool
}

// NewMonitor creates a monitor for the given mode set.
func NewMonitor(modes types.ModeSet, config Config) *Monitor {
	if config.Window <= 0 {
		config.Window = DefaultWindow
	}
	if config.Tolerance <= 0 {
		config.Tolerance = DefaultTolerance
	}
	m := &Monitor{
		config: config,
		modes:  make(map[types.Mode]*modeStats, len(modes)),
	}
	for _, mode := range modes {
		m.modes[mode] = &modeStats{intervals: make([]time.Duration, config.Window)}
	}
	return m
}

// RecordFrame records a routed frame for the mode at the given timestamp.
func (m *Monitor) RecordFrame(mode types.Mode, ts time.Time) {
	if m == nil {
		return
	}
	m.mu.Lock()
	s := m.modes[mode]
	if s == nil {
		m.mu.Unlock()
		return
	}
	s.framesRouted++
	if !s.lastFrame.IsZero() {
		s.push(ts.Sub(s.lastFrame))
	}
	s.lastFrame = ts

	advisory := m.checkLocked(mode, s)
	m.mu.Unlock()

	if advisory != "" && m.config.OnAdvisory != nil {
		m.config.OnAdvisory(mode, advisory)
	}
}

// RecordTimeout records a missed tick for the mode.
func (m *Monitor) RecordTimeout(mode types.Mode) {
	if m == nil {
		return
	}
	m.mu.Lock()
	if s := m.modes[mode]; s != nil {
		s.timeouts++
	}
	m.mu.Unlock()
}

// RecordDrop records a frame dropped downstream for the mode.
func (m *Monitor) RecordDrop(mode types.Mode) {
	if m == nil {
		return
	}
	m.mu.Lock()
	if s := m.modes[mode]; s != nil {
		s.dropped++
	}
	m.mu.Unlock()
}

// IsHealthy reports whether the mode's achieved rate is within the
// tolerance band of target over the trailing window. Modes with too few
// samples are healthy by default.
func (m *Monitor) IsHealthy(mode types.Mode) bool {
	if m == nil {
		return true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.modes[mode]
	if s == nil {
		return true
	}
	return m.healthyLocked(s)
}

// Snapshot returns advisory statistics for every monitored mode.
// The snapshot may lag live counters slightly; it is for display only.
func (m *Monitor) Snapshot() map[types.Mode]ModeHealth {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[types.Mode]ModeHealth, len(m.modes))
	for mode, s := range m.modes {
		avg := s.average()
		h := ModeHealth{
			Mode:            mode,
			FramesRouted:    s.framesRouted,
			Timeouts:        s.timeouts,
			Dropped:         s.dropped,
			AverageInterval: avg,
			Healthy:         m.healthyLocked(s),
		}
		if avg > 0 {
			h.AchievedHz = float64(time.Second) / float64(avg)
		}
		out[mode] = h
	}
	return out
}

// healthyLocked applies the tolerance band check. Caller holds mu.
func (m *Monitor) healthyLocked(s *modeStats) bool {
	n := s.sampleCount()
	if n < minSamples {
		return true
	}
	avg := s.average()
	limit := time.Duration(float64(m.config.TargetInterval) * (1 + m.config.Tolerance))
	return avg <= limit
}

// checkLocked updates the degraded latch and returns an advisory reason
// on the healthy-to-degraded transition. Caller holds mu.
func (m *Monitor) checkLocked(mode types.Mode, s *modeStats) string {
	healthy := m.healthyLocked(s)
	switch {
	case !healthy && !s.degraded:
		s.degraded = true
		return fmt.Sprintf("mode %s: achieved interval %v above target %v (+%.0f%% band)",
			mode, s.average().Round(time.Millisecond), m.config.TargetInterval,
			m.config.Tolerance*100)
	case healthy && s.degraded:
		s.degraded = false
	}
	return ""
}

func (s *modeStats) push(d time.Duration) {
	s.intervals[s.next] = d
	s.next++
	if s.next == len(s.intervals) {
		s.next = 0
		s.filled = true
	}
}

func (s *modeStats) sampleCount() int {
	if s.filled {
		return len(s.intervals)
	}
	return s.next
}

func (s *modeStats) average() time.Duration {
	n := s.sampleCount()
	if n == 0 {
		return 0
	}
	var total time.Duration
	for i := 0; i < n; i++ {
		total += s.intervals[i]
	}
	return total / time.Duration(n)
}
