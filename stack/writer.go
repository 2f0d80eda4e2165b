package stack

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/biolumen/lumacq/log"
	"github.com/biolumen/lumacq/types"
)

// ErrQueueSaturated is returned by Append when a mode's queue is full.
// The frame is dropped (last resort); the caller counts and reports it.
// The scheduling path is never blocked on persistence.
var ErrQueueSaturated = errors.New("stack writer queue saturated, frame dropped")

// ErrStackClosed is returned by Append after FlushAndClose for the mode.
var ErrStackClosed = errors.New("stack already closed")

// saturationLogEvery throttles saturation warnings to one per N drops.
const saturationLogEvery = 100

// Writer buffers frames per mode and persists them as ordered stack
// artifacts, one growing file per mode per run.
//
// Each mode gets a bounded queue and a dedicated writer goroutine,
// created lazily on the mode's first frame. The hand-off is
// single-producer/single-consumer per mode; disk latency blocks only the
// writer goroutine, never the producer. Within a mode, frames are
// written in the order they were appended.
type Writer struct {
	dir        string
	meta       *types.RunMeta
	queueDepth int
	logger     *log.Logger

	mu     sync.Mutex
	sinks  map[types.Mode]*modeSink
	closed bool
}

// NewWriter creates a stack writer rooted at dir. The directory is
// created if missing. queueDepth <= 0 selects types.DefaultQueueDepth.
func NewWriter(dir string, meta *types.RunMeta, queueDepth int, logger *log.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	if queueDepth <= 0 {
		queueDepth = types.DefaultQueueDepth
	}
	return &Writer{
		dir:        dir,
		meta:       meta,
		queueDepth: queueDepth,
		logger:     logger,
		sinks:      make(map[types.Mode]*modeSink),
	}, nil
}

// Append hands a routed frame to the mode's writer queue.
//
// Never blocks: when the queue is saturated the frame is dropped,
// ErrQueueSaturated is returned, and a throttled warning is logged with
// the cumulative drop count. The queue depth absorbs transient disk
// stalls; saturation means persistence has fallen behind for a sustained
// stretch.
func (w *Writer) Append(mode types.Mode, rec *types.FrameRecord) error {
	sink, err := w.sink(mode)
	if err != nil {
		return err
	}
	return sink.append(rec)
}

// FlushAndClose drains and finalizes one mode's stack. All queued frames
// are written in arrival order before the file is synced and closed.
// Idempotent: repeated calls return the first call's result and do not
// touch the artifact again. Closing a mode that never produced a frame
// is a no-op.
func (w *Writer) FlushAndClose(mode types.Mode) error {
	w.mu.Lock()
	sink := w.sinks[mode]
	w.mu.Unlock()
	if sink == nil {
		return nil
	}
	return sink.flushAndClose()
}

// CloseAll finalizes every open stack and returns their artifact
// descriptions, sorted by mode. Called on every termination path so
// aborted runs still leave readable artifacts.
func (w *Writer) CloseAll() ([]types.ArtifactInfo, error) {
	w.mu.Lock()
	w.closed = true
	sinks := make([]*modeSink, 0, len(w.sinks))
	for _, s := range w.sinks {
		sinks = append(sinks, s)
	}
	w.mu.Unlock()

	sort.Slice(sinks, func(i, j int) bool { return sinks[i].mode < sinks[j].mode })

	var firstErr error
	infos := make([]types.ArtifactInfo, 0, len(sinks))
	for _, s := range sinks {
		if err := s.flushAndClose(); err != nil && firstErr == nil {
			firstErr = err
		}
		info := types.ArtifactInfo{
			Mode:   s.mode,
			Path:   s.path,
			Frames: atomic.LoadInt64(&s.frames),
		}
		if st, err := os.Stat(s.path); err == nil {
			info.SizeBytes = st.Size()
		}
		infos = append(infos, info)
	}
	return infos, firstErr
}

// Dropped returns the cumulative frames dropped for a mode due to
// queue saturation.
func (w *Writer) Dropped(mode types.Mode) int64 {
	w.mu.Lock()
	sink := w.sinks[mode]
	w.mu.Unlock()
	if sink == nil {
		return 0
	}
	return atomic.LoadInt64(&sink.dropped)
}

// sink returns the mode's sink, creating it on first use.
func (w *Writer) sink(mode types.Mode) (*modeSink, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrStackClosed
	}
	if s, ok := w.sinks[mode]; ok {
		return s, nil
	}

	path := filepath.Join(w.dir, types.StackFileName(mode, w.meta))
	s, err := newModeSink(mode, path, w.meta, w.queueDepth, w.logger)
	if err != nil {
		return nil, err
	}
	w.sinks[mode] = s

	if w.logger != nil {
		w.logger.Info("stack opened", map[string]any{
			"mode": string(mode),
			"path": path,
		})
	}
	return s, nil
}

// modeSink is one mode's queue, writer goroutine, and output file.
type modeSink struct {
	mode   types.Mode
	path   string
	logger *log.Logger

	queue chan *types.FrameRecord
	done  chan struct{}

	mu     sync.Mutex
	closed bool

	closeOnce sync.Once
	closeErr  error

	frames  int64 // atomic
	dropped int64 // atomic

	file *os.File
	bw   *bufio.Writer

	writeMu  sync.Mutex
	writeErr error
}

func newModeSink(mode types.Mode, path string, meta *types.RunMeta, depth int, logger *log.Logger) (*modeSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create stack %s: %w", path, err)
	}

	s := &modeSink{
		mode:   mode,
		path:   path,
		logger: logger,
		queue:  make(chan *types.FrameRecord, depth),
		done:   make(chan struct{}),
		file:   f,
		bw:     bufio.NewWriter(f),
	}

	header := &types.StackHeader{
		Magic:         types.StackMagic,
		FormatVersion: types.StackFormatVersion,
		RunID:         meta.RunID,
		Mode:          mode,
		Device:        meta.Device,
		StartedAt:     meta.StartedAt.UTC().Format(time.RFC3339),
	}
	if err := writeRecord(s.bw, header); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write stack header: %w", err)
	}
	if err := s.bw.Flush(); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("flush stack header: %w", err)
	}

	go s.writeLoop()
	return s, nil
}

// append enqueues one frame without blocking.
func (s *modeSink) append(rec *types.FrameRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStackClosed
	}

	select {
	case s.queue <- rec:
		return nil
	default:
	}

	// Queue full: drop as last resort, warn with the running count.
	n := atomic.AddInt64(&s.dropped, 1)
	if s.logger != nil && (n == 1 || n%saturationLogEvery == 0) {
		s.logger.Warn("stack queue saturated, dropping frame", map[string]any{
			"mode":          string(s.mode),
			"dropped_total": n,
		})
	}
	return ErrQueueSaturated
}

// writeLoop is the sink's sole writer. Runs until the queue is closed
// and drained. Each record is flushed so a crash loses at most the
// record in flight.
func (s *modeSink) writeLoop() {
	defer close(s.done)
	for rec := range s.queue {
		s.writeMu.Lock()
		if s.writeErr != nil {
			s.writeMu.Unlock()
			continue
		}
		err := writeRecord(s.bw, rec)
		if err == nil {
			err = s.bw.Flush()
		}
		if err != nil {
			s.writeErr = err
			s.writeMu.Unlock()
			if s.logger != nil {
				s.logger.Error("stack write failed", map[string]any{
					"mode":  string(s.mode),
					"path":  s.path,
					"error": err.Error(),
				})
			}
			continue
		}
		s.writeMu.Unlock()
		atomic.AddInt64(&s.frames, 1)
	}
}

// flushAndClose stops intake, drains the queue, syncs, and closes the
// file. Safe to call multiple times.
func (s *modeSink) flushAndClose() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.queue)
		s.mu.Unlock()

		<-s.done

		s.writeMu.Lock()
		werr := s.writeErr
		s.writeMu.Unlock()

		if err := s.file.Sync(); err != nil && werr == nil {
			werr = fmt.Errorf("sync stack %s: %w", s.path, err)
		}
		if err := s.file.Close(); err != nil && werr == nil {
			werr = fmt.Errorf("close stack %s: %w", s.path, err)
		}
		s.closeErr = werr

		if s.logger != nil {
			s.logger.Info("stack finalized", map[string]any{
				"mode":   string(s.mode),
				"path":   s.path,
				"frames": atomic.LoadInt64(&s.frames),
			})
		}
	})
	return s.closeErr
}
