package route

import (
	"context"
	"testing"
	"time"

	"github.com/biolumen/lumacq/device"
	"github.com/biolumen/lumacq/health"
	"github.com/biolumen/lumacq/stack"
	"github.com/biolumen/lumacq/types"
)

// capturePersister records appended frames in order.
type capturePersister struct {
	appends []appendCall
	err     error
}

type appendCall struct {
	mode types.Mode
	rec  *types.FrameRecord
}

func (p *capturePersister) Append(mode types.Mode, rec *types.FrameRecord) error {
	if p.err != nil {
		return p.err
	}
	p.appends = append(p.appends, appendCall{mode: mode, rec: rec})
	return nil
}

// captureDisplay records displayed frames.
type captureDisplay struct {
	frames []*types.FrameRecord
}

func (d *captureDisplay) Display(rec *types.FrameRecord) {
	d.frames = append(d.frames, rec)
}

func TestRouter_StampsAndForwards(t *testing.T) {
	acq := &device.SimAcquirer{}
	persister := &capturePersister{}
	display := &captureDisplay{}
	monitor := health.NewMonitor(types.ModeSet{types.ModeBlue}, health.Config{TargetInterval: time.Second})
	router := NewRouter(acq, persister, display, monitor, nil)

	result, err := router.Route(t.Context(), 7, types.ModeBlue, time.Second)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if result != ResultRouted {
		t.Fatalf("result = %v, want routed", result)
	}

	if len(persister.appends) != 1 {
		t.Fatalf("persisted %d frames, want 1", len(persister.appends))
	}
	rec := persister.appends[0].rec
	if rec.Seq != 7 || rec.Mode != types.ModeBlue {
		t.Errorf("stamp = seq %d mode %q, want seq 7 mode blue", rec.Seq, rec.Mode)
	}
	if rec.Timestamp.IsZero() {
		t.Error("timestamp not assigned")
	}

	if len(display.frames) != 1 || display.frames[0] != rec {
		t.Error("display sink did not receive the routed frame")
	}
	if monitor.Snapshot()[types.ModeBlue].FramesRouted != 1 {
		t.Error("routed frame not recorded in health")
	}
}

func TestRouter_TimeoutIsNotFatal(t *testing.T) {
	acq := &device.SimAcquirer{TimeoutOn: map[int]bool{1: true}}
	persister := &capturePersister{}
	monitor := health.NewMonitor(types.ModeSet{types.ModeGreen}, health.Config{TargetInterval: time.Second})
	router := NewRouter(acq, persister, nil, monitor, nil)

	result, err := router.Route(t.Context(), 1, types.ModeGreen, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("timeout surfaced as error: %v", err)
	}
	if result != ResultTimeout {
		t.Fatalf("result = %v, want timeout", result)
	}
	if len(persister.appends) != 0 {
		t.Error("timeout tick emitted a frame downstream")
	}
	if monitor.Snapshot()[types.ModeGreen].Timeouts != 1 {
		t.Error("timeout not recorded against the mode")
	}

	// The next tick delivers and routes normally.
	result, err = router.Route(t.Context(), 2, types.ModeGreen, 10*time.Millisecond)
	if err != nil || result != ResultRouted {
		t.Fatalf("recovery tick: result %v, err %v", result, err)
	}
}

func TestRouter_DeviceFaultIsFatal(t *testing.T) {
	acq := &device.SimAcquirer{FaultOn: 1}
	router := NewRouter(acq, &capturePersister{}, nil, nil, nil)

	_, err := router.Route(t.Context(), 1, types.ModeBlue, time.Second)
	if !device.IsDeviceFault(err) {
		t.Fatalf("fault not surfaced: %v", err)
	}
}

func TestRouter_SaturationCountsDrop(t *testing.T) {
	acq := &device.SimAcquirer{}
	persister := &capturePersister{err: stack.ErrQueueSaturated}
	monitor := health.NewMonitor(types.ModeSet{types.ModeBlue}, health.Config{TargetInterval: time.Second})
	router := NewRouter(acq, persister, nil, monitor, nil)

	result, err := router.Route(t.Context(), 1, types.ModeBlue, time.Second)
	if err != nil {
		t.Fatalf("saturation surfaced as fatal: %v", err)
	}
	if result != ResultDropped {
		t.Fatalf("result = %v, want dropped", result)
	}
	snap := monitor.Snapshot()[types.ModeBlue]
	if snap.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", snap.Dropped)
	}
	if snap.FramesRouted != 0 {
		t.Errorf("dropped frame counted as routed")
	}
}

func TestRouter_NilPersisterSkipsPersistence(t *testing.T) {
	acq := &device.SimAcquirer{}
	display := &captureDisplay{}
	router := NewRouter(acq, nil, display, nil, nil)

	result, err := router.Route(t.Context(), 1, types.ModeGreen, time.Second)
	if err != nil || result != ResultRouted {
		t.Fatalf("result %v, err %v", result, err)
	}
	if len(display.frames) != 1 {
		t.Error("display skipped when saving disabled")
	}
}

func TestRouter_CanceledContext(t *testing.T) {
	acq := &device.SimAcquirer{Delay: 50 * time.Millisecond}
	router := NewRouter(acq, nil, nil, nil, nil)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	if _, err := router.Route(ctx, 1, types.ModeBlue, time.Second); err == nil {
		t.Fatal("expected error after cancellation")
	}
}
