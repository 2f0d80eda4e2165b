package stack

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/biolumen/lumacq/types"
)

func testMeta() *types.RunMeta {
	return &types.RunMeta{
		RunID:     "run-test",
		Device:    "IOIFAST",
		StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func frame(seq int64, mode types.Mode) *types.FrameRecord {
	return &types.FrameRecord{
		Seq:           seq,
		Mode:          mode,
		Timestamp:     time.Unix(seq, 0),
		Width:         4,
		Height:        4,
		BitsPerSample: 16,
		Pixels:        []byte{byte(seq), byte(seq), byte(seq), byte(seq)},
	}
}

func TestWriter_RoundTripPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, testMeta(), 8, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	for seq := int64(1); seq <= 20; seq++ {
		if err := w.Append(types.ModeBlue, frame(seq, types.ModeBlue)); err != nil {
			t.Fatalf("Append(%d): %v", seq, err)
		}
	}

	infos, err := w.CloseAll()
	if err != nil {
		t.Fatalf("CloseAll: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("got %d artifacts, want 1", len(infos))
	}
	if infos[0].Frames != 20 {
		t.Errorf("artifact frames = %d, want 20", infos[0].Frames)
	}

	r, err := Open(infos[0].Path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if r.Header().RunID != "run-test" || r.Header().Mode != types.ModeBlue {
		t.Errorf("header = %+v", r.Header())
	}

	var seqs []int64
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		seqs = append(seqs, rec.Seq)
		if rec.Mode != types.ModeBlue {
			t.Errorf("frame %d mode = %q, want blue", rec.Seq, rec.Mode)
		}
	}
	if len(seqs) != 20 {
		t.Fatalf("read %d frames, want 20", len(seqs))
	}
	for i, seq := range seqs {
		if seq != int64(i+1) {
			t.Errorf("position %d holds seq %d, want %d", i, seq, i+1)
		}
	}
	if r.Truncated() {
		t.Error("clean stack reported truncated")
	}
}

func TestWriter_OneArtifactPerMode(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, testMeta(), 8, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	// Interleave modes the way the scheduler does.
	for seq := int64(1); seq <= 10; seq++ {
		mode := types.ModeBlue
		if seq%2 == 0 {
			mode = types.ModeGreen
		}
		if err := w.Append(mode, frame(seq, mode)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	infos, err := w.CloseAll()
	if err != nil {
		t.Fatalf("CloseAll: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("got %d artifacts, want 2", len(infos))
	}

	for _, info := range infos {
		sum, err := Summarize(info.Path)
		if err != nil {
			t.Fatalf("Summarize(%s): %v", info.Path, err)
		}
		if sum.Frames != 5 {
			t.Errorf("%s: %d frames, want 5", info.Mode, sum.Frames)
		}
		if sum.Header.Mode != info.Mode {
			t.Errorf("%s: header mode %q", info.Mode, sum.Header.Mode)
		}

		// No frame from the other mode leaked in.
		r, err := Open(info.Path)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		for {
			rec, err := r.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Fatalf("Next: %v", err)
			}
			if rec.Mode != info.Mode {
				t.Errorf("stack %s contains frame for %s", info.Mode, rec.Mode)
			}
		}
		r.Close()
	}
}

func TestWriter_FlushAndCloseIdempotent(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, testMeta(), 8, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	if err := w.Append(types.ModeGreen, frame(1, types.ModeGreen)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if err := w.FlushAndClose(types.ModeGreen); err != nil {
		t.Fatalf("first FlushAndClose: %v", err)
	}
	if err := w.FlushAndClose(types.ModeGreen); err != nil {
		t.Fatalf("second FlushAndClose: %v", err)
	}

	path := filepath.Join(dir, types.StackFileName(types.ModeGreen, testMeta()))
	sum, err := Summarize(path)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.Frames != 1 {
		t.Errorf("double close duplicated or lost frames: %d, want 1", sum.Frames)
	}

	// A closed mode rejects further appends.
	if err := w.Append(types.ModeGreen, frame(2, types.ModeGreen)); err != ErrStackClosed {
		t.Errorf("append after close = %v, want ErrStackClosed", err)
	}
}

func TestWriter_CloseNeverOpenedModeIsNoop(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, testMeta(), 8, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	if err := w.FlushAndClose(types.ModeBioluminescence); err != nil {
		t.Fatalf("FlushAndClose on untouched mode: %v", err)
	}

	// Lazy creation: no artifact for a mode that produced no frame.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("found %d files, want none", len(entries))
	}
}

func TestWriter_SaturationDropsAndCounts(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, testMeta(), 1, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	// Flood a depth-1 queue faster than the disk goroutine can drain.
	var saturated int64
	for seq := int64(1); seq <= 200; seq++ {
		if err := w.Append(types.ModeBlue, frame(seq, types.ModeBlue)); err == ErrQueueSaturated {
			saturated++
		} else if err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	infos, err := w.CloseAll()
	if err != nil {
		t.Fatalf("CloseAll: %v", err)
	}

	dropped := w.Dropped(types.ModeBlue)
	if dropped != saturated {
		t.Errorf("Dropped = %d, want %d reported saturations", dropped, saturated)
	}
	if infos[0].Frames+dropped != 200 {
		t.Errorf("frames %d + dropped %d != 200 appends", infos[0].Frames, dropped)
	}
}

func TestReader_ToleratesTruncatedTail(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, testMeta(), 8, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for seq := int64(1); seq <= 3; seq++ {
		if err := w.Append(types.ModeBlue, frame(seq, types.ModeBlue)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if _, err := w.CloseAll(); err != nil {
		t.Fatalf("CloseAll: %v", err)
	}

	// Simulate a run cut mid-write: a length prefix promising more
	// bytes than follow.
	path := filepath.Join(dir, types.StackFileName(types.ModeBlue, testMeta()))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], 1000)
	f.Write(prefix[:])
	f.Write([]byte("partial"))
	f.Close()

	sum, err := Summarize(path)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.Frames != 3 {
		t.Errorf("read %d frames from truncated stack, want 3", sum.Frames)
	}
	if !sum.Truncated {
		t.Error("truncation not reported")
	}
}

func TestSummarize_FirstSeqZero(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, testMeta(), 8, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	// A two-mode rotation serves one mode on tick 0, so its stack
	// legitimately starts with seq 0.
	for _, seq := range []int64{0, 2, 4} {
		if err := w.Append(types.ModeBlue, frame(seq, types.ModeBlue)); err != nil {
			t.Fatalf("Append(%d): %v", seq, err)
		}
	}
	infos, err := w.CloseAll()
	if err != nil {
		t.Fatalf("CloseAll: %v", err)
	}

	sum, err := Summarize(infos[0].Path)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.FirstSeq != 0 {
		t.Errorf("FirstSeq = %d, want 0", sum.FirstSeq)
	}
	if sum.LastSeq != 4 {
		t.Errorf("LastSeq = %d, want 4", sum.LastSeq)
	}
	if sum.Frames != 3 {
		t.Errorf("Frames = %d, want 3", sum.Frames)
	}
}

func TestOpen_RejectsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "not_a_stack.stack")
	if err := os.WriteFile(path, []byte("random bytes that are not a stack"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Open(path); err == nil {
		t.Error("expected error opening a non-stack file")
	}
}
