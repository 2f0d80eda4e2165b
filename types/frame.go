package types

import "time"

// FrameRecord is one acquired camera frame plus its routing metadata.
// Produced by the acquirer, stamped with a mode tag by the router, consumed
// once by the stack writer, then released.
//
// Pixels are shared by reference along the pipeline and must not be
// modified after the record leaves the acquirer.
//
// Fields carry msgpack tags: FrameRecord is also the on-disk record format
// for stack artifacts.
type FrameRecord struct {
	// Seq is the global tick sequence number that triggered this frame,
	// starting at 0. Assigned by the scheduler.
	Seq int64 `msgpack:"seq"`
	// Mode is the illumination mode active when the frame was triggered.
	// Stamped by the router; empty until routing.
	Mode Mode `msgpack:"mode"`
	// Timestamp is the acquisition timestamp reported by the acquirer.
	Timestamp time.Time `msgpack:"ts"`
	// Width and Height are the frame dimensions in pixels.
	Width  int `msgpack:"width"`
	Height int `msgpack:"height"`
	// BitsPerSample is the pixel depth (16 for EMCCD sensors).
	BitsPerSample int `msgpack:"bits"`
	// Pixels is the raw pixel buffer, row-major, native byte order.
	Pixels []byte `msgpack:"pixels"`
}

// SizeBytes returns the pixel payload size.
func (f *FrameRecord) SizeBytes() int64 {
	return int64(len(f.Pixels))
}
