package stack

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/biolumen/lumacq/types"
)

// Reader iterates the frame records of one stack artifact.
//
// A truncated trailing record (run aborted mid-write) ends iteration
// cleanly; Truncated reports whether that happened.
type Reader struct {
	f         *os.File
	dec       *recordDecoder
	header    types.StackHeader
	truncated bool
}

// Open opens a stack artifact and reads its header.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stack: %w", err)
	}

	dec := &recordDecoder{reader: f}
	payload, err := dec.readRecord()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read stack header: %w", err)
	}

	var header types.StackHeader
	if err := msgpack.Unmarshal(payload, &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("decode stack header: %w", err)
	}
	if header.Magic != types.StackMagic {
		f.Close()
		return nil, fmt.Errorf("not a stack artifact: bad magic %q", header.Magic)
	}
	if header.FormatVersion > types.StackFormatVersion {
		f.Close()
		return nil, fmt.Errorf("stack format version %d newer than supported %d",
			header.FormatVersion, types.StackFormatVersion)
	}

	return &Reader{f: f, dec: dec, header: header}, nil
}

// Header returns the artifact's run binding.
func (r *Reader) Header() types.StackHeader {
	return r.header
}

// Next returns the next frame record, or io.EOF at the end of the stack.
// A truncated tail also ends with io.EOF; check Truncated afterwards.
func (r *Reader) Next() (*types.FrameRecord, error) {
	payload, err := r.dec.readRecord()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		if errors.Is(err, errTruncated) {
			r.truncated = true
			return nil, io.EOF
		}
		return nil, err
	}

	var rec types.FrameRecord
	if err := msgpack.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("decode frame record: %w", err)
	}
	return &rec, nil
}

// Truncated reports whether iteration ended at an incomplete record.
func (r *Reader) Truncated() bool {
	return r.truncated
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}

// Summary describes a stack artifact without loading pixel data into
// long-lived memory.
type Summary struct {
	Header    types.StackHeader
	Frames    int64
	SizeBytes int64
	Truncated bool
	// FirstSeq and LastSeq bound the tick sequence numbers present.
	// Zero when the stack holds no frames.
	FirstSeq int64
	LastSeq  int64
}

// Summarize scans a stack artifact and returns its summary.
func Summarize(path string) (*Summary, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	sum := &Summary{Header: r.Header()}
	seen := false
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		sum.Frames++
		if !seen {
			sum.FirstSeq = rec.Seq
			seen = true
		}
		sum.LastSeq = rec.Seq
	}
	sum.Truncated = r.Truncated()

	if st, err := os.Stat(path); err == nil {
		sum.SizeBytes = st.Size()
	}
	return sum, nil
}
