// Package stack persists per-mode frame sequences as ordered stack
// artifacts and reads them back.
//
// A stack artifact is a header record followed by frame records, each a
// 4-byte big-endian length prefix plus a msgpack payload. Appending
// whole records at a time keeps a partial file from an aborted run
// openable up to the last completed frame.
package stack

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Record size limits.
const (
	// MaxRecordSize is the maximum record size including the length
	// prefix. Bounds a full-frame EMCCD readout with headroom.
	MaxRecordSize = 64 * 1024 * 1024
	// MaxPayloadSize is the maximum payload size.
	MaxPayloadSize = MaxRecordSize - lengthPrefixSize

	lengthPrefixSize = 4
)

// errTruncated marks an incomplete trailing record. The reader treats it
// as end-of-stack, not corruption: the run was cut mid-write.
var errTruncated = errors.New("truncated trailing record")

// writeRecord encodes v as msgpack and writes it length-prefixed.
func writeRecord(w io.Writer, v any) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("record size %d exceeds maximum %d", len(payload), MaxPayloadSize)
	}

	var prefix [lengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return fmt.Errorf("write length prefix: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return nil
}

// recordDecoder reads length-prefixed records from a stream.
type recordDecoder struct {
	reader io.Reader
}

// readRecord reads one record payload.
//
// Errors:
//   - io.EOF: clean end of stack (no more records)
//   - errTruncated: stream ended inside a record (aborted run)
//   - other: oversized record or read failure
func (d *recordDecoder) readRecord() ([]byte, error) {
	var prefix [lengthPrefixSize]byte
	if _, err := io.ReadFull(d.reader, prefix[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errTruncated
	}

	size := binary.BigEndian.Uint32(prefix[:])
	if size > MaxPayloadSize {
		return nil, fmt.Errorf("record payload size %d exceeds maximum %d", size, MaxPayloadSize)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(d.reader, payload); err != nil {
		return nil, errTruncated
	}
	return payload, nil
}
