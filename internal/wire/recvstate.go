package wire

import (
	"bytes"
	"encoding/binary"
	"io"

	ferrors "github.com/Ap3pp3rs94/msgfabric/pkg/errors"
)

// readState names a position in the receive state machine, mirroring
// the original's read_start_code/read_packet_code/read_length_code/
// read_data/read_end_code call chain one-for-one.
type readState int

const (
	stateReadStart readState = iota
	stateReadMode
	stateReadLength
	stateReadBody
	stateReadEnd
)

// Receiver drives one connection's frame state machine. It is not
// safe for concurrent use; a session runs one Receiver per inbound
// connection on a dedicated goroutine, matching the original's one
// data_handling instance per socket.
type Receiver struct {
	r             io.Reader
	sentinels     Sentinels
	maxFrameBytes uint32
	staging       []byte

	// Resyncs counts how many times a sentinel mismatch forced the
	// state machine back to stateReadStart without a frame ever being
	// produced.
	Resyncs uint64
}

// NewReceiver builds a Receiver reading frames from r, rejecting any
// declared length above maxFrameBytes (spec.md §5: "frames over this
// are treated as a frame error rather than read").
func NewReceiver(r io.Reader, s Sentinels, maxFrameBytes uint32) *Receiver {
	return &Receiver{
		r:             r,
		sentinels:     s,
		maxFrameBytes: maxFrameBytes,
		staging:       make([]byte, StagingBufferSize),
	}
}

// ReadFrame runs the state machine start-to-end and returns one
// decoded frame. A sentinel mismatch does not return an error to the
// caller: per spec.md §5 ("resync-on-mismatch, not byte-at-a-time")
// the receiver silently restarts from stateReadStart and keeps
// reading until either a well-formed frame arrives or the underlying
// reader itself fails, at which point that I/O error is returned. A
// declared length above maxFrameBytes is returned as a frame.too_large
// error without reading the body.
func (rc *Receiver) ReadFrame() (Frame, error) {
	for {
		if err := rc.readExactSentinel(rc.sentinels.startTag()); err != nil {
			if err == errResync {
				rc.Resyncs++
				continue
			}
			return Frame{}, err
		}

		modeByte := make([]byte, 1)
		if _, err := io.ReadFull(rc.r, modeByte); err != nil {
			return Frame{}, ferrors.Wrap(ferrors.TransportReadFailed, "read mode byte", err)
		}
		mode := Mode(modeByte[0])

		lenBuf := make([]byte, 4)
		if _, err := io.ReadFull(rc.r, lenBuf); err != nil {
			return Frame{}, ferrors.Wrap(ferrors.TransportReadFailed, "read length field", err)
		}
		declared := binary.LittleEndian.Uint32(lenBuf)
		if declared > rc.maxFrameBytes {
			return Frame{}, ferrors.New(ferrors.FrameTooLarge, "declared frame length exceeds configured maximum")
		}

		body, err := rc.readBody(declared)
		if err != nil {
			return Frame{}, err
		}

		if err := rc.readExactSentinel(rc.sentinels.endTag()); err != nil {
			if err == errResync {
				rc.Resyncs++
				continue
			}
			return Frame{}, err
		}

		return Frame{Mode: mode, Payload: body}, nil
	}
}

var errResync = ferrors.New(ferrors.FrameStartMismatch, "sentinel mismatch")

// readExactSentinel reads len(want) bytes and compares them against
// want. A short read is an I/O error; a full read that doesn't match
// is errResync, exactly as read_start_code/read_end_code treat a
// tag mismatch as "go back to read_start_code", not a fatal failure.
func (rc *Receiver) readExactSentinel(want []byte) error {
	buf := rc.staging[:len(want)]
	n, err := io.ReadFull(rc.r, buf)
	if err != nil {
		return ferrors.Wrap(ferrors.TransportReadFailed, "read sentinel", err)
	}
	if n != len(want) {
		return ferrors.New(ferrors.FrameShortRead, "short sentinel read")
	}
	if !bytes.Equal(buf, want) {
		return errResync
	}
	return nil
}

// readBody streams declared bytes through the fixed staging buffer in
// StagingBufferSize chunks, the same bound the original applies via
// its fixed-size _receiving_buffer in read_data.
func (rc *Receiver) readBody(declared uint32) ([]byte, error) {
	out := make([]byte, 0, declared)
	remaining := int(declared)
	for remaining > 0 {
		chunk := remaining
		if chunk > len(rc.staging) {
			chunk = len(rc.staging)
		}
		n, err := io.ReadFull(rc.r, rc.staging[:chunk])
		if err != nil {
			return nil, ferrors.Wrap(ferrors.TransportReadFailed, "read frame body", err)
		}
		out = append(out, rc.staging[:n]...)
		remaining -= n
	}
	return out, nil
}
