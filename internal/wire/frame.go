// Package wire implements the length-prefixed TCP frame protocol
// containers travel in (spec.md §5): a start sentinel, a one-byte
// mode, a little-endian length, the payload, and an end sentinel.
//
// Grounded on original_source/cpp_libraries/network/data_handling.cpp.
// The original drives this as a chain of asio::async_read callbacks
// (read_start_code -> read_packet_code -> read_length_code ->
// read_data -> read_end_code -> back to read_start_code). Go expresses
// the same state machine as a blocking sequence of reads inside a
// per-connection goroutine — net.Conn.Read blocks the calling
// goroutine rather than firing a completion callback, so the chain
// collapses into ordinary sequential code without losing the original
// structure (see recvstate.go for the state machine itself, kept
// explicit so the resync behavior stays easy to test in isolation).
package wire

import (
	"encoding/binary"
	"io"

	ferrors "github.com/Ap3pp3rs94/msgfabric/pkg/errors"
)

// Mode is the one-byte frame mode, read as _receiving_buffer[0] in the
// original's read_packet_code. spec.md §4.3 enumerates "packet, file,
// binary, and their compressed/encrypted variants as appropriate,
// treated opaquely by the codec" — the low two bits pick the payload
// kind, the next two are independent compressed/encrypted flags a
// session sets per its handshake-negotiated transform state.
type Mode byte

const (
	kindPacket byte = 0
	kindFile   byte = 1
	kindBinary byte = 2

	flagCompressed byte = 1 << 2
	flagEncrypted  byte = 1 << 3

	kindMask = 0x03
)

// Base kinds, transform flags unset. A session composes the actual
// wire mode with WithCompressed/WithEncrypted before sending.
const (
	ModePacket Mode = Mode(kindPacket)
	ModeFile   Mode = Mode(kindFile)
	ModeBinary Mode = Mode(kindBinary)
)

// Kind returns the base payload kind, masking off the transform flags.
func (m Mode) Kind() Mode { return Mode(byte(m) & kindMask) }

func (m Mode) Compressed() bool { return byte(m)&flagCompressed != 0 }
func (m Mode) Encrypted() bool  { return byte(m)&flagEncrypted != 0 }

// WithCompressed/WithEncrypted set or clear the corresponding
// transform flag without disturbing the base kind or the other flag.
func (m Mode) WithCompressed(on bool) Mode {
	if on {
		return m | Mode(flagCompressed)
	}
	return m &^ Mode(flagCompressed)
}

func (m Mode) WithEncrypted(on bool) Mode {
	if on {
		return m | Mode(flagEncrypted)
	}
	return m &^ Mode(flagEncrypted)
}

func (m Mode) String() string {
	kind := "packet"
	switch m.Kind() {
	case ModeFile:
		kind = "file"
	case ModeBinary:
		kind = "binary"
	}
	if m.Compressed() {
		kind += "+compressed"
	}
	if m.Encrypted() {
		kind += "+encrypted"
	}
	return kind
}

// StagingBufferSize bounds a single body read chunk, mirroring the
// original's fixed _receiving_buffer used to stream a declared-length
// body without allocating the whole thing in one read call.
const StagingBufferSize = 8192

// SentinelLen is the sentinel tag width; the original repeats a
// single configured byte across a 4-byte tag (start_code/end_code).
const SentinelLen = 4

// Frame is a fully decoded wire frame: mode plus payload. Sentinels
// are protocol furniture, not part of the frame's logical content.
type Frame struct {
	Mode    Mode
	Payload []byte
}

// Sentinels holds the two repeated-byte tags the transport checks on
// every frame boundary (spec.md §5: "START_CODE(4B)+...+END_CODE(4B)").
type Sentinels struct {
	Start byte
	End   byte
}

func (s Sentinels) startTag() []byte { return repeatByte(s.Start, SentinelLen) }
func (s Sentinels) endTag() []byte   { return repeatByte(s.End, SentinelLen) }

func repeatByte(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

// Encode renders a frame exactly as send_on_tcp assembles it: start
// tag, mode byte, little-endian uint32 length, payload, end tag.
func Encode(s Sentinels, mode Mode, payload []byte) []byte {
	out := make([]byte, 0, SentinelLen+1+4+len(payload)+SentinelLen)
	out = append(out, s.startTag()...)
	out = append(out, byte(mode))
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(payload)))
	out = append(out, lenBuf...)
	out = append(out, payload...)
	out = append(out, s.endTag()...)
	return out
}

// WriteFrame writes an encoded frame to w. send_on_tcp checks each
// individual send() for a short write; io.Writer's contract already
// guarantees Write either consumes the full buffer or returns an
// error, so a single Write call captures the same invariant the
// original enforces across four separate sends.
func WriteFrame(w io.Writer, s Sentinels, mode Mode, payload []byte) error {
	if len(payload) == 0 {
		return ferrors.New(ferrors.TransportWriteFailed, "refusing to send an empty frame")
	}
	buf := Encode(s, mode, payload)
	n, err := w.Write(buf)
	if err != nil {
		return ferrors.Wrap(ferrors.TransportWriteFailed, "frame write failed", err)
	}
	if n != len(buf) {
		return ferrors.New(ferrors.TransportShortSend, "short write on frame")
	}
	return nil
}
