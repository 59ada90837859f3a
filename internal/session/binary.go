package session

import (
	"context"
	"encoding/binary"

	"github.com/Ap3pp3rs94/msgfabric/internal/container"
	"github.com/Ap3pp3rs94/msgfabric/internal/wire"
	ferrors "github.com/Ap3pp3rs94/msgfabric/pkg/errors"
)

// Binary packet bodies (file and binary wire modes) skip the text
// container format entirely and use a flat sequence of length-
// prefixed byte runs (spec.md §6.2): routing fields first, then one
// or more payload runs — a file carries its path followed by its
// content, a bulk binary send carries a single content run.
func appendRun(buf []byte, data []byte) []byte {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(data)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, data...)
	return buf
}

func readRun(buf []byte) (run []byte, rest []byte, err error) {
	if len(buf) < 8 {
		return nil, nil, ferrors.New(ferrors.ParseMalformed, "binary body truncated before length prefix")
	}
	n := binary.LittleEndian.Uint64(buf[:8])
	buf = buf[8:]
	if uint64(len(buf)) < n {
		return nil, nil, ferrors.New(ferrors.ParseMalformed, "binary body truncated before declared run length")
	}
	return buf[:n], buf[n:], nil
}

func encodeRouting(sourceID, sourceSubID, targetID, targetSubID string) []byte {
	var buf []byte
	buf = appendRun(buf, []byte(sourceID))
	buf = appendRun(buf, []byte(sourceSubID))
	buf = appendRun(buf, []byte(targetID))
	buf = appendRun(buf, []byte(targetSubID))
	return buf
}

func decodeRouting(buf []byte) (sourceID, sourceSubID, targetID, targetSubID string, rest []byte, err error) {
	var run []byte
	if run, buf, err = readRun(buf); err != nil {
		return
	}
	sourceID = string(run)
	if run, buf, err = readRun(buf); err != nil {
		return
	}
	sourceSubID = string(run)
	if run, buf, err = readRun(buf); err != nil {
		return
	}
	targetID = string(run)
	if run, buf, err = readRun(buf); err != nil {
		return
	}
	targetSubID = string(run)
	rest = buf
	return
}

// encodeFileBody builds a file-mode wire body: routing fields, then a
// path run, then a content run.
func encodeFileBody(sourceID, sourceSubID, targetID, targetSubID, path string, content []byte) []byte {
	buf := encodeRouting(sourceID, sourceSubID, targetID, targetSubID)
	buf = appendRun(buf, []byte(path))
	buf = appendRun(buf, content)
	return buf
}

// encodeBinaryBody builds a binary-mode wire body: routing fields,
// then a single content run.
func encodeBinaryBody(sourceID, sourceSubID, targetID, targetSubID string, data []byte) []byte {
	buf := encodeRouting(sourceID, sourceSubID, targetID, targetSubID)
	buf = appendRun(buf, data)
	return buf
}

func (s *Session) dispatchFile(payload []byte) {
	sourceID, sourceSubID, targetID, targetSubID, rest, err := decodeRouting(payload)
	if err != nil {
		s.log.Error(context.Background(), "file_decode_failed", map[string]any{"error": err.Error()})
		return
	}
	if !s.confirmed.Load() {
		return
	}
	path, rest, err := readRun(rest)
	if err != nil {
		s.log.Error(context.Background(), "file_decode_failed", map[string]any{"error": err.Error()})
		return
	}
	content, _, err := readRun(rest)
	if err != nil {
		s.log.Error(context.Background(), "file_decode_failed", map[string]any{"error": err.Error()})
		return
	}
	if s.callbacks.OnFile != nil {
		s.callbacks.OnFile(sourceID, sourceSubID, targetID, targetSubID, string(path), content)
	}
}

func (s *Session) dispatchBinary(payload []byte) {
	sourceID, sourceSubID, targetID, targetSubID, rest, err := decodeRouting(payload)
	if err != nil {
		s.log.Error(context.Background(), "binary_decode_failed", map[string]any{"error": err.Error()})
		return
	}
	if !s.confirmed.Load() {
		return
	}
	content, _, err := readRun(rest)
	if err != nil {
		s.log.Error(context.Background(), "binary_decode_failed", map[string]any{"error": err.Error()})
		return
	}
	if s.callbacks.OnBinary != nil {
		s.callbacks.OnBinary(sourceID, sourceSubID, targetID, targetSubID, content)
	}
}

// SendFile frames and queues a file transfer (wire.ModeFile, normal
// priority per the mode-to-priority mapping).
func (s *Session) SendFile(targetID, targetSubID, path string, content []byte) error {
	body := encodeFileBody(s.profile.SourceID, s.profile.SourceSubID, targetID, targetSubID, path, content)
	return s.enqueueSend(wire.ModeFile, body)
}

// SendBinary frames and queues a bulk binary send (wire.ModeBinary,
// low priority per the mode-to-priority mapping).
func (s *Session) SendBinary(targetID, targetSubID string, data []byte) error {
	body := encodeBinaryBody(s.profile.SourceID, s.profile.SourceSubID, targetID, targetSubID, data)
	return s.enqueueSend(wire.ModeBinary, body)
}

// newEchoContainer builds the heartbeat container the echo loop sends.
func newEchoContainer() *container.Container {
	return container.New(echoMessageType)
}
