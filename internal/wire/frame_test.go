package wire

import (
	"bytes"
	"testing"
)

var testSentinels = Sentinels{Start: 0xCB, End: 0xCE}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := []byte("hello frame")
	encoded := Encode(testSentinels, ModePacket, payload)

	r := NewReceiver(bytes.NewReader(encoded), testSentinels, 1<<20)
	frame, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if frame.Mode != ModePacket {
		t.Fatalf("mode: got %v want %v", frame.Mode, ModePacket)
	}
	if !bytes.Equal(frame.Payload, payload) {
		t.Fatalf("payload: got %q want %q", frame.Payload, payload)
	}
	if r.Resyncs != 0 {
		t.Fatalf("unexpected resyncs: %d", r.Resyncs)
	}
}

func TestReadFrameResyncsOnGarbagePrefix(t *testing.T) {
	payload := []byte("after garbage")
	good := Encode(testSentinels, ModeBinary, payload)
	// Resync consumes whole sentinel-width reads (no byte-at-a-time
	// scan), so the garbage spans exactly two sentinel widths.
	stream := append([]byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}, good...)

	r := NewReceiver(bytes.NewReader(stream), testSentinels, 1<<20)
	frame, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(frame.Payload, payload) {
		t.Fatalf("payload: got %q want %q", frame.Payload, payload)
	}
	if r.Resyncs == 0 {
		t.Fatalf("expected at least one resync past the garbage prefix")
	}
}

func TestReadFrameRejectsOversizeLength(t *testing.T) {
	encoded := Encode(testSentinels, ModePacket, make([]byte, 1024))

	r := NewReceiver(bytes.NewReader(encoded), testSentinels, 100)
	if _, err := r.ReadFrame(); err == nil {
		t.Fatalf("expected frame-too-large error")
	}
}

func TestReadFrameChunksBodyThroughStagingBuffer(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), StagingBufferSize*3+17)
	encoded := Encode(testSentinels, ModeFile, payload)

	r := NewReceiver(bytes.NewReader(encoded), testSentinels, uint32(len(payload))+1)
	frame, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(frame.Payload, payload) {
		t.Fatalf("payload mismatch after multi-chunk read, got %d bytes want %d", len(frame.Payload), len(payload))
	}
}

func TestWriteFrameRejectsEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, testSentinels, ModePacket, nil); err == nil {
		t.Fatalf("expected error for empty payload")
	}
}

func TestModeFlagsComposeIndependentlyOfKind(t *testing.T) {
	m := ModeFile.WithCompressed(true).WithEncrypted(true)
	if m.Kind() != ModeFile {
		t.Fatalf("expected kind to survive flag composition, got %v", m.Kind())
	}
	if !m.Compressed() || !m.Encrypted() {
		t.Fatalf("expected both flags set, got compressed=%v encrypted=%v", m.Compressed(), m.Encrypted())
	}
	m = m.WithCompressed(false)
	if m.Compressed() {
		t.Fatalf("expected compressed flag cleared")
	}
	if !m.Encrypted() {
		t.Fatalf("expected encrypted flag to remain set after clearing compressed")
	}
}
