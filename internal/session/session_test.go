package session

import (
	"net"
	"testing"

	"github.com/Ap3pp3rs94/msgfabric/internal/container"
	"github.com/Ap3pp3rs94/msgfabric/internal/jobqueue"
	"github.com/Ap3pp3rs94/msgfabric/internal/wire"
	"github.com/Ap3pp3rs94/msgfabric/pkg/config"
	"github.com/Ap3pp3rs94/msgfabric/pkg/telemetry"
)

func newTestSession(t *testing.T, conn net.Conn, key string, cb Callbacks) *Session {
	t.Helper()
	profile := config.Default()
	profile.ConnectionKey = key
	profile.SourceID = "node"
	s, err := New(conn, profile, cb, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestAppendReadRunRoundTrip(t *testing.T) {
	var buf []byte
	buf = appendRun(buf, []byte("hello"))
	buf = appendRun(buf, []byte{})
	buf = appendRun(buf, []byte("world"))

	run, rest, err := readRun(buf)
	if err != nil || string(run) != "hello" {
		t.Fatalf("first run: %q err=%v", run, err)
	}
	run, rest, err = readRun(rest)
	if err != nil || len(run) != 0 {
		t.Fatalf("second run: %q err=%v", run, err)
	}
	run, rest, err = readRun(rest)
	if err != nil || string(run) != "world" {
		t.Fatalf("third run: %q err=%v", run, err)
	}
	if len(rest) != 0 {
		t.Fatalf("expected no trailing bytes, got %d", len(rest))
	}
}

func TestReadRunRejectsTruncatedBuffer(t *testing.T) {
	if _, _, err := readRun([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error for short length prefix")
	}
	buf := appendRun(nil, []byte("abcdef"))
	if _, _, err := readRun(buf[:len(buf)-2]); err == nil {
		t.Fatalf("expected error for truncated run body")
	}
}

func TestEncodeDecodeRoutingRoundTrip(t *testing.T) {
	buf := encodeRouting("src", "srcSub", "tgt", "tgtSub")
	sourceID, sourceSubID, targetID, targetSubID, rest, err := decodeRouting(buf)
	if err != nil {
		t.Fatalf("decodeRouting: %v", err)
	}
	if sourceID != "src" || sourceSubID != "srcSub" || targetID != "tgt" || targetSubID != "tgtSub" {
		t.Fatalf("routing mismatch: %q %q %q %q", sourceID, sourceSubID, targetID, targetSubID)
	}
	if len(rest) != 0 {
		t.Fatalf("expected no trailing bytes after routing fields, got %d", len(rest))
	}
}

func TestDispatchFileDeliversPathAndContent(t *testing.T) {
	var gotPath string
	var gotContent []byte
	s := &Session{log: telemetry.Nop}
	s.confirmed.Store(true)
	s.callbacks = Callbacks{OnFile: func(sourceID, sourceSubID, targetID, targetSubID, path string, content []byte) {
		gotPath = path
		gotContent = content
	}}

	body := encodeFileBody("s1", "", "t1", "", "report.bin", []byte("payload"))
	s.dispatchFile(body)

	if gotPath != "report.bin" || string(gotContent) != "payload" {
		t.Fatalf("got path=%q content=%q", gotPath, gotContent)
	}
}

func TestDispatchBinaryDroppedBeforeConfirmation(t *testing.T) {
	called := false
	s := &Session{log: telemetry.Nop}
	s.callbacks = Callbacks{OnBinary: func(string, string, string, string, []byte) { called = true }}

	body := encodeBinaryBody("s1", "", "t1", "", []byte("data"))
	s.dispatchBinary(body)

	if called {
		t.Fatalf("expected binary dispatch to be dropped before confirmation")
	}
}

func TestModePriorityMapping(t *testing.T) {
	s := &Session{}
	cases := []struct {
		mode wire.Mode
		want jobqueue.Priority
	}{
		{wire.ModePacket, jobqueue.PriorityHigh},
		{wire.ModeFile, jobqueue.PriorityNormal},
		{wire.ModeBinary, jobqueue.PriorityLow},
		{wire.ModeFile.WithCompressed(true), jobqueue.PriorityNormal},
		{wire.ModeBinary.WithEncrypted(true), jobqueue.PriorityLow},
	}
	for _, tc := range cases {
		if got := s.modePriority(tc.mode); got != tc.want {
			t.Fatalf("modePriority(%v) = %v, want %v", tc.mode, got, tc.want)
		}
	}
}

func TestBuildHandshakeRoundTrip(t *testing.T) {
	s := &Session{log: telemetry.Nop}
	s.profile.SourceID = "node-a"
	s.profile.SourceSubID = "1"
	s.profile.ConnectionKey = "shared-secret"
	s.profile.BridgeLine = true
	s.profile.SnippingTargets = []string{"audit", "replay"}
	s.compressOn.Store(true)

	c := s.buildHandshake()
	text := c.Serialize(false)

	parsed, err := container.Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.MessageType() != handshakeMessageType {
		t.Fatalf("message type: got %q", parsed.MessageType())
	}
	if parsed.Get("connection_key", 0).AsString() != "shared-secret" {
		t.Fatalf("connection_key round trip failed: %q", parsed.Get("connection_key", 0).AsString())
	}
	if !parsed.Get("compress_mode", 0).AsBool() {
		t.Fatalf("expected compress_mode true")
	}
	if parsed.Get("encrypt_mode", 0).AsBool() {
		t.Fatalf("expected encrypt_mode false")
	}
	targets := parsed.Body().ValueArray("snipping_target")
	if len(targets) != 2 || targets[0].AsString() != "audit" || targets[1].AsString() != "replay" {
		t.Fatalf("snipping targets round trip failed: %v", targets)
	}
}

func TestHandleHandshakeConfirmsOnMatchingKey(t *testing.T) {
	connA, connB := net.Pipe()
	defer connA.Close()
	defer connB.Close()

	confirmCh := make(chan bool, 1)
	s := newTestSession(t, connA, "shared", Callbacks{OnConnection: func(ok bool) { confirmCh <- ok }})

	peer := container.New(handshakeMessageType)
	peer.Add(container.NewRaw("connection_key", container.TypeString, []byte("shared")))

	s.handleHandshake(peer)

	if !s.IsConfirmed() {
		t.Fatalf("expected session confirmed after matching key")
	}
	select {
	case ok := <-confirmCh:
		if !ok {
			t.Fatalf("expected OnConnection(true)")
		}
	default:
		t.Fatalf("expected OnConnection callback to fire")
	}
}

func TestHandleHandshakeRejectsMismatchedKey(t *testing.T) {
	connA, connB := net.Pipe()
	defer connB.Close()

	s := newTestSession(t, connA, "shared", Callbacks{})

	peer := container.New(handshakeMessageType)
	peer.Add(container.NewRaw("connection_key", container.TypeString, []byte("wrong")))

	s.handleHandshake(peer)

	if s.IsConfirmed() {
		t.Fatalf("expected session to stay unconfirmed on key mismatch")
	}
}

func TestPacketDroppedBeforeConfirmationThenDeliveredAfter(t *testing.T) {
	connA, connB := net.Pipe()
	defer connA.Close()
	defer connB.Close()

	var received *container.Container
	s := newTestSession(t, connA, "", Callbacks{OnMessage: func(c *container.Container) { received = c }})

	chat := container.New("chat")
	chat.Add(container.NewRaw("text", container.TypeString, []byte("hi")))
	s.dispatchPacket([]byte(chat.Serialize(false)))
	if received != nil {
		t.Fatalf("expected message dropped before confirmation")
	}

	s.confirmed.Store(true)
	s.dispatchPacket([]byte(chat.Serialize(false)))
	if received == nil {
		t.Fatalf("expected message delivered after confirmation")
	}
	if received.Get("text", 0).AsString() != "hi" {
		t.Fatalf("got %q", received.Get("text", 0).AsString())
	}
}

func TestEchoMessageFilteredEvenWhenConfirmed(t *testing.T) {
	connA, connB := net.Pipe()
	defer connA.Close()
	defer connB.Close()

	called := false
	s := newTestSession(t, connA, "", Callbacks{OnMessage: func(*container.Container) { called = true }})
	s.confirmed.Store(true)

	s.dispatchPacket([]byte(newEchoContainer().Serialize(false)))
	if called {
		t.Fatalf("expected echo heartbeat filtered out of OnMessage")
	}
}
