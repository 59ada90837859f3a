// Package session ties a socket, the frame codec, the job pool, and
// application callbacks together (spec.md §4.8). Grounded on
// original_source/cpp_libraries/network/messaging_client.h for the
// shape of the integration (one connection, one confirmed flag, a set
// of registered callbacks) and on the teacher's orchestrator worker
// pool for the Go concurrency idiom layered on top of it.
package session

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/Ap3pp3rs94/msgfabric/internal/container"
	"github.com/Ap3pp3rs94/msgfabric/internal/jobqueue"
	"github.com/Ap3pp3rs94/msgfabric/internal/transform"
	"github.com/Ap3pp3rs94/msgfabric/internal/wire"
	"github.com/Ap3pp3rs94/msgfabric/internal/worker"
	"github.com/Ap3pp3rs94/msgfabric/pkg/config"
	ferrors "github.com/Ap3pp3rs94/msgfabric/pkg/errors"
	"github.com/Ap3pp3rs94/msgfabric/pkg/telemetry"
)

// Callbacks are the application hooks a Session dispatches decoded
// traffic to (spec.md §4.8: "connection, message, file, binary").
type Callbacks struct {
	OnConnection func(connected bool)
	OnMessage    func(c *container.Container)
	OnFile       func(sourceID, sourceSubID, targetID, targetSubID, path string, content []byte)
	OnBinary     func(sourceID, sourceSubID, targetID, targetSubID string, data []byte)

	// OnFrame, if set, fires for every frame sent or received
	// ("out"/"in"), independent of confirmation state — used by the
	// admin tail surface, never gated the way OnMessage/OnFile/
	// OnBinary are.
	OnFrame func(direction string, mode wire.Mode, size int)
}

// Session is one TCP connection's worth of fabric state: the receive
// state machine on its own goroutine, a priority job pool with one
// worker group per priority feeding it, and the compression/
// encryption transforms negotiated at handshake.
type Session struct {
	conn      net.Conn
	profile   config.Profile
	sentinels wire.Sentinels
	callbacks Callbacks
	log       *telemetry.Logger

	pool   *jobqueue.Pool
	high   *worker.Group
	normal *worker.Group
	low    *worker.Group

	sendMu sync.Mutex

	confirmed     atomic.Bool
	handshakeSent atomic.Bool
	expectedKey   string
	compressOn    atomic.Bool
	encryptOn     atomic.Bool
	compressor    transform.Compressor
	cipher        transform.Cipher

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// New builds a Session around an already-connected socket. The
// profile supplies sentinel bytes, frame size ceiling, worker counts,
// and the expected connection key used to gate confirmation.
func New(conn net.Conn, profile config.Profile, cb Callbacks, log *telemetry.Logger) (*Session, error) {
	if log == nil {
		log = telemetry.Nop
	}
	s := &Session{
		conn:        conn,
		profile:     profile,
		sentinels:   wire.Sentinels{Start: profile.StartByte, End: profile.EndByte},
		callbacks:   cb,
		log:         log,
		pool:        jobqueue.NewPool(),
		expectedKey: profile.ConnectionKey,
		done:        make(chan struct{}),
	}

	if profile.CompressMode {
		comp, err := transform.NewCompressor(transform.Algorithm(profile.CompressionAlgorithm))
		if err != nil {
			return nil, err
		}
		s.compressor = comp
		s.compressOn.Store(true)
	}
	if profile.EncryptMode && profile.ConnectionKey != "" {
		ciph, err := transform.NewCipher(profile.ConnectionKey)
		if err != nil {
			return nil, err
		}
		s.cipher = ciph
		s.encryptOn.Store(true)
	}

	s.high = worker.NewGroup(s.pool, jobqueue.PriorityHigh, nil, max1(profile.HighPriorityWorkers), log)
	s.normal = worker.NewGroup(s.pool, jobqueue.PriorityNormal, []jobqueue.Priority{jobqueue.PriorityHigh}, max1(profile.NormalPriorityWorkers), log)
	s.low = worker.NewGroup(s.pool, jobqueue.PriorityLow, []jobqueue.Priority{jobqueue.PriorityNormal, jobqueue.PriorityHigh}, max1(profile.LowPriorityWorkers), log)

	return s, nil
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// Start launches the worker groups, the receive loop, and (if
// configured) the echo heartbeat, all on their own goroutines.
func (s *Session) Start(ctx context.Context) {
	s.high.Start()
	s.normal.Start()
	s.low.Start()

	s.wg.Add(1)
	go s.receiveLoop()

	if s.profile.AutoEcho {
		s.wg.Add(1)
		go s.echoLoop(ctx)
	}
}

// IsConfirmed reports whether the handshake has completed (spec.md
// §4.8: "is_confirmed turns true only after the peer acknowledges
// with a matching key").
func (s *Session) IsConfirmed() bool { return s.confirmed.Load() }

func (s *Session) modePriority(kind wire.Mode) jobqueue.Priority {
	switch kind.Kind() {
	case wire.ModeFile:
		return jobqueue.PriorityNormal
	case wire.ModeBinary:
		return jobqueue.PriorityLow
	default:
		return jobqueue.PriorityHigh
	}
}

// receiveLoop runs the frame state machine and, for every frame that
// arrives, enqueues a decode job at the priority its mode implies
// (spec.md §4.8). A transport failure fires OnConnection(false) and
// tears the session down.
func (s *Session) receiveLoop() {
	defer s.wg.Done()
	rc := wire.NewReceiver(s.conn, s.sentinels, s.profile.MaxFrameBytes)

	for {
		frame, err := rc.ReadFrame()
		if err != nil {
			s.log.Error(context.Background(), "receive_failed", map[string]any{"error": err.Error()})
			s.handleDisconnect()
			return
		}

		f := frame
		if s.callbacks.OnFrame != nil {
			s.callbacks.OnFrame("in", f.Mode, len(f.Payload))
		}
		job := &jobqueue.Job{
			Name:     fmt.Sprintf("decode:%s", f.Mode),
			Priority: s.modePriority(f.Mode),
			Run: func() error {
				return s.decodeAndDispatch(f)
			},
		}
		if err := s.pool.Push(job); err != nil {
			s.log.Debug(context.Background(), "decode_job_dropped", map[string]any{"error": err.Error()})
		}
	}
}

func (s *Session) handleDisconnect() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
		if s.callbacks.OnConnection != nil {
			s.callbacks.OnConnection(false)
		}
	})
}

// decodeAndDispatch inverts any negotiated transforms, then parses
// and routes the frame by kind (spec.md §4.8/§7: parse errors are
// absorbed here and never surface above the session).
func (s *Session) decodeAndDispatch(f wire.Frame) error {
	payload := f.Payload
	var err error
	if f.Mode.Encrypted() {
		payload, err = s.decrypt(payload)
		if err != nil {
			s.log.Error(context.Background(), "decrypt_failed", map[string]any{"error": err.Error()})
			return nil
		}
	}
	if f.Mode.Compressed() {
		payload, err = s.decompress(payload)
		if err != nil {
			s.log.Error(context.Background(), "decompress_failed", map[string]any{"error": err.Error()})
			return nil
		}
	}

	switch f.Mode.Kind() {
	case wire.ModePacket:
		s.dispatchPacket(payload)
	case wire.ModeFile:
		s.dispatchFile(payload)
	case wire.ModeBinary:
		s.dispatchBinary(payload)
	}
	return nil
}

func (s *Session) dispatchPacket(payload []byte) {
	c, err := container.Parse(string(payload))
	if err != nil {
		s.log.Error(context.Background(), "parse_failed", map[string]any{"error": err.Error()})
		return
	}

	if isHandshake(c) {
		s.handleHandshake(c)
		return
	}

	if !s.confirmed.Load() {
		s.log.Debug(context.Background(), "dropped_before_confirmation", map[string]any{"message_type": c.MessageType()})
		return
	}
	if c.MessageType() == echoMessageType {
		return
	}
	if s.callbacks.OnMessage != nil {
		s.callbacks.OnMessage(c)
	}
}

func (s *Session) decrypt(payload []byte) ([]byte, error) {
	if s.cipher == nil {
		return nil, ferrors.New(ferrors.ProtocolBadKey, "encrypted frame received with no cipher configured")
	}
	nonce, ciphertext, err := splitNonce(payload)
	if err != nil {
		return nil, err
	}
	return s.cipher.Open(nonce, ciphertext)
}

func (s *Session) decompress(payload []byte) ([]byte, error) {
	if s.compressor == nil {
		return nil, ferrors.New(ferrors.ParseMalformed, "compressed frame received with no compressor configured")
	}
	return s.compressor.Decompress(payload)
}

// Send serializes c, applies the session's negotiated transforms, and
// pushes a framed write job at high priority (spec.md §4.8: "the
// application calls send(container)").
func (s *Session) Send(c *container.Container) error {
	return s.enqueueSend(wire.ModePacket, []byte(c.Serialize(false)))
}

func (s *Session) enqueueSend(kind wire.Mode, payload []byte) error {
	return s.pool.Push(&jobqueue.Job{
		Name:     fmt.Sprintf("send:%s", kind),
		Priority: s.modePriority(kind),
		Run: func() error {
			return s.writeFrame(kind, payload)
		},
	})
}

func (s *Session) writeFrame(kind wire.Mode, payload []byte) error {
	mode := kind
	if s.compressOn.Load() && s.compressor != nil {
		compressed, err := s.compressor.Compress(payload)
		if err != nil {
			return err
		}
		payload = compressed
		mode = mode.WithCompressed(true)
	}
	if s.encryptOn.Load() && s.cipher != nil {
		nonce, ciphertext, err := s.cipher.Seal(payload)
		if err != nil {
			return err
		}
		payload = joinNonce(nonce, ciphertext)
		mode = mode.WithEncrypted(true)
	}

	s.sendMu.Lock()
	err := wire.WriteFrame(s.conn, s.sentinels, mode, payload)
	s.sendMu.Unlock()
	if err != nil {
		s.log.Error(context.Background(), "send_failed", map[string]any{"error": err.Error()})
		s.handleDisconnect()
		return err
	}
	if s.callbacks.OnFrame != nil {
		s.callbacks.OnFrame("out", mode, len(payload))
	}
	return nil
}

// Stop tears the session down cooperatively (spec.md §5: "the pool is
// locked against new pushes, in-flight jobs complete, workers observe
// stop and exit, the socket is closed").
func (s *Session) Stop(ctx context.Context) error {
	s.pool.SetPushLock(true)

	stopped := make(chan struct{})
	go func() {
		s.high.Stop()
		s.normal.Stop()
		s.low.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
	s.wg.Wait()
	return nil
}

// Stats reports job pool and worker counters for the admin surface.
type Stats struct {
	Confirmed bool            `json:"confirmed"`
	Pool      jobqueue.Stats  `json:"pool"`
	High      []worker.Stats  `json:"high"`
	Normal    []worker.Stats  `json:"normal"`
	Low       []worker.Stats  `json:"low"`
}

func (s *Session) Stats() Stats {
	return Stats{
		Confirmed: s.confirmed.Load(),
		Pool:      s.pool.Stats(),
		High:      s.high.Stats(),
		Normal:    s.normal.Stats(),
		Low:       s.low.Stats(),
	}
}

// splitNonce/joinNonce frame a fixed-length nonce ahead of ciphertext
// for transport; chacha20poly1305 nonces are a constant 12 bytes.
const nonceSize = 12

func joinNonce(nonce, ciphertext []byte) []byte {
	out := make([]byte, 0, len(nonce)+len(ciphertext))
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return out
}

func splitNonce(payload []byte) ([]byte, []byte, error) {
	if len(payload) < nonceSize {
		return nil, nil, ferrors.New(ferrors.ParseMalformed, "encrypted payload shorter than nonce")
	}
	return payload[:nonceSize], payload[nonceSize:], nil
}
