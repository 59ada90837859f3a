package session

import (
	"context"
	"crypto/subtle"

	"github.com/Ap3pp3rs94/msgfabric/internal/container"
)

// handshakeMessageType marks the control container exchanged before a
// session is confirmed (spec.md §4.8: "the first exchange is a control
// container carrying session_type, connection_key, compression flag,
// bridge_line flag, and a snipping-target list"). It travels as an
// ordinary packet-mode container — there is no separate wire-level
// control mode, only this message_type.
const handshakeMessageType = "session_handshake"

// echoMessageType marks the periodic heartbeat container AutoEcho
// sends; it is otherwise a normal confirmed-session message and is
// filtered out before reaching the application callback.
const echoMessageType = "session_echo"

func isHandshake(c *container.Container) bool {
	return c.MessageType() == handshakeMessageType
}

// buildHandshake assembles the outbound control container advertising
// this side's session type and negotiated transform flags.
func (s *Session) buildHandshake() *container.Container {
	c := container.New(handshakeMessageType)
	c.SetSource(s.profile.SourceID, s.profile.SourceSubID)
	c.Add(container.NewRaw("session_type", container.TypeString, []byte("fabric")))
	c.Add(container.NewRaw("connection_key", container.TypeString, []byte(s.profile.ConnectionKey)))
	c.Add(boolValue("compress_mode", s.compressOn.Load()))
	c.Add(boolValue("encrypt_mode", s.encryptOn.Load()))
	c.Add(boolValue("bridge_line", s.profile.BridgeLine))
	for _, target := range s.profile.SnippingTargets {
		c.Add(container.NewRaw("snipping_target", container.TypeString, []byte(target)))
	}
	return c
}

func boolValue(name string, on bool) *container.Value {
	text := "false"
	if on {
		text = "true"
	}
	return container.NewFromText(name, "bool", text)
}

// SendHandshake transmits this side's control container. A dialer
// calls this once immediately after Start; a listener waits for the
// peer's handshake to arrive first and replies from handleHandshake.
func (s *Session) SendHandshake() error {
	s.handshakeSent.Store(true)
	return s.Send(s.buildHandshake())
}

// handleHandshake processes an inbound control container: on first
// contact it validates the connection key and, if the session hasn't
// sent its own handshake yet, replies with one; once both sides have
// exchanged a matching key the session is confirmed (spec.md §4.8:
// "is_confirmed turns true only after the peer acknowledges with a
// matching key").
func (s *Session) handleHandshake(c *container.Container) {
	peerKey := c.Get("connection_key", 0).AsString()
	if s.expectedKey != "" {
		if subtle.ConstantTimeCompare([]byte(peerKey), []byte(s.expectedKey)) != 1 {
			s.log.Error(context.Background(), "handshake_key_mismatch", nil)
			s.handleDisconnect()
			return
		}
	}

	if c.Get("compress_mode", 0).AsBool() && s.compressor != nil {
		s.compressOn.Store(true)
	}
	if c.Get("encrypt_mode", 0).AsBool() && s.cipher != nil {
		s.encryptOn.Store(true)
	}

	if !s.handshakeSent.Swap(true) {
		if err := s.Send(s.buildHandshake()); err != nil {
			s.log.Error(context.Background(), "handshake_reply_failed", map[string]any{"error": err.Error()})
		}
	}

	wasConfirmed := s.confirmed.Swap(true)
	if !wasConfirmed {
		s.log.Info(context.Background(), "session_confirmed", nil)
		if s.callbacks.OnConnection != nil {
			s.callbacks.OnConnection(true)
		}
	}
}
