package session

import (
	"context"
	"time"
)

// echoLoop fires a heartbeat container on EchoInterval while the
// session is confirmed, per spec.md §4.8's optional auto_echo mode.
// The heartbeat itself carries no payload; its only purpose is
// keeping idle connections from looking dead to whatever sits in
// front of the fabric.
func (s *Session) echoLoop(ctx context.Context) {
	defer s.wg.Done()

	interval := s.profile.EchoInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			if !s.confirmed.Load() {
				continue
			}
			heartbeat := newEchoContainer()
			heartbeat.SetSource(s.profile.SourceID, s.profile.SourceSubID)
			if err := s.Send(heartbeat); err != nil {
				s.log.Debug(context.Background(), "echo_send_failed", map[string]any{"error": err.Error()})
			}
		}
	}
}
