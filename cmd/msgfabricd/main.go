// Command msgfabricd runs the messaging-fabric listener plus a
// separate admin HTTP surface (spec.md §12.3): health, aggregate
// stats, and a read-only websocket frame tail for local debugging.
// The admin surface never multiplexes the fabric's own socket — it
// binds its own listener, matching the teacher services' pattern of
// a dedicated health/metrics port next to the service's real work.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/Ap3pp3rs94/msgfabric/internal/container"
	"github.com/Ap3pp3rs94/msgfabric/internal/session"
	"github.com/Ap3pp3rs94/msgfabric/internal/wire"
	"github.com/Ap3pp3rs94/msgfabric/pkg/config"
	"github.com/Ap3pp3rs94/msgfabric/pkg/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML session profile")
	adminAddr := flag.String("admin-addr", ":8090", "admin HTTP surface listen address")
	flag.Parse()

	profile, err := config.Load(*configPath, "FABRIC_")
	if err != nil {
		log.Fatalf("msgfabricd: loading config: %v", err)
	}
	if profile.ListenAddr == "" {
		profile.ListenAddr = ":9443"
	}

	logger := telemetry.NewDefaultLogger(os.Stdout, "msgfabricd")
	reg := newRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ln, err := net.Listen("tcp", profile.ListenAddr)
	if err != nil {
		log.Fatalf("msgfabricd: listen %s: %v", profile.ListenAddr, err)
	}

	go acceptLoop(ctx, ln, profile, reg, logger)
	go serveAdmin(*adminAddr, reg, logger)

	logger.Info(ctx, "listening", map[string]any{"addr": profile.ListenAddr, "admin_addr": *adminAddr})

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info(ctx, "shutting_down", nil)
	cancel()
	_ = ln.Close()
	reg.stopAll()
}

func acceptLoop(ctx context.Context, ln net.Listener, profile config.Profile, reg *registry, logger *telemetry.Logger) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			logger.Error(ctx, "accept_failed", map[string]any{"error": err.Error()})
			continue
		}

		cb := session.Callbacks{
			OnConnection: func(connected bool) {
				logger.Info(ctx, "connection_state", map[string]any{
					"remote":    conn.RemoteAddr().String(),
					"confirmed": connected,
				})
			},
			OnMessage: func(c *container.Container) {
				logger.Debug(ctx, "message", map[string]any{"message_type": c.MessageType()})
			},
			OnFrame: reg.broadcastFrame,
		}

		sess, err := session.New(conn, profile, cb, logger)
		if err != nil {
			logger.Error(ctx, "session_init_failed", map[string]any{"error": err.Error()})
			_ = conn.Close()
			continue
		}
		reg.add(sess)
		sess.Start(ctx)
	}
}

// registry tracks active sessions for the /stats endpoint and fans
// frame events out to connected /ws/tail clients.
type registry struct {
	mu       sync.Mutex
	sessions map[*session.Session]struct{}
	tails    map[*websocket.Conn]struct{}
}

func newRegistry() *registry {
	return &registry{
		sessions: make(map[*session.Session]struct{}),
		tails:    make(map[*websocket.Conn]struct{}),
	}
}

func (r *registry) add(s *session.Session) {
	r.mu.Lock()
	r.sessions[s] = struct{}{}
	r.mu.Unlock()
}

func (r *registry) stopAll() {
	r.mu.Lock()
	sessions := make([]*session.Session, 0, len(r.sessions))
	for s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, s := range sessions {
		_ = s.Stop(ctx)
	}
}

type tailEvent struct {
	Direction string `json:"direction"`
	Mode      string `json:"mode"`
	Bytes     int    `json:"bytes"`
	Ts        string `json:"ts"`
}

func (r *registry) broadcastFrame(direction string, mode wire.Mode, size int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.tails) == 0 {
		return
	}
	ev := tailEvent{Direction: direction, Mode: mode.String(), Bytes: size, Ts: time.Now().UTC().Format(time.RFC3339Nano)}
	line, err := json.Marshal(ev)
	if err != nil {
		return
	}
	for conn := range r.tails {
		if err := conn.WriteMessage(websocket.TextMessage, line); err != nil {
			_ = conn.Close()
			delete(r.tails, conn)
		}
	}
}

func (r *registry) addTail(conn *websocket.Conn) {
	r.mu.Lock()
	r.tails[conn] = struct{}{}
	r.mu.Unlock()
}

func (r *registry) removeTail(conn *websocket.Conn) {
	r.mu.Lock()
	delete(r.tails, conn)
	r.mu.Unlock()
}

func (r *registry) statsSnapshot() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	confirmed := 0
	stats := make([]session.Stats, 0, len(r.sessions))
	for s := range r.sessions {
		st := s.Stats()
		if st.Confirmed {
			confirmed++
		}
		stats = append(stats, st)
	}
	return map[string]any{
		"connections":         len(r.sessions),
		"confirmed_sessions":  confirmed,
		"sessions":            stats,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func serveAdmin(addr string, reg *registry, logger *telemetry.Logger) {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}).Methods(http.MethodGet)

	r.HandleFunc("/stats", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, reg.statsSnapshot())
	}).Methods(http.MethodGet)

	r.HandleFunc("/ws/tail", func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			logger.Debug(req.Context(), "ws_upgrade_failed", map[string]any{"error": err.Error()})
			return
		}
		reg.addTail(conn)
		defer reg.removeTail(conn)
		defer conn.Close()

		// Discard anything the client sends; this endpoint is
		// read-only and the loop just detects disconnects.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error(context.Background(), "admin_server_error", map[string]any{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
