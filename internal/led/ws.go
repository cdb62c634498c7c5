package led

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/coreman2200/tapelight/internal/frame"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSSink streams frames to websocket preview clients. Each binary message
// is an 8-byte big-endian generation counter followed by 3 bytes per LED in
// device registration order. A JSON status endpoint exposes whatever the
// provided statusFn reports.
type WSSink struct {
	log      zerolog.Logger
	srv      *http.Server
	statusFn func() any

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

func NewWSSink(addr string, statusFn func() any, log zerolog.Logger) *WSSink {
	s := &WSSink{
		log:      log,
		statusFn: statusFn,
		clients:  map[*websocket.Conn]bool{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/frames", s.handleFrames)
	mux.HandleFunc("/status", s.handleStatus)
	s.srv = &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Str("addr", addr).Msg("preview server failed")
		}
	}()
	return s
}

func (s *WSSink) handleFrames(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("preview client upgrade failed")
		return
	}
	s.mu.Lock()
	s.clients[conn] = true
	n := len(s.clients)
	s.mu.Unlock()
	s.log.Info().Int("clients", n).Msg("preview client connected")

	// read pump: clients never send, but reading is how a close is noticed
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *WSSink) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var payload any
	if s.statusFn != nil {
		payload = s.statusFn()
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Warn().Err(err).Msg("status encode failed")
	}
}

func (s *WSSink) Write(snap frame.Snapshot) error {
	msg := make([]byte, 8+len(snap.Colors)*3)
	binary.BigEndian.PutUint64(msg, snap.Gen)
	for i, c := range snap.Colors {
		o := 8 + i*3
		msg[o], msg[o+1], msg[o+2] = c.R, c.G, c.B
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		conn.SetWriteDeadline(time.Now().Add(250 * time.Millisecond))
		if err := conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
			conn.Close()
			delete(s.clients, conn)
		}
	}
	return nil
}

func (s *WSSink) Close() error {
	s.mu.Lock()
	for conn := range s.clients {
		conn.Close()
	}
	s.clients = map[*websocket.Conn]bool{}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
