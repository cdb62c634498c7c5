package osc

import (
	"context"
	"net"

	"github.com/rs/zerolog"

	"github.com/coreman2200/tapelight/internal/engine"
)

// Server listens for control datagrams and stages the decoded commands.
// It never touches render state directly.
type Server struct {
	log  zerolog.Logger
	eng  *engine.Engine
	conn net.PacketConn
}

func NewServer(addr string, eng *engine.Engine, log zerolog.Logger) (*Server, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, err
	}
	log.Info().Str("addr", conn.LocalAddr().String()).Msg("control listener up")
	return &Server{log: log, eng: eng, conn: conn}, nil
}

// Addr is the bound listen address.
func (s *Server) Addr() net.Addr { return s.conn.LocalAddr() }

// Serve reads datagrams until ctx is cancelled. A malformed packet is
// logged and dropped; the listener keeps going.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	buf := make([]byte, 64*1024)
	for {
		n, from, err := s.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		m, err := Parse(buf[:n])
		if err != nil {
			s.log.Warn().Str("from", from.String()).Err(err).Msg("dropped malformed packet")
			continue
		}
		s.log.Debug().Str("addr", m.Addr).Str("from", from.String()).Msg("command received")
		Dispatch(s.eng, m, s.log)
	}
}
