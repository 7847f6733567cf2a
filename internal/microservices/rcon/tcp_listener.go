package rcon

import (
	"context"
	"errors"
	"net"
	"time"

	"rconhub/internal/config"
)

func (s *Server) acceptTCP(ctx context.Context, ln net.Listener) {
	defer s.loops.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("tcp_accept_failed", "error", err)
			// back off on transient errors such as EMFILE
			select {
			case <-time.After(50 * time.Millisecond):
			case <-ctx.Done():
				return
			}
			continue
		}

		if err := s.acquireSlot(); err != nil {
			s.logger.Info("connection_rejected_capacity",
				"transport", string(TransportTCP),
				"remote_addr", conn.RemoteAddr().String(),
				"error", err,
			)
			conn.Close()
			continue
		}

		if !s.trackSession() {
			s.releaseSlot()
			conn.Close()
			return
		}
		sess := s.newSession(newTCPTransport(conn))
		go s.serve(ctx, sess, s.tcpPreauth())
	}
}

// tcpPreauth reads the password line in url_password mode. The raw socket
// has no URL, so the first newline-terminated line stands in for it.
func (s *Server) tcpPreauth() func(*Session) bool {
	if s.auth.Mode() != config.AuthURLPassword {
		return nil
	}
	return func(sess *Session) bool {
		s.armReadDeadline(sess)
		line, err := sess.transport.ReadMessage()
		if err != nil {
			s.logReadError(sess, err)
			return false
		}
		sess.touch()
		return s.connectAuth(sess, string(line))
	}
}
