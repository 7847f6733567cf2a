package rcon

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"rconhub/internal/protocol"
)

const sendQueueSize = 256

// Principal is who a session authenticated as.
type Principal struct {
	Name   string
	Level  int
	Method string // "password", "account", "token" or "url"
}

// Session is one client connection on either transport. The read loop owns
// reads and the authenticated flag; a writer goroutine owns writes.
type Session struct {
	id        int64
	transport Transport
	createdAt time.Time
	limiter   *rate.Limiter // nil when rate limiting is off
	logger    *slog.Logger

	authenticated atomic.Bool
	principal     atomic.Pointer[Principal]
	lastActivity  atomic.Int64 // unix nanos
	authFailures  int          // read loop only

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	closeCode int
	reason    string
	writerEnd chan struct{}
}

func newSession(id int64, t Transport, limiter *rate.Limiter, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		id:        id,
		transport: t,
		createdAt: time.Now(),
		limiter:   limiter,
		logger:    logger,
		send:      make(chan []byte, sendQueueSize),
		done:      make(chan struct{}),
		writerEnd: make(chan struct{}),
	}
	s.touch()
	go s.writePump()
	return s
}

func (s *Session) ID() int64 { return s.id }

func (s *Session) Transport() TransportKind { return s.transport.Kind() }

func (s *Session) RemoteAddr() string { return s.transport.RemoteAddr() }

func (s *Session) CreatedAt() time.Time { return s.createdAt }

func (s *Session) IsAuthenticated() bool { return s.authenticated.Load() }

// Principal returns who the session authenticated as, or nil.
func (s *Session) Principal() *Principal { return s.principal.Load() }

// Identity is the principal name, empty before authentication.
func (s *Session) Identity() string {
	if p := s.principal.Load(); p != nil {
		return p.Name
	}
	return ""
}

// authenticate flips the flag false to true. It reports false when the
// session was already authenticated.
func (s *Session) authenticate(p Principal) bool {
	if !s.authenticated.CompareAndSwap(false, true) {
		return false
	}
	s.principal.Store(&p)
	s.authFailures = 0
	return true
}

func (s *Session) recordAuthFailure() int {
	s.authFailures++
	return s.authFailures
}

func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// allow consumes one rate-limit token.
func (s *Session) allow() bool {
	return s.limiter == nil || s.limiter.Allow()
}

// Done is closed when the session starts closing.
func (s *Session) Done() <-chan struct{} { return s.done }

// TrySend queues an encoded message, waiting at most timeout for room.
func (s *Session) TrySend(data []byte, timeout time.Duration) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.send <- data:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case s.send <- data:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-timer.C:
		return ErrSendTimeout
	}
}

// Reply encodes and queues a response to the client.
func (s *Session) Reply(resp *protocol.Response) error {
	data, err := protocol.EncodeResponse(resp)
	if err != nil {
		return err
	}
	return s.TrySend(data, WriteWait)
}

// Close closes with a normal close code.
func (s *Session) Close(reason string) error {
	return s.CloseWithCode(CloseNormal, reason)
}

// CloseWithCode starts closing the session. Messages already queued are
// flushed before the transport is closed. Only the first call has effect.
func (s *Session) CloseWithCode(code int, reason string) error {
	s.closeOnce.Do(func() {
		s.closeCode = code
		s.reason = reason
		close(s.done)
	})
	return nil
}

// Wait blocks until the writer has closed the transport or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.writerEnd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) writePump() {
	defer close(s.writerEnd)

	for {
		select {
		case data := <-s.send:
			if err := s.transport.WriteMessage(data, time.Now().Add(WriteWait)); err != nil {
				s.logger.Debug("session_write_failed", "session_id", s.id, "error", err)
				s.CloseWithCode(CloseNormal, "write failed")
				s.finish()
				return
			}
		case <-s.done:
			s.flush()
			s.finish()
			return
		}
	}
}

// flush writes whatever is still queued within one close budget.
func (s *Session) flush() {
	deadline := time.Now().Add(closeControlWait)
	for {
		select {
		case data := <-s.send:
			if err := s.transport.WriteMessage(data, deadline); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *Session) finish() {
	if err := s.transport.Close(s.closeCode, s.reason); err != nil && !isClosedConnError(err) {
		s.logger.Debug("session_transport_close_failed", "session_id", s.id, "error", err)
	}
}
