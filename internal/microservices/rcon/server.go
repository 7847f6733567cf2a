package rcon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"rconhub/internal/config"
	"rconhub/internal/microservices/hub"
	"rconhub/internal/protocol"
)

const reaperInterval = time.Second

// Options carries the optional collaborators of a Server.
type Options struct {
	Backend    CommandBackend
	Identities IdentityStore
	Bans       BanManager
	Status     StatusProvider
	Audit      AuditRecorder
	OnLogin    func(ctx context.Context, p Principal)
	// Hub lets the host share a hub, for example with a Redis relay
	// attached. A new one is created when nil.
	Hub    *hub.Hub
	Logger *slog.Logger
}

// Server owns both listeners, every live session and the broadcast hub.
type Server struct {
	cfg        *config.Store
	hub        *hub.Hub
	auth       AuthStrategy
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader
	logger     *slog.Logger

	nextID atomic.Int64
	slots  atomic.Int64

	mu       sync.Mutex
	running  bool
	ctx      context.Context
	cancel   context.CancelFunc
	tcpLn    net.Listener
	wsLn     net.Listener
	httpSrv  *http.Server
	loops    sync.WaitGroup
	sessions sync.WaitGroup
}

// NewServer wires a server around the config store. The auth strategy is
// fixed from the auth mode in effect now.
func NewServer(cfg *config.Store, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := opts.Hub
	if h == nil {
		h = hub.New(cfg, logger)
	}
	strategy := NewAuthStrategy(cfg, opts.Identities, opts.Bans, logger)

	s := &Server{
		cfg:    cfg,
		hub:    h,
		auth:   strategy,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// RCON consoles are served from anywhere, the password is the gate
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.dispatcher = NewDispatcher(DispatcherDeps{
		Config:  cfg,
		Auth:    strategy,
		Hub:     h,
		Backend: opts.Backend,
		Bans:    opts.Bans,
		Status:  opts.Status,
		Audit:   opts.Audit,
		OnLogin: opts.OnLogin,
		Logger:  logger,
	})
	return s
}

func (s *Server) Hub() *hub.Hub { return s.hub }

func (s *Server) Dispatcher() *Dispatcher { return s.dispatcher }

// TCPAddr is the bound raw TCP address, nil when not listening.
func (s *Server) TCPAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tcpLn == nil {
		return nil
	}
	return s.tcpLn.Addr()
}

// WSAddr is the bound WebSocket address, nil when not listening.
func (s *Server) WSAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wsLn == nil {
		return nil
	}
	return s.wsLn.Addr()
}

// Start binds the enabled listeners and returns once they accept
// connections. Accept loops run until Stop or ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrServerRunning
	}
	cfg := s.cfg.Get()

	var lc net.ListenConfig
	var tcpLn, wsLn net.Listener
	var err error
	if cfg.TCPEnabled {
		if tcpLn, err = lc.Listen(ctx, "tcp", cfg.TCPAddr()); err != nil {
			return fmt.Errorf("failed to start TCP listener on %s: %w", cfg.TCPAddr(), err)
		}
	}
	if cfg.WSEnabled {
		if wsLn, err = lc.Listen(ctx, "tcp", cfg.WSAddr()); err != nil {
			if tcpLn != nil {
				tcpLn.Close()
			}
			return fmt.Errorf("failed to start WebSocket listener on %s: %w", cfg.WSAddr(), err)
		}
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.tcpLn, s.wsLn = tcpLn, wsLn
	s.running = true

	if tcpLn != nil {
		s.loops.Add(1)
		go s.acceptTCP(s.ctx, tcpLn)
		s.logger.Info("tcp_listener_started", "addr", tcpLn.Addr().String())
	}
	if wsLn != nil {
		s.httpSrv = &http.Server{
			Handler:           s.httpHandler(),
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return s.ctx },
		}
		s.loops.Add(1)
		go s.serveHTTP(s.httpSrv, wsLn)
		s.logger.Info("websocket_listener_started", "addr", wsLn.Addr().String())
	}

	s.loops.Add(1)
	go func() {
		defer s.loops.Done()
		s.hub.StartReaper(s.ctx, reaperInterval, func() time.Duration { return s.cfg.Get().IdleTimeout() })
	}()
	if cfg.StatusInterval > 0 {
		s.loops.Add(1)
		go s.statusLoop(s.ctx, cfg.StatusInterval)
	}

	s.logger.Info("rcon_server_started",
		"auth_mode", string(s.auth.Mode()),
		"max_connections", cfg.MaxConnections,
		"idle_timeout_seconds", cfg.IdleTimeoutSeconds,
	)
	return nil
}

// Stop closes the listeners and every session, then waits for session
// goroutines up to the configured shutdown timeout or ctx, whichever ends
// first.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cancel()
	if s.tcpLn != nil {
		s.tcpLn.Close()
	}
	httpSrv := s.httpSrv
	s.tcpLn, s.wsLn, s.httpSrv = nil, nil, nil
	s.mu.Unlock()

	if httpSrv != nil {
		// hijacked WebSocket connections are not tracked by net/http
		if err := httpSrv.Close(); err != nil {
			s.logger.Debug("http_server_close_failed", "error", err)
		}
	}
	s.hub.CloseAll("server shutting down")

	timeout := s.cfg.Get().ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		s.loops.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("rcon_server_stopped")
		return nil
	case <-waitCtx.Done():
		s.logger.Warn("rcon_server_stop_timeout", "timeout", timeout.String())
		return fmt.Errorf("shutdown: %w", waitCtx.Err())
	}
}

// Reload re-reads configuration and swaps it in. The auth mode and listener
// addresses are fixed for the life of the process; changes to them are
// logged and the auth mode is kept.
func (s *Server) Reload() error {
	prev := s.cfg.Get()
	next, err := s.cfg.ReloadWith(func(_, next *config.Config) {
		mode := s.auth.Mode()
		if next.AuthMode != mode {
			s.logger.Warn("config_reload_auth_mode_ignored", "current", string(mode), "requested", string(next.AuthMode))
			next.AuthMode = mode
		}
	})
	if err != nil {
		s.logger.Error("config_reload_failed", "error", err)
		return err
	}
	if next.TCPAddr() != prev.TCPAddr() || next.WSAddr() != prev.WSAddr() ||
		next.TCPEnabled != prev.TCPEnabled || next.WSEnabled != prev.WSEnabled {
		s.logger.Warn("config_reload_listeners_unchanged", "detail", "listener changes apply after restart")
	}
	s.logger.Info("config_reloaded",
		"max_connections", next.MaxConnections,
		"idle_timeout_seconds", next.IdleTimeoutSeconds,
		"debug_echo", next.DebugEcho,
	)
	return nil
}

// acquireSlot reserves capacity for one session before any handshake.
func (s *Server) acquireSlot() error {
	limit := int64(s.cfg.Get().MaxConnections)
	for {
		n := s.slots.Load()
		if n >= limit {
			return fmt.Errorf("%w: %d of %d slots in use", ErrCapacity, n, limit)
		}
		if s.slots.CompareAndSwap(n, n+1) {
			return nil
		}
	}
}

// trackSession counts a session goroutine unless the server is stopping.
func (s *Server) trackSession() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	s.sessions.Add(1)
	return true
}

func (s *Server) releaseSlot() {
	s.slots.Add(-1)
}

// ActiveSessions is the number of reserved session slots.
func (s *Server) ActiveSessions() int {
	return int(s.slots.Load())
}

func (s *Server) newSession(t Transport) *Session {
	cfg := s.cfg.Get()
	var limiter *rate.Limiter
	if cfg.RateLimitPerSecond > 0 {
		burst := cfg.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitPerSecond), burst)
	}
	return newSession(s.nextID.Add(1), t, limiter, s.logger)
}

// serve runs one session to completion. preauth, when set, performs
// connect-time authentication before the session is registered with the
// hub. The caller has already reserved a slot and called trackSession.
func (s *Server) serve(ctx context.Context, sess *Session, preauth func(*Session) bool) {
	defer s.sessions.Done()
	defer s.releaseSlot()
	defer func() {
		sess.Close("connection closed")
		waitCtx, cancel := context.WithTimeout(context.Background(), 2*closeControlWait)
		defer cancel()
		_ = sess.Wait(waitCtx)
	}()

	go func() {
		select {
		case <-ctx.Done():
			sess.Close("server shutting down")
		case <-sess.Done():
		}
	}()

	if preauth != nil && !preauth(sess) {
		return
	}

	s.hub.Register(sess)
	defer s.hub.Unregister(sess.ID())

	s.logger.Info("session_opened",
		"session_id", sess.ID(),
		"transport", string(sess.Transport()),
		"remote_addr", sess.RemoteAddr(),
		"authenticated", sess.IsAuthenticated(),
	)
	defer func() {
		s.logger.Info("session_closed",
			"session_id", sess.ID(),
			"identity", sess.Identity(),
			"duration_ms", time.Since(sess.CreatedAt()).Milliseconds(),
		)
	}()

	for {
		s.armReadDeadline(sess)
		data, err := sess.transport.ReadMessage()
		if err != nil {
			if errors.Is(err, protocol.ErrMessageTooLarge) {
				sess.touch()
				if err := sess.Reply(s.dispatcher.ProtocolError(err)); err != nil {
					return
				}
				continue
			}
			s.logReadError(sess, err)
			return
		}
		sess.touch()

		resp, closeSession := s.dispatcher.Handle(ctx, sess, data)
		if err := sess.Reply(resp); err != nil {
			s.logger.Debug("session_reply_failed", "session_id", sess.ID(), "error", err)
			return
		}
		if closeSession {
			s.logger.Warn("session_auth_failures_exceeded", "session_id", sess.ID(), "remote_addr", sess.RemoteAddr())
			sess.CloseWithCode(ClosePolicy, "too many authentication failures")
			return
		}
	}
}

func (s *Server) armReadDeadline(sess *Session) {
	var deadline time.Time
	if idle := s.cfg.Get().IdleTimeout(); idle > 0 {
		deadline = time.Now().Add(idle)
	}
	if err := sess.transport.SetReadDeadline(deadline); err != nil {
		s.logger.Debug("session_set_deadline_failed", "session_id", sess.ID(), "error", err)
	}
}

func (s *Server) logReadError(sess *Session, err error) {
	switch {
	case isTimeout(err):
		s.logger.Info("session_idle_timeout", "session_id", sess.ID())
	case isClosedConnError(err):
		s.logger.Debug("session_disconnected", "session_id", sess.ID())
	default:
		s.logger.Debug("session_read_error", "session_id", sess.ID(), "error", err)
	}
}

// connectAuth authenticates with a credential carried by the connection.
func (s *Server) connectAuth(sess *Session, credential string) bool {
	p, err := s.auth.AuthenticateAtConnect(credential)
	if err != nil {
		s.logger.Warn("auth_failed",
			"session_id", sess.ID(),
			"transport", string(sess.Transport()),
			"remote_addr", sess.RemoteAddr(),
			"error", err,
		)
		if sess.Transport() == TransportTCP {
			_ = sess.Reply(s.dispatcher.reject(ErrAuthFailed.Error()))
		}
		sess.CloseWithCode(ClosePolicy, ErrAuthFailed.Error())
		return false
	}
	sess.authenticate(p)
	if s.dispatcher.onLogin != nil {
		s.dispatcher.onLogin(s.ctx, p)
	}
	return true
}

func (s *Server) statusLoop(ctx context.Context, interval time.Duration) {
	defer s.loops.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.PublishStatus(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// PlayerLoggedIn broadcasts a player join and adds them to the roster.
func (s *Server) PlayerLoggedIn(e hub.PlayerEvent) int {
	e.Kind = hub.PlayerLogin
	return s.hub.Publish(context.Background(), e)
}

// PlayerLoggedOut broadcasts a player leaving and drops them from the
// roster.
func (s *Server) PlayerLoggedOut(e hub.PlayerEvent) int {
	e.Kind = hub.PlayerLogoff
	return s.hub.Publish(context.Background(), e)
}

// Log broadcasts one host log line.
func (s *Server) Log(level hub.LogLevel, text string) int {
	return s.hub.Publish(context.Background(), hub.LogLine{Level: level, Text: text})
}

// LogHandler returns a slog.Handler that broadcasts host log records.
func (s *Server) LogHandler(level slog.Leveler) slog.Handler {
	return hub.NewLogHandler(s.hub, level)
}

// PublishStatus broadcasts a status snapshot now.
func (s *Server) PublishStatus(ctx context.Context) int {
	return s.hub.Publish(ctx, hub.StatusSnapshot{Fields: s.dispatcher.Snapshot(ctx), TakenAt: time.Now()})
}
