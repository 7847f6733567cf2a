package rcon

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"

	"rconhub/internal/config"
	"rconhub/internal/middleware/auth"
	"rconhub/internal/protocol"
)

func (s *Server) serveHTTP(srv *http.Server, ln net.Listener) {
	defer s.loops.Done()
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("websocket_listener_failed", "error", err)
	}
}

// httpHandler is everything on the WebSocket port. Upgrade requests are
// taken over by upgradeMiddleware; the rest is a health check, a token
// protected status endpoint and optional static files.
func (s *Server) httpHandler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.upgradeMiddleware())

	r.GET("/healthz", s.healthz)
	r.GET("/api/status",
		auth.TokenMiddleware(s.tokenManager),
		auth.RequireLevel(func() int { return s.cfg.Get().MinPrivilegeLevel }),
		s.apiStatus,
	)
	r.NoRoute(s.static)
	return r
}

func (s *Server) tokenManager() *auth.TokenManager {
	cfg := s.cfg.Get()
	return auth.NewTokenManager(cfg.TokenSecret, cfg.TokenTTL)
}

func (s *Server) upgradeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !protocol.IsUpgradeRequest(c.Request.Header) {
			c.Header("Connection", "close")
			c.Next()
			return
		}
		c.Abort()
		s.handleUpgrade(c.Writer, c.Request)
	}
}

// handleUpgrade reserves a slot, validates the handshake and the path, then
// lets gorilla write the 101 and runs the session on this goroutine.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if err := s.acquireSlot(); err != nil {
		s.logger.Info("connection_rejected_capacity",
			"transport", string(TransportWebSocket),
			"remote_addr", r.RemoteAddr,
			"error", err,
		)
		dropConnection(w)
		return
	}
	handedOff := false
	defer func() {
		if !handedOff {
			s.releaseSlot()
		}
	}()

	if _, err := protocol.ValidateUpgrade(r); err != nil {
		s.logger.Debug("websocket_handshake_rejected", "remote_addr", r.RemoteAddr, "error", err)
		badRequest(w)
		return
	}
	credential, err := s.upgradeCredential(r)
	if err != nil {
		s.logger.Debug("websocket_path_rejected", "remote_addr", r.RemoteAddr, "error", err)
		badRequest(w)
		return
	}

	if !s.trackSession() {
		dropConnection(w)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// gorilla already answered with an HTTP error
		s.sessions.Done()
		s.logger.Debug("websocket_upgrade_failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}
	handedOff = true

	sess := s.newSession(newWSTransport(conn, r.RemoteAddr))
	var preauth func(*Session) bool
	if s.auth.Mode() == config.AuthURLPassword {
		preauth = func(sess *Session) bool { return s.connectAuth(sess, credential) }
	}
	s.serve(s.ctx, sess, preauth)
}

// upgradeCredential applies the path rules: "/<password>" in url_password
// mode, exactly "/rcon" in packet_auth mode.
func (s *Server) upgradeCredential(r *http.Request) (string, error) {
	escaped := r.URL.EscapedPath()
	if s.auth.Mode() == config.AuthPacket {
		if escaped != protocol.PacketAuthPath {
			return "", fmt.Errorf("%w: unexpected path %q", protocol.ErrBadHandshake, escaped)
		}
		return "", nil
	}
	return protocol.PathCredential(escaped)
}

func badRequest(w http.ResponseWriter) {
	w.Header().Set("Connection", "close")
	http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
}

// dropConnection closes the socket without writing anything.
func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		w.Header().Set("Connection", "close")
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	conn, _, err := hj.Hijack()
	if err == nil {
		conn.Close()
	}
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"server":   s.cfg.Get().ServerName,
		"version":  Version,
		"sessions": s.ActiveSessions(),
	})
}

func (s *Server) apiStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"identity": c.GetString(auth.ContextIdentity),
		"status":   s.dispatcher.Snapshot(c.Request.Context()),
	})
}

// static serves files below WebRoot, which is how browser consoles are
// shipped alongside the server. Directory listings are off.
func (s *Server) static(c *gin.Context) {
	root := s.cfg.Get().WebRoot
	if root == "" || (c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead) {
		c.String(http.StatusNotFound, "not found")
		return
	}
	c.FileFromFS(path.Clean("/"+c.Request.URL.Path), gin.Dir(root, false))
}
