package rcon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rconhub/internal/config"
	"rconhub/internal/microservices/hub"
	"rconhub/internal/middleware/auth"
	"rconhub/internal/models"
	"rconhub/internal/protocol"
)

// Version is reported by the config and status commands.
var Version = "dev"

const commandTimeout = 30 * time.Second

// Dispatcher validates the session's auth state and routes one request to
// a built-in handler or the command backend.
type Dispatcher struct {
	cfg       *config.Store
	auth      AuthStrategy
	backend   CommandBackend
	hub       *hub.Hub
	bans      BanManager
	status    StatusProvider
	audit     AuditRecorder
	onLogin   func(ctx context.Context, p Principal)
	startedAt time.Time
	logger    *slog.Logger
	builtins  map[string]builtin
}

// DispatcherDeps are the collaborators a dispatcher routes to. Only Config,
// Auth and Hub are required.
type DispatcherDeps struct {
	Config  *config.Store
	Auth    AuthStrategy
	Hub     *hub.Hub
	Backend CommandBackend
	Bans    BanManager
	Status  StatusProvider
	Audit   AuditRecorder
	// OnLogin runs after every successful authentication.
	OnLogin func(ctx context.Context, p Principal)
	Logger  *slog.Logger
}

func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		cfg:       deps.Config,
		auth:      deps.Auth,
		backend:   deps.Backend,
		hub:       deps.Hub,
		bans:      deps.Bans,
		status:    deps.Status,
		audit:     deps.Audit,
		onLogin:   deps.OnLogin,
		startedAt: time.Now(),
		logger:    logger,
	}
	d.builtins = d.registerBuiltins()
	return d
}

// Handle processes one raw message and returns the reply. closeSession is
// set when the session must be closed with a policy violation after the
// reply is sent.
func (d *Dispatcher) Handle(ctx context.Context, sess *Session, data []byte) (resp *protocol.Response, closeSession bool) {
	req, err := protocol.DecodeRequest(data)
	if err != nil {
		d.logger.Debug("request_decode_failed", "session_id", sess.ID(), "error", err)
		return d.finish(nil, protocol.ProtocolError(decodeErrorMessage(err))), false
	}
	resp, closeSession = d.route(ctx, sess, req)
	return d.finish(req, resp), closeSession
}

// ProtocolError builds the reply for a message that never reached decoding,
// such as an oversized frame.
func (d *Dispatcher) ProtocolError(err error) *protocol.Response {
	return d.finish(nil, protocol.ProtocolError(decodeErrorMessage(err)))
}

// reject builds a protocol-level error reply that answers no request.
func (d *Dispatcher) reject(message string) *protocol.Response {
	return d.finish(nil, protocol.ProtocolError(message))
}

func decodeErrorMessage(err error) string {
	switch {
	case errors.Is(err, protocol.ErrMessageTooLarge):
		return "message too large"
	case errors.Is(err, protocol.ErrEmptyCommand):
		return "missing Command"
	default:
		return "invalid request"
	}
}

func (d *Dispatcher) route(ctx context.Context, sess *Session, req *protocol.Request) (*protocol.Response, bool) {
	cmd := req.NormalizedCommand()
	if cmd == protocol.CmdConfig {
		return d.configResponse(req), false
	}

	if !sess.allow() {
		d.logger.Warn("rate_limit_exceeded", "session_id", sess.ID())
		return protocol.ErrorResponse(req, "rate limit exceeded"), false
	}

	if !sess.IsAuthenticated() {
		if cmd == protocol.CmdAuth && d.auth.Mode() == config.AuthPacket {
			return d.handleAuth(ctx, sess, req)
		}
		return protocol.ErrorResponse(req, ErrNotAuthenticated.Error()), false
	}

	if cmd == protocol.CmdAuth {
		return protocol.ErrorResponse(req, ErrAlreadyAuthenticated.Error()), false
	}
	if b, ok := d.builtins[cmd]; ok {
		return b.run(ctx, sess, req), false
	}
	return d.forward(ctx, sess, req), false
}

// finish stamps the fields every reply carries.
func (d *Dispatcher) finish(req *protocol.Request, resp *protocol.Response) *protocol.Response {
	if req != nil {
		resp.Identifier = req.Identifier
		resp.Command = req.Command
	}
	resp.Debug = d.cfg.Get().DebugEcho
	return resp
}

func (d *Dispatcher) configResponse(req *protocol.Request) *protocol.Response {
	fields := d.cfg.Get().SafeFields()
	fields["Version"] = Version
	return protocol.NewResponse(req, protocol.StatusSuccess, "config").WithData(fields)
}

func (d *Dispatcher) handleAuth(ctx context.Context, sess *Session, req *protocol.Request) (*protocol.Response, bool) {
	p, err := d.auth.AuthenticateViaPacket(ctx, req)
	if err != nil {
		failures := sess.recordAuthFailure()
		d.logger.Warn("auth_failed",
			"session_id", sess.ID(),
			"remote_addr", sess.RemoteAddr(),
			"name", req.NameValue(),
			"failures", failures,
			"error", err,
		)
		limit := d.cfg.Get().MaxAuthFailures
		return protocol.ErrorResponse(req, authFailureMessage(err)), limit > 0 && failures >= limit
	}

	if !sess.authenticate(p) {
		return protocol.ErrorResponse(req, ErrAlreadyAuthenticated.Error()), false
	}
	d.logger.Info("auth_succeeded",
		"session_id", sess.ID(),
		"identity", p.Name,
		"method", p.Method,
		"transport", string(sess.Transport()),
	)
	if d.onLogin != nil {
		d.onLogin(ctx, p)
	}

	data := d.Snapshot(ctx)
	cfg := d.cfg.Get()
	tokens := auth.NewTokenManager(cfg.TokenSecret, cfg.TokenTTL)
	if tokens.Enabled() && p.Method != "token" {
		token, err := tokens.Issue(p.Name, p.Level, p.Method)
		if err != nil {
			d.logger.Error("token_issue_failed", "session_id", sess.ID(), "error", err)
		} else {
			data["Token"] = token
			data["TokenExpiresIn"] = int64(cfg.TokenTTL.Seconds())
		}
	}
	return protocol.NewResponse(req, protocol.StatusAuthenticated, "authenticated as "+p.Name).WithData(data), false
}

// authFailureMessage only reveals the reason when the password itself was
// accepted.
func authFailureMessage(err error) string {
	switch {
	case errors.Is(err, ErrWrongAuthMode):
		return ErrWrongAuthMode.Error()
	case errors.Is(err, ErrBanned):
		return "authentication failed: " + ErrBanned.Error()
	case errors.Is(err, ErrInsufficientPrivilege):
		return "authentication failed: " + ErrInsufficientPrivilege.Error()
	default:
		return ErrAuthFailed.Error()
	}
}

// Snapshot is the status map attached to auth replies, the status command
// and periodic status broadcasts.
func (d *Dispatcher) Snapshot(ctx context.Context) map[string]any {
	cfg := d.cfg.Get()
	fields := make(map[string]any)
	if d.status != nil {
		for k, v := range d.status.Status(ctx) {
			fields[k] = v
		}
	}
	fields["ServerName"] = cfg.ServerName
	fields["Version"] = Version
	fields["UptimeSeconds"] = int64(time.Since(d.startedAt).Seconds())
	fields["Sessions"] = d.hub.Count()
	fields["AuthenticatedSessions"] = d.hub.AuthenticatedCount()
	fields["MaxConnections"] = cfg.MaxConnections
	fields["OnlinePlayers"] = d.hub.Roster().Count()
	return fields
}

func (d *Dispatcher) forward(ctx context.Context, sess *Session, req *protocol.Request) *protocol.Response {
	if d.backend == nil {
		return protocol.ErrorResponse(req, fmt.Sprintf("unknown command: %s", req.Command))
	}

	line := req.CommandLine()
	start := time.Now()
	out, ok, err := d.execute(ctx, line)
	elapsed := time.Since(start)

	if d.audit != nil {
		d.audit.Record(&models.AuditEntry{
			SessionID:  sess.ID(),
			Identity:   sess.Identity(),
			Transport:  string(sess.Transport()),
			RemoteAddr: sess.RemoteAddr(),
			Command:    line,
			Success:    err == nil && ok,
			DurationMS: elapsed.Milliseconds(),
			ExecutedAt: start,
		})
	}

	if err != nil {
		d.logger.Error("backend_execute_failed", "session_id", sess.ID(), "command", req.Command, "error", err)
		return protocol.ErrorResponse(req, err.Error())
	}
	d.logger.Debug("command_executed",
		"session_id", sess.ID(),
		"command", req.Command,
		"ok", ok,
		"duration_ms", elapsed.Milliseconds(),
	)
	if !ok {
		if out == "" {
			out = "command failed"
		}
		return protocol.ErrorResponse(req, out)
	}
	return protocol.NewResponse(req, protocol.StatusSuccess, out)
}

// execute shields the session from backend panics.
func (d *Dispatcher) execute(ctx context.Context, line string) (out string, ok bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panic: %v", r)
		}
	}()
	out, ok = d.backend.Execute(ctx, line)
	return out, ok, nil
}
