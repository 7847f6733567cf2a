package rcon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"rconhub/internal/config"
	"rconhub/internal/middleware/auth"
	"rconhub/internal/protocol"
)

// AuthStrategy is chosen once at startup from the configured auth mode.
type AuthStrategy interface {
	Mode() config.AuthMode
	// AuthenticateAtConnect checks the credential carried by the connection
	// itself (URL path or first TCP line).
	AuthenticateAtConnect(credential string) (Principal, error)
	// AuthenticateViaPacket checks an explicit auth request.
	AuthenticateViaPacket(ctx context.Context, req *protocol.Request) (Principal, error)
}

// NewAuthStrategy picks the strategy for the current auth mode. store and
// bans may be nil.
func NewAuthStrategy(cfg *config.Store, store IdentityStore, bans BanManager, logger *slog.Logger) AuthStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Get().AuthMode == config.AuthURLPassword {
		return &urlPasswordAuth{cfg: cfg}
	}
	return &packetAuth{cfg: cfg, store: store, bans: bans, logger: logger}
}

type urlPasswordAuth struct {
	cfg *config.Store
}

func (a *urlPasswordAuth) Mode() config.AuthMode { return config.AuthURLPassword }

func (a *urlPasswordAuth) AuthenticateAtConnect(credential string) (Principal, error) {
	if !auth.SecretEqual(a.cfg.Get().Password, credential) {
		return Principal{}, ErrAuthFailed
	}
	return Principal{Name: "rcon", Method: "url"}, nil
}

func (a *urlPasswordAuth) AuthenticateViaPacket(context.Context, *protocol.Request) (Principal, error) {
	return Principal{}, ErrWrongAuthMode
}

type packetAuth struct {
	cfg    *config.Store
	store  IdentityStore
	bans   BanManager
	logger *slog.Logger
}

func (a *packetAuth) Mode() config.AuthMode { return config.AuthPacket }

func (a *packetAuth) AuthenticateAtConnect(string) (Principal, error) {
	return Principal{}, ErrWrongAuthMode
}

// AuthenticateViaPacket tries, in order: a named account, the shared
// password, then a session token.
func (a *packetAuth) AuthenticateViaPacket(ctx context.Context, req *protocol.Request) (Principal, error) {
	cfg := a.cfg.Get()
	password := req.PasswordValue()
	name := req.NameValue()

	if name != "" && a.store != nil {
		return a.authenticateAccount(ctx, cfg, name, password)
	}
	if password == "" {
		return Principal{}, ErrAuthFailed
	}
	if auth.SecretEqual(cfg.Password, password) {
		p := Principal{Name: "rcon", Level: cfg.MinPrivilegeLevel, Method: "password"}
		if name != "" {
			p.Name = name
		}
		return p, nil
	}

	tokens := auth.NewTokenManager(cfg.TokenSecret, cfg.TokenTTL)
	if tokens.Enabled() {
		claims, err := tokens.Validate(password)
		if err == nil {
			// the floor may have been raised since the token was issued
			if claims.Level < cfg.MinPrivilegeLevel {
				return Principal{}, fmt.Errorf("%w: %w", ErrAuthFailed, ErrInsufficientPrivilege)
			}
			if err := a.checkBan(ctx, claims.Subject, claims.Method); err != nil {
				return Principal{}, err
			}
			return Principal{Name: claims.Subject, Level: claims.Level, Method: "token"}, nil
		}
		a.logger.Debug("session_token_rejected", "error", err)
	}
	return Principal{}, ErrAuthFailed
}

func (a *packetAuth) authenticateAccount(ctx context.Context, cfg *config.Config, name, password string) (Principal, error) {
	ident, err := a.store.Lookup(ctx, name)
	if err != nil {
		if errors.Is(err, ErrUnknownAccount) {
			return Principal{}, fmt.Errorf("%w: %w", ErrAuthFailed, err)
		}
		return Principal{}, fmt.Errorf("%w: account lookup: %v", ErrAuthFailed, err)
	}
	if !ident.CheckPassword(password) {
		return Principal{}, ErrAuthFailed
	}
	if ident.PrivilegeLevel() < cfg.MinPrivilegeLevel {
		return Principal{}, fmt.Errorf("%w: %w", ErrAuthFailed, ErrInsufficientPrivilege)
	}
	if err := a.checkBan(ctx, ident.Name(), "account"); err != nil {
		return Principal{}, err
	}
	return Principal{Name: ident.Name(), Level: ident.PrivilegeLevel(), Method: "account"}, nil
}

// checkBan rejects banned accounts. Only account-backed principals can be
// banned.
func (a *packetAuth) checkBan(ctx context.Context, name, method string) error {
	if a.bans == nil || method != "account" {
		return nil
	}
	rec, err := a.bans.BanInfo(ctx, name)
	if err != nil {
		if errors.Is(err, ErrUnknownAccount) {
			return fmt.Errorf("%w: %w", ErrAuthFailed, err)
		}
		return fmt.Errorf("%w: ban lookup: %v", ErrAuthFailed, err)
	}
	if rec != nil {
		return fmt.Errorf("%w: %w", ErrAuthFailed, ErrBanned)
	}
	return nil
}
