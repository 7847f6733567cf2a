package rcon

import (
	"context"
	"time"

	"rconhub/internal/models"
)

// CommandBackend executes console command text and returns what it printed.
// ok is false when the command failed or is unknown.
type CommandBackend interface {
	Execute(ctx context.Context, commandLine string) (output string, ok bool)
}

// BackendFunc adapts a function to CommandBackend.
type BackendFunc func(ctx context.Context, commandLine string) (string, bool)

func (f BackendFunc) Execute(ctx context.Context, commandLine string) (string, bool) {
	return f(ctx, commandLine)
}

// Identity is an account that may authenticate by name.
type Identity interface {
	Name() string
	CheckPassword(pw string) bool
	PrivilegeLevel() int
}

// IdentityStore resolves account names. Lookup returns ErrUnknownAccount
// (possibly wrapped) for names it does not know.
type IdentityStore interface {
	Lookup(ctx context.Context, name string) (Identity, error)
}

// BanRecord describes a banned account.
type BanRecord struct {
	Name     string    `json:"Name"`
	Reason   string    `json:"Reason"`
	BannedBy string    `json:"BannedBy"`
	BannedAt time.Time `json:"BannedAt"`
}

// BanManager reads and changes bans. BanInfo returns nil when name is not
// banned.
type BanManager interface {
	ListBanned(ctx context.Context) ([]BanRecord, error)
	BanInfo(ctx context.Context, name string) (*BanRecord, error)
	Ban(ctx context.Context, name, reason, bannedBy string) error
	Unban(ctx context.Context, name string) error
}

// StatusProvider contributes host-specific fields to status snapshots.
type StatusProvider interface {
	Status(ctx context.Context) map[string]any
}

// StatusFunc adapts a function to StatusProvider.
type StatusFunc func(ctx context.Context) map[string]any

func (f StatusFunc) Status(ctx context.Context) map[string]any {
	return f(ctx)
}

// AuditRecorder receives one entry per command forwarded to the backend.
// Record must not block.
type AuditRecorder interface {
	Record(entry *models.AuditEntry)
}
