package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rconhub/internal/models"
)

const auditSchema = `
CREATE TABLE IF NOT EXISTS rcon_command_audit (
	id          BIGSERIAL PRIMARY KEY,
	session_id  BIGINT      NOT NULL,
	identity    TEXT        NOT NULL DEFAULT '',
	transport   TEXT        NOT NULL,
	remote_addr TEXT        NOT NULL DEFAULT '',
	command     TEXT        NOT NULL,
	success     BOOLEAN     NOT NULL,
	duration_ms BIGINT      NOT NULL DEFAULT 0,
	executed_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS rcon_command_audit_executed_at_idx ON rcon_command_audit (executed_at DESC);
`

var auditColumns = []string{
	"session_id", "identity", "transport", "remote_addr",
	"command", "success", "duration_ms", "executed_at",
}

// AuditPostgresRepo stores the command audit trail.
type AuditPostgresRepo struct {
	pool *pgxpool.Pool
}

func NewAuditPostgresRepo(pool *pgxpool.Pool) *AuditPostgresRepo {
	return &AuditPostgresRepo{pool: pool}
}

// EnsureSchema creates the audit table if needed.
func (r *AuditPostgresRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, auditSchema); err != nil {
		return fmt.Errorf("failed to create audit schema: %w", err)
	}
	return nil
}

// BatchInsert copies a batch of entries in one round trip.
func (r *AuditPostgresRepo) BatchInsert(ctx context.Context, batch []*models.AuditEntry) error {
	if len(batch) == 0 {
		return nil
	}
	rows := pgx.CopyFromSlice(len(batch), func(i int) ([]any, error) {
		e := batch[i]
		return []any{
			e.SessionID, e.Identity, e.Transport, e.RemoteAddr,
			e.Command, e.Success, e.DurationMS, e.ExecutedAt,
		}, nil
	})
	n, err := r.pool.CopyFrom(ctx, pgx.Identifier{"rcon_command_audit"}, auditColumns, rows)
	if err != nil {
		return fmt.Errorf("failed to copy audit entries: %w", err)
	}
	if int(n) != len(batch) {
		return fmt.Errorf("copied %d of %d audit entries", n, len(batch))
	}
	return nil
}

// Recent returns the newest entries first.
func (r *AuditPostgresRepo) Recent(ctx context.Context, limit int) ([]*models.AuditEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT session_id, identity, transport, remote_addr, command, success, duration_ms, executed_at
		FROM rcon_command_audit
		ORDER BY executed_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(
			&e.SessionID, &e.Identity, &e.Transport, &e.RemoteAddr,
			&e.Command, &e.Success, &e.DurationMS, &e.ExecutedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (r *AuditPostgresRepo) Close() {
	r.pool.Close()
}
