package models

import "time"

// AuditEntry records one command forwarded to the command backend.
type AuditEntry struct {
	SessionID  int64     `json:"session_id"`
	Identity   string    `json:"identity"`
	Transport  string    `json:"transport"`
	RemoteAddr string    `json:"remote_addr"`
	Command    string    `json:"command"`
	Success    bool      `json:"success"`
	DurationMS int64     `json:"duration_ms"`
	ExecutedAt time.Time `json:"executed_at"`
}
