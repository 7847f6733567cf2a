package rcon

import "errors"

var (
	ErrCapacity              = errors.New("server is at capacity")
	ErrAuthFailed            = errors.New("authentication failed")
	ErrNotAuthenticated      = errors.New("must authenticate first")
	ErrAlreadyAuthenticated  = errors.New("already authenticated")
	ErrWrongAuthMode         = errors.New("authentication method not available in this mode")
	ErrUnknownAccount        = errors.New("unknown account")
	ErrInsufficientPrivilege = errors.New("insufficient privilege")
	ErrBanned                = errors.New("account is banned")
	ErrAccountsUnavailable   = errors.New("account store is not configured")
	ErrSessionClosed         = errors.New("session closed")
	ErrSendTimeout           = errors.New("send queue full")
	ErrServerRunning         = errors.New("server already running")
)
