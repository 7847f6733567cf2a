package hub

import (
	"fmt"
	"log/slog"
	"time"

	"rconhub/internal/config"
	"rconhub/internal/protocol"
)

// Event is anything the hub can push to authenticated sessions.
type Event interface {
	// Detail names the AutoDetail kind that gates this event.
	Detail() string
	// Response renders the event as an unsolicited response.
	Response() *protocol.Response
}

// LogLevel is the severity of a broadcast log line.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// LevelFromSlog maps a slog level onto the four broadcast levels.
func LevelFromSlog(l slog.Level) LogLevel {
	switch {
	case l >= slog.LevelError:
		return LevelError
	case l >= slog.LevelWarn:
		return LevelWarn
	case l >= slog.LevelInfo:
		return LevelInfo
	default:
		return LevelDebug
	}
}

func (l LogLevel) status() protocol.Status {
	switch l {
	case LevelDebug:
		return protocol.StatusLogDebug
	case LevelWarn:
		return protocol.StatusLogWarn
	case LevelError:
		return protocol.StatusLogError
	default:
		return protocol.StatusLogInfo
	}
}

// LogLine is one line from the host's log sink.
type LogLine struct {
	Level LogLevel `json:"level"`
	Text  string   `json:"text"`
}

func (e LogLine) Detail() string { return config.DetailLogs }

func (e LogLine) Response() *protocol.Response {
	return &protocol.Response{
		Identifier: protocol.BroadcastIdentifier,
		Status:     e.Level.status(),
		Message:    e.Text,
	}
}

// PlayerEventKind distinguishes joins from leaves.
type PlayerEventKind string

const (
	PlayerLogin  PlayerEventKind = "login"
	PlayerLogoff PlayerEventKind = "logoff"
)

// PlayerEvent reports a player joining or leaving the host.
type PlayerEvent struct {
	Kind        PlayerEventKind `json:"kind"`
	Name        string          `json:"name"`
	ID          string          `json:"id"`
	Level       int             `json:"level"`
	Location    string          `json:"location"`
	OnlineCount int             `json:"online_count"`
	WorldTime   string          `json:"world_time"`
}

func (e PlayerEvent) Detail() string { return config.DetailPlayers }

func (e PlayerEvent) Response() *protocol.Response {
	verb := "joined"
	if e.Kind == PlayerLogoff {
		verb = "left"
	}
	return &protocol.Response{
		Identifier: protocol.BroadcastIdentifier,
		Status:     protocol.StatusPlayerEvent,
		Message:    fmt.Sprintf("%s %s the server", e.Name, verb),
		Data: map[string]any{
			"Event":       string(e.Kind),
			"Name":        e.Name,
			"ID":          e.ID,
			"Level":       e.Level,
			"Location":    e.Location,
			"OnlineCount": e.OnlineCount,
			"WorldTime":   e.WorldTime,
		},
	}
}

// StatusSnapshot is a periodic or on-demand view of server state.
type StatusSnapshot struct {
	Fields  map[string]any `json:"fields"`
	TakenAt time.Time      `json:"taken_at"`
}

func (e StatusSnapshot) Detail() string { return config.DetailStatus }

func (e StatusSnapshot) Response() *protocol.Response {
	return &protocol.Response{
		Identifier: protocol.BroadcastIdentifier,
		Status:     protocol.StatusStatusUpdate,
		Message:    "status update",
		Data:       e.Fields,
	}
}
