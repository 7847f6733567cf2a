package hub

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// LogHandler is a slog.Handler that turns records into LogLine broadcasts.
// Hosts attach it to the logger their game/console output goes through.
type LogHandler struct {
	hub   *Hub
	level slog.Leveler
	attrs []slog.Attr
	group string
}

// NewLogHandler publishes records at or above level through h.
func NewLogHandler(h *Hub, level slog.Leveler) *LogHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &LogHandler{hub: h, level: level}
}

func (l *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= l.level.Level()
}

func (l *LogHandler) Handle(ctx context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)

	for _, a := range l.attrs {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value.Any())
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", l.qualify(a.Key), a.Value.Any())
		return true
	})

	l.hub.Publish(ctx, LogLine{Level: LevelFromSlog(r.Level), Text: b.String()})
	return nil
}

// qualify prefixes key with the groups opened so far.
func (l *LogHandler) qualify(key string) string {
	if l.group == "" {
		return key
	}
	return l.group + "." + key
}

// WithAttrs qualifies attrs with the current groups now, so groups opened
// later do not apply to them.
func (l *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return l
	}
	next := *l
	next.attrs = make([]slog.Attr, 0, len(l.attrs)+len(attrs))
	next.attrs = append(next.attrs, l.attrs...)
	for _, a := range attrs {
		next.attrs = append(next.attrs, slog.Attr{Key: l.qualify(a.Key), Value: a.Value})
	}
	return &next
}

func (l *LogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return l
	}
	next := *l
	next.group = l.qualify(name)
	return &next
}
