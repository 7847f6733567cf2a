// Package backend provides the command backend used when the server runs
// standalone, without a host application behind it.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Announcer pushes a console message to connected operators.
type Announcer func(text string) int

type handler func(ctx context.Context, args []string) (string, bool)

// Console is a small built-in command set: echo, say, time, uptime and
// version.
type Console struct {
	name      string
	version   string
	startedAt time.Time
	announce  Announcer
	now       func() time.Time
	logger    *slog.Logger
	handlers  map[string]handler
}

// NewConsole builds the console. announce may be nil, in which case say
// only logs.
func NewConsole(name, version string, announce Announcer, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Console{
		name:      name,
		version:   version,
		startedAt: time.Now(),
		announce:  announce,
		now:       time.Now,
		logger:    logger,
	}
	c.handlers = map[string]handler{
		"echo":    c.echo,
		"say":     c.say,
		"time":    c.time,
		"uptime":  c.uptime,
		"version": c.versionCmd,
	}
	return c
}

// Execute runs one command line.
func (c *Console) Execute(ctx context.Context, commandLine string) (string, bool) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return "empty command", false
	}
	h, ok := c.handlers[strings.ToLower(fields[0])]
	if !ok {
		return fmt.Sprintf("unknown command: %s", fields[0]), false
	}
	return h(ctx, fields[1:])
}

// Commands lists the console commands for help.
func (c *Console) Commands() []string {
	names := make([]string, 0, len(c.handlers))
	for name := range c.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Console) echo(_ context.Context, args []string) (string, bool) {
	return strings.Join(args, " "), true
}

func (c *Console) say(_ context.Context, args []string) (string, bool) {
	if len(args) == 0 {
		return "usage: say <message>", false
	}
	text := strings.Join(args, " ")
	c.logger.Info("console_say", "text", text)
	if c.announce == nil {
		return "said: " + text, true
	}
	n := c.announce("[console] " + text)
	return fmt.Sprintf("said to %d operators: %s", n, text), true
}

func (c *Console) time(_ context.Context, _ []string) (string, bool) {
	return c.now().UTC().Format(time.RFC3339), true
}

func (c *Console) uptime(_ context.Context, _ []string) (string, bool) {
	up := c.now().Sub(c.startedAt).Truncate(time.Second)
	return fmt.Sprintf("%s up %s", c.name, up), true
}

func (c *Console) versionCmd(_ context.Context, _ []string) (string, bool) {
	return fmt.Sprintf("%s %s", c.name, c.version), true
}
