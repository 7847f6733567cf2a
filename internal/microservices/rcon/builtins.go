package rcon

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"rconhub/internal/protocol"
)

type builtin struct {
	usage   string
	summary string
	run     func(ctx context.Context, sess *Session, req *protocol.Request) *protocol.Response
}

// CommandLister is implemented by backends that can list their commands
// for help.
type CommandLister interface {
	Commands() []string
}

func (d *Dispatcher) registerBuiltins() map[string]builtin {
	return map[string]builtin{
		protocol.CmdHello:   {usage: "hello", summary: "greet the server", run: d.hello},
		protocol.CmdStatus:  {usage: "status", summary: "server status snapshot", run: d.statusCmd},
		protocol.CmdPlayers: {usage: "players", summary: "list online players", run: d.players},
		protocol.CmdBanList: {usage: "banlist", summary: "list banned accounts", run: d.banList},
		protocol.CmdBanInfo: {usage: "baninfo <name>", summary: "show one ban", run: d.banInfo},
		protocol.CmdBan:     {usage: "ban <name> [reason...]", summary: "ban an account", run: d.ban},
		protocol.CmdUnban:   {usage: "unban <name>", summary: "lift a ban", run: d.unban},
		protocol.CmdHelp:    {usage: "help", summary: "list commands", run: d.help},
	}
}

func (d *Dispatcher) hello(_ context.Context, sess *Session, req *protocol.Request) *protocol.Response {
	cfg := d.cfg.Get()
	return protocol.NewResponse(req, protocol.StatusSuccess, fmt.Sprintf("Hello, %s!", sess.Identity())).
		WithData(map[string]any{"ServerName": cfg.ServerName, "Version": Version})
}

func (d *Dispatcher) statusCmd(ctx context.Context, _ *Session, req *protocol.Request) *protocol.Response {
	return protocol.NewResponse(req, protocol.StatusSuccess, d.cfg.Get().ServerName+" is running").
		WithData(d.Snapshot(ctx))
}

func (d *Dispatcher) players(_ context.Context, _ *Session, req *protocol.Request) *protocol.Response {
	list := d.hub.Roster().List()
	return protocol.NewResponse(req, protocol.StatusSuccess, fmt.Sprintf("%d players online", len(list))).
		WithData(map[string]any{"Players": list, "Count": len(list)})
}

func (d *Dispatcher) banList(ctx context.Context, _ *Session, req *protocol.Request) *protocol.Response {
	if d.bans == nil {
		return protocol.ErrorResponse(req, ErrAccountsUnavailable.Error())
	}
	bans, err := d.bans.ListBanned(ctx)
	if err != nil {
		return d.banError(req, "", err)
	}
	return protocol.NewResponse(req, protocol.StatusSuccess, fmt.Sprintf("%d banned accounts", len(bans))).
		WithData(map[string]any{"Bans": bans, "Count": len(bans)})
}

func (d *Dispatcher) banInfo(ctx context.Context, _ *Session, req *protocol.Request) *protocol.Response {
	if d.bans == nil {
		return protocol.ErrorResponse(req, ErrAccountsUnavailable.Error())
	}
	if len(req.Args) != 1 {
		return protocol.ErrorResponse(req, "usage: baninfo <name>")
	}
	name := req.Args[0]
	rec, err := d.bans.BanInfo(ctx, name)
	if err != nil {
		return d.banError(req, name, err)
	}
	if rec == nil {
		return protocol.NewResponse(req, protocol.StatusSuccess, name+" is not banned").
			WithData(map[string]any{"Banned": false})
	}
	msg := fmt.Sprintf("%s was banned by %s", rec.Name, rec.BannedBy)
	if rec.Reason != "" {
		msg += ": " + rec.Reason
	}
	return protocol.NewResponse(req, protocol.StatusSuccess, msg).
		WithData(map[string]any{"Banned": true, "Ban": rec})
}

func (d *Dispatcher) ban(ctx context.Context, sess *Session, req *protocol.Request) *protocol.Response {
	if d.bans == nil {
		return protocol.ErrorResponse(req, ErrAccountsUnavailable.Error())
	}
	if len(req.Args) < 1 {
		return protocol.ErrorResponse(req, "usage: ban <name> [reason...]")
	}
	name := req.Args[0]
	if strings.EqualFold(name, sess.Identity()) {
		return protocol.ErrorResponse(req, "cannot ban yourself")
	}
	reason := strings.Join(req.Args[1:], " ")
	if err := d.bans.Ban(ctx, name, reason, sess.Identity()); err != nil {
		return d.banError(req, name, err)
	}
	d.logger.Info("account_banned", "name", name, "banned_by", sess.Identity(), "reason", reason)
	return protocol.NewResponse(req, protocol.StatusSuccess, name+" banned")
}

func (d *Dispatcher) unban(ctx context.Context, sess *Session, req *protocol.Request) *protocol.Response {
	if d.bans == nil {
		return protocol.ErrorResponse(req, ErrAccountsUnavailable.Error())
	}
	if len(req.Args) != 1 {
		return protocol.ErrorResponse(req, "usage: unban <name>")
	}
	name := req.Args[0]
	if err := d.bans.Unban(ctx, name); err != nil {
		return d.banError(req, name, err)
	}
	d.logger.Info("account_unbanned", "name", name, "unbanned_by", sess.Identity())
	return protocol.NewResponse(req, protocol.StatusSuccess, name+" unbanned")
}

func (d *Dispatcher) banError(req *protocol.Request, name string, err error) *protocol.Response {
	if errors.Is(err, ErrUnknownAccount) {
		return protocol.ErrorResponse(req, "unknown account: "+name)
	}
	d.logger.Error("ban_store_failed", "command", req.Command, "name", name, "error", err)
	return protocol.ErrorResponse(req, "ban store unavailable")
}

func (d *Dispatcher) help(_ context.Context, _ *Session, req *protocol.Request) *protocol.Response {
	names := make([]string, 0, len(d.builtins))
	for name := range d.builtins {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	commands := make([]map[string]string, 0, len(names))
	for _, name := range names {
		bi := d.builtins[name]
		fmt.Fprintf(&b, "%s - %s\n", bi.usage, bi.summary)
		commands = append(commands, map[string]string{"Usage": bi.usage, "Summary": bi.summary})
	}

	data := map[string]any{"Commands": commands}
	if lister, ok := d.backend.(CommandLister); ok {
		backend := lister.Commands()
		sort.Strings(backend)
		data["Backend"] = backend
		if len(backend) > 0 {
			fmt.Fprintf(&b, "console: %s\n", strings.Join(backend, ", "))
		}
	}
	return protocol.NewResponse(req, protocol.StatusSuccess, strings.TrimRight(b.String(), "\n")).WithData(data)
}
