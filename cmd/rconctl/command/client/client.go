package client

// client.go = the RCON JSON client shared by every rconctl command. The
// wire is either newline-delimited JSON over TCP or one JSON object per
// WebSocket text frame.

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"rconhub/internal/protocol"
)

var (
	// ErrRejected is returned when the server refuses authentication.
	ErrRejected = errors.New("server rejected authentication")
	// ErrClosed is returned once the server has hung up.
	ErrClosed = errors.New("connection closed by server")
)

type conn interface {
	send(data []byte) error
	// receive blocks until the next message or deadline; a zero deadline
	// waits forever.
	receive(deadline time.Time) ([]byte, error)
	close() error
}

// Options describe how to reach and authenticate with a server.
type Options struct {
	// Server is tcp://host:port, ws://host:port or wss://host:port.
	Server string
	// URLPassword is sent at connect time for servers in url_password mode.
	URLPassword string
	Timeout     time.Duration
}

// Client is one RCON session.
type Client struct {
	conn    conn
	nextID  int
	timeout time.Duration

	// OnBroadcast receives pushes that arrive while waiting for a reply.
	OnBroadcast func(*protocol.Response)
}

// Dial connects and, in url_password mode, authenticates.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	u, err := url.Parse(opts.Server)
	if err != nil {
		return nil, fmt.Errorf("invalid server address %q: %w", opts.Server, err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	var c conn
	switch u.Scheme {
	case "tcp":
		c, err = dialTCP(ctx, u.Host, opts.URLPassword, opts.Timeout)
	case "ws", "wss":
		c, err = dialWS(ctx, u, opts.URLPassword, opts.Timeout)
	default:
		return nil, fmt.Errorf("unsupported scheme %q (want tcp, ws or wss)", u.Scheme)
	}
	if err != nil {
		return nil, err
	}
	return &Client{conn: c, timeout: opts.Timeout}, nil
}

// Call runs one command and waits for its reply.
func (c *Client) Call(ctx context.Context, command string, args ...string) (*protocol.Response, error) {
	c.nextID++
	return c.roundTrip(ctx, &protocol.Request{Command: command, Args: args, Identifier: c.nextID})
}

// Auth sends an auth request. secret is a password or a session token;
// name selects an account and may be empty.
func (c *Client) Auth(ctx context.Context, name, secret string) (*protocol.Response, error) {
	c.nextID++
	req := &protocol.Request{Command: protocol.CmdAuth, Password: protocol.Str(secret), Identifier: c.nextID}
	if name != "" {
		req.Name = protocol.Str(name)
	}
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Status != protocol.StatusAuthenticated {
		return resp, fmt.Errorf("%w: %s", ErrRejected, resp.Message)
	}
	return resp, nil
}

// Next waits for the next message of any kind, for watch mode.
func (c *Client) Next() (*protocol.Response, error) {
	data, err := c.conn.receive(time.Time{})
	if err != nil {
		return nil, err
	}
	return protocol.DecodeResponse(data)
}

func (c *Client) Close() error {
	return c.conn.close()
}

func (c *Client) roundTrip(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	data, err := protocol.EncodeRequest(req)
	if err != nil {
		return nil, err
	}
	if err := c.conn.send(data); err != nil {
		return nil, fmt.Errorf("send failed: %w", err)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	for {
		raw, err := c.conn.receive(deadline)
		if err != nil {
			return nil, err
		}
		resp, err := protocol.DecodeResponse(raw)
		if err != nil {
			return nil, err
		}
		// -1 answers a request the server could not parse, which can only
		// be the one in flight
		if resp.Identifier == req.Identifier || resp.Identifier == protocol.ProtocolErrorIdentifier {
			return resp, nil
		}
		if c.OnBroadcast != nil {
			c.OnBroadcast(resp)
		}
	}
}
