package client

// ws_client.go = one JSON object per WebSocket text frame.

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"rconhub/internal/protocol"
)

type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex // guards writes
}

func dialWS(ctx context.Context, u *url.URL, urlPassword string, timeout time.Duration) (*wsConn, error) {
	target := *u
	switch {
	case urlPassword != "":
		target.Path = "/" + urlPassword
		target.RawPath = "/" + url.PathEscape(urlPassword)
	case target.Path == "" || target.Path == "/":
		target.Path = protocol.PacketAuthPath
	}

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, resp, err := dialer.DialContext(ctx, target.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("connection failed: %w (HTTP %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	conn.SetReadLimit(protocol.MaxMessageSize)
	return &wsConn{conn: conn}, nil
}

func (c *wsConn) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) receive(deadline time.Time) ([]byte, error) {
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				if closeErr.Code == websocket.ClosePolicyViolation {
					return nil, fmt.Errorf("%w: %s", ErrRejected, closeErr.Text)
				}
				return nil, ErrClosed
			}
			return nil, err
		}
		if mt == websocket.TextMessage {
			return data, nil
		}
	}
}

func (c *wsConn) close() error {
	c.mu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.mu.Unlock()
	return c.conn.Close()
}
