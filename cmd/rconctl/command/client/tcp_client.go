package client

// tcp_client.go = newline-delimited JSON over a raw socket.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"rconhub/internal/protocol"
)

type tcpConn struct {
	conn   net.Conn
	reader *protocol.LineReader
	mu     sync.Mutex // guards writes
}

func dialTCP(ctx context.Context, addr, urlPassword string, timeout time.Duration) (*tcpConn, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	c := &tcpConn{conn: conn, reader: protocol.NewLineReader(conn)}

	// url_password mode: the first line is the password
	if urlPassword != "" {
		if err := c.send([]byte(urlPassword)); err != nil {
			conn.Close()
			return nil, fmt.Errorf("authentication failed: %w", err)
		}
	}
	return c, nil
}

func (c *tcpConn) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return err
	}
	_, err := c.conn.Write(protocol.AppendFrame(append([]byte(nil), data...)))
	return err
}

func (c *tcpConn) receive(deadline time.Time) ([]byte, error) {
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	line, err := c.reader.ReadLine()
	if errors.Is(err, io.EOF) {
		return nil, ErrClosed
	}
	return line, err
}

func (c *tcpConn) close() error {
	return c.conn.Close()
}
