package rcon

import (
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"rconhub/internal/protocol"
)

// TransportKind names the wire a session arrived on.
type TransportKind string

const (
	TransportTCP       TransportKind = "tcp"
	TransportWebSocket TransportKind = "websocket"
)

// Close codes. TCP has no close frame and ignores them.
const (
	CloseNormal      = websocket.CloseNormalClosure
	ClosePolicy      = websocket.ClosePolicyViolation
	closeControlWait = time.Second
	WriteWait        = 5 * time.Second
)

// Transport frames whole messages over one connection. ReadMessage is only
// called from the session read loop and WriteMessage only from its writer
// goroutine. Close may be called from anywhere.
type Transport interface {
	Kind() TransportKind
	RemoteAddr() string
	// ReadMessage returns the next message. A clean remote close is io.EOF.
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	Close(code int, reason string) error
}

// tcpTransport carries newline-delimited JSON.
type tcpTransport struct {
	conn   net.Conn
	reader *protocol.LineReader
}

func newTCPTransport(conn net.Conn) *tcpTransport {
	return &tcpTransport{conn: conn, reader: protocol.NewLineReader(conn)}
}

func (t *tcpTransport) Kind() TransportKind { return TransportTCP }

func (t *tcpTransport) RemoteAddr() string { return t.conn.RemoteAddr().String() }

func (t *tcpTransport) ReadMessage() ([]byte, error) {
	return t.reader.ReadLine()
}

func (t *tcpTransport) WriteMessage(data []byte, deadline time.Time) error {
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	frame := make([]byte, 0, len(data)+1)
	frame = protocol.AppendFrame(append(frame, data...))
	_, err := t.conn.Write(frame)
	return err
}

func (t *tcpTransport) SetReadDeadline(d time.Time) error {
	return t.conn.SetReadDeadline(d)
}

func (t *tcpTransport) Close(_ int, _ string) error {
	return t.conn.Close()
}

// wsTransport carries one JSON object per text frame.
type wsTransport struct {
	conn       *websocket.Conn
	remoteAddr string
}

func newWSTransport(conn *websocket.Conn, remoteAddr string) *wsTransport {
	conn.SetReadLimit(protocol.MaxMessageSize)
	if remoteAddr == "" {
		remoteAddr = conn.RemoteAddr().String()
	}
	return &wsTransport{conn: conn, remoteAddr: remoteAddr}
}

func (t *wsTransport) Kind() TransportKind { return TransportWebSocket }

func (t *wsTransport) RemoteAddr() string { return t.remoteAddr }

// ReadMessage skips binary frames. gorilla answers a close frame itself;
// it surfaces here as io.EOF.
func (t *wsTransport) ReadMessage() ([]byte, error) {
	for {
		mt, data, err := t.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return nil, io.EOF
			}
			return nil, err
		}
		if mt == websocket.TextMessage {
			return data, nil
		}
	}
}

func (t *wsTransport) WriteMessage(data []byte, deadline time.Time) error {
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) SetReadDeadline(d time.Time) error {
	return t.conn.SetReadDeadline(d)
}

func (t *wsTransport) Close(code int, reason string) error {
	msg := websocket.FormatCloseMessage(code, reason)
	// ErrCloseSent when the peer already closed
	_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeControlWait))
	return t.conn.Close()
}

// isClosedConnError matches errors read loops see when the connection was
// closed underneath them.
func isClosedConnError(err error) bool {
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, websocket.ErrCloseSent) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "closed network connection") ||
		strings.Contains(msg, "connection was aborted") ||
		strings.Contains(msg, "forcibly closed") ||
		strings.Contains(msg, "connection reset by peer")
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
