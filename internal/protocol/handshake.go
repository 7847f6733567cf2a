package protocol

import (
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// websocketGUID is the magic value RFC 6455 appends to the client key.
const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// SupportedWebSocketVersion is the only protocol version accepted.
const SupportedWebSocketVersion = "13"

// PacketAuthPath is the upgrade path used when clients authenticate with an
// auth request instead of a password in the URL.
const PacketAuthPath = "/rcon"

var ErrBadHandshake = errors.New("bad websocket handshake")

// AcceptKey computes Sec-WebSocket-Accept for a client Sec-WebSocket-Key.
func AcceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte(websocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// headerHasToken reports whether a comma separated header contains token,
// compared case-insensitively.
func headerHasToken(h http.Header, name, token string) bool {
	for _, v := range h.Values(name) {
		for _, part := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(part), token) {
				return true
			}
		}
	}
	return false
}

// IsUpgradeRequest detects "Upgrade: websocket" together with
// "Connection: Upgrade".
func IsUpgradeRequest(h http.Header) bool {
	return headerHasToken(h, "Upgrade", "websocket") && headerHasToken(h, "Connection", "upgrade")
}

// ValidateUpgrade checks the client half of the opening handshake and
// returns the Sec-WebSocket-Accept value the server must answer with.
func ValidateUpgrade(r *http.Request) (string, error) {
	if r.Method != http.MethodGet {
		return "", fmt.Errorf("%w: method %s", ErrBadHandshake, r.Method)
	}
	if !IsUpgradeRequest(r.Header) {
		return "", fmt.Errorf("%w: missing upgrade headers", ErrBadHandshake)
	}
	if v := r.Header.Get("Sec-WebSocket-Version"); v != SupportedWebSocketVersion {
		return "", fmt.Errorf("%w: unsupported version %q", ErrBadHandshake, v)
	}
	key := strings.TrimSpace(r.Header.Get("Sec-WebSocket-Key"))
	if key == "" {
		return "", fmt.Errorf("%w: missing Sec-WebSocket-Key", ErrBadHandshake)
	}
	if raw, err := base64.StdEncoding.DecodeString(key); err != nil || len(raw) != 16 {
		return "", fmt.Errorf("%w: malformed Sec-WebSocket-Key", ErrBadHandshake)
	}
	return AcceptKey(key), nil
}

// PathCredential extracts the password segment from an upgrade path such
// as "/hunter2". Percent-encoding is undone.
func PathCredential(path string) (string, error) {
	trimmed := strings.TrimPrefix(path, "/")
	if trimmed == "" || strings.Contains(trimmed, "/") {
		return "", fmt.Errorf("%w: path must be a single segment", ErrBadHandshake)
	}
	cred, err := url.PathUnescape(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadHandshake, err)
	}
	return cred, nil
}
