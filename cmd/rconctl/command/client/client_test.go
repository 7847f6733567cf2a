package client

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rconhub/internal/config"
	"rconhub/internal/microservices/hub"
	"rconhub/internal/microservices/rcon"
	"rconhub/internal/protocol"
)

const password = "s3cret pw"

func startServer(t *testing.T, mode config.AuthMode) *rcon.Server {
	t.Helper()
	cfg := &config.Config{
		Host:            "127.0.0.1",
		TCPEnabled:      true,
		WSEnabled:       true,
		MaxConnections:  4,
		ShutdownTimeout: 2 * time.Second,
		AuthMode:        mode,
		Password:        password,
		TokenTTL:        time.Minute,
		AutoDetail:      []string{config.DetailLogs, config.DetailPlayers, config.DetailStatus},
		ServerName:      "clienttest",
	}
	require.NoError(t, cfg.Validate())
	srv := rcon.NewServer(config.NewStore(cfg, nil), rcon.Options{
		Backend: rcon.BackendFunc(func(_ context.Context, line string) (string, bool) { return "ok: " + line, true }),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })
	return srv
}

func TestClient_PacketAuth(t *testing.T) {
	srv := startServer(t, config.AuthPacket)
	ctx := context.Background()

	for _, server := range []string{
		"tcp://" + srv.TCPAddr().String(),
		"ws://" + srv.WSAddr().String(),
	} {
		t.Run(server[:3], func(t *testing.T) {
			c, err := Dial(ctx, Options{Server: server, Timeout: 3 * time.Second})
			require.NoError(t, err)
			defer c.Close()

			resp, err := c.Call(ctx, "config")
			require.NoError(t, err)
			assert.Equal(t, "clienttest", resp.Data["ServerName"])

			_, err = c.Auth(ctx, "", "wrong")
			assert.ErrorIs(t, err, ErrRejected)

			resp, err = c.Auth(ctx, "", password)
			require.NoError(t, err)
			assert.Equal(t, protocol.StatusAuthenticated, resp.Status)

			resp, err = c.Call(ctx, "kick", "bob")
			require.NoError(t, err)
			assert.Equal(t, "ok: kick bob", resp.Message)
		})
	}
}

func TestClient_URLPassword(t *testing.T) {
	srv := startServer(t, config.AuthURLPassword)
	ctx := context.Background()

	for _, server := range []string{
		"tcp://" + srv.TCPAddr().String(),
		"ws://" + srv.WSAddr().String(),
	} {
		t.Run(server[:3], func(t *testing.T) {
			c, err := Dial(ctx, Options{Server: server, URLPassword: password, Timeout: 3 * time.Second})
			require.NoError(t, err)
			defer c.Close()

			resp, err := c.Call(ctx, "hello")
			require.NoError(t, err)
			assert.Equal(t, "Hello, rcon!", resp.Message)
		})
	}

	c, err := Dial(ctx, Options{Server: "ws://" + srv.WSAddr().String(), URLPassword: "nope", Timeout: 3 * time.Second})
	require.NoError(t, err)
	defer c.Close()
	_, err = c.Next()
	assert.ErrorIs(t, err, ErrRejected)
}

func TestClient_BroadcastsWhileWaiting(t *testing.T) {
	srv := startServer(t, config.AuthPacket)
	ctx := context.Background()

	c, err := Dial(ctx, Options{Server: "tcp://" + srv.TCPAddr().String(), Timeout: 3 * time.Second})
	require.NoError(t, err)
	defer c.Close()
	_, err = c.Auth(ctx, "", password)
	require.NoError(t, err)

	var pushed []*protocol.Response
	c.OnBroadcast = func(r *protocol.Response) { pushed = append(pushed, r) }

	require.Eventually(t, func() bool { return srv.Hub().AuthenticatedCount() == 1 }, 3*time.Second, 10*time.Millisecond)
	srv.Log(hub.LevelInfo, "map changed")

	resp, err := c.Call(ctx, "status")
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusSuccess, resp.Status)
	require.Len(t, pushed, 1)
	assert.Equal(t, "map changed", pushed[0].Message)
}

func TestDial_BadScheme(t *testing.T) {
	_, err := Dial(context.Background(), Options{Server: "http://localhost:1"})
	assert.ErrorContains(t, err, "unsupported scheme")
}

func TestPrintResponse(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer

	PrintResponse(&buf, &protocol.Response{Identifier: 1, Command: "status", Status: protocol.StatusSuccess, Message: "up",
		Data: map[string]any{"B": 2, "A": "x"}}, true)
	PrintResponse(&buf, &protocol.Response{Status: protocol.StatusLogWarn, Message: "hot"}, false)

	assert.Equal(t, "✓ up\n  A: x\n  B: 2\n» ⚠ hot\n", buf.String())
}
