package command

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"rconhub/internal/config"
	"rconhub/internal/microservices/rcon"
)

const (
	testPassword = "letmein"
	testSecret   = "0123456789abcdef0123456789abcdef"
)

func startServer(t *testing.T) string {
	t.Helper()
	cfg := &config.Config{
		Host:            "127.0.0.1",
		TCPEnabled:      true,
		WSEnabled:       true,
		MaxConnections:  4,
		ShutdownTimeout: 2 * time.Second,
		AuthMode:        config.AuthPacket,
		Password:        testPassword,
		TokenSecret:     testSecret,
		TokenTTL:        time.Minute,
		ServerName:      "ctltest",
	}
	srv := rcon.NewServer(config.NewStore(cfg, nil), rcon.Options{
		Backend: rcon.BackendFunc(func(_ context.Context, line string) (string, bool) {
			return line, line != "fail"
		}),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })
	return "tcp://" + srv.TCPAddr().String()
}

func run(args ...string) error {
	// flags are package globals; start every run from the defaults
	password, accountName, urlPassword, verbose = "", "", false, false
	rootCmd.SetArgs(args)
	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)
	return rootCmd.Execute()
}

func TestCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"exec", "watch", "login", "logout", "config", "account", "audit"} {
		assert.True(t, names[want], "missing %s", want)
	}
}

func TestExec(t *testing.T) {
	server := startServer(t)

	assert.NoError(t, run("--server", server, "--password", testPassword, "exec", "say", "hi"))
	assert.Error(t, run("--server", server, "--password", testPassword, "exec", "fail"))
	assert.ErrorContains(t, run("--server", server, "--password", "wrong", "exec", "status"), "rejected")
	assert.NoError(t, run("--server", server, "config"))
}

func TestLoginThenExecWithStoredToken(t *testing.T) {
	keyring.MockInit()
	server := startServer(t)

	assert.ErrorContains(t, run("--server", server, "exec", "status"), "not logged in")

	require.NoError(t, run("--server", server, "--password", testPassword, "login"))
	assert.NoError(t, run("--server", server, "exec", "status"))

	require.NoError(t, run("--server", server, "logout"))
	assert.ErrorContains(t, run("--server", server, "exec", "status"), "not logged in")
}
