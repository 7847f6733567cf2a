package rcon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"rconhub/internal/config"
	"rconhub/internal/microservices/hub"
	"rconhub/internal/middleware/auth"
	"rconhub/internal/models"
	"rconhub/internal/protocol"
)

const (
	testPassword = "hunter2"
	testSecret   = "0123456789abcdef0123456789abcdef"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func testConfig(mutate func(c *config.Config)) *config.Config {
	c := &config.Config{
		Host:            "127.0.0.1",
		TCPEnabled:      true,
		WSEnabled:       true,
		MaxConnections:  8,
		ShutdownTimeout: 2 * time.Second,
		AuthMode:        config.AuthPacket,
		Password:        testPassword,
		TokenTTL:        time.Minute,
		AutoDetail:      []string{config.DetailLogs, config.DetailPlayers, config.DetailStatus},
		ServerName:      "testhost",
	}
	if mutate != nil {
		mutate(c)
	}
	return c
}

// memTransport is a Transport that only records writes.
type memTransport struct {
	kind TransportKind

	mu        sync.Mutex
	written   [][]byte
	closed    bool
	closeCode int
}

func (m *memTransport) Kind() TransportKind             { return m.kind }
func (m *memTransport) RemoteAddr() string              { return "10.0.0.1:5000" }
func (m *memTransport) ReadMessage() ([]byte, error)    { return nil, io.EOF }
func (m *memTransport) SetReadDeadline(time.Time) error { return nil }

func (m *memTransport) WriteMessage(data []byte, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return io.ErrClosedPipe
	}
	m.written = append(m.written, data)
	return nil
}

func (m *memTransport) Close(code int, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.closeCode = code
	return nil
}

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) Execute(ctx context.Context, line string) (string, bool) {
	args := m.Called(ctx, line)
	return args.String(0), args.Bool(1)
}

type listingBackend struct {
	BackendFunc
	commands []string
}

func (l listingBackend) Commands() []string { return l.commands }

type fakeIdentity struct {
	name     string
	password string
	level    int
}

func (f fakeIdentity) Name() string                 { return f.name }
func (f fakeIdentity) CheckPassword(pw string) bool { return pw == f.password }
func (f fakeIdentity) PrivilegeLevel() int          { return f.level }

type fakeIdentities map[string]fakeIdentity

func (f fakeIdentities) Lookup(_ context.Context, name string) (Identity, error) {
	ident, ok := f[strings.ToLower(name)]
	if !ok {
		return nil, ErrUnknownAccount
	}
	return ident, nil
}

// fakeBans keeps bans in memory for accounts it knows about.
type fakeBans struct {
	mu      sync.Mutex
	known   map[string]bool
	banned  map[string]BanRecord
	failing bool
}

func newFakeBans(names ...string) *fakeBans {
	b := &fakeBans{known: make(map[string]bool), banned: make(map[string]BanRecord)}
	for _, n := range names {
		b.known[n] = true
	}
	return b
}

func (b *fakeBans) ListBanned(context.Context) ([]BanRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failing {
		return nil, errors.New("connection refused")
	}
	out := make([]BanRecord, 0, len(b.banned))
	for _, rec := range b.banned {
		out = append(out, rec)
	}
	return out, nil
}

func (b *fakeBans) BanInfo(_ context.Context, name string) (*BanRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.known[name] {
		return nil, ErrUnknownAccount
	}
	rec, ok := b.banned[name]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (b *fakeBans) Ban(_ context.Context, name, reason, by string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failing {
		return errors.New("connection refused")
	}
	if !b.known[name] {
		return ErrUnknownAccount
	}
	b.banned[name] = BanRecord{Name: name, Reason: reason, BannedBy: by, BannedAt: time.Now()}
	return nil
}

func (b *fakeBans) Unban(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.known[name] {
		return ErrUnknownAccount
	}
	delete(b.banned, name)
	return nil
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []*models.AuditEntry
}

func (r *recordingAudit) Record(e *models.AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

type fixture struct {
	store *config.Store
	hub   *hub.Hub
	d     *Dispatcher
}

func newFixture(t *testing.T, mutate func(c *config.Config), deps DispatcherDeps, identities IdentityStore) *fixture {
	t.Helper()
	store := config.NewStore(testConfig(mutate), nil)
	require.NoError(t, store.Get().Validate())
	h := hub.New(store, discardLogger)

	deps.Config = store
	deps.Hub = h
	deps.Auth = NewAuthStrategy(store, identities, deps.Bans, discardLogger)
	deps.Logger = discardLogger
	return &fixture{store: store, hub: h, d: NewDispatcher(deps)}
}

func (f *fixture) session(t *testing.T, limiter *rate.Limiter) *Session {
	t.Helper()
	sess := newSession(1, &memTransport{kind: TransportTCP}, limiter, discardLogger)
	t.Cleanup(func() { sess.Close("test over") })
	return sess
}

func (f *fixture) call(t *testing.T, sess *Session, req protocol.Request) (*protocol.Response, bool) {
	t.Helper()
	data, err := protocol.EncodeRequest(&req)
	require.NoError(t, err)
	return f.d.Handle(context.Background(), sess, data)
}

func authReq(id int, password string) protocol.Request {
	return protocol.Request{Command: "auth", Password: protocol.Str(password), Identifier: id}
}

func (f *fixture) authenticate(t *testing.T, sess *Session) {
	t.Helper()
	resp, _ := f.call(t, sess, authReq(1, testPassword))
	require.Equal(t, protocol.StatusAuthenticated, resp.Status, resp.Message)
}

func TestHandle_DecodeErrors(t *testing.T) {
	f := newFixture(t, nil, DispatcherDeps{}, nil)
	sess := f.session(t, nil)

	tests := []struct {
		name    string
		payload string
		message string
	}{
		{"not json", "hello there", "invalid request"},
		{"empty object", "{}", "missing Command"},
		{"blank command", `{"Command":"  ","Identifier":4}`, "missing Command"},
		{"wrong type", `{"Command":7}`, "invalid request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, closeSession := f.d.Handle(context.Background(), sess, []byte(tt.payload))
			assert.False(t, closeSession)
			assert.Equal(t, protocol.ProtocolErrorIdentifier, resp.Identifier)
			assert.Equal(t, protocol.StatusError, resp.Status)
			assert.Equal(t, tt.message, resp.Message)
		})
	}
}

func TestHandle_ConfigBeforeAuth(t *testing.T) {
	f := newFixture(t, nil, DispatcherDeps{}, nil)
	sess := f.session(t, nil)

	resp, _ := f.call(t, sess, protocol.Request{Command: "Config", Identifier: 9})
	assert.Equal(t, protocol.StatusSuccess, resp.Status)
	assert.Equal(t, 9, resp.Identifier)
	assert.Equal(t, "Config", resp.Command)
	assert.Equal(t, string(config.AuthPacket), resp.Data["AuthMode"])
	assert.Equal(t, Version, resp.Data["Version"])
	assert.NotContains(t, resp.Data, "Password")
	assert.False(t, sess.IsAuthenticated())
}

func TestHandle_UnauthenticatedNeverReachesBackend(t *testing.T) {
	backend := &mockBackend{}
	f := newFixture(t, nil, DispatcherDeps{Backend: backend}, nil)
	sess := f.session(t, nil)

	for _, cmd := range []string{"status", "say", "hello", "ban"} {
		resp, _ := f.call(t, sess, protocol.Request{Command: cmd, Args: []string{"x"}, Identifier: 2})
		assert.Equal(t, protocol.StatusError, resp.Status)
		assert.Equal(t, ErrNotAuthenticated.Error(), resp.Message)
		assert.Equal(t, 2, resp.Identifier)
	}
	backend.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)

	f.authenticate(t, sess)
	backend.On("Execute", mock.Anything, "say x").Return("said x", true).Once()
	resp, _ := f.call(t, sess, protocol.Request{Command: "say", Args: []string{"x"}, Identifier: 3})
	assert.Equal(t, protocol.StatusSuccess, resp.Status)
	assert.Equal(t, "said x", resp.Message)
	backend.AssertExpectations(t)
}

func TestHandle_PacketAuthSharedPassword(t *testing.T) {
	var logins []Principal
	f := newFixture(t, func(c *config.Config) { c.MinPrivilegeLevel = 2 }, DispatcherDeps{
		OnLogin: func(_ context.Context, p Principal) { logins = append(logins, p) },
	}, nil)
	sess := f.session(t, nil)

	resp, closeSession := f.call(t, sess, authReq(5, "nope"))
	assert.False(t, closeSession)
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Equal(t, ErrAuthFailed.Error(), resp.Message)
	assert.False(t, sess.IsAuthenticated())

	resp, _ = f.call(t, sess, protocol.Request{Command: "auth", Identifier: 6})
	assert.Equal(t, ErrAuthFailed.Error(), resp.Message)

	resp, _ = f.call(t, sess, authReq(7, testPassword))
	assert.Equal(t, protocol.StatusAuthenticated, resp.Status)
	assert.Equal(t, 7, resp.Identifier)
	assert.Equal(t, "authenticated as rcon", resp.Message)
	assert.Equal(t, "testhost", resp.Data["ServerName"])
	assert.NotContains(t, resp.Data, "Token")
	assert.True(t, sess.IsAuthenticated())
	require.NotNil(t, sess.Principal())
	assert.Equal(t, 2, sess.Principal().Level)
	assert.Equal(t, "password", sess.Principal().Method)

	require.Len(t, logins, 1)
	assert.Equal(t, "rcon", logins[0].Name)

	resp, _ = f.call(t, sess, authReq(8, testPassword))
	assert.Equal(t, ErrAlreadyAuthenticated.Error(), resp.Message)
}

func TestHandle_AuthNotAvailableInURLMode(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.AuthMode = config.AuthURLPassword }, DispatcherDeps{}, nil)
	sess := f.session(t, nil)

	resp, _ := f.call(t, sess, authReq(1, testPassword))
	assert.Equal(t, ErrNotAuthenticated.Error(), resp.Message)
	assert.False(t, sess.IsAuthenticated())
}

func TestHandle_AccountAuth(t *testing.T) {
	identities := fakeIdentities{
		"alice": {name: "alice", password: "wonderland", level: 5},
		"bob":   {name: "bob", password: "builder", level: 1},
		"eve":   {name: "eve", password: "apple", level: 5},
	}
	bans := newFakeBans("alice", "bob", "eve")
	require.NoError(t, bans.Ban(context.Background(), "eve", "griefing", "alice"))

	f := newFixture(t, func(c *config.Config) { c.MinPrivilegeLevel = 3 }, DispatcherDeps{Bans: bans}, identities)

	tests := []struct {
		name     string
		user     string
		password string
		status   protocol.Status
		message  string
	}{
		{"ok", "alice", "wonderland", protocol.StatusAuthenticated, "authenticated as alice"},
		{"case insensitive name", "ALICE", "wonderland", protocol.StatusAuthenticated, "authenticated as alice"},
		{"wrong password", "alice", "nope", protocol.StatusError, ErrAuthFailed.Error()},
		{"unknown account", "mallory", "x", protocol.StatusError, ErrAuthFailed.Error()},
		{"shared password is not an account password", "alice", testPassword, protocol.StatusError, ErrAuthFailed.Error()},
		{"low privilege", "bob", "builder", protocol.StatusError, "authentication failed: " + ErrInsufficientPrivilege.Error()},
		{"banned", "eve", "apple", protocol.StatusError, "authentication failed: " + ErrBanned.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := f.session(t, nil)
			req := authReq(1, tt.password)
			req.Name = protocol.Str(tt.user)
			resp, _ := f.call(t, sess, req)
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, tt.message, resp.Message)
			assert.Equal(t, tt.status == protocol.StatusAuthenticated, sess.IsAuthenticated())
		})
	}
}

func TestHandle_MaxAuthFailures(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.MaxAuthFailures = 3 }, DispatcherDeps{}, nil)
	sess := f.session(t, nil)

	for i := 1; i <= 2; i++ {
		_, closeSession := f.call(t, sess, authReq(i, "bad"))
		assert.False(t, closeSession, "attempt %d", i)
	}
	resp, closeSession := f.call(t, sess, authReq(3, "bad"))
	assert.True(t, closeSession)
	assert.Equal(t, protocol.StatusError, resp.Status)
}

func TestHandle_FailuresResetOnSuccess(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.MaxAuthFailures = 2 }, DispatcherDeps{}, nil)
	sess := f.session(t, nil)

	_, closeSession := f.call(t, sess, authReq(1, "bad"))
	require.False(t, closeSession)
	f.authenticate(t, sess)
	assert.Equal(t, 0, sess.authFailures)
}

func TestHandle_TokenIssueAndReauth(t *testing.T) {
	identities := fakeIdentities{"alice": {name: "alice", password: "wonderland", level: 4}}
	bans := newFakeBans("alice")
	f := newFixture(t, func(c *config.Config) { c.TokenSecret = testSecret }, DispatcherDeps{Bans: bans}, identities)

	first := f.session(t, nil)
	req := authReq(1, "wonderland")
	req.Name = protocol.Str("alice")
	resp, _ := f.call(t, first, req)
	require.Equal(t, protocol.StatusAuthenticated, resp.Status)
	token, ok := resp.Data["Token"].(string)
	require.True(t, ok, "auth reply carries a token")
	assert.EqualValues(t, 60, resp.Data["TokenExpiresIn"])

	second := f.session(t, nil)
	resp, _ = f.call(t, second, authReq(2, token))
	require.Equal(t, protocol.StatusAuthenticated, resp.Status, resp.Message)
	assert.Equal(t, "authenticated as alice", resp.Message)
	assert.NotContains(t, resp.Data, "Token")
	assert.Equal(t, "token", second.Principal().Method)
	assert.Equal(t, 4, second.Principal().Level)

	// an account banned after the token was issued loses access
	require.NoError(t, bans.Ban(context.Background(), "alice", "", "root"))
	third := f.session(t, nil)
	resp, _ = f.call(t, third, authReq(3, token))
	assert.Equal(t, "authentication failed: "+ErrBanned.Error(), resp.Message)
}

func TestHandle_TokenRespectsRaisedPrivilegeFloor(t *testing.T) {
	identities := fakeIdentities{"alice": {name: "alice", password: "wonderland", level: 2}}
	f := newFixture(t, func(c *config.Config) { c.TokenSecret = testSecret }, DispatcherDeps{}, identities)

	req := authReq(1, "wonderland")
	req.Name = protocol.Str("alice")
	resp, _ := f.call(t, f.session(t, nil), req)
	require.Equal(t, protocol.StatusAuthenticated, resp.Status, resp.Message)
	token := resp.Data["Token"].(string)

	raised := *f.store.Get()
	raised.MinPrivilegeLevel = 5
	require.NoError(t, f.store.Replace(&raised))

	resp, _ = f.call(t, f.session(t, nil), req)
	assert.Equal(t, "authentication failed: "+ErrInsufficientPrivilege.Error(), resp.Message)

	sess := f.session(t, nil)
	resp, _ = f.call(t, sess, authReq(2, token))
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Equal(t, "authentication failed: "+ErrInsufficientPrivilege.Error(), resp.Message)
	assert.False(t, sess.IsAuthenticated())
}

func TestHandle_ForeignTokenRejected(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.TokenSecret = testSecret }, DispatcherDeps{}, nil)
	other := auth.NewTokenManager(strings.Repeat("x", 32), time.Minute)
	token, err := other.Issue("rcon", 9, "password")
	require.NoError(t, err)

	sess := f.session(t, nil)
	resp, _ := f.call(t, sess, authReq(1, token))
	assert.Equal(t, ErrAuthFailed.Error(), resp.Message)
}

func TestHandle_RateLimit(t *testing.T) {
	f := newFixture(t, nil, DispatcherDeps{}, nil)
	sess := f.session(t, rate.NewLimiter(rate.Every(time.Hour), 2))

	resp, _ := f.call(t, sess, protocol.Request{Command: "config", Identifier: 1})
	assert.Equal(t, protocol.StatusSuccess, resp.Status)
	resp, _ = f.call(t, sess, protocol.Request{Command: "config", Identifier: 2})
	assert.Equal(t, protocol.StatusSuccess, resp.Status)
	f.authenticate(t, sess)
	resp, _ = f.call(t, sess, protocol.Request{Command: "hello", Identifier: 3})
	assert.Equal(t, protocol.StatusSuccess, resp.Status)
	resp, _ = f.call(t, sess, protocol.Request{Command: "hello", Identifier: 4})
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Equal(t, "rate limit exceeded", resp.Message)
	assert.Equal(t, 4, resp.Identifier)

	// config stays answerable once the bucket is empty
	for i := 5; i < 8; i++ {
		resp, _ = f.call(t, sess, protocol.Request{Command: "config", Identifier: i})
		assert.Equal(t, protocol.StatusSuccess, resp.Status)
		assert.Equal(t, "packet_auth", resp.Data["AuthMode"])
	}
}

func TestHandle_BackendFailuresAndAudit(t *testing.T) {
	audit := &recordingAudit{}
	backend := BackendFunc(func(_ context.Context, line string) (string, bool) {
		switch line {
		case "crash":
			panic("world save locked")
		case "bad":
			return "", false
		default:
			return "ran " + line, true
		}
	})
	f := newFixture(t, nil, DispatcherDeps{Backend: backend, Audit: audit}, nil)
	sess := f.session(t, nil)
	f.authenticate(t, sess)

	resp, _ := f.call(t, sess, protocol.Request{Command: "crash", Identifier: 1})
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Contains(t, resp.Message, "world save locked")

	resp, _ = f.call(t, sess, protocol.Request{Command: "bad", Identifier: 2})
	assert.Equal(t, "command failed", resp.Message)

	resp, _ = f.call(t, sess, protocol.Request{Command: "kick", Args: []string{"bob", "afk"}, Identifier: 3})
	assert.Equal(t, protocol.StatusSuccess, resp.Status)
	assert.Equal(t, "ran kick bob afk", resp.Message)

	audit.mu.Lock()
	defer audit.mu.Unlock()
	require.Len(t, audit.entries, 3)
	assert.False(t, audit.entries[0].Success)
	assert.False(t, audit.entries[1].Success)
	assert.True(t, audit.entries[2].Success)
	assert.Equal(t, "kick bob afk", audit.entries[2].Command)
	assert.Equal(t, "rcon", audit.entries[2].Identity)
	assert.Equal(t, "tcp", audit.entries[2].Transport)
}

func TestHandle_UnknownCommandWithoutBackend(t *testing.T) {
	f := newFixture(t, nil, DispatcherDeps{}, nil)
	sess := f.session(t, nil)
	f.authenticate(t, sess)

	resp, _ := f.call(t, sess, protocol.Request{Command: "teleport", Identifier: 1})
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Equal(t, "unknown command: teleport", resp.Message)
}

func TestHandle_DebugEcho(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.DebugEcho = true }, DispatcherDeps{}, nil)
	sess := f.session(t, nil)

	resp, _ := f.call(t, sess, protocol.Request{Command: "config", Identifier: 1})
	assert.True(t, resp.Debug)
	resp, _ = f.d.Handle(context.Background(), sess, []byte("garbage"))
	assert.True(t, resp.Debug)
}

func TestBuiltins_StatusHelloPlayers(t *testing.T) {
	status := StatusFunc(func(context.Context) map[string]any {
		return map[string]any{"Map": "dust2"}
	})
	backend := listingBackend{
		BackendFunc: func(context.Context, string) (string, bool) { return "", true },
		commands:    []string{"say", "echo"},
	}
	f := newFixture(t, nil, DispatcherDeps{Status: status, Backend: backend}, nil)
	sess := f.session(t, nil)
	f.authenticate(t, sess)

	resp, _ := f.call(t, sess, protocol.Request{Command: "hello", Identifier: 1})
	assert.Equal(t, "Hello, rcon!", resp.Message)

	resp, _ = f.call(t, sess, protocol.Request{Command: "STATUS", Identifier: 2})
	assert.Equal(t, protocol.StatusSuccess, resp.Status)
	assert.Equal(t, "dust2", resp.Data["Map"])
	assert.Equal(t, "testhost", resp.Data["ServerName"])
	assert.Equal(t, 8, resp.Data["MaxConnections"])

	f.hub.Publish(context.Background(), hub.PlayerEvent{Kind: hub.PlayerLogin, Name: "gordon", ID: "1"})
	resp, _ = f.call(t, sess, protocol.Request{Command: "players", Identifier: 3})
	assert.Equal(t, "1 players online", resp.Message)
	assert.Equal(t, 1, resp.Data["Count"])

	resp, _ = f.call(t, sess, protocol.Request{Command: "help", Identifier: 4})
	assert.Contains(t, resp.Message, "ban <name> [reason...] - ban an account")
	assert.Contains(t, resp.Message, "console: echo, say")
	assert.Equal(t, []string{"echo", "say"}, resp.Data["Backend"])
}

func TestBuiltins_Bans(t *testing.T) {
	identities := fakeIdentities{"admin": {name: "admin", password: "root", level: 9}}
	bans := newFakeBans("admin", "griefer")
	f := newFixture(t, nil, DispatcherDeps{Bans: bans}, identities)
	sess := f.session(t, nil)
	req := authReq(1, "root")
	req.Name = protocol.Str("admin")
	resp, _ := f.call(t, sess, req)
	require.Equal(t, protocol.StatusAuthenticated, resp.Status)

	run := func(id int, cmd string, args ...string) *protocol.Response {
		resp, _ := f.call(t, sess, protocol.Request{Command: cmd, Args: args, Identifier: id})
		return resp
	}

	assert.Equal(t, "usage: ban <name> [reason...]", run(2, "ban").Message)
	assert.Equal(t, "cannot ban yourself", run(3, "ban", "ADMIN").Message)
	assert.Equal(t, "unknown account: nobody", run(4, "ban", "nobody").Message)

	resp = run(5, "ban", "griefer", "spawn", "camping")
	assert.Equal(t, protocol.StatusSuccess, resp.Status)
	assert.Equal(t, "griefer banned", resp.Message)

	resp = run(6, "baninfo", "griefer")
	assert.Equal(t, "griefer was banned by admin: spawn camping", resp.Message)
	assert.Equal(t, true, resp.Data["Banned"])

	resp = run(7, "banlist")
	assert.Equal(t, "1 banned accounts", resp.Message)

	assert.Equal(t, "griefer unbanned", run(8, "unban", "griefer").Message)
	assert.Equal(t, "griefer is not banned", run(9, "baninfo", "griefer").Message)
	assert.Equal(t, "usage: unban <name>", run(10, "unban").Message)

	bans.failing = true
	assert.Equal(t, "ban store unavailable", run(11, "banlist").Message)
}

func TestBuiltins_BansWithoutStore(t *testing.T) {
	f := newFixture(t, nil, DispatcherDeps{}, nil)
	sess := f.session(t, nil)
	f.authenticate(t, sess)

	for _, cmd := range []string{"banlist", "baninfo", "ban", "unban"} {
		resp, _ := f.call(t, sess, protocol.Request{Command: cmd, Args: []string{"x"}, Identifier: 1})
		assert.Equal(t, ErrAccountsUnavailable.Error(), resp.Message, cmd)
	}
}
