package rcon

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rconhub/internal/config"
	"rconhub/internal/microservices/hub"
	"rconhub/internal/protocol"
)

// TestConcurrentSessions mixes TCP and WebSocket operators issuing
// commands while broadcasts fan out to all of them.
func TestConcurrentSessions(t *testing.T) {
	if testing.Short() {
		t.Skip("load test")
	}
	const (
		tcpSessions = 20
		wsSessions  = 10
		requests    = 25
		pushWait    = 10 * time.Second
	)
	srv := startServer(t, func(c *config.Config) {
		c.MaxConnections = tcpSessions + wsSessions
	}, Options{Backend: BackendFunc(func(_ context.Context, line string) (string, bool) { return line, true })})

	var (
		success  atomic.Int64
		failures atomic.Int64
		ready    sync.WaitGroup
		done     sync.WaitGroup
	)
	start := make(chan struct{})
	broadcastSeen := make(chan struct{}, tcpSessions+wsSessions)

	worker := func(call func(req protocol.Request) (*protocol.Response, error), next func() (*protocol.Response, error)) {
		defer done.Done()
		resp, err := call(authReq(1, testPassword))
		ready.Done()
		if err != nil || resp.Status != protocol.StatusAuthenticated {
			failures.Add(1)
			return
		}
		<-start
		for i := 2; i < requests+2; i++ {
			resp, err := call(protocol.Request{Command: "echo", Identifier: i})
			if err != nil || resp.Identifier != i {
				failures.Add(1)
				continue
			}
			success.Add(1)
		}
		// the broadcast is the first push after the replies
		for {
			resp, err := next()
			if err != nil {
				return
			}
			if resp.IsBroadcast() && resp.Message == "round start" {
				broadcastSeen <- struct{}{}
				return
			}
		}
	}

	ready.Add(tcpSessions + wsSessions)
	done.Add(tcpSessions + wsSessions)
	for i := 0; i < tcpSessions; i++ {
		c := dialTCP(t, srv)
		call := func(req protocol.Request) (*protocol.Response, error) {
			data, err := protocol.EncodeRequest(&req)
			if err != nil {
				return nil, err
			}
			if _, err := c.conn.Write(append(data, '\n')); err != nil {
				return nil, err
			}
			for {
				resp, err := c.readLine(ioWait)
				if err != nil || !resp.IsBroadcast() {
					return resp, err
				}
			}
		}
		go worker(call, func() (*protocol.Response, error) { return c.readLine(pushWait) })
	}
	for i := 0; i < wsSessions; i++ {
		conn, _, err := dialWS(t, srv, protocol.PacketAuthPath)
		require.NoError(t, err)
		readWithin := func(wait time.Duration) (*protocol.Response, error) {
			if err := conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
				return nil, err
			}
			_, data, err := conn.ReadMessage()
			if err != nil {
				return nil, err
			}
			return protocol.DecodeResponse(data)
		}
		call := func(req protocol.Request) (*protocol.Response, error) {
			data, err := protocol.EncodeRequest(&req)
			if err != nil {
				return nil, err
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return nil, err
			}
			for {
				resp, err := readWithin(ioWait)
				if err != nil || !resp.IsBroadcast() {
					return resp, err
				}
			}
		}
		go worker(call, func() (*protocol.Response, error) { return readWithin(pushWait) })
	}

	ready.Wait()
	began := time.Now()
	close(start)
	require.Eventually(t, func() bool {
		return success.Load()+failures.Load() == int64((tcpSessions+wsSessions)*requests)
	}, 10*time.Second, 10*time.Millisecond)
	elapsed := time.Since(began)

	delivered := srv.Log(hub.LevelInfo, "round start")
	done.Wait()

	t.Logf("sessions=%d requests=%d ok=%d failed=%d elapsed=%s broadcast_delivered=%d",
		tcpSessions+wsSessions, requests, success.Load(), failures.Load(), elapsed, delivered)
	assert.Zero(t, failures.Load())
	assert.Equal(t, tcpSessions+wsSessions, delivered)
	assert.Len(t, broadcastSeen, tcpSessions+wsSessions)
}

func BenchmarkDispatchForward(b *testing.B) {
	store := config.NewStore(testConfig(nil), nil)
	h := hub.New(store, discardLogger)
	d := NewDispatcher(DispatcherDeps{
		Config:  store,
		Auth:    NewAuthStrategy(store, nil, nil, discardLogger),
		Hub:     h,
		Backend: BackendFunc(func(_ context.Context, line string) (string, bool) { return line, true }),
		Logger:  discardLogger,
	})
	sess := newSession(1, &memTransport{kind: TransportTCP}, nil, discardLogger)
	defer sess.Close("done")
	sess.authenticate(Principal{Name: "bench", Method: "password"})

	data, err := protocol.EncodeRequest(&protocol.Request{Command: "echo", Args: []string{"a", "b"}, Identifier: 7})
	require.NoError(b, err)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		resp, _ := d.Handle(context.Background(), sess, data)
		if resp.Status != protocol.StatusSuccess {
			b.Fatalf("unexpected reply %q", resp.Message)
		}
	}
}
