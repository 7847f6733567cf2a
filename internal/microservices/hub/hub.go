package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"rconhub/internal/config"
	"rconhub/internal/protocol"
)

// DefaultSendTimeout bounds how long Publish waits on one recipient.
const DefaultSendTimeout = 100 * time.Millisecond

// Subscriber is a live session as seen by the hub.
type Subscriber interface {
	ID() int64
	IsAuthenticated() bool
	LastActivity() time.Time
	// TrySend queues an encoded response, giving up after timeout.
	TrySend(data []byte, timeout time.Duration) error
	// Close tears the session down; safe to call more than once.
	Close(reason string) error
}

// Relay forwards published events to other server instances.
type Relay interface {
	Forward(ctx context.Context, event Event) error
}

// Hub is the registry of live sessions and the broadcast fan-out.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[int64]Subscriber // key: session ID
	roster      *Roster
	cfg         *config.Store
	relay       Relay
	sendTimeout time.Duration
	logger      *slog.Logger
}

// New creates a hub. cfg may be nil, in which case every event kind is
// published and responses are not tagged for debug echo.
func New(cfg *config.Store, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subscribers: make(map[int64]Subscriber),
		roster:      NewRoster(),
		cfg:         cfg,
		sendTimeout: DefaultSendTimeout,
		logger:      logger,
	}
}

// SetRelay installs a cross-instance relay. Call before serving traffic.
func (h *Hub) SetRelay(r Relay) {
	h.mu.Lock()
	h.relay = r
	h.mu.Unlock()
}

// SetSendTimeout overrides the per-recipient send bound.
func (h *Hub) SetSendTimeout(d time.Duration) {
	h.mu.Lock()
	h.sendTimeout = d
	h.mu.Unlock()
}

// Roster exposes the online player list maintained from player events.
func (h *Hub) Roster() *Roster {
	return h.roster
}

// Register adds a session. Unauthenticated sessions are held but skipped
// by Publish until their flag flips.
func (h *Hub) Register(s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[s.ID()] = s
	h.logger.Debug("session_registered", "session_id", s.ID(), "registered", len(h.subscribers))
}

// Unregister removes a session. Removing an unknown ID is a no-op.
func (h *Hub) Unregister(id int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[id]; !ok {
		return false
	}
	delete(h.subscribers, id)
	h.logger.Debug("session_unregistered", "session_id", id, "registered", len(h.subscribers))
	return true
}

// Count returns the number of registered sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// AuthenticatedCount returns how many registered sessions would receive
// a broadcast right now.
func (h *Hub) AuthenticatedCount() int {
	n := 0
	for _, s := range h.snapshot() {
		if s.IsAuthenticated() {
			n++
		}
	}
	return n
}

// snapshot copies the registry so sends happen without holding the lock.
func (h *Hub) snapshot() []Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()
	subs := make([]Subscriber, 0, len(h.subscribers))
	for _, s := range h.subscribers {
		subs = append(subs, s)
	}
	return subs
}

// Publish delivers the event to every authenticated local session and
// hands it to the relay, if any. It returns the number of local deliveries.
func (h *Hub) Publish(ctx context.Context, event Event) int {
	delivered := h.Deliver(event)

	h.mu.RLock()
	relay := h.relay
	h.mu.RUnlock()
	if relay != nil {
		if err := relay.Forward(ctx, event); err != nil {
			h.logger.Warn("broadcast_relay_failed", "error", err)
		}
	}
	return delivered
}

// Deliver fans the event out to local sessions only. Recipients that
// cannot accept the message within the send timeout are removed and
// closed; Deliver itself never fails.
func (h *Hub) Deliver(event Event) int {
	event = h.observe(event)

	cfg := h.config()
	if cfg != nil && !cfg.WantsDetail(event.Detail()) {
		return 0
	}

	resp := event.Response()
	if cfg != nil {
		resp.Debug = cfg.DebugEcho
	}
	data, err := protocol.EncodeResponse(resp)
	if err != nil {
		h.logger.Error("broadcast_encode_failed", "detail", event.Detail(), "error", err)
		return 0
	}

	h.mu.RLock()
	timeout := h.sendTimeout
	h.mu.RUnlock()

	delivered := 0
	for _, s := range h.snapshot() {
		if !s.IsAuthenticated() {
			continue
		}
		if err := s.TrySend(data, timeout); err != nil {
			h.logger.Debug("broadcast_send_failed", "session_id", s.ID(), "error", err)
			h.drop(s, "broadcast send failed")
			continue
		}
		delivered++
	}
	return delivered
}

// observe keeps the roster current and fills in the online count when the
// event source left it out.
func (h *Hub) observe(event Event) Event {
	pe, ok := event.(PlayerEvent)
	if !ok {
		return event
	}
	h.roster.Apply(pe)
	if pe.OnlineCount == 0 {
		pe.OnlineCount = h.roster.Count()
	}
	return pe
}

func (h *Hub) config() *config.Config {
	if h.cfg == nil {
		return nil
	}
	return h.cfg.Get()
}

func (h *Hub) drop(s Subscriber, reason string) {
	h.Unregister(s.ID())
	if err := s.Close(reason); err != nil {
		h.logger.Debug("session_close_failed", "session_id", s.ID(), "error", err)
	}
}

// ReapIdle closes sessions with no activity for longer than timeout and
// returns how many were reaped. A zero timeout disables reaping.
func (h *Hub) ReapIdle(timeout time.Duration) int {
	if timeout <= 0 {
		return 0
	}
	now := time.Now()
	reaped := 0
	for _, s := range h.snapshot() {
		if now.Sub(s.LastActivity()) > timeout {
			h.logger.Info("session_idle_timeout", "session_id", s.ID())
			h.drop(s, "idle timeout")
			reaped++
		}
	}
	return reaped
}

// StartReaper periodically calls ReapIdle until ctx is done. The timeout
// is re-read on every tick so reloads take effect.
func (h *Hub) StartReaper(ctx context.Context, interval time.Duration, timeout func() time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.ReapIdle(timeout())
		case <-ctx.Done():
			return
		}
	}
}

// CloseAll closes and removes every registered session.
func (h *Hub) CloseAll(reason string) {
	h.mu.Lock()
	subs := make([]Subscriber, 0, len(h.subscribers))
	for id, s := range h.subscribers {
		subs = append(subs, s)
		delete(h.subscribers, id)
	}
	h.mu.Unlock()

	for _, s := range subs {
		if err := s.Close(reason); err != nil {
			h.logger.Debug("session_close_failed", "session_id", s.ID(), "error", err)
		}
		h.logger.Info("session_closed", "session_id", s.ID(), "reason", reason)
	}
}
