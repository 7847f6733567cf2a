package hub

import (
	"sort"
	"sync"
	"time"
)

// OnlinePlayer is one roster entry.
type OnlinePlayer struct {
	Name     string    `json:"Name"`
	ID       string    `json:"ID"`
	Level    int       `json:"Level"`
	Location string    `json:"Location"`
	JoinedAt time.Time `json:"JoinedAt"`
}

// Roster tracks who is online, fed by player login/logoff events.
type Roster struct {
	mu      sync.RWMutex
	players map[string]OnlinePlayer // key: player ID, or name when ID is empty
}

func NewRoster() *Roster {
	return &Roster{players: make(map[string]OnlinePlayer)}
}

func rosterKey(e PlayerEvent) string {
	if e.ID != "" {
		return e.ID
	}
	return e.Name
}

// Apply records a login or removes a logoff.
func (r *Roster) Apply(e PlayerEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := rosterKey(e)
	switch e.Kind {
	case PlayerLogin:
		r.players[key] = OnlinePlayer{
			Name:     e.Name,
			ID:       e.ID,
			Level:    e.Level,
			Location: e.Location,
			JoinedAt: time.Now(),
		}
	case PlayerLogoff:
		delete(r.players, key)
	}
}

// Count returns the number of online players.
func (r *Roster) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// List returns the online players ordered by name.
func (r *Roster) List() []OnlinePlayer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	players := make([]OnlinePlayer, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].Name < players[j].Name })
	return players
}
