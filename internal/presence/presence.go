// Package presence tracks the ephemeral per-room map of live peer cursors.
// Entries are fed by cursor_moved/user_updated events and evicted by a
// periodic staleness sweep; the sweep is the only thing that removes a peer
// whose disconnect notification was lost.
package presence

import (
	"maps"
	"sync"
	"time"
)

// Defaults for the sweep cadence and the staleness window.
const (
	DefaultSweepInterval = time.Second
	DefaultTTL           = 3 * time.Second
)

// Cursor is one peer's last known pointer position.
type Cursor struct {
	UserID   string
	Username string
	X, Y     float64
	LastSeen time.Time
}

// Registry maps cursor (client) ids to live cursors.
type Registry struct {
	mu      sync.RWMutex
	cursors map[string]Cursor
	ttl     time.Duration
	sweep   time.Duration

	stopOnce sync.Once
	stop     chan struct{}
}

// NewRegistry creates a registry. Zero durations fall back to the defaults.
func NewRegistry(ttl, sweep time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if sweep <= 0 {
		sweep = DefaultSweepInterval
	}
	return &Registry{
		cursors: make(map[string]Cursor),
		ttl:     ttl,
		sweep:   sweep,
		stop:    make(chan struct{}),
	}
}

// Start runs the periodic sweep until Stop is called.
func (r *Registry) Start() {
	go func() {
		ticker := time.NewTicker(r.sweep)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				r.SweepOnce(now)
			case <-r.stop:
				return
			}
		}
	}()
}

// Stop halts the sweep goroutine.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// Update upserts a peer cursor.
func (r *Registry) Update(clientID string, c Cursor) {
	r.mu.Lock()
	r.cursors[clientID] = c
	r.mu.Unlock()
}

// UpdateName renames an existing peer without touching its position.
func (r *Registry) UpdateName(clientID, username string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cursors[clientID]
	if !ok {
		return
	}
	c.Username = username
	c.LastSeen = now
	r.cursors[clientID] = c
}

// Remove drops the entry for one client id.
func (r *Registry) Remove(clientID string) {
	r.mu.Lock()
	delete(r.cursors, clientID)
	r.mu.Unlock()
}

// RemoveUser drops every entry belonging to a departed user.
func (r *Registry) RemoveUser(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.cursors {
		if c.UserID == userID {
			delete(r.cursors, id)
		}
	}
}

// Clear empties the registry. Called on disconnect: cursors mean nothing
// without a live connection.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.cursors = make(map[string]Cursor)
	r.mu.Unlock()
}

// Cursors returns a snapshot of the live entries.
func (r *Registry) Cursors() map[string]Cursor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.cursors)
}

// SweepOnce evicts entries whose LastSeen is older than the staleness
// window relative to now.
func (r *Registry) SweepOnce(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.cursors {
		if now.Sub(c.LastSeen) > r.ttl {
			delete(r.cursors, id)
		}
	}
}
