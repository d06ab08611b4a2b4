// Package realtime contains the delivery core: the connection registry, room
// membership tracker, presence broadcaster and event fan-out router.
package realtime

import (
	"sort"
	"sync"

	"ripple/internal/profile"
)

// Registry maps each user to at most one live connection and caches the
// per-user privacy flags that shape presence visibility.
//
// Mutating calls return the data needed for the presence broadcast that must
// follow them; snapshot and recipients are computed inside the same critical
// section so a concurrent mutation can never produce a stale broadcast.
type Registry struct {
	mu      sync.RWMutex
	byUser  map[string]*Client
	byConn  map[string]*Client
	privacy map[string]profile.PrivacySettings
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser:  make(map[string]*Client),
		byConn:  make(map[string]*Client),
		privacy: make(map[string]profile.PrivacySettings),
	}
}

// Register stores the client as the user's live connection, silently
// superseding any prior one (last-connect-wins), and records the privacy
// flags fetched on connect.
func (r *Registry) Register(userID string, c *Client, p profile.PrivacySettings) ([]string, []*Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prior, ok := r.byUser[userID]; ok {
		delete(r.byConn, prior.ConnID)
	}
	r.byUser[userID] = c
	r.byConn[c.ConnID] = c
	r.privacy[userID] = p

	return r.snapshotLocked(), r.clientsLocked()
}

// Unregister removes the mapping for the user, but only when it still points
// at the given client: a connection superseded by a reconnect must not evict
// its successor. The returned bool reports whether anything changed.
func (r *Registry) Unregister(userID string, c *Client) ([]string, []*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byUser[userID]
	if !ok || current != c {
		delete(r.byConn, c.ConnID)
		return nil, nil, false
	}

	delete(r.byUser, userID)
	delete(r.byConn, c.ConnID)
	delete(r.privacy, userID)

	return r.snapshotLocked(), r.clientsLocked(), true
}

// Lookup resolves a user to their live connection, or nil.
func (r *Registry) Lookup(userID string) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byUser[userID]
}

// ByConn resolves a connection id to its client, or nil.
func (r *Registry) ByConn(connID string) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byConn[connID]
}

// SetPrivacy updates the user's cached privacy flags.
func (r *Registry) SetPrivacy(userID string, p profile.PrivacySettings) ([]string, []*Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.privacy[userID] = p
	return r.snapshotLocked(), r.clientsLocked()
}

// Privacy returns the user's cached privacy flags, defaulting to visible and
// receipts-on when no entry exists.
func (r *Registry) Privacy(userID string) profile.PrivacySettings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.privacy[userID]
	if !ok {
		return profile.DefaultPrivacy()
	}
	return p
}

// Snapshot returns the presence set: every registered user whose
// showOnlineStatus flag is not false.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// Clients returns every live client.
func (r *Registry) Clients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clientsLocked()
}

func (r *Registry) snapshotLocked() []string {
	users := make([]string, 0, len(r.byUser))
	for userID := range r.byUser {
		if p, ok := r.privacy[userID]; ok && !p.ShowOnlineStatus {
			continue
		}
		users = append(users, userID)
	}
	sort.Strings(users)
	return users
}

func (r *Registry) clientsLocked() []*Client {
	clients := make([]*Client, 0, len(r.byUser))
	for _, c := range r.byUser {
		clients = append(clients, c)
	}
	return clients
}
