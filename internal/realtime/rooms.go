package realtime

import "sync"

// Rooms tracks which connections have joined which chat rooms. A room id is a
// chat id; membership answers "is this connection actively viewing the chat",
// which gates send-time seen marking.
type Rooms struct {
	mu     sync.RWMutex
	byConn map[string]map[string]struct{}
	byRoom map[string]map[string]struct{}
}

// NewRooms creates an empty membership tracker.
func NewRooms() *Rooms {
	return &Rooms{
		byConn: make(map[string]map[string]struct{}),
		byRoom: make(map[string]map[string]struct{}),
	}
}

// Join subscribes the connection to the room.
func (r *Rooms) Join(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byConn[connID] == nil {
		r.byConn[connID] = make(map[string]struct{})
	}
	r.byConn[connID][roomID] = struct{}{}

	if r.byRoom[roomID] == nil {
		r.byRoom[roomID] = make(map[string]struct{})
	}
	r.byRoom[roomID][connID] = struct{}{}
}

// Leave unsubscribes the connection from the room.
func (r *Rooms) Leave(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(connID, roomID)
}

// LeaveAll drops every membership of the connection. Called on disconnect.
func (r *Rooms) LeaveAll(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for roomID := range r.byConn[connID] {
		r.leaveLocked(connID, roomID)
	}
}

// IsMember reports whether the connection has joined the room.
func (r *Rooms) IsMember(connID, roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms, ok := r.byConn[connID]
	if !ok {
		return false
	}
	_, member := rooms[roomID]
	return member
}

// Members returns the connection ids currently joined to the room.
func (r *Rooms) Members(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns, ok := r.byRoom[roomID]
	if !ok {
		return nil
	}
	members := make([]string, 0, len(conns))
	for connID := range conns {
		members = append(members, connID)
	}
	return members
}

func (r *Rooms) leaveLocked(connID, roomID string) {
	if rooms, ok := r.byConn[connID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(r.byConn, connID)
		}
	}
	if conns, ok := r.byRoom[roomID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.byRoom, roomID)
		}
	}
}
