package presence

import (
	"math/rand"
	"sync"

	"github.com/manpreetbhatti/fresco/backend/internal/protocol"
)

// Display colors assigned to participants, picked at random on join
var palette = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4",
	"#FFEAA7", "#DDA0DD", "#98D8C8", "#F7DC6F",
}

// Participant is one live connection inside a room
type Participant struct {
	ID       string            `json:"id"`
	Color    string            `json:"color"`
	Position protocol.Position `json:"position"`
}

type roomEntry struct {
	mu      sync.Mutex
	members map[string]*Participant
}

// Registry tracks which connections are in which room, their colors and
// cursor positions. A connection belongs to at most one room at a time.
// Mutations within a room are serialized by the room's own lock; independent
// rooms do not contend. Lock order is always registry before room.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]*roomEntry
	byConn map[string]string // connection id -> current room
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[string]*roomEntry),
		byConn: make(map[string]string),
	}
}

// Join adds the connection to the room, assigning a color, and returns the
// participant plus the room's new member count. If the connection is in
// another room it is removed from that room first; joining a room it is
// already in is a no-op that returns the existing participant.
func (r *Registry) Join(roomID, connID string) (Participant, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prevRoom, ok := r.byConn[connID]; ok && prevRoom != roomID {
		if prevEntry, ok := r.rooms[prevRoom]; ok {
			prevEntry.mu.Lock()
			delete(prevEntry.members, connID)
			if len(prevEntry.members) == 0 {
				delete(r.rooms, prevRoom)
			}
			prevEntry.mu.Unlock()
		}
	}

	entry, ok := r.rooms[roomID]
	if !ok {
		entry = &roomEntry{members: make(map[string]*Participant)}
		r.rooms[roomID] = entry
	}
	r.byConn[connID] = roomID

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if p, ok := entry.members[connID]; ok {
		return *p, len(entry.members)
	}

	p := &Participant{
		ID:    connID,
		Color: palette[rand.Intn(len(palette))],
	}
	entry.members[connID] = p
	return *p, len(entry.members)
}

// Leave removes the connection from the room and returns the remaining
// member count. The second return is false if the room had no entry at all.
// An empty room's entry is dropped from memory; the persisted room is
// untouched.
func (r *Registry) Leave(roomID, connID string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.rooms[roomID]
	if !ok {
		return 0, false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	delete(entry.members, connID)
	if r.byConn[connID] == roomID {
		delete(r.byConn, connID)
	}

	count := len(entry.members)
	if count == 0 {
		delete(r.rooms, roomID)
	}
	return count, true
}

// UpdateCursor records the connection's cursor position. A stale event for a
// connection that already left is a no-op.
func (r *Registry) UpdateCursor(roomID, connID string, pos protocol.Position) bool {
	r.mu.RLock()
	entry, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	p, ok := entry.members[connID]
	if !ok {
		return false
	}
	p.Position = pos
	return true
}

// Members returns a snapshot of the room's participants
func (r *Registry) Members(roomID string) []Participant {
	r.mu.RLock()
	entry, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	members := make([]Participant, 0, len(entry.members))
	for _, p := range entry.members {
		members = append(members, *p)
	}
	return members
}

// Count returns the room's current member count
func (r *Registry) Count(roomID string) int {
	r.mu.RLock()
	entry, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return 0
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return len(entry.members)
}

// Counts returns member counts for all rooms with at least one connection
func (r *Registry) Counts() map[string]int {
	r.mu.RLock()
	entries := make(map[string]*roomEntry, len(r.rooms))
	for id, entry := range r.rooms {
		entries[id] = entry
	}
	r.mu.RUnlock()

	counts := make(map[string]int, len(entries))
	for id, entry := range entries {
		entry.mu.Lock()
		if n := len(entry.members); n > 0 {
			counts[id] = n
		}
		entry.mu.Unlock()
	}
	return counts
}

// RoomOf returns the room the connection currently belongs to
func (r *Registry) RoomOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roomID, ok := r.byConn[connID]
	return roomID, ok
}
