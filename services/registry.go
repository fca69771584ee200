// services/registry.go - In-memory room registry with secondary indexes
package services

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"

	"quizparty/models"
)

// PinGenerationAttempts bounds retries against PIN collisions.
const PinGenerationAttempts = 50

// RoomRegistry is the process-local authority for live rooms: a pin→room
// map plus secondary indexes on host tokens, participant tokens and
// connection ids. Stale index entries self-heal on lookup. This is the one
// component a multi-node deployment would replace with a shared store.
type RoomRegistry struct {
	mu            sync.RWMutex
	rooms         map[string]*models.Room
	byHostToken   map[string]string
	byPlayerToken map[string]string
	byConnection  map[string]string
}

// NewRoomRegistry builds an empty registry.
func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms:         make(map[string]*models.Room),
		byHostToken:   make(map[string]string),
		byPlayerToken: make(map[string]string),
		byConnection:  make(map[string]string),
	}
}

// Save upserts the room and refreshes its index entries.
func (r *RoomRegistry) Save(room *models.Room) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rooms[room.PIN] = room
	r.byHostToken[room.HostToken] = room.PIN
	if room.HostConnectionID != "" {
		r.byConnection[room.HostConnectionID] = room.PIN
	}
	for _, p := range room.Players() {
		r.byPlayerToken[p.Token] = room.PIN
		if p.IsConnected() {
			r.byConnection[p.ConnectionID] = room.PIN
		}
	}
	for _, s := range room.Spectators() {
		r.byPlayerToken[s.Token] = room.PIN
		if s.IsConnected() {
			r.byConnection[s.ConnectionID] = room.PIN
		}
	}
}

// Get returns the room for pin, or nil.
func (r *RoomRegistry) Get(pin string) *models.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[pin]
}

// Delete removes the room and all of its index entries. Idempotent.
func (r *RoomRegistry) Delete(pin string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[pin]
	if !ok {
		return
	}
	delete(r.rooms, pin)
	delete(r.byHostToken, room.HostToken)
	for token, indexed := range r.byPlayerToken {
		if indexed == pin {
			delete(r.byPlayerToken, token)
		}
	}
	for conn, indexed := range r.byConnection {
		if indexed == pin {
			delete(r.byConnection, conn)
		}
	}
}

// GetByHostToken resolves a room through the host token index, removing the
// entry when it no longer agrees with the room.
func (r *RoomRegistry) GetByHostToken(token string) *models.Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	pin, ok := r.byHostToken[token]
	if !ok {
		return nil
	}
	room, ok := r.rooms[pin]
	if !ok || room.HostToken != token {
		delete(r.byHostToken, token)
		return nil
	}
	return room
}

// GetByPlayerToken resolves a room through the participant token index with
// the same self-healing behaviour.
func (r *RoomRegistry) GetByPlayerToken(token string) *models.Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	pin, ok := r.byPlayerToken[token]
	if !ok {
		return nil
	}
	room, ok := r.rooms[pin]
	if !ok {
		delete(r.byPlayerToken, token)
		return nil
	}
	for _, t := range room.PlayerTokens() {
		if t == token {
			return room
		}
	}
	delete(r.byPlayerToken, token)
	return nil
}

// GetByConnection resolves a room through the connection index.
func (r *RoomRegistry) GetByConnection(connectionID string) *models.Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	pin, ok := r.byConnection[connectionID]
	if !ok {
		return nil
	}
	room, ok := r.rooms[pin]
	if !ok {
		delete(r.byConnection, connectionID)
		return nil
	}
	return room
}

// RemoveConnection drops a connection index entry on transport loss.
func (r *RoomRegistry) RemoveConnection(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byConnection, connectionID)
}

// All returns a snapshot of every live room.
func (r *RoomRegistry) All() []*models.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room)
	}
	return out
}

// Count returns the number of live rooms.
func (r *RoomRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// GeneratePIN produces a unique zero-padded 6-digit PIN, retrying on
// collision up to PinGenerationAttempts times.
func (r *RoomRegistry) GeneratePIN() (string, error) {
	for attempt := 0; attempt < PinGenerationAttempts; attempt++ {
		n, err := rand.Int(rand.Reader, big.NewInt(1000000))
		if err != nil {
			return "", fmt.Errorf("pin generation: %w", err)
		}
		pin := fmt.Sprintf("%06d", n.Int64())

		r.mu.RLock()
		_, taken := r.rooms[pin]
		r.mu.RUnlock()
		if !taken {
			return pin, nil
		}
	}
	return "", models.NewConflictError("Could not allocate a unique PIN")
}

// SweepExpiredTokens removes index entries whose room is gone or whose token
// the room no longer recognises (rotation leaves the old entry behind until
// this sweep or a self-healing lookup). Returns how many entries dropped.
func (r *RoomRegistry) SweepExpiredTokens() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for token, pin := range r.byHostToken {
		room, ok := r.rooms[pin]
		if !ok || room.HostToken != token {
			delete(r.byHostToken, token)
			removed++
		}
	}
	for token, pin := range r.byPlayerToken {
		room, ok := r.rooms[pin]
		if !ok {
			delete(r.byPlayerToken, token)
			removed++
			continue
		}
		found := false
		for _, t := range room.PlayerTokens() {
			if t == token {
				found = true
				break
			}
		}
		if !found {
			delete(r.byPlayerToken, token)
			removed++
		}
	}
	for conn, pin := range r.byConnection {
		if _, ok := r.rooms[pin]; !ok {
			delete(r.byConnection, conn)
			removed++
		}
	}
	return removed
}
