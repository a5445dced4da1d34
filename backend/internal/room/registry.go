package room

import (
	"log/slog"
	"sync"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/backend/internal/bus"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/pkg/protocol"
)

// Registry maps room ids to live rooms. Rooms are created on first join
// and removed when the last participant leaves. Operations on one room are
// serialised by that room's lock; different rooms proceed in parallel.
type Registry struct {
	rooms map[string]*Room
	bus   *bus.Bus
	mu    sync.RWMutex
}

// NewRegistry creates a registry publishing through b.
func NewRegistry(b *bus.Bus) *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
		bus:   b,
	}
}

// acquire returns the locked room, creating it when create is set.
// Lock order is always registry then room, never both at once here.
func (reg *Registry) acquire(roomID string, create bool) *Room {
	for {
		reg.mu.Lock()
		r, ok := reg.rooms[roomID]
		if !ok {
			if !create {
				reg.mu.Unlock()
				return nil
			}
			r = newRoom(roomID, reg.bus)
			reg.rooms[roomID] = r
			slog.Info("room created", "room", roomID)
		}
		reg.mu.Unlock()

		r.mu.Lock()
		if !r.removed {
			return r
		}
		r.mu.Unlock()
	}
}

// release unlocks r and drops it from the registry when empty.
func (reg *Registry) release(r *Room) {
	empty := len(r.participants) == 0
	if empty {
		r.removed = true
	}
	r.mu.Unlock()

	if !empty {
		return
	}

	reg.mu.Lock()
	if reg.rooms[r.id] == r {
		delete(reg.rooms, r.id)
		slog.Info("room deleted", "room", r.id)
	}
	reg.mu.Unlock()
}

// Do runs fn on an existing room while holding its lock.
func (reg *Registry) Do(roomID string, fn func(r *Room) error) error {
	r := reg.acquire(roomID, false)
	if r == nil {
		return protocol.ErrNotInRoom
	}
	defer reg.release(r)
	return fn(r)
}

// Snapshot returns the current state of a room.
func (reg *Registry) Snapshot(roomID string) (Snapshot, bool) {
	var snap Snapshot
	err := reg.Do(roomID, func(r *Room) error {
		snap = r.Snapshot()
		return nil
	})
	return snap, err == nil
}

// Stats reports live rooms and participants.
func (reg *Registry) Stats() (rooms, participants int) {
	reg.mu.RLock()
	list := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		list = append(list, r)
	}
	reg.mu.RUnlock()

	for _, r := range list {
		r.mu.Lock()
		if !r.removed {
			rooms++
			participants += len(r.participants)
		}
		r.mu.Unlock()
	}
	return rooms, participants
}
