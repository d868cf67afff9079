package core

import (
	"sync"

	"github.com/nkrev/missionhub/internal/domain"
	"github.com/rs/zerolog/log"
)

// Registry owns the room-id -> room mapping. It is an explicit instance
// held by the coordinator, never package state, so tests can run isolated
// registries side by side.
type Registry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[domain.RoomID]*Room)}
}

func (reg *Registry) GetOrCreate(id domain.RoomID) *Room {
	reg.mu.RLock()
	room, ok := reg.rooms[id]
	reg.mu.RUnlock()
	if ok {
		return room
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if room, ok = reg.rooms[id]; ok {
		return room
	}
	room = newRoom(id)
	reg.rooms[id] = room
	log.Info().Str("module", "core.registry").Str("room", string(id)).Msg("room created")
	return room
}

func (reg *Registry) Get(id domain.RoomID) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	room, ok := reg.rooms[id]
	return room, ok
}

// Delete removes the entry. Callers must only do this for rooms whose
// player list is empty.
func (reg *Registry) Delete(id domain.RoomID) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.rooms, id)
	log.Info().Str("module", "core.registry").Str("room", string(id)).Msg("room deleted")
}

func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// All snapshots the current room set. Used by the disconnect scan, which
// is not scoped to a single room.
func (reg *Registry) All() []*Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		out = append(out, room)
	}
	return out
}
