package core

import (
	"sync"
	"time"

	"github.com/nkrev/missionhub/internal/domain"
)

// Room wraps the domain state with its exclusion lock and the pending
// reset timer. All mutations of state, and the broadcasts they produce,
// happen under mu; rooms are fully independent of each other.
type Room struct {
	mu    sync.Mutex
	state *domain.Room

	// resetTimer is the one-shot LOBBY purge scheduled on GAME_OVER.
	// Stopped explicitly when the room is deleted.
	resetTimer *time.Timer

	// gone marks a room that was removed from the registry while another
	// goroutine still held a pointer to it.
	gone bool
}

func newRoom(id domain.RoomID) *Room {
	return &Room{state: domain.NewRoom(id)}
}

func (r *Room) ID() domain.RoomID { return r.state.ID }

func (r *Room) Status() domain.RoomStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Status
}

func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.state.Players)
}

func (r *Room) Snapshot() []domain.Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Snapshot()
}
