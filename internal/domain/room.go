package domain

type RoomID string

type RoomStatus string

const (
	RoomLobby    RoomStatus = "LOBBY"
	RoomPlaying  RoomStatus = "PLAYING"
	RoomGameOver RoomStatus = "GAME_OVER"
)

// Room is one mission session. Players keeps insertion order: index 0 is
// the captain, and later joins never displace earlier entries.
type Room struct {
	ID      RoomID
	Players []*Player
	Status  RoomStatus
}

func NewRoom(id RoomID) *Room {
	return &Room{
		ID:      id,
		Players: make([]*Player, 0, 4),
		Status:  RoomLobby,
	}
}

func (r *Room) Captain() *Player {
	if len(r.Players) == 0 {
		return nil
	}
	return r.Players[0]
}

func (r *Room) PlayerByID(id PlayerID) *Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Remove drops the player with the given id, shifting later entries down.
func (r *Room) Remove(id PlayerID) bool {
	for i, p := range r.Players {
		if p.ID == id {
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Room) AllReady() bool {
	for _, p := range r.Players {
		if !p.IsReady {
			return false
		}
	}
	return true
}

// AllDone reports whether every player has finished or died.
func (r *Room) AllDone() bool {
	for _, p := range r.Players {
		if p.Status != StatusDead && p.Status != StatusFinished {
			return false
		}
	}
	return true
}

// Snapshot copies the player list by value so callers can hand it to
// encoders outside the room lock.
func (r *Room) Snapshot() []Player {
	out := make([]Player, 0, len(r.Players))
	for _, p := range r.Players {
		out = append(out, *p)
	}
	return out
}
