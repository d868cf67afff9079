package core

import "github.com/nkrev/missionhub/internal/domain"

// Outbound event names. The transport adapter writes these verbatim as the
// "type" field of the JSON envelope.
const (
	EventRoomUpdate    = "room_update"
	EventErrorMsg      = "error_msg"
	EventStartGame     = "start_game"
	EventPlayerUpdated = "player_updated"
	EventForceGameOver = "force_game_over"
	EventKicked        = "kicked"
)

// Messenger is the outbound half of the transport adapter. Send must not
// block: the coordinator calls it while holding a room lock.
type Messenger interface {
	Send(id domain.PlayerID, v any)
}

type RoomUpdate struct {
	Type    string          `json:"type"`
	Room    domain.RoomID   `json:"room"`
	Players []domain.Player `json:"players"`
}

type ErrorMsg struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// StartGame carries an absolute clock value so every client can schedule
// the same countdown regardless of delivery latency.
type StartGame struct {
	Type      string        `json:"type"`
	Room      domain.RoomID `json:"room"`
	StartTime int64         `json:"start_time"`
}

type PlayerUpdated struct {
	Type   string        `json:"type"`
	Room   domain.RoomID `json:"room"`
	Player domain.Player `json:"player"`
}

type ForceGameOver struct {
	Type      string          `json:"type"`
	Room      domain.RoomID   `json:"room"`
	Players   []domain.Player `json:"players"`
	ResetTime int64           `json:"reset_time"`
}

type Kicked struct {
	Type string        `json:"type"`
	Room domain.RoomID `json:"room"`
}
