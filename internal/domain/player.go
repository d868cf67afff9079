package domain

// PlayerID is the per-connection identity minted by the transport adapter.
// It doubles as the addressing key for direct messages to that client.
type PlayerID string

type PlayerStatus string

const (
	StatusAlive    PlayerStatus = "ALIVE"
	StatusDead     PlayerStatus = "DEAD"
	StatusFinished PlayerStatus = "FINISHED"
)

// ParsePlayerStatus validates a client-supplied status string.
func ParsePlayerStatus(s string) (PlayerStatus, bool) {
	switch PlayerStatus(s) {
	case StatusAlive, StatusDead, StatusFinished:
		return PlayerStatus(s), true
	}
	return "", false
}

// Player is membership state inside a single room.
// No transport or lifecycle logic here.
type Player struct {
	ID      PlayerID     `json:"id"`
	Name    string       `json:"name"`
	IsReady bool         `json:"is_ready"`
	Score   int          `json:"score"`
	Status  PlayerStatus `json:"status"`
}

// NewPlayer avoids raw literals in adapters and keeps construction obvious.
// An empty name falls back to a short tag derived from the id.
func NewPlayer(id PlayerID, name string) *Player {
	if name == "" {
		name = DefaultName(id)
	}
	return &Player{
		ID:     id,
		Name:   name,
		Status: StatusAlive,
	}
}

func DefaultName(id PlayerID) string {
	raw := string(id)
	if len(raw) > 4 {
		raw = raw[:4]
	}
	return raw
}

// ResetForLobby clears per-session state after a mission ends.
func (p *Player) ResetForLobby() {
	p.IsReady = false
	p.Score = 0
	p.Status = StatusAlive
}
