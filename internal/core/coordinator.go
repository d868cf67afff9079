package core

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nkrev/missionhub/internal/domain"
)

// Typed rejections. The adapter decides which of these reach the client
// as an error_msg and which are logged and dropped.
var (
	ErrRoomPlaying  = errors.New("mission already in progress")
	ErrRoomFull     = errors.New("team is full")
	ErrNoSuchRoom   = errors.New("room not found")
	ErrNoSuchPlayer = errors.New("player not found")
	ErrNotCaptain   = errors.New("only the captain can kick")
	ErrSelfKick     = errors.New("captain cannot kick themselves")
)

// StartCountdown is the fixed lead time clients get before gameplay
// begins once a room auto-starts.
const StartCountdown = 3 * time.Second

type Config struct {
	// RequiredPlayers is both the room capacity and the auto-start
	// headcount. Always >= 1.
	RequiredPlayers int
	// LeaderboardDuration is how long a finished room shows final results
	// before the reset purge.
	LeaderboardDuration time.Duration
}

// Coordinator is the single owner of all room mutations. Every operation
// serializes on the target room's lock and emits its broadcasts before
// releasing it, so clients observe a monotonically advancing view.
type Coordinator struct {
	cfg Config
	reg *Registry
	msg Messenger

	now func() time.Time
}

func NewCoordinator(cfg Config, reg *Registry, msg Messenger) *Coordinator {
	return &Coordinator{
		cfg: cfg,
		reg: reg,
		msg: msg,
		now: time.Now,
	}
}

// Join adds a new player to the room, creating the room on first contact.
// Rejections leave the room untouched.
func (c *Coordinator) Join(roomID domain.RoomID, playerID domain.PlayerID, name string) error {
	var room *Room
	for {
		room = c.reg.GetOrCreate(roomID)
		room.mu.Lock()
		if !room.gone {
			break
		}
		// Lost a race with deletion; the registry no longer knows this
		// pointer, so fetch a fresh one.
		room.mu.Unlock()
	}
	defer room.mu.Unlock()

	if room.state.Status == domain.RoomPlaying {
		return ErrRoomPlaying
	}
	if len(room.state.Players) >= c.cfg.RequiredPlayers {
		return ErrRoomFull
	}

	player := domain.NewPlayer(playerID, name)
	room.state.Players = append(room.state.Players, player)
	log.Info().Str("module", "core.coordinator").Str("room", string(roomID)).
		Str("player", string(playerID)).Str("name", player.Name).Msg("player joined")

	c.broadcastRoomLocked(room)
	// A fresh player starts unready, so this cannot fire today; the check
	// still runs so every membership change goes through one path.
	c.evaluateStartLocked(room)
	return nil
}

// ToggleReady flips the requesting player's ready flag and re-checks the
// auto-start condition.
func (c *Coordinator) ToggleReady(roomID domain.RoomID, playerID domain.PlayerID) error {
	room, err := c.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer room.mu.Unlock()

	player := room.state.PlayerByID(playerID)
	if player == nil {
		return ErrNoSuchPlayer
	}
	player.IsReady = !player.IsReady

	c.broadcastRoomLocked(room)
	c.evaluateStartLocked(room)
	return nil
}

// Kick removes target from the room. Only the captain (index 0) may kick,
// and never themselves.
func (c *Coordinator) Kick(roomID domain.RoomID, requester, target domain.PlayerID) error {
	room, err := c.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer room.mu.Unlock()

	captain := room.state.Captain()
	if captain == nil || captain.ID != requester {
		return ErrNotCaptain
	}
	if target == requester {
		return ErrSelfKick
	}
	if !room.state.Remove(target) {
		return ErrNoSuchPlayer
	}
	log.Info().Str("module", "core.coordinator").Str("room", string(roomID)).
		Str("player", string(target)).Msg("player kicked")

	c.msg.Send(target, Kicked{Type: EventKicked, Room: roomID})
	c.broadcastRoomLocked(room)
	return nil
}

// UpdatePlayer overwrites the player's reported score and status
// (last-write-wins, client-trusted) and runs the end-of-session check.
func (c *Coordinator) UpdatePlayer(roomID domain.RoomID, playerID domain.PlayerID, score int, status domain.PlayerStatus) error {
	room, err := c.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer room.mu.Unlock()

	player := room.state.PlayerByID(playerID)
	if player == nil {
		return ErrNoSuchPlayer
	}
	player.Score = score
	player.Status = status

	c.sendAllLocked(room, PlayerUpdated{Type: EventPlayerUpdated, Room: roomID, Player: *player})
	c.evaluateGameOverLocked(room)
	return nil
}

// Disconnect removes the connection's player from every room holding it.
// A departure during PLAYING is not treated as DEAD/FINISHED and does not
// feed the end-of-session check.
func (c *Coordinator) Disconnect(playerID domain.PlayerID) {
	for _, room := range c.reg.All() {
		room.mu.Lock()
		if room.gone || !room.state.Remove(playerID) {
			room.mu.Unlock()
			continue
		}
		log.Info().Str("module", "core.coordinator").Str("room", string(room.state.ID)).
			Str("player", string(playerID)).Msg("player disconnected")
		if len(room.state.Players) == 0 {
			c.deleteRoomLocked(room)
		} else {
			c.broadcastRoomLocked(room)
		}
		room.mu.Unlock()
	}
}

func (c *Coordinator) lockRoom(roomID domain.RoomID) (*Room, error) {
	room, ok := c.reg.Get(roomID)
	if !ok {
		return nil, ErrNoSuchRoom
	}
	room.mu.Lock()
	if room.gone {
		room.mu.Unlock()
		return nil, ErrNoSuchRoom
	}
	return room, nil
}

// evaluateStartLocked is the auto-start check: full room, everyone ready.
// Idempotent while already PLAYING so repeated toggles cannot double-fire
// the start broadcast.
func (c *Coordinator) evaluateStartLocked(room *Room) {
	if room.state.Status == domain.RoomPlaying {
		return
	}
	if len(room.state.Players) != c.cfg.RequiredPlayers || !room.state.AllReady() {
		return
	}

	// Re-entering PLAYING from GAME_OVER obsoletes a pending purge.
	if room.resetTimer != nil {
		room.resetTimer.Stop()
		room.resetTimer = nil
	}

	room.state.Status = domain.RoomPlaying
	startAt := c.now().Add(StartCountdown)
	log.Info().Str("module", "core.coordinator").Str("room", string(room.state.ID)).
		Time("start_at", startAt).Msg("mission starting")

	c.sendAllLocked(room, StartGame{
		Type:      EventStartGame,
		Room:      room.state.ID,
		StartTime: startAt.UnixMilli(),
	})
}

// evaluateGameOverLocked fires once when every player is DEAD or FINISHED
// while the room is PLAYING, then schedules the leaderboard purge.
func (c *Coordinator) evaluateGameOverLocked(room *Room) {
	if room.state.Status != domain.RoomPlaying || !room.state.AllDone() {
		return
	}

	room.state.Status = domain.RoomGameOver
	resetAt := c.now().Add(c.cfg.LeaderboardDuration)
	log.Info().Str("module", "core.coordinator").Str("room", string(room.state.ID)).
		Time("reset_at", resetAt).Msg("mission over")

	c.sendAllLocked(room, ForceGameOver{
		Type:      EventForceGameOver,
		Room:      room.state.ID,
		Players:   room.state.Snapshot(),
		ResetTime: resetAt.UnixMilli(),
	})

	roomID := room.state.ID
	room.resetTimer = time.AfterFunc(c.cfg.LeaderboardDuration, func() {
		c.resetRoom(roomID)
	})
}

// resetRoom is the deferred purge back to LOBBY. The timer is advisory,
// not transactional: existence and status are re-checked under the room
// lock, so a late or duplicate fire degrades to a no-op.
func (c *Coordinator) resetRoom(roomID domain.RoomID) {
	room, ok := c.reg.Get(roomID)
	if !ok {
		return
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	if room.gone || room.state.Status != domain.RoomGameOver {
		return
	}
	room.resetTimer = nil

	if len(room.state.Players) == 0 {
		c.deleteRoomLocked(room)
		return
	}

	captain := room.state.Captain()
	for _, p := range room.state.Players[1:] {
		c.msg.Send(p.ID, Kicked{Type: EventKicked, Room: roomID})
	}
	captain.ResetForLobby()
	room.state.Players = []*domain.Player{captain}
	room.state.Status = domain.RoomLobby
	log.Info().Str("module", "core.coordinator").Str("room", string(roomID)).
		Str("captain", string(captain.ID)).Msg("room reset to lobby")

	c.broadcastRoomLocked(room)
}

// deleteRoomLocked retires an empty room: pending timer first, then the
// registry entry. Callers hold room.mu.
func (c *Coordinator) deleteRoomLocked(room *Room) {
	if room.resetTimer != nil {
		room.resetTimer.Stop()
		room.resetTimer = nil
	}
	room.gone = true
	c.reg.Delete(room.state.ID)
}

func (c *Coordinator) broadcastRoomLocked(room *Room) {
	c.sendAllLocked(room, RoomUpdate{
		Type:    EventRoomUpdate,
		Room:    room.state.ID,
		Players: room.state.Snapshot(),
	})
}

// sendAllLocked fans an event out to every current member. Send is
// non-blocking, so emitting under the room lock is what gives later
// events for this room a strictly newer view.
func (c *Coordinator) sendAllLocked(room *Room, v any) {
	for _, p := range room.state.Players {
		c.msg.Send(p.ID, v)
	}
}
