package core

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nkrev/missionhub/internal/domain"
)

type sentEvent struct {
	to domain.PlayerID
	v  any
}

// fakeMessenger records every outbound event in emission order.
type fakeMessenger struct {
	mu     sync.Mutex
	events []sentEvent
}

func (m *fakeMessenger) Send(id domain.PlayerID, v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, sentEvent{to: id, v: v})
}

func (m *fakeMessenger) all() []sentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentEvent, len(m.events))
	copy(out, m.events)
	return out
}

func eventType(v any) string {
	switch e := v.(type) {
	case RoomUpdate:
		return e.Type
	case ErrorMsg:
		return e.Type
	case StartGame:
		return e.Type
	case PlayerUpdated:
		return e.Type
	case ForceGameOver:
		return e.Type
	case Kicked:
		return e.Type
	}
	return ""
}

func (m *fakeMessenger) countType(t string) int {
	n := 0
	for _, e := range m.all() {
		if eventType(e.v) == t {
			n++
		}
	}
	return n
}

func (m *fakeMessenger) lastOfType(t string) (sentEvent, bool) {
	var found sentEvent
	ok := false
	for _, e := range m.all() {
		if eventType(e.v) == t {
			found = e
			ok = true
		}
	}
	return found, ok
}

func (m *fakeMessenger) receivedType(to domain.PlayerID, t string) bool {
	for _, e := range m.all() {
		if e.to == to && eventType(e.v) == t {
			return true
		}
	}
	return false
}

func newTestCoordinator(required int, leaderboard time.Duration) (*Coordinator, *Registry, *fakeMessenger) {
	reg := NewRegistry()
	msg := &fakeMessenger{}
	c := NewCoordinator(Config{
		RequiredPlayers:     required,
		LeaderboardDuration: leaderboard,
	}, reg, msg)
	return c, reg, msg
}

func fillAndStart(t *testing.T, c *Coordinator, roomID domain.RoomID, ids ...domain.PlayerID) {
	t.Helper()
	for _, id := range ids {
		if err := c.Join(roomID, id, ""); err != nil {
			t.Fatalf("Join(%s): %v", id, err)
		}
	}
	for _, id := range ids {
		if err := c.ToggleReady(roomID, id); err != nil {
			t.Fatalf("ToggleReady(%s): %v", id, err)
		}
	}
}

func TestJoinCreatesRoomWithDefaults(t *testing.T) {
	c, reg, msg := newTestCoordinator(2, time.Minute)

	if err := c.Join("base", "alpha-1234", ""); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if reg.Len() != 1 {
		t.Fatalf("registry size = %d, want 1", reg.Len())
	}
	room, ok := reg.Get("base")
	if !ok {
		t.Fatal("room not registered")
	}
	players := room.Snapshot()
	if len(players) != 1 {
		t.Fatalf("players = %d, want 1", len(players))
	}
	p := players[0]
	if p.Name != "alph" {
		t.Errorf("default name = %q, want %q", p.Name, "alph")
	}
	if p.IsReady || p.Score != 0 || p.Status != domain.StatusAlive {
		t.Errorf("fresh player state = %+v, want unready/0/ALIVE", p)
	}
	if got := msg.countType(EventRoomUpdate); got != 1 {
		t.Errorf("room_update broadcasts = %d, want 1", got)
	}
}

func TestJoinRespectsCapacity(t *testing.T) {
	c, reg, _ := newTestCoordinator(2, time.Minute)

	if err := c.Join("base", "a", "Ann"); err != nil {
		t.Fatalf("Join a: %v", err)
	}
	if err := c.Join("base", "b", "Ben"); err != nil {
		t.Fatalf("Join b: %v", err)
	}
	err := c.Join("base", "c", "Cam")
	if !errors.Is(err, ErrRoomFull) {
		t.Fatalf("third join error = %v, want ErrRoomFull", err)
	}
	room, _ := reg.Get("base")
	if n := room.PlayerCount(); n != 2 {
		t.Errorf("players after rejected join = %d, want 2", n)
	}
}

func TestJoinRejectedWhilePlaying(t *testing.T) {
	c, reg, _ := newTestCoordinator(2, time.Minute)
	fillAndStart(t, c, "base", "a", "b")

	room, _ := reg.Get("base")
	if room.Status() != domain.RoomPlaying {
		t.Fatalf("room status = %s, want PLAYING", room.Status())
	}
	err := c.Join("base", "c", "")
	if !errors.Is(err, ErrRoomPlaying) {
		t.Fatalf("join while playing error = %v, want ErrRoomPlaying", err)
	}
	if n := room.PlayerCount(); n != 2 {
		t.Errorf("players mutated by rejected join: %d, want 2", n)
	}
}

func TestAutoStartFiresExactlyOnce(t *testing.T) {
	c, reg, msg := newTestCoordinator(2, time.Minute)
	fixed := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	if err := c.Join("base", "a", ""); err != nil {
		t.Fatalf("Join a: %v", err)
	}
	if err := c.Join("base", "b", ""); err != nil {
		t.Fatalf("Join b: %v", err)
	}
	if err := c.ToggleReady("base", "a"); err != nil {
		t.Fatalf("ToggleReady a: %v", err)
	}
	if got := msg.countType(EventStartGame); got != 0 {
		t.Fatalf("start_game before all ready = %d, want 0", got)
	}

	if err := c.ToggleReady("base", "b"); err != nil {
		t.Fatalf("ToggleReady b: %v", err)
	}
	if got := msg.countType(EventStartGame); got != 2 {
		// one start_game frame per member
		t.Fatalf("start_game frames = %d, want 2", got)
	}
	ev, _ := msg.lastOfType(EventStartGame)
	start := ev.v.(StartGame)
	if want := fixed.Add(StartCountdown).UnixMilli(); start.StartTime != want {
		t.Errorf("start_time = %d, want %d", start.StartTime, want)
	}

	// Toggling again while PLAYING must not re-fire the start broadcast.
	if err := c.ToggleReady("base", "a"); err != nil {
		t.Fatalf("ToggleReady a again: %v", err)
	}
	if err := c.ToggleReady("base", "a"); err != nil {
		t.Fatalf("ToggleReady a third: %v", err)
	}
	if got := msg.countType(EventStartGame); got != 2 {
		t.Errorf("start_game frames after replays = %d, want 2", got)
	}
	room, _ := reg.Get("base")
	if room.Status() != domain.RoomPlaying {
		t.Errorf("room status = %s, want PLAYING", room.Status())
	}
}

func TestKickAuthorization(t *testing.T) {
	c, reg, msg := newTestCoordinator(3, time.Minute)
	for _, id := range []domain.PlayerID{"cap", "b", "c"} {
		if err := c.Join("base", id, ""); err != nil {
			t.Fatalf("Join(%s): %v", id, err)
		}
	}

	if err := c.Kick("base", "b", "c"); !errors.Is(err, ErrNotCaptain) {
		t.Errorf("non-captain kick error = %v, want ErrNotCaptain", err)
	}
	if err := c.Kick("base", "cap", "cap"); !errors.Is(err, ErrSelfKick) {
		t.Errorf("self kick error = %v, want ErrSelfKick", err)
	}
	if err := c.Kick("base", "cap", "ghost"); !errors.Is(err, ErrNoSuchPlayer) {
		t.Errorf("kick of unknown target error = %v, want ErrNoSuchPlayer", err)
	}

	if err := c.Kick("base", "cap", "b"); err != nil {
		t.Fatalf("captain kick: %v", err)
	}
	if !msg.receivedType("b", EventKicked) {
		t.Error("kicked notification missing for target")
	}
	room, _ := reg.Get("base")
	players := room.Snapshot()
	if len(players) != 2 || players[0].ID != "cap" || players[1].ID != "c" {
		t.Errorf("players after kick = %+v, want [cap c]", players)
	}
}

func TestCaptainShiftsAfterCaptainLeaves(t *testing.T) {
	c, reg, _ := newTestCoordinator(3, time.Minute)
	for _, id := range []domain.PlayerID{"cap", "b", "c"} {
		if err := c.Join("base", id, ""); err != nil {
			t.Fatalf("Join(%s): %v", id, err)
		}
	}

	c.Disconnect("cap")

	// b inherited index 0 and with it the kick authority.
	if err := c.Kick("base", "b", "c"); err != nil {
		t.Fatalf("new captain kick: %v", err)
	}
	room, _ := reg.Get("base")
	players := room.Snapshot()
	if len(players) != 1 || players[0].ID != "b" {
		t.Errorf("players = %+v, want [b]", players)
	}
}

func TestUpdatePlayerTriggersGameOverOnce(t *testing.T) {
	c, reg, msg := newTestCoordinator(2, time.Minute)
	fixed := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }
	fillAndStart(t, c, "base", "a", "b")

	if err := c.UpdatePlayer("base", "a", 1200, domain.StatusFinished); err != nil {
		t.Fatalf("UpdatePlayer a: %v", err)
	}
	if got := msg.countType(EventForceGameOver); got != 0 {
		t.Fatalf("force_game_over with a player still alive = %d, want 0", got)
	}
	ev, ok := msg.lastOfType(EventPlayerUpdated)
	if !ok {
		t.Fatal("player_updated not broadcast")
	}
	upd := ev.v.(PlayerUpdated)
	if upd.Player.ID != "a" || upd.Player.Score != 1200 || upd.Player.Status != domain.StatusFinished {
		t.Errorf("player_updated payload = %+v", upd.Player)
	}

	if err := c.UpdatePlayer("base", "b", 300, domain.StatusDead); err != nil {
		t.Fatalf("UpdatePlayer b: %v", err)
	}
	if got := msg.countType(EventForceGameOver); got != 2 {
		// one frame per member
		t.Fatalf("force_game_over frames = %d, want 2", got)
	}
	over, _ := msg.lastOfType(EventForceGameOver)
	payload := over.v.(ForceGameOver)
	if want := fixed.Add(time.Minute).UnixMilli(); payload.ResetTime != want {
		t.Errorf("reset_time = %d, want %d", payload.ResetTime, want)
	}
	if len(payload.Players) != 2 {
		t.Errorf("final player list size = %d, want 2", len(payload.Players))
	}
	room, _ := reg.Get("base")
	if room.Status() != domain.RoomGameOver {
		t.Errorf("room status = %s, want GAME_OVER", room.Status())
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestResetPurgesBackToLobby(t *testing.T) {
	c, reg, msg := newTestCoordinator(2, 30*time.Millisecond)
	fillAndStart(t, c, "base", "a", "b")

	if err := c.UpdatePlayer("base", "a", 1200, domain.StatusFinished); err != nil {
		t.Fatalf("UpdatePlayer a: %v", err)
	}
	if err := c.UpdatePlayer("base", "b", 300, domain.StatusFinished); err != nil {
		t.Fatalf("UpdatePlayer b: %v", err)
	}

	room, _ := reg.Get("base")
	waitFor(t, time.Second, func() bool {
		return room.Status() == domain.RoomLobby
	})

	players := room.Snapshot()
	if len(players) != 1 {
		t.Fatalf("players after reset = %d, want captain only", len(players))
	}
	captain := players[0]
	if captain.ID != "a" || captain.IsReady || captain.Score != 0 || captain.Status != domain.StatusAlive {
		t.Errorf("captain after reset = %+v, want reset state", captain)
	}
	if !msg.receivedType("b", EventKicked) {
		t.Error("non-captain did not receive kicked on reset")
	}
	if msg.receivedType("a", EventKicked) {
		t.Error("captain received kicked on reset")
	}
	if reg.Len() != 1 {
		t.Errorf("registry size after reset = %d, want 1", reg.Len())
	}
}

func TestRoomDeletionCancelsPendingReset(t *testing.T) {
	c, reg, _ := newTestCoordinator(2, 30*time.Millisecond)
	fillAndStart(t, c, "base", "a", "b")

	if err := c.UpdatePlayer("base", "a", 0, domain.StatusDead); err != nil {
		t.Fatalf("UpdatePlayer a: %v", err)
	}
	if err := c.UpdatePlayer("base", "b", 0, domain.StatusDead); err != nil {
		t.Fatalf("UpdatePlayer b: %v", err)
	}

	c.Disconnect("a")
	c.Disconnect("b")
	if reg.Len() != 0 {
		t.Fatalf("registry size after full disconnect = %d, want 0", reg.Len())
	}

	// The purge timer must not resurrect anything.
	time.Sleep(100 * time.Millisecond)
	if reg.Len() != 0 {
		t.Errorf("registry size after timer window = %d, want 0", reg.Len())
	}
}

func TestDisconnectDoesNotEndSession(t *testing.T) {
	c, reg, msg := newTestCoordinator(2, time.Minute)
	fillAndStart(t, c, "base", "a", "b")

	if err := c.UpdatePlayer("base", "a", 500, domain.StatusFinished); err != nil {
		t.Fatalf("UpdatePlayer a: %v", err)
	}
	// b leaves mid-session; the remaining player is FINISHED but the
	// session stays PLAYING: departures never feed the end check.
	c.Disconnect("b")

	room, _ := reg.Get("base")
	if room.Status() != domain.RoomPlaying {
		t.Errorf("room status after disconnect = %s, want PLAYING", room.Status())
	}
	if got := msg.countType(EventForceGameOver); got != 0 {
		t.Errorf("force_game_over after disconnect = %d, want 0", got)
	}
}

func TestDisconnectBroadcastsOrDeletes(t *testing.T) {
	c, reg, msg := newTestCoordinator(3, time.Minute)
	if err := c.Join("base", "a", ""); err != nil {
		t.Fatalf("Join a: %v", err)
	}
	if err := c.Join("base", "b", ""); err != nil {
		t.Fatalf("Join b: %v", err)
	}

	before := msg.countType(EventRoomUpdate)
	c.Disconnect("b")
	if got := msg.countType(EventRoomUpdate); got != before+1 {
		t.Errorf("room_update frames after partial disconnect = %d, want %d", got, before+1)
	}

	c.Disconnect("a")
	if reg.Len() != 0 {
		t.Errorf("registry size after last disconnect = %d, want 0", reg.Len())
	}
}

// TestMissionLifecycle walks the whole two-player script end to end.
func TestMissionLifecycle(t *testing.T) {
	c, reg, msg := newTestCoordinator(2, 40*time.Millisecond)

	if err := c.Join("raid", "a", "Ann"); err != nil {
		t.Fatalf("Join a: %v", err)
	}
	if err := c.Join("raid", "b", "Ben"); err != nil {
		t.Fatalf("Join b: %v", err)
	}
	if err := c.ToggleReady("raid", "a"); err != nil {
		t.Fatalf("ready a: %v", err)
	}
	if got := msg.countType(EventStartGame); got != 0 {
		t.Fatalf("started with one ready player")
	}
	if err := c.ToggleReady("raid", "b"); err != nil {
		t.Fatalf("ready b: %v", err)
	}

	room, _ := reg.Get("raid")
	if room.Status() != domain.RoomPlaying {
		t.Fatalf("status = %s, want PLAYING", room.Status())
	}

	if err := c.UpdatePlayer("raid", "a", 900, domain.StatusFinished); err != nil {
		t.Fatalf("update a: %v", err)
	}
	if err := c.UpdatePlayer("raid", "b", 750, domain.StatusFinished); err != nil {
		t.Fatalf("update b: %v", err)
	}
	if room.Status() != domain.RoomGameOver {
		t.Fatalf("status = %s, want GAME_OVER", room.Status())
	}

	waitFor(t, time.Second, func() bool {
		return room.Status() == domain.RoomLobby
	})
	players := room.Snapshot()
	if len(players) != 1 || players[0].ID != "a" || players[0].Name != "Ann" {
		t.Fatalf("post-reset players = %+v, want captain Ann only", players)
	}
	if !msg.receivedType("b", EventKicked) {
		t.Error("Ben never received kicked")
	}
}
