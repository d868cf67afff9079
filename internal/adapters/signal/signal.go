package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/nkrev/missionhub/internal/core"
	"github.com/nkrev/missionhub/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller is the websocket transport adapter. It owns the connection
// table and implements core.Messenger for the coordinator.
type Controller struct {
	Coord *core.Coordinator

	// ReadLimit bounds a single inbound frame, in bytes. Zero means the
	// gorilla default.
	ReadLimit int64

	limiter *EventRateLimiter

	mu    sync.RWMutex
	conns map[domain.PlayerID]*WsConn
}

func NewController() *Controller {
	return &Controller{
		limiter: NewEventRateLimiter(20, time.Second),
		conns:   make(map[domain.PlayerID]*WsConn),
	}
}

// WsConn wraps a gorilla connection with a buffered outbound queue so
// senders never block on a slow client.
type WsConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func (c *WsConn) TrySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- data:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// Send implements core.Messenger. A backpressured frame is dropped, not
// fatal: the client's next room_update restores a consistent view.
func (ctl *Controller) Send(id domain.PlayerID, v any) {
	ctl.mu.RLock()
	conn, ok := ctl.conns[id]
	ctl.mu.RUnlock()
	if !ok {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("marshal outbound")
		return
	}
	if err := conn.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("player", string(id)).Msg("dropped frame")
	}
}

// HandleWS upgrades the request and mints a fresh per-connection identity.
// That identity is the player id for the lifetime of the socket.
func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	pid := domain.PlayerID(uuid.NewString())
	conn := &WsConn{
		conn: ws,
		send: make(chan []byte, 32),
	}

	ctl.mu.Lock()
	ctl.conns[pid] = conn
	ctl.mu.Unlock()
	log.Info().Str("module", "signal").Str("player", string(pid)).Msg("new WS connection")

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, pid, conn)
}

func (ctl *Controller) dropConn(pid domain.PlayerID) {
	ctl.mu.Lock()
	delete(ctl.conns, pid)
	ctl.mu.Unlock()
	ctl.limiter.Forget(pid)
}

func (ctl *Controller) sendJSON(c *WsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *Controller) sendError(c *WsConn, msg string) {
	ctl.sendJSON(c, core.ErrorMsg{Type: core.EventErrorMsg, Error: msg})
}
