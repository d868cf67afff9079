package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/nkrev/missionhub/internal/domain"
)

func (ctl *Controller) writePump(ctx context.Context, c *WsConn) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump drives the connection's whole lifecycle: on exit the player is
// removed from every room it occupied.
func (ctl *Controller) readPump(ctx context.Context, pid domain.PlayerID, c *WsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("player", string(pid)).Msg("readPump closing")
		ctl.dropConn(pid)
		ctl.Coord.Disconnect(pid)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				return
			}
			ctl.handleEvent(pid, c, data)
		}
	}
}

func (ctl *Controller) handleEvent(pid domain.PlayerID, c *WsConn, data []byte) {
	if !ctl.limiter.Allow(pid) {
		log.Warn().Str("module", "signal").Str("player", string(pid)).Msg("rate limited")
		return
	}

	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case "join_room":
		ctl.handleJoin(pid, c, data)
	case "toggle_ready":
		ctl.handleToggleReady(pid, c, data)
	case "kick_player":
		ctl.handleKick(pid, c, data)
	case "update_player":
		ctl.handleUpdatePlayer(pid, c, data)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown event")
	}
}
