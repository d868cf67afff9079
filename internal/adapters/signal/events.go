package signal

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/nkrev/missionhub/internal/core"
	"github.com/nkrev/missionhub/internal/domain"
)

func (ctl *Controller) handleJoin(pid domain.PlayerID, c *WsConn, data []byte) {
	type joinPayload struct {
		Type string `json:"type"`
		Room string `json:"room"`
		Name string `json:"name,omitempty"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Room == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(c, "bad_payload")
		return
	}

	log.Info().Str("module", "signal").Str("player", string(pid)).Str("room", p.Room).Msg("join_room")
	err := ctl.Coord.Join(domain.RoomID(p.Room), pid, p.Name)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrRoomPlaying), errors.Is(err, core.ErrRoomFull):
		// Capacity rejections go back to the requester only.
		ctl.sendError(c, err.Error())
	default:
		log.Warn().Err(err).Str("module", "signal").Str("room", p.Room).Msg("join rejected")
	}
}

func (ctl *Controller) handleToggleReady(pid domain.PlayerID, c *WsConn, data []byte) {
	type readyPayload struct {
		Type string `json:"type"`
		Room string `json:"room"`
	}
	var p readyPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Room == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad toggle_ready payload")
		ctl.sendError(c, "bad_payload")
		return
	}

	// Referential misses degrade to a logged no-op, nothing reaches the
	// client.
	if err := ctl.Coord.ToggleReady(domain.RoomID(p.Room), pid); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("room", p.Room).Msg("toggle_ready dropped")
	}
}

func (ctl *Controller) handleKick(pid domain.PlayerID, c *WsConn, data []byte) {
	type kickPayload struct {
		Type   string `json:"type"`
		Room   string `json:"room"`
		Target string `json:"target"`
	}
	var p kickPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Room == "" || p.Target == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad kick payload")
		ctl.sendError(c, "bad_payload")
		return
	}

	// Authorization failures stay silent toward the requester.
	if err := ctl.Coord.Kick(domain.RoomID(p.Room), pid, domain.PlayerID(p.Target)); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("room", p.Room).
			Str("target", p.Target).Msg("kick dropped")
	}
}

func (ctl *Controller) handleUpdatePlayer(pid domain.PlayerID, c *WsConn, data []byte) {
	type updatePayload struct {
		Type   string `json:"type"`
		Room   string `json:"room"`
		Score  int    `json:"score"`
		Status string `json:"status"`
	}
	var p updatePayload
	if err := json.Unmarshal(data, &p); err != nil || p.Room == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad update_player payload")
		ctl.sendError(c, "bad_payload")
		return
	}
	status, ok := domain.ParsePlayerStatus(p.Status)
	if !ok {
		log.Warn().Str("module", "signal").Str("status", p.Status).Msg("unknown player status")
		ctl.sendError(c, "bad_payload")
		return
	}

	if err := ctl.Coord.UpdatePlayer(domain.RoomID(p.Room), pid, p.Score, status); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("room", p.Room).Msg("update_player dropped")
	}
}
