package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/ridethebus/bus-server/internal/core"
	"github.com/ridethebus/bus-server/internal/domain"
)

// dispatch routes one inbound frame by its type envelope. Every request
// gets a response echoing its type with status ok or error; pushes to
// the rest of the room go through the hub.
func (ctl *Controller) dispatch(ctx context.Context, connID domain.ConnectionID, clientToken string, reply sender, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad json frame")
		ctl.respondErr(reply, "", core.Errorf(core.CodeInvalidInput, "malformed frame"))
		return
	}

	switch env.Type {
	case "createRoom":
		ctl.handleCreateRoom(ctx, connID, clientToken, reply, data)
	case "joinRoom":
		ctl.handleJoinRoom(ctx, connID, clientToken, reply, data)
	case "startGame":
		ctl.handleStartGame(ctx, clientToken, reply, data)
	case "removePlayer":
		ctl.handleRemovePlayer(ctx, clientToken, reply, data)
	case "leaveRoom":
		ctl.handleLeaveRoom(ctx, clientToken, reply, data)
	case "ping":
		ctl.handlePing(reply)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown event")
		ctl.respondErr(reply, env.Type, core.Errorf(core.CodeInvalidInput, "unknown event %q", env.Type))
	}
}

func (ctl *Controller) handleCreateRoom(ctx context.Context, connID domain.ConnectionID, clientToken string, reply sender, data []byte) {
	type createPayload struct {
		Type       string `json:"type"`
		UserID     string `json:"userId"`
		Name       string `json:"name"`
		MaxPlayers int    `json:"maxPlayers"`
		Password   string `json:"password"`
	}
	var p createPayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.respondErr(reply, "createRoom", core.Errorf(core.CodeInvalidInput, "bad payload"))
		return
	}
	if !ctl.limiter.Allow(connID) {
		ctl.respondErr(reply, "createRoom", core.Errorf(core.CodeRateLimited, "too many attempts"))
		return
	}

	res, err := ctl.session.CreateRoom(ctx, core.CreateParams{
		UserToken:   orToken(p.UserID, clientToken),
		DisplayName: p.Name,
		MaxPlayers:  p.MaxPlayers,
		Password:    p.Password,
		Connection:  connID,
	})
	if err != nil {
		ctl.respondErr(reply, "createRoom", err)
		return
	}
	ctl.sendJSON(reply, struct {
		Type   string           `json:"type"`
		Status string           `json:"status"`
		Room   domain.RoomCode  `json:"room"`
		Token  domain.UserToken `json:"token"`
	}{"createRoom", "ok", res.RoomCode, res.Token})
}

func (ctl *Controller) handleJoinRoom(ctx context.Context, connID domain.ConnectionID, clientToken string, reply sender, data []byte) {
	type joinPayload struct {
		Type     string `json:"type"`
		UserID   string `json:"userId"`
		Name     string `json:"name"`
		RoomCode string `json:"roomCode"`
		Password string `json:"password"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.respondErr(reply, "joinRoom", core.Errorf(core.CodeInvalidInput, "bad payload"))
		return
	}
	if !ctl.limiter.Allow(connID) {
		ctl.respondErr(reply, "joinRoom", core.Errorf(core.CodeRateLimited, "too many attempts"))
		return
	}

	res, err := ctl.session.JoinRoom(ctx, core.JoinParams{
		UserToken:   orToken(p.UserID, clientToken),
		DisplayName: p.Name,
		RoomCode:    p.RoomCode,
		Password:    p.Password,
		Connection:  connID,
	})
	if err != nil {
		ctl.respondErr(reply, "joinRoom", err)
		return
	}
	ctl.sendJSON(reply, struct {
		Type   string           `json:"type"`
		Status string           `json:"status"`
		Room   domain.RoomCode  `json:"room"`
		Token  domain.UserToken `json:"token"`
	}{"joinRoom", "ok", res.RoomCode, res.Token})
}

func (ctl *Controller) handleStartGame(ctx context.Context, clientToken string, reply sender, data []byte) {
	type startPayload struct {
		Type  string `json:"type"`
		Token string `json:"token"`
		Room  string `json:"room"`
	}
	var p startPayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.respondErr(reply, "startGame", core.Errorf(core.CodeInvalidInput, "bad payload"))
		return
	}
	err := ctl.session.StartGame(ctx, domain.UserToken(orToken(p.Token, clientToken)), domain.RoomCode(p.Room))
	if err != nil {
		ctl.respondErr(reply, "startGame", err)
		return
	}
	ctl.respondOK(reply, "startGame")
}

func (ctl *Controller) handleRemovePlayer(ctx context.Context, clientToken string, reply sender, data []byte) {
	type removePayload struct {
		Type        string `json:"type"`
		Token       string `json:"token"`
		Room        string `json:"room"`
		RemoveToken string `json:"removeToken"`
	}
	var p removePayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.respondErr(reply, "removePlayer", core.Errorf(core.CodeInvalidInput, "bad payload"))
		return
	}
	err := ctl.session.RemovePlayer(ctx, domain.UserToken(orToken(p.Token, clientToken)), domain.RoomCode(p.Room), domain.UserToken(p.RemoveToken))
	if err != nil {
		ctl.respondErr(reply, "removePlayer", err)
		return
	}
	ctl.respondOK(reply, "removePlayer")
}

func (ctl *Controller) handleLeaveRoom(ctx context.Context, clientToken string, reply sender, data []byte) {
	type leavePayload struct {
		Type  string `json:"type"`
		Token string `json:"token"`
		Room  string `json:"room"`
	}
	var p leavePayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.respondErr(reply, "leaveRoom", core.Errorf(core.CodeInvalidInput, "bad payload"))
		return
	}
	err := ctl.session.LeaveRoom(ctx, domain.UserToken(orToken(p.Token, clientToken)), domain.RoomCode(p.Room))
	if err != nil {
		ctl.respondErr(reply, "leaveRoom", err)
		return
	}
	ctl.respondOK(reply, "leaveRoom")
}

func (ctl *Controller) handlePing(reply sender) {
	ctl.sendJSON(reply, struct {
		Type string `json:"type"`
	}{Type: "pong"})
}

// orToken prefers the client-supplied identity and falls back to the
// durable cookie token, so browser clients reconnect without carrying
// their own identity state.
func orToken(supplied, cookie string) string {
	if supplied != "" {
		return supplied
	}
	return cookie
}

func (ctl *Controller) respondOK(reply sender, typ string) {
	ctl.sendJSON(reply, struct {
		Type   string `json:"type"`
		Status string `json:"status"`
	}{typ, "ok"})
}

func (ctl *Controller) respondErr(reply sender, typ string, err error) {
	ctl.sendJSON(reply, struct {
		Type    string         `json:"type"`
		Status  string         `json:"status"`
		Error   core.ErrorCode `json:"error"`
		Message string         `json:"message"`
	}{typ, "error", core.CodeOf(err), err.Error()})
}

func (ctl *Controller) sendJSON(reply sender, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = reply.TrySend(b)
}
