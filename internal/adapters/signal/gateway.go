package signal

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ridethebus/bus-server/internal/core"
	"github.com/ridethebus/bus-server/internal/domain"
	"github.com/ridethebus/bus-server/internal/store"
)

// Hub is the broadcast gateway: it owns the live connection registry
// and the per-room subscriber sets. It reads room records to build
// pushes but never mutates them.
type Hub struct {
	store store.RoomStore

	mu    sync.RWMutex
	conns map[domain.ConnectionID]sender
	rooms map[domain.RoomCode]map[domain.ConnectionID]struct{}
}

func NewHub(st store.RoomStore) *Hub {
	return &Hub{
		store: st,
		conns: make(map[domain.ConnectionID]sender),
		rooms: make(map[domain.RoomCode]map[domain.ConnectionID]struct{}),
	}
}

// Register binds a live connection. Called once per websocket upgrade.
func (h *Hub) Register(id domain.ConnectionID, s sender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[id] = s
	log.Info().Str("module", "signal.hub").Str("conn", string(id)).Msg("connection registered")
}

// Drop forgets a connection entirely: the registry entry and every room
// subscription. Called when the transport closes.
func (h *Hub) Drop(id domain.ConnectionID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, id)
	for code, subs := range h.rooms {
		if _, ok := subs[id]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(h.rooms, code)
			}
		}
	}
	log.Info().Str("module", "signal.hub").Str("conn", string(id)).Msg("connection dropped")
}

func (h *Hub) Subscribe(code domain.RoomCode, id domain.ConnectionID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.rooms[code]
	if !ok {
		subs = make(map[domain.ConnectionID]struct{})
		h.rooms[code] = subs
	}
	subs[id] = struct{}{}
}

func (h *Hub) Unsubscribe(code domain.RoomCode, id domain.ConnectionID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.rooms[code]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(h.rooms, code)
		}
	}
}

// PublishUserList loads the current record, reconciles it, and pushes
// the result to every subscriber of the room channel. Best effort.
func (h *Hub) PublishUserList(ctx context.Context, code domain.RoomCode) {
	rec, ok, err := h.store.Get(ctx, code)
	if err != nil {
		log.Error().Err(err).Str("module", "signal.hub").Str("room", string(code)).Msg("user list load failed")
		return
	}
	if !ok {
		return
	}
	h.publish(code, struct {
		Type  string           `json:"type"`
		Users []core.UserEntry `json:"users"`
	}{
		Type:  "userList",
		Users: core.ToUserList(rec),
	})
}

// PublishGameStarted pushes the one-shot start notification.
func (h *Hub) PublishGameStarted(_ context.Context, code domain.RoomCode) {
	h.publish(code, struct {
		Type string `json:"type"`
	}{Type: "gameStarted"})
}

// NotifyKicked tells one connection it was removed and detaches it from
// the room channel.
func (h *Hub) NotifyKicked(code domain.RoomCode, id domain.ConnectionID) {
	h.mu.RLock()
	conn, ok := h.conns[id]
	h.mu.RUnlock()
	if ok {
		h.sendJSON(conn, struct {
			Type string `json:"type"`
		}{Type: "kicked"})
	}
	h.Unsubscribe(code, id)
}

func (h *Hub) publish(code domain.RoomCode, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal.hub").Msg("publish marshal")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	sent, dropped := 0, 0
	for id := range h.rooms[code] {
		conn, ok := h.conns[id]
		if !ok {
			continue
		}
		if err := conn.TrySend(b); err != nil {
			dropped++
			continue
		}
		sent++
	}
	log.Debug().Str("module", "signal.hub").Str("room", string(code)).Int("sent_to", sent).Int("dropped", dropped).Msg("publish result")
}

func (h *Hub) sendJSON(conn sender, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal.hub").Msg("sendJSON marshal")
		return
	}
	_ = conn.TrySend(b)
}
