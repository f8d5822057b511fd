package core

import "github.com/ridethebus/bus-server/internal/domain"

// UserEntry is the host-visible view of one member. The wire field names
// are part of the client protocol.
type UserEntry struct {
	Token     domain.UserToken `json:"token"`
	Name      string           `json:"name"`
	Connected bool             `json:"connected"`
	IsHost    bool             `json:"isHost"`
}

// ToUserList reconciles a record into the ordered member view pushed to
// clients. Pure; insertion order; no I/O.
func ToUserList(rec *domain.RoomRecord) []UserEntry {
	out := make([]UserEntry, 0, len(rec.Order))
	for _, token := range rec.Order {
		m, ok := rec.Members[token]
		if !ok {
			continue
		}
		out = append(out, UserEntry{
			Token:     token,
			Name:      m.DisplayName,
			Connected: m.Connected,
			IsHost:    token == rec.HostToken,
		})
	}
	return out
}
