// Package domain contains the room entities and the room code generator.
// No transport or persistence logic here.
package domain

import "errors"

const (
	MaxDisplayNameLen = 36
	MinPlayers        = 2
)

var (
	ErrTokenEmpty    = errors.New("user token empty")
	ErrNameEmpty     = errors.New("display name empty")
	ErrNameTooLong   = errors.New("display name too long")
	ErrTooFewPlayers = errors.New("max players below minimum")
)

// RoomCode is the short human-shareable identifier of an active room.
type RoomCode string

// RoomRecord is the persisted state of one room. Order holds member
// insertion order; Go maps iterate randomly and both the user list and
// host re-election depend on join order.
type RoomRecord struct {
	Password    string                     `json:"password"`
	MaxPlayers  int                        `json:"maxPlayers"`
	HostToken   UserToken                  `json:"hostToken"`
	GameStarted bool                       `json:"gameStarted"`
	Members     map[UserToken]MemberRecord `json:"members"`
	Order       []UserToken                `json:"order"`
}

// NewRoomRecord builds the record for a freshly created room with the
// creator seated, connected, and holding host.
func NewRoomRecord(host UserToken, name string, maxPlayers int, password string, conn ConnectionID) (*RoomRecord, error) {
	if host == "" {
		return nil, ErrTokenEmpty
	}
	if name == "" {
		return nil, ErrNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return nil, ErrNameTooLong
	}
	if maxPlayers < MinPlayers {
		return nil, ErrTooFewPlayers
	}
	r := &RoomRecord{
		Password:   password,
		MaxPlayers: maxPlayers,
		HostToken:  host,
		Members:    make(map[UserToken]MemberRecord, maxPlayers),
	}
	r.AddMember(host, NewMemberRecord(conn, name))
	return r, nil
}

// AddMember inserts or replaces a member entry. Order grows only for
// tokens never seen before, so a rejoin keeps the original seat position.
func (r *RoomRecord) AddMember(token UserToken, m MemberRecord) {
	if _, ok := r.Members[token]; !ok {
		r.Order = append(r.Order, token)
	}
	r.Members[token] = m
}

// RemoveMember deletes the entry and its order slot. No-op for unknown tokens.
func (r *RoomRecord) RemoveMember(token UserToken) {
	if _, ok := r.Members[token]; !ok {
		return
	}
	delete(r.Members, token)
	for i, t := range r.Order {
		if t == token {
			r.Order = append(r.Order[:i], r.Order[i+1:]...)
			break
		}
	}
}

func (r *RoomRecord) HasMember(token UserToken) bool {
	_, ok := r.Members[token]
	return ok
}

func (r *RoomRecord) Empty() bool { return len(r.Members) == 0 }

// ConnectedCount is the capacity measure: only live members hold a
// countable seat at join time.
func (r *RoomRecord) ConnectedCount() int {
	n := 0
	for _, m := range r.Members {
		if m.Connected {
			n++
		}
	}
	return n
}

// NextHostAfter returns the member following departing in insertion
// order, wrapping past the end. Reports false when departing is the only
// member, in which case the caller must leave HostToken alone.
func (r *RoomRecord) NextHostAfter(departing UserToken) (UserToken, bool) {
	at := -1
	for i, t := range r.Order {
		if t == departing {
			at = i
			break
		}
	}
	if at < 0 {
		return "", false
	}
	for i := 1; i < len(r.Order); i++ {
		candidate := r.Order[(at+i)%len(r.Order)]
		if candidate != departing {
			return candidate, true
		}
	}
	return "", false
}

// Clone deep-copies the record so store callers never alias the stored maps.
func (r *RoomRecord) Clone() *RoomRecord {
	out := &RoomRecord{
		Password:    r.Password,
		MaxPlayers:  r.MaxPlayers,
		HostToken:   r.HostToken,
		GameStarted: r.GameStarted,
		Members:     make(map[UserToken]MemberRecord, len(r.Members)),
		Order:       append([]UserToken(nil), r.Order...),
	}
	for t, m := range r.Members {
		out.Members[t] = m
	}
	return out
}
