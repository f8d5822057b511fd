// Package core holds the room session state machine and its membership
// reconciler. The state machine is the sole writer of room records:
// every transition validates, loads, computes the next record, persists,
// then triggers the broadcast gateway.
package core

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/ridethebus/bus-server/internal/domain"
	"github.com/ridethebus/bus-server/internal/store"
)

// Gateway fans state out to connected members. Side-effect only; a
// failed push never rolls back a persisted transition.
type Gateway interface {
	Subscribe(code domain.RoomCode, conn domain.ConnectionID)
	Unsubscribe(code domain.RoomCode, conn domain.ConnectionID)
	PublishUserList(ctx context.Context, code domain.RoomCode)
	PublishGameStarted(ctx context.Context, code domain.RoomCode)
	NotifyKicked(code domain.RoomCode, conn domain.ConnectionID)
}

// CodeSource mints candidate room codes. *domain.CodeGenerator in
// production; tests substitute fixed sequences.
type CodeSource interface {
	Generate() (domain.RoomCode, error)
}

const DefaultCodeAttempts = 16

// Session applies room transitions against the store. Transitions on
// the same room code are serialized in-process; cross-process races are
// an accepted limitation of the non-transactional store.
type Session struct {
	store        store.RoomStore
	gateway      Gateway
	codes        CodeSource
	codeAttempts int
	validate     *validator.Validate
	locks        *keyedMutex
}

func NewSession(st store.RoomStore, gw Gateway, codes CodeSource, codeAttempts int) *Session {
	if codeAttempts <= 0 {
		codeAttempts = DefaultCodeAttempts
	}
	return &Session{
		store:        st,
		gateway:      gw,
		codes:        codes,
		codeAttempts: codeAttempts,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		locks:        newKeyedMutex(),
	}
}

type CreateParams struct {
	UserToken   string              `validate:"required"`
	DisplayName string              `validate:"required,max=36"`
	MaxPlayers  int                 `validate:"gte=2"`
	Password    string
	Connection  domain.ConnectionID `validate:"required"`
}

type JoinParams struct {
	UserToken   string              `validate:"required"`
	DisplayName string              `validate:"required,max=36"`
	RoomCode    string              `validate:"required"`
	Password    string
	Connection  domain.ConnectionID `validate:"required"`
}

// SeatResult is returned by createRoom and joinRoom: the room code and
// the durable token the client must present on reconnect.
type SeatResult struct {
	RoomCode domain.RoomCode  `json:"room"`
	Token    domain.UserToken `json:"token"`
}

// CreateRoom mints a fresh unique code, seats the creator as connected
// host, persists, and broadcasts the initial user list.
func (s *Session) CreateRoom(ctx context.Context, p CreateParams) (*SeatResult, error) {
	if err := s.validate.Struct(p); err != nil {
		return nil, Errorf(CodeInvalidInput, "invalid create request: %v", err)
	}

	code, err := s.freeCode(ctx)
	if err != nil {
		return nil, err
	}

	token := domain.UserToken(p.UserToken)
	rec, err := domain.NewRoomRecord(token, p.DisplayName, p.MaxPlayers, p.Password, p.Connection)
	if err != nil {
		return nil, Errorf(CodeInvalidInput, "invalid create request: %v", err)
	}

	s.locks.lock(code)
	defer s.locks.unlock(code)
	if err := s.store.Put(ctx, code, rec); err != nil {
		return nil, storeErr("create room", err)
	}
	log.Info().Str("module", "core.session").Str("room", string(code)).Str("host", p.UserToken).Int("max_players", p.MaxPlayers).Msg("room created")

	s.gateway.Subscribe(code, p.Connection)
	s.gateway.PublishUserList(ctx, code)
	return &SeatResult{RoomCode: code, Token: token}, nil
}

// freeCode retries the generator until the store reports the code
// absent, bounded so a pathological generator cannot loop forever.
func (s *Session) freeCode(ctx context.Context) (domain.RoomCode, error) {
	for attempt := 0; attempt < s.codeAttempts; attempt++ {
		code, err := s.codes.Generate()
		if err != nil {
			return "", Errorf(CodeInternal, "code generation: %v", err)
		}
		_, taken, err := s.store.Get(ctx, code)
		if err != nil {
			return "", storeErr("check code", err)
		}
		if !taken {
			return code, nil
		}
		log.Warn().Str("module", "core.session").Str("room", string(code)).Int("attempt", attempt+1).Msg("room code collision")
	}
	return "", Errorf(CodeGenerationExhausted, "no free room code after %d attempts", s.codeAttempts)
}

// JoinRoom seats a new member or reconnects an existing one. Failure
// order: absent room, then password, then capacity. A rejoin is
// capacity-exempt: a tracked token already owns its seat.
func (s *Session) JoinRoom(ctx context.Context, p JoinParams) (*SeatResult, error) {
	if err := s.validate.Struct(p); err != nil {
		return nil, Errorf(CodeInvalidInput, "invalid join request: %v", err)
	}
	code := domain.RoomCode(p.RoomCode)
	token := domain.UserToken(p.UserToken)

	s.locks.lock(code)
	defer s.locks.unlock(code)

	rec, ok, err := s.store.Get(ctx, code)
	if err != nil {
		return nil, storeErr("join room", err)
	}
	if !ok {
		return nil, Errorf(CodeRoomNotFound, "room %s not found", code)
	}
	if rec.Password != p.Password {
		return nil, Errorf(CodeUnauthorized, "wrong password")
	}

	rejoin := rec.HasMember(token)
	if !rejoin && rec.ConnectedCount() >= rec.MaxPlayers {
		return nil, Errorf(CodeRoomFull, "room %s is full", code)
	}

	if rejoin {
		m := rec.Members[token]
		m.ConnectionID = p.Connection
		m.DisplayName = p.DisplayName
		m.Connected = true
		rec.Members[token] = m
	} else {
		rec.AddMember(token, domain.NewMemberRecord(p.Connection, p.DisplayName))
	}

	up := store.MembershipUpdate{Members: rec.Members, Order: rec.Order, HostToken: rec.HostToken}
	if err := s.store.UpdateMembership(ctx, code, up); err != nil {
		return nil, storeErr("join room", err)
	}
	log.Info().Str("module", "core.session").Str("room", string(code)).Str("user", p.UserToken).Bool("rejoin", rejoin).Msg("member joined")

	s.gateway.Subscribe(code, p.Connection)
	s.gateway.PublishUserList(ctx, code)
	return &SeatResult{RoomCode: code, Token: token}, nil
}

// StartGame flips the monotonic started flag. Host only. Idempotent
// when already started.
func (s *Session) StartGame(ctx context.Context, token domain.UserToken, code domain.RoomCode) error {
	if token == "" || code == "" {
		return Errorf(CodeInvalidInput, "token and room are required")
	}

	s.locks.lock(code)
	defer s.locks.unlock(code)

	rec, ok, err := s.store.Get(ctx, code)
	if err != nil {
		return storeErr("start game", err)
	}
	if !ok {
		return Errorf(CodeRoomNotFound, "room %s not found", code)
	}
	if rec.HostToken != token {
		return Errorf(CodeForbidden, "only the host can start the game")
	}
	if !rec.GameStarted {
		if err := s.store.SetGameStarted(ctx, code); err != nil {
			return storeErr("start game", err)
		}
	}
	log.Info().Str("module", "core.session").Str("room", string(code)).Msg("game started")

	s.gateway.PublishGameStarted(ctx, code)
	return nil
}

// RemovePlayer kicks a member. Host only, and the host itself is never
// removable through this path: re-election only happens on disconnect,
// and a dangling hostToken would break the room.
func (s *Session) RemovePlayer(ctx context.Context, token domain.UserToken, code domain.RoomCode, removeToken domain.UserToken) error {
	if token == "" || code == "" || removeToken == "" {
		return Errorf(CodeInvalidInput, "token, room and removeToken are required")
	}

	s.locks.lock(code)
	defer s.locks.unlock(code)

	rec, ok, err := s.store.Get(ctx, code)
	if err != nil {
		return storeErr("remove player", err)
	}
	if !ok {
		return Errorf(CodeRoomNotFound, "room %s not found", code)
	}
	if rec.HostToken != token {
		return Errorf(CodeForbidden, "only the host can remove players")
	}
	m, ok := rec.Members[removeToken]
	if !ok {
		return Errorf(CodePlayerNotFound, "player not in room")
	}
	if removeToken == rec.HostToken {
		return Errorf(CodeForbidden, "the host cannot be removed")
	}

	s.gateway.NotifyKicked(code, m.ConnectionID)

	rec.RemoveMember(removeToken)
	up := store.MembershipUpdate{Members: rec.Members, Order: rec.Order, HostToken: rec.HostToken}
	if err := s.store.UpdateMembership(ctx, code, up); err != nil {
		return storeErr("remove player", err)
	}
	log.Info().Str("module", "core.session").Str("room", string(code)).Str("removed", string(removeToken)).Msg("player removed")

	s.gateway.PublishUserList(ctx, code)
	return nil
}

// LeaveRoom removes the caller's own entry. A departing host hands off
// to the next member in join order first. The record is deleted once
// members empties; this is the only way a room ends.
func (s *Session) LeaveRoom(ctx context.Context, token domain.UserToken, code domain.RoomCode) error {
	if token == "" || code == "" {
		return Errorf(CodeInvalidInput, "token and room are required")
	}

	s.locks.lock(code)
	defer s.locks.unlock(code)

	rec, ok, err := s.store.Get(ctx, code)
	if err != nil {
		return storeErr("leave room", err)
	}
	if !ok {
		return Errorf(CodeRoomNotFound, "room %s not found", code)
	}
	m, ok := rec.Members[token]
	if !ok {
		return Errorf(CodePlayerNotFound, "player not in room")
	}

	if rec.HostToken == token {
		if next, ok := rec.NextHostAfter(token); ok {
			rec.HostToken = next
			log.Info().Str("module", "core.session").Str("room", string(code)).Str("host", string(next)).Msg("host re-elected")
		}
	}
	rec.RemoveMember(token)
	s.gateway.Unsubscribe(code, m.ConnectionID)

	if rec.Empty() {
		if err := s.store.Delete(ctx, code); err != nil {
			return storeErr("leave room", err)
		}
		log.Info().Str("module", "core.session").Str("room", string(code)).Msg("room emptied, deleted")
		return nil
	}

	up := store.MembershipUpdate{Members: rec.Members, Order: rec.Order, HostToken: rec.HostToken}
	if err := s.store.UpdateMembership(ctx, code, up); err != nil {
		return storeErr("leave room", err)
	}
	log.Info().Str("module", "core.session").Str("room", string(code)).Str("user", string(token)).Msg("member left")

	s.gateway.PublishUserList(ctx, code)
	return nil
}

// Disconnect handles transport-level loss of a connection. The member
// stays tracked for reconnection; only its connected flag flips. A
// departing host is re-elected by join order, wrapping, except when it
// is the sole member. One broadcast per affected room, after persisting.
func (s *Session) Disconnect(ctx context.Context, conn domain.ConnectionID) error {
	rooms, err := s.store.All(ctx)
	if err != nil {
		return storeErr("disconnect scan", err)
	}
	for code := range rooms {
		s.disconnectFromRoom(ctx, code, conn)
	}
	return nil
}

func (s *Session) disconnectFromRoom(ctx context.Context, code domain.RoomCode, conn domain.ConnectionID) {
	s.locks.lock(code)
	defer s.locks.unlock(code)

	// Re-read under the room lock; the snapshot from the scan may be stale.
	rec, ok, err := s.store.Get(ctx, code)
	if err != nil {
		log.Error().Err(err).Str("module", "core.session").Str("room", string(code)).Msg("disconnect read failed")
		return
	}
	if !ok {
		return
	}

	var token domain.UserToken
	found := false
	for t, m := range rec.Members {
		if m.ConnectionID == conn {
			token = t
			found = true
			break
		}
	}
	if !found {
		return
	}

	m := rec.Members[token]
	m.Connected = false
	rec.Members[token] = m

	if rec.HostToken == token {
		if next, ok := rec.NextHostAfter(token); ok {
			rec.HostToken = next
			log.Info().Str("module", "core.session").Str("room", string(code)).Str("host", string(next)).Msg("host re-elected")
		}
	}

	up := store.MembershipUpdate{Members: rec.Members, Order: rec.Order, HostToken: rec.HostToken}
	if err := s.store.UpdateMembership(ctx, code, up); err != nil {
		log.Error().Err(err).Str("module", "core.session").Str("room", string(code)).Msg("disconnect write failed")
		return
	}
	log.Info().Str("module", "core.session").Str("room", string(code)).Str("user", string(token)).Msg("member disconnected")

	s.gateway.PublishUserList(ctx, code)
}
