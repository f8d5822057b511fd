package signal

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ridethebus/bus-server/internal/config"
	"github.com/ridethebus/bus-server/internal/core"
	"github.com/ridethebus/bus-server/internal/domain"
	"github.com/ridethebus/bus-server/internal/store"
)

func newTestController(t *testing.T, attemptLimit int) (*Controller, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	hub := NewHub(st)
	session := core.NewSession(st, hub, domain.NewCodeGenerator(6), 0)
	cfg := &config.Config{
		AttemptLimit:  attemptLimit,
		AttemptWindow: time.Minute,
	}
	return NewController(cfg, session, hub), st
}

func (f *fakeSender) lastFrame(t *testing.T) map[string]any {
	t.Helper()
	f.mu.Lock()
	n := len(f.frames)
	f.mu.Unlock()
	if n == 0 {
		t.Fatal("no response frame")
	}
	return f.decode(t, n-1)
}

func TestDispatchMalformedFrame(t *testing.T) {
	t.Parallel()
	ctl, _ := newTestController(t, 100)
	reply := &fakeSender{}
	ctl.dispatch(context.Background(), "conn-1", "cookie-1", reply, []byte("{not json"))
	msg := reply.lastFrame(t)
	if msg["status"] != "error" || msg["error"] != "invalid_input" {
		t.Errorf("response: %v", msg)
	}
}

func TestDispatchUnknownEvent(t *testing.T) {
	t.Parallel()
	ctl, _ := newTestController(t, 100)
	reply := &fakeSender{}
	ctl.dispatch(context.Background(), "conn-1", "cookie-1", reply, []byte(`{"type":"dealCards"}`))
	msg := reply.lastFrame(t)
	if msg["status"] != "error" || msg["error"] != "invalid_input" {
		t.Errorf("response: %v", msg)
	}
}

func TestDispatchCreateRoom(t *testing.T) {
	t.Parallel()
	ctl, st := newTestController(t, 100)
	reply := &fakeSender{}
	ctl.dispatch(context.Background(), "conn-1", "cookie-1", reply,
		[]byte(`{"type":"createRoom","userId":"t1","name":"alice","maxPlayers":4,"password":"pw"}`))

	msg := reply.lastFrame(t)
	if msg["type"] != "createRoom" || msg["status"] != "ok" {
		t.Fatalf("response: %v", msg)
	}
	if msg["token"] != "t1" {
		t.Errorf("token: %v", msg["token"])
	}
	room, _ := msg["room"].(string)
	if len(room) != 6 {
		t.Fatalf("room code: %v", msg["room"])
	}
	if _, ok, _ := st.Get(context.Background(), domain.RoomCode(room)); !ok {
		t.Error("room not persisted")
	}
}

func TestDispatchCreateRoomFallsBackToCookieToken(t *testing.T) {
	t.Parallel()
	ctl, _ := newTestController(t, 100)
	reply := &fakeSender{}
	ctl.dispatch(context.Background(), "conn-1", "cookie-9", reply,
		[]byte(`{"type":"createRoom","name":"alice","maxPlayers":4}`))
	msg := reply.lastFrame(t)
	if msg["status"] != "ok" || msg["token"] != "cookie-9" {
		t.Errorf("response: %v", msg)
	}
}

func TestDispatchCreateRoomInvalid(t *testing.T) {
	t.Parallel()
	ctl, _ := newTestController(t, 100)
	reply := &fakeSender{}
	ctl.dispatch(context.Background(), "conn-1", "cookie-1", reply,
		[]byte(`{"type":"createRoom","userId":"t1","name":"alice","maxPlayers":1}`))
	msg := reply.lastFrame(t)
	if msg["status"] != "error" || msg["error"] != "invalid_input" {
		t.Errorf("response: %v", msg)
	}
}

func TestDispatchJoinRoomErrors(t *testing.T) {
	t.Parallel()
	ctl, _ := newTestController(t, 100)
	creator := &fakeSender{}
	ctl.dispatch(context.Background(), "conn-1", "cookie-1", creator,
		[]byte(`{"type":"createRoom","userId":"t1","name":"alice","maxPlayers":2,"password":"abc"}`))
	room := creator.lastFrame(t)["room"].(string)

	tests := []struct {
		name     string
		frame    string
		wantCode string
	}{
		{"absent room", `{"type":"joinRoom","userId":"t2","name":"bob","roomCode":"NOROOM","password":"abc"}`, "room_not_found"},
		{"wrong password", fmt.Sprintf(`{"type":"joinRoom","userId":"t2","name":"bob","roomCode":"%s","password":"zzz"}`, room), "unauthorized"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			reply := &fakeSender{}
			ctl.dispatch(context.Background(), "conn-2", "cookie-2", reply, []byte(test.frame))
			msg := reply.lastFrame(t)
			if msg["status"] != "error" || msg["error"] != test.wantCode {
				t.Errorf("response: %v", msg)
			}
		})
	}
}

func TestDispatchStartGameForbiddenForGuest(t *testing.T) {
	t.Parallel()
	ctl, _ := newTestController(t, 100)
	creator := &fakeSender{}
	ctl.dispatch(context.Background(), "conn-1", "cookie-1", creator,
		[]byte(`{"type":"createRoom","userId":"t1","name":"alice","maxPlayers":4}`))
	room := creator.lastFrame(t)["room"].(string)

	guest := &fakeSender{}
	ctl.dispatch(context.Background(), "conn-2", "cookie-2", guest,
		[]byte(fmt.Sprintf(`{"type":"joinRoom","userId":"t2","name":"bob","roomCode":"%s"}`, room)))

	ctl.dispatch(context.Background(), "conn-2", "cookie-2", guest,
		[]byte(fmt.Sprintf(`{"type":"startGame","token":"t2","room":"%s"}`, room)))
	msg := guest.lastFrame(t)
	if msg["status"] != "error" || msg["error"] != "forbidden" {
		t.Errorf("response: %v", msg)
	}

	host := &fakeSender{}
	ctl.dispatch(context.Background(), "conn-1", "cookie-1", host,
		[]byte(fmt.Sprintf(`{"type":"startGame","token":"t1","room":"%s"}`, room)))
	if msg := host.lastFrame(t); msg["status"] != "ok" {
		t.Errorf("host start: %v", msg)
	}
}

func TestDispatchRateLimitsAttempts(t *testing.T) {
	t.Parallel()
	ctl, _ := newTestController(t, 1)
	reply := &fakeSender{}
	frame := []byte(`{"type":"createRoom","userId":"t1","name":"alice","maxPlayers":4}`)

	ctl.dispatch(context.Background(), "conn-1", "cookie-1", reply, frame)
	if msg := reply.lastFrame(t); msg["status"] != "ok" {
		t.Fatalf("first attempt: %v", msg)
	}
	ctl.dispatch(context.Background(), "conn-1", "cookie-1", reply, frame)
	if msg := reply.lastFrame(t); msg["error"] != "rate_limited" {
		t.Errorf("second attempt: %v", msg)
	}
}

func TestDispatchPing(t *testing.T) {
	t.Parallel()
	ctl, _ := newTestController(t, 100)
	reply := &fakeSender{}
	ctl.dispatch(context.Background(), "conn-1", "cookie-1", reply, []byte(`{"type":"ping"}`))
	if msg := reply.lastFrame(t); msg["type"] != "pong" {
		t.Errorf("response: %v", msg)
	}
}
