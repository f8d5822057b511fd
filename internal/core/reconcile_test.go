package core

import (
	"testing"

	"github.com/ridethebus/bus-server/internal/domain"
)

func TestToUserListOrderAndHost(t *testing.T) {
	t.Parallel()
	rec, err := domain.NewRoomRecord("t1", "alice", 4, "", "c1")
	if err != nil {
		t.Fatalf("NewRoomRecord: %v", err)
	}
	rec.AddMember("t2", domain.NewMemberRecord("c2", "bob"))
	rec.AddMember("t3", domain.NewMemberRecord("c3", "carol"))
	m := rec.Members["t3"]
	m.Connected = false
	rec.Members["t3"] = m

	got := ToUserList(rec)
	if len(got) != 3 {
		t.Fatalf("length: got %d, want 3", len(got))
	}
	wantTokens := []domain.UserToken{"t1", "t2", "t3"}
	for i, tok := range wantTokens {
		if got[i].Token != tok {
			t.Fatalf("order: got %v", got)
		}
	}
	if !got[0].IsHost || got[1].IsHost || got[2].IsHost {
		t.Errorf("isHost flags wrong: %+v", got)
	}
	if !got[0].Connected || !got[1].Connected || got[2].Connected {
		t.Errorf("connected flags wrong: %+v", got)
	}
	if got[1].Name != "bob" {
		t.Errorf("name: got %q, want bob", got[1].Name)
	}
}

func TestToUserListAfterReelection(t *testing.T) {
	t.Parallel()
	rec, err := domain.NewRoomRecord("t1", "alice", 4, "", "c1")
	if err != nil {
		t.Fatalf("NewRoomRecord: %v", err)
	}
	rec.AddMember("t2", domain.NewMemberRecord("c2", "bob"))
	rec.HostToken = "t2"

	got := ToUserList(rec)
	if got[0].IsHost {
		t.Error("former host still flagged")
	}
	if !got[1].IsHost {
		t.Error("new host not flagged")
	}
}
