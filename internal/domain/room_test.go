package domain

import "testing"

func seatRecord(t *testing.T, tokens ...UserToken) *RoomRecord {
	t.Helper()
	rec, err := NewRoomRecord(tokens[0], "host", 8, "", "conn-0")
	if err != nil {
		t.Fatalf("NewRoomRecord: %v", err)
	}
	for i, tok := range tokens[1:] {
		rec.AddMember(tok, NewMemberRecord(ConnectionID(rune('a'+i)), string(tok)))
	}
	return rec
}

func TestNewRoomRecordValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		host       UserToken
		display    string
		maxPlayers int
		wantErr    error
	}{
		{"empty token", "", "alice", 4, ErrTokenEmpty},
		{"empty name", "t1", "", 4, ErrNameEmpty},
		{"name too long", "t1", string(make([]byte, MaxDisplayNameLen+1)), 4, ErrNameTooLong},
		{"one player", "t1", "alice", 1, ErrTooFewPlayers},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewRoomRecord(test.host, test.display, test.maxPlayers, "", "c1")
			if err != test.wantErr {
				t.Errorf("got %v, want %v", err, test.wantErr)
			}
		})
	}
}

func TestNewRoomRecordSeatsCreator(t *testing.T) {
	t.Parallel()
	rec, err := NewRoomRecord("t1", "alice", 4, "pw", "c1")
	if err != nil {
		t.Fatalf("NewRoomRecord: %v", err)
	}
	if rec.HostToken != "t1" {
		t.Errorf("host: got %q, want t1", rec.HostToken)
	}
	m, ok := rec.Members["t1"]
	if !ok {
		t.Fatal("creator not in members")
	}
	if !m.Connected {
		t.Error("creator should be connected")
	}
	if rec.GameStarted {
		t.Error("new room must start in lobby")
	}
	if got := rec.ConnectedCount(); got != 1 {
		t.Errorf("connected count: got %d, want 1", got)
	}
}

func TestAddMemberKeepsSeatOnRejoin(t *testing.T) {
	t.Parallel()
	rec := seatRecord(t, "t1", "t2", "t3")
	rec.AddMember("t2", NewMemberRecord("c9", "bob again"))
	if len(rec.Order) != 3 {
		t.Fatalf("order length: got %d, want 3", len(rec.Order))
	}
	if rec.Order[1] != "t2" {
		t.Errorf("rejoin moved seat: order %v", rec.Order)
	}
	if rec.Members["t2"].DisplayName != "bob again" {
		t.Errorf("rejoin did not update entry")
	}
}

func TestRemoveMemberMaintainsOrder(t *testing.T) {
	t.Parallel()
	rec := seatRecord(t, "t1", "t2", "t3")
	rec.RemoveMember("t2")
	if rec.HasMember("t2") {
		t.Error("t2 still tracked")
	}
	want := []UserToken{"t1", "t3"}
	for i, tok := range want {
		if rec.Order[i] != tok {
			t.Fatalf("order: got %v, want %v", rec.Order, want)
		}
	}
	// Unknown token is a no-op.
	rec.RemoveMember("nope")
	if len(rec.Order) != 2 {
		t.Errorf("no-op removal changed order: %v", rec.Order)
	}
}

func TestNextHostAfter(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		tokens    []UserToken
		departing UserToken
		want      UserToken
		wantOK    bool
	}{
		{"middle", []UserToken{"t1", "t2", "t3"}, "t2", "t3", true},
		{"first", []UserToken{"t1", "t2", "t3"}, "t1", "t2", true},
		{"last wraps", []UserToken{"t1", "t2", "t3"}, "t3", "t1", true},
		{"sole member", []UserToken{"t1"}, "t1", "", false},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			rec := seatRecord(t, test.tokens...)
			got, ok := rec.NextHostAfter(test.departing)
			if ok != test.wantOK || got != test.want {
				t.Errorf("got (%q, %v), want (%q, %v)", got, ok, test.want, test.wantOK)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()
	rec := seatRecord(t, "t1", "t2")
	clone := rec.Clone()
	clone.RemoveMember("t2")
	clone.HostToken = "t2"
	if !rec.HasMember("t2") {
		t.Error("clone mutation leaked into original members")
	}
	if rec.HostToken != "t1" {
		t.Error("clone mutation leaked into original host")
	}
	if len(rec.Order) != 2 {
		t.Errorf("clone mutation leaked into original order: %v", rec.Order)
	}
}
