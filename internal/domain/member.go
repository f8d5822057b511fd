package domain

import "time"

type (
	// UserToken is the stable per-person identity a client supplies on
	// every request. It survives reconnects; ConnectionID does not.
	UserToken string

	// ConnectionID identifies one live transport connection.
	ConnectionID string
)

// MemberRecord is one seat in a room. A member stays tracked after its
// transport drops; Connected reflects live presence only.
type MemberRecord struct {
	ConnectionID ConnectionID `json:"connectionId"`
	DisplayName  string       `json:"displayName"`
	Connected    bool         `json:"connected"`
	JoinedAt     time.Time    `json:"joinedAt"`
}

// NewMemberRecord avoids raw literals in adapters and keeps construction obvious.
func NewMemberRecord(conn ConnectionID, name string) MemberRecord {
	return MemberRecord{
		ConnectionID: conn,
		DisplayName:  name,
		Connected:    true,
		JoinedAt:     time.Now().UTC(),
	}
}
