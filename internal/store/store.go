// Package store is the room store adapter: a narrow key-value contract
// over the durable medium. Single-key writes are atomic; there are no
// cross-key transactions and no compare-and-swap, so callers serialize
// same-room transitions themselves.
package store

import (
	"context"
	"errors"

	"github.com/ridethebus/bus-server/internal/domain"
)

// ErrUnavailable wraps backend I/O failures. The record set is assumed
// unchanged when it is returned.
var ErrUnavailable = errors.New("room store unavailable")

// MembershipUpdate carries the fields a membership transition writes
// together. HostToken rides along because re-election must land in the
// same write as the member flip it reacts to.
type MembershipUpdate struct {
	Members   map[domain.UserToken]domain.MemberRecord
	Order     []domain.UserToken
	HostToken domain.UserToken
}

// RoomStore is implemented by the memory and sqlite backends. Get and
// All return deep copies; mutating a returned record never touches the
// stored one until it is written back.
type RoomStore interface {
	Get(ctx context.Context, code domain.RoomCode) (*domain.RoomRecord, bool, error)
	Put(ctx context.Context, code domain.RoomCode, rec *domain.RoomRecord) error

	// UpdateMembership overwrites only membership fields. Silently a
	// no-op when the room is already gone: a transition racing a
	// delete must not resurrect the room.
	UpdateMembership(ctx context.Context, code domain.RoomCode, up MembershipUpdate) error

	// SetGameStarted flips the monotonic started flag.
	SetGameStarted(ctx context.Context, code domain.RoomCode) error

	Delete(ctx context.Context, code domain.RoomCode) error
	All(ctx context.Context) (map[domain.RoomCode]*domain.RoomRecord, error)
}
