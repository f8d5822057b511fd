package store

import (
	"context"
	"sync"

	"github.com/ridethebus/bus-server/internal/domain"
)

// MemoryStore keeps the room table in-process. Used by tests and by
// deployments that accept losing rooms on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[domain.RoomCode]*domain.RoomRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[domain.RoomCode]*domain.RoomRecord)}
}

func (s *MemoryStore) Get(_ context.Context, code domain.RoomCode) (*domain.RoomRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.rooms[code]
	if !ok {
		return nil, false, nil
	}
	return rec.Clone(), true, nil
}

func (s *MemoryStore) Put(_ context.Context, code domain.RoomCode, rec *domain.RoomRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[code] = rec.Clone()
	return nil
}

func (s *MemoryStore) UpdateMembership(_ context.Context, code domain.RoomCode, up MembershipUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.rooms[code]
	if !ok {
		return nil
	}
	members := make(map[domain.UserToken]domain.MemberRecord, len(up.Members))
	for t, m := range up.Members {
		members[t] = m
	}
	rec.Members = members
	rec.Order = append([]domain.UserToken(nil), up.Order...)
	rec.HostToken = up.HostToken
	return nil
}

func (s *MemoryStore) SetGameStarted(_ context.Context, code domain.RoomCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.rooms[code]; ok {
		rec.GameStarted = true
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, code domain.RoomCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, code)
	return nil
}

func (s *MemoryStore) All(_ context.Context) (map[domain.RoomCode]*domain.RoomRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domain.RoomCode]*domain.RoomRecord, len(s.rooms))
	for code, rec := range s.rooms {
		out[code] = rec.Clone()
	}
	return out, nil
}
