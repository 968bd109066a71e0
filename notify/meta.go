package notify

import (
	"context"
	"sync"
	"time"
)

// Meta is the persisted side-state of one user's feed.
type Meta struct {
	ReadIDs    map[string]struct{}
	DeletedIDs map[string]struct{}
	FirstSeen  map[string]time.Time
}

func newMeta() Meta {
	return Meta{
		ReadIDs:    map[string]struct{}{},
		DeletedIDs: map[string]struct{}{},
		FirstSeen:  map[string]time.Time{},
	}
}

func (m Meta) IsRead(id string) bool    { _, ok := m.ReadIDs[id]; return ok }
func (m Meta) IsDeleted(id string) bool { _, ok := m.DeletedIDs[id]; return ok }

// MetaStore persists read/deleted flags and first-seen timestamps per user.
type MetaStore interface {
	Load(ctx context.Context, userID string) (Meta, error)
	// BackfillFirstSeen stores at for every id that has no timestamp yet and
	// returns the stored timestamp of each id. Existing entries are kept.
	BackfillFirstSeen(ctx context.Context, userID string, ids []string, at time.Time) (map[string]time.Time, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkUnread(ctx context.Context, userID, id string) error
	Delete(ctx context.Context, userID, id string) error
}

// MemoryMetaStore is a MetaStore for STORE_DRIVER=memory and tests.
type MemoryMetaStore struct {
	mu    sync.Mutex
	users map[string]Meta
}

func NewMemoryMetaStore() *MemoryMetaStore {
	return &MemoryMetaStore{users: map[string]Meta{}}
}

func (s *MemoryMetaStore) user(id string) Meta {
	m, ok := s.users[id]
	if !ok {
		m = newMeta()
		s.users[id] = m
	}
	return m
}

func (s *MemoryMetaStore) Load(_ context.Context, userID string) (Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.user(userID)
	out := newMeta()
	for id := range src.ReadIDs {
		out.ReadIDs[id] = struct{}{}
	}
	for id := range src.DeletedIDs {
		out.DeletedIDs[id] = struct{}{}
	}
	for id, at := range src.FirstSeen {
		out.FirstSeen[id] = at
	}
	return out, nil
}

func (s *MemoryMetaStore) BackfillFirstSeen(_ context.Context, userID string, ids []string, at time.Time) (map[string]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.user(userID)
	out := make(map[string]time.Time, len(ids))
	for _, id := range ids {
		if _, ok := m.FirstSeen[id]; !ok {
			m.FirstSeen[id] = at.UTC()
		}
		out[id] = m.FirstSeen[id]
	}
	return out, nil
}

func (s *MemoryMetaStore) MarkRead(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user(userID).ReadIDs[id] = struct{}{}
	return nil
}

func (s *MemoryMetaStore) MarkUnread(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.user(userID).ReadIDs, id)
	return nil
}

func (s *MemoryMetaStore) Delete(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user(userID).DeletedIDs[id] = struct{}{}
	return nil
}
