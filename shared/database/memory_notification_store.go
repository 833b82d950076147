package database

import (
	"context"
	"sync"
	"time"

	"guard-relay/shared/interfaces"
	"guard-relay/shared/models"
)

var _ interfaces.NotificationStore = (*MemoryNotificationStore)(nil)

type memoryEntry struct {
	n         models.ShownNotification
	expiresAt time.Time
}

// MemoryNotificationStore keeps shown notifications in process memory.
// Used when Redis is not configured; entries do not survive a restart.
type MemoryNotificationStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryNotificationStore creates a store. ttl <= 0 keeps entries until deleted.
func NewMemoryNotificationStore(ttl time.Duration) *MemoryNotificationStore {
	return &MemoryNotificationStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryNotificationStore) Save(ctx context.Context, n models.ShownNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := memoryEntry{n: n}
	if s.ttl > 0 {
		e.expiresAt = s.now().Add(s.ttl)
	}
	s.entries[n.ID] = e
	s.sweepLocked()
	return nil
}

func (s *MemoryNotificationStore) Get(ctx context.Context, id string) (*models.ShownNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || s.expiredLocked(e) {
		delete(s.entries, id)
		return nil, models.ErrNotFound
	}
	n := e.n
	return &n, nil
}

func (s *MemoryNotificationStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

// Len returns the number of live entries.
func (s *MemoryNotificationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	return len(s.entries)
}

func (s *MemoryNotificationStore) expiredLocked(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)
}

func (s *MemoryNotificationStore) sweepLocked() {
	for id, e := range s.entries {
		if s.expiredLocked(e) {
			delete(s.entries, id)
		}
	}
}
