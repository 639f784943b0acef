package storage

import (
	"context"
	"slices"
	"sync"

	"toastd/internal/toast"
)

type memoryStore struct {
	mu     sync.Mutex
	snaps  []toast.Snapshot
	audit  []AuditEntry
	closed bool
}

// NewMemory returns a Store that lives as long as the process.
func NewMemory() Store { return &memoryStore{} }

func (s *memoryStore) Save(_ context.Context, key string, snap toast.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	snap.Key = key
	s.snaps = upsertSnapshot(s.snaps, snap)
	return nil
}

func (s *memoryStore) LoadAll(context.Context) ([]toast.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return slices.Clone(s.snaps), nil
}

func (s *memoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.snaps = nil
	return nil
}

func (s *memoryStore) AppendAudit(_ context.Context, e AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.audit = append(s.audit, e)
	return nil
}

func (s *memoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func upsertSnapshot(list []toast.Snapshot, snap toast.Snapshot) []toast.Snapshot {
	if i := slices.IndexFunc(list, func(s toast.Snapshot) bool { return s.Key == snap.Key }); i >= 0 {
		list[i] = snap
		return list
	}
	return append(list, snap)
}
