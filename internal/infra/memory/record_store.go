package memory

import (
	"context"
	"sync"
)

// RecordStore is an in-memory implementation of app.RecordStore.
type RecordStore struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

func NewRecordStore() *RecordStore {
	return &RecordStore{slots: make(map[string][]byte)}
}

func (s *RecordStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.slots[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (s *RecordStore) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[key] = append([]byte(nil), value...)
	return nil
}

func (s *RecordStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, key)
	return nil
}
