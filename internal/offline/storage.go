package offline

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Entry is one stored response.
type Entry struct {
	Status   int         `json:"status"`
	Header   http.Header `json:"header"`
	Body     []byte      `json:"body"`
	StoredAt time.Time   `json:"storedAt"`
}

// Storage holds cached responses grouped by generation, then by URL.
type Storage interface {
	Get(ctx context.Context, generation, url string) (Entry, bool, error)
	Put(ctx context.Context, generation, url string, entry Entry) error
	Generations(ctx context.Context) ([]string, error)
	DropGeneration(ctx context.Context, generation string) error
}

// MemoryStorage is an in-process Storage.
type MemoryStorage struct {
	mu   sync.RWMutex
	gens map[string]map[string]Entry
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{gens: make(map[string]map[string]Entry)}
}

func (s *MemoryStorage) Get(_ context.Context, generation, url string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.gens[generation][url]
	if !ok {
		return Entry{}, false, nil
	}
	return cloneEntry(entry), true, nil
}

func (s *MemoryStorage) Put(_ context.Context, generation, url string, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	gen, ok := s.gens[generation]
	if !ok {
		gen = make(map[string]Entry)
		s.gens[generation] = gen
	}
	gen[url] = cloneEntry(entry)
	return nil
}

func (s *MemoryStorage) Generations(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.gens))
	for name := range s.gens {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStorage) DropGeneration(_ context.Context, generation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.gens, generation)
	return nil
}

func cloneEntry(e Entry) Entry {
	e.Header = e.Header.Clone()
	e.Body = append([]byte(nil), e.Body...)
	return e
}
