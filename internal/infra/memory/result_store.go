package memory

import (
	"context"
	"sync"

	"studyquiz-sync/internal/domain"
)

// ResultStore is an in-memory implementation of app.ResultStore.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string][]domain.RemoteResult
}

func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string][]domain.RemoteResult)}
}

func (s *ResultStore) Save(_ context.Context, result domain.RemoteResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.QuizID] = append(s.results[result.QuizID], result)
	return nil
}

func (s *ResultStore) ListByQuiz(_ context.Context, quizID string) ([]domain.RemoteResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.RemoteResult(nil), s.results[quizID]...), nil
}
