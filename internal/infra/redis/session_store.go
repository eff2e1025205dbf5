package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"studyquiz-sync/internal/app"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Sessions themselves stay in process; they are ephemeral and never persisted.
//   - Redis carries a liveness marker per student (value: quiz id) so other tools
//     can see which attempt is in progress. Marker writes are best-effort.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Put(studentID string, session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[studentID] = session
	_ = s.client.Set(context.Background(), s.key(studentID), session.QuizID(), s.ttl).Err()
}

func (s *SessionStore) Get(studentID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[studentID]
	return session, ok
}

func (s *SessionStore) DeleteIfSame(studentID string, session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sessions[studentID]
	if !ok || current != session {
		return
	}
	delete(s.sessions, studentID)
	_ = s.client.Del(context.Background(), s.key(studentID)).Err()
}

func (s *SessionStore) key(studentID string) string {
	return "quiz:session:" + studentID
}
