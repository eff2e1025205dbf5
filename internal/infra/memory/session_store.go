package memory

import (
	"sync"

	"studyquiz-sync/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Put(studentID string, session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[studentID] = session
}

func (s *SessionStore) Get(studentID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[studentID]
	return session, ok
}

// DeleteIfSame removes the student's session only if it is still the given one,
// so a finished session cannot evict its replacement.
func (s *SessionStore) DeleteIfSame(studentID string, session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.sessions[studentID]; ok && current == session {
		delete(s.sessions, studentID)
	}
}
