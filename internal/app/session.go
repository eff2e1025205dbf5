package app

import (
	"context"
	"sync"

	"studyquiz-sync/internal/domain"
)

// Finalizer durably records a finished session. It is called at most once per session.
type Finalizer interface {
	Finalize(ctx context.Context, result SessionResult) (domain.AttemptRecord, *PushTask, error)
}

// SessionResult is the outcome of a finished session before it reaches the ledger.
type SessionResult struct {
	Identity domain.Identity
	QuizID   string
	Score    int
	Total    int
	Answers  map[int]string
}

// Outcome is what the single effective Finish call produces.
type Outcome struct {
	Record domain.AttemptRecord
	Push   *PushTask
}

// Session drives one in-progress attempt: Loading -> InProgress -> Finished.
// Invalid transitions are ignored; they are UI races, not programmer errors.
type Session struct {
	quizID    string
	identity  domain.Identity
	finalizer Finalizer

	mu           sync.Mutex
	state        domain.SessionState
	questions    []domain.Question
	cursor       int
	selection    string
	hasSelection bool
	answers      map[int]string
	score        int
	finished     bool
	subscribers  map[chan domain.SessionSnapshot]struct{}
}

func NewSession(quizID string, identity domain.Identity, finalizer Finalizer) *Session {
	return &Session{
		quizID:      quizID,
		identity:    identity,
		finalizer:   finalizer,
		state:       domain.StateLoading,
		answers:     make(map[int]string),
		subscribers: make(map[chan domain.SessionSnapshot]struct{}),
	}
}

func (s *Session) QuizID() string { return s.quizID }

func (s *Session) Identity() domain.Identity { return s.identity }

// Start loads the questions. Malformed question sets fail before anything changes.
func (s *Session) Start(questions []domain.Question) error {
	if err := domain.ValidateQuestions(questions); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateLoading {
		return nil
	}

	s.questions = append([]domain.Question(nil), questions...)
	s.cursor = 0
	s.answers = make(map[int]string)
	s.score = 0
	s.finished = false
	s.hasSelection = false
	s.selection = ""
	s.state = domain.StateInProgress
	s.broadcastLocked()
	return nil
}

// Select records a tentative, reversible choice for the current question.
func (s *Session) Select(option string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateInProgress {
		return false
	}
	if _, answered := s.answers[s.cursor]; answered {
		return false
	}
	if !s.questions[s.cursor].HasOption(option) {
		return false
	}
	s.selection = option
	s.hasSelection = true
	s.broadcastLocked()
	return true
}

// Confirm makes the tentative selection permanent and scores it once.
func (s *Session) Confirm() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateInProgress || !s.hasSelection {
		return false
	}
	if _, answered := s.answers[s.cursor]; answered {
		return false
	}

	s.answers[s.cursor] = s.selection
	if s.selection == s.questions[s.cursor].Correct {
		s.score++
	}
	s.selection = ""
	s.hasSelection = false
	s.broadcastLocked()
	return true
}

// Advance moves the cursor by -1 or +1. Moving past the last question finishes the session.
func (s *Session) Advance(ctx context.Context, delta int) (*Outcome, error) {
	s.mu.Lock()
	if s.state != domain.StateInProgress || (delta != 1 && delta != -1) {
		s.mu.Unlock()
		return nil, nil
	}
	next := s.cursor + delta
	if next >= len(s.questions) {
		s.mu.Unlock()
		return s.Finish(ctx)
	}
	if next < 0 {
		next = 0
	}
	if next != s.cursor {
		s.cursor = next
		s.selection = ""
		s.hasSelection = false
	}
	s.broadcastLocked()
	s.mu.Unlock()
	return nil, nil
}

// Finish is the only transition into Finished. The check-and-set happens under the
// session lock, so concurrent or repeated calls produce one ledger append and one push.
// A nil Outcome with a nil error means the call was ignored.
func (s *Session) Finish(ctx context.Context) (*Outcome, error) {
	s.mu.Lock()
	if s.state != domain.StateInProgress || s.finished {
		s.mu.Unlock()
		return nil, nil
	}
	s.finished = true
	s.state = domain.StateFinished
	s.selection = ""
	s.hasSelection = false
	result := SessionResult{
		Identity: s.identity,
		QuizID:   s.quizID,
		Score:    s.score,
		Total:    len(s.questions),
		Answers:  copyAnswers(s.answers),
	}
	s.broadcastLocked()
	s.mu.Unlock()

	record, push, err := s.finalizer.Finalize(ctx, result)
	if err != nil {
		return nil, err
	}
	return &Outcome{Record: record, Push: push}, nil
}

func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Score() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score
}

// Answers returns a copy of the confirmed answers.
func (s *Session) Answers() map[int]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]string, len(s.answers))
	for k, v := range s.answers {
		out[k] = v
	}
	return out
}

func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel of state-change snapshots, primed with the current one.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan domain.SessionSnapshot, func()) {
	ch := make(chan domain.SessionSnapshot, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	// ch is empty here, so the send cannot block and precedes any broadcast.
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// drop the oldest pending snapshot so a slow reader never blocks a transition
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (s *Session) snapshotLocked() domain.SessionSnapshot {
	snap := domain.SessionSnapshot{
		QuizID:    s.quizID,
		StudentID: s.identity.StudentID,
		State:     s.state,
		Cursor:    s.cursor,
		Total:     len(s.questions),
		Selection: s.selection,
		Answers:   copyAnswers(s.answers),
		Score:     s.score,
	}
	if snap.Answers == nil {
		snap.Answers = map[int]string{}
	}
	if s.state == domain.StateInProgress && s.cursor < len(s.questions) {
		q := s.questions[s.cursor]
		q.Options = append([]string(nil), q.Options...)
		if _, answered := s.answers[s.cursor]; !answered {
			q.Correct = ""
		}
		snap.Question = &q
	}
	return snap
}
