package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"studyquiz-sync/internal/domain"
)

// QuizCatalog is the in-memory remote quiz store. Quizzes expire retention after
// their last update; zero retention keeps them forever.
type QuizCatalog struct {
	retention time.Duration
	clock     func() time.Time

	mu      sync.RWMutex
	quizzes map[string]domain.Quiz
}

func NewQuizCatalog(retention time.Duration) *QuizCatalog {
	return &QuizCatalog{
		retention: retention,
		clock:     time.Now,
		quizzes:   make(map[string]domain.Quiz),
	}
}

func (c *QuizCatalog) Save(_ context.Context, quiz domain.Quiz) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quizzes[quiz.ID] = quiz
	return nil
}

func (c *QuizCatalog) Get(_ context.Context, quizID string) (domain.Quiz, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	quiz, ok := c.quizzes[quizID]
	if !ok || c.expired(quiz) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz, nil
}

func (c *QuizCatalog) Delete(_ context.Context, quizID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.quizzes, quizID)
	return nil
}

func (c *QuizCatalog) List(_ context.Context) ([]domain.QuizSummary, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.QuizSummary, 0, len(c.quizzes))
	for _, quiz := range c.quizzes {
		if c.expired(quiz) {
			continue
		}
		out = append(out, quiz.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// LoadQuiz lets the catalog act as a memory.QuizLoader.
func (c *QuizCatalog) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return c.Get(ctx, quizID)
}

func (c *QuizCatalog) expired(quiz domain.Quiz) bool {
	return c.retention > 0 && !quiz.UpdatedAt.Add(c.retention).After(c.clock())
}
