package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"studyquiz-sync/internal/domain"
)

// QuizLoader fetches quiz content from its source of truth (remote store, Postgres).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizRepository caches whole quizzes in Redis and falls back to a loader on cache miss.
// Fresh copies live at   quiz:{quizID}        (expires after ttl + jitter)
// Offline copies live at quiz:{quizID}:last   (no expiry, served when the loader is unreachable)
type QuizRepository struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewQuizRepository(client *redis.Client, loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := r.cached(ctx, r.freshKey(quizID)); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := r.cached(ctx, r.freshKey(quizID)); ok {
			return quiz, nil
		}

		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			if errors.Is(err, domain.ErrQuizNotFound) {
				_ = r.client.Del(ctx, r.freshKey(quizID), r.lastKey(quizID)).Err()
				return domain.Quiz{}, err
			}
			if errors.Is(err, domain.ErrInvalidQuizData) {
				return domain.Quiz{}, err
			}
			if last, ok := r.cached(ctx, r.lastKey(quizID)); ok {
				logrus.WithFields(logrus.Fields{"quizId": quizID, "error": err}).Warn("serving last known quiz")
				return last, nil
			}
			return domain.Quiz{}, err
		}

		data, err := json.Marshal(quiz)
		if err != nil {
			return quiz, nil
		}
		pipe := r.client.Pipeline()
		pipe.Set(ctx, r.freshKey(quizID), data, r.ttlWithJitter())
		pipe.Set(ctx, r.lastKey(quizID), data, 0)
		_, _ = pipe.Exec(ctx)

		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// Invalidate drops both cached copies of a quiz.
func (r *QuizRepository) Invalidate(ctx context.Context, quizID string) error {
	return r.client.Del(ctx, r.freshKey(quizID), r.lastKey(quizID)).Err()
}

func (r *QuizRepository) cached(ctx context.Context, key string) (domain.Quiz, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return domain.Quiz{}, false
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, false
	}
	if domain.ValidateQuestions(quiz.Questions) != nil {
		return domain.Quiz{}, false
	}
	return quiz, true
}

func (r *QuizRepository) freshKey(quizID string) string {
	return "quiz:" + quizID
}

func (r *QuizRepository) lastKey(quizID string) string {
	return "quiz:" + quizID + ":last"
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
