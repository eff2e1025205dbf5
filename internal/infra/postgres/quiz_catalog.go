package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"studyquiz-sync/internal/domain"
)

// QuizCatalog stores quizzes as JSONB documents in Postgres. Rows older than the
// retention window (by updated_at) are treated as gone; zero retention keeps them forever.
type QuizCatalog struct {
	pool      *pgxpool.Pool
	retention time.Duration
	clock     func() time.Time
}

func NewQuizCatalog(pool *pgxpool.Pool, retention time.Duration) *QuizCatalog {
	return &QuizCatalog{pool: pool, retention: retention, clock: time.Now}
}

func (c *QuizCatalog) Save(ctx context.Context, quiz domain.Quiz) error {
	data, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	_, err = c.pool.Exec(ctx, `
		INSERT INTO quizzes (id, title, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title, data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		quiz.ID, quiz.Title, data, quiz.CreatedAt, quiz.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save quiz: %w", err)
	}
	return nil
}

func (c *QuizCatalog) Get(ctx context.Context, quizID string) (domain.Quiz, error) {
	var raw []byte
	err := c.pool.QueryRow(ctx, `SELECT data FROM quizzes WHERE id=$1 AND updated_at > $2`, quizID, c.cutoff()).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	if quiz.ID == "" {
		quiz.ID = quizID
	}
	return quiz, nil
}

// LoadQuiz lets the catalog act as a quiz loader for the caching repositories.
func (c *QuizCatalog) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return c.Get(ctx, quizID)
}

func (c *QuizCatalog) Delete(ctx context.Context, quizID string) error {
	if _, err := c.pool.Exec(ctx, `DELETE FROM quizzes WHERE id=$1`, quizID); err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	return nil
}

func (c *QuizCatalog) List(ctx context.Context) ([]domain.QuizSummary, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT id, title, COALESCE(jsonb_array_length(data->'questions'), 0), created_at, updated_at
		FROM quizzes
		WHERE updated_at > $1
		ORDER BY created_at`, c.cutoff())
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	out := make([]domain.QuizSummary, 0)
	for rows.Next() {
		var s domain.QuizSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.QuestionCount, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// cutoff is the oldest updated_at still inside the retention window.
func (c *QuizCatalog) cutoff() time.Time {
	if c.retention <= 0 {
		return time.Time{}
	}
	return c.clock().Add(-c.retention)
}
