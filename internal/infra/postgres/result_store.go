package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"studyquiz-sync/internal/domain"
)

// ResultStore persists remote quiz submissions.
type ResultStore struct {
	pool *pgxpool.Pool
}

func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

func (s *ResultStore) Save(ctx context.Context, result domain.RemoteResult) error {
	answers, err := json.Marshal(result.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO quiz_results (id, quiz_id, student_id, student_name, score, total_questions, answers, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		result.ID, result.QuizID, result.StudentID, result.StudentName,
		result.Score, result.TotalQuestions, answers, result.SubmittedAt)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

func (s *ResultStore) ListByQuiz(ctx context.Context, quizID string) ([]domain.RemoteResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, quiz_id, student_id, student_name, score, total_questions, answers, submitted_at
		FROM quiz_results
		WHERE quiz_id=$1
		ORDER BY submitted_at`, quizID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	out := make([]domain.RemoteResult, 0)
	for rows.Next() {
		var r domain.RemoteResult
		var answers []byte
		if err := rows.Scan(&r.ID, &r.QuizID, &r.StudentID, &r.StudentName, &r.Score, &r.TotalQuestions, &answers, &r.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if err := json.Unmarshal(answers, &r.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
