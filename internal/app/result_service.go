package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"studyquiz-sync/internal/domain"
)

// QuizCatalog stores quiz definitions on the remote side (in-memory, Postgres, etc).
type QuizCatalog interface {
	Save(ctx context.Context, quiz domain.Quiz) error
	Get(ctx context.Context, quizID string) (domain.Quiz, error)
	Delete(ctx context.Context, quizID string) error
	List(ctx context.Context) ([]domain.QuizSummary, error)
}

// ResultStore keeps submitted results on the remote side.
type ResultStore interface {
	Save(ctx context.Context, result domain.RemoteResult) error
	ListByQuiz(ctx context.Context, quizID string) ([]domain.RemoteResult, error)
}

// ResultService is the remote quiz-result store: quiz management plus submissions.
type ResultService struct {
	catalog QuizCatalog
	results ResultStore
	now     func() time.Time
}

func NewResultService(catalog QuizCatalog, results ResultStore) *ResultService {
	return &ResultService{catalog: catalog, results: results, now: time.Now}
}

// CreateQuiz validates and stores a new quiz under a generated id.
func (s *ResultService) CreateQuiz(ctx context.Context, title string, questions []domain.Question) (domain.Quiz, error) {
	if strings.TrimSpace(title) == "" {
		return domain.Quiz{}, fmt.Errorf("%w: title is required", domain.ErrInvalidQuizData)
	}
	if err := domain.ValidateQuestions(questions); err != nil {
		return domain.Quiz{}, err
	}
	now := s.now().UTC()
	quiz := domain.Quiz{
		ID:        "quiz_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		Title:     title,
		Questions: questions,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.catalog.Save(ctx, quiz); err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}

func (s *ResultService) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return s.catalog.Get(ctx, quizID)
}

// UpdateQuiz replaces the title and/or questions; empty values keep the stored ones.
func (s *ResultService) UpdateQuiz(ctx context.Context, quizID, title string, questions []domain.Question) (domain.Quiz, error) {
	quiz, err := s.catalog.Get(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if len(questions) > 0 {
		if err := domain.ValidateQuestions(questions); err != nil {
			return domain.Quiz{}, err
		}
		quiz.Questions = questions
	}
	if strings.TrimSpace(title) != "" {
		quiz.Title = title
	}
	quiz.UpdatedAt = s.now().UTC()
	if err := s.catalog.Save(ctx, quiz); err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}

func (s *ResultService) DeleteQuiz(ctx context.Context, quizID string) error {
	if _, err := s.catalog.Get(ctx, quizID); err != nil {
		return err
	}
	return s.catalog.Delete(ctx, quizID)
}

func (s *ResultService) ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error) {
	return s.catalog.List(ctx)
}

// Submit stores one result. Quiz ids are not checked against the catalog: locally
// authored and generated quizzes are pushed too.
func (s *ResultService) Submit(ctx context.Context, sub domain.Submission) (domain.SubmitReceipt, error) {
	identity := domain.Identity{StudentID: sub.StudentID, StudentName: sub.StudentName}
	if err := identity.Validate(); err != nil {
		return domain.SubmitReceipt{}, err
	}
	if strings.TrimSpace(sub.QuizID) == "" {
		return domain.SubmitReceipt{}, fmt.Errorf("%w: quiz id is required", domain.ErrInvalidIdentity)
	}
	if err := domain.ValidateScore(sub.Score, sub.TotalQuestions); err != nil {
		return domain.SubmitReceipt{}, err
	}

	result := domain.RemoteResult{
		ID:             uuid.NewString(),
		QuizID:         sub.QuizID,
		StudentID:      sub.StudentID,
		StudentName:    sub.StudentName,
		Score:          sub.Score,
		TotalQuestions: sub.TotalQuestions,
		Answers:        sub.Answers,
		SubmittedAt:    s.now().UTC(),
	}
	if result.Answers == nil {
		result.Answers = map[string]string{}
	}
	if err := s.results.Save(ctx, result); err != nil {
		return domain.SubmitReceipt{}, err
	}
	return domain.SubmitReceipt{
		ID:             result.ID,
		QuizID:         result.QuizID,
		Score:          result.Score,
		TotalQuestions: result.TotalQuestions,
		SubmittedAt:    result.SubmittedAt,
	}, nil
}

func (s *ResultService) Results(ctx context.Context, quizID string) (domain.ResultList, error) {
	results, err := s.results.ListByQuiz(ctx, quizID)
	if err != nil {
		return domain.ResultList{}, err
	}
	if results == nil {
		results = []domain.RemoteResult{}
	}
	return domain.ResultList{ResultCount: len(results), Results: results}, nil
}
