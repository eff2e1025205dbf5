package domain

import (
	"fmt"
	"strings"
	"time"
)

// Question models an MCQ question. Correct must equal one of Options.
type Question struct {
	Prompt  string   `json:"question"`
	Options []string `json:"options"`
	Correct string   `json:"correct"`
}

// Quiz is a titled collection of questions as held by the remote store.
type Quiz struct {
	ID        string     `json:"quizId"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// QuizSummary is the list view of a quiz.
type QuizSummary struct {
	ID            string    `json:"quizId"`
	Title         string    `json:"title"`
	QuestionCount int       `json:"questionCount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Summary returns the list view of q.
func (q Quiz) Summary() QuizSummary {
	return QuizSummary{
		ID:            q.ID,
		Title:         q.Title,
		QuestionCount: len(q.Questions),
		CreatedAt:     q.CreatedAt,
		UpdatedAt:     q.UpdatedAt,
	}
}

// HasOption reports whether option is one of the question's options.
func (q Question) HasOption(option string) bool {
	for _, o := range q.Options {
		if o == option {
			return true
		}
	}
	return false
}

// ValidateQuestions rejects question sets that cannot drive a session, whatever their source.
func ValidateQuestions(questions []Question) error {
	if len(questions) == 0 {
		return fmt.Errorf("%w: no questions", ErrInvalidQuizData)
	}
	for i, q := range questions {
		if strings.TrimSpace(q.Prompt) == "" {
			return fmt.Errorf("%w: question %d has no prompt", ErrInvalidQuizData, i)
		}
		if len(q.Options) < 2 {
			return fmt.Errorf("%w: question %d needs at least two options", ErrInvalidQuizData, i)
		}
		if q.Correct == "" {
			return fmt.Errorf("%w: question %d is missing its correct option", ErrInvalidQuizData, i)
		}
		if !q.HasOption(q.Correct) {
			return fmt.Errorf("%w: question %d correct option is not among its options", ErrInvalidQuizData, i)
		}
	}
	return nil
}
