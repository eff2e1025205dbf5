package domain

import (
	"strconv"
	"time"
)

// Submission is the body of POST /api/submit on the remote quiz-result store.
type Submission struct {
	QuizID         string            `json:"quizId" validate:"required"`
	Answers        map[string]string `json:"answers"`
	StudentName    string            `json:"studentName" validate:"required"`
	StudentID      string            `json:"studentId" validate:"required"`
	Score          int               `json:"score" validate:"gte=0,ltefield=TotalQuestions"`
	TotalQuestions int               `json:"totalQuestions" validate:"gte=1"`
}

// SubmissionFor converts a stored record into the remote submit payload.
func SubmissionFor(record AttemptRecord) Submission {
	answers := make(map[string]string, len(record.Answers))
	for idx, option := range record.Answers {
		answers[strconv.Itoa(idx)] = option
	}
	return Submission{
		QuizID:         record.QuizID,
		Answers:        answers,
		StudentName:    record.StudentName,
		StudentID:      record.StudentID,
		Score:          record.Score,
		TotalQuestions: record.Total,
	}
}

// SubmitReceipt is returned by the remote store for an accepted submission.
type SubmitReceipt struct {
	ID             string    `json:"id"`
	QuizID         string    `json:"quizId"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"totalQuestions"`
	SubmittedAt    time.Time `json:"submittedAt"`
}

// RemoteResult is one stored submission as listed by the remote store.
type RemoteResult struct {
	ID             string            `json:"id"`
	QuizID         string            `json:"quizId"`
	StudentID      string            `json:"studentId"`
	StudentName    string            `json:"studentName"`
	Score          int               `json:"score"`
	TotalQuestions int               `json:"totalQuestions"`
	Answers        map[string]string `json:"answers"`
	SubmittedAt    time.Time         `json:"submittedAt"`
}

// ResultList is the body of GET /api/quizzes/{quizId}/results.
type ResultList struct {
	ResultCount int            `json:"resultCount"`
	Results     []RemoteResult `json:"results"`
}
