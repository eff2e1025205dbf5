package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultAttemptLimit applies to every (class, quiz) pair without an override.
const DefaultAttemptLimit = 3

// Identity is the trust-on-write identity of a quiz taker.
type Identity struct {
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
}

// Validate reports ErrInvalidIdentity when either field is blank.
func (i Identity) Validate() error {
	if strings.TrimSpace(i.StudentID) == "" || strings.TrimSpace(i.StudentName) == "" {
		return fmt.Errorf("%w: student id and name are required", ErrInvalidIdentity)
	}
	return nil
}

// AttemptCandidate is what a finished session hands to the ledger.
type AttemptCandidate struct {
	StudentID   string
	StudentName string
	QuizID      string
	Score       int
	Total       int
	Answers     map[int]string
}

// AttemptRecord is one completed quiz attempt. Records are never edited after append.
type AttemptRecord struct {
	ID            string         `json:"id"`
	StudentID     string         `json:"studentId"`
	StudentName   string         `json:"studentName"`
	QuizID        string         `json:"quizId"`
	Score         int            `json:"score"`
	Total         int            `json:"total"`
	Percentage    int            `json:"percentage"`
	LetterGrade   string         `json:"letterGrade"`
	CompletedAt   time.Time      `json:"completedAt"`
	AttemptNumber int            `json:"attemptNumber"`
	Answers       map[int]string `json:"answers,omitempty"`
}

// Validate checks the stored invariants. A missing quiz id is tolerated so that
// legacy rows survive a round trip; readers filter them where required.
func (r AttemptRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: record without id", ErrInvalidIdentity)
	}
	if err := ValidateScore(r.Score, r.Total); err != nil {
		return err
	}
	if r.Percentage != Percentage(r.Score, r.Total) || r.LetterGrade != GradeFor(r.Percentage) {
		return fmt.Errorf("%w: derived fields do not match %d/%d", ErrInvalidScore, r.Score, r.Total)
	}
	return nil
}

// LimitOverride replaces the default attempt limit for one class/quiz pair.
type LimitOverride struct {
	ClassID string `json:"classId"`
	QuizID  string `json:"quizId"`
	Limit   int    `json:"limit"`
}

// LimitKey builds the storage key for an override.
func LimitKey(classID, quizID string) string {
	return classID + "_" + quizID
}

// Allowance is the advisory answer to "may this student start another attempt".
type Allowance struct {
	Allowed bool `json:"allowed"`
	Used    int  `json:"used"`
	Limit   int  `json:"limit"`
}

// ItemStat summarizes one question across the best attempt of each student.
type ItemStat struct {
	Index    int     `json:"index"`
	Prompt   string  `json:"prompt"`
	Correct  int     `json:"correct"`
	Answered int     `json:"answered"`
	Rate     float64 `json:"rate"`
}
