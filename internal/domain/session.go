package domain

// SessionState is the lifecycle stage of a quiz attempt.
type SessionState string

const (
	StateLoading    SessionState = "loading"
	StateInProgress SessionState = "in_progress"
	StateFinished   SessionState = "finished"
)

// SessionSnapshot is the state-change notification sent to subscribers.
type SessionSnapshot struct {
	QuizID    string         `json:"quizId"`
	StudentID string         `json:"studentId"`
	State     SessionState   `json:"state"`
	Cursor    int            `json:"cursor"`
	Total     int            `json:"total"`
	Question  *Question      `json:"question,omitempty"`
	Selection string         `json:"selection,omitempty"`
	Answers   map[int]string `json:"answers"`
	Score     int            `json:"score"`
}
