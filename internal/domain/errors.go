package domain

import "errors"

var (
	// ErrInvalidIdentity is returned when a student id, student name or quiz id is missing.
	ErrInvalidIdentity = errors.New("invalid identity")
	// ErrInvalidScore is returned when score/total break 0 <= score <= total, total >= 1.
	ErrInvalidScore = errors.New("invalid score")
	// ErrInvalidQuizData indicates a question set that cannot start a session.
	ErrInvalidQuizData = errors.New("invalid quiz data")
	// ErrInvalidLimit is returned for non-positive attempt limits.
	ErrInvalidLimit = errors.New("invalid attempt limit")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrSessionNotFound is returned when a student has no live quiz session.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrRemoteUnavailable wraps transport failures talking to the remote store.
	ErrRemoteUnavailable = errors.New("remote store unavailable")
)
