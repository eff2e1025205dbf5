package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"studyquiz-sync/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClientSubmitReturnsReceipt(t *testing.T) {
	var got domain.Submission
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/submit", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusCreated, domain.SubmitReceipt{
			ID: "r1", QuizID: got.QuizID, Score: got.Score, TotalQuestions: got.TotalQuestions,
			SubmittedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil, time.Second)
	receipt, err := client.Submit(context.Background(), domain.Submission{
		QuizID: "q1", StudentID: "s1", StudentName: "Sam", Score: 3, TotalQuestions: 4,
		Answers: map[string]string{"0": "a"},
	})
	require.NoError(t, err)
	require.Equal(t, "r1", receipt.ID)
	require.Equal(t, 3, receipt.Score)
	require.Equal(t, "a", got.Answers["0"])
}

func TestClientSubmitMapsFailuresToRemoteUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "db down"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil, time.Second).Submit(context.Background(), domain.Submission{QuizID: "q1"})
	require.ErrorIs(t, err, domain.ErrRemoteUnavailable)
	require.Contains(t, err.Error(), "db down")

	srv.Close()
	_, err = NewClient(srv.URL, nil, time.Second).Submit(context.Background(), domain.Submission{QuizID: "q1"})
	require.ErrorIs(t, err, domain.ErrRemoteUnavailable)
}

func TestClientLoadQuiz(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/quizzes/quiz_1":
			writeJSON(w, http.StatusOK, QuizDocument{
				Quiz: QuizHeader{ID: "quiz_1", Title: "Capitals"},
				Questions: []domain.Question{
					{Prompt: "Capital of France?", Options: []string{"Paris", "Rome"}, Correct: "Paris"},
				},
			})
		case "/api/quizzes/broken":
			writeJSON(w, http.StatusOK, QuizDocument{Quiz: QuizHeader{ID: "broken"}})
		default:
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Quiz not found"})
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil, time.Second)
	quiz, err := client.LoadQuiz(context.Background(), "quiz_1")
	require.NoError(t, err)
	require.Equal(t, "Capitals", quiz.Title)
	require.Len(t, quiz.Questions, 1)

	_, err = client.LoadQuiz(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrQuizNotFound)

	_, err = client.LoadQuiz(context.Background(), "broken")
	require.ErrorIs(t, err, domain.ErrInvalidQuizData)
}

func TestClientResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/quizzes/q1/results", r.URL.Path)
		writeJSON(w, http.StatusOK, domain.ResultList{
			ResultCount: 1,
			Results:     []domain.RemoteResult{{ID: "r1", QuizID: "q1", StudentID: "s1", Score: 2, TotalQuestions: 2}},
		})
	}))
	defer srv.Close()

	list, err := NewClient(srv.URL, nil, time.Second).Results(context.Background(), "q1")
	require.NoError(t, err)
	require.Equal(t, 1, list.ResultCount)
	require.Equal(t, "s1", list.Results[0].StudentID)
}
