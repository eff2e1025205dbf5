package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"studyquiz-sync/internal/app"
	"studyquiz-sync/internal/domain"
)

// API serves the remote quiz-result store.
type API struct {
	results *app.ResultService
	started time.Time
}

func NewAPI(results *app.ResultService) *API {
	return &API{results: results, started: time.Now()}
}

type quizRequest struct {
	Title     string            `json:"title" validate:"required"`
	Questions []domain.Question `json:"questions" validate:"required,min=1"`
}

type quizUpdateRequest struct {
	Title     string            `json:"title"`
	Questions []domain.Question `json:"questions"`
}

type quizHeader struct {
	ID        string    `json:"quizId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

type quizDocument struct {
	Success   bool              `json:"success"`
	Quiz      quizHeader        `json:"quiz"`
	Questions []domain.Question `json:"questions"`
}

// Routes registers every endpoint on a fresh router and wraps it with CORS.
func (a *API) Routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/health", a.health).Methods(http.MethodGet)
	r.HandleFunc("/api/quizzes", a.listQuizzes).Methods(http.MethodGet)
	r.HandleFunc("/api/quizzes", a.createQuiz).Methods(http.MethodPost)
	r.HandleFunc("/api/quizzes/{quizId}", a.getQuiz).Methods(http.MethodGet)
	r.HandleFunc("/api/quizzes/{quizId}", a.updateQuiz).Methods(http.MethodPut)
	r.HandleFunc("/api/quizzes/{quizId}", a.deleteQuiz).Methods(http.MethodDelete)
	r.HandleFunc("/api/quizzes/{quizId}/results", a.listResults).Methods(http.MethodGet)
	r.HandleFunc("/api/submit", a.submit).Methods(http.MethodPost)
	r.NotFoundHandler = http.HandlerFunc(notFound)
	return withCORS(r)
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(a.started).Round(time.Second).String(),
	})
}

func (a *API) listQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := a.results.ListQuizzes(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "quizzes": quizzes})
}

func (a *API) createQuiz(w http.ResponseWriter, r *http.Request) {
	var req quizRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Title and questions are required")
		return
	}
	quiz, err := a.results.CreateQuiz(r.Context(), req.Title, req.Questions)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"quizId":  quiz.ID,
		"message": "Quiz created successfully",
	})
}

func (a *API) getQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := a.results.GetQuiz(r.Context(), mux.Vars(r)["quizId"])
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quizDocument{
		Success:   true,
		Quiz:      quizHeader{ID: quiz.ID, Title: quiz.Title, CreatedAt: quiz.CreatedAt},
		Questions: quiz.Questions,
	})
}

func (a *API) updateQuiz(w http.ResponseWriter, r *http.Request) {
	var req quizUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid quiz body")
		return
	}
	quiz, err := a.results.UpdateQuiz(r.Context(), mux.Vars(r)["quizId"], req.Title, req.Questions)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"quizId":  quiz.ID,
		"message": "Quiz updated successfully",
	})
}

func (a *API) deleteQuiz(w http.ResponseWriter, r *http.Request) {
	if err := a.results.DeleteQuiz(r.Context(), mux.Vars(r)["quizId"]); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Quiz deleted successfully"})
}

func (a *API) submit(w http.ResponseWriter, r *http.Request) {
	var sub domain.Submission
	if err := decodeBody(r, &sub); err != nil {
		writeError(w, http.StatusBadRequest, "invalid submission: "+err.Error())
		return
	}
	receipt, err := a.results.Submit(r.Context(), sub)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (a *API) listResults(w http.ResponseWriter, r *http.Request) {
	list, err := a.results.Results(r.Context(), mux.Vars(r)["quizId"])
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
