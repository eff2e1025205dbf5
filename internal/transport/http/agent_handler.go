package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"studyquiz-sync/internal/app"
	"studyquiz-sync/internal/domain"
)

// Agent exposes the local ledger, limits and profile to the browser UI, plus the
// session websocket.
type Agent struct {
	service *app.StudyService
	profile *app.Profile
	ws      *WSHandler
}

func NewAgent(service *app.StudyService, profile *app.Profile) *Agent {
	return &Agent{
		service: service,
		profile: profile,
		ws:      NewWSHandler(service, profile),
	}
}

type hideRequest struct {
	StudentID string `json:"studentId"`
}

type limitRequest struct {
	Limit int `json:"limit" validate:"required,gt=0"`
}

type studentRequest struct {
	StudentID   string `json:"studentId" validate:"required"`
	StudentName string `json:"studentName" validate:"required"`
}

func (a *Agent) Routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/ws", a.ws.ServeWS)
	r.HandleFunc("/api/attempts", a.listAttempts).Methods(http.MethodGet)
	r.HandleFunc("/api/attempts/best", a.bestAttempt).Methods(http.MethodGet)
	r.HandleFunc("/api/attempts/{recordId}/hide", a.hideAttempt).Methods(http.MethodPost)
	r.HandleFunc("/api/attempts/{recordId}", a.deleteAttempt).Methods(http.MethodDelete)
	r.HandleFunc("/api/limits", a.listLimits).Methods(http.MethodGet)
	r.HandleFunc("/api/limits/{classId}/{quizId}", a.getLimit).Methods(http.MethodGet)
	r.HandleFunc("/api/limits/{classId}/{quizId}", a.setLimit).Methods(http.MethodPut)
	r.HandleFunc("/api/limits/{classId}/{quizId}", a.clearLimit).Methods(http.MethodDelete)
	r.HandleFunc("/api/allowance", a.allowance).Methods(http.MethodGet)
	r.HandleFunc("/api/quizzes/{quizId}/analysis", a.analysis).Methods(http.MethodGet)
	r.HandleFunc("/api/profile/student", a.currentStudent).Methods(http.MethodGet)
	r.HandleFunc("/api/profile/student", a.setStudent).Methods(http.MethodPut)
	r.HandleFunc("/api/profile/student", a.logout).Methods(http.MethodDelete)
	r.HandleFunc("/api/profile/draft", a.draft).Methods(http.MethodGet)
	r.HandleFunc("/api/profile/draft", a.saveDraft).Methods(http.MethodPut)
	r.NotFoundHandler = http.HandlerFunc(notFound)
	return withCORS(r)
}

// studentID reads ?studentId= and falls back to the logged-in student.
func (a *Agent) studentID(ctx context.Context, r *http.Request) string {
	if id := r.URL.Query().Get("studentId"); id != "" {
		return id
	}
	if current, ok, err := a.profile.CurrentStudent(ctx); err == nil && ok {
		return current.StudentID
	}
	return ""
}

// listAttempts returns the student's visible history, or every attempt at one quiz
// (hidden included) when quizId is given.
func (a *Agent) listAttempts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	studentID := a.studentID(ctx, r)
	var (
		records []domain.AttemptRecord
		err     error
	)
	if quizID := r.URL.Query().Get("quizId"); quizID != "" {
		records, err = a.service.Ledger().ListByStudentAndQuiz(ctx, studentID, quizID)
	} else {
		records, err = a.service.Ledger().ListByStudent(ctx, studentID)
	}
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if records == nil {
		records = []domain.AttemptRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"attempts": records})
}

func (a *Agent) bestAttempt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	record, ok, err := a.service.Ledger().BestByStudentAndQuiz(ctx, a.studentID(ctx, r), r.URL.Query().Get("quizId"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no attempts")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (a *Agent) hideAttempt(w http.ResponseWriter, r *http.Request) {
	var req hideRequest
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid hide body")
		return
	}
	if req.StudentID == "" {
		req.StudentID = a.studentID(r.Context(), r)
	}
	if err := a.service.Ledger().Hide(r.Context(), mux.Vars(r)["recordId"], req.StudentID); err != nil {
		writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *Agent) deleteAttempt(w http.ResponseWriter, r *http.Request) {
	if err := a.service.Ledger().Delete(r.Context(), mux.Vars(r)["recordId"]); err != nil {
		writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *Agent) listLimits(w http.ResponseWriter, r *http.Request) {
	overrides, err := a.service.Policy().Overrides(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"limits": overrides})
}

func (a *Agent) getLimit(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	limit, err := a.service.Policy().LimitFor(r.Context(), vars["classId"], vars["quizId"])
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.LimitOverride{ClassID: vars["classId"], QuizID: vars["quizId"], Limit: limit})
}

func (a *Agent) setLimit(w http.ResponseWriter, r *http.Request) {
	var req limitRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, r, domain.ErrInvalidLimit)
		return
	}
	vars := mux.Vars(r)
	if err := a.service.Policy().SetLimit(r.Context(), vars["classId"], vars["quizId"], req.Limit); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.LimitOverride{ClassID: vars["classId"], QuizID: vars["quizId"], Limit: req.Limit})
}

func (a *Agent) clearLimit(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := a.service.Policy().ClearLimit(r.Context(), vars["classId"], vars["quizId"]); err != nil {
		writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *Agent) allowance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	allowance, err := a.service.Policy().CanAttempt(ctx, a.studentID(ctx, r), q.Get("classId"), q.Get("quizId"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, allowance)
}

func (a *Agent) analysis(w http.ResponseWriter, r *http.Request) {
	stats, err := a.service.ItemAnalysis(r.Context(), mux.Vars(r)["quizId"])
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": stats})
}

func (a *Agent) currentStudent(w http.ResponseWriter, r *http.Request) {
	identity, ok, err := a.profile.CurrentStudent(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no student logged in")
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

func (a *Agent) setStudent(w http.ResponseWriter, r *http.Request) {
	var req studentRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, r, domain.ErrInvalidIdentity)
		return
	}
	identity := domain.Identity{StudentID: req.StudentID, StudentName: req.StudentName}
	if err := a.profile.SetCurrentStudent(r.Context(), identity); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

func (a *Agent) logout(w http.ResponseWriter, r *http.Request) {
	if err := a.profile.Logout(r.Context()); err != nil {
		writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *Agent) draft(w http.ResponseWriter, r *http.Request) {
	draft, ok, err := a.profile.Draft(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no draft")
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (a *Agent) saveDraft(w http.ResponseWriter, r *http.Request) {
	var draft app.QuizDraft
	if err := decodeBody(r, &draft); err != nil {
		writeError(w, http.StatusBadRequest, "invalid draft body")
		return
	}
	if err := a.profile.SaveDraft(r.Context(), draft); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}
