package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/handlers"
	"github.com/sirupsen/logrus"
	"studyquiz-sync/internal/domain"
)

var validate = validator.New()

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Debug("write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeFailure maps domain errors onto status codes. Unknown errors are logged and
// reported as 500.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrQuizNotFound), errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidIdentity),
		errors.Is(err, domain.ErrInvalidScore),
		errors.Is(err, domain.ErrInvalidQuizData),
		errors.Is(err, domain.ErrInvalidLimit):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrRemoteUnavailable):
		status = http.StatusBadGateway
	default:
		logrus.WithFields(logrus.Fields{"path": r.URL.Path, "method": r.Method, "error": err}).Error("request failed")
	}
	writeError(w, status, err.Error())
}

// decodeBody reads JSON into dst and runs struct validation on it.
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error":  "Endpoint not found",
		"path":   r.URL.Path,
		"method": r.Method,
	})
}

// withCORS opens the API to browser clients on any origin.
func withCORS(h http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedHeaders([]string{"Content-Type", "Accept"}),
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "HEAD", "OPTIONS"}),
	)(h)
}
