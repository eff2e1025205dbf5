package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"studyquiz-sync/internal/domain"
)

func TestGeneratorReturnsValidatedQuestions(t *testing.T) {
	var req generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeJSON(w, http.StatusOK, map[string]any{
			"questions": []map[string]any{
				{"question": "2+2?", "options": []string{"3", "4"}, "correct": "4"},
				{"question": "3+3?", "options": []string{"6", "9"}, "correct": "6"},
			},
		})
	}))
	defer srv.Close()

	gen := NewGenerator(srv.URL+"/api/generate-quiz", nil, time.Second)
	questions, err := gen.Generate(context.Background(), "arithmetic", 2)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	require.Equal(t, "arithmetic", req.Topic)
	require.Equal(t, 2, req.NumQuestions)
}

func TestGeneratorRejectsMalformedQuestionSets(t *testing.T) {
	cases := map[string]any{
		"missing questions": map[string]any{"items": []string{}},
		"single option": map[string]any{"questions": []map[string]any{
			{"question": "2+2?", "options": []string{"4"}, "correct": "4"},
		}},
		"correct not an option": map[string]any{"questions": []map[string]any{
			{"question": "2+2?", "options": []string{"3", "5"}, "correct": "4"},
		}},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, body)
			}))
			defer srv.Close()

			_, err := NewGenerator(srv.URL, nil, time.Second).Generate(context.Background(), "math", 1)
			require.ErrorIs(t, err, domain.ErrInvalidQuizData)
		})
	}
}

func TestGeneratorRequiresTopic(t *testing.T) {
	_, err := NewGenerator("http://127.0.0.1:1", nil, time.Second).Generate(context.Background(), " ", 3)
	require.ErrorIs(t, err, domain.ErrInvalidQuizData)
}

func TestGeneratorCapsQuestionCount(t *testing.T) {
	var req generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeJSON(w, http.StatusOK, map[string]any{"questions": []map[string]any{
			{"question": "2+2?", "options": []string{"3", "4"}, "correct": "4"},
		}})
	}))
	defer srv.Close()

	gen := NewGenerator(srv.URL, nil, time.Second).SetMaxQuestions(10)
	_, err := gen.Generate(context.Background(), "math", 50)
	require.NoError(t, err)
	require.Equal(t, 10, req.NumQuestions)

	_, err = gen.Generate(context.Background(), "math", 0)
	require.NoError(t, err)
	require.Equal(t, 5, req.NumQuestions)
}

func TestGeneratorUploadsDocument(t *testing.T) {
	var path, fileName, content, numQuestions string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, r.ParseMultipartForm(1<<20))
		numQuestions = r.FormValue("numQuestions")
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		raw, err := io.ReadAll(file)
		require.NoError(t, err)
		fileName, content = header.Filename, string(raw)
		writeJSON(w, http.StatusOK, map[string]any{"questions": []map[string]any{
			{"question": "Which gas do plants absorb?", "options": []string{"CO2", "Helium"}, "correct": "CO2"},
		}})
	}))
	defer srv.Close()

	gen := NewGenerator(srv.URL+"/api/generate-quiz", nil, time.Second).SetMaxQuestions(3)
	questions, err := gen.GenerateFromDocument(context.Background(), "notes.md", strings.NewReader("# Photosynthesis"), 8)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	require.Equal(t, "/api/generate-quiz-from-document", path)
	require.Equal(t, "notes.md", fileName)
	require.Equal(t, "# Photosynthesis", content)
	require.Equal(t, "3", numQuestions)
}

func TestGeneratorDocumentErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Document appears to be empty"})
	}))
	defer srv.Close()

	gen := NewGenerator(srv.URL, nil, time.Second)
	_, err := gen.GenerateFromDocument(context.Background(), "empty.txt", strings.NewReader(""), 2)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Document appears to be empty")

	_, err = gen.GenerateFromDocument(context.Background(), "none.txt", nil, 2)
	require.ErrorIs(t, err, domain.ErrInvalidQuizData)
}
