package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/xeipuuv/gojsonschema"
	"studyquiz-sync/internal/domain"
)

const questionSetSchema = `{
  "type": "object",
  "required": ["questions"],
  "properties": {
    "questions": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["question", "options", "correct"],
        "properties": {
          "question": {"type": "string", "minLength": 1},
          "options": {"type": "array", "minItems": 2, "items": {"type": "string"}},
          "correct": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

var questionSet = gojsonschema.NewStringLoader(questionSetSchema)

// DefaultMaxQuestions caps numQuestions when no limit is configured.
const DefaultMaxQuestions = 20

type generateRequest struct {
	Topic        string `json:"topic"`
	NumQuestions int    `json:"numQuestions"`
}

type generateResponse struct {
	Questions []domain.Question `json:"questions"`
}

// Generator asks the question generator for a fresh question set on a topic or an
// uploaded document.
type Generator struct {
	http         *resty.Client
	url          string
	documentURL  string
	maxQuestions int
}

// NewGenerator posts topics to url and documents to url+"-from-document".
func NewGenerator(url string, transport http.RoundTripper, timeout time.Duration) *Generator {
	rc := resty.New()
	if transport != nil {
		rc.SetTransport(transport)
	}
	if timeout > 0 {
		rc.SetTimeout(timeout)
	}
	return &Generator{
		http:         rc,
		url:          url,
		documentURL:  strings.TrimRight(url, "/") + "-from-document",
		maxQuestions: DefaultMaxQuestions,
	}
}

func (g *Generator) SetDocumentURL(url string) *Generator {
	if url != "" {
		g.documentURL = url
	}
	return g
}

func (g *Generator) SetMaxQuestions(n int) *Generator {
	if n > 0 {
		g.maxQuestions = n
	}
	return g
}

func (g *Generator) count(n int) int {
	if n <= 0 {
		n = 5
	}
	if n > g.maxQuestions {
		n = g.maxQuestions
	}
	return n
}

func (g *Generator) Generate(ctx context.Context, topic string, count int) ([]domain.Question, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, fmt.Errorf("%w: empty topic", domain.ErrInvalidQuizData)
	}
	resp, err := g.http.R().
		SetContext(ctx).
		SetBody(generateRequest{Topic: topic, NumQuestions: g.count(count)}).
		SetError(&errorBody{}).
		Post(g.url)
	if err != nil {
		return nil, fmt.Errorf("%w: generate: %v", domain.ErrRemoteUnavailable, err)
	}
	if resp.IsError() {
		return nil, statusError("generate", resp)
	}
	return decodeQuestionSet(resp.Body())
}

// GenerateFromDocument uploads a document as multipart field "file".
func (g *Generator) GenerateFromDocument(ctx context.Context, name string, r io.Reader, count int) ([]domain.Question, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: no document", domain.ErrInvalidQuizData)
	}
	if strings.TrimSpace(name) == "" {
		name = "document.txt"
	}
	resp, err := g.http.R().
		SetContext(ctx).
		SetFileReader("file", name, r).
		SetFormData(map[string]string{"numQuestions": strconv.Itoa(g.count(count))}).
		SetError(&errorBody{}).
		Post(g.documentURL)
	if err != nil {
		return nil, fmt.Errorf("%w: generate from document: %v", domain.ErrRemoteUnavailable, err)
	}
	if resp.IsError() {
		return nil, statusError("generate from document", resp)
	}
	return decodeQuestionSet(resp.Body())
}

func decodeQuestionSet(raw []byte) ([]domain.Question, error) {
	result, err := gojsonschema.Validate(questionSet, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: generator response: %v", domain.ErrInvalidQuizData, err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidQuizData, strings.Join(problems, "; "))
	}

	var body generateResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("%w: generator response: %v", domain.ErrInvalidQuizData, err)
	}
	if err := domain.ValidateQuestions(body.Questions); err != nil {
		return nil, err
	}
	return body.Questions, nil
}
