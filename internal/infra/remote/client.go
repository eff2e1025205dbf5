package remote

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"studyquiz-sync/internal/domain"
)

// QuizDocument is the body of GET /api/quizzes/{quizId}.
type QuizDocument struct {
	Quiz      QuizHeader        `json:"quiz"`
	Questions []domain.Question `json:"questions"`
}

// QuizHeader carries the quiz metadata without its questions.
type QuizHeader struct {
	ID        string    `json:"quizId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Client talks to the remote quiz-result store. Every request goes through the
// transport it was built with, which in the agent is the offline cache.
type Client struct {
	http *resty.Client
}

// NewClient builds a client for baseURL. A nil transport uses http.DefaultTransport.
func NewClient(baseURL string, transport http.RoundTripper, timeout time.Duration) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")
	if transport != nil {
		rc.SetTransport(transport)
	}
	if timeout > 0 {
		rc.SetTimeout(timeout)
	}
	return &Client{http: rc}
}

// Submit posts one attempt to /api/submit. It is the reconciler's push target.
func (c *Client) Submit(ctx context.Context, submission domain.Submission) (domain.SubmitReceipt, error) {
	var receipt domain.SubmitReceipt
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(submission).
		SetResult(&receipt).
		SetError(&errorBody{}).
		Post("/api/submit")
	if err != nil {
		return domain.SubmitReceipt{}, fmt.Errorf("%w: submit: %v", domain.ErrRemoteUnavailable, err)
	}
	if resp.StatusCode() != http.StatusCreated && resp.StatusCode() != http.StatusOK {
		return domain.SubmitReceipt{}, statusError("submit", resp)
	}
	return receipt, nil
}

// LoadQuiz fetches a remotely hosted quiz. It satisfies the quiz loader used by the caching repositories.
func (c *Client) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var doc QuizDocument
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("quizId", quizID).
		SetResult(&doc).
		SetError(&errorBody{}).
		Get("/api/quizzes/{quizId}")
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("%w: load quiz: %v", domain.ErrRemoteUnavailable, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if resp.IsError() {
		return domain.Quiz{}, statusError("load quiz", resp)
	}
	quiz := domain.Quiz{
		ID:        doc.Quiz.ID,
		Title:     doc.Quiz.Title,
		Questions: doc.Questions,
		CreatedAt: doc.Quiz.CreatedAt,
	}
	if quiz.ID == "" {
		quiz.ID = quizID
	}
	if err := domain.ValidateQuestions(quiz.Questions); err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}

// Results lists every submission the remote store holds for a quiz.
func (c *Client) Results(ctx context.Context, quizID string) (domain.ResultList, error) {
	var list domain.ResultList
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("quizId", quizID).
		SetResult(&list).
		SetError(&errorBody{}).
		Get("/api/quizzes/{quizId}/results")
	if err != nil {
		return domain.ResultList{}, fmt.Errorf("%w: results: %v", domain.ErrRemoteUnavailable, err)
	}
	if resp.IsError() {
		return domain.ResultList{}, statusError("results", resp)
	}
	return list, nil
}

func statusError(op string, resp *resty.Response) error {
	msg := resp.Status()
	if body, ok := resp.Error().(*errorBody); ok && body.Error != "" {
		msg = body.Error
	}
	return fmt.Errorf("%w: %s: %d %s", domain.ErrRemoteUnavailable, op, resp.StatusCode(), msg)
}
