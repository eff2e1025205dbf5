package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"studyquiz-sync/internal/domain"
)

// SessionRepository holds the single live session per student (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Put(studentID string, session *Session)
	Get(studentID string) (*Session, bool)
	DeleteIfSame(studentID string, session *Session)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuestionGenerator produces questions for a topic or an uploaded document. Its output
// is validated like any other source.
type QuestionGenerator interface {
	Generate(ctx context.Context, topic string, count int) ([]domain.Question, error)
	GenerateFromDocument(ctx context.Context, name string, r io.Reader, count int) ([]domain.Question, error)
}

// Document is study material uploaded to the generator.
type Document struct {
	Name string
	Body io.Reader
}

// Denial reasons reported by Start instead of errors.
const (
	DenialAttemptLimit    = "attempt_limit"
	DenialQuizNotFound    = "quiz_not_found"
	DenialQuizUnavailable = "quiz_unavailable"
)

// StartRequest describes where a session's questions come from. Inline questions win
// over a document, then a generator topic, then fetching QuizID from the quiz repository.
type StartRequest struct {
	Identity  domain.Identity
	ClassID   string
	QuizID    string
	Questions []domain.Question
	Document  *Document
	Topic     string
	Count     int
}

// StartResult is either a live session or a structured denial.
type StartResult struct {
	Session   *Session
	Allowance domain.Allowance
	Denial    string
}

// Allowed reports whether a session was started.
func (r StartResult) Allowed() bool { return r.Session != nil }

// StudyService contains the local-first quiz use cases.
type StudyService struct {
	sessions   SessionRepository
	quizzes    QuizRepository
	generator  QuestionGenerator
	ledger     *Ledger
	policy     *Policy
	reconciler *Reconciler
}

func NewStudyService(sessions SessionRepository, quizzes QuizRepository, generator QuestionGenerator, ledger *Ledger, policy *Policy, reconciler *Reconciler) *StudyService {
	return &StudyService{
		sessions:   sessions,
		quizzes:    quizzes,
		generator:  generator,
		ledger:     ledger,
		policy:     policy,
		reconciler: reconciler,
	}
}

func (s *StudyService) Ledger() *Ledger { return s.ledger }

func (s *StudyService) Policy() *Policy { return s.policy }

// Start checks the attempt policy, resolves the questions and registers a new live
// session for the student, replacing any abandoned one.
func (s *StudyService) Start(ctx context.Context, req StartRequest) (StartResult, error) {
	if err := req.Identity.Validate(); err != nil {
		return StartResult{}, err
	}
	if req.QuizID == "" && (req.Topic != "" || req.Document != nil) {
		req.QuizID = "generated_" + uuid.NewString()
	}
	if strings.TrimSpace(req.QuizID) == "" {
		return StartResult{}, fmt.Errorf("%w: quiz id is required", domain.ErrInvalidIdentity)
	}

	allowance, err := s.policy.CanAttempt(ctx, req.Identity.StudentID, req.ClassID, req.QuizID)
	if err != nil {
		return StartResult{}, err
	}
	if !allowance.Allowed {
		return StartResult{Allowance: allowance, Denial: DenialAttemptLimit}, nil
	}

	questions, denial, err := s.resolveQuestions(ctx, req)
	if err != nil {
		return StartResult{}, err
	}
	if denial != "" {
		return StartResult{Allowance: allowance, Denial: denial}, nil
	}

	finalizer := &releasingFinalizer{
		reconciler: s.reconciler,
		sessions:   s.sessions,
		studentID:  req.Identity.StudentID,
	}
	session := NewSession(req.QuizID, req.Identity, finalizer)
	finalizer.session = session
	if err := session.Start(questions); err != nil {
		return StartResult{}, err
	}
	s.sessions.Put(req.Identity.StudentID, session)
	return StartResult{Session: session, Allowance: allowance}, nil
}

func (s *StudyService) resolveQuestions(ctx context.Context, req StartRequest) ([]domain.Question, string, error) {
	switch {
	case len(req.Questions) > 0:
		return req.Questions, "", nil
	case req.Document != nil || req.Topic != "":
		if s.generator == nil {
			return nil, DenialQuizUnavailable, nil
		}
		var (
			questions []domain.Question
			err       error
			fields    logrus.Fields
		)
		if req.Document != nil {
			questions, err = s.generator.GenerateFromDocument(ctx, req.Document.Name, req.Document.Body, req.Count)
			fields = logrus.Fields{"document": req.Document.Name}
		} else {
			questions, err = s.generator.Generate(ctx, req.Topic, req.Count)
			fields = logrus.Fields{"topic": req.Topic}
		}
		if errors.Is(err, domain.ErrInvalidQuizData) {
			return nil, "", err
		}
		if err != nil {
			logrus.WithFields(fields).WithError(err).Warn("question generation failed")
			return nil, DenialQuizUnavailable, nil
		}
		return questions, "", nil
	default:
		quiz, err := s.quizzes.GetQuiz(ctx, req.QuizID)
		if errors.Is(err, domain.ErrQuizNotFound) {
			return nil, DenialQuizNotFound, nil
		}
		if errors.Is(err, domain.ErrInvalidQuizData) {
			return nil, "", err
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{"quizId": req.QuizID, "error": err}).Warn("quiz fetch failed")
			return nil, DenialQuizUnavailable, nil
		}
		return quiz.Questions, "", nil
	}
}

// Session returns the student's live session.
func (s *StudyService) Session(studentID string) (*Session, error) {
	session, ok := s.sessions.Get(studentID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Discard abandons a live session without recording anything.
func (s *StudyService) Discard(studentID string) {
	if session, ok := s.sessions.Get(studentID); ok {
		s.sessions.DeleteIfSame(studentID, session)
	}
}

// ItemAnalysis loads the quiz and reports per-question correctness over best attempts.
func (s *StudyService) ItemAnalysis(ctx context.Context, quizID string) ([]domain.ItemStat, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return s.ledger.ItemAnalysis(ctx, quiz)
}

// releasingFinalizer commits through the reconciler and then drops the session from the
// repository: the durable artifact of a session is its attempt record.
type releasingFinalizer struct {
	reconciler *Reconciler
	sessions   SessionRepository
	studentID  string
	session    *Session
}

func (f *releasingFinalizer) Finalize(ctx context.Context, result SessionResult) (domain.AttemptRecord, *PushTask, error) {
	defer f.sessions.DeleteIfSame(f.studentID, f.session)
	return f.reconciler.Finalize(ctx, result)
}
