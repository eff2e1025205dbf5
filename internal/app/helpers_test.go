package app_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"studyquiz-sync/internal/app"
	"studyquiz-sync/internal/domain"
	"studyquiz-sync/internal/infra/memory"
)

// recordingRemote counts submissions and optionally fails every one of them.
type recordingRemote struct {
	mu          sync.Mutex
	submissions []domain.Submission
	fail        bool
	onSubmit    func(domain.Submission)
}

func (r *recordingRemote) Submit(_ context.Context, sub domain.Submission) (domain.SubmitReceipt, error) {
	if r.onSubmit != nil {
		r.onSubmit(sub)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submissions = append(r.submissions, sub)
	if r.fail {
		return domain.SubmitReceipt{}, errors.New("connection refused")
	}
	return domain.SubmitReceipt{ID: "remote-1", QuizID: sub.QuizID, Score: sub.Score, TotalQuestions: sub.TotalQuestions}, nil
}

func (r *recordingRemote) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.submissions)
}

type fixture struct {
	store      *memory.RecordStore
	ledger     *app.Ledger
	policy     *app.Policy
	reconciler *app.Reconciler
	remote     *recordingRemote
}

func newFixture() *fixture {
	store := memory.NewRecordStore()
	ledger := app.NewLedger(store)
	remote := &recordingRemote{}
	return &fixture{
		store:      store,
		ledger:     ledger,
		policy:     app.NewPolicy(store, ledger, 0),
		reconciler: app.NewReconciler(ledger, remote, time.Second),
		remote:     remote,
	}
}

var sam = domain.Identity{StudentID: "s1", StudentName: "Sam"}

func candidate(quizID string, score, total int) domain.AttemptCandidate {
	return domain.AttemptCandidate{
		StudentID: sam.StudentID, StudentName: sam.StudentName,
		QuizID: quizID, Score: score, Total: total,
	}
}

func fourQuestions() []domain.Question {
	return []domain.Question{
		{Prompt: "2 + 2?", Options: []string{"3", "4"}, Correct: "4"},
		{Prompt: "Capital of Peru?", Options: []string{"Lima", "Quito"}, Correct: "Lima"},
		{Prompt: "H2O is?", Options: []string{"water", "salt"}, Correct: "water"},
		{Prompt: "Largest planet?", Options: []string{"Mars", "Jupiter"}, Correct: "Jupiter"},
	}
}

func waitPush(task *app.PushTask) {
	select {
	case <-task.Done():
	case <-time.After(5 * time.Second):
		panic("push never completed")
	}
}
