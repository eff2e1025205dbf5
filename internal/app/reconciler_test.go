package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"studyquiz-sync/internal/app"
	"studyquiz-sync/internal/domain"
)

func result(quizID string, score, total int) app.SessionResult {
	return app.SessionResult{Identity: sam, QuizID: quizID, Score: score, Total: total}
}

func TestCommitSurvivesFailingRemote(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.remote.fail = true

	rec, push, err := f.reconciler.Finalize(ctx, result("q1", 2, 3))
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if rec.ID == "" || rec.Percentage != 67 || rec.LetterGrade != "D" {
		t.Fatalf("unexpected record %+v", rec)
	}
	waitPush(push)
	if push.Err() == nil {
		t.Fatalf("expected push error")
	}

	recs, err := f.ledger.ListByStudentAndQuiz(ctx, "s1", "q1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != rec.ID {
		t.Fatalf("expected committed record to be listed, got %+v", recs)
	}
}

func TestPushStartsAfterCommit(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	seen := make(chan int, 1)
	f.remote.onSubmit = func(domain.Submission) {
		recs, _ := f.ledger.ListByStudentAndQuiz(ctx, "s1", "q1")
		seen <- len(recs)
	}

	_, push, err := f.reconciler.Finalize(ctx, result("q1", 1, 1))
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	waitPush(push)
	if n := <-seen; n != 1 {
		t.Fatalf("expected the record to be durable before the push, saw %d", n)
	}
}

func TestPushOutlivesCallerCancellation(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())

	rec, err := f.reconciler.Commit(ctx, result("q1", 1, 1))
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	cancel()
	push := f.reconciler.PushRemote(ctx, rec)
	waitPush(push)
	if push.Err() != nil {
		t.Fatalf("expected push to complete after cancel, got %v", push.Err())
	}
	sub := f.remote.submissions[0]
	if sub.QuizID != "q1" || sub.StudentID != "s1" || sub.TotalQuestions != 1 {
		t.Fatalf("unexpected submission %+v", sub)
	}
}

func TestCommitRejectsAnonymousResults(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	_, push, err := f.reconciler.Finalize(ctx, app.SessionResult{QuizID: "q1", Score: 1, Total: 1})
	if !errors.Is(err, domain.ErrInvalidIdentity) {
		t.Fatalf("expected invalid identity, got %v", err)
	}
	if push != nil {
		t.Fatalf("no push may start without a commit")
	}
	if f.remote.count() != 0 {
		t.Fatalf("expected no remote traffic")
	}
}

func TestMissingRemoteIsReportedOnTheTask(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	reconciler := app.NewReconciler(f.ledger, nil, time.Second)

	_, push, err := reconciler.Finalize(ctx, result("q1", 1, 1))
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	waitPush(push)
	if !errors.Is(push.Err(), domain.ErrRemoteUnavailable) {
		t.Fatalf("expected remote unavailable, got %v", push.Err())
	}
}
