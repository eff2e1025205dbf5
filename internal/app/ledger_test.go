package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"studyquiz-sync/internal/app"
	"studyquiz-sync/internal/domain"
	"studyquiz-sync/internal/infra/memory"
)

func TestAppendDerivesFieldsAndNumbersAttempts(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	ledger := app.NewLedgerWithClock(memory.NewRecordStore(), func() time.Time { return at })

	for total := 1; total <= 7; total++ {
		for score := 0; score <= total; score++ {
			rec, err := ledger.Append(ctx, candidate("bounds", score, total))
			if err != nil {
				t.Fatalf("append %d/%d: %v", score, total, err)
			}
			if rec.Score < 0 || rec.Score > rec.Total {
				t.Fatalf("score out of bounds %+v", rec)
			}
			if rec.Percentage != domain.Percentage(score, total) || rec.LetterGrade != domain.GradeFor(rec.Percentage) {
				t.Fatalf("derived fields wrong for %d/%d: %+v", score, total, rec)
			}
		}
	}

	first, err := ledger.Append(ctx, candidate("q1", 1, 2))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	second, err := ledger.Append(ctx, candidate("q1", 2, 2))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if first.AttemptNumber != 1 || second.AttemptNumber != 2 {
		t.Fatalf("expected attempts 1 and 2, got %d and %d", first.AttemptNumber, second.AttemptNumber)
	}
	if first.ID == "" || first.ID == second.ID {
		t.Fatalf("expected distinct ids, got %q and %q", first.ID, second.ID)
	}
	if !first.CompletedAt.Equal(at) {
		t.Fatalf("expected completedAt from clock, got %s", first.CompletedAt)
	}
}

func TestAppendRejectsBeforeWriting(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	cases := []struct {
		name string
		c    domain.AttemptCandidate
		want error
	}{
		{"missing student", domain.AttemptCandidate{StudentName: "Sam", QuizID: "q1", Score: 1, Total: 1}, domain.ErrInvalidIdentity},
		{"missing name", domain.AttemptCandidate{StudentID: "s1", QuizID: "q1", Score: 1, Total: 1}, domain.ErrInvalidIdentity},
		{"missing quiz", candidate("", 1, 1), domain.ErrInvalidIdentity},
		{"negative score", candidate("q1", -1, 3), domain.ErrInvalidScore},
		{"score over total", candidate("q1", 4, 3), domain.ErrInvalidScore},
		{"zero total", candidate("q1", 0, 0), domain.ErrInvalidScore},
	}
	for _, tc := range cases {
		if _, err := f.ledger.Append(ctx, tc.c); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
	if _, ok, _ := f.store.Get(ctx, "quiz_scores"); ok {
		t.Fatalf("expected nothing written for rejected candidates")
	}
}

func TestHiddenRecordsStillCountTowardLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	var recs []domain.AttemptRecord
	for i := 0; i < 3; i++ {
		rec, err := f.ledger.Append(ctx, candidate("q1", i, 3))
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		recs = append(recs, rec)
	}

	if err := f.ledger.Hide(ctx, recs[0].ID, "s1"); err != nil {
		t.Fatalf("hide: %v", err)
	}
	if err := f.ledger.Hide(ctx, recs[0].ID, "s1"); err != nil {
		t.Fatalf("hide again: %v", err)
	}

	visible, err := f.ledger.ListByStudent(ctx, "s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(visible) != 2 {
		t.Fatalf("expected 2 visible records, got %d", len(visible))
	}
	all, err := f.ledger.ListByStudentAndQuiz(ctx, "s1", "q1")
	if err != nil {
		t.Fatalf("list by quiz: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected hidden record included, got %d", len(all))
	}

	allowance, err := f.policy.CanAttempt(ctx, "s1", "c1", "q1")
	if err != nil {
		t.Fatalf("can attempt: %v", err)
	}
	if allowance.Used != 3 || allowance.Allowed {
		t.Fatalf("expected used=3 and not allowed, got %+v", allowance)
	}

	if err := f.ledger.Hide(ctx, recs[1].ID, ""); !errors.Is(err, domain.ErrInvalidIdentity) {
		t.Fatalf("expected invalid identity for blank student, got %v", err)
	}
}

func TestDeleteIsIdempotentAndFreesAnAttempt(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	rec, err := f.ledger.Append(ctx, candidate("q1", 1, 1))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := f.ledger.Hide(ctx, rec.ID, "s1"); err != nil {
		t.Fatalf("hide: %v", err)
	}
	if err := f.ledger.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := f.ledger.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("delete twice: %v", err)
	}
	if err := f.ledger.Delete(ctx, "unknown"); err != nil {
		t.Fatalf("delete unknown: %v", err)
	}

	all, _ := f.ledger.ListByStudentAndQuiz(ctx, "s1", "q1")
	if len(all) != 0 {
		t.Fatalf("expected no records, got %d", len(all))
	}
	raw, _, _ := f.store.Get(ctx, "hidden_scores_s1")
	if string(raw) != "[]" {
		t.Fatalf("expected hidden set cleaned, got %s", raw)
	}
}

func TestBestPrefersHighestThenEarliest(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ledger := app.NewLedgerWithClock(memory.NewRecordStore(), func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	})

	if _, ok, err := ledger.BestByStudentAndQuiz(ctx, "s1", "q1"); ok || err != nil {
		t.Fatalf("expected no best for empty ledger, ok=%v err=%v", ok, err)
	}

	_, _ = ledger.Append(ctx, candidate("q1", 1, 4))
	firstTop, _ := ledger.Append(ctx, candidate("q1", 3, 4))
	_, _ = ledger.Append(ctx, candidate("q1", 3, 4))
	_, _ = ledger.Append(ctx, candidate("q1", 2, 4))

	best, ok, err := ledger.BestByStudentAndQuiz(ctx, "s1", "q1")
	if err != nil || !ok {
		t.Fatalf("best: ok=%v err=%v", ok, err)
	}
	if best.ID != firstTop.ID {
		t.Fatalf("expected earliest top score %s, got %s", firstTop.ID, best.ID)
	}
}

func TestCorruptEntriesAreHiddenButKept(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRecordStore()
	okRow := `{"id":"ok","studentId":"s1","studentName":"Sam","quizId":"q1","score":1,"total":2,"percentage":50,"letterGrade":"F","attemptNumber":1}`
	badGrade := `{"id":"bad-grade", "studentId":"s1","studentName":"Sam","quizId":"q1","score":1,"total":2,"percentage":50,"letterGrade":"A","attemptNumber":2}`
	notObject := `"not an object"`
	legacy := `{"id":"legacy","studentId":"s1","studentName":"Sam","score":1,"total":1,"percentage":100,"letterGrade":"A"}`
	raw := "[\n\t" + strings.Join([]string{okRow, badGrade, notObject, legacy}, ",\n\t") + "\n]"
	if err := store.Put(ctx, "quiz_scores", []byte(raw)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ledger := app.NewLedger(store)

	visible, err := ledger.ListByStudent(ctx, "s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(visible) != 1 || visible[0].ID != "ok" {
		t.Fatalf("expected only the valid record with a quiz id, got %+v", visible)
	}

	rec, err := ledger.Append(ctx, candidate("q1", 2, 2))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if rec.AttemptNumber != 3 {
		t.Fatalf("expected attempt number 3 after two stored q1 rows, got %d", rec.AttemptNumber)
	}
	if _, err := ledger.Append(ctx, candidate("q2", 1, 1)); err != nil {
		t.Fatalf("append q2: %v", err)
	}
	if err := ledger.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	stored, _, _ := store.Get(ctx, "quiz_scores")
	for _, row := range []string{okRow, badGrade, notObject, legacy} {
		if !strings.Contains(string(stored), row) {
			t.Fatalf("row %s was not kept verbatim, slot is %s", row, stored)
		}
	}
	if strings.Contains(string(stored), rec.ID) {
		t.Fatalf("deleted record still stored")
	}
}

func TestInvalidRowsCountTowardLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	row := `[{"id":"r1","studentId":"s1","studentName":"Sam","quizId":"q1","score":0,"total":1,"percentage":0,"letterGrade":"F ","attemptNumber":1}]`
	if err := f.store.Put(ctx, "quiz_scores", []byte(row)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := f.policy.SetLimit(ctx, "c1", "q1", 1); err != nil {
		t.Fatalf("set limit: %v", err)
	}

	allowance, err := f.policy.CanAttempt(ctx, "s1", "c1", "q1")
	if err != nil {
		t.Fatalf("can attempt: %v", err)
	}
	if allowance.Allowed || allowance.Used != 1 {
		t.Fatalf("expected the stored row to use the only attempt, got %+v", allowance)
	}
}

func TestUnreadableLedgerIsMovedAside(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	if err := f.store.Put(ctx, "quiz_scores", []byte(`{"truncated":`)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := f.ledger.Append(ctx, candidate("q1", 1, 1)); err != nil {
		t.Fatalf("append: %v", err)
	}
	backup, ok, err := f.store.Get(ctx, "quiz_scores_unreadable")
	if err != nil || !ok || string(backup) != `{"truncated":` {
		t.Fatalf("expected unreadable slot backed up, got %q ok=%v err=%v", backup, ok, err)
	}
	recs, err := f.ledger.ListByStudentAndQuiz(ctx, "s1", "q1")
	if err != nil || len(recs) != 1 {
		t.Fatalf("expected the new record readable, got %d err=%v", len(recs), err)
	}
}

func TestListByQuizSpansStudents(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, _ = f.ledger.Append(ctx, candidate("q1", 1, 1))
	_, _ = f.ledger.Append(ctx, domain.AttemptCandidate{StudentID: "s2", StudentName: "Kim", QuizID: "q1", Score: 0, Total: 1})
	_, _ = f.ledger.Append(ctx, candidate("q2", 1, 1))

	recs, err := f.ledger.ListByQuiz(ctx, "q1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records for q1, got %d", len(recs))
	}
}
