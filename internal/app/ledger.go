package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"studyquiz-sync/internal/domain"
)

// Ledger is the append-only collection of attempt records kept in the local store.
// Mutations are read-modify-write cycles on one slot and are serialized per Ledger.
type Ledger struct {
	store RecordStore
	now   func() time.Time
	newID func() string
	mu    sync.Mutex
}

func NewLedger(store RecordStore) *Ledger {
	return NewLedgerWithClock(store, time.Now)
}

// NewLedgerWithClock allows deterministic timestamps in tests.
func NewLedgerWithClock(store RecordStore, now func() time.Time) *Ledger {
	return &Ledger{store: store, now: now, newID: uuid.NewString}
}

// Append validates the candidate, derives the computed fields and stores a new record.
// It never deduplicates: two calls for the same attempt produce two records.
func (l *Ledger) Append(ctx context.Context, candidate domain.AttemptCandidate) (domain.AttemptRecord, error) {
	identity := domain.Identity{StudentID: candidate.StudentID, StudentName: candidate.StudentName}
	if err := identity.Validate(); err != nil {
		return domain.AttemptRecord{}, err
	}
	if strings.TrimSpace(candidate.QuizID) == "" {
		return domain.AttemptRecord{}, fmt.Errorf("%w: quiz id is required", domain.ErrInvalidIdentity)
	}
	if err := domain.ValidateScore(candidate.Score, candidate.Total); err != nil {
		return domain.AttemptRecord{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := loadLedger(ctx, l.store)
	if err != nil {
		return domain.AttemptRecord{}, err
	}
	prior := doc.attempts(candidate.StudentID, candidate.QuizID)

	pct := domain.Percentage(candidate.Score, candidate.Total)
	record := domain.AttemptRecord{
		ID:            l.newID(),
		StudentID:     candidate.StudentID,
		StudentName:   candidate.StudentName,
		QuizID:        candidate.QuizID,
		Score:         candidate.Score,
		Total:         candidate.Total,
		Percentage:    pct,
		LetterGrade:   domain.GradeFor(pct),
		CompletedAt:   l.now().UTC(),
		AttemptNumber: prior + 1,
		Answers:       copyAnswers(candidate.Answers),
	}

	if err := doc.append(record); err != nil {
		return domain.AttemptRecord{}, err
	}
	if err := saveLedger(ctx, l.store, doc); err != nil {
		return domain.AttemptRecord{}, err
	}
	return record, nil
}

// AttemptCount counts every stored row for the student and quiz, hidden and
// unreadable ones included.
func (l *Ledger) AttemptCount(ctx context.Context, studentID, quizID string) (int, error) {
	doc, err := loadLedger(ctx, l.store)
	if err != nil {
		return 0, err
	}
	return doc.attempts(studentID, quizID), nil
}

// ListByStudent returns the student's visible records, oldest first.
func (l *Ledger) ListByStudent(ctx context.Context, studentID string) ([]domain.AttemptRecord, error) {
	records, err := readLedger(ctx, l.store)
	if err != nil {
		return nil, err
	}
	hidden, err := readHidden(ctx, l.store, studentID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.AttemptRecord, 0)
	for _, rec := range records {
		if rec.StudentID != studentID || rec.QuizID == "" {
			continue
		}
		if _, ok := hidden[rec.ID]; ok {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// ListByStudentAndQuiz includes hidden records; hiding must not weaken the attempt policy.
func (l *Ledger) ListByStudentAndQuiz(ctx context.Context, studentID, quizID string) ([]domain.AttemptRecord, error) {
	records, err := readLedger(ctx, l.store)
	if err != nil {
		return nil, err
	}
	out := make([]domain.AttemptRecord, 0)
	for _, rec := range records {
		if rec.StudentID == studentID && rec.QuizID == quizID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// ListByQuiz is the quiz owner's view across all students.
func (l *Ledger) ListByQuiz(ctx context.Context, quizID string) ([]domain.AttemptRecord, error) {
	records, err := readLedger(ctx, l.store)
	if err != nil {
		return nil, err
	}
	out := make([]domain.AttemptRecord, 0)
	for _, rec := range records {
		if quizID != "" && rec.QuizID == quizID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Hide suppresses recordID from studentID's own view. Idempotent.
func (l *Ledger) Hide(ctx context.Context, recordID, studentID string) error {
	if strings.TrimSpace(studentID) == "" {
		return fmt.Errorf("%w: student id is required", domain.ErrInvalidIdentity)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	hidden, err := readHidden(ctx, l.store, studentID)
	if err != nil {
		return err
	}
	if _, ok := hidden[recordID]; ok {
		return nil
	}
	hidden[recordID] = struct{}{}
	return writeHidden(ctx, l.store, studentID, hidden)
}

// Delete removes a record for every viewer. Deleting an unknown id is a no-op.
func (l *Ledger) Delete(ctx context.Context, recordID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := loadLedger(ctx, l.store)
	if err != nil {
		return err
	}
	removed, ok := doc.remove(recordID)
	if !ok {
		return nil
	}
	if err := saveLedger(ctx, l.store, doc); err != nil {
		return err
	}

	hidden, err := readHidden(ctx, l.store, removed.StudentID)
	if err != nil {
		return err
	}
	if _, ok := hidden[recordID]; ok {
		delete(hidden, recordID)
		return writeHidden(ctx, l.store, removed.StudentID, hidden)
	}
	return nil
}

// BestByStudentAndQuiz returns the highest-percentage attempt, earliest first on ties.
func (l *Ledger) BestByStudentAndQuiz(ctx context.Context, studentID, quizID string) (domain.AttemptRecord, bool, error) {
	records, err := l.ListByStudentAndQuiz(ctx, studentID, quizID)
	if err != nil {
		return domain.AttemptRecord{}, false, err
	}
	best, ok := bestOf(records)
	return best, ok, nil
}

func bestOf(records []domain.AttemptRecord) (domain.AttemptRecord, bool) {
	if len(records) == 0 {
		return domain.AttemptRecord{}, false
	}
	best := records[0]
	for _, rec := range records[1:] {
		if rec.Percentage > best.Percentage ||
			(rec.Percentage == best.Percentage && rec.CompletedAt.Before(best.CompletedAt)) {
			best = rec
		}
	}
	return best, true
}

// ItemAnalysis reports, per question, how many students got it right on their best attempt.
// Records without stored answers count toward neither side.
func (l *Ledger) ItemAnalysis(ctx context.Context, quiz domain.Quiz) ([]domain.ItemStat, error) {
	records, err := l.ListByQuiz(ctx, quiz.ID)
	if err != nil {
		return nil, err
	}

	byStudent := make(map[string][]domain.AttemptRecord)
	for _, rec := range records {
		byStudent[rec.StudentID] = append(byStudent[rec.StudentID], rec)
	}
	students := make([]string, 0, len(byStudent))
	for id := range byStudent {
		students = append(students, id)
	}
	sort.Strings(students)

	stats := make([]domain.ItemStat, len(quiz.Questions))
	for i, q := range quiz.Questions {
		stats[i] = domain.ItemStat{Index: i, Prompt: q.Prompt}
	}
	for _, id := range students {
		best, _ := bestOf(byStudent[id])
		if len(best.Answers) == 0 {
			continue
		}
		for i, q := range quiz.Questions {
			answer, ok := best.Answers[i]
			if !ok {
				continue
			}
			stats[i].Answered++
			if answer == q.Correct {
				stats[i].Correct++
			}
		}
	}
	for i := range stats {
		if stats[i].Answered > 0 {
			stats[i].Rate = float64(stats[i].Correct) / float64(stats[i].Answered)
		}
	}
	return stats, nil
}

func copyAnswers(in map[int]string) map[int]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[int]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
