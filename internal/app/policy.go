package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"studyquiz-sync/internal/domain"
)

// Policy decides how many attempts a student gets per class/quiz pair.
// The answer is advisory for the UI; it is not a security boundary.
type Policy struct {
	store        RecordStore
	ledger       *Ledger
	defaultLimit int
	mu           sync.Mutex
}

func NewPolicy(store RecordStore, ledger *Ledger, defaultLimit int) *Policy {
	if defaultLimit <= 0 {
		defaultLimit = domain.DefaultAttemptLimit
	}
	return &Policy{store: store, ledger: ledger, defaultLimit: defaultLimit}
}

// LimitFor returns the override for (classID, quizID) or the default.
func (p *Policy) LimitFor(ctx context.Context, classID, quizID string) (int, error) {
	limits, err := readLimits(ctx, p.store)
	if err != nil {
		return 0, err
	}
	if limit, ok := limits[domain.LimitKey(classID, quizID)]; ok {
		return limit, nil
	}
	return p.defaultLimit, nil
}

// SetLimit upserts an override; last write wins.
func (p *Policy) SetLimit(ctx context.Context, classID, quizID string, limit int) error {
	if limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", domain.ErrInvalidLimit, limit)
	}
	if strings.TrimSpace(quizID) == "" {
		return fmt.Errorf("%w: quiz id is required", domain.ErrInvalidLimit)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	limits, err := readLimits(ctx, p.store)
	if err != nil {
		return err
	}
	limits[domain.LimitKey(classID, quizID)] = limit
	return writeLimits(ctx, p.store, limits)
}

// ClearLimit drops an override so the default applies again.
func (p *Policy) ClearLimit(ctx context.Context, classID, quizID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	limits, err := readLimits(ctx, p.store)
	if err != nil {
		return err
	}
	key := domain.LimitKey(classID, quizID)
	if _, ok := limits[key]; !ok {
		return nil
	}
	delete(limits, key)
	return writeLimits(ctx, p.store, limits)
}

// Overrides lists every explicit limit.
func (p *Policy) Overrides(ctx context.Context) ([]domain.LimitOverride, error) {
	limits, err := readLimits(ctx, p.store)
	if err != nil {
		return nil, err
	}
	out := make([]domain.LimitOverride, 0, len(limits))
	for key, limit := range limits {
		classID, quizID, _ := strings.Cut(key, "_")
		out = append(out, domain.LimitOverride{ClassID: classID, QuizID: quizID, Limit: limit})
	}
	return out, nil
}

// CanAttempt counts every stored ledger row for the student and quiz, hidden and
// unreadable ones included.
func (p *Policy) CanAttempt(ctx context.Context, studentID, classID, quizID string) (domain.Allowance, error) {
	used, err := p.ledger.AttemptCount(ctx, studentID, quizID)
	if err != nil {
		return domain.Allowance{}, err
	}
	limit, err := p.LimitFor(ctx, classID, quizID)
	if err != nil {
		return domain.Allowance{}, err
	}
	return domain.Allowance{Allowed: used < limit, Used: used, Limit: limit}, nil
}
