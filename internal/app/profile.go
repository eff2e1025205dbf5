package app

import (
	"context"
	"encoding/json"
	"fmt"

	"studyquiz-sync/internal/domain"
)

// QuizDraft is a locally authored quiz that has not been published.
type QuizDraft struct {
	Title     string            `json:"title"`
	Questions []domain.Question `json:"questions"`
}

// Profile exposes the per-device slots that sit next to the ledger.
type Profile struct {
	store RecordStore
}

func NewProfile(store RecordStore) *Profile {
	return &Profile{store: store}
}

// CurrentStudent returns the logged-in identity, if any.
func (p *Profile) CurrentStudent(ctx context.Context) (domain.Identity, bool, error) {
	var identity domain.Identity
	ok, err := p.read(ctx, currentStudentKey, &identity)
	if err != nil || !ok {
		return domain.Identity{}, false, err
	}
	if identity.Validate() != nil {
		return domain.Identity{}, false, nil
	}
	return identity, true, nil
}

func (p *Profile) SetCurrentStudent(ctx context.Context, identity domain.Identity) error {
	if err := identity.Validate(); err != nil {
		return err
	}
	return p.write(ctx, currentStudentKey, identity)
}

func (p *Profile) Logout(ctx context.Context) error {
	return p.store.Delete(ctx, currentStudentKey)
}

func (p *Profile) Draft(ctx context.Context) (QuizDraft, bool, error) {
	var draft QuizDraft
	ok, err := p.read(ctx, quizDraftKey, &draft)
	return draft, ok, err
}

func (p *Profile) SaveDraft(ctx context.Context, draft QuizDraft) error {
	return p.write(ctx, quizDraftKey, draft)
}

func (p *Profile) read(ctx context.Context, key string, into any) (bool, error) {
	raw, ok, err := p.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return false, nil
	}
	return true, nil
}

func (p *Profile) write(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return p.store.Put(ctx, key, data)
}
