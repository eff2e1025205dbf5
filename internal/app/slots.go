package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	"studyquiz-sync/internal/domain"
)

// RecordStore abstracts the durable named-slot storage (in-memory, Redis, etc).
// Each slot holds one JSON document.
type RecordStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

const (
	ledgerSlot        = "quiz_scores"
	ledgerBackupSlot  = "quiz_scores_unreadable"
	hiddenSlotPrefix  = "hidden_scores_"
	limitsSlot        = "quiz_attempt_limits"
	currentStudentKey = "current_student"
	quizDraftKey      = "current_quiz_draft"
)

func hiddenSlot(studentID string) string {
	return hiddenSlotPrefix + studentID
}

// ledgerEntry is one element of the ledger slot. raw is what the store holds and is
// written back untouched; entries that fail to decode or validate stay in the slot
// but never reach readers.
type ledgerEntry struct {
	raw       json.RawMessage
	record    domain.AttemptRecord
	valid     bool
	studentID string
	quizID    string
}

// ledgerDoc is the parsed ledger slot. unreadable holds a slot that is not a JSON
// array at all; it is moved aside on the next write.
type ledgerDoc struct {
	entries    []ledgerEntry
	unreadable []byte
}

func (d *ledgerDoc) records() []domain.AttemptRecord {
	out := make([]domain.AttemptRecord, 0, len(d.entries))
	for _, e := range d.entries {
		if e.valid {
			out = append(out, e.record)
		}
	}
	return out
}

// attempts counts every stored row for the student and quiz, including rows that
// no longer pass validation.
func (d *ledgerDoc) attempts(studentID, quizID string) int {
	n := 0
	for _, e := range d.entries {
		if e.studentID == studentID && e.quizID == quizID {
			n++
		}
	}
	return n
}

func (d *ledgerDoc) append(record domain.AttemptRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode attempt: %w", err)
	}
	d.entries = append(d.entries, ledgerEntry{
		raw:       raw,
		record:    record,
		valid:     true,
		studentID: record.StudentID,
		quizID:    record.QuizID,
	})
	return nil
}

// remove drops the valid record with recordID and reports it.
func (d *ledgerDoc) remove(recordID string) (domain.AttemptRecord, bool) {
	for i, e := range d.entries {
		if e.valid && e.record.ID == recordID {
			d.entries = append(d.entries[:i], d.entries[i+1:]...)
			return e.record, true
		}
	}
	return domain.AttemptRecord{}, false
}

// loadLedger decodes the ledger slot one entry at a time so a single corrupt
// record does not poison the rest.
func loadLedger(ctx context.Context, store RecordStore) (*ledgerDoc, error) {
	doc := &ledgerDoc{}
	raw, ok, err := store.Get(ctx, ledgerSlot)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	if !ok || len(raw) == 0 {
		return doc, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		logrus.WithError(err).Warn("ledger slot is not a JSON array, treating as empty")
		doc.unreadable = raw
		return doc, nil
	}

	doc.entries = make([]ledgerEntry, 0, len(entries))
	for i, raw := range entries {
		entry := ledgerEntry{raw: raw}
		var key struct {
			StudentID string `json:"studentId"`
			QuizID    string `json:"quizId"`
		}
		if json.Unmarshal(raw, &key) == nil {
			entry.studentID, entry.quizID = key.StudentID, key.QuizID
		}

		var rec domain.AttemptRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			logrus.WithFields(logrus.Fields{"index": i, "error": err}).Warn("skipping undecodable ledger entry")
		} else if err := rec.Validate(); err != nil {
			logrus.WithFields(logrus.Fields{"index": i, "recordId": rec.ID, "error": err}).Warn("skipping invalid ledger entry")
		} else {
			entry.record, entry.valid = rec, true
		}
		doc.entries = append(doc.entries, entry)
	}
	return doc, nil
}

func readLedger(ctx context.Context, store RecordStore) ([]domain.AttemptRecord, error) {
	doc, err := loadLedger(ctx, store)
	if err != nil {
		return nil, err
	}
	return doc.records(), nil
}

// saveLedger writes every entry back with its stored bytes. An unreadable slot is
// copied to ledgerBackupSlot first so the rewrite never loses data.
func saveLedger(ctx context.Context, store RecordStore, doc *ledgerDoc) error {
	if doc.unreadable != nil {
		if err := store.Put(ctx, ledgerBackupSlot, doc.unreadable); err != nil {
			return fmt.Errorf("back up unreadable ledger: %w", err)
		}
		logrus.WithField("slot", ledgerBackupSlot).Warn("unreadable ledger moved aside")
		doc.unreadable = nil
	}

	// joined by hand: json.Marshal would compact and re-escape the stored rows
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, e := range doc.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(e.raw)
	}
	buf.WriteByte(']')
	if err := store.Put(ctx, ledgerSlot, buf.Bytes()); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	return nil
}

func readHidden(ctx context.Context, store RecordStore, studentID string) (map[string]struct{}, error) {
	hidden := make(map[string]struct{})
	raw, ok, err := store.Get(ctx, hiddenSlot(studentID))
	if err != nil {
		return nil, fmt.Errorf("read hidden set: %w", err)
	}
	if !ok || len(raw) == 0 {
		return hidden, nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		logrus.WithFields(logrus.Fields{"studentId": studentID, "error": err}).Warn("hidden set is corrupt, resetting")
		return hidden, nil
	}
	for _, id := range ids {
		hidden[id] = struct{}{}
	}
	return hidden, nil
}

func writeHidden(ctx context.Context, store RecordStore, studentID string, hidden map[string]struct{}) error {
	ids := make([]string, 0, len(hidden))
	for id := range hidden {
		ids = append(ids, id)
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode hidden set: %w", err)
	}
	return store.Put(ctx, hiddenSlot(studentID), data)
}

func readLimits(ctx context.Context, store RecordStore) (map[string]int, error) {
	limits := make(map[string]int)
	raw, ok, err := store.Get(ctx, limitsSlot)
	if err != nil {
		return nil, fmt.Errorf("read limits: %w", err)
	}
	if !ok || len(raw) == 0 {
		return limits, nil
	}
	if err := json.Unmarshal(raw, &limits); err != nil {
		logrus.WithError(err).Warn("attempt limit overrides are corrupt, using defaults")
		return make(map[string]int), nil
	}
	for key, limit := range limits {
		if limit <= 0 {
			delete(limits, key)
		}
	}
	return limits, nil
}

func writeLimits(ctx context.Context, store RecordStore, limits map[string]int) error {
	data, err := json.Marshal(limits)
	if err != nil {
		return fmt.Errorf("encode limits: %w", err)
	}
	return store.Put(ctx, limitsSlot, data)
}
