package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"studyquiz-sync/internal/offline"
)

// ResponseStore keeps offline cache generations as Redis hashes:
// offline:{generation} -> field url -> JSON entry.
type ResponseStore struct {
	client *redis.Client
}

func NewResponseStore(client *redis.Client) *ResponseStore {
	return &ResponseStore{client: client}
}

func (s *ResponseStore) Get(ctx context.Context, generation, url string) (offline.Entry, bool, error) {
	raw, err := s.client.HGet(ctx, s.key(generation), url).Bytes()
	if errors.Is(err, redis.Nil) {
		return offline.Entry{}, false, nil
	}
	if err != nil {
		return offline.Entry{}, false, fmt.Errorf("get cached response: %w", err)
	}
	var entry offline.Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		logrus.WithFields(logrus.Fields{"generation": generation, "url": url, "error": err}).Warn("skipping undecodable cached response")
		return offline.Entry{}, false, nil
	}
	return entry, true, nil
}

func (s *ResponseStore) Put(ctx context.Context, generation, url string, entry offline.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cached response: %w", err)
	}
	if err := s.client.HSet(ctx, s.key(generation), url, data).Err(); err != nil {
		return fmt.Errorf("put cached response: %w", err)
	}
	return nil
}

func (s *ResponseStore) Generations(ctx context.Context) ([]string, error) {
	var out []string
	iter := s.client.Scan(ctx, 0, "offline:*", 100).Iterator()
	for iter.Next(ctx) {
		out = append(out, strings.TrimPrefix(iter.Val(), "offline:"))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan generations: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

func (s *ResponseStore) DropGeneration(ctx context.Context, generation string) error {
	return s.client.Del(ctx, s.key(generation)).Err()
}

func (s *ResponseStore) key(generation string) string {
	return "offline:" + generation
}
