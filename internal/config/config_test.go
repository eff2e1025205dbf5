package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadReadsEverySection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
server:
  port: "9090"
redis:
  addr: localhost:6379
quiz:
  ttl: 5m
  retention: 30d
  maxQuestions: 12
local:
  store: redis
  prefix: "device:"
remote:
  baseUrl: https://quiz.example.test
  timeout: 3s
offline:
  version: v7
  entryPage: /index.html
  assets: [/index.html, /app.js]
  apiHosts: [quiz.example.test]
policy:
  defaultLimit: 4
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Local.Store != "redis" || cfg.Local.Prefix != "device:" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Remote.BaseURL != "https://quiz.example.test" || len(cfg.Offline.Assets) != 2 || cfg.Offline.APIHosts[0] != "quiz.example.test" {
		t.Fatalf("unexpected remote/offline config %+v", cfg)
	}
	if cfg.Policy.DefaultLimit != 4 || cfg.Offline.Version != "v7" || cfg.Quiz.MaxQuestions != 12 {
		t.Fatalf("unexpected policy/offline config %+v", cfg)
	}
	if got := RetentionDuration(cfg.Quiz.Retention, 0); got != 30*24*time.Hour {
		t.Fatalf("expected 30 days, got %s", got)
	}
}

func TestDurations(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %s", got)
	}
	if got := TTLDuration("nonsense", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for bad input, got %s", got)
	}
	if got := TTLDuration("90s", time.Minute); got != 90*time.Second {
		t.Fatalf("expected 90s, got %s", got)
	}
	if got := RetentionDuration("2w", time.Hour); got != 14*24*time.Hour {
		t.Fatalf("expected two weeks, got %s", got)
	}
	if got := RetentionDuration("", time.Hour); got != time.Hour {
		t.Fatalf("expected fallback, got %s", got)
	}
}
