package config

import (
	"os"
	"time"

	"github.com/peterhellberg/duration"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL          string `yaml:"ttl"`
		Retention    string `yaml:"retention"`
		MaxQuestions int    `yaml:"maxQuestions"`
	} `yaml:"quiz"`
	// Local selects where the agent keeps its record slots: "memory" or "redis".
	Local struct {
		Store  string `yaml:"store"`
		Prefix string `yaml:"prefix"`
	} `yaml:"local"`
	Remote struct {
		BaseURL              string `yaml:"baseUrl"`
		GeneratorURL         string `yaml:"generatorUrl"`
		DocumentGeneratorURL string `yaml:"documentGeneratorUrl"`
		Timeout              string `yaml:"timeout"`
	} `yaml:"remote"`
	Offline struct {
		Version   string   `yaml:"version"`
		Assets    []string `yaml:"assets"`
		APIHosts  []string `yaml:"apiHosts"`
		EntryPage string   `yaml:"entryPage"`
	} `yaml:"offline"`
	Policy struct {
		DefaultLimit int `yaml:"defaultLimit"`
	} `yaml:"policy"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// RetentionDuration is TTLDuration with day and week units ("30d", "2w").
func RetentionDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := duration.Parse(raw); err == nil {
		return d
	}
	return fallback
}
