package cli

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"studyquiz-sync/internal/app"
	"studyquiz-sync/internal/config"
	"studyquiz-sync/internal/infra/memory"
	redisinfra "studyquiz-sync/internal/infra/redis"
	"studyquiz-sync/internal/infra/remote"
	"studyquiz-sync/internal/offline"
	transport "studyquiz-sync/internal/transport/http"
)

// NewAgentCmd builds the subcommand that runs the local study agent.
func NewAgentCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "agent",
		Short: "Start the local study agent (sessions, ledger, attempt limits, offline cache)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd.Context(), *configPath, *port)
		},
	}
}

func runAgent(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var (
		records   app.RecordStore
		responses offline.Storage
	)
	switch cfg.Local.Store {
	case "redis":
		if redisClient == nil {
			return fmt.Errorf("local.store is redis but redis.addr is empty")
		}
		records = redisinfra.NewRecordStore(redisClient, cfg.Local.Prefix)
		responses = redisinfra.NewResponseStore(redisClient)
	case "", "memory":
		records = memory.NewRecordStore()
		responses = offline.NewMemoryStorage()
		logrus.Warn("local store is in memory; attempts are lost on restart")
	default:
		return fmt.Errorf("unknown local.store %q", cfg.Local.Store)
	}

	cache := offline.New(http.DefaultTransport, responses, apiHosts(cfg))
	if cfg.Offline.Version != "" {
		installOfflineCache(ctx, cache, cfg)
	}

	timeout := config.TTLDuration(cfg.Remote.Timeout, 10*time.Second)

	var (
		loader    memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
		pusher    app.ResultPusher
		generator app.QuestionGenerator
	)
	if cfg.Remote.BaseURL != "" {
		client := remote.NewClient(cfg.Remote.BaseURL, cache, timeout)
		loader = client
		pusher = client
	} else {
		logrus.Warn("remote.baseUrl not configured; results stay local")
	}
	if cfg.Remote.GeneratorURL != "" {
		generator = remote.NewGenerator(cfg.Remote.GeneratorURL, cache, timeout).
			SetDocumentURL(cfg.Remote.DocumentGeneratorURL).
			SetMaxQuestions(cfg.Quiz.MaxQuestions)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var sessions app.SessionRepository
	if redisClient != nil {
		sessions = redisinfra.NewSessionStore(redisClient, redisTTL)
	} else {
		sessions = memory.NewSessionStore()
	}

	ledger := app.NewLedger(records)
	policy := app.NewPolicy(records, ledger, cfg.Policy.DefaultLimit)
	reconciler := app.NewReconciler(ledger, pusher, timeout)
	service := app.NewStudyService(sessions, quizRepo, generator, ledger, policy, reconciler)
	agent := transport.NewAgent(service, app.NewProfile(records))

	return listenAndServe(ctx, resolvePort(portFlag, cfg.Server.Port, "8090"), agent.Routes(), "study agent")
}

func installOfflineCache(ctx context.Context, cache *offline.Cache, cfg config.Config) {
	report, err := cache.Install(ctx, offline.Manifest{
		Version:   cfg.Offline.Version,
		Assets:    cfg.Offline.Assets,
		EntryPage: cfg.Offline.EntryPage,
	})
	if err != nil {
		logrus.WithError(err).Warn("offline cache install failed; keeping previous generation")
		return
	}
	if err := cache.Activate(ctx); err != nil {
		logrus.WithError(err).Warn("offline cache activation failed")
		return
	}
	logrus.WithFields(logrus.Fields{
		"generation": report.Generation,
		"cached":     len(report.Cached),
		"failed":     len(report.Failed),
	}).Info("offline cache active")
}

// apiHosts lists the configured API hosts, defaulting to the hosts of the remote URLs.
func apiHosts(cfg config.Config) []string {
	if len(cfg.Offline.APIHosts) > 0 {
		return cfg.Offline.APIHosts
	}
	var hosts []string
	for _, raw := range []string{cfg.Remote.BaseURL, cfg.Remote.GeneratorURL, cfg.Remote.DocumentGeneratorURL} {
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
		}
	}
	return hosts
}
