package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"studyquiz-sync/internal/app"
	"studyquiz-sync/internal/config"
	"studyquiz-sync/internal/domain"
	"studyquiz-sync/internal/infra/memory"
	"studyquiz-sync/internal/infra/postgres"
	transport "studyquiz-sync/internal/transport/http"
)

const defaultRetention = 30 * 24 * time.Hour

// NewServeCmd builds the CLI subcommand that runs the remote quiz-result store.
func NewServeCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Start the remote quiz-result store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath, *port)
		},
	}
}

func runServe(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	retention := config.RetentionDuration(cfg.Quiz.Retention, defaultRetention)

	var (
		catalog app.QuizCatalog
		results app.ResultStore
	)
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		catalog = postgres.NewQuizCatalog(pool, retention)
		results = postgres.NewResultStore(pool)
	} else {
		mem := memory.NewQuizCatalog(retention)
		for _, quiz := range sampleQuizzes() {
			if err := mem.Save(ctx, quiz); err != nil {
				return err
			}
		}
		catalog = mem
		results = memory.NewResultStore()
		logrus.Warn("postgres url not configured; quizzes and results are kept in memory")
	}

	api := transport.NewAPI(app.NewResultService(catalog, results))
	return listenAndServe(ctx, resolvePort(portFlag, cfg.Server.Port, "8080"), api.Routes(), "quiz-result store")
}

func resolvePort(flag, configured, fallback string) string {
	if flag != "" {
		return flag
	}
	if configured != "" {
		return configured
	}
	return fallback
}

// listenAndServe runs handler until SIGINT/SIGTERM or ctx cancellation, then shuts down gracefully.
func listenAndServe(ctx context.Context, port string, handler http.Handler, name string) error {
	server := &http.Server{
		Addr:        ":" + port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		logrus.WithField("port", port).Infof("starting %s", name)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
		logrus.Info("shutting down server...")
	case <-ctx.Done():
		logrus.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes seeds the in-memory store so a fresh server has something to serve.
func sampleQuizzes() map[string]domain.Quiz {
	now := time.Now().UTC()
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "Warm-up",
			Questions: []domain.Question{
				{Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5"}, Correct: "4"},
				{Prompt: "Which planet is closest to the sun?", Options: []string{"Venus", "Mercury", "Mars"}, Correct: "Mercury"},
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}
