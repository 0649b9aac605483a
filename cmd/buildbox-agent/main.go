package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mtnmerc/buildbox-agent/internal/api"
	"github.com/mtnmerc/buildbox-agent/internal/config"
	"github.com/mtnmerc/buildbox-agent/internal/executor"
	"github.com/mtnmerc/buildbox-agent/internal/ghrepo"
	"github.com/mtnmerc/buildbox-agent/internal/health"
	"github.com/mtnmerc/buildbox-agent/internal/llm"
	"github.com/mtnmerc/buildbox-agent/internal/metrics"
	"github.com/mtnmerc/buildbox-agent/internal/planner"
	"github.com/mtnmerc/buildbox-agent/internal/session"
	"github.com/mtnmerc/buildbox-agent/internal/store"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("listen_addr", cfg.ListenAddr).
		Bool("completion_enabled", cfg.CompletionEnabled()).
		Bool("github_enabled", cfg.GitHubEnabled()).
		Msg("starting buildbox agent")

	if !cfg.CompletionEnabled() {
		logger.Fatal().Msg("ANTHROPIC_API_KEY is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	m := metrics.New()
	checker := health.NewChecker(logger)

	db, err := store.New(cfg.SessionDBPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open session store")
	}
	defer db.Close()
	checker.Register("store", func(ctx context.Context) health.Status {
		if _, err := db.ListSessions(ctx); err != nil {
			return health.StatusDown
		}
		return health.StatusOK
	})

	provider := llm.NewAnthropicProvider(cfg.AnthropicAPIKey, logger,
		llm.WithModel(cfg.CompletionModel),
		llm.WithMaxTokens(cfg.MaxTokens),
		llm.WithTimeout(cfg.CompletionTimeout),
	)

	plans := planner.New(provider, m, cfg.CompletionTimeout, logger)
	exec := executor.New(m, logger)
	sessions := session.NewManager(db, db, m, cfg.SessionTTL, logger)
	if _, err := sessions.Restore(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to restore persisted sessions")
	}

	var repo api.RepoService
	if cfg.GitHubEnabled() {
		ghClient, ghErr := ghrepo.New(cfg, m, logger)
		if ghErr != nil {
			logger.Fatal().Err(ghErr).Msg("failed to init GitHub client")
		}
		repo = ghClient
		logger.Info().Msg("GitHub client initialized")
	} else {
		logger.Info().Msg("GitHub not configured, sessions must be seeded with files")
	}

	// Periodic session sweep
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := sessions.Sweep(ctx); err != nil {
					logger.Warn().Err(err).Msg("session sweep failed")
				}
			}
		}
	}()

	handlers := api.NewHandlers(sessions, plans, exec, repo, checker, api.Defaults{
		Owner:  cfg.DefaultOwner,
		Repo:   cfg.DefaultRepo,
		Branch: cfg.DefaultBranch,
	}, logger)

	server := api.NewServer(api.ServerConfig{
		ListenAddr: cfg.ListenAddr,
		AuthConfig: api.AuthConfig{
			Mode:   cfg.APIAuthMode,
			APIKey: cfg.APIKey,
		},
		RateLimit: api.RateLimitConfig{
			RPS:   cfg.RateLimitRPS,
			Burst: cfg.RateLimitBurst,
		},
		CORSOrigins: cfg.CORSOrigins,
	}, handlers, m.Handler(), logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("api server error")
		}
	}

	cancel()

	if err := server.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("api server shutdown error")
	}
	logger.Info().Msg("buildbox agent stopped")
}
