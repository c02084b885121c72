package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/thedatamonk/spendly/internal/api"
	"github.com/thedatamonk/spendly/internal/bot"
	"github.com/thedatamonk/spendly/internal/config"
	"github.com/thedatamonk/spendly/internal/engine"
	"github.com/thedatamonk/spendly/internal/metrics"
	"github.com/thedatamonk/spendly/internal/session"
	"github.com/thedatamonk/spendly/internal/transcribe"
	"github.com/thedatamonk/spendly/internal/translator"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Discord bot and the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	store, closeStore, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	sessions, closeSessions, err := openSessions(ctx)
	if err != nil {
		return err
	}
	defer closeSessions()

	tr := translator.New(translator.NewClient(cfg.OpenRouterAPIKey, cfg.LLMBaseURL), cfg.LLMModel, logger.Named("translator"))
	eng := engine.New(tr, store, session.NewManager(sessions), logger.Named("engine"))

	g, ctx := errgroup.WithContext(ctx)

	server := api.New(cfg.WebBind, store, tr, logger.Named("api"))
	g.Go(func() error {
		return server.Start(ctx)
	})

	if cfg.DiscordToken == "" {
		logger.Warn("DISCORD_TOKEN not set, running the API only")
	} else {
		var voice *transcribe.Client
		if cfg.OpenAIAPIKey != "" {
			voice = transcribe.NewClient(cfg.OpenAIAPIKey)
		} else {
			logger.Warn("OPENAI_API_KEY not set, voice notes are disabled")
		}
		discordBot, err := bot.New(cfg.DiscordToken, eng, store, voice, logger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return discordBot.Run(ctx)
		})
	}

	err = g.Wait()
	logger.Info("Shutting down...")
	return err
}

func openSessions(ctx context.Context) (session.Store, func(), error) {
	switch cfg.SessionBackend {
	case config.SessionRedis:
		client, err := session.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using redis session store", zap.Duration("ttl", cfg.SessionTTL))
		return session.NewRedisStore(client, "", cfg.SessionTTL), func() { _ = client.Close() }, nil
	case config.SessionMemory:
		return session.NewMemoryStore(cfg.SessionTTL), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
}
