// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	redis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/meetkit/botd/internal/admission"
	"github.com/meetkit/botd/internal/api"
	"github.com/meetkit/botd/internal/config"
	"github.com/meetkit/botd/internal/domain/session/lifecycle"
	"github.com/meetkit/botd/internal/domain/session/model"
	"github.com/meetkit/botd/internal/domain/session/runner"
	"github.com/meetkit/botd/internal/domain/session/store"
	botdlog "github.com/meetkit/botd/internal/log"
	"github.com/meetkit/botd/internal/notify"
	"github.com/meetkit/botd/internal/provider"
	"github.com/meetkit/botd/internal/queue"
	"github.com/meetkit/botd/internal/storage"
)

var (
	version   = "v0.3.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "botd: %v\n", err)
		os.Exit(1)
	}

	botdlog.Configure(botdlog.Config{Level: cfg.LogLevel, Service: "botd"})
	logger := botdlog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Fatal().Err(err).Msg("daemon failed")
	}
	logger.Info().Msg("daemon stopped")
}

func run(ctx context.Context, cfg config.Config) error {
	logger := botdlog.WithComponent("daemon")
	logger.Info().
		Str("version", version).
		Str("listen", cfg.ListenAddr).
		Str("store", cfg.Store.Backend).
		Str("storage", cfg.Storage.Backend).
		Msg("starting")

	statusStore, err := store.OpenStatusStore(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open status store: %w", err)
	}
	defer func() { _ = statusStore.Close() }()

	uploader, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Root)
	if err != nil {
		return fmt.Errorf("open storage backend: %w", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = redisClient.Close() }()
	}

	var channels []notify.Channel
	if cfg.Notify.WebhookURL != "" {
		channels = append(channels, notify.NewWebhook(cfg.Notify.WebhookURL, cfg.Notify.WebhookSecret))
	}
	if redisClient != nil && len(cfg.Notify.QueueLists) > 0 {
		channels = append(channels, notify.NewQueue(redisClient, cfg.Notify.QueueLists))
	}
	notifier := notify.NewDispatcher(botdlog.WithComponent("notify"), channels...)

	registry := provider.NewRegistry()
	bridgeFactory := provider.NewBridgeFactory(cfg.Bridge.URL)
	for _, p := range []model.Provider{model.ProviderZoom, model.ProviderMeet, model.ProviderTeams} {
		registry.Register(p, bridgeFactory)
	}

	sessionRunner := runner.New(runner.Deps{
		Gate:      admission.NewGate(),
		Providers: registry,
		Uploader:  uploader,
		Notifier:  notifier,
		Store:     statusStore,
	}, runner.Config{
		LobbyWaitCeiling:     cfg.Session.LobbyWaitCeiling.Std(),
		MaxRecordingDuration: cfg.Session.MaxRecordingDuration.Std(),
		StopTimeout:          cfg.Session.StopTimeout.Std(),
		SpoolDir:             cfg.Session.SpoolDir,
		ContentType:          cfg.Session.ContentType,
		RestreamTargetURL:    cfg.Restream.TargetURL,
		RestreamBinPath:      cfg.Restream.BinPath,
		RestreamQuitGrace:    cfg.Restream.QuitGrace.Std(),
		LiveBuffer:           cfg.Restream.Buffer,
		Policy:               lifecycle.NewPolicy(cfg.Session.MaxRetries),
	})

	sessionCtx, cancelSessions := context.WithCancel(context.Background())
	defer cancelSessions()
	manager := runner.NewManager(sessionCtx, sessionRunner)

	srv := api.NewServer(manager, statusStore, cfg.RateLimit, nil).HTTPServer(cfg.ListenAddr)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("http listener up")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if redisClient != nil && cfg.Redis.IngestList != "" {
		consumer := queue.NewConsumer(redisClient, manager, queue.Config{List: cfg.Redis.IngestList})
		g.Go(func() error {
			return consumer.Run(gctx)
		})
	}

	err = g.Wait()

	// Let the in-flight session finish its stop/upload path before the
	// process exits; cancelling sessionCtx would abort the upload.
	logger.Info().Msg("waiting for in-flight session to drain")
	manager.Wait()
	return err
}
