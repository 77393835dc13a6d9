package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/stagetrack/stagetrack/internal/config"
	"github.com/stagetrack/stagetrack/internal/eventbus"
	"github.com/stagetrack/stagetrack/internal/notification"
	pushsubrepo "github.com/stagetrack/stagetrack/internal/pushsubscription/repositoryimpl"
	"github.com/stagetrack/stagetrack/internal/registry"
	"github.com/stagetrack/stagetrack/internal/server"
	"github.com/stagetrack/stagetrack/pkg/clog"
	"github.com/stagetrack/stagetrack/pkg/storage"
)

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}

	// Setup logger
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewTextHandler(os.Stderr, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	// Setup storage
	var (
		store      storage.Storage
		localStore *storage.LocalStorage
	)
	switch env.StorageEnv.Type {
	case "s3":
		store, err = storage.NewS3Storage(context.Background(), env.StorageEnv.S3Bucket, env.StorageEnv.S3Prefix, env.StorageEnv.S3Region)
		if err != nil {
			slog.Error("failed to create S3 storage", "error", err)
			os.Exit(1)
		}
	default:
		localStore, err = storage.NewLocalStorage(env.StorageEnv.BaseDir)
		if err != nil {
			slog.Error("failed to create local storage", "error", err)
			os.Exit(1)
		}
		store = localStore
	}

	// Setup event bus and registry
	bus := eventbus.New()
	reg := registry.New(store, bus, env.StorageEnv.SnapshotFile)
	if err := reg.Load(context.Background()); err != nil {
		slog.Error("failed to load registry", "error", err)
		os.Exit(1)
	}

	// Setup notification channels
	settings := notification.NewSettingsStore(store, env.NotifyEnv.SettingsFile)
	if err := settings.Load(context.Background()); err != nil {
		slog.Error("failed to load notification settings", "error", err)
		os.Exit(1)
	}

	pushSubRepo := pushsubrepo.NewYAMLRepository(store)
	vapidEnv := config.VAPIDEnvFromEnv(env)
	pushSender := notification.NewPushSender(vapidEnv, pushSubRepo)

	var telegramSender *notification.TelegramSender
	if env.NotifyEnv.TelegramToken != "" {
		telegramSender, err = notification.NewTelegramSender(env.NotifyEnv.TelegramToken)
		if err != nil {
			slog.Error("failed to create telegram sender", "error", err)
			os.Exit(1)
		}
	}

	notifier := notification.NewNotifier(settings, pushSender, telegramSender)
	dispatcher := notification.NewDispatcher(bus, notifier)
	deadlineChecker := notification.NewDeadlineChecker(reg, bus, settings)

	srv := server.NewServer(env, reg, settings, notifier, pushSubRepo)

	// Graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	go dispatcher.Start(ctx)

	// Deadline sweep: once at startup, then on schedule.
	deadlineChecker.Check(ctx)
	sched := cron.New()
	if _, err := sched.AddFunc(env.NotifyEnv.DeadlineCron, func() { deadlineChecker.Check(ctx) }); err != nil {
		slog.Error("invalid deadline cron spec", "spec", env.NotifyEnv.DeadlineCron, "error", err)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	if localStore != nil {
		if err := server.WatchSnapshot(ctx, localStore, env.StorageEnv.SnapshotFile, reg); err != nil {
			slog.Warn("failed to watch snapshot file", "error", err)
		}
	}

	go func() {
		if err := srv.ListenAndServe(ctx); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
