package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rewired-gh/placardwatch/internal/analytics"
	"github.com/rewired-gh/placardwatch/internal/commands"
	"github.com/rewired-gh/placardwatch/internal/config"
	"github.com/rewired-gh/placardwatch/internal/httpapi"
	"github.com/rewired-gh/placardwatch/internal/logger"
	"github.com/rewired-gh/placardwatch/internal/metrics"
	"github.com/rewired-gh/placardwatch/internal/notify"
	"github.com/rewired-gh/placardwatch/internal/poller"
	"github.com/rewired-gh/placardwatch/internal/storage"
	"github.com/rewired-gh/placardwatch/internal/subscription"
	"github.com/rewired-gh/placardwatch/internal/telegram"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

// logSender stands in for Telegram when it is disabled.
type logSender struct{}

func (logSender) SendText(_ context.Context, chatID int64, text string) error {
	logger.Info("Notification for chat %d:\n%s", chatID, text)
	return nil
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	recorder := metrics.New()
	queries := analytics.New(store, analytics.WithRecorder(recorder))
	subs := subscription.New(store)

	var telegramClient *telegram.Client
	var sender notify.Sender = logSender{}
	watcherOpts := []poller.WatcherOption{poller.WithRecorder(recorder)}
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.AdminIDs, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		sender = telegramClient
		watcherOpts = append(watcherOpts, poller.WithAlerter(telegramClient))
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram disabled, notifications are logged")
	}

	dispatcher := notify.NewDispatcher(subs, sender, recorder)
	watcher := poller.NewWatcher(poller.New(store, dispatcher), watcherOpts...)
	if err := watcher.Init(ctx); err != nil {
		logger.Fatal("Failed to start poller: %v", err)
	}

	scheduler, err := poller.Schedule(ctx, watcher, cfg.Poller.Interval, cfg.Poller.FirstRunDelay)
	if err != nil {
		logger.Fatal("Failed to schedule poller: %v", err)
	}

	if telegramClient != nil {
		router := commands.NewRouter(queries, subs, cfg.Telegram.IsAdmin)
		telegramClient.ListenForCommands(ctx, router)
		logger.Info("Listening for bot commands")
	}

	var server *httpapi.Server
	if cfg.HTTP.Enabled {
		server = httpapi.New(cfg.HTTP.Addr, store, watcher, recorder.Registry())
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("HTTP server failed: %v", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received, cleaning up...")
	cancel()
	scheduler.Stop()
	if server != nil {
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Warn("Failed to shut down HTTP server: %v", err)
		}
	}
	logger.Info("Service stopped")
}

func openStorage(ctx context.Context, cfg config.StorageConfig) (*storage.Storage, error) {
	if cfg.Driver == storage.DriverSQLite {
		logger.Info("Opening SQLite database %s", cfg.DBPath)
		return storage.New(cfg.DBPath)
	}
	logger.Info("Connecting to PostgreSQL at %s:%d/%s", cfg.Host, cfg.Port, cfg.Name)
	return storage.NewPostgres(ctx, storage.PostgresConfig{
		Host:         cfg.Host,
		Port:         cfg.Port,
		User:         cfg.User,
		Password:     cfg.Password,
		Name:         cfg.Name,
		SSLMode:      cfg.SSLMode,
		MaxOpenConns: cfg.MaxOpenConns,
	})
}
