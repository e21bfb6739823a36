// Package main runs the reddit live thread notification service.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"reddit-live/config"
	"reddit-live/email"
	"reddit-live/poll"
	"reddit-live/server"
	"reddit-live/session"
	substore "reddit-live/storage"
)

func main() {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Getenv("CONFIG_FILE")); err != nil {
		slog.Error("Service failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg, os.Stdout)
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	httpClient, err := session.NewHTTPClient(ctx, cfg.Reddit.Credentials())
	if err != nil {
		return fmt.Errorf("create reddit http client: %w", err)
	}
	client := session.New(httpClient, cfg.Reddit.Session(), logger, session.NewMetrics(reg))
	source := poll.NewRedditSource(client, cfg.Poll.MaxScan, logger)

	store, closeStore, err := newStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	provider, err := newEmailProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}
	sender := email.New(provider, logger, cfg.Server.BaseURL)

	monitor := poll.New(source, store, sender, logger)
	monitor.SetTransientCheck(session.IsTransient)

	srv := server.New(&server.Config{
		Source:          source,
		Store:           store,
		Emailer:         sender,
		Poller:          monitor,
		Logger:          logger,
		IsForbidden:     session.IsForbidden,
		IsThreadMissing: session.IsNotFound,
		IsNotFound:      substore.IsNotFound,
		Registry:        reg,
	})

	if cfg.Poll.Interval > 0 {
		go pollLoop(ctx, monitor, cfg.Poll.Interval, logger)
	}

	logger.Info("Service configured",
		"local", cfg.Local(),
		"email_provider", cfg.Email.Provider,
		"base_url", cfg.Server.BaseURL,
		"poll_interval", cfg.Poll.Interval.String())

	return srv.Run(ctx, cfg.Server.Port)
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Log.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func newStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*substore.Store, func(), error) {
	salt := []byte(cfg.Storage.Salt.Value())

	if cfg.Local() {
		logger.Info("Running in local development mode", "storage_path", cfg.Storage.LocalPath)
		if err := os.MkdirAll(cfg.Storage.LocalPath, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create local storage directory: %w", err)
		}
		return substore.New(nil, "", cfg.Storage.LocalPath, salt, logger), func() {}, nil
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize storage client: %w", err)
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close storage client", "error", err)
		}
	}
	return substore.New(client, cfg.Storage.Bucket, "", salt, logger), closeFn, nil
}

func newEmailProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (email.Provider, error) {
	switch cfg.Email.Provider {
	case config.ProviderBrevo:
		return email.NewBrevoProvider(cfg.Email.BrevoAPIKey.Value(), cfg.Email.FromAddr, cfg.Email.FromName, logger), nil
	case config.ProviderGmail:
		svc, err := initGmailService(ctx, cfg.Email.GoogleCredentialsJSON.Value())
		if err != nil {
			if cfg.Local() {
				logger.Warn("Failed to initialize Gmail service, using mock email", "error", err)
				return email.NewMockProvider(logger), nil
			}
			return nil, fmt.Errorf("initialize gmail service: %w", err)
		}
		return email.NewGmailProvider(svc, logger), nil
	default:
		logger.Info("Mock email mode enabled")
		return email.NewMockProvider(logger), nil
	}
}

func initGmailService(ctx context.Context, credsJSON string) (*gmail.Service, error) {
	if credsJSON != "" {
		return gmail.NewService(ctx, option.WithCredentialsJSON([]byte(credsJSON)))
	}

	// Cloud Run provides Application Default Credentials for the service
	// account, which needs the gmail.send scope.
	if isCloudRun(ctx) {
		return gmail.NewService(ctx)
	}

	return nil, errors.New("email.google_credentials_json required when not running in Cloud Run")
}

// isCloudRun checks if we're running in a GCP environment by querying the metadata server.
func isCloudRun(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://metadata.google.internal/computeMetadata/v1/project/project-id", http.NoBody)
	if err != nil {
		return false
	}
	req.Header.Set("Metadata-Flavor", "Google")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	return resp.StatusCode == http.StatusOK
}

type checker interface {
	CheckAll(ctx context.Context) error
}

// pollLoop runs CheckAll now and then every interval until ctx is canceled.
// Deployments that trigger /pollz from a scheduler leave the interval at zero.
func pollLoop(ctx context.Context, c checker, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := c.CheckAll(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Scheduled poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
