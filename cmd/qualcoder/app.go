package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360studio/qualcoder/config"
	"github.com/c360studio/qualcoder/llm"
	"github.com/c360studio/qualcoder/metrics"
	"github.com/c360studio/qualcoder/model"
	"github.com/c360studio/qualcoder/storage"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// App wires the optional infrastructure of a command: run persistence,
// metrics and the LLM client.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	registry *model.Registry
	client   *llm.Client

	// NATS
	natsConn *nats.Conn
	store    *storage.Store

	// Metrics
	metrics       *metrics.Recorder
	metricsServer *metrics.Server
}

// NewApp creates a new application instance.
func NewApp(cfg *config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		cfg:      cfg,
		logger:   logger,
		registry: cfg.Registry(),
	}
}

// Start connects to NATS and starts the metrics listener when configured,
// then creates the LLM client.
func (a *App) Start(ctx context.Context) error {
	if a.cfg.NATS.URL != "" {
		if err := a.startStorage(ctx); err != nil {
			return err
		}
	}

	if a.cfg.Metrics.Addr != "" {
		a.metrics = metrics.NewRecorder()
		srv, err := metrics.Listen(a.cfg.Metrics.Addr, a.metrics, a.logger)
		if err != nil {
			return fmt.Errorf("start metrics listener: %w", err)
		}
		a.metricsServer = srv
	}

	opts := []llm.ClientOption{llm.WithLogger(a.logger)}
	if a.store != nil {
		calls, err := a.store.CallStore(llm.WithStoreLogger(a.logger))
		if err != nil {
			return fmt.Errorf("open call store: %w", err)
		}
		opts = append(opts, llm.WithCallStore(calls))
	}
	a.client = llm.NewClient(a.registry, opts...)
	return nil
}

func (a *App) startStorage(ctx context.Context) error {
	a.logger.Debug("Connecting to NATS", "url", a.cfg.NATS.URL)
	conn, err := nats.Connect(a.cfg.NATS.URL, nats.Name(appName))
	if err != nil {
		return fmt.Errorf("connect to NATS at %s: %w", a.cfg.NATS.URL, err)
	}
	a.natsConn = conn

	js, err := jetstream.New(conn)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}

	store, err := storage.NewStore(ctx, js, storage.Config{
		Prefix: a.cfg.NATS.BucketPrefix,
		TTL:    a.cfg.NATS.TTL,
	})
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	a.store = store
	return nil
}

// requireStore fails when persistence is not configured.
func (a *App) requireStore() (*storage.Store, error) {
	if a.store == nil {
		return nil, fmt.Errorf("run storage requires nats.url (config or --nats-url)")
	}
	return a.store, nil
}

// Close stops the metrics listener and drains the NATS connection.
func (a *App) Close() {
	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.logger.Warn("Metrics listener shutdown failed", "error", err)
		}
		cancel()
	}
	if a.natsConn != nil {
		if err := a.natsConn.Drain(); err != nil {
			a.natsConn.Close()
		}
	}
}

// loadConfig loads the layered configuration.
func loadConfig(opts *globalOptions) (*config.Config, error) {
	cfg, err := config.NewLoader(slog.Default()).Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
