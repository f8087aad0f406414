// Package bootstrap loads configuration, builds the logger and owns the
// shared resources every binary opens, closing them in reverse order.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/placemates-backend/pkg/config"
	"github.com/angelmondragon/placemates-backend/pkg/db"
	"github.com/angelmondragon/placemates-backend/pkg/logger"
	"github.com/angelmondragon/placemates-backend/pkg/metrics"
	"github.com/angelmondragon/placemates-backend/pkg/migrate"
	"github.com/angelmondragon/placemates-backend/pkg/pubsub"
	"github.com/angelmondragon/placemates-backend/pkg/redis"
	"github.com/angelmondragon/placemates-backend/pkg/storage/gcs"
)

type resource struct {
	name  string
	close func() error
}

// Process is one running binary.
type Process struct {
	Kind     string
	Instance string
	Config   *config.Config
	Logger   *logger.Logger

	open []resource
}

// Start reads .env when present, loads config and builds the service logger.
func Start(kind string) (*Process, error) {
	early := logger.New(logger.Options{ServiceName: kind})
	if err := godotenv.Load(); err != nil {
		early.Debug(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return FromConfig(kind, cfg), nil
}

// FromConfig builds a Process around an already loaded config.
func FromConfig(kind string, cfg *config.Config) *Process {
	cfg.Service.Kind = kind
	return &Process{
		Kind:     kind,
		Instance: currentInstance(),
		Config:   cfg,
		Logger: logger.New(logger.Options{
			ServiceName: kind,
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			Format:      cfg.App.LogFormat,
			WarnStack:   cfg.App.LogWarnStack,
		}),
	}
}

// Own registers closeFn to run when the process shuts down.
func (p *Process) Own(name string, closeFn func() error) {
	p.open = append(p.open, resource{name: name, close: closeFn})
}

// Close releases owned resources last-opened first and reports every failure.
func (p *Process) Close() error {
	var errs error
	for i := len(p.open) - 1; i >= 0; i-- {
		res := p.open[i]
		if err := res.close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close %s: %w", res.name, err))
		}
	}
	p.open = nil
	return errs
}

// Database connects and, in dev, applies pending migrations.
func (p *Process) Database(ctx context.Context) (*db.Client, error) {
	client, err := db.New(ctx, p.Config.DB, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	p.Own("database", client.Close)
	if err := migrate.MaybeRunDev(ctx, p.Config, p.Logger, client); err != nil {
		return nil, fmt.Errorf("dev migrations: %w", err)
	}
	return client, nil
}

func (p *Process) Redis(ctx context.Context) (*redis.Client, error) {
	client, err := redis.New(ctx, p.Config.Redis, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	p.Own("redis", client.Close)
	return client, nil
}

func (p *Process) Storage(ctx context.Context) (*gcs.Client, error) {
	client, err := gcs.NewClient(ctx, p.Config.GCS, p.Config.GCP, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("gcs: %w", err)
	}
	p.Own("gcs", client.Close)
	return client, nil
}

// PubSub connects and verifies that every resource in needs exists.
func (p *Process) PubSub(ctx context.Context, needs ...pubsub.Resource) (*pubsub.Client, error) {
	client, err := pubsub.NewClient(ctx, p.Config.GCP, p.Config.PubSub, p.Logger, needs...)
	if err != nil {
		return nil, fmt.Errorf("pubsub: %w", err)
	}
	p.Own("pubsub", client.Close)
	return client, nil
}

// Main starts kind, runs fn until SIGINT or SIGTERM and exits non-zero when
// fn fails for any reason other than shutdown.
func Main(kind string, fn func(ctx context.Context, p *Process) error) {
	p, err := Start(kind)
	if err != nil {
		logger.New(logger.Options{ServiceName: kind}).Error(context.Background(), "startup failed", err)
		os.Exit(1)
	}
	os.Exit(p.run(fn))
}

func (p *Process) run(fn func(ctx context.Context, p *Process) error) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = p.Logger.WithFields(ctx, map[string]any{
		"env":         p.Config.App.Env,
		"serviceKind": p.Kind,
		"instance":    p.Instance,
	})

	code := 0
	if err := fn(ctx, p); err != nil && !errors.Is(err, context.Canceled) {
		p.Logger.Error(ctx, p.Kind+" stopped unexpectedly", err)
		code = 1
	}
	if err := p.Close(); err != nil {
		p.Logger.Error(ctx, "shutdown left resources open", err)
	}
	if code == 0 {
		p.Logger.Info(ctx, p.Kind+" shut down")
	}
	return code
}

// ServeMetrics exposes the default gatherer on the worker metrics address,
// when one is configured, until ctx ends.
func (p *Process) ServeMetrics(ctx context.Context) {
	addr := p.Config.Service.MetricsAddr
	if addr == "" {
		return
	}
	go func() {
		if err := metrics.Serve(ctx, addr, prometheus.DefaultGatherer); err != nil {
			p.Logger.Error(ctx, "worker metrics listener stopped", err)
		}
	}()
}
