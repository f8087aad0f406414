package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/placemates-backend/api/controllers"
	"github.com/angelmondragon/placemates-backend/api/routes"
	"github.com/angelmondragon/placemates-backend/internal/membership"
	"github.com/angelmondragon/placemates-backend/internal/places"
	"github.com/angelmondragon/placemates-backend/internal/scores"
	"github.com/angelmondragon/placemates-backend/internal/users"
	"github.com/angelmondragon/placemates-backend/pkg/bootstrap"
	"github.com/angelmondragon/placemates-backend/pkg/logger"
	"github.com/angelmondragon/placemates-backend/pkg/maps"
	"github.com/angelmondragon/placemates-backend/pkg/metrics"
	"github.com/angelmondragon/placemates-backend/pkg/outbox"
)

const shutdownTimeout = 15 * time.Second

func main() {
	bootstrap.Main("api", run)
}

func run(ctx context.Context, p *bootstrap.Process) error {
	cfg, logg := p.Config, p.Logger

	dbClient, err := p.Database(ctx)
	if err != nil {
		return err
	}
	redisClient, err := p.Redis(ctx)
	if err != nil {
		return err
	}
	gcsClient, err := p.Storage(ctx)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	engineMetrics := metrics.NewEngineMetrics(registry)

	userRepo := users.NewRepository(dbClient.DB())
	placeRepo := places.NewRepository(dbClient.DB())

	userService, err := users.NewService(userRepo, logg)
	if err != nil {
		return fmt.Errorf("users service: %w", err)
	}

	scoreService, err := scores.NewService(userRepo, logg, engineMetrics, cfg.Engine.FanOutLimit)
	if err != nil {
		return fmt.Errorf("scores service: %w", err)
	}

	membershipService, err := membership.NewService(userRepo, placeRepo, logg, engineMetrics)
	if err != nil {
		return fmt.Errorf("membership service: %w", err)
	}

	placeParams := places.ServiceParams{
		Logger:      logg,
		Metrics:     engineMetrics,
		Store:       placeRepo,
		Tx:          dbClient,
		Outbox:      outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		Blobs:       gcsClient,
		Scores:      scoreService,
		Fetcher:     places.NewRefFetcher(gcsClient, cfg.Engine.LocalImageRoot, cfg.Engine.MaxImageBytes(), cfg.Engine.FetchTimeout),
		FanOutLimit: cfg.Engine.FanOutLimit,
		UploadLimit: cfg.Engine.UploadConcurrency,
	}
	if cfg.FeatureFlags.Geocoding && strings.TrimSpace(cfg.GoogleMaps.APIKey) != "" {
		geocoder, err := maps.NewClient(cfg.GoogleMaps.APIKey)
		if err != nil {
			return fmt.Errorf("geocoder: %w", err)
		}
		placeParams.Geocoder = geocoder
	}
	placeService, err := places.NewService(placeParams)
	if err != nil {
		return fmt.Errorf("places service: %w", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithField(ctx, "addr", addr)

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Dependencies{
			Config:   cfg,
			Logger:   logg,
			Gatherer: registry,
			Readiness: []controllers.ReadinessCheck{
				{Name: "database", Pinger: dbClient},
				{Name: "redis", Pinger: redisClient},
				{Name: "storage", Pinger: gcsClient},
			},
			Idempotent: redisClient,
			Users:      userService,
			Places:     placeService,
			Membership: membershipService,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serve(ctx, logg, server)
}

// serve blocks until ctx ends, then drains in-flight requests for up to
// shutdownTimeout.
func serve(ctx context.Context, logg *logger.Logger, server *http.Server) error {
	failed := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			failed <- err
		}
		close(failed)
	}()

	select {
	case err := <-failed:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	logg.Info(ctx, "api server stopped")
	return nil
}
