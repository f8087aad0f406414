package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/angelmondragon/placemates-backend/pkg/bootstrap"
	"github.com/angelmondragon/placemates-backend/pkg/db"
	"github.com/angelmondragon/placemates-backend/pkg/logger"
	"github.com/angelmondragon/placemates-backend/pkg/migrate"
)

type options struct {
	cmd     string
	root    string
	name    string
	version string
}

func main() {
	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "up|down|status|version|create|validate")
	flag.StringVar(&opts.root, "dir", migrate.DefaultRoot, "migrations root holding postgres/ and sqlite/")
	flag.StringVar(&opts.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	ctx := logg.WithFields(context.Background(), map[string]any{"cmd": opts.cmd, "dir": opts.root})

	if err := run(ctx, logg, opts); err != nil {
		logg.Error(ctx, "migration command failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logg *logger.Logger, opts options) error {
	// create and validate only touch files.
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return fmt.Errorf("-name is required for create")
		}
		paths, err := migrate.NewFiles(opts.root, opts.name, time.Now())
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Println("created", p)
		}
		return nil
	case "validate":
		if err := migrate.Check(migrate.DirFS(opts.root)); err != nil {
			return err
		}
		logg.Info(ctx, "migration sets are valid")
		return nil
	}

	p, err := bootstrap.Start("migrate")
	if err != nil {
		return err
	}
	cfg, logg := p.Config, p.Logger
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": cfg.DB.Driver})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer dbClient.Close()
	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("sql database: %w", err)
	}

	provider, err := migrate.NewProvider(sqlDB, cfg.DB.Driver, migrate.DirFS(opts.root))
	if err != nil {
		return err
	}

	switch opts.cmd {
	case "up":
		results, err := provider.Up(ctx)
		if err != nil {
			return fmt.Errorf("goose up: %w", err)
		}
		logg.Info(logg.WithField(ctx, "applied", len(results)), "migrations applied")
	case "down":
		if _, err := provider.Down(ctx); err != nil {
			return fmt.Errorf("goose down: %w", err)
		}
		logg.Info(ctx, "rolled back one migration")
	case "status":
		steps, err := migrate.Status(ctx, provider)
		if err != nil {
			return err
		}
		for _, step := range steps {
			state := "pending"
			if step.Applied {
				state = "applied"
			}
			fmt.Printf("%-8s %d %s\n", state, step.Version, step.Path)
		}
	case "version":
		target, err := strconv.ParseInt(opts.version, 10, 64)
		if err != nil {
			return fmt.Errorf("-version %q must be YYYYMMDDHHMMSS: %w", opts.version, err)
		}
		if err := migrate.MoveTo(ctx, provider, target); err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "version", target), "database moved to version")
	default:
		return fmt.Errorf("unknown -cmd %q", opts.cmd)
	}
	return nil
}
