package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/pressly/goose/v3"
)

// DefaultRoot holds one directory per dialect; see dialectDirs.
const DefaultRoot = "pkg/migrate/migrations"

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var embedded embed.FS

// Embedded exposes the compiled-in migrations root.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// dialectFor maps a config DB driver onto the goose dialect and set name.
func dialectFor(driver string) (goose.Dialect, string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "postgres":
		return goose.DialectPostgres, "postgres", nil
	case "sqlite":
		return goose.DialectSQLite3, "sqlite", nil
	default:
		return "", "", fmt.Errorf("unsupported migration driver %q", driver)
	}
}

// NewProvider binds the driver's migration set under root to db. A nil root
// selects the embedded migrations.
func NewProvider(db *sql.DB, driver string, root fs.FS) (*goose.Provider, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if root == nil {
		root = Embedded()
	}
	dialect, set, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	fsys, err := fs.Sub(root, set)
	if err != nil {
		return nil, fmt.Errorf("open %s migrations: %w", set, err)
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return provider, nil
}

// DirFS opens an on-disk migrations root.
func DirFS(root string) fs.FS {
	return os.DirFS(root)
}

// Up applies every embedded migration for driver.
func Up(ctx context.Context, db *sql.DB, driver string) error {
	provider, err := NewProvider(db, driver, nil)
	if err != nil {
		return err
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Step is one applied or pending migration, as reported by Status.
type Step struct {
	Version int64
	Path    string
	Applied bool
}

// Status lists the migrations known to provider and whether each is applied.
func Status(ctx context.Context, provider *goose.Provider) ([]Step, error) {
	states, err := provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	steps := make([]Step, 0, len(states))
	for _, st := range states {
		steps = append(steps, Step{
			Version: st.Source.Version,
			Path:    st.Source.Path,
			Applied: st.State == goose.StateApplied,
		})
	}
	return steps, nil
}

// MoveTo migrates up or down until the database sits at target.
func MoveTo(ctx context.Context, provider *goose.Provider, target int64) error {
	current, err := provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}
	switch {
	case current < target:
		_, err = provider.UpTo(ctx, target)
	case current > target:
		_, err = provider.DownTo(ctx, target)
	}
	if err != nil {
		return fmt.Errorf("goose move %d -> %d: %w", current, target, err)
	}
	return nil
}
