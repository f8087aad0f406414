package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"
)

// Dialect directories under a migrations root. Both sets carry the same
// versions so sqlite tests exercise the schema history Postgres runs.
var dialectDirs = []string{"postgres", "sqlite"}

var (
	fileNameRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)
	slugRe     = regexp.MustCompile(`[^a-z0-9]+`)
)

const fileTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- rollback %[1]s
-- +goose StatementEnd
`

func slugify(name string) string {
	return strings.Trim(slugRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
}

// NewFiles writes an empty migration with the same version into every
// dialect directory under root and returns the created paths.
func NewFiles(root, name string, now time.Time) ([]string, error) {
	if root == "" {
		return nil, fmt.Errorf("migrations root is required")
	}
	slug := slugify(name)
	if slug == "" {
		return nil, fmt.Errorf("migration name %q has no usable characters", name)
	}
	file := fmt.Sprintf("%s_%s.sql", now.UTC().Format("20060102150405"), slug)

	created := make([]string, 0, len(dialectDirs))
	for _, dialect := range dialectDirs {
		dir := filepath.Join(root, dialect)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return created, fmt.Errorf("create %s: %w", dir, err)
		}
		full := filepath.Join(dir, file)
		f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			return created, fmt.Errorf("create %s: %w", full, err)
		}
		_, werr := fmt.Fprintf(f, fileTemplate, slug)
		cerr := f.Close()
		if werr != nil || cerr != nil {
			return created, fmt.Errorf("write %s: %w", full, firstErr(werr, cerr))
		}
		created = append(created, full)
	}
	return created, nil
}

// Check validates every dialect set under fsys: file names, unique versions,
// Up before Down markers, and identical version lists across dialects.
func Check(fsys fs.FS) error {
	var reference []string
	for _, dialect := range dialectDirs {
		versions, err := checkSet(fsys, dialect)
		if err != nil {
			return err
		}
		if reference == nil {
			reference = versions
			continue
		}
		if !slices.Equal(reference, versions) {
			return fmt.Errorf("%s migrations %v do not match %s migrations %v", dialect, versions, dialectDirs[0], reference)
		}
	}
	return nil
}

func checkSet(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read %s migrations: %w", dir, err)
	}
	versions := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || path.Ext(name) != ".sql" {
			continue
		}
		m := fileNameRe.FindStringSubmatch(name)
		if m == nil {
			return nil, fmt.Errorf("%s/%s: expected YYYYMMDDHHMMSS_name.sql", dir, name)
		}
		if slices.Contains(versions, m[1]) {
			return nil, fmt.Errorf("%s: version %s used twice", dir, m[1])
		}
		versions = append(versions, m[1])

		body, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s/%s: %w", dir, name, err)
		}
		up := strings.Index(string(body), "-- +goose Up")
		down := strings.Index(string(body), "-- +goose Down")
		if up < 0 || down < 0 || down < up {
			return nil, fmt.Errorf("%s/%s: needs -- +goose Up followed by -- +goose Down", dir, name)
		}
	}
	slices.Sort(versions)
	return versions, nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
