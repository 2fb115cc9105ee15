package migrate

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"
	"time"

	"go.uber.org/multierr"
)

const versionLayout = "20060102150405"

var (
	fileNameRe  = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)
	slugCleanRe = regexp.MustCompile(`[^a-z0-9]+`)

	newFileTmpl = template.Must(template.New("migration").Parse(`-- {{ .Slug }} (created {{ .Created }})

-- +goose Up
-- +goose StatementBegin
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- +goose StatementEnd
`))
)

// File is a goose migration identified by its filename.
type File struct {
	Version string
	Slug    string
}

func (f File) Name() string { return f.Version + "_" + f.Slug + ".sql" }

// ParseFileName splits YYYYMMDDHHMMSS_slug.sql into its parts.
func ParseFileName(name string) (File, bool) {
	m := fileNameRe.FindStringSubmatch(name)
	if m == nil {
		return File{}, false
	}
	if _, err := time.Parse(versionLayout, m[1]); err != nil {
		return File{}, false
	}
	return File{Version: m[1], Slug: m[2]}, true
}

func slugify(name string) string {
	return strings.Trim(slugCleanRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
}

// CreateSQLMigration writes an empty Up/Down skeleton into dir and returns
// its path. The version is the current UTC time.
func CreateSQLMigration(dir, name string) (string, error) {
	if dir == "" {
		return "", errors.New("migrations dir is required")
	}
	slug := slugify(name)
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}

	now := time.Now().UTC()
	file := File{Version: now.Format(versionLayout), Slug: slug}
	var buf bytes.Buffer
	if err := newFileTmpl.Execute(&buf, map[string]string{"Slug": slug, "Created": now.Format(time.RFC3339)}); err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	target := filepath.Join(dir, file.Name())
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", target, err)
	}
	_, err = out.Write(buf.Bytes())
	return target, multierr.Append(err, out.Close())
}

// ValidateDir runs ValidateFS against a directory on disk.
func ValidateDir(dir string) error {
	if dir == "" {
		return errors.New("migrations dir is required")
	}
	return ValidateFS(os.DirFS(dir))
}

// ValidateFS reports every malformed file in fsys: bad names, reused
// versions and missing goose Up/Down markers.
func ValidateFS(fsys fs.FS) error {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}

	var problems error
	owners := make(map[string]string, len(names))
	for _, name := range names {
		file, ok := ParseFileName(path.Base(name))
		if !ok {
			problems = multierr.Append(problems, fmt.Errorf("%s: name must look like YYYYMMDDHHMMSS_name.sql", name))
			continue
		}
		if prev, dup := owners[file.Version]; dup {
			problems = multierr.Append(problems, fmt.Errorf("%s: version %s already used by %s", name, file.Version, prev))
			continue
		}
		owners[file.Version] = name

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			problems = multierr.Append(problems, fmt.Errorf("%s: %w", name, err))
			continue
		}
		for _, marker := range []string{"-- +goose Up", "-- +goose Down"} {
			if !bytes.Contains(body, []byte(marker)) {
				problems = multierr.Append(problems, fmt.Errorf("%s: missing %q", name, marker))
			}
		}
	}
	return problems
}
