package d1

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/opendots/opendots-backend/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsTable = "d1_migrations"

// Migration is one ordered schema file.
type Migration struct {
	Name string
	SQL  string
}

// Migrations returns the embedded migrations ordered by numeric prefix.
func Migrations() ([]Migration, error) {
	return loadMigrations(migrationsFS, "migrations")
}

func loadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	var out []Migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		data, err := fs.ReadFile(fsys, dir+"/"+e.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", e.Name(), err)
		}
		out = append(out, Migration{Name: e.Name(), SQL: string(data)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return migrationNumber(out[i].Name) < migrationNumber(out[j].Name)
	})
	return out, nil
}

// migrationNumber parses the leading digits before the first underscore.
// Files without a number sort first.
func migrationNumber(name string) int {
	prefix, _, _ := strings.Cut(name, "_")
	n, err := strconv.Atoi(prefix)
	if err != nil {
		return 0
	}
	return n
}

// Migrate applies pending migrations in order and records each one, so
// reruns are no-ops. It returns the names applied in this run.
func Migrate(ctx context.Context, exec Executor, migrations []Migration) ([]string, error) {
	log := logger.GetLogger()

	if _, err := exec.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+migrationsTable+` (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE,
		applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := exec.Query(ctx, `SELECT name FROM `+migrationsTable)
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	applied := make(map[string]bool, len(rows))
	for _, r := range rows {
		applied[r.String("name")] = true
	}

	var ran []string
	for _, m := range migrations {
		if applied[m.Name] {
			continue
		}
		log.Infow("Applying D1 migration", "name", m.Name)
		if _, err := exec.Exec(ctx, m.SQL); err != nil {
			return ran, fmt.Errorf("migration %s failed: %w", m.Name, err)
		}
		if _, err := exec.Exec(ctx, `INSERT INTO `+migrationsTable+` (name) VALUES (?)`, m.Name); err != nil {
			return ran, fmt.Errorf("failed to record migration %s: %w", m.Name, err)
		}
		ran = append(ran, m.Name)
	}
	return ran, nil
}
