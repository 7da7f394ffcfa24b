package migrate

import (
	"cmp"
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

//go:embed sql/mysql/*.sql sql/sqlite/*.sql
var migrationsFS embed.FS

// Migration is one embedded schema change of the entry journal.
type Migration struct {
	Version int
	File    string
	Applied bool
}

// schema_migrations DDL per driver.
var trackingDDL = map[string]string{
	"mysql": `CREATE TABLE IF NOT EXISTS schema_migrations (
        version BIGINT PRIMARY KEY,
        applied_at DATETIME(6) NOT NULL
    ) ENGINE=InnoDB;`,
	"sqlite": `CREATE TABLE IF NOT EXISTS schema_migrations (
        version INTEGER PRIMARY KEY,
        applied_at DATETIME NOT NULL
    );`,
}

// Run applies pending journal migrations for driver ("mysql" or "sqlite").
// Files live under sql/<driver>, are named like 0001_description.sql and run
// in version order. Each file is one statement batch; a MySQL DSN needs
// multiStatements=true.
func Run(ctx context.Context, driver, dsn string, log *slog.Logger) error {
	db, migrations, err := open(ctx, driver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, m := range migrations {
		if m.Applied {
			log.Debug("migration already applied", slog.Int("version", m.Version), slog.String("file", m.File))
			continue
		}
		body, err := fs.ReadFile(migrationsFS, path.Join("sql", driver, m.File))
		if err != nil {
			return err
		}
		log.Info("applying migration", slog.String("driver", driver), slog.Int("version", m.Version), slog.String("file", m.File))
		if err := apply(ctx, db, m.Version, string(body)); err != nil {
			return fmt.Errorf("applying %s: %w", m.File, err)
		}
	}
	return nil
}

// Status lists every embedded migration for driver and whether the database
// at dsn has it applied.
func Status(ctx context.Context, driver, dsn string) ([]Migration, error) {
	db, migrations, err := open(ctx, driver, dsn)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return migrations, nil
}

// open connects, ensures the tracking table and returns the embedded
// migrations marked with their applied state.
func open(ctx context.Context, driver, dsn string) (*sql.DB, []Migration, error) {
	ddl, ok := trackingDDL[driver]
	if !ok {
		return nil, nil, fmt.Errorf("no migrations for driver %q", driver)
	}
	migrations, err := embedded(driver)
	if err != nil {
		return nil, nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, err
	}
	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(c); err != nil {
		db.Close()
		return nil, nil, err
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := loadApplied(ctx, db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	for i := range migrations {
		migrations[i].Applied = applied[migrations[i].Version]
	}
	return db, migrations, nil
}

func embedded(driver string) ([]Migration, error) {
	files, err := fs.Glob(migrationsFS, path.Join("sql", driver, "*.sql"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no migrations for driver %q", driver)
	}
	out := make([]Migration, 0, len(files))
	for _, f := range files {
		base := path.Base(f)
		ver, err := parseVersion(base)
		if err != nil {
			return nil, fmt.Errorf("invalid migration filename %q: %w", base, err)
		}
		out = append(out, Migration{Version: ver, File: base})
	}
	slices.SortFunc(out, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	return out, nil
}

// apply runs one migration and records it in the same transaction.
// MySQL commits DDL implicitly, so there the record is best effort.
func apply(ctx context.Context, db *sql.DB, version int, body string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, body); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations(version, applied_at) VALUES(?, ?)", version, time.Now().UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

func loadApplied(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	m := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		m[v] = true
	}
	return m, rows.Err()
}

// parseVersion reads the numeric prefix of 0001_name.sql.
func parseVersion(name string) (int, error) {
	prefix, _, ok := strings.Cut(name, "_")
	if !ok || prefix == "" {
		return 0, fmt.Errorf("missing prefix number")
	}
	return strconv.Atoi(prefix)
}
