package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"clockify-blocks/internal/domain"
)

// Supported database/sql driver names.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Client implements ports.Journal by appending saved entries to a SQL table.
type Client struct {
	db     *sql.DB
	driver string
	log    *slog.Logger
}

// NewClient opens the journal database. Migrations must already be applied.
// Example MySQL DSN: user:pass@tcp(host:3306)/dbname?parseTime=true&multiStatements=true
// Example SQLite DSN: file:/path/journal.db?_pragma=busy_timeout(5000)
func NewClient(ctx context.Context, driver, dsn string, log *slog.Logger) (*Client, error) {
	if dsn == "" {
		return nil, errors.New("journal: DSN is required")
	}
	if driver != DriverMySQL && driver != DriverSQLite {
		return nil, fmt.Errorf("journal: unsupported driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// One writer at a time; SQLite serializes anyway.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(c); err != nil {
		db.Close()
		return nil, err
	}
	return &Client{db: db, driver: driver, log: log}, nil
}

// Record appends one saved entry.
func (c *Client) Record(ctx context.Context, e domain.TimeEntry) error {
	const q = `
INSERT INTO clockify_time_entries
  (row_id, entry_id, workspace_id, project_id, description, start, stop, document, method, saved_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var stop any
	if e.End != nil {
		stop = e.End.UTC()
	}
	if _, err := c.db.ExecContext(ctx, q,
		uuid.NewString(),
		e.ID,
		e.WorkspaceID,
		e.ProjectID,
		e.Description,
		e.Start.UTC(),
		stop,
		e.Document,
		e.Method,
		e.SavedAt.UTC(),
	); err != nil {
		return fmt.Errorf("journal: record %s: %w", e.ID, err)
	}
	c.log.Debug("journal recorded entry", slog.String("id", e.ID), slog.String("method", e.Method))
	return nil
}

// History returns the recorded saves of one entry, oldest first.
func (c *Client) History(ctx context.Context, entryID string) ([]domain.TimeEntry, error) {
	const q = `
SELECT entry_id, workspace_id, project_id, description, start, stop, document, method, saved_at
FROM clockify_time_entries
WHERE entry_id = ?
ORDER BY saved_at, row_id`
	rows, err := c.db.QueryContext(ctx, q, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TimeEntry
	for rows.Next() {
		var (
			e    domain.TimeEntry
			stop sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.WorkspaceID, &e.ProjectID, &e.Description, &e.Start, &stop, &e.Document, &e.Method, &e.SavedAt); err != nil {
			return nil, err
		}
		if stop.Valid {
			t := stop.Time.UTC()
			e.End = &t
		}
		e.Start = e.Start.UTC()
		e.SavedAt = e.SavedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the underlying DB. Not part of ports.Journal to keep it minimal.
func (c *Client) Close() error { return c.db.Close() }
