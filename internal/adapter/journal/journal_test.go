package journal

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clockify-blocks/internal/domain"
	"clockify-blocks/internal/migrate"
)

func newSQLiteJournal(t *testing.T) *Client {
	t.Helper()
	ctx := t.Context()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dsn := "file:" + filepath.Join(t.TempDir(), "journal.db")

	require.NoError(t, migrate.Run(ctx, DriverSQLite, dsn, logger))
	require.NoError(t, migrate.Run(ctx, DriverSQLite, dsn, logger), "migrations are idempotent")

	c, err := NewClient(ctx, DriverSQLite, dsn, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestJournal_RecordAndHistory(t *testing.T) {
	c := newSQLiteJournal(t)
	ctx := t.Context()

	tr := domain.Tracker{WorkspaceID: "ws", ProjectID: "p", ID: "e1", Description: "draft", Timer: domain.Active{Start: 1000}}
	saved := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, c.Record(ctx, domain.EntryFromTracker(tr, "/notes/a.md", "POST", saved)))

	tr.StopAt(time.Unix(1090, 0))
	require.NoError(t, c.Record(ctx, domain.EntryFromTracker(tr, "/notes/a.md", "PUT", saved.Add(time.Minute))))
	require.NoError(t, c.Record(ctx, domain.EntryFromTracker(domain.Tracker{ID: "other", Timer: domain.Active{Start: 5}}, "/b.md", "POST", saved)))

	hist, err := c.History(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, hist, 2)

	assert.Equal(t, "POST", hist[0].Method)
	assert.Nil(t, hist[0].End)
	assert.Equal(t, time.Unix(1000, 0).UTC(), hist[0].Start)
	assert.Equal(t, "/notes/a.md", hist[0].Document)

	assert.Equal(t, "PUT", hist[1].Method)
	require.NotNil(t, hist[1].End)
	assert.Equal(t, time.Unix(1090, 0).UTC(), *hist[1].End)
	assert.Equal(t, saved.Add(time.Minute), hist[1].SavedAt)
}

func TestNewClient_Validation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := NewClient(t.Context(), DriverSQLite, "", logger)
	assert.Error(t, err)
	_, err = NewClient(t.Context(), "postgres", "dsn", logger)
	assert.Error(t, err)
}

func TestMigrate_UnknownDriver(t *testing.T) {
	err := migrate.Run(t.Context(), "postgres", "dsn", slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
