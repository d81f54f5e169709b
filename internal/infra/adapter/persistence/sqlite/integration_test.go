package sqlite_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"natrail-bot/internal/domain/entity"
	"natrail-bot/internal/infra/adapter/persistence/sqlite"
	"natrail-bot/internal/infra/db"
)

func TestDisruptionRepo_RoundTripOnFile(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "disruptions.db")

	conn, err := db.Open(ctx, db.DriverSQLite, path, logger)
	require.NoError(t, err)
	require.NoError(t, db.MigrateUp(ctx, conn, db.DriverSQLite, logger))

	repo := sqlite.NewDisruptionRepo(conn)
	a := sample()
	b := &entity.Disruption{Description: a.Description, Link: "https://www.nationalrail.co.uk/other/"}

	inserted, err := repo.RecordSeen(ctx, a)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.RecordSeen(ctx, a)
	require.NoError(t, err)
	assert.False(t, inserted, "same key must not be inserted twice")

	inserted, err = repo.RecordSeen(ctx, b)
	require.NoError(t, err)
	assert.True(t, inserted, "same description with a different link is a new record")

	isNew, err := repo.IsNew(ctx, a)
	require.NoError(t, err)
	assert.False(t, isNew)

	pending, err := repo.Unposted(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, a.Link, pending[0].Link)
	assert.True(t, a.ObservedAt.Equal(pending[0].ObservedAt))

	ok, err := repo.MarkPosted(ctx, a.Key())
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, conn.Close())

	// Reopen to confirm the posted flag survived.
	conn, err = db.Open(ctx, db.DriverSQLite, path, logger)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	repo = sqlite.NewDisruptionRepo(conn)

	pending, err = repo.Unposted(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b.Link, pending[0].Link)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Posted)
}

func TestDisruptionRepo_UnpostedCollapsesLegacyDuplicates(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "legacy.db")

	conn, err := db.Open(ctx, db.DriverSQLite, path, logger)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	// Schema written by earlier releases: no unique key, so repeated
	// insert-or-ignore calls stored every copy.
	_, err = conn.ExecContext(ctx, `
CREATE TABLE disruptions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    disruption TEXT NOT NULL,
    link TEXT NOT NULL,
    posted INTEGER DEFAULT 0,
    date TEXT NOT NULL
)`)
	require.NoError(t, err)
	rows := []struct {
		desc, link string
		posted     int
		date       string
	}{
		{"Leeds to York closed", "https://nr.example/a", 0, "2025-03-14 09:30:00"},
		{"Leeds to York closed", "https://nr.example/a", 0, "2025-03-14 09:50:00"},
		{"Hull services delayed", "https://nr.example/b", 1, "2025-03-14 09:30:00"},
		{"Hull services delayed", "https://nr.example/b", 0, "2025-03-14 09:50:00"},
		{"Buses replace trains at Selby", "https://nr.example/c", 0, "2025-03-14 10:10:00"},
	}
	for _, r := range rows {
		_, err := conn.ExecContext(ctx,
			`INSERT INTO disruptions (disruption, link, posted, date) VALUES (?, ?, ?, ?)`,
			r.desc, r.link, r.posted, r.date)
		require.NoError(t, err)
	}

	// The unique index cannot be built over duplicates; migration still succeeds.
	require.NoError(t, db.MigrateUp(ctx, conn, db.DriverSQLite, logger))

	repo := sqlite.NewDisruptionRepo(conn)
	pending, err := repo.Unposted(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2, "one record per key, none for a key already posted")
	assert.Equal(t, int64(1), pending[0].ID)
	assert.Equal(t, "Leeds to York closed", pending[0].Description)
	assert.Equal(t, "2025-03-14 09:30:00", pending[0].ObservedAt.Format(sqlite.DateLayout))
	assert.Equal(t, "Buses replace trains at Selby", pending[1].Description)

	ok, err := repo.MarkPosted(ctx, pending[0].Key())
	require.NoError(t, err)
	assert.True(t, ok)

	pending, err = repo.Unposted(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "https://nr.example/c", pending[0].Link)
}
