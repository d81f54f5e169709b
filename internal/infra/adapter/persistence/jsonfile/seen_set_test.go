package jsonfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"natrail-bot/internal/domain/entity"
)

func disruption(desc string) *entity.Disruption {
	return &entity.Disruption{Description: desc, Link: "https://www.nationalrail.co.uk/x/"}
}

func TestOpen_MissingFileIsEmpty(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "seen.json"))
	require.NoError(t, err)

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
}

func TestOpen_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Open(path)
	assert.True(t, entity.IsPersistence(err))
}

func TestSeenSet_Lifecycle(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "seen.json")
	require.NoError(t, os.WriteFile(path, []byte(`["Old disruption"]`), 0o600))

	s, err := Open(path)
	require.NoError(t, err)

	isNew, err := s.IsNew(ctx, disruption("Old disruption"))
	require.NoError(t, err)
	assert.False(t, isNew)

	d := disruption("Disruption between Leeds and York")
	inserted, err := s.RecordSeen(ctx, d)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Same description with another link is the same identity here.
	other := disruption(d.Description)
	other.Link = "https://www.nationalrail.co.uk/y/"
	inserted, err = s.RecordSeen(ctx, other)
	require.NoError(t, err)
	assert.False(t, inserted)

	pending, err := s.Unposted(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, d.Description, pending[0].Description)
	assert.False(t, pending[0].ObservedAt.IsZero())

	ok, err := s.MarkPosted(ctx, d.Key())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.MarkPosted(ctx, d.Key())
	require.NoError(t, err)
	assert.False(t, ok, "already posted")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk []string
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.ElementsMatch(t, []string{"Old disruption", d.Description}, onDisk)

	reopened, err := Open(path)
	require.NoError(t, err)
	isNew, err = reopened.IsNew(ctx, d)
	require.NoError(t, err)
	assert.False(t, isNew)

	stats, err := reopened.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Posted)
}

func TestSeenSet_UnpostedNotPersisted(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "seen.json")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.RecordSeen(ctx, disruption("pending only"))
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "file is written only when something is posted")
}

func TestSeenSet_SaveFailureKeepsPending(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "missing-dir", "seen.json")

	s, err := Open(path)
	require.NoError(t, err)
	d := disruption("cannot save")
	_, err = s.RecordSeen(ctx, d)
	require.NoError(t, err)

	ok, err := s.MarkPosted(ctx, d.Key())
	assert.False(t, ok)
	assert.True(t, entity.IsPersistence(err))

	pending, err := s.Unposted(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
