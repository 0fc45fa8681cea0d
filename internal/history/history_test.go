package history

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Migrate())
	v, err := db.SchemaVersionOnDisk()
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, v)
}

func TestRecordAndRecent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, db.Record(ctx, Entry{
			SessionID: id,
			Path:      "/s/" + id + ".jsonl",
			Query:     "gold",
			Command:   "codex resume " + id,
			DryRun:    id == "b",
			At:        base.Add(time.Duration(i) * time.Minute),
		}))
	}

	got, err := db.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].SessionID)
	assert.Equal(t, "b", got[1].SessionID)
	assert.True(t, got[1].DryRun)
	assert.Equal(t, "codex resume b", got[1].Command)
	assert.True(t, got[0].At.Equal(base.Add(2*time.Minute)))
}

func TestRecordRejectsEmptyID(t *testing.T) {
	db := newTestDB(t)
	assert.Error(t, db.Record(context.Background(), Entry{}))
}

func TestRecordStampsTime(t *testing.T) {
	db := newTestDB(t)
	before := time.Now()
	require.NoError(t, db.Record(context.Background(), Entry{SessionID: "x"}))
	got, err := db.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].At.Before(before.Add(-time.Second)))
}

func TestPruneKeepsNewest(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 10; i++ {
		require.NoError(t, db.Record(ctx, Entry{SessionID: string(rune('a' + i)), At: base.Add(time.Duration(i) * time.Second)}))
	}

	removed, err := db.Prune(ctx, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 7, removed)

	got, err := db.Recent(ctx, 100)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "j", got[0].SessionID)
	assert.Equal(t, "h", got[2].SessionID)

	removed, err = db.Prune(ctx, 3)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	require.NoError(t, db.Record(context.Background(), Entry{SessionID: "keep"}))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate())
	got, err := db.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "keep", got[0].SessionID)
}

func TestConcurrentRecord(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, db.Record(ctx, Entry{SessionID: "s"}))
		}(i)
	}
	wg.Wait()
	got, err := db.Recent(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, got, 8)
}
