package discovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheshgoplani/session-search/internal/session"
)

// buildStore writes one session per day, day 1 oldest, and returns the
// session ids newest first.
func buildStore(t *testing.T, root string, days int) []string {
	t.Helper()
	var ids []string
	for d := 1; d <= days; d++ {
		id := fmt.Sprintf("00000000-0000-4000-8000-%012d", d)
		name := fmt.Sprintf("rollout-2025-01-%02dT09-00-00-%s.jsonl", d, id)
		writeSession(t, root, fmt.Sprintf("2025/01/%02d/%s", d, name), userLine(fmt.Sprintf("message from day %d", d)))
		ids = append([]string{id}, ids...)
	}
	return ids
}

func ids(sessions []*session.Session) []string {
	out := make([]string, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.ID)
	}
	return out
}

func collectAll(t *testing.T, opts Options) ([]*session.Session, *Stream) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	stream, err := Discover(ctx, opts)
	require.NoError(t, err)
	got := Collect(ctx, stream, 0)
	stream.Wait()
	return got, stream
}

func TestDiscoverNewestFirst(t *testing.T) {
	root := t.TempDir()
	want := buildStore(t, root, 6)
	// Two files in the same day directory: later file name first.
	writeSession(t, root, "2025/01/06/rollout-2025-01-06T18-00-00-00000000-0000-4000-8000-000000000099.jsonl", userLine("evening"))
	want = append([]string{"00000000-0000-4000-8000-000000000099"}, want...)

	got, stream := collectAll(t, Options{Root: root, Workers: 3})
	assert.Equal(t, want, ids(got))
	assert.Equal(t, 7, stream.Found())
	assert.Equal(t, 7, stream.Emitted())
	assert.Zero(t, stream.Skipped())
	assert.NoError(t, stream.Err())
}

func TestDiscoverScanLimit(t *testing.T) {
	root := t.TempDir()
	all := buildStore(t, root, 5)

	got, stream := collectAll(t, Options{Root: root, ScanLimit: 2})
	assert.Equal(t, all[:2], ids(got), "the two most recent directories")
	assert.Equal(t, 2, stream.Found())
}

func TestDiscoverSkipsBadFiles(t *testing.T) {
	root := t.TempDir()
	buildStore(t, root, 2)
	writeSession(t, root, "2025/01/03/empty.jsonl", `{"role":"tool","content":"x"}`)
	writeSession(t, root, "2025/01/03/garbage.jsonl", `{{{{`)
	writeSession(t, root, "2025/01/03/notes.txt", "ignored")

	got, stream := collectAll(t, Options{Root: root})
	assert.Len(t, got, 2)
	assert.Equal(t, 2, stream.Skipped())
	skips := stream.Skips()
	require.Len(t, skips, 2)
	for _, s := range skips {
		assert.Contains(t, s.Reason, ErrNoMessages.Error())
	}
	assert.False(t, stream.Seen(filepath.Join(root, "2025/01/03/notes.txt")))
	assert.True(t, stream.Seen(filepath.Join(root, "2025/01/03/empty.jsonl")))
}

func TestDiscoverUnorderedSameSet(t *testing.T) {
	root := t.TempDir()
	want := buildStore(t, root, 12)

	got, _ := collectAll(t, Options{Root: root, Workers: 4, Unordered: true})
	assert.ElementsMatch(t, want, ids(got))
}

func TestDiscoverStoreErrors(t *testing.T) {
	root := t.TempDir()

	_, err := Discover(context.Background(), Options{Root: filepath.Join(root, "nope")})
	assert.True(t, errors.Is(err, ErrStoreNotFound))

	file := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = Discover(context.Background(), Options{Root: file})
	assert.True(t, errors.Is(err, ErrNotDirectory))
}

func TestDiscoverEmptyStore(t *testing.T) {
	got, stream := collectAll(t, Options{Root: t.TempDir()})
	assert.Empty(t, got)
	assert.Zero(t, stream.Found())
}

func TestCollectStopAfterAbandonsScan(t *testing.T) {
	root := t.TempDir()
	want := buildStore(t, root, 30)

	stream, err := Discover(context.Background(), Options{Root: root, Buffer: 1, Workers: 2})
	require.NoError(t, err)
	got := Collect(context.Background(), stream, 3)
	assert.Equal(t, want[:3], ids(got))

	select {
	case <-stream.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop after Collect returned early")
	}
	assert.Less(t, stream.Emitted(), 30)
}

func TestCloseWithoutConsumer(t *testing.T) {
	root := t.TempDir()
	buildStore(t, root, 20)

	stream, err := Discover(context.Background(), Options{Root: root, Buffer: 1})
	require.NoError(t, err)
	stream.Close()

	select {
	case <-stream.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Close left goroutines blocked")
	}
	for range stream.Sessions() {
	}
}

func TestDiscoverRateLimited(t *testing.T) {
	root := t.TempDir()
	buildStore(t, root, 3)

	start := time.Now()
	got, _ := collectAll(t, Options{Root: root, RateLimit: 20})
	assert.Len(t, got, 3)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestCollectPaths(t *testing.T) {
	root := t.TempDir()
	buildStore(t, root, 4)

	paths, err := CollectPaths(context.Background(), Options{Root: root, ScanLimit: 3})
	require.NoError(t, err)
	require.Len(t, paths, 3)
	assert.Contains(t, paths[0], filepath.FromSlash("2025/01/04"))
	assert.Contains(t, paths[2], filepath.FromSlash("2025/01/02"))

	_, err = CollectPaths(context.Background(), Options{Root: filepath.Join(root, "missing")})
	assert.True(t, errors.Is(err, ErrStoreNotFound))
}

func TestWalkRespectsMaxDepth(t *testing.T) {
	root := t.TempDir()
	writeSession(t, root, "a/b/c/deep.jsonl", userLine("deep"))
	writeSession(t, root, "top.jsonl", userLine("top"))

	paths, err := CollectPaths(context.Background(), Options{Root: root, MaxDepth: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "top.jsonl")}, paths)
}
