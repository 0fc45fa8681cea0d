package discovery

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollowPicksUpNewFiles(t *testing.T) {
	root := t.TempDir()
	buildStore(t, root, 2)
	known := writeSession(t, root, "2025/01/02/known.jsonl", userLine("already scanned"))
	// Present on disk but outside the scan window, so not Known.
	unscanned := writeSession(t, root, "2025/01/02/unscanned.jsonl", userLine("old session"))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(unscanned, past, past))

	f, err := Follow(context.Background(), root, FollowOptions{
		Debounce: 20 * time.Millisecond,
		Known:    func(p string) bool { return p == known },
	})
	require.NoError(t, err)
	defer f.Close()

	// Existing file touched again: ignored.
	writeSession(t, root, "2025/01/02/known.jsonl", userLine("already scanned"), userLine("more"))
	// Old session resumed elsewhere and appended to: ignored.
	writeSession(t, root, "2025/01/02/unscanned.jsonl", userLine("old session"), userLine("resumed"))
	// New file in the newest day directory.
	writeSession(t, root, "2025/01/02/new-2025-01-02T12-00-00-00000000-0000-4000-8000-000000000777.jsonl", userLine("fresh"))
	// New day directory with a file.
	writeSession(t, root, "2025/01/03/next.jsonl", userLine("tomorrow"))

	got := map[string]bool{}
	deadline := time.After(5 * time.Second)
	for len(got) < 2 {
		select {
		case s := <-f.Sessions():
			got[s.ID] = true
		case <-deadline:
			t.Fatalf("timed out, got %v", got)
		}
	}
	assert.True(t, got["00000000-0000-4000-8000-000000000777"])
	assert.True(t, got["next"])
	assert.False(t, got["known"])

	select {
	case s := <-f.Sessions():
		t.Fatalf("unexpected session %s", s.ID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestFollowMissingRoot(t *testing.T) {
	_, err := Follow(context.Background(), t.TempDir()+"/missing", FollowOptions{})
	assert.ErrorIs(t, err, ErrStoreNotFound)
}

func TestNewestBranch(t *testing.T) {
	root := t.TempDir()
	buildStore(t, root, 3)
	writeSession(t, root, "2024/12/31/old.jsonl", userLine("old"))

	dirs := newestBranch(root, 3)
	require.Len(t, dirs, 4)
	assert.Equal(t, root, dirs[0])
	assert.Contains(t, dirs[3], "2025")
	assert.Contains(t, dirs[3], "03")
}
