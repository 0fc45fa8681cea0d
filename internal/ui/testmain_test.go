package ui

import (
	"os"
	"testing"
)

// TestMain points the home directory at a throwaway location so nothing
// under ~/.session-search is touched.
func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "session-search-ui-*")
	if err != nil {
		panic(err)
	}
	os.Setenv("SESSION_SEARCH_HOME", dir)
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}
