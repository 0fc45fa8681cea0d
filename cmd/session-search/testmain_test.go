package main

import (
	"os"
	"testing"
)

// TestMain isolates config and state.db from the real home directory.
func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "session-search-cmd-*")
	if err != nil {
		panic(err)
	}
	os.Setenv("SESSION_SEARCH_HOME", dir)
	for _, k := range []string{
		"SESSION_SEARCH_DIR", "SESSION_SEARCH_SCAN_LIMIT", "SESSION_SEARCH_RESULT_LIMIT",
		"SESSION_SEARCH_RESUME", "CODEX_SEARCH_SCAN_LIMIT", "CODEX_SEARCH_RESUME",
	} {
		os.Unsetenv(k)
	}
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}
