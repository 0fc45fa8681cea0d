package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const exampleConfig = `# session-search configuration
# Every key is optional; the values below are the defaults.

# sessions_dir = "~/.codex/sessions"
# scan_limit = 400
# result_limit = 20
# resume_command = "codex --search resume {uuid}"
# theme = "dark"          # dark, light or system

[discovery]
# workers = 4
# buffer = 64
# blob_limit_kb = 64
# preview_chars = 240
# index_rate_limit = 0    # files per second, 0 = unlimited
# unordered = false
# follow = false
# expanded_scan_limit = 1000
# max_depth = 8

[search]
# recency_weight = 300
# recency_half_life_hours = 72
# debounce_ms = 30
# ingest_per_tick = 20
# tick_ms = 16

[logs]
# debug = false
# debug_level = "info"
# debug_format = "json"
# debug_max_mb = 10
# debug_backups = 3
# debug_retention_days = 7
# debug_compress = false
# ring_buffer_mb = 2
# pprof_enabled = false
# aggregate_interval_secs = 30

[history]
# disabled = false
# max_entries = 500
`

// CreateExampleConfig writes a commented config.toml. An existing file
// is left alone and reported through the returned bool.
func CreateExampleConfig() (string, bool, error) {
	path, err := GetConfigPath()
	if err != nil {
		return "", false, err
	}
	if _, err := os.Stat(path); err == nil {
		return path, false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", false, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := writeFileAtomic(path, []byte(exampleConfig)); err != nil {
		return "", false, err
	}
	return path, true, nil
}
