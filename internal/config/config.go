// Package config loads ~/.session-search/config.toml and merges the
// environment overrides on top of it.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	dark "github.com/thiagokokada/dark-mode-go"
)

// Environment variables read by Resolve and GetHomeDir.
const (
	EnvHome        = "SESSION_SEARCH_HOME"
	EnvSessionsDir = "SESSION_SEARCH_DIR"
	EnvScanLimit   = "SESSION_SEARCH_SCAN_LIMIT"
	EnvResultLimit = "SESSION_SEARCH_RESULT_LIMIT"
	EnvResume      = "SESSION_SEARCH_RESUME"
	EnvDebug       = "SESSION_SEARCH_DEBUG"
	EnvColor       = "SESSION_SEARCH_COLOR"

	// Honoured when the SESSION_SEARCH_ variants are unset.
	LegacyEnvScanLimit = "CODEX_SEARCH_SCAN_LIMIT"
	LegacyEnvResume    = "CODEX_SEARCH_RESUME"
)

// ConfigFileName is the TOML file inside the home directory.
const ConfigFileName = "config.toml"

// Built-in defaults.
const (
	DefaultScanLimit         = 400
	DefaultResultLimit       = 20
	DefaultResumeCommand     = "codex --search resume {uuid}"
	DefaultExpandedScanLimit = 1000
)

// UserConfig mirrors config.toml.
type UserConfig struct {
	// SessionsDir is the session store root.
	// Default: ~/.codex/sessions
	SessionsDir string `toml:"sessions_dir"`

	// ScanLimit is the maximum number of session files read per run.
	// Default: 400
	ScanLimit int `toml:"scan_limit"`

	// ResultLimit is the number of results shown.
	// Default: 20
	ResultLimit int `toml:"result_limit"`

	// ResumeCommand is run on selection; {uuid} is replaced by the
	// session id.
	// Default: "codex --search resume {uuid}"
	ResumeCommand string `toml:"resume_command"`

	// Theme: "dark" (default), "light" or "system"
	Theme string `toml:"theme"`

	Discovery DiscoverySettings `toml:"discovery"`
	Search    SearchSettings    `toml:"search"`
	Logs      LogSettings       `toml:"logs"`
	History   HistorySettings   `toml:"history"`
}

// DiscoverySettings tune how the store is read.
type DiscoverySettings struct {
	// Workers parse files in parallel. Default: 4
	Workers int `toml:"workers"`

	// Buffer is the hand-off channel capacity. Default: 64
	Buffer int `toml:"buffer"`

	// BlobLimitKB caps searchable text per session. Default: 64
	BlobLimitKB int `toml:"blob_limit_kb"`

	// PreviewChars caps the preview line. Default: 240
	PreviewChars int `toml:"preview_chars"`

	// IndexRateLimit caps files parsed per second; 0 disables it.
	IndexRateLimit float64 `toml:"index_rate_limit"`

	// Unordered emits sessions in completion order instead of newest first.
	Unordered bool `toml:"unordered"`

	// Follow picks up sessions created while the picker is open.
	Follow bool `toml:"follow"`

	// ExpandedScanLimit is used by --cwd and when a query finds nothing.
	// Default: 1000
	ExpandedScanLimit int `toml:"expanded_scan_limit"`

	// MaxDepth bounds directory recursion. Default: 8
	MaxDepth int `toml:"max_depth"`
}

// SearchSettings tune ranking and the interactive loop.
type SearchSettings struct {
	// RecencyWeight is the bonus for a session active right now.
	// Default: 300
	RecencyWeight float64 `toml:"recency_weight"`

	// RecencyHalfLifeHours is when the recency bonus halves. Default: 72
	RecencyHalfLifeHours float64 `toml:"recency_half_life_hours"`

	// DebounceMS delays a scoring pass after an edit. Default: 30
	DebounceMS int `toml:"debounce_ms"`

	// IngestPerTick caps sessions moved into the corpus per batch.
	// Default: 20
	IngestPerTick int `toml:"ingest_per_tick"`

	// TickMS is the redraw interval of the picker. Default: 16
	TickMS int `toml:"tick_ms"`
}

// LogSettings configure debug.log.
type LogSettings struct {
	// Debug enables logging (also SESSION_SEARCH_DEBUG=1).
	Debug bool `toml:"debug"`

	// DebugLevel: "debug", "info" (default), "warn", "error"
	DebugLevel string `toml:"debug_level"`

	// DebugFormat: "json" (default) or "text"
	DebugFormat string `toml:"debug_format"`

	// DebugMaxMB before rotation. Default: 10
	DebugMaxMB int `toml:"debug_max_mb"`

	// DebugBackups kept after rotation. Default: 3
	DebugBackups int `toml:"debug_backups"`

	// DebugRetentionDays for rotated files. Default: 7
	DebugRetentionDays int `toml:"debug_retention_days"`

	// DebugCompress gzips rotated files.
	DebugCompress bool `toml:"debug_compress"`

	// RingBufferMB held in memory for SIGUSR1 dumps. Default: 2
	RingBufferMB int `toml:"ring_buffer_mb"`

	// PprofEnabled serves pprof on localhost:6060 while debugging.
	PprofEnabled bool `toml:"pprof_enabled"`

	// AggregateIntervalS between event summaries. Default: 30
	AggregateIntervalS int `toml:"aggregate_interval_secs"`
}

// HistorySettings configure the resume log in state.db.
type HistorySettings struct {
	// Disabled turns recording off.
	Disabled bool `toml:"disabled"`

	// MaxEntries kept after pruning. Default: 500
	MaxEntries int `toml:"max_entries"`
}

var (
	cacheMu sync.RWMutex
	cache   *UserConfig
)

// GetHomeDir returns $SESSION_SEARCH_HOME or ~/.session-search.
func GetHomeDir() (string, error) {
	if dir := os.Getenv(EnvHome); dir != "" {
		return ExpandPath(dir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".session-search"), nil
}

// GetConfigPath returns the config.toml path.
func GetConfigPath() (string, error) {
	dir, err := GetHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// DefaultSessionsDir is ~/.codex/sessions.
func DefaultSessionsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".codex", "sessions")
	}
	return filepath.Join(home, ".codex", "sessions")
}

// ExpandPath expands a leading ~ to the home directory.
func ExpandPath(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// LoadUserConfig reads config.toml once and caches it. A missing file
// yields an empty config. On a parse error the empty config is cached
// and the error returned so the caller can report it.
func LoadUserConfig() (*UserConfig, error) {
	cacheMu.RLock()
	if cache != nil {
		defer cacheMu.RUnlock()
		return cache, nil
	}
	cacheMu.RUnlock()

	cacheMu.Lock()
	defer cacheMu.Unlock()
	if cache != nil {
		return cache, nil
	}

	path, err := GetConfigPath()
	if err != nil {
		cache = &UserConfig{}
		return cache, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cache = &UserConfig{}
		return cache, nil
	}

	var cfg UserConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		cache = &UserConfig{}
		return cache, fmt.Errorf("config.toml parse error: %w", err)
	}
	cache = &cfg
	return cache, nil
}

// ReloadUserConfig drops the cache and loads again.
func ReloadUserConfig() (*UserConfig, error) {
	ClearUserConfigCache()
	return LoadUserConfig()
}

// ClearUserConfigCache forgets the cached config.
func ClearUserConfigCache() {
	cacheMu.Lock()
	cache = nil
	cacheMu.Unlock()
}

// SaveUserConfig writes cfg atomically: temp file, fsync, rename.
func SaveUserConfig(cfg *UserConfig) error {
	path, err := GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# session-search configuration\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return err
	}
	ClearUserConfigCache()
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	_ = f.Sync()
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize config save: %w", err)
	}
	return nil
}

// GetTheme returns "dark", "light" or "system".
func GetTheme() string {
	cfg, err := LoadUserConfig()
	if err != nil || cfg == nil {
		return "dark"
	}
	switch cfg.Theme {
	case "dark", "light", "system":
		return cfg.Theme
	}
	return "dark"
}

// ResolveTheme turns "system" into "dark" or "light" using the OS
// setting, falling back to dark.
func ResolveTheme() string {
	theme := GetTheme()
	if theme != "system" {
		return theme
	}
	isDark, err := dark.IsDarkMode()
	if err != nil || isDark {
		return "dark"
	}
	return "light"
}

// GetDiscoverySettings returns [discovery] with defaults applied.
func GetDiscoverySettings() DiscoverySettings {
	var s DiscoverySettings
	if cfg, err := LoadUserConfig(); err == nil && cfg != nil {
		s = cfg.Discovery
	}
	if s.Workers <= 0 {
		s.Workers = 4
	}
	if s.Buffer <= 0 {
		s.Buffer = 64
	}
	if s.BlobLimitKB <= 0 {
		s.BlobLimitKB = 64
	}
	if s.PreviewChars <= 0 {
		s.PreviewChars = 240
	}
	if s.IndexRateLimit < 0 {
		s.IndexRateLimit = 0
	}
	if s.ExpandedScanLimit <= 0 {
		s.ExpandedScanLimit = DefaultExpandedScanLimit
	}
	if s.MaxDepth <= 0 {
		s.MaxDepth = 8
	}
	return s
}

// GetSearchSettings returns [search] with defaults applied.
func GetSearchSettings() SearchSettings {
	var s SearchSettings
	if cfg, err := LoadUserConfig(); err == nil && cfg != nil {
		s = cfg.Search
	}
	if s.RecencyWeight <= 0 {
		s.RecencyWeight = 300
	}
	if s.RecencyHalfLifeHours <= 0 {
		s.RecencyHalfLifeHours = 72
	}
	if s.DebounceMS <= 0 {
		s.DebounceMS = 30
	}
	if s.IngestPerTick <= 0 {
		s.IngestPerTick = 20
	}
	if s.TickMS <= 0 {
		s.TickMS = 16
	}
	return s
}

// GetLogSettings returns [logs] with defaults applied.
func GetLogSettings() LogSettings {
	var s LogSettings
	if cfg, err := LoadUserConfig(); err == nil && cfg != nil {
		s = cfg.Logs
	}
	if s.DebugLevel == "" {
		s.DebugLevel = "info"
	}
	if s.DebugFormat == "" {
		s.DebugFormat = "json"
	}
	if s.DebugMaxMB <= 0 {
		s.DebugMaxMB = 10
	}
	if s.DebugBackups <= 0 {
		s.DebugBackups = 3
	}
	if s.DebugRetentionDays <= 0 {
		s.DebugRetentionDays = 7
	}
	if s.RingBufferMB <= 0 {
		s.RingBufferMB = 2
	}
	if s.AggregateIntervalS <= 0 {
		s.AggregateIntervalS = 30
	}
	if envBool(os.Getenv(EnvDebug)) {
		s.Debug = true
	}
	return s
}

// GetHistorySettings returns [history] with defaults applied.
func GetHistorySettings() HistorySettings {
	var s HistorySettings
	if cfg, err := LoadUserConfig(); err == nil && cfg != nil {
		s = cfg.History
	}
	if s.MaxEntries <= 0 {
		s.MaxEntries = 500
	}
	return s
}

func envBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}
