package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(EnvHome, dir)
	t.Setenv(EnvDebug, "")
	ClearUserConfigCache()
	t.Cleanup(ClearUserConfigCache)
	return dir
}

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(body), 0o600))
}

func TestGetHomeDirHonoursEnv(t *testing.T) {
	dir := useHome(t)
	got, err := GetHomeDir()
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	path, err := GetConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml"), path)
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	useHome(t)
	cfg, err := LoadUserConfig()
	require.NoError(t, err)
	assert.Equal(t, &UserConfig{}, cfg)

	d := GetDiscoverySettings()
	assert.Equal(t, 4, d.Workers)
	assert.Equal(t, 64, d.Buffer)
	assert.Equal(t, 1000, d.ExpandedScanLimit)
	assert.Equal(t, 8, d.MaxDepth)

	s := GetSearchSettings()
	assert.Equal(t, 300.0, s.RecencyWeight)
	assert.Equal(t, 72.0, s.RecencyHalfLifeHours)
	assert.Equal(t, 30, s.DebounceMS)

	h := GetHistorySettings()
	assert.False(t, h.Disabled)
	assert.Equal(t, 500, h.MaxEntries)
}

func TestLoadParsesSections(t *testing.T) {
	dir := useHome(t)
	writeConfig(t, dir, `
scan_limit = 50
resume_command = "codex resume --full {uuid}"

[discovery]
workers = 2
unordered = true

[search]
recency_half_life_hours = 24

[logs]
debug = true
debug_level = "debug"
`)
	cfg, err := LoadUserConfig()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.ScanLimit)
	assert.Equal(t, 2, GetDiscoverySettings().Workers)
	assert.True(t, GetDiscoverySettings().Unordered)
	assert.Equal(t, 24.0, GetSearchSettings().RecencyHalfLifeHours)

	logs := GetLogSettings()
	assert.True(t, logs.Debug)
	assert.Equal(t, "debug", logs.DebugLevel)
	assert.Equal(t, "json", logs.DebugFormat)
}

func TestLoadParseErrorCachesDefaults(t *testing.T) {
	dir := useHome(t)
	writeConfig(t, dir, "scan_limit = [oops")

	cfg, err := LoadUserConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config.toml parse error")
	require.NotNil(t, cfg)
	assert.Zero(t, cfg.ScanLimit)

	again, err := LoadUserConfig()
	require.NoError(t, err)
	assert.Same(t, cfg, again)
}

func TestReloadPicksUpChanges(t *testing.T) {
	dir := useHome(t)
	writeConfig(t, dir, "result_limit = 5")
	cfg, err := LoadUserConfig()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.ResultLimit)

	writeConfig(t, dir, "result_limit = 9")
	cfg, err = ReloadUserConfig()
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.ResultLimit)
}

func TestSaveUserConfigRoundTrip(t *testing.T) {
	dir := useHome(t)
	in := &UserConfig{ScanLimit: 123, Theme: "light"}
	in.History.MaxEntries = 42
	require.NoError(t, SaveUserConfig(in))

	info, err := os.Stat(filepath.Join(dir, ConfigFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	_, err = os.Stat(filepath.Join(dir, ConfigFileName+".tmp"))
	assert.True(t, os.IsNotExist(err))

	out, err := LoadUserConfig()
	require.NoError(t, err)
	assert.Equal(t, 123, out.ScanLimit)
	assert.Equal(t, "light", GetTheme())
	assert.Equal(t, 42, GetHistorySettings().MaxEntries)
}

func TestCreateExampleConfig(t *testing.T) {
	dir := useHome(t)
	path, created, err := CreateExampleConfig()
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, filepath.Join(dir, ConfigFileName), path)

	var cfg UserConfig
	_, err = toml.DecodeFile(path, &cfg)
	require.NoError(t, err, "example config must be valid TOML")

	_, created, err = CreateExampleConfig()
	require.NoError(t, err)
	assert.False(t, created)
}

func TestDebugEnvEnablesLogging(t *testing.T) {
	useHome(t)
	t.Setenv(EnvDebug, "1")
	assert.True(t, GetLogSettings().Debug)
}

func TestThemeFallsBackToDark(t *testing.T) {
	dir := useHome(t)
	writeConfig(t, dir, `theme = "neon"`)
	assert.Equal(t, "dark", GetTheme())
	assert.Equal(t, "dark", ResolveTheme())
}

func TestResolve(t *testing.T) {
	env := func(m map[string]string) func(string) string {
		return func(k string) string { return m[k] }
	}

	tests := []struct {
		name     string
		cfg      *UserConfig
		env      map[string]string
		want     Settings
		wantErrs int
	}{
		{
			name: "defaults",
			want: Settings{
				SessionsDir:   DefaultSessionsDir(),
				ScanLimit:     400,
				ResultLimit:   20,
				ResumeCommand: "codex --search resume {uuid}",
			},
		},
		{
			name: "file values",
			cfg:  &UserConfig{SessionsDir: "/s", ScanLimit: 10, ResultLimit: 3, ResumeCommand: "x {uuid}"},
			want: Settings{SessionsDir: "/s", ScanLimit: 10, ResultLimit: 3, ResumeCommand: "x {uuid}"},
		},
		{
			name: "env beats file",
			cfg:  &UserConfig{SessionsDir: "/s", ScanLimit: 10},
			env: map[string]string{
				EnvSessionsDir: "/env",
				EnvScanLimit:   "77",
				EnvResultLimit: "4",
				EnvResume:      "y {uuid}",
			},
			want: Settings{SessionsDir: "/env", ScanLimit: 77, ResultLimit: 4, ResumeCommand: "y {uuid}"},
		},
		{
			name: "legacy names",
			env: map[string]string{
				LegacyEnvScanLimit: "12",
				LegacyEnvResume:    "old {uuid}",
			},
			want: Settings{SessionsDir: DefaultSessionsDir(), ScanLimit: 12, ResultLimit: 20, ResumeCommand: "old {uuid}"},
		},
		{
			name: "new name wins over legacy",
			env: map[string]string{
				EnvScanLimit:       "5",
				LegacyEnvScanLimit: "12",
			},
			want: Settings{SessionsDir: DefaultSessionsDir(), ScanLimit: 5, ResultLimit: 20, ResumeCommand: DefaultResumeCommand},
		},
		{
			name: "malformed numbers reported",
			cfg:  &UserConfig{ScanLimit: 9},
			env: map[string]string{
				EnvScanLimit:   "lots",
				EnvResultLimit: "-1",
			},
			want:     Settings{SessionsDir: DefaultSessionsDir(), ScanLimit: 9, ResultLimit: 20, ResumeCommand: DefaultResumeCommand},
			wantErrs: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, errs := Resolve(tt.cfg, env(tt.env))
			assert.Equal(t, tt.want, got)
			assert.Len(t, errs, tt.wantErrs)
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x"), ExpandPath("~/x"))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, "/abs", ExpandPath("/abs"))
	assert.Equal(t, "~user/x", ExpandPath("~user/x"))
}
