package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/asheshgoplani/session-search/internal/config"
)

// runConfig handles: session-search config path|show|init
func (a *app) runConfig(args []string) int {
	out := NewCLIOutput(false, a.stdout, a.stderr)
	if len(args) == 0 {
		out.Error("usage: session-search config path|show|init", ErrCodeInvalidArgs)
		return 2
	}

	path, err := config.GetConfigPath()
	if err != nil {
		out.Error(err.Error(), ErrCodeInternal)
		return 1
	}

	switch args[0] {
	case "path":
		fmt.Fprintln(a.stdout, path)
		return 0

	case "show":
		cfg, err := config.ReloadUserConfig()
		if err != nil {
			out.Error(err.Error(), ErrCodeInvalidArgs)
			return 1
		}
		settings, warnings := config.Resolve(cfg, a.getenv)
		for _, w := range warnings {
			out.Notice("Warning: %v", w)
		}
		effective := struct {
			SessionsDir   string                   `toml:"sessions_dir"`
			ScanLimit     int                      `toml:"scan_limit"`
			ResultLimit   int                      `toml:"result_limit"`
			ResumeCommand string                   `toml:"resume_command"`
			Theme         string                   `toml:"theme"`
			Discovery     config.DiscoverySettings `toml:"discovery"`
			Search        config.SearchSettings    `toml:"search"`
			Logs          config.LogSettings       `toml:"logs"`
			History       config.HistorySettings   `toml:"history"`
		}{
			SessionsDir:   settings.SessionsDir,
			ScanLimit:     settings.ScanLimit,
			ResultLimit:   settings.ResultLimit,
			ResumeCommand: settings.ResumeCommand,
			Theme:         config.GetTheme(),
			Discovery:     config.GetDiscoverySettings(),
			Search:        config.GetSearchSettings(),
			Logs:          config.GetLogSettings(),
			History:       config.GetHistorySettings(),
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			fmt.Fprintf(a.stdout, "# %s does not exist; showing defaults\n", path)
		}
		if err := toml.NewEncoder(a.stdout).Encode(effective); err != nil {
			out.Error(err.Error(), ErrCodeInternal)
			return 1
		}
		return 0

	case "init":
		path, created, err := config.CreateExampleConfig()
		if err != nil {
			out.Error(err.Error(), ErrCodeInternal)
			return 1
		}
		if !created {
			out.Notice("%s already exists; left unchanged", path)
			return 0
		}
		_ = out.Success("wrote "+path, nil)
		return 0
	}

	out.Error(fmt.Sprintf("unknown config command %q", args[0]), ErrCodeInvalidArgs)
	return 2
}
