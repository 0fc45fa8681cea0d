package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Settings are the effective top-level values after config.toml and the
// environment are merged. Command-line flags are applied by the caller.
type Settings struct {
	SessionsDir   string
	ScanLimit     int
	ResultLimit   int
	ResumeCommand string
}

// Resolve merges cfg with the environment read through getenv. Env wins
// over the file; the SESSION_SEARCH_ variables win over the legacy ones.
// A malformed numeric variable is reported and otherwise ignored.
func Resolve(cfg *UserConfig, getenv func(string) string) (Settings, []error) {
	if cfg == nil {
		cfg = &UserConfig{}
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	s := Settings{
		SessionsDir:   cfg.SessionsDir,
		ScanLimit:     cfg.ScanLimit,
		ResultLimit:   cfg.ResultLimit,
		ResumeCommand: cfg.ResumeCommand,
	}
	var errs []error

	if v := getenv(EnvSessionsDir); v != "" {
		s.SessionsDir = v
	}
	if name, v := firstSet(getenv, EnvScanLimit, LegacyEnvScanLimit); v != "" {
		n, err := positiveInt(name, v)
		if err != nil {
			errs = append(errs, err)
		} else {
			s.ScanLimit = n
		}
	}
	if v := getenv(EnvResultLimit); v != "" {
		n, err := positiveInt(EnvResultLimit, v)
		if err != nil {
			errs = append(errs, err)
		} else {
			s.ResultLimit = n
		}
	}
	if _, v := firstSet(getenv, EnvResume, LegacyEnvResume); v != "" {
		s.ResumeCommand = v
	}

	if s.SessionsDir == "" {
		s.SessionsDir = DefaultSessionsDir()
	}
	s.SessionsDir = ExpandPath(s.SessionsDir)
	if s.ScanLimit <= 0 {
		s.ScanLimit = DefaultScanLimit
	}
	if s.ResultLimit <= 0 {
		s.ResultLimit = DefaultResultLimit
	}
	if strings.TrimSpace(s.ResumeCommand) == "" {
		s.ResumeCommand = DefaultResumeCommand
	}
	return s, errs
}

func firstSet(getenv func(string) string, names ...string) (string, string) {
	for _, n := range names {
		if v := strings.TrimSpace(getenv(n)); v != "" {
			return n, v
		}
	}
	return "", ""
}

func positiveInt(name, v string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s=%q: expected a positive integer", name, v)
	}
	return n, nil
}
