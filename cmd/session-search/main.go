package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/asheshgoplani/session-search/internal/config"
	"github.com/asheshgoplani/session-search/internal/logging"
)

const Version = "0.4.0"

var cliLog = logging.ForComponent(logging.CompCLI)

// app carries the process environment so tests can run commands in-process.
type app struct {
	stdout io.Writer
	stderr io.Writer
	stdin  io.Reader
	getenv func(string) string
	now    func() time.Time
	getwd  func() (string, error)
	// isTTY reports whether stdin and stdout are both terminals.
	isTTY func() bool
	// stdoutTTY decides whether list output uses ANSI bold.
	stdoutTTY func() bool
}

func newApp() *app {
	return &app{
		stdout: os.Stdout,
		stderr: os.Stderr,
		stdin:  os.Stdin,
		getenv: os.Getenv,
		now:    time.Now,
		getwd:  os.Getwd,
		isTTY: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
		},
		stdoutTTY: func() bool { return term.IsTerminal(int(os.Stdout.Fd())) },
	}
}

func main() {
	a := newApp()
	initColorProfile(a.getenv)

	shutdown := initLogging()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := a.run(ctx, os.Args[1:])
	stop()
	shutdown()
	os.Exit(code)
}

// run dispatches subcommands and returns the exit code.
func (a *app) run(ctx context.Context, args []string) int {
	if len(args) > 0 {
		switch args[0] {
		case "history":
			return a.runHistory(ctx, args[1:])
		case "config":
			return a.runConfig(args[1:])
		case "version", "--version", "-v":
			fmt.Fprintf(a.stdout, "session-search v%s\n", Version)
			return 0
		case "help", "--help", "-h":
			a.printHelp()
			return 0
		}
	}
	return a.runSearch(ctx, args)
}

func (a *app) printHelp() {
	fmt.Fprint(a.stdout, `session-search: find and resume past sessions

Usage:
  session-search [flags] [query...]
  session-search history [--json] [-n N]
  session-search config path|show|init

Flags:
  --list              print results as text (no TUI)
  --json              print results as JSON (no TUI)
  --no-tui            disable the TUI without choosing an output format
  --cwd               only sessions related to the current directory
  -l, --limit N       number of results
  --scan-limit N      maximum session files to read
  --sessions-dir DIR  session store root
  --resume-command T  command run on selection, {uuid} is the session id
  --preview-limit N   preview length in characters
  --dry-run           print the resume command instead of running it
  --bench             time the search and print JSON metrics
  --bench-iters N     benchmark iterations (default 5)
`)
}

// initColorProfile picks the lipgloss colour profile.
// SESSION_SEARCH_COLOR: truecolor, 256, 16, none.
func initColorProfile(getenv func(string) string) {
	switch strings.ToLower(getenv(config.EnvColor)) {
	case "truecolor", "true", "24bit":
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	case "256", "ansi256":
		lipgloss.SetColorProfile(termenv.ANSI256)
		return
	case "16", "ansi", "basic":
		lipgloss.SetColorProfile(termenv.ANSI)
		return
	case "none", "off", "ascii":
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}

	if ct := getenv("COLORTERM"); ct == "truecolor" || ct == "24bit" {
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	}
	termName := getenv("TERM")
	for _, t := range []string{"256color", "xterm-direct", "alacritty", "kitty", "wezterm"} {
		if strings.Contains(termName, t) {
			lipgloss.SetColorProfile(termenv.TrueColor)
			return
		}
	}
	if getenv("WT_SESSION") != "" || getenv("ITERM_SESSION_ID") != "" {
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	}
	lipgloss.SetColorProfile(termenv.ANSI256)
}

// initLogging wires debug.log from [logs] and SESSION_SEARCH_DEBUG, and
// installs the SIGUSR1 ring buffer dump. The returned func flushes logs.
func initLogging() func() {
	home, err := config.GetHomeDir()
	if err != nil {
		return func() {}
	}
	if _, err := config.LoadUserConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
	}
	ls := config.GetLogSettings()
	logging.Init(logging.Config{
		LogDir:                home,
		Level:                 ls.DebugLevel,
		Format:                ls.DebugFormat,
		MaxSizeMB:             ls.DebugMaxMB,
		MaxBackups:            ls.DebugBackups,
		MaxAgeDays:            ls.DebugRetentionDays,
		Compress:              ls.DebugCompress,
		RingBufferSize:        ls.RingBufferMB * 1024 * 1024,
		AggregateIntervalSecs: ls.AggregateIntervalS,
		PprofEnabled:          ls.PprofEnabled,
		Debug:                 ls.Debug,
	})
	if !ls.Debug {
		return logging.Shutdown
	}

	cliLog.Info("process_started", slog.Int("pid", os.Getpid()), slog.String("version", Version))

	usr1 := make(chan os.Signal, 1)
	signal.Notify(usr1, syscall.SIGUSR1)
	go func() {
		for range usr1 {
			path := filepath.Join(home, fmt.Sprintf("crash-dump-%d.jsonl", time.Now().Unix()))
			if err := logging.DumpRingBuffer(path); err != nil {
				cliLog.Error("crash_dump_failed", slog.String("error", err.Error()))
			} else {
				cliLog.Info("crash_dump_written", slog.String("path", path))
			}
		}
	}()
	return func() {
		signal.Stop(usr1)
		logging.Shutdown()
	}
}
