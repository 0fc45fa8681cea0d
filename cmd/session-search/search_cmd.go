package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/asheshgoplani/session-search/internal/config"
	"github.com/asheshgoplani/session-search/internal/discovery"
	"github.com/asheshgoplani/session-search/internal/search"
)

// searchFlags holds the top-level command line.
type searchFlags struct {
	list          bool
	jsonOut       bool
	noTUI         bool
	cwd           bool
	dryRun        bool
	bench         bool
	benchIters    int
	limit         int
	scanLimit     int
	previewLimit  int
	sessionsDir   string
	resumeCommand string
	query         string
}

func parseSearchFlags(args []string, errOut io.Writer) (*searchFlags, error) {
	f := &searchFlags{}
	fs := flag.NewFlagSet("session-search", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.BoolVar(&f.list, "list", false, "print results as text")
	fs.BoolVar(&f.jsonOut, "json", false, "print results as JSON")
	fs.BoolVar(&f.noTUI, "no-tui", false, "disable the interactive picker")
	fs.BoolVar(&f.cwd, "cwd", false, "only sessions related to the current directory")
	fs.BoolVar(&f.dryRun, "dry-run", false, "print the resume command instead of running it")
	fs.BoolVar(&f.bench, "bench", false, "time the search and print JSON metrics")
	fs.IntVar(&f.benchIters, "bench-iters", 5, "benchmark iterations")
	fs.IntVar(&f.limit, "limit", 0, "number of results")
	fs.IntVar(&f.limit, "l", 0, "number of results (short)")
	fs.IntVar(&f.scanLimit, "scan-limit", 0, "maximum session files to read")
	fs.IntVar(&f.previewLimit, "preview-limit", 0, "preview length in characters")
	fs.StringVar(&f.sessionsDir, "sessions-dir", "", "session store root")
	fs.StringVar(&f.resumeCommand, "resume-command", "", "command run on selection ({uuid} is the id)")

	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		return nil, err
	}
	if f.limit < 0 || f.scanLimit < 0 || f.previewLimit < 0 || f.benchIters < 0 {
		return nil, errors.New("numeric flags must not be negative")
	}
	f.query = strings.TrimSpace(strings.Join(fs.Args(), " "))
	return f, nil
}

// plan is everything a mode needs, resolved from config, env and flags
// in that order of increasing precedence.
type plan struct {
	flags         *searchFlags
	discovery     discovery.Options
	expandedLimit int
	follow        bool
	limit         int
	weights       search.Weights
	resumeCommand string
	debounce      time.Duration
	ingestPerTick int
	tick          time.Duration
	historyOn     bool
	historyMax    int
}

func (a *app) buildPlan(f *searchFlags) (*plan, []error) {
	cfg, _ := config.LoadUserConfig()
	settings, warnings := config.Resolve(cfg, a.getenv)

	if f.sessionsDir != "" {
		settings.SessionsDir = config.ExpandPath(f.sessionsDir)
	}
	if f.scanLimit > 0 {
		settings.ScanLimit = f.scanLimit
	}
	if f.limit > 0 {
		settings.ResultLimit = f.limit
	}
	if strings.TrimSpace(f.resumeCommand) != "" {
		settings.ResumeCommand = f.resumeCommand
	}

	ds := config.GetDiscoverySettings()
	ss := config.GetSearchSettings()
	hs := config.GetHistorySettings()

	preview := ds.PreviewChars
	if f.previewLimit > 0 {
		preview = f.previewLimit
	}
	p := &plan{
		flags: f,
		discovery: discovery.Options{
			Root:      settings.SessionsDir,
			ScanLimit: settings.ScanLimit,
			Workers:   ds.Workers,
			Buffer:    ds.Buffer,
			MaxDepth:  ds.MaxDepth,
			Unordered: ds.Unordered,
			RateLimit: ds.IndexRateLimit,
			Parse: discovery.ParseOptions{
				BlobLimit:    ds.BlobLimitKB * 1024,
				PreviewChars: preview,
			},
		},
		expandedLimit: max(ds.ExpandedScanLimit, settings.ScanLimit),
		follow:        ds.Follow,
		limit:         settings.ResultLimit,
		weights: search.Weights{
			Recency:  ss.RecencyWeight,
			HalfLife: time.Duration(ss.RecencyHalfLifeHours * float64(time.Hour)),
		},
		resumeCommand: settings.ResumeCommand,
		debounce:      time.Duration(ss.DebounceMS) * time.Millisecond,
		ingestPerTick: ss.IngestPerTick,
		tick:          time.Duration(ss.TickMS) * time.Millisecond,
		historyOn:     !hs.Disabled,
		historyMax:    hs.MaxEntries,
	}
	// A cwd filter discards most sessions, so look further back.
	if f.cwd {
		p.discovery.ScanLimit = p.expandedLimit
	}
	return p, warnings
}

func (a *app) runSearch(ctx context.Context, args []string) int {
	var flagErr strings.Builder
	f, err := parseSearchFlags(args, &flagErr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			a.printHelp()
			return 0
		}
		fmt.Fprint(a.stderr, flagErr.String())
		NewCLIOutput(false, a.stdout, a.stderr).Error(err.Error(), ErrCodeInvalidArgs)
		return 2
	}
	out := NewCLIOutput(f.jsonOut || f.bench, a.stdout, a.stderr)

	p, warnings := a.buildPlan(f)
	for _, w := range warnings {
		out.Notice("Warning: %v", w)
	}
	cliLog.Debug("search_started",
		slog.String("root", p.discovery.Root),
		slog.Int("scan_limit", p.discovery.ScanLimit),
		slog.Int("limit", p.limit),
		slog.Bool("cwd", f.cwd))

	wantsTUI := !(f.jsonOut || f.list || f.noTUI)
	tty := a.isTTY()
	if f.bench || !wantsTUI || !tty {
		if wantsTUI && !tty && !f.bench {
			out.Notice("Interactive picker disabled: standard streams are not attached to a TTY. Falling back to list output.")
		}
		if err := a.runBatch(ctx, p, out); err != nil {
			out.Error(err.Error(), ErrCodeInternal)
			return 1
		}
		return 0
	}

	if err := a.runTUI(ctx, p, out); err != nil {
		out.Error(err.Error(), ErrCodeInternal)
		return 1
	}
	return 0
}
