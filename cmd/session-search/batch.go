package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/asheshgoplani/session-search/internal/discovery"
	"github.com/asheshgoplani/session-search/internal/search"
	"github.com/asheshgoplani/session-search/internal/session"
	"github.com/asheshgoplani/session-search/internal/ui"
)

// With an empty query only the newest sessions matter. Files are walked
// newest name first, but the recorded activity time can disagree with
// the name, so a margin beyond the limit is read.
const emptyQueryMargin = 32

var boldStyle = lipgloss.NewStyle().Bold(true)

// corpus is one batch scan.
type corpus struct {
	sessions   []*session.Session
	rootExists bool
	// truncated means the scan limit stopped enumeration early.
	truncated bool
	skipped   int
}

func (a *app) loadCorpus(ctx context.Context, opts discovery.Options, cwd string, stopAfter int) (*corpus, error) {
	s, err := discovery.Discover(ctx, opts)
	if errors.Is(err, discovery.ErrStoreNotFound) {
		return &corpus{}, nil
	}
	if err != nil {
		return nil, err
	}
	sessions := discovery.Collect(ctx, s, stopAfter)
	c := &corpus{sessions: sessions, rootExists: true}
	if stopAfter > 0 && len(sessions) >= stopAfter {
		c.truncated = true
	} else {
		s.Wait()
		c.truncated = s.Found() >= opts.ScanLimit
		c.skipped = s.Skipped()
		if err := s.Err(); err != nil {
			cliLog.Warn("search_walk_incomplete", slog.String("error", err.Error()))
		}
	}
	if cwd != "" {
		c.sessions = filterByCWD(c.sessions, cwd)
	}
	return c, nil
}

func (a *app) runBatch(ctx context.Context, p *plan, out *CLIOutput) error {
	f := p.flags
	var cwd string
	if f.cwd {
		wd, err := a.getwd()
		if err != nil {
			return fmt.Errorf("reading current directory: %w", err)
		}
		cwd = wd
	}

	stopAfter := 0
	if f.query == "" && cwd == "" && !p.discovery.Unordered && !f.bench {
		stopAfter = p.limit + emptyQueryMargin
	}

	loadStart := time.Now()
	c, err := a.loadCorpus(ctx, p.discovery, cwd, stopAfter)
	if err != nil {
		return err
	}
	loadTime := time.Since(loadStart)

	if f.bench {
		return a.runBench(ctx, p, c, loadTime, out)
	}

	rank := func(c *corpus) ([]session.SearchResult, error) {
		return search.Rank(ctx, f.query, c.sessions, search.RankOptions{
			Limit:   p.limit,
			Now:     a.now(),
			Weights: p.weights,
		})
	}
	results, err := rank(c)
	if err != nil {
		return err
	}

	if len(results) == 0 && f.query != "" && c.truncated && p.discovery.ScanLimit < p.expandedLimit {
		wide := p.discovery
		wide.ScanLimit = p.expandedLimit
		cliLog.Info("search_auto_widened", slog.Int("from", p.discovery.ScanLimit), slog.Int("to", wide.ScanLimit))
		if c, err = a.loadCorpus(ctx, wide, cwd, 0); err != nil {
			return err
		}
		if results, err = rank(c); err != nil {
			return err
		}
	}

	if f.jsonOut {
		return out.Print("", toJSONResults(results))
	}
	if len(c.sessions) == 0 {
		if c.rootExists {
			out.Notice("no sessions discovered under %s", p.discovery.Root)
		} else {
			out.Notice("sessions directory %s does not exist", p.discovery.Root)
		}
		return nil
	}
	return out.Print(a.formatList(results), nil)
}

// formatList renders two lines per result: a tab-separated header and an
// indented snippet.
func (a *app) formatList(results []session.SearchResult) string {
	now := a.now()
	bold := a.stdoutTTY != nil && a.stdoutTTY()
	var b strings.Builder
	for _, r := range results {
		s := r.Session
		fmt.Fprintf(&b, "%s\t%s\t%s\t%s\t%s (%s)\n",
			s.ID,
			ui.FormatDate(s.Timestamp),
			ui.RelativeTime(s.Timestamp, now),
			timeOfDay(s.Timestamp),
			s.Title(),
			roleLabel(s.PreviewRole))
		snippet := r.Snippet.String()
		if bold {
			snippet = r.Snippet.Render(func(t string) string { return boldStyle.Render(t) })
		}
		b.WriteString("    ")
		b.WriteString(snippet)
		b.WriteString("\n")
	}
	return b.String()
}

func timeOfDay(t time.Time) string {
	if t.IsZero() {
		return "--:--"
	}
	return t.Local().Format("15:04")
}

func roleLabel(r session.Role) string {
	switch r {
	case session.RoleUser:
		return "you"
	case session.RoleAssistant:
		return "assistant"
	}
	return "session"
}

// jsonResult is the --json shape of one hit.
type jsonResult struct {
	ID           string            `json:"id"`
	Path         string            `json:"path"`
	Label        string            `json:"label,omitempty"`
	CWD          string            `json:"cwd,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	Score        float64           `json:"score"`
	Preview      string            `json:"preview"`
	PreviewRole  string            `json:"preview_role"`
	MessageCount int               `json:"message_count"`
	Truncated    bool              `json:"truncated,omitempty"`
	Snippet      string            `json:"snippet"`
	Segments     []session.Segment `json:"segments"`
}

func toJSONResults(results []session.SearchResult) []jsonResult {
	out := make([]jsonResult, 0, len(results))
	for _, r := range results {
		s := r.Session
		segs := r.Snippet.Segments
		if segs == nil {
			segs = []session.Segment{}
		}
		out = append(out, jsonResult{
			ID:           s.ID,
			Path:         s.Path,
			Label:        s.Label,
			CWD:          s.CWD,
			Timestamp:    s.Timestamp,
			Score:        r.Score,
			Preview:      s.Preview,
			PreviewRole:  s.PreviewRole.String(),
			MessageCount: s.MessageCount,
			Truncated:    s.Truncated,
			Snippet:      r.Snippet.String(),
			Segments:     segs,
		})
	}
	return out
}

// filterByCWD keeps sessions whose cwd is an ancestor or descendant of dir.
func filterByCWD(sessions []*session.Session, dir string) []*session.Session {
	dir = normalizePath(dir)
	var out []*session.Session
	for _, s := range sessions {
		if s.CWD != "" && pathsRelated(normalizePath(s.CWD), dir) {
			out = append(out, s)
		}
	}
	return out
}

func normalizePath(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		p = resolved
	}
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	return filepath.Clean(p)
}

func pathsRelated(a, b string) bool {
	return within(a, b) || within(b, a)
}

func within(child, parent string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

type benchRun struct {
	SearchMS float64 `json:"search_ms"`
	TopID    *string `json:"top_id"`
}

type benchReport struct {
	RootExists    bool       `json:"root_exists"`
	SessionsRoot  string     `json:"sessions_root"`
	SessionsCount int        `json:"sessions_count"`
	Skipped       int        `json:"skipped"`
	LoadMS        float64    `json:"load_ms"`
	Query         string     `json:"query"`
	Limit         int        `json:"limit"`
	Iterations    int        `json:"iterations"`
	Runs          []benchRun `json:"runs"`
	AvgSearchMS   float64    `json:"avg_search_ms"`
}

func (a *app) runBench(ctx context.Context, p *plan, c *corpus, load time.Duration, out *CLIOutput) error {
	iters := p.flags.benchIters
	if iters <= 0 {
		iters = 1
	}
	report := benchReport{
		RootExists:    c.rootExists,
		SessionsRoot:  p.discovery.Root,
		SessionsCount: len(c.sessions),
		Skipped:       c.skipped,
		LoadMS:        ms(load),
		Query:         p.flags.query,
		Limit:         p.limit,
		Iterations:    iters,
		Runs:          make([]benchRun, 0, iters),
	}
	var total time.Duration
	for i := 0; i < iters; i++ {
		start := time.Now()
		results, err := search.Rank(ctx, p.flags.query, c.sessions, search.RankOptions{
			Limit:   p.limit,
			Now:     a.now(),
			Weights: p.weights,
		})
		if err != nil {
			return err
		}
		elapsed := time.Since(start)
		total += elapsed
		run := benchRun{SearchMS: ms(elapsed)}
		if len(results) > 0 {
			id := results[0].Session.ID
			run.TopID = &id
		}
		report.Runs = append(report.Runs, run)
	}
	report.AvgSearchMS = ms(total) / float64(iters)
	return out.Print("", report)
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
