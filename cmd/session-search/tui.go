package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/asheshgoplani/session-search/internal/clipboard"
	"github.com/asheshgoplani/session-search/internal/config"
	"github.com/asheshgoplani/session-search/internal/discovery"
	"github.com/asheshgoplani/session-search/internal/live"
	"github.com/asheshgoplani/session-search/internal/resume"
	"github.com/asheshgoplani/session-search/internal/session"
	"github.com/asheshgoplani/session-search/internal/ui"
)

func (a *app) runTUI(ctx context.Context, p *plan, out *CLIOutput) error {
	f := p.flags
	var keep func(*session.Session) bool
	if f.cwd {
		wd, err := a.getwd()
		if err != nil {
			return fmt.Errorf("reading current directory: %w", err)
		}
		dir := normalizePath(wd)
		keep = func(s *session.Session) bool {
			return s.CWD != "" && pathsRelated(normalizePath(s.CWD), dir)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	search := live.New(live.Options{
		Limit:    p.limit,
		Weights:  p.weights,
		Debounce: p.debounce,
		Now:      a.now,
	})
	defer search.Close()

	stream, err := discovery.Discover(ctx, p.discovery)
	switch {
	case errors.Is(err, discovery.ErrStoreNotFound):
		out.Notice("sessions directory %s does not exist", p.discovery.Root)
	case err != nil:
		return err
	default:
		defer stream.Close()
		search.Attach(filterSessions(ctx, stream.Sessions(), keep), p.ingestPerTick)

		if p.follow {
			fw, err := discovery.Follow(ctx, p.discovery.Root, discovery.FollowOptions{
				Parse: p.discovery.Parse,
				Known: stream.Seen,
			})
			if err != nil {
				cliLog.Warn("follow_unavailable", slog.String("error", err.Error()))
			} else {
				defer fw.Close()
				search.AttachFollow(filterSessions(ctx, fw.Sessions(), keep))
			}
		}
	}

	ui.InitTheme(config.ResolveTheme())
	var watcher *ui.ThemeWatcher
	if config.GetTheme() == "system" {
		if watcher = ui.NewThemeWatcher(ctx); watcher != nil {
			defer watcher.Close()
		}
	}

	template := p.resumeCommand
	selected, query, err := ui.Run(ctx, ui.Options{
		Search: search,
		Query:  f.query,
		CommandFor: func(s *session.Session) string {
			cmd, _ := resume.Resolve(template, s.ID)
			return cmd
		},
		Copy: func(text string) (string, error) {
			res, err := clipboard.Copy(text, true)
			if err != nil {
				return "", err
			}
			return res.Method, nil
		},
		Tick:  p.tick,
		Now:   a.now,
		Theme: watcher,
	})
	if err != nil {
		return err
	}
	if selected == nil {
		return nil
	}
	// Stop discovery before handing the terminal to the resumed process.
	cancel()
	return a.resumeSession(context.WithoutCancel(ctx), p, selected, query, out)
}

// filterSessions forwards sessions accepted by keep. A nil keep returns
// in unchanged.
func filterSessions(ctx context.Context, in <-chan *session.Session, keep func(*session.Session) bool) <-chan *session.Session {
	if keep == nil {
		return in
	}
	out := make(chan *session.Session)
	go func() {
		defer close(out)
		for s := range in {
			if !keep(s) {
				continue
			}
			select {
			case out <- s:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
