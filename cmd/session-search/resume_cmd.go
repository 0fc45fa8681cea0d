package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/asheshgoplani/session-search/internal/config"
	"github.com/asheshgoplani/session-search/internal/history"
	"github.com/asheshgoplani/session-search/internal/resume"
	"github.com/asheshgoplani/session-search/internal/session"
)

// resumeSession prints (dry run) or executes the resume command and
// records it in the history database.
func (a *app) resumeSession(ctx context.Context, p *plan, s *session.Session, query string, out *CLIOutput) error {
	command, err := resume.Resolve(p.resumeCommand, s.ID)
	if errors.Is(err, resume.ErrMissingPlaceholder) {
		out.Notice("Warning: %v; appending the session id", err)
	} else if err != nil {
		return err
	}

	a.recordHistory(ctx, p, history.Entry{
		SessionID: s.ID,
		Path:      s.Path,
		Label:     s.Label,
		Query:     query,
		Command:   command,
		DryRun:    p.flags.dryRun,
		At:        a.now(),
	})

	if p.flags.dryRun {
		fmt.Fprintln(a.stdout, command)
		return nil
	}
	return resume.Run(ctx, p.resumeCommand, s.ID, resume.Stdio{In: a.stdin, Out: a.stdout, Err: a.stderr})
}

// recordHistory never fails the resume; problems are logged.
func (a *app) recordHistory(ctx context.Context, p *plan, e history.Entry) {
	if !p.historyOn {
		return
	}
	db, err := openHistory()
	if err != nil {
		cliLog.Warn("history_open_failed", slog.String("error", err.Error()))
		return
	}
	defer db.Close()
	if err := db.Record(ctx, e); err != nil {
		cliLog.Warn("history_record_failed", slog.String("error", err.Error()))
		return
	}
	if _, err := db.Prune(ctx, p.historyMax); err != nil {
		cliLog.Warn("history_prune_failed", slog.String("error", err.Error()))
	}
}

func openHistory() (*history.DB, error) {
	home, err := config.GetHomeDir()
	if err != nil {
		return nil, err
	}
	db, err := history.Open(filepath.Join(home, history.FileName))
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
