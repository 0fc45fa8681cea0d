package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/asheshgoplani/session-search/internal/history"
	"github.com/asheshgoplani/session-search/internal/ui"
)

// runHistory lists recent resumes: session-search history [--json] [-n N]
func (a *app) runHistory(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	jsonOut := fs.Bool("json", false, "output as JSON")
	n := fs.Int("n", 20, "number of entries")
	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		NewCLIOutput(false, a.stdout, a.stderr).Error(err.Error(), ErrCodeInvalidArgs)
		return 2
	}
	out := NewCLIOutput(*jsonOut, a.stdout, a.stderr)

	db, err := openHistory()
	if err != nil {
		out.Error(fmt.Sprintf("failed to open history: %v", err), ErrCodeInternal)
		return 1
	}
	defer db.Close()

	entries, err := db.Recent(ctx, *n)
	if err != nil {
		out.Error(err.Error(), ErrCodeInternal)
		return 1
	}
	if entries == nil {
		entries = []history.Entry{}
	}

	var b strings.Builder
	if len(entries) == 0 {
		b.WriteString("No resumes recorded yet.\n")
	}
	now := a.now()
	for _, e := range entries {
		mark := ""
		if e.DryRun {
			mark = " (dry run)"
		}
		fmt.Fprintf(&b, "%s\t%s\t%s%s\n", ui.FormatDate(e.At), ui.RelativeTime(e.At, now), e.SessionID, mark)
		if e.Query != "" {
			fmt.Fprintf(&b, "    query: %s\n", e.Query)
		}
		fmt.Fprintf(&b, "    %s\n", e.Command)
	}
	if err := out.Print(b.String(), entries); err != nil {
		out.Error(err.Error(), ErrCodeInternal)
		return 1
	}
	return 0
}
