// Package resume turns a command template and a session id into a
// process and runs it.
package resume

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/asheshgoplani/session-search/internal/logging"
)

var resumeLog = logging.ForComponent(logging.CompResume)

// Placeholder is replaced by the session id.
const Placeholder = "{uuid}"

var (
	// ErrEmptyCommand means the template resolved to no program.
	ErrEmptyCommand = errors.New("resume command is empty")

	// ErrMissingPlaceholder is a warning: the template lacks {uuid}, so
	// the id was appended as the final argument.
	ErrMissingPlaceholder = errors.New("resume command has no " + Placeholder + " placeholder")
)

// Resolve substitutes id into template. When the placeholder is absent
// the id is appended and ErrMissingPlaceholder is returned alongside the
// usable command. An id with shell metacharacters is single-quoted so it
// stays one argument.
func Resolve(template, id string) (string, error) {
	template = strings.TrimSpace(template)
	if template == "" {
		return "", ErrEmptyCommand
	}
	arg := quoteArg(id)
	if !strings.Contains(template, Placeholder) {
		return template + " " + arg, ErrMissingPlaceholder
	}
	return strings.ReplaceAll(template, Placeholder, arg), nil
}

// quoteArg leaves plain ids alone and single-quotes anything else.
func quoteArg(s string) string {
	if s == "" {
		return "''"
	}
	plain := strings.IndexFunc(s, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return false
		case strings.ContainsRune("-_.:/=@+,%", r):
			return false
		}
		return true
	}) < 0
	if plain {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Split parses a resolved command into argv with shell quoting rules.
func Split(command string) ([]string, error) {
	args, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("failed to parse resume command: %w", err)
	}
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}
	return args, nil
}

// Stdio is wired to the child process. Nil fields use the process's own.
type Stdio struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// Command builds the child process for template and id without starting it.
func Command(ctx context.Context, template, id string, stdio Stdio) (*exec.Cmd, error) {
	resolved, err := Resolve(template, id)
	if err != nil && !errors.Is(err, ErrMissingPlaceholder) {
		return nil, err
	}
	if err != nil {
		resumeLog.Warn("resume_placeholder_missing", "template", template)
	}
	args, err := Split(resolved)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if stdio.In != nil {
		cmd.Stdin = stdio.In
	}
	if stdio.Out != nil {
		cmd.Stdout = stdio.Out
	}
	if stdio.Err != nil {
		cmd.Stderr = stdio.Err
	}
	return cmd, nil
}

// Run executes the resolved command and waits for it.
func Run(ctx context.Context, template, id string, stdio Stdio) error {
	cmd, err := Command(ctx, template, id, stdio)
	if err != nil {
		return err
	}
	resumeLog.Info("resume_exec", "program", cmd.Path, "session_id", id)
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("resume command failed with status %d: %w", exitErr.ExitCode(), err)
		}
		return fmt.Errorf("resume command failed: %w", err)
	}
	return nil
}
