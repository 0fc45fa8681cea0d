// Package clipboard copies a resolved resume command to the system
// clipboard, falling back to an OSC 52 escape sequence.
package clipboard

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/muesli/termenv"

	"github.com/asheshgoplani/session-search/internal/platform"
)

// ErrNoMethod means neither a native tool nor OSC 52 was usable.
var ErrNoMethod = errors.New("no clipboard method available (install pbcopy, xclip, xsel or wl-copy)")

// Result describes a successful copy.
type Result struct {
	Method string // pbcopy, xclip, osc52, ...
	Bytes  int
}

// tool is a native clipboard command reading from stdin.
type tool struct {
	name string
	args []string
}

// Copy puts text on the clipboard. osc52 allows the terminal escape
// fallback when no native tool works.
func Copy(text string, osc52 bool) (*Result, error) {
	if text == "" {
		return nil, fmt.Errorf("no content to copy")
	}

	t, err := nativeTool(platform.Detect(), os.Getenv, exec.LookPath)
	if err == nil {
		if err = run(t, text); err == nil {
			return &Result{Method: t.name, Bytes: len(text)}, nil
		}
	}

	if !osc52 {
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoMethod, err)
		}
		return nil, ErrNoMethod
	}
	if err := copyOSC52(text); err != nil {
		return nil, fmt.Errorf("OSC 52 clipboard failed: %w", err)
	}
	return &Result{Method: "osc52", Bytes: len(text)}, nil
}

// nativeTool picks a clipboard command for p. Wayland is preferred over
// X11 on Linux.
func nativeTool(p platform.Platform, getenv func(string) string, lookPath func(string) (string, error)) (tool, error) {
	switch p {
	case platform.MacOS:
		return tool{name: "pbcopy"}, nil
	case platform.WSL1, platform.WSL2, platform.Windows:
		return tool{name: "clip.exe"}, nil
	case platform.Linux:
		candidates := []tool{
			{name: "xclip", args: []string{"-selection", "clipboard"}},
			{name: "xsel", args: []string{"--clipboard", "--input"}},
		}
		if getenv("WAYLAND_DISPLAY") != "" {
			candidates = append([]tool{{name: "wl-copy"}}, candidates...)
		}
		for _, c := range candidates {
			if _, err := lookPath(c.name); err == nil {
				return c, nil
			}
		}
		return tool{}, fmt.Errorf("no clipboard command found on Linux")
	default:
		return tool{}, fmt.Errorf("unsupported platform: %s", p)
	}
}

func run(t tool, text string) error {
	cmd := exec.Command(t.name, t.args...)
	cmd.Stdin = strings.NewReader(text)
	return cmd.Run()
}

// copyOSC52 writes the escape sequence to /dev/tty so stdout redirection
// does not swallow it. termenv handles tmux and screen passthrough.
func copyOSC52(text string) error {
	tty, err := os.OpenFile("/dev/tty", os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("cannot open /dev/tty: %w", err)
	}
	defer tty.Close()
	termenv.NewOutput(tty).Copy(text)
	return nil
}
