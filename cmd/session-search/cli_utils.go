package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
)

// normalizeArgs moves flags in front of positional arguments. The flag
// package stops at the first non-flag, so "gold coin --json" would
// otherwise search for "gold coin --json".
func normalizeArgs(fs *flag.FlagSet, args []string) []string {
	boolFlags := make(map[string]bool)
	fs.VisitAll(func(f *flag.Flag) {
		if bf, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && bf.IsBoolFlag() {
			boolFlags[f.Name] = true
		}
	})

	var flags, positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			positional = append(positional, arg)
			continue
		}
		flags = append(flags, arg)
		name := strings.TrimLeft(arg, "-")
		if strings.Contains(name, "=") {
			continue
		}
		if !boolFlags[name] && i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}
	return append(flags, positional...)
}

// CLIOutput writes either human text or JSON.
type CLIOutput struct {
	jsonMode bool
	out      io.Writer
	errOut   io.Writer
}

// NewCLIOutput creates an output handler.
func NewCLIOutput(jsonMode bool, out, errOut io.Writer) *CLIOutput {
	return &CLIOutput{jsonMode: jsonMode, out: out, errOut: errOut}
}

// Print writes human text or the JSON value.
func (c *CLIOutput) Print(human string, data any) error {
	if c.jsonMode {
		return c.printJSON(data)
	}
	_, err := io.WriteString(c.out, human)
	return err
}

// Success prints a confirmation line.
func (c *CLIOutput) Success(message string, data any) error {
	if c.jsonMode {
		return c.printJSON(data)
	}
	_, err := fmt.Fprintf(c.out, "%s %s\n", successSymbol, message)
	return err
}

// Error reports a failure: a JSON object under --json, else on stderr.
func (c *CLIOutput) Error(message, code string) {
	if c.jsonMode {
		_ = c.printJSON(map[string]any{
			"success": false,
			"error":   message,
			"code":    code,
		})
		return
	}
	fmt.Fprintf(c.errOut, "Error: %s\n", message)
}

// Notice writes an informational line to stderr so stdout stays clean.
func (c *CLIOutput) Notice(format string, args ...any) {
	fmt.Fprintf(c.errOut, format+"\n", args...)
}

func (c *CLIOutput) printJSON(data any) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format JSON: %w", err)
	}
	_, err = fmt.Fprintln(c.out, string(b))
	return err
}

const successSymbol = "✓"

// Error codes for JSON output.
const (
	ErrCodeInvalidArgs = "INVALID_ARGS"
	ErrCodeNotFound    = "NOT_FOUND"
	ErrCodeInternal    = "INTERNAL"
)
