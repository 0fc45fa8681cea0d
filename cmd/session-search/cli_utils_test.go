package main

import (
	"bytes"
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeArgs(t *testing.T) {
	newFS := func() *flag.FlagSet {
		fs := flag.NewFlagSet("test", flag.ContinueOnError)
		fs.Bool("json", false, "")
		fs.Bool("list", false, "")
		fs.Int("limit", 0, "")
		return fs
	}
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"flags first", []string{"--json", "gold"}, []string{"--json", "gold"}},
		{"bool after query", []string{"gold", "coin", "--json"}, []string{"--json", "gold", "coin"}},
		{"value flag after query", []string{"gold", "--limit", "5"}, []string{"--limit", "5", "gold"}},
		{"equals syntax", []string{"gold", "--limit=5"}, []string{"--limit=5", "gold"}},
		{"double dash", []string{"--list", "--", "--not-a-flag"}, []string{"--list", "--not-a-flag"}},
		{"lone dash is positional", []string{"-", "--json"}, []string{"--json", "-"}},
		{"empty", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeArgs(newFS(), tt.args))
		})
	}
}

func TestCLIOutputModes(t *testing.T) {
	var out, errOut bytes.Buffer
	human := NewCLIOutput(false, &out, &errOut)
	require.NoError(t, human.Print("hello\n", map[string]int{"a": 1}))
	human.Error("boom", ErrCodeInternal)
	assert.Equal(t, "hello\n", out.String())
	assert.Equal(t, "Error: boom\n", errOut.String())

	out.Reset()
	errOut.Reset()
	js := NewCLIOutput(true, &out, &errOut)
	require.NoError(t, js.Print("ignored", map[string]int{"a": 1}))
	js.Error("boom", ErrCodeNotFound)
	assert.Contains(t, out.String(), `"a": 1`)
	assert.Contains(t, out.String(), `"code": "NOT_FOUND"`)
	assert.Empty(t, errOut.String())
}

func TestParseSearchFlags(t *testing.T) {
	var errOut bytes.Buffer
	f, err := parseSearchFlags([]string{"gold", "--json", "coin", "-l", "3", "--scan-limit=50"}, &errOut)
	require.NoError(t, err)
	assert.True(t, f.jsonOut)
	assert.Equal(t, "gold coin", f.query)
	assert.Equal(t, 3, f.limit)
	assert.Equal(t, 50, f.scanLimit)
	assert.Equal(t, 5, f.benchIters)

	_, err = parseSearchFlags([]string{"--limit", "-1"}, &errOut)
	assert.Error(t, err)

	_, err = parseSearchFlags([]string{"--nope"}, &errOut)
	assert.Error(t, err)
}

func TestPathsRelated(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"/work/repo", "/work/repo", true},
		{"/work/repo/sub", "/work/repo", true},
		{"/work", "/work/repo", true},
		{"/work/repo2", "/work/repo", false},
		{"/other", "/work", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, pathsRelated(tt.a, tt.b), "%s vs %s", tt.a, tt.b)
	}
}
