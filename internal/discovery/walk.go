package discovery

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SessionExt is the extension of session files.
const SessionExt = ".jsonl"

// walkNewestFirst visits session files under root in descending name order
// at every level, so YYYY/MM/DD stores are seen newest day first. Inside a
// directory, files come before subdirectories. visit returns false to stop.
func walkNewestFirst(ctx context.Context, root string, maxDepth int, visit func(path string) bool) error {
	_, err := walkDir(ctx, root, 0, maxDepth, visit)
	return err
}

func walkDir(ctx context.Context, dir string, depth, maxDepth int, visit func(string) bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if depth == 0 {
			return false, err
		}
		discoveryLog.Debug("discovery_dir_unreadable", "path", dir, "error", err.Error())
		return true, nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() > entries[j].Name() })

	var dirs []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		full := filepath.Join(dir, name)
		if e.IsDir() {
			dirs = append(dirs, full)
			continue
		}
		if !e.Type().IsRegular() || !strings.EqualFold(filepath.Ext(name), SessionExt) {
			continue
		}
		if !visit(full) {
			return false, nil
		}
	}
	if depth+1 >= maxDepth {
		return true, nil
	}
	for _, d := range dirs {
		more, err := walkDir(ctx, d, depth+1, maxDepth, visit)
		if err != nil || !more {
			return more, err
		}
	}
	return true, nil
}

// CollectPaths returns up to opts.ScanLimit session files, newest first.
func CollectPaths(ctx context.Context, opts Options) ([]string, error) {
	opts.applyDefaults()
	if err := checkRoot(opts.Root); err != nil {
		return nil, err
	}
	var paths []string
	err := walkNewestFirst(ctx, opts.Root, opts.MaxDepth, func(p string) bool {
		paths = append(paths, p)
		return len(paths) < opts.ScanLimit
	})
	return paths, err
}
