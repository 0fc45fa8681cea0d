package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/asheshgoplani/session-search/internal/platform"
	"github.com/asheshgoplani/session-search/internal/session"
)

// DefaultFollowDebounce is how long a new file must stay quiet before it
// is parsed.
const DefaultFollowDebounce = 500 * time.Millisecond

// FollowOptions configure Follow.
type FollowOptions struct {
	Parse    ParseOptions
	Debounce time.Duration

	// Known reports files already handled by the initial scan.
	Known func(path string) bool
}

// Follower picks up session files created while the program runs. Each
// file is parsed once, as soon as it holds a qualifying message; later
// writes to it are ignored. Files that already existed when Follow
// started are never picked up, even when they are appended to.
type Follower struct {
	watcher *fsnotify.Watcher
	opts    FollowOptions
	out     chan *session.Session
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	mu     sync.Mutex
	loaded map[string]bool
	timers map[string]*time.Timer

	// existing holds files present in the watched directories at start.
	existing map[string]bool
}

// Follow watches root and its newest date directories.
func Follow(ctx context.Context, root string, opts FollowOptions) (*Follower, error) {
	if err := checkRoot(root); err != nil {
		return nil, err
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultFollowDebounce
	}
	opts.Parse.applyDefaults()
	if warn := platform.CheckWatchSupport(root); warn != "" {
		discoveryLog.Warn("discovery_follow_unreliable", slog.String("root", root), slog.String("warning", warn))
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	start := time.Now()
	ctx, cancel := context.WithCancel(ctx)
	f := &Follower{
		watcher: w,
		opts:    opts,
		out:     make(chan *session.Session, 16),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		loaded:   make(map[string]bool),
		timers:   make(map[string]*time.Timer),
		existing: make(map[string]bool),
	}

	for _, dir := range newestBranch(root, 3) {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			cancel()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
		f.recordExisting(dir, start)
	}
	go f.loop()
	return f, nil
}

// recordExisting marks session files in dir that predate start. Files
// written after start, including any created while the watch was being
// added, stay eligible.
func (f *Follower) recordExisting(dir string, start time.Time) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), SessionExt) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(start) {
			continue
		}
		f.existing[filepath.Join(dir, e.Name())] = true
	}
}

// newestBranch returns root followed by the newest subdirectory at each
// level, up to depth levels (YYYY, MM, DD).
func newestBranch(root string, depth int) []string {
	dirs := []string{root}
	cur := root
	for range depth {
		entries, err := os.ReadDir(cur)
		if err != nil {
			break
		}
		var names []string
		for _, e := range entries {
			if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
				names = append(names, e.Name())
			}
		}
		if len(names) == 0 {
			break
		}
		sort.Sort(sort.Reverse(sort.StringSlice(names)))
		cur = filepath.Join(cur, names[0])
		dirs = append(dirs, cur)
	}
	return dirs
}

// Sessions delivers newly discovered sessions.
func (f *Follower) Sessions() <-chan *session.Session { return f.out }

// Close stops watching and waits for the event loop to exit.
func (f *Follower) Close() {
	f.cancel()
	_ = f.watcher.Close()
	<-f.done
	f.mu.Lock()
	for _, t := range f.timers {
		t.Stop()
	}
	f.timers = nil
	f.mu.Unlock()
}

func (f *Follower) loop() {
	defer close(f.done)
	for {
		select {
		case <-f.ctx.Done():
			return
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			f.handle(ev)
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			discoveryLog.Warn("discovery_follow_error", slog.String("error", err.Error()))
		}
	}
}

func (f *Follower) handle(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			f.watchNewDir(ev.Name)
			return
		}
	}
	if strings.EqualFold(filepath.Ext(ev.Name), SessionExt) {
		f.schedule(ev.Name)
	}
}

// watchNewDir adds a watch on a new date directory and schedules any files
// that were created before the watch existed.
func (f *Follower) watchNewDir(dir string) {
	if err := f.watcher.Add(dir); err != nil {
		discoveryLog.Warn("discovery_follow_add_failed", slog.String("dir", dir), slog.String("error", err.Error()))
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		switch {
		case e.IsDir():
			f.watchNewDir(full)
		case strings.EqualFold(filepath.Ext(e.Name()), SessionExt):
			f.schedule(full)
		}
	}
}

func (f *Follower) schedule(path string) {
	if f.opts.Known != nil && f.opts.Known(path) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.timers == nil || f.loaded[path] || f.existing[path] {
		return
	}
	if t, ok := f.timers[path]; ok {
		t.Reset(f.opts.Debounce)
		return
	}
	f.timers[path] = time.AfterFunc(f.opts.Debounce, func() { f.load(path) })
}

func (f *Follower) load(path string) {
	f.mu.Lock()
	if f.timers == nil {
		f.mu.Unlock()
		return
	}
	delete(f.timers, path)
	f.mu.Unlock()

	sess, err := LoadFile(path, f.opts.Parse)
	if err != nil {
		// Not an error yet: the writer may not have flushed a message.
		if !errors.Is(err, ErrNoMessages) {
			discoveryLog.Debug("discovery_follow_parse_failed", slog.String("path", path), slog.String("error", err.Error()))
		}
		return
	}

	f.mu.Lock()
	if f.loaded[path] {
		f.mu.Unlock()
		return
	}
	f.loaded[path] = true
	f.mu.Unlock()

	select {
	case f.out <- sess:
		discoveryLog.Info("discovery_follow_added", slog.String("path", path), slog.String("id", sess.ID))
	case <-f.ctx.Done():
	}
}
