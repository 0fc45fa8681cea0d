package ui

import (
	"context"
	"log/slog"
	"sync"

	dark "github.com/thiagokokada/dark-mode-go"
)

// ThemeWatcher follows OS dark mode changes when theme = "system".
type ThemeWatcher struct {
	changeCh  chan bool // true means dark; latest value wins
	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewThemeWatcher starts watching. It returns nil when the platform
// cannot report changes.
func NewThemeWatcher(parent context.Context) *ThemeWatcher {
	ctx, cancel := context.WithCancel(parent)
	events, errs, err := dark.WatchDarkMode(ctx)
	if err != nil {
		cancel()
		uiLog.Warn("theme_watcher_init_failed", slog.String("error", err.Error()))
		return nil
	}
	tw := &ThemeWatcher{
		changeCh: make(chan bool, 1),
		closeCh:  make(chan struct{}),
	}
	go tw.watch(ctx, cancel, events, errs)
	return tw
}

func (tw *ThemeWatcher) watch(ctx context.Context, cancel context.CancelFunc, events <-chan bool, errs <-chan error) {
	defer cancel()
	for {
		select {
		case <-tw.closeCh:
			return
		case <-ctx.Done():
			return
		case isDark, ok := <-events:
			if !ok {
				return
			}
			tw.offer(isDark)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				uiLog.Warn("theme_watcher_error", slog.String("error", err.Error()))
			}
		}
	}
}

// offer replaces any unread value with the newest one.
func (tw *ThemeWatcher) offer(isDark bool) {
	select {
	case tw.changeCh <- isDark:
		return
	default:
	}
	select {
	case <-tw.changeCh:
	default:
	}
	select {
	case tw.changeCh <- isDark:
	default:
	}
}

// Changes delivers dark mode transitions.
func (tw *ThemeWatcher) Changes() <-chan bool { return tw.changeCh }

// Close stops the watcher. Safe to call more than once.
func (tw *ThemeWatcher) Close() {
	tw.closeOnce.Do(func() { close(tw.closeCh) })
}
