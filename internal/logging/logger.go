package logging

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Components used as the "component" attribute on every record.
const (
	CompDiscovery = "discovery"
	CompSearch    = "search"
	CompLive      = "live"
	CompUI        = "ui"
	CompCLI       = "cli"
	CompConfig    = "config"
	CompHistory   = "history"
	CompResume    = "resume"
)

// LogFileName is the rotated log written inside Config.LogDir.
const LogFileName = "debug.log"

// Config holds logging configuration.
type Config struct {
	// LogDir is where debug.log lives (e.g. ~/.session-search)
	LogDir string

	// Level is the minimum level: "debug", "info", "warn", "error"
	Level string

	// Format is "json" (default) or "text"
	Format string

	// MaxSizeMB before rotation (default: 10)
	MaxSizeMB int

	// MaxBackups to keep (default: 3)
	MaxBackups int

	// MaxAgeDays to keep rotated files (default: 7)
	MaxAgeDays int

	Compress bool

	// RingBufferSize in bytes (default: 2MB)
	RingBufferSize int

	// AggregateIntervalSecs between event_summary flushes (default: 30)
	AggregateIntervalSecs int

	// PprofEnabled serves net/http/pprof on localhost:6060
	PprofEnabled bool

	// Debug turns logging on even without an explicit LogDir
	Debug bool
}

func (c *Config) applyDefaults() {
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 10
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = 3
	}
	if c.MaxAgeDays <= 0 {
		c.MaxAgeDays = 7
	}
	if c.RingBufferSize <= 0 {
		c.RingBufferSize = 2 * 1024 * 1024
	}
	if c.AggregateIntervalSecs <= 0 {
		c.AggregateIntervalSecs = 30
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

type state struct {
	logger *slog.Logger
	ring   *RingBuffer
	agg    *Aggregator
	file   *lumberjack.Logger
}

var (
	mu      sync.RWMutex
	current *state
)

var discard = slog.New(slog.NewJSONHandler(io.Discard, nil))

// Init installs the global logger. Without Debug and without a LogDir
// everything is discarded so nothing reaches the terminal UI.
func Init(cfg Config) {
	cfg.applyDefaults()

	mu.Lock()
	defer mu.Unlock()

	if !cfg.Debug || cfg.LogDir == "" {
		current = &state{
			logger: discard,
			ring:   NewRingBuffer(1024),
			agg:    NewAggregator(nil, cfg.AggregateIntervalSecs),
		}
		return
	}

	file := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, LogFileName),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	ring := NewRingBuffer(cfg.RingBufferSize)
	out := io.MultiWriter(file, ring)

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	var handler slog.Handler = slog.NewJSONHandler(out, opts)
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	}
	logger := slog.New(handler)

	agg := NewAggregator(logger, cfg.AggregateIntervalSecs)
	agg.Start()

	current = &state{logger: logger, ring: ring, agg: agg, file: file}

	if cfg.PprofEnabled {
		startPprof()
	}
}

// Logger returns the global logger, or a discarding one before Init.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if current == nil {
		return discard
	}
	return current.logger
}

// ForComponent returns a logger tagged with component. The handler is
// resolved at log time, so package-level loggers declared before Init
// still write to the configured destination.
func ForComponent(name string) *slog.Logger {
	return slog.New(&componentHandler{component: name})
}

type componentHandler struct {
	component string
	attrs     []slog.Attr
	groups    []string
}

func (h *componentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return Logger().Handler().Enabled(ctx, level)
}

func (h *componentHandler) Handle(ctx context.Context, r slog.Record) error {
	handler := Logger().Handler().WithAttrs([]slog.Attr{slog.String("component", h.component)})
	if len(h.attrs) > 0 {
		handler = handler.WithAttrs(h.attrs)
	}
	for _, g := range h.groups {
		handler = handler.WithGroup(g)
	}
	return handler.Handle(ctx, r)
}

func (h *componentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *componentHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.groups = append(append([]string{}, h.groups...), name)
	return &next
}

// Aggregate counts a high-frequency event; the count is emitted later as a
// single event_summary record.
func Aggregate(component, event string, fields ...slog.Attr) {
	mu.RLock()
	s := current
	mu.RUnlock()
	if s != nil && s.agg != nil {
		s.agg.Record(component, event, fields...)
	}
}

// DumpRingBuffer writes recent log output to path.
func DumpRingBuffer(path string) error {
	mu.RLock()
	s := current
	mu.RUnlock()
	if s == nil || s.ring == nil {
		return nil
	}
	return s.ring.DumpToFile(path)
}

// Shutdown flushes pending summaries and closes the log file.
func Shutdown() {
	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		return
	}
	if current.agg != nil {
		current.agg.Stop()
	}
	if current.file != nil {
		_ = current.file.Close()
	}
	current = nil
}
