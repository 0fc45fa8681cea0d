// Package discovery turns a date-partitioned store of JSONL session files
// into a stream of *session.Session, newest directories first.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/asheshgoplani/session-search/internal/logging"
	"github.com/asheshgoplani/session-search/internal/session"
)

var discoveryLog = logging.ForComponent(logging.CompDiscovery)

var (
	// ErrStoreNotFound means the sessions root does not exist.
	ErrStoreNotFound = errors.New("session store not found")
	// ErrNotDirectory means the sessions root is not a directory.
	ErrNotDirectory = errors.New("session store is not a directory")
)

// Defaults for Options.
const (
	DefaultScanLimit = 400
	DefaultWorkers   = 4
	DefaultBuffer    = 64
	DefaultMaxDepth  = 8
)

// Options configure a scan.
type Options struct {
	Root string

	// ScanLimit is the maximum number of files considered.
	ScanLimit int

	// Workers parse files in parallel.
	Workers int

	// Buffer is the capacity of the hand-off channel.
	Buffer int

	MaxDepth int

	// Unordered emits sessions as soon as any worker finishes instead of
	// in walk order.
	Unordered bool

	// RateLimit caps files parsed per second. Zero means unlimited.
	RateLimit float64

	Parse ParseOptions
}

func (o *Options) applyDefaults() {
	if o.ScanLimit <= 0 {
		o.ScanLimit = DefaultScanLimit
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.Buffer <= 0 {
		o.Buffer = DefaultBuffer
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	o.Parse.applyDefaults()
}

func checkRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrStoreNotFound, root)
		}
		return fmt.Errorf("stat session store: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}
	return nil
}

// Skip records a file that did not produce a session.
type Skip struct {
	Path   string
	Reason string
}

const maxSkipsKept = 100

// Stream delivers parsed sessions. The channel returned by Sessions is
// closed when the scan is exhausted, the scan limit is hit or the stream
// is closed.
type Stream struct {
	out    chan *session.Session
	cancel context.CancelFunc
	done   chan struct{}

	found   atomic.Int64
	parsed  atomic.Int64
	emitted atomic.Int64
	skipped atomic.Int64

	mu      sync.Mutex
	skips   []Skip
	walkErr error
	paths   map[string]struct{}
}

// Discover starts a scan in the background and returns immediately. Only a
// missing or unreadable root is reported as an error.
func Discover(ctx context.Context, opts Options) (*Stream, error) {
	opts.applyDefaults()
	if err := checkRoot(opts.Root); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		out:    make(chan *session.Session, opts.Buffer),
		cancel: cancel,
		done:   make(chan struct{}),
		paths:  make(map[string]struct{}),
	}
	go s.run(ctx, opts)
	return s, nil
}

// Sessions is the hand-off channel.
func (s *Stream) Sessions() <-chan *session.Session { return s.out }

// Done is closed once every goroutine of the scan has exited.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Found is the number of files enumerated so far.
func (s *Stream) Found() int { return int(s.found.Load()) }

// Parsed is the number of files processed so far, skipped or not.
func (s *Stream) Parsed() int { return int(s.parsed.Load()) }

// Emitted is the number of sessions sent on the channel.
func (s *Stream) Emitted() int { return int(s.emitted.Load()) }

// Skipped is the number of files that produced no session.
func (s *Stream) Skipped() int { return int(s.skipped.Load()) }

// Skips returns the first skipped files with reasons.
func (s *Stream) Skips() []Skip {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Skip(nil), s.skips...)
}

// Err reports a walk failure, if any. It is only meaningful after Done.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.walkErr
}

// Seen reports whether path was enumerated by this scan.
func (s *Stream) Seen(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.paths[path]
	return ok
}

// Close stops the scan without waiting for in-flight workers.
func (s *Stream) Close() { s.cancel() }

// Wait blocks until the scan has fully stopped.
func (s *Stream) Wait() { <-s.done }

type outcome struct {
	path    string
	session *session.Session
	err     error
}

func (s *Stream) run(ctx context.Context, opts Options) {
	defer close(s.done)
	defer close(s.out)
	defer s.cancel()

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	var g errgroup.Group
	g.SetLimit(opts.Workers)

	// In ordered mode each file gets a one-slot channel queued in walk
	// order; the emitter drains slots in that order. The queue capacity
	// bounds how far workers may run ahead of the consumer.
	var (
		slots       chan chan outcome
		emitterDone chan struct{}
	)
	if !opts.Unordered {
		slots = make(chan chan outcome, opts.Workers*2)
		emitterDone = make(chan struct{})
		go func() {
			defer close(emitterDone)
			for slot := range slots {
				s.deliver(ctx, <-slot)
			}
		}()
	}

	walkErr := walkNewestFirst(ctx, opts.Root, opts.MaxDepth, func(path string) bool {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return false
			}
		}
		s.mu.Lock()
		s.paths[path] = struct{}{}
		s.mu.Unlock()
		n := s.found.Add(1)

		if slots == nil {
			g.Go(func() error {
				s.deliver(ctx, s.load(ctx, path, opts.Parse))
				return nil
			})
		} else {
			slot := make(chan outcome, 1)
			select {
			case slots <- slot:
			case <-ctx.Done():
				return false
			}
			g.Go(func() error {
				slot <- s.load(ctx, path, opts.Parse)
				return nil
			})
		}
		return n < int64(opts.ScanLimit)
	})

	_ = g.Wait()
	if slots != nil {
		close(slots)
		<-emitterDone
	}

	if walkErr != nil && !errors.Is(walkErr, context.Canceled) {
		s.mu.Lock()
		s.walkErr = walkErr
		s.mu.Unlock()
		discoveryLog.Warn("discovery_walk_failed", slog.String("root", opts.Root), slog.String("error", walkErr.Error()))
	}
	discoveryLog.Info("discovery_finished",
		slog.String("root", opts.Root),
		slog.Int("found", s.Found()),
		slog.Int("emitted", s.Emitted()),
		slog.Int("skipped", s.Skipped()),
		slog.Bool("cancelled", ctx.Err() != nil))
}

func (s *Stream) load(ctx context.Context, path string, opts ParseOptions) outcome {
	if ctx.Err() != nil {
		return outcome{path: path, err: ctx.Err()}
	}
	sess, err := LoadFile(path, opts)
	return outcome{path: path, session: sess, err: err}
}

func (s *Stream) deliver(ctx context.Context, o outcome) {
	if errors.Is(o.err, context.Canceled) {
		return
	}
	s.parsed.Add(1)
	if o.err != nil {
		s.recordSkip(o.path, o.err)
		return
	}
	select {
	case s.out <- o.session:
		s.emitted.Add(1)
	case <-ctx.Done():
	}
}

func (s *Stream) recordSkip(path string, err error) {
	s.skipped.Add(1)
	s.mu.Lock()
	if len(s.skips) < maxSkipsKept {
		s.skips = append(s.skips, Skip{Path: path, Reason: err.Error()})
	}
	s.mu.Unlock()
	discoveryLog.Debug("discovery_file_skipped", slog.String("path", path), slog.String("reason", err.Error()))
	logging.Aggregate(logging.CompDiscovery, "discovery_file_skipped", slog.String("last_path", path))
}

// Collect drains the stream into a slice. With stopAfter > 0 it stops
// early once that many sessions arrived and closes the stream without
// waiting for the remaining workers.
func Collect(ctx context.Context, s *Stream, stopAfter int) []*session.Session {
	var out []*session.Session
	defer func() {
		if stopAfter > 0 && len(out) >= stopAfter {
			s.Close()
		}
	}()
	for {
		select {
		case sess, ok := <-s.Sessions():
			if !ok {
				return out
			}
			out = append(out, sess)
			if stopAfter > 0 && len(out) >= stopAfter {
				return out
			}
		case <-ctx.Done():
			s.Close()
			return out
		}
	}
}
