// Package live keeps a ranked result list current while sessions stream
// in and the query changes. Scoring runs on one background goroutine; the
// rendering side only ever reads the last published View.
package live

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/asheshgoplani/session-search/internal/logging"
	"github.com/asheshgoplani/session-search/internal/search"
	"github.com/asheshgoplani/session-search/internal/session"
)

var liveLog = logging.ForComponent(logging.CompLive)

// DefaultDebounce is the pause between a change and the pass it triggers.
const DefaultDebounce = 30 * time.Millisecond

// RankFunc matches search.Rank.
type RankFunc func(ctx context.Context, query string, corpus []*session.Session, opts search.RankOptions) ([]session.SearchResult, error)

// Options configure a Search.
type Options struct {
	Limit    int
	Weights  search.Weights
	Debounce time.Duration

	// Now anchors recency for each pass. Defaults to time.Now.
	Now func() time.Time

	// Rank defaults to search.Rank.
	Rank RankFunc
}

// View is an immutable published result set.
type View struct {
	Results []session.SearchResult
	// Query and Generation identify the query the results were computed for.
	Query      string
	Generation uint64
	// Corpus is the number of sessions the pass scored.
	Corpus int
	At     time.Time
}

// Snapshot is what a renderer pulls on every tick.
type Snapshot struct {
	View

	Discovering bool
	Scoring     bool
	// Stale is set while the published results belong to an older query.
	Stale bool
	// Total is the current corpus size.
	Total int
}

// Status folds the flags into the single value a status line shows.
func (s Snapshot) Status() session.Status {
	switch {
	case s.Discovering:
		return session.StatusDiscovering
	case s.Scoring || s.Stale:
		return session.StatusScoring
	}
	return session.StatusIdle
}

// Search owns the growing corpus and the current query.
type Search struct {
	opts Options

	mu          sync.Mutex
	corpus      []*session.Session
	query       string
	gen         uint64
	queryDirty  bool
	corpusDirty bool

	// Mirrors read by Snapshot without taking mu.
	curGen      atomic.Uint64
	// settledGen is the newest generation whose pass failed. Its results
	// will never arrive, so it does not count as stale.
	settledGen  atomic.Uint64
	total       atomic.Int64
	scoring     atomic.Bool
	discovering atomic.Bool
	published   atomic.Pointer[View]

	wake    chan struct{}
	updates chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	pumps   sync.WaitGroup
}

// New starts the scoring loop. An empty corpus with an empty query is
// published immediately.
func New(opts Options) *Search {
	if opts.Limit <= 0 {
		opts.Limit = search.DefaultLimit
	}
	if opts.Debounce < 0 {
		opts.Debounce = 0
	} else if opts.Debounce == 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Rank == nil {
		opts.Rank = search.Rank
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Search{
		opts:    opts,
		wake:    make(chan struct{}, 1),
		updates: make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.published.Store(&View{At: opts.Now()})
	go s.loop()
	return s
}

// Append adds sessions to the corpus and marks it dirty.
func (s *Search) Append(sessions ...*session.Session) {
	if len(sessions) == 0 {
		return
	}
	s.mu.Lock()
	s.corpus = append(s.corpus, sessions...)
	s.corpusDirty = true
	s.total.Store(int64(len(s.corpus)))
	s.mu.Unlock()
	s.signal()
}

// SetQuery replaces the query and returns its generation. Setting the
// same text again is not an edit and keeps the generation.
func (s *Search) SetQuery(q string) uint64 {
	s.mu.Lock()
	if q == s.query {
		gen := s.gen
		s.mu.Unlock()
		return gen
	}
	s.query = q
	s.gen++
	gen := s.gen
	s.queryDirty = true
	s.curGen.Store(gen)
	s.mu.Unlock()
	s.signal()
	return gen
}

// SetDiscovering flags whether sessions are still streaming in.
func (s *Search) SetDiscovering(on bool) { s.discovering.Store(on) }

// Ingest moves up to max sessions from ch into the corpus without
// blocking. It reports how many were taken and whether ch is closed, in
// which case discovery is marked finished.
func (s *Search) Ingest(ch <-chan *session.Session, max int) (int, bool) {
	batch, closed := drain(ch, nil, max)
	s.Append(batch...)
	if closed {
		s.SetDiscovering(false)
	}
	return len(batch), closed
}

// drain appends ready sessions from ch to batch until it holds max
// entries (no cap when max <= 0), ch is empty or ch is closed.
func drain(ch <-chan *session.Session, batch []*session.Session, max int) ([]*session.Session, bool) {
	for max <= 0 || len(batch) < max {
		select {
		case sess, ok := <-ch:
			if !ok {
				return batch, true
			}
			batch = append(batch, sess)
		default:
			return batch, false
		}
	}
	return batch, false
}

// Attach pumps ch into the corpus on its own goroutine, in batches of at
// most batch sessions, until ch closes or the Search is closed.
func (s *Search) Attach(ch <-chan *session.Session, batch int) {
	s.SetDiscovering(true)
	s.pumps.Add(1)
	go func() {
		defer s.pumps.Done()
		for {
			select {
			case <-s.ctx.Done():
				return
			case sess, ok := <-ch:
				if !ok {
					s.SetDiscovering(false)
					return
				}
				sessions, closed := drain(ch, []*session.Session{sess}, batch)
				s.Append(sessions...)
				if closed {
					s.SetDiscovering(false)
					return
				}
			}
		}
	}()
}

// AttachFollow pumps sessions found after startup. It never touches the
// discovering flag.
func (s *Search) AttachFollow(ch <-chan *session.Session) {
	s.pumps.Add(1)
	go func() {
		defer s.pumps.Done()
		for {
			select {
			case <-s.ctx.Done():
				return
			case sess, ok := <-ch:
				if !ok {
					return
				}
				s.Append(sess)
			}
		}
	}()
}

// Snapshot returns the latest published results and status. It never
// blocks on scoring.
func (s *Search) Snapshot() Snapshot {
	v := s.published.Load()
	cur := s.curGen.Load()
	return Snapshot{
		View:        *v,
		Discovering: s.discovering.Load(),
		Scoring:     s.scoring.Load(),
		Stale:       v.Generation != cur && s.settledGen.Load() != cur,
		Total:       int(s.total.Load()),
	}
}

// Updates receives a value after each publication. Sends never block, so
// several publications may collapse into one notification.
func (s *Search) Updates() <-chan struct{} { return s.updates }

// Close stops the loop and the pumps and waits for them.
func (s *Search) Close() {
	s.cancel()
	<-s.done
	s.pumps.Wait()
}

func (s *Search) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// job is the input of one scoring pass.
type job struct {
	query  string
	gen    uint64
	corpus []*session.Session
}

func (s *Search) loop() {
	defer close(s.done)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
		}

		// Edits that land during the debounce share this pass.
		if s.opts.Debounce > 0 {
			timer.Reset(s.opts.Debounce)
			select {
			case <-s.ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}

		j, ok := s.begin()
		if !ok {
			continue
		}
		results, err := s.run(j)
		s.finish(j, results, err)
	}
}

// begin takes a consistent copy of the inputs and clears both dirty flags
// at once, so changes made during the pass trigger exactly one more.
func (s *Search) begin() (job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.queryDirty && !s.corpusDirty {
		return job{}, false
	}
	s.queryDirty, s.corpusDirty = false, false
	s.scoring.Store(true)
	n := len(s.corpus)
	return job{query: s.query, gen: s.gen, corpus: s.corpus[:n:n]}, true
}

func (s *Search) run(j job) (results []session.SearchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scoring panic: %v", r)
			liveLog.Error("live_pass_panic",
				slog.Uint64("generation", j.gen),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()
	return s.opts.Rank(s.ctx, j.query, j.corpus, search.RankOptions{
		Limit:   s.opts.Limit,
		Now:     s.opts.Now(),
		Weights: s.opts.Weights,
	})
}

func (s *Search) finish(j job, results []session.SearchResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scoring.Store(false)
	again := s.queryDirty || s.corpusDirty
	defer func() {
		if again {
			s.signal()
		}
	}()

	switch {
	case err != nil:
		if j.gen == s.gen {
			s.settledGen.Store(j.gen)
		}
		if s.ctx.Err() == nil {
			liveLog.Warn("live_pass_failed", slog.Uint64("generation", j.gen), slog.String("error", err.Error()))
		}
		return
	case j.gen != s.gen:
		logging.Aggregate(logging.CompLive, "live_pass_stale", slog.Uint64("generation", j.gen))
		return
	}

	if prev := s.published.Load(); prev != nil && prev.Generation > j.gen {
		return
	}
	s.published.Store(&View{
		Results:    results,
		Query:      j.query,
		Generation: j.gen,
		Corpus:     len(j.corpus),
		At:         s.opts.Now(),
	})
	liveLog.Debug("live_pass_published",
		slog.Uint64("generation", j.gen),
		slog.Int("corpus", len(j.corpus)),
		slog.Int("results", len(results)))
	select {
	case s.updates <- struct{}{}:
	default:
	}
}
