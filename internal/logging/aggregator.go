package logging

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

type eventKey struct {
	component string
	event     string
}

type eventCount struct {
	count  int64
	first  time.Time
	fields []slog.Attr
}

// Aggregator counts repeated events (a skipped file per unreadable session,
// a discarded scoring pass per keystroke) and periodically logs one
// event_summary per distinct event instead of one line per occurrence.
type Aggregator struct {
	logger   *slog.Logger
	interval time.Duration

	mu     sync.Mutex
	counts map[eventKey]*eventCount

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewAggregator flushes every intervalSecs. A nil logger drops everything.
func NewAggregator(logger *slog.Logger, intervalSecs int) *Aggregator {
	if intervalSecs <= 0 {
		intervalSecs = 30
	}
	return &Aggregator{
		logger:   logger,
		interval: time.Duration(intervalSecs) * time.Second,
		counts:   make(map[eventKey]*eventCount),
		stop:     make(chan struct{}),
	}
}

// Start launches the flush loop.
func (a *Aggregator) Start() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.Flush()
			case <-a.stop:
				return
			}
		}
	}()
}

// Stop ends the flush loop and writes whatever is pending. Safe to call twice.
func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() { close(a.stop) })
	a.wg.Wait()
	a.Flush()
}

// Record counts one occurrence. The most recent non-empty fields are kept
// as context for the summary.
func (a *Aggregator) Record(component, event string, fields ...slog.Attr) {
	a.mu.Lock()
	defer a.mu.Unlock()

	k := eventKey{component: component, event: event}
	c, ok := a.counts[k]
	if !ok {
		c = &eventCount{first: time.Now()}
		a.counts[k] = c
	}
	c.count++
	if len(fields) > 0 {
		c.fields = fields
	}
}

// Flush emits one summary per recorded event and resets the counters.
func (a *Aggregator) Flush() {
	a.mu.Lock()
	pending := a.counts
	a.counts = make(map[eventKey]*eventCount)
	a.mu.Unlock()

	if a.logger == nil || len(pending) == 0 {
		return
	}

	keys := make([]eventKey, 0, len(pending))
	for k := range pending {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].component != keys[j].component {
			return keys[i].component < keys[j].component
		}
		return keys[i].event < keys[j].event
	})

	for _, k := range keys {
		c := pending[k]
		args := []any{
			slog.String("component", k.component),
			slog.String("event", k.event),
			slog.Int64("count", c.count),
			slog.Duration("since", time.Since(c.first).Round(time.Millisecond)),
		}
		for _, f := range c.fields {
			args = append(args, f)
		}
		a.logger.Info("event_summary", args...)
	}
}
