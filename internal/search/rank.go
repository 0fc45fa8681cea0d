package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/asheshgoplani/session-search/internal/session"
)

// DefaultLimit is the number of results shown when none is configured.
const DefaultLimit = 20

// shardMin is the corpus size below which scoring stays on one goroutine.
const shardMin = 512

// RankOptions configure Rank.
type RankOptions struct {
	// Limit caps the result count; <= 0 means DefaultLimit.
	Limit int
	// Now anchors recency. Zero means time.Now().
	Now     time.Time
	Weights Weights
}

// Less is the total result order: score descending, then timestamp
// descending, then id and path ascending.
func Less(a, b session.SearchResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.Session.Timestamp.Equal(b.Session.Timestamp) {
		return a.Session.Timestamp.After(b.Session.Timestamp)
	}
	if a.Session.ID != b.Session.ID {
		return a.Session.ID < b.Session.ID
	}
	return a.Session.Path < b.Session.Path
}

// Rank scores every session in corpus and returns the best opts.Limit
// results in Less order. The corpus slice is only read. Large corpora are
// scored in parallel shards; the output does not depend on sharding.
func Rank(ctx context.Context, query string, corpus []*session.Session, opts RankOptions) ([]session.SearchResult, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	sc := NewScorer(query, opts.Now, opts.Weights)
	start := time.Now()

	var results []session.SearchResult
	if len(corpus) < shardMin {
		var err error
		results, err = scoreRange(ctx, sc, corpus)
		if err != nil {
			return nil, err
		}
	} else {
		shards := runtime.GOMAXPROCS(0)
		size := (len(corpus) + shards - 1) / shards
		parts := make([][]session.SearchResult, shards)

		g, gctx := errgroup.WithContext(ctx)
		for i := range shards {
			lo := i * size
			if lo >= len(corpus) {
				break
			}
			hi := min(lo+size, len(corpus))
			g.Go(func() error {
				part, err := scoreRange(gctx, sc, corpus[lo:hi])
				parts[i] = topN(part, opts.Limit)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		for _, p := range parts {
			results = append(results, p...)
		}
	}

	results = topN(results, opts.Limit)
	searchLog.Debug("search_ranked",
		slog.Int("corpus", len(corpus)),
		slog.Int("results", len(results)),
		slog.Int("query_len", len(sc.folded)),
		slog.Duration("took", time.Since(start)))
	return results, nil
}

// checkEvery is how many sessions are scored between context checks.
const checkEvery = 64

// ErrScorePanic wraps a panic raised while scoring. Shards run on their
// own goroutines, so a panic is turned into an error where it happens.
var ErrScorePanic = errors.New("scoring panicked")

func scoreRange(ctx context.Context, sc *Scorer, corpus []*session.Session) (out []session.SearchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			searchLog.Error("search_score_panic",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			out, err = nil, fmt.Errorf("%w: %v", ErrScorePanic, r)
		}
	}()
	for i, s := range corpus {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if r, ok := sc.Score(s); ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func topN(results []session.SearchResult, n int) []session.SearchResult {
	sort.Slice(results, func(i, j int) bool { return Less(results[i], results[j]) })
	if len(results) > n {
		results = results[:n]
	}
	return results
}
