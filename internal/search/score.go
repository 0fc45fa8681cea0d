// Package search scores sessions against a query. Both the interactive
// view and the one-shot CLI rank through Rank, so they always agree.
package search

import (
	"math"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/asheshgoplani/session-search/internal/logging"
	"github.com/asheshgoplani/session-search/internal/session"
)

var searchLog = logging.ForComponent(logging.CompSearch)

// Score components for a text match.
const (
	densityWeight    = 1000.0
	contiguityWeight = 400.0
	substringBonus   = 2000.0
	wordStartBonus   = 150.0

	labelWeight = 300.0
	idWeight    = 200.0
	cwdWeight   = 100.0
)

// Weights tune the recency blend.
type Weights struct {
	// Recency is the bonus for a session active right now.
	Recency float64
	// HalfLife is the age at which the recency bonus halves.
	HalfLife time.Duration
}

// DefaultWeights is a 300 point recency bonus halving every three days.
func DefaultWeights() Weights {
	return Weights{Recency: 300, HalfLife: 72 * time.Hour}
}

// normalized maps the zero value to DefaultWeights.
func (w Weights) normalized() Weights {
	d := DefaultWeights()
	if w == (Weights{}) {
		return d
	}
	if w.Recency < 0 {
		w.Recency = 0
	}
	if w.HalfLife <= 0 {
		w.HalfLife = d.HalfLife
	}
	return w
}

// RecencyScore decays exponentially with age; it is strictly decreasing
// for positive weights and ages, and future timestamps count as now.
func RecencyScore(age time.Duration, w Weights) float64 {
	w = w.normalized()
	if age < 0 {
		age = 0
	}
	return w.Recency * math.Exp2(-float64(age)/float64(w.HalfLife))
}

// Scorer holds a prepared query. It is safe for concurrent use.
type Scorer struct {
	query   string
	folded  []rune
	lowered string
	now     time.Time
	weights Weights
}

// NewScorer prepares query for scoring at time now. Surrounding
// whitespace is ignored; an empty query ranks by recency only.
func NewScorer(query string, now time.Time, w Weights) *Scorer {
	q := strings.TrimSpace(query)
	folded := make([]rune, 0, len(q))
	for _, r := range q {
		folded = append(folded, foldRune(r))
	}
	return &Scorer{query: q, folded: folded, lowered: string(folded), now: now, weights: w.normalized()}
}

// Query returns the trimmed query.
func (sc *Scorer) Query() string { return sc.query }

// Empty reports whether the query is blank.
func (sc *Scorer) Empty() bool { return len(sc.folded) == 0 }

// Score returns the result for s, or false when a non-empty query does not
// occur as a subsequence of the search blob, label, id or cwd.
func (sc *Scorer) Score(s *session.Session) (session.SearchResult, bool) {
	recency := RecencyScore(sc.now.Sub(s.Timestamp), sc.weights)
	if sc.Empty() {
		return session.SearchResult{
			Session: s,
			Score:   recency,
			Snippet: session.PlainSnippet(normalizeSpace(s.Preview)),
		}, true
	}

	text := 0.0
	win, inBlob := bestWindow(s.SearchBlob, sc.folded)
	if inBlob {
		text = densityWeight*win.density() + contiguityWeight*win.contiguity()
		if win.runes == len(sc.folded) {
			text += substringBonus
		}
		if atWordStart(s.SearchBlob, win.start) {
			text += wordStartBonus
		}
	}

	fields := sc.fieldScore(s)
	if !inBlob && fields == 0 {
		return session.SearchResult{}, false
	}

	var snip session.Snippet
	switch {
	case inBlob:
		snip = snippetAround(s.SearchBlob, win)
	case s.Label != "":
		snip = session.PlainSnippet(s.Label)
	default:
		snip = session.PlainSnippet(normalizeSpace(s.Preview))
	}

	return session.SearchResult{Session: s, Score: text + fields + recency, Snippet: snip}, true
}

// Score is the one-off form of NewScorer(query, now, w).Score(s).
func Score(query string, s *session.Session, now time.Time, w Weights) (session.SearchResult, bool) {
	return NewScorer(query, now, w).Score(s)
}

// shortFields feeds label, id and cwd to fuzzy.FindFrom.
type shortFields [3]string

func (f *shortFields) String(i int) string { return f[i] }
func (f *shortFields) Len() int            { return len(f) }

var fieldWeights = [3]float64{labelWeight, idWeight, cwdWeight}

// fieldScore rewards fuzzy hits in the short descriptive fields. Exact
// substring hits get the full weight, scattered ones a share of it.
func (sc *Scorer) fieldScore(s *session.Session) float64 {
	fields := shortFields{s.Label, s.ID, s.CWD}
	total := 0.0
	for _, m := range fuzzy.FindFrom(sc.query, &fields) {
		w := fieldWeights[m.Index]
		if strings.Contains(strings.ToLower(m.Str), sc.lowered) {
			total += w
			continue
		}
		total += w / 2
	}
	return total
}
