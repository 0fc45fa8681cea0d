package search

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheshgoplani/session-search/internal/session"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func mk(id string, age time.Duration, blob string) *session.Session {
	return &session.Session{
		ID:         id,
		Path:       "/store/" + id + ".jsonl",
		Timestamp:  now.Add(-age),
		SearchBlob: blob,
		Preview:    blob,
	}
}

func resultIDs(rs []session.SearchResult) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Session.ID
	}
	return out
}

func rank(t *testing.T, query string, corpus []*session.Session, limit int) []session.SearchResult {
	t.Helper()
	rs, err := Rank(context.Background(), query, corpus, RankOptions{Limit: limit, Now: now})
	require.NoError(t, err)
	return rs
}

func TestGoldCoinScenario(t *testing.T) {
	day := 24 * time.Hour
	corpus := []*session.Session{
		mk("s-day3", 3*day, "we talked about silver"),
		mk("s-day2", 2*day, "where is the gold coin hidden"),
		mk("s-day1", 1*day, "refactor the parser"),
	}

	got := rank(t, "gold", corpus, 20)
	require.NotEmpty(t, got)
	assert.Equal(t, "s-day2", got[0].Session.ID)
	for _, r := range got[1:] {
		assert.Less(t, r.Score, got[0].Score)
	}

	assert.Equal(t, []string{"s-day1", "s-day2", "s-day3"}, resultIDs(rank(t, "", corpus, 20)))
}

func TestEmptyQueryIsPureRecency(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var corpus []*session.Session
	for i := range 200 {
		age := time.Duration(rng.Int63n(int64(400 * 24 * time.Hour)))
		corpus = append(corpus, mk(fmt.Sprintf("id-%03d", i), age, "text"))
	}
	// Equal timestamps fall back to id.
	corpus = append(corpus, mk("aaa", 0, "x"), mk("bbb", 0, "x"))

	got := rank(t, "   ", corpus, len(corpus))
	require.Len(t, got, len(corpus))

	want := append([]*session.Session(nil), corpus...)
	sort.Slice(want, func(i, j int) bool { return session.Newer(want[i], want[j]) })
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].Session.ID, "position %d", i)
	}
}

func TestSubsequenceMatchIffPresent(t *testing.T) {
	tests := []struct {
		blob, query string
		match       bool
	}{
		{"the gold coin", "gold", true},
		{"the gold coin", "gdcn", true},
		{"The GOLD coin", "gold", true},
		{"the gold coin", "tgc", true},
		{"the gold coin", "coin gold", false},
		{"the gold coin", "goldz", false},
		{"naïve café", "CAFÉ", true},
		{"", "a", false},
	}
	for _, tt := range tests {
		t.Run(tt.query+"/"+tt.blob, func(t *testing.T) {
			s := &session.Session{ID: "1", Timestamp: now, SearchBlob: tt.blob}
			_, ok := Score(tt.query, s, now, DefaultWeights())
			assert.Equal(t, tt.match, ok)
		})
	}
}

func TestSubsequencePropertyRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	alphabet := []rune("abcdef ")
	randString := func(n int) string {
		var b strings.Builder
		for range n {
			b.WriteRune(alphabet[rng.Intn(len(alphabet))])
		}
		return b.String()
	}
	for range 500 {
		blob := randString(rng.Intn(40))
		query := strings.TrimSpace(randString(1 + rng.Intn(5)))
		if query == "" {
			continue
		}
		s := &session.Session{ID: "1", Timestamp: now, SearchBlob: blob}
		_, ok := Score(query, s, now, DefaultWeights())
		assert.Equal(t, naiveSubsequence(blob, query), ok, "blob=%q query=%q", blob, query)
	}
}

func naiveSubsequence(s, q string) bool {
	qr := []rune(q)
	k := 0
	for _, r := range s {
		if k < len(qr) && r == qr[k] {
			k++
		}
	}
	return k == len(qr)
}

func TestDenserMatchScoresHigher(t *testing.T) {
	contiguous := mk("a", time.Hour, "please deploy the service")
	scattered := mk("b", time.Hour, "do every policy ledger offer yes")

	rs := rank(t, "deploy", []*session.Session{scattered, contiguous}, 10)
	require.Len(t, rs, 2)
	assert.Equal(t, "a", rs[0].Session.ID)
}

func TestRecencyBreaksNearTies(t *testing.T) {
	older := mk("old", 30*24*time.Hour, "fix the flaky test")
	newer := mk("new", time.Hour, "fix the flaky test")

	rs := rank(t, "flaky", []*session.Session{older, newer}, 10)
	assert.Equal(t, []string{"new", "old"}, resultIDs(rs))
}

func TestRankDeterministicAndIdempotent(t *testing.T) {
	var corpus []*session.Session
	for i := range 50 {
		corpus = append(corpus, mk(fmt.Sprintf("%02d", i), time.Duration(i%5)*time.Hour, "alpha beta gamma"))
	}
	first := rank(t, "beta", corpus, 50)
	second := rank(t, "beta", corpus, 50)
	assert.Equal(t, first, second)

	// Equal score and timestamp: id ascending.
	assert.Equal(t, "00", first[0].Session.ID)
	assert.Equal(t, "05", first[1].Session.ID)
}

func TestResultLimit(t *testing.T) {
	corpus := []*session.Session{
		mk("a", 3*time.Hour, "gold"),
		mk("b", 1*time.Hour, "gold"),
		mk("c", 2*time.Hour, "gold"),
	}
	rs := rank(t, "gold", corpus, 1)
	require.Len(t, rs, 1)
	assert.Equal(t, "b", rs[0].Session.ID)
}

func TestShardedMatchesSequential(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	words := []string{"deploy", "kubernetes", "parser", "gold", "coin", "refactor", "test"}
	var corpus []*session.Session
	for i := range shardMin * 3 {
		var parts []string
		for range 6 {
			parts = append(parts, words[rng.Intn(len(words))])
		}
		corpus = append(corpus, mk(fmt.Sprintf("s%05d", i), time.Duration(rng.Intn(1000))*time.Minute, strings.Join(parts, " ")))
	}

	sharded := rank(t, "gold coin", corpus, 25)

	sc := NewScorer("gold coin", now, Weights{})
	seq, err := scoreRange(context.Background(), sc, corpus)
	require.NoError(t, err)
	seq = topN(seq, 25)

	assert.Equal(t, resultIDs(seq), resultIDs(sharded))
}

func TestRankReturnsScorePanicAsError(t *testing.T) {
	for _, n := range []int{2, shardMin + 88} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			corpus := make([]*session.Session, n)
			for i := range corpus {
				corpus[i] = mk(fmt.Sprintf("s%04d", i), time.Minute, "gold coin")
			}
			corpus[n/2] = nil

			_, err := Rank(context.Background(), "gold", corpus, RankOptions{Now: now})
			assert.ErrorIs(t, err, ErrScorePanic)
		})
	}
}

func TestRankCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Rank(ctx, "x", []*session.Session{mk("a", 0, "x")}, RankOptions{Now: now})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecencyScoreMonotonic(t *testing.T) {
	w := DefaultWeights()
	prev := RecencyScore(0, w)
	assert.InDelta(t, w.Recency, prev, 1e-9)
	assert.InDelta(t, w.Recency, RecencyScore(-time.Hour, w), 1e-9, "future counts as now")
	assert.InDelta(t, w.Recency/2, RecencyScore(w.HalfLife, w), 1e-9)
	for h := 1; h < 24*60; h += 7 {
		cur := RecencyScore(time.Duration(h)*time.Hour, w)
		assert.Less(t, cur, prev)
		prev = cur
	}
}

func TestFieldMatches(t *testing.T) {
	s := &session.Session{ID: "0199-abcd", Label: "release notes", CWD: "/work/api", Timestamp: now, SearchBlob: "nothing here"}

	r, ok := Score("release", s, now, DefaultWeights())
	require.True(t, ok, "label hit")
	assert.Equal(t, "release notes", r.Snippet.String())

	_, ok = Score("abcd", s, now, DefaultWeights())
	assert.True(t, ok, "id hit")

	_, ok = Score("work/api", s, now, DefaultWeights())
	assert.True(t, ok, "cwd hit")
	assert.Equal(t, "nothing here", s.SearchBlob, "short fields are not copied into the blob")

	_, ok = Score("zzz", s, now, DefaultWeights())
	assert.False(t, ok)
}

func TestSnippetHighlightsMatch(t *testing.T) {
	blob := strings.Repeat("filler words ", 20) + "the   gold\n\ncoin was found " + strings.Repeat("tail text ", 20)
	s := &session.Session{ID: "1", Timestamp: now, SearchBlob: blob}

	r, ok := Score("gold", s, now, DefaultWeights())
	require.True(t, ok)

	var hl []string
	for _, seg := range r.Snippet.Segments {
		if seg.Highlighted {
			hl = append(hl, seg.Text)
		}
	}
	assert.Equal(t, []string{"gold"}, hl)

	text := r.Snippet.String()
	assert.True(t, strings.HasPrefix(text, "…"), text)
	assert.True(t, strings.HasSuffix(text, "…"), text)
	assert.Contains(t, text, "the gold coin was found", "whitespace is collapsed")
	assert.NotContains(t, text, "\n")
}

func TestSnippetRedistributesContext(t *testing.T) {
	blob := "gold " + strings.Repeat("x", 200)
	s := &session.Session{ID: "1", Timestamp: now, SearchBlob: blob}

	r, ok := Score("gold", s, now, DefaultWeights())
	require.True(t, ok)
	text := r.Snippet.String()
	assert.False(t, strings.HasPrefix(text, "…"))
	// 4 matched runes plus 120 runes of right context and the ellipsis.
	assert.Equal(t, 4+2*snippetContext+1, len([]rune(text)))
}

func TestEmptyQuerySnippetIsPreview(t *testing.T) {
	s := &session.Session{ID: "1", Timestamp: now, Preview: "first\n  message", SearchBlob: "first\n  message"}
	r, ok := Score("", s, now, DefaultWeights())
	require.True(t, ok)
	assert.Equal(t, "first message", r.Snippet.String())
}

func TestBestWindowPrefersTightest(t *testing.T) {
	text := "g_o_l_d ... gold"
	w, ok := bestWindow(text, []rune("gold"))
	require.True(t, ok)
	assert.Equal(t, "gold", text[w.start:w.end])
	assert.Equal(t, 3, w.adjacent)
	assert.InDelta(t, 1.0, w.density(), 1e-9)
}

func TestLiteralHitFoundPastScatteredWindows(t *testing.T) {
	noise := strings.Repeat("go to the old yard. ", 60)
	late := mk("late", time.Hour, noise+"found the gold coin")
	scattered := mk("scattered", time.Hour, noise)

	w, ok := bestWindow(late.SearchBlob, []rune("gold"))
	require.True(t, ok)
	assert.Equal(t, "gold", late.SearchBlob[w.start:w.end])

	got := rank(t, "gold", []*session.Session{scattered, late}, 10)
	require.Len(t, got, 2)
	assert.Equal(t, "late", got[0].Session.ID)
	assert.Greater(t, got[0].Score-got[1].Score, substringBonus-1)
	assert.Contains(t, got[0].Snippet.String(), "gold coin")
}

func TestLiteralWindowFoldsCase(t *testing.T) {
	w, ok := literalWindow("Where is the GOLD coin", []rune("gold"))
	require.True(t, ok)
	assert.Equal(t, 13, w.start)
	assert.Equal(t, []int{13, 14, 15, 16}, w.positions)

	_, ok = literalWindow("g o l d", []rune("gold"))
	assert.False(t, ok)
}
