package search

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/asheshgoplani/session-search/internal/session"
)

const (
	// snippetContext is the number of runes kept on each side of a match.
	snippetContext = 60
	// snippetMaxMatch caps how much of a long, sparse window is shown.
	snippetMaxMatch = 120
	ellipsis        = "…"
)

// normalizeSpace collapses every whitespace run into one space and trims.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// snippetAround cuts an excerpt of text centred on win, with the matched
// runes highlighted. Context not used on one side is given to the other.
func snippetAround(text string, win window) session.Snippet {
	matchStart, matchEnd := win.start, win.end
	if win.runes > snippetMaxMatch {
		matchEnd = advanceRunes(text, matchStart, snippetMaxMatch)
	}

	// Counting stops at twice the context; more is never used.
	left := runesIn(text, retreatRunes(text, matchStart, 2*snippetContext), matchStart)
	right := runesIn(text, matchEnd, advanceRunes(text, matchEnd, 2*snippetContext))
	takeLeft, takeRight := min(snippetContext, left), min(snippetContext, right)
	if takeLeft < snippetContext {
		takeRight = min(right, takeRight+snippetContext-takeLeft)
	}
	if takeRight < snippetContext {
		takeLeft = min(left, takeLeft+snippetContext-takeRight)
	}

	from := retreatRunes(text, matchStart, takeLeft)
	to := advanceRunes(text, matchEnd, takeRight)

	hl := make(map[int]bool, len(win.positions))
	for _, p := range win.positions {
		hl[p] = true
	}

	var (
		segs    []session.Segment
		cur     strings.Builder
		curHL   bool
		started bool
		inSpace bool
	)
	flush := func() {
		if cur.Len() > 0 {
			segs = append(segs, session.Segment{Text: cur.String(), Highlighted: curHL})
			cur.Reset()
		}
	}
	for i := from; i < to; {
		r, w := utf8.DecodeRuneInString(text[i:])
		h := hl[i]
		i += w
		if unicode.IsSpace(r) {
			if inSpace || !started {
				continue
			}
			inSpace = true
			r = ' '
		} else {
			inSpace = false
		}
		if started && h != curHL {
			flush()
		}
		curHL = h
		started = true
		cur.WriteRune(r)
	}
	flush()

	if len(segs) > 0 {
		last := &segs[len(segs)-1]
		if !last.Highlighted {
			last.Text = strings.TrimRight(last.Text, " ")
		}
	}
	if from > 0 {
		segs = prependText(segs, ellipsis)
	}
	if to < len(text) {
		segs = appendText(segs, ellipsis)
	}
	return session.Snippet{Segments: segs}
}

func prependText(segs []session.Segment, s string) []session.Segment {
	if len(segs) > 0 && !segs[0].Highlighted {
		segs[0].Text = s + segs[0].Text
		return segs
	}
	return append([]session.Segment{{Text: s}}, segs...)
}

func appendText(segs []session.Segment, s string) []session.Segment {
	if n := len(segs); n > 0 && !segs[n-1].Highlighted {
		segs[n-1].Text += s
		return segs
	}
	return append(segs, session.Segment{Text: s})
}

func runesIn(s string, from, to int) int {
	return utf8.RuneCountInString(s[from:to])
}

func advanceRunes(s string, i, n int) int {
	for ; n > 0 && i < len(s); n-- {
		_, w := utf8.DecodeRuneInString(s[i:])
		i += w
	}
	return i
}

func retreatRunes(s string, i, n int) int {
	for ; n > 0 && i > 0; n-- {
		_, w := utf8.DecodeLastRuneInString(s[:i])
		i -= w
	}
	return i
}
