package search

import (
	"unicode"
	"unicode/utf8"
)

// foldRune lowercases r with an ASCII fast path.
func foldRune(r rune) rune {
	if r < utf8.RuneSelf {
		if 'A' <= r && r <= 'Z' {
			return r + 'a' - 'A'
		}
		return r
	}
	return unicode.ToLower(r)
}

func foldAt(s string, i int) (rune, int) {
	if c := s[i]; c < utf8.RuneSelf {
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		return rune(c), 1
	}
	r, w := utf8.DecodeRuneInString(s[i:])
	return unicode.ToLower(r), w
}

func foldBefore(s string, j int) (rune, int) {
	if c := s[j-1]; c < utf8.RuneSelf {
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		return rune(c), 1
	}
	r, w := utf8.DecodeLastRuneInString(s[:j])
	return unicode.ToLower(r), w
}

// window is one minimal occurrence of the query as a subsequence of the
// text: positions holds the byte offset of every matched rune.
type window struct {
	start, end int
	positions  []int
	runes      int
	adjacent   int
}

// density is matched runes over window runes, in (0, 1].
func (w *window) density() float64 {
	if w.runes == 0 {
		return 0
	}
	return float64(len(w.positions)) / float64(w.runes)
}

// contiguity is the share of matched runes that directly follow the
// previous matched rune, in [0, 1].
func (w *window) contiguity() float64 {
	if len(w.positions) < 2 {
		return 1
	}
	return float64(w.adjacent) / float64(len(w.positions)-1)
}

// hasSubsequence reports whether q occurs in order in s, ignoring case.
func hasSubsequence(s string, q []rune) bool {
	if len(q) == 0 {
		return true
	}
	k := 0
	for i := 0; i < len(s); {
		r, w := foldAt(s, i)
		if r == q[k] {
			k++
			if k == len(q) {
				return true
			}
		}
		i += w
	}
	return false
}

// nextWindow finds the first occurrence of q in s[from:] and tightens it
// from the right so it is minimal for its end position.
func nextWindow(s string, from int, q []rune, buf []int) (window, bool) {
	k, end := 0, -1
	for i := from; i < len(s); {
		r, w := foldAt(s, i)
		if r == q[k] {
			k++
			if k == len(q) {
				end = i + w
				break
			}
		}
		i += w
	}
	if end < 0 {
		return window{}, false
	}

	positions := buf[:0]
	if cap(positions) < len(q) {
		positions = make([]int, 0, len(q))
	}
	positions = positions[:len(q)]
	k = len(q) - 1
	j := end
	for k >= 0 {
		r, w := foldBefore(s, j)
		j -= w
		if r == q[k] {
			positions[k] = j
			k--
		}
	}

	win := window{start: j, end: end, positions: positions}
	win.runes = utf8.RuneCountInString(s[j:end])
	for i := 1; i < len(positions); i++ {
		_, w := utf8.DecodeRuneInString(s[positions[i-1]:])
		if positions[i-1]+w == positions[i] {
			win.adjacent++
		}
	}
	return win, true
}

// literalWindow finds the first case-folded occurrence of q as a
// contiguous run in s.
func literalWindow(s string, q []rune) (window, bool) {
	positions := make([]int, len(q))
	for i := 0; i < len(s); {
		r, w := foldAt(s, i)
		if r == q[0] {
			j, k := i+w, 1
			positions[0] = i
			for k < len(q) && j < len(s) {
				r2, w2 := foldAt(s, j)
				if r2 != q[k] {
					break
				}
				positions[k] = j
				j += w2
				k++
			}
			if k == len(q) {
				return window{start: i, end: j, positions: positions, runes: len(q), adjacent: len(q) - 1}, true
			}
		}
		i += w
	}
	return window{}, false
}

// maxWindows bounds how many scattered windows are compared per text.
const maxWindows = 48

// bestWindow returns the densest minimal window of q in s. A literal
// occurrence anywhere wins outright; otherwise the first maxWindows
// scattered windows are compared, preferring the more contiguous one and
// then the earlier one.
func bestWindow(s string, q []rune) (window, bool) {
	if len(q) == 0 || !hasSubsequence(s, q) {
		return window{}, false
	}
	if w, ok := literalWindow(s, q); ok {
		return w, true
	}
	var (
		best  window
		found bool
		buf   = make([]int, len(q))
		spare = make([]int, len(q))
	)
	for from, tries := 0, 0; from < len(s) && tries < maxWindows; tries++ {
		w, ok := nextWindow(s, from, q, buf)
		if !ok {
			break
		}
		if !found || better(&w, &best) {
			best = w
			found = true
			buf, spare = spare, buf
		}
		_, width := utf8.DecodeRuneInString(s[w.start:])
		from = w.start + width
	}
	if found {
		best.positions = append([]int(nil), best.positions...)
	}
	return best, found
}

func better(a, b *window) bool {
	if a.runes != b.runes {
		return a.runes < b.runes
	}
	return a.adjacent > b.adjacent
}

// atWordStart reports whether the byte at i begins a word.
func atWordStart(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
