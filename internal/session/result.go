package session

import "strings"

// Segment is a run of snippet text, highlighted when it is part of a match.
type Segment struct {
	Text        string `json:"text"`
	Highlighted bool   `json:"highlighted,omitempty"`
}

// Snippet is the excerpt shown under a result.
type Snippet struct {
	Segments []Segment `json:"segments"`
}

// PlainSnippet wraps text with no highlighting.
func PlainSnippet(text string) Snippet {
	if text == "" {
		return Snippet{}
	}
	return Snippet{Segments: []Segment{{Text: text}}}
}

// String joins the segments without markup.
func (s Snippet) String() string {
	var b strings.Builder
	for _, seg := range s.Segments {
		b.WriteString(seg.Text)
	}
	return b.String()
}

// Render joins the segments, wrapping highlighted ones with hl.
func (s Snippet) Render(hl func(string) string) string {
	var b strings.Builder
	for _, seg := range s.Segments {
		if seg.Highlighted && hl != nil {
			b.WriteString(hl(seg.Text))
			continue
		}
		b.WriteString(seg.Text)
	}
	return b.String()
}

// SearchResult is one ranked hit. Session is shared with the corpus.
type SearchResult struct {
	Session *Session
	Score   float64
	Snippet Snippet
}

// Status tells a renderer what the background work is doing.
type Status int

const (
	StatusIdle Status = iota
	StatusScoring
	StatusDiscovering
)

func (s Status) String() string {
	switch s {
	case StatusScoring:
		return "scoring"
	case StatusDiscovering:
		return "discovering"
	}
	return "idle"
}
