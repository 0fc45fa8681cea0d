// Package session defines the records shared by discovery, scoring and the
// front-ends. A *Session is immutable once discovery hands it out; every
// holder shares the same pointer and nobody copies or mutates it.
package session

import (
	"time"
)

// DefaultBlobLimit caps SearchBlob at 64 KiB of UTF-8.
const DefaultBlobLimit = 64 * 1024

// DefaultPreviewChars bounds Preview in runes.
const DefaultPreviewChars = 240

// Role of a message inside a session file.
type Role int

const (
	RoleOther Role = iota
	RoleUser
	RoleAssistant
)

// ParseRole maps the on-disk role string to a Role.
func ParseRole(s string) Role {
	switch s {
	case "user", "human":
		return RoleUser
	case "assistant", "model":
		return RoleAssistant
	}
	return RoleOther
}

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	}
	return "other"
}

// Qualifies reports whether messages of this role contribute to the
// search blob and preview.
func (r Role) Qualifies() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one parsed record. It only lives while a Session is built.
type Message struct {
	Role      Role
	Text      string
	Timestamp time.Time
}

// Session is one discovered conversation file.
type Session struct {
	ID   string
	Path string

	// Timestamp is the best-known last activity time.
	Timestamp time.Time

	// SearchBlob is the concatenated user/assistant text, never longer
	// than the blob limit in bytes.
	SearchBlob string

	// Preview is the first qualifying message, trimmed for display.
	Preview string
	// PreviewRole is the role of the message Preview came from.
	PreviewRole Role

	MessageCount int

	// Label is the human part of the file name, if any.
	Label string
	CWD   string

	// CreatedAt comes from session metadata or the file name.
	CreatedAt time.Time

	// Truncated is set when text was dropped to respect the blob limit.
	Truncated bool
}

// Title returns Label, falling back to ID.
func (s *Session) Title() string {
	if s.Label != "" {
		return s.Label
	}
	return s.ID
}

// Newer orders sessions newest-first with ID as the tie-break.
func Newer(a, b *Session) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return a.ID < b.ID
}
