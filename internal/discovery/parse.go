package discovery

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/asheshgoplani/session-search/internal/session"
)

// ErrNoMessages marks a file that parsed but held no user or assistant text.
var ErrNoMessages = errors.New("no qualifying messages")

const maxLineBytes = 10 * 1024 * 1024

// ParseOptions bound what a single file contributes.
type ParseOptions struct {
	// BlobLimit caps Session.SearchBlob in bytes.
	BlobLimit int
	// PreviewChars caps Session.Preview in runes.
	PreviewChars int
}

func (o *ParseOptions) applyDefaults() {
	if o.BlobLimit <= 0 {
		o.BlobLimit = session.DefaultBlobLimit
	}
	if o.PreviewChars <= 0 {
		o.PreviewChars = session.DefaultPreviewChars
	}
}

// Text wrapped in these tags is injected context, not conversation.
var metaMarkers = []string{
	"<user_instructions>",
	"<environment_context>",
	"<system_instructions>",
	"<developer_instructions>",
	"<assistant_memory>",
	"<user_action>",
}

func isMetaText(text string) bool {
	trimmed := strings.TrimLeft(text, " \t\r\n")
	for _, m := range metaMarkers {
		if strings.HasPrefix(trimmed, m) {
			return true
		}
	}
	return false
}

// recordFields is the union of keys the known session formats use, at
// the top level, inside "payload" and inside "message".
type recordFields struct {
	Type    string          `json:"type"`
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
	ID      string          `json:"id"`
	CWD     string          `json:"cwd"`

	SessionID      string `json:"sessionId"`
	SessionIDSnake string `json:"session_id"`

	Timestamp       json.RawMessage `json:"timestamp"`
	CreateTime      json.RawMessage `json:"create_time"`
	CreateTimeCamel json.RawMessage `json:"createTime"`
	CreatedAt       json.RawMessage `json:"created_at"`
	CreatedAtCamel  json.RawMessage `json:"createdAt"`
}

type rawRecord struct {
	recordFields
	Payload json.RawMessage `json:"payload"`
	Message json.RawMessage `json:"message"`
}

func (f *recordFields) timestamp() (time.Time, bool) {
	for _, raw := range []json.RawMessage{f.Timestamp, f.CreateTime, f.CreateTimeCamel, f.CreatedAt, f.CreatedAtCamel} {
		if t, ok := parseTimestampValue(raw); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func decodeObject(raw json.RawMessage) (*recordFields, bool) {
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}
	var f recordFields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, false
	}
	return &f, true
}

// fileMeta is what a file tells us about the session as a whole.
type fileMeta struct {
	id      string
	cwd     string
	started time.Time
}

// parseLine extracts at most one message from a JSONL line. Lines that are
// not messages may still contribute metadata. ok is false for malformed
// lines and non-message records.
func parseLine(line []byte, meta *fileMeta) (session.Message, bool) {
	var rec rawRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return session.Message{}, false
	}

	if meta.id == "" {
		if rec.SessionID != "" {
			meta.id = rec.SessionID
		} else if rec.SessionIDSnake != "" {
			meta.id = rec.SessionIDSnake
		}
	}
	if meta.cwd == "" && rec.CWD != "" {
		meta.cwd = rec.CWD
	}

	var src *recordFields
	switch {
	case len(rec.Payload) > 0:
		payload, ok := decodeObject(rec.Payload)
		if !ok {
			return session.Message{}, false
		}
		if rec.Type == "session_meta" || payload.Type == "session_meta" {
			if meta.id == "" && payload.ID != "" {
				meta.id = payload.ID
			}
			if meta.cwd == "" && payload.CWD != "" {
				meta.cwd = payload.CWD
			}
			if ts, ok := payload.timestamp(); ok && meta.started.IsZero() {
				meta.started = ts
			}
			return session.Message{}, false
		}
		if payload.Type != "message" {
			return session.Message{}, false
		}
		src = payload
	case len(rec.Message) > 0:
		msg, ok := decodeObject(rec.Message)
		if !ok || msg.Role == "" {
			return session.Message{}, false
		}
		src = msg
	default:
		if rec.Role == "" {
			return session.Message{}, false
		}
		src = &rec.recordFields
	}

	role := session.ParseRole(src.Role)
	if !role.Qualifies() {
		return session.Message{}, false
	}
	text := extractText(src.Content)
	if strings.TrimSpace(text) == "" || isMetaText(text) {
		return session.Message{}, false
	}

	ts, ok := src.timestamp()
	if !ok {
		ts, _ = rec.timestamp()
	}
	return session.Message{Role: role, Text: text, Timestamp: ts}, true
}

type contentBlock struct {
	Text string `json:"text"`
}

// extractText accepts a plain string, an array of {text} blocks or a single
// {text} object.
func extractText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s
		}
	case '[':
		var items []json.RawMessage
		if json.Unmarshal(raw, &items) != nil {
			return ""
		}
		var parts []string
		for _, item := range items {
			var b contentBlock
			if json.Unmarshal(item, &b) == nil && b.Text != "" {
				parts = append(parts, b.Text)
			}
		}
		return strings.Join(parts, "\n")
	case '{':
		var b contentBlock
		if json.Unmarshal(raw, &b) == nil {
			return b.Text
		}
	}
	return ""
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseTimestampValue reads RFC3339-ish strings and unix seconds (int or
// float). Numbers above 1e12 are taken as milliseconds.
func parseTimestampValue(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, false
	}
	if raw[0] == '"' {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return time.Time{}, false
		}
		return parseDateString(s)
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil || f <= 0 {
		return time.Time{}, false
	}
	if f > 1e12 {
		return time.UnixMilli(int64(f)), true
	}
	sec := int64(f)
	nsec := int64((f - float64(sec)) * 1e9)
	return time.Unix(sec, nsec), true
}

func parseDateString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return parseFilenameTime(s)
}

// parseFilenameTime reads the 2006-01-02T15-04-05 form used in file names,
// in local time.
func parseFilenameTime(s string) (time.Time, bool) {
	t, err := time.ParseInLocation("2006-01-02T15-04-05", s, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

var fileNamePattern = regexp.MustCompile(`^(.+?)-(\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2})-([0-9a-fA-F-]+)$`)

// nameInfo is what a file name like rollout-2025-01-02T03-04-05-<uuid>.jsonl
// carries.
type nameInfo struct {
	label   string
	id      string
	created time.Time
}

func parseFileName(path string) nameInfo {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	m := fileNamePattern.FindStringSubmatch(stem)
	if m == nil {
		return nameInfo{label: stem, id: stem}
	}
	info := nameInfo{label: strings.ReplaceAll(m[1], "-", " "), id: normalizeID(m[3])}
	if t, ok := parseFilenameTime(m[2]); ok {
		info.created = t
	}
	return info
}

// normalizeID lowercases well-formed UUIDs and leaves anything else as is.
func normalizeID(id string) string {
	id = strings.TrimSpace(id)
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return id
}

// blobBuilder concatenates message text up to a byte limit. The first
// message that does not fit is cut at a rune boundary and everything after
// it is dropped.
type blobBuilder struct {
	limit  int
	b      strings.Builder
	capped bool
}

func (bb *blobBuilder) add(text string) {
	if bb.capped {
		return
	}
	sep := ""
	if bb.b.Len() > 0 {
		sep = "\n"
	}
	room := bb.limit - bb.b.Len() - len(sep)
	if len(text) <= room {
		bb.b.WriteString(sep)
		bb.b.WriteString(text)
		return
	}
	bb.capped = true
	if room <= 0 {
		return
	}
	cut := room
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	if cut > 0 {
		bb.b.WriteString(sep)
		bb.b.WriteString(text[:cut])
	}
}

func makePreview(text string, limit int) string {
	trimmed := strings.TrimSpace(text)
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(trimmed) <= limit {
		return trimmed
	}
	runes := []rune(trimmed)
	return string(runes[:limit-1]) + "…"
}

// forEachLine calls fn with every line of r, without the line ending.
// A line longer than limit bytes is discarded whole and counted; reading
// resumes at the next line. fn must not keep the slice.
func forEachLine(r io.Reader, limit int, fn func(line []byte)) (oversized int, err error) {
	br := bufio.NewReaderSize(r, 64*1024)
	var (
		buf  []byte
		over bool
	)
	for {
		chunk, err := br.ReadSlice('\n')
		if !over {
			if len(buf)+len(chunk) > limit {
				over = true
				buf = buf[:0]
			} else {
				buf = append(buf, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return oversized, err
		}
		if over {
			oversized++
		} else if len(buf) > 0 {
			fn(bytes.TrimRight(buf, "\r\n"))
		}
		buf, over = buf[:0], false
		if err != nil {
			return oversized, nil
		}
	}
}

// LoadFile parses one session file. Malformed lines are skipped. A file
// without any qualifying message returns ErrNoMessages.
func LoadFile(path string, opts ParseOptions) (*session.Session, error) {
	opts.applyDefaults()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat session: %w", err)
	}

	var (
		meta    fileMeta
		blob    = blobBuilder{limit: opts.BlobLimit}
		count   int
		latest  time.Time
		preview string
		prole   session.Role
	)

	oversized, err := forEachLine(f, maxLineBytes, func(line []byte) {
		if len(bytes.TrimSpace(line)) == 0 {
			return
		}
		msg, ok := parseLine(line, &meta)
		if !ok {
			return
		}
		count++
		if preview == "" {
			preview = makePreview(msg.Text, opts.PreviewChars)
			prole = msg.Role
		}
		blob.add(msg.Text)
		if msg.Timestamp.After(latest) {
			latest = msg.Timestamp
		}
	})
	if oversized > 0 {
		discoveryLog.Debug("discovery_lines_oversized", "path", path, "lines", oversized)
	}
	if err != nil {
		if count == 0 {
			return nil, fmt.Errorf("read session: %w", err)
		}
		discoveryLog.Debug("discovery_file_partial", "path", path, "error", err.Error())
	}
	if count == 0 {
		return nil, ErrNoMessages
	}

	name := parseFileName(path)
	s := &session.Session{
		ID:           name.id,
		Path:         path,
		SearchBlob:   blob.b.String(),
		Preview:      preview,
		PreviewRole:  prole,
		MessageCount: count,
		Label:        name.label,
		CWD:          meta.cwd,
		CreatedAt:    name.created,
		Truncated:    blob.capped,
	}
	if meta.id != "" {
		s.ID = normalizeID(meta.id)
	}
	if !meta.started.IsZero() {
		s.CreatedAt = meta.started
	}
	switch {
	case !latest.IsZero():
		s.Timestamp = latest
	case !meta.started.IsZero():
		s.Timestamp = meta.started
	case !name.created.IsZero():
		s.Timestamp = name.created
	default:
		s.Timestamp = info.ModTime()
	}
	return s, nil
}
