// Package ui is the interactive picker. It never scores anything itself:
// every tick it reads the latest snapshot from live.Search and draws it.
package ui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/asheshgoplani/session-search/internal/live"
	"github.com/asheshgoplani/session-search/internal/logging"
	"github.com/asheshgoplani/session-search/internal/session"
)

var uiLog = logging.ForComponent(logging.CompUI)

// DefaultTick is the redraw interval.
const DefaultTick = 16 * time.Millisecond

// Lines per result row: title line and snippet line.
const rowHeight = 2

// Options configure a Picker.
type Options struct {
	Search *live.Search
	Query  string

	// CommandFor resolves the resume command for a session; used by the
	// copy key and the footer.
	CommandFor func(*session.Session) string
	// Copy puts text on the clipboard and reports the method used.
	Copy func(text string) (string, error)

	Tick  time.Duration
	Now   func() time.Time
	Theme *ThemeWatcher
}

type tickMsg time.Time

type themeMsg bool

// Picker is the bubbletea model.
type Picker struct {
	opts    Options
	input   textinput.Model
	spinner spinner.Model

	snap     live.Snapshot
	cursor   int
	offset   int
	width    int
	height   int
	notice   string
	selected *session.Session
	quitting bool
}

// NewPicker builds the model. opts.Search must be running.
func NewPicker(opts Options) *Picker {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ti := textinput.New()
	ti.Prompt = "› "
	ti.PromptStyle = PromptStyle
	ti.TextStyle = InputStyle
	ti.Placeholder = "search sessions"
	ti.CharLimit = 256
	// ctrl+w and ctrl+u are handled by the picker.
	ti.KeyMap.DeleteWordBackward.SetEnabled(false)
	ti.KeyMap.DeleteBeforeCursor.SetEnabled(false)
	ti.SetValue(opts.Query)
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = StatusStyle

	p := &Picker{opts: opts, input: ti, spinner: sp, width: 80, height: 24}
	if opts.Search != nil {
		opts.Search.SetQuery(opts.Query)
		p.snap = opts.Search.Snapshot()
	}
	return p
}

// Selected is the session chosen with enter, or nil.
func (p *Picker) Selected() *session.Session { return p.selected }

// Query is the current input text.
func (p *Picker) Query() string { return p.input.Value() }

func (p *Picker) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, p.spinner.Tick, p.tick()}
	if p.opts.Theme != nil {
		cmds = append(cmds, p.waitTheme())
	}
	return tea.Batch(cmds...)
}

func (p *Picker) tick() tea.Cmd {
	return tea.Tick(p.opts.Tick, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (p *Picker) waitTheme() tea.Cmd {
	ch := p.opts.Theme.Changes()
	return func() tea.Msg {
		isDark, ok := <-ch
		if !ok {
			return nil
		}
		return themeMsg(isDark)
	}
}

func (p *Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		p.refresh()
		return p, p.tick()

	case tea.WindowSizeMsg:
		p.width, p.height = msg.Width, msg.Height
		p.input.Width = max(10, msg.Width-4)
		p.clamp()
		return p, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return p, cmd

	case themeMsg:
		if msg {
			InitTheme(string(ThemeDark))
		} else {
			InitTheme(string(ThemeLight))
		}
		p.input.PromptStyle, p.input.TextStyle = PromptStyle, InputStyle
		p.spinner.Style = StatusStyle
		return p, p.waitTheme()

	case tea.KeyMsg:
		return p.handleKey(msg)
	}
	return p, nil
}

func (p *Picker) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p.notice = ""
	switch {
	case key.Matches(msg, keys.Quit):
		p.quitting = true
		return p, tea.Quit

	case key.Matches(msg, keys.Select):
		if r := p.current(); r != nil {
			p.selected = r.Session
			p.quitting = true
			uiLog.Info("ui_session_selected", slog.String("id", r.Session.ID))
			return p, tea.Quit
		}
		return p, nil

	case key.Matches(msg, keys.Up):
		p.move(-1)
	case key.Matches(msg, keys.Down):
		p.move(1)
	case key.Matches(msg, keys.PageUp):
		p.move(-p.visibleRows())
	case key.Matches(msg, keys.PageDown):
		p.move(p.visibleRows())
	case key.Matches(msg, keys.Home):
		p.cursor = 0
		p.clamp()
	case key.Matches(msg, keys.End):
		p.cursor = len(p.snap.Results) - 1
		p.clamp()

	case key.Matches(msg, keys.Clear):
		p.setQuery("")
	case key.Matches(msg, keys.DeleteWord):
		p.setQuery(deleteLastWord(p.input.Value()))

	case key.Matches(msg, keys.Copy):
		p.copySelected()

	default:
		var cmd tea.Cmd
		before := p.input.Value()
		p.input, cmd = p.input.Update(msg)
		if p.input.Value() != before {
			p.queryChanged()
		}
		return p, cmd
	}
	return p, nil
}

func (p *Picker) setQuery(q string) {
	p.input.SetValue(q)
	p.input.CursorEnd()
	p.queryChanged()
}

func (p *Picker) queryChanged() {
	if p.opts.Search != nil {
		p.opts.Search.SetQuery(p.input.Value())
	}
	p.cursor, p.offset = 0, 0
}

func (p *Picker) copySelected() {
	r := p.current()
	if r == nil || p.opts.CommandFor == nil || p.opts.Copy == nil {
		return
	}
	cmd := p.opts.CommandFor(r.Session)
	method, err := p.opts.Copy(cmd)
	if err != nil {
		p.notice = ErrorStyle.Render("copy failed: " + err.Error())
		uiLog.Warn("ui_copy_failed", slog.String("error", err.Error()))
		return
	}
	p.notice = NoticeStyle.Render(fmt.Sprintf("copied via %s: %s", method, cmd))
}

// refresh pulls the latest snapshot. The cursor stays on the same session
// when it is still in the list.
func (p *Picker) refresh() {
	if p.opts.Search == nil {
		return
	}
	var keep *session.Session
	if r := p.current(); r != nil {
		keep = r.Session
	}
	p.snap = p.opts.Search.Snapshot()
	if keep != nil {
		for i, r := range p.snap.Results {
			if r.Session == keep {
				p.cursor = i
				break
			}
		}
	}
	p.clamp()
}

func (p *Picker) current() *session.SearchResult {
	if p.cursor < 0 || p.cursor >= len(p.snap.Results) {
		return nil
	}
	return &p.snap.Results[p.cursor]
}

func (p *Picker) move(delta int) {
	p.cursor += delta
	p.clamp()
}

func (p *Picker) clamp() {
	n := len(p.snap.Results)
	if p.cursor >= n {
		p.cursor = n - 1
	}
	if p.cursor < 0 {
		p.cursor = 0
	}
	rows := p.visibleRows()
	if p.cursor < p.offset {
		p.offset = p.cursor
	}
	if p.cursor >= p.offset+rows {
		p.offset = p.cursor - rows + 1
	}
	if p.offset < 0 {
		p.offset = 0
	}
}

// visibleRows leaves room for the input, status and footer lines.
func (p *Picker) visibleRows() int {
	return max(1, (p.height-4)/rowHeight)
}

func (p *Picker) View() string {
	if p.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(p.input.View())
	b.WriteString("\n")
	b.WriteString(p.statusLine())
	b.WriteString("\n")

	results := p.snap.Results
	now := p.opts.Now()
	if len(results) == 0 {
		msg := "no sessions yet"
		if p.snap.Query != "" || p.input.Value() != "" {
			msg = "no matches"
		}
		b.WriteString(DimStyle.Render("  " + msg))
		b.WriteString("\n")
	}
	end := min(len(results), p.offset+p.visibleRows())
	for i := p.offset; i < end; i++ {
		b.WriteString(p.renderRow(results[i], i == p.cursor, now))
	}

	b.WriteString(p.footer())
	return b.String()
}

func (p *Picker) statusLine() string {
	s := p.snap
	var parts []string
	parts = append(parts, fmt.Sprintf("%d/%d", len(s.Results), s.Total))
	switch s.Status() {
	case session.StatusDiscovering:
		parts = append(parts, p.spinner.View()+" loading sessions")
	case session.StatusScoring:
		parts = append(parts, p.spinner.View()+" searching")
	}
	return StatusStyle.Render("  " + strings.Join(parts, "  "))
}

func (p *Picker) renderRow(r session.SearchResult, selected bool, now time.Time) string {
	s := r.Session
	width := max(20, p.width)

	when := RelativeTime(s.Timestamp, now)
	id := s.ID
	if len(id) > 8 {
		id = id[:8]
	}
	meta := fmt.Sprintf("%s  %s", when, id)
	titleWidth := width - 4 - runewidth.StringWidth(meta)
	title := runewidth.Truncate(singleLine(s.Title()), max(8, titleWidth), "…")
	pad := max(1, width-4-runewidth.StringWidth(title)-runewidth.StringWidth(meta))

	var line string
	if selected {
		line = CursorStyle.Render("› ") + SelectedStyle.Render(title) +
			strings.Repeat(" ", pad) + TimeStyle.Render(when) + "  " + IDStyle.Render(id)
	} else {
		line = "  " + TitleStyle.Render(title) +
			strings.Repeat(" ", pad) + TimeStyle.Render(when) + "  " + IDStyle.Render(id)
	}

	snippet := renderSnippet(r.Snippet, width-4)
	return line + "\n" + "    " + snippet + "\n"
}

// renderSnippet truncates to width cells and highlights matched segments.
func renderSnippet(sn session.Snippet, width int) string {
	var b strings.Builder
	left := width
	for _, seg := range sn.Segments {
		if left <= 0 {
			break
		}
		text := singleLine(seg.Text)
		if w := runewidth.StringWidth(text); w > left {
			text = runewidth.Truncate(text, left, "…")
		}
		left -= runewidth.StringWidth(text)
		if seg.Highlighted {
			b.WriteString(MatchStyle.Render(text))
		} else {
			b.WriteString(SnippetStyle.Render(text))
		}
	}
	return b.String()
}

func (p *Picker) footer() string {
	if p.notice != "" {
		return "\n" + p.notice
	}
	var parts []string
	for _, k := range keys.ShortHelp() {
		h := k.Help()
		parts = append(parts, HelpKeyStyle.Render(h.Key)+" "+HelpDescStyle.Render(h.Desc))
	}
	return "\n" + strings.Join(parts, "  ")
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// deleteLastWord drops trailing spaces and then the last word.
func deleteLastWord(s string) string {
	r := []rune(s)
	i := len(r)
	for i > 0 && unicode.IsSpace(r[i-1]) {
		i--
	}
	for i > 0 && !unicode.IsSpace(r[i-1]) {
		i--
	}
	return string(r[:i])
}

// Run shows the picker until the user selects or quits. The returned
// session is nil on quit.
func Run(ctx context.Context, opts Options) (*session.Session, string, error) {
	p := NewPicker(opts)
	prog := tea.NewProgram(p, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := prog.Run()
	if err != nil {
		return nil, p.Query(), fmt.Errorf("picker: %w", err)
	}
	fp, ok := final.(*Picker)
	if !ok {
		return nil, p.Query(), nil
	}
	return fp.Selected(), fp.Query(), nil
}
