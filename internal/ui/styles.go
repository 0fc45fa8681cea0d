package ui

import (
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the active colour scheme.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

type palette struct {
	Bg, Surface, Border, Text, TextDim lipgloss.Color
	Accent, Purple, Cyan, Green        lipgloss.Color
	Yellow, Red, Comment               lipgloss.Color
}

// Tokyo Night
var darkColors = palette{
	Bg:      lipgloss.Color("#1a1b26"),
	Surface: lipgloss.Color("#24283b"),
	Border:  lipgloss.Color("#414868"),
	Text:    lipgloss.Color("#c0caf5"),
	TextDim: lipgloss.Color("#787fa0"),
	Accent:  lipgloss.Color("#7aa2f7"),
	Purple:  lipgloss.Color("#bb9af7"),
	Cyan:    lipgloss.Color("#7dcfff"),
	Green:   lipgloss.Color("#9ece6a"),
	Yellow:  lipgloss.Color("#e0af68"),
	Red:     lipgloss.Color("#f7768e"),
	Comment: lipgloss.Color("#787fa0"),
}

// Tokyo Night Light
var lightColors = palette{
	Bg:      lipgloss.Color("#d5d6db"),
	Surface: lipgloss.Color("#e9e9ec"),
	Border:  lipgloss.Color("#9699a3"),
	Text:    lipgloss.Color("#343b58"),
	TextDim: lipgloss.Color("#6a6d7c"),
	Accent:  lipgloss.Color("#34548a"),
	Purple:  lipgloss.Color("#7847bd"),
	Cyan:    lipgloss.Color("#166775"),
	Green:   lipgloss.Color("#485e30"),
	Yellow:  lipgloss.Color("#8f5e15"),
	Red:     lipgloss.Color("#8c4351"),
	Comment: lipgloss.Color("#6a6d7c"),
}

var (
	themeMu      sync.RWMutex
	currentTheme = ThemeDark
	colors       = darkColors
)

// Styles used by the picker. Rebuilt by InitTheme.
var (
	PromptStyle   lipgloss.Style
	InputStyle    lipgloss.Style
	StatusStyle   lipgloss.Style
	DimStyle      lipgloss.Style
	ErrorStyle    lipgloss.Style
	NoticeStyle   lipgloss.Style
	TitleStyle    lipgloss.Style
	SelectedStyle lipgloss.Style
	CursorStyle   lipgloss.Style
	TimeStyle     lipgloss.Style
	IDStyle       lipgloss.Style
	SnippetStyle  lipgloss.Style
	MatchStyle    lipgloss.Style
	HelpKeyStyle  lipgloss.Style
	HelpDescStyle lipgloss.Style
)

// InitTheme switches the palette. Anything but "light" means dark.
func InitTheme(theme string) {
	themeMu.Lock()
	defer themeMu.Unlock()
	if theme == string(ThemeLight) {
		currentTheme, colors = ThemeLight, lightColors
	} else {
		currentTheme, colors = ThemeDark, darkColors
	}
	initStyles(colors)
}

// GetCurrentTheme returns the active theme.
func GetCurrentTheme() Theme {
	themeMu.RLock()
	defer themeMu.RUnlock()
	return currentTheme
}

func init() {
	InitTheme("dark")
}

func initStyles(c palette) {
	PromptStyle = lipgloss.NewStyle().Foreground(c.Accent).Bold(true)
	InputStyle = lipgloss.NewStyle().Foreground(c.Text)
	StatusStyle = lipgloss.NewStyle().Foreground(c.Purple)
	DimStyle = lipgloss.NewStyle().Foreground(c.Comment)
	ErrorStyle = lipgloss.NewStyle().Foreground(c.Red).Bold(true)
	NoticeStyle = lipgloss.NewStyle().Foreground(c.Green)
	TitleStyle = lipgloss.NewStyle().Foreground(c.Text)
	SelectedStyle = lipgloss.NewStyle().Foreground(c.Bg).Background(c.Accent).Bold(true)
	CursorStyle = lipgloss.NewStyle().Foreground(c.Accent).Bold(true)
	TimeStyle = lipgloss.NewStyle().Foreground(c.Cyan)
	IDStyle = lipgloss.NewStyle().Foreground(c.TextDim)
	SnippetStyle = lipgloss.NewStyle().Foreground(c.TextDim)
	MatchStyle = lipgloss.NewStyle().Foreground(c.Bg).Background(c.Yellow).Bold(true)
	HelpKeyStyle = lipgloss.NewStyle().Foreground(c.Accent)
	HelpDescStyle = lipgloss.NewStyle().Foreground(c.Comment)
}
