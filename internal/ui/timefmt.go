package ui

import (
	"time"

	"github.com/dustin/go-humanize"
)

// Coarser than humanize.Time: the picker only needs a glance.
var relMagnitudes = []humanize.RelTimeMagnitude{
	{D: time.Minute, Format: "just now", DivBy: time.Second},
	{D: time.Hour, Format: "%dm %s", DivBy: time.Minute},
	{D: humanize.Day, Format: "%dh %s", DivBy: time.Hour},
	{D: humanize.Week, Format: "%dd %s", DivBy: humanize.Day},
	{D: humanize.Month, Format: "%dw %s", DivBy: humanize.Week},
	{D: humanize.Year, Format: "%dmo %s", DivBy: humanize.Month},
	{D: humanize.LongTime, Format: "%dy %s", DivBy: humanize.Year},
}

// RelativeTime renders t relative to now, e.g. "3h ago".
func RelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	if t.After(now) {
		t = now
	}
	return humanize.CustomRelTime(t, now, "ago", "from now", relMagnitudes)
}

// FormatDate is the absolute form used next to the relative time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "----------"
	}
	return t.Local().Format("2006-01-02 15:04")
}
