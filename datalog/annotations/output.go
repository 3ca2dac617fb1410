package annotations

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// OutputFormatter formats events for human-readable display.
type OutputFormatter struct {
	useColor bool
	writer   io.Writer
}

// NewOutputFormatter creates a formatter with color support detection.
func NewOutputFormatter(w io.Writer) *OutputFormatter {
	if w == nil {
		w = os.Stdout
	}

	// Auto-detect color support
	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	return &OutputFormatter{
		useColor: useColor,
		writer:   w,
	}
}

// Handle implements the Handler interface - prints events as they occur.
func (f *OutputFormatter) Handle(event Event) {
	output := f.Format(event)
	if output != "" {
		fmt.Fprintln(f.writer, output)
	}
}

// Format converts an event to a human-readable string.
func (f *OutputFormatter) Format(event Event) string {
	latency := f.formatLatency(event.Latency)

	switch event.Name {
	case CompileCompleted:
		return fmt.Sprintf("%s %s Compiled %s across %s",
			latency,
			f.colorize("===", color.FgGreen),
			f.colorizeCount("relations", event.Data["relations"].(int)),
			f.colorizeCount("workers", event.Data["workers"].(int)))

	case EpochCompleted:
		return fmt.Sprintf("%s %s Epoch %v sealed after %s, %s, %s",
			latency,
			f.colorize("===", color.FgGreen),
			event.Data["epoch"],
			f.colorizeCount("rounds", event.Data["rounds"].(int)),
			f.colorizeCount("steps", event.Data["steps"].(int)),
			f.colorizeCount("envelopes", event.Data["envelopes"].(int)))

	case EdgesLoaded:
		return fmt.Sprintf("%s Loaded %s",
			latency,
			f.colorizeCount("edges", event.Data["edges"].(int)))

	case JournalReplayed:
		return fmt.Sprintf("%s Replayed %s from journal",
			latency,
			f.colorizeCount("entries", event.Data["entries"].(int)))

	case RelationRead:
		return fmt.Sprintf("%s %s: %s",
			latency,
			f.colorizeName(event.Data["relation"].(string)),
			f.colorizeCount("edges", event.Data["edges"].(int)))

	case DegreesRead:
		return fmt.Sprintf("%s %s %v degrees: %s",
			latency,
			f.colorizeName(event.Data["relation"].(string)),
			event.Data["direction"],
			f.colorizeCount("nodes", event.Data["nodes"].(int)))

	case ErrorRulesParsing, ErrorEdgesLoad:
		return fmt.Sprintf("%s %s %v",
			latency,
			f.colorize("✗", color.FgRed),
			event.Data["error"])

	default:
		// Generic format for unknown events
		return fmt.Sprintf("%s %s %v", latency, event.Name, event.Data)
	}
}

// formatLatency formats a duration as [XXXms] or [XXXµs] with color coding.
func (f *OutputFormatter) formatLatency(d time.Duration) string {
	// Use microseconds for sub-millisecond durations
	if d < time.Millisecond {
		us := d.Microseconds()
		s := fmt.Sprintf("[%dµs]", us)
		if !f.useColor {
			return s
		}
		return color.GreenString(s)
	}

	// Use floating-point milliseconds to preserve precision
	ms := float64(d.Microseconds()) / 1000.0
	s := fmt.Sprintf("[%.1fms]", ms)

	if !f.useColor {
		return s
	}

	switch {
	case ms < 50:
		return color.GreenString(s)
	case ms < 200:
		return color.YellowString(s)
	default:
		return color.RedString(s)
	}
}

// colorizeCount formats a count with a label, using color based on the label type.
func (f *OutputFormatter) colorizeCount(label string, count int) string {
	text := fmt.Sprintf("%d %s", count, label)

	if !f.useColor {
		return text
	}

	switch strings.ToLower(label) {
	case "relations", "workers":
		return color.CyanString(text)
	case "edges", "entries", "nodes":
		return color.MagentaString(text)
	case "rounds", "steps", "envelopes":
		return color.BlueString(text)
	default:
		return text
	}
}

// colorizeName renders a relation name.
func (f *OutputFormatter) colorizeName(name string) string {
	if !f.useColor {
		return name
	}
	return color.CyanString(name)
}

// colorize applies color if enabled.
func (f *OutputFormatter) colorize(text string, attrs ...color.Attribute) string {
	if !f.useColor {
		return text
	}
	return color.New(attrs...).Sprint(text)
}

// ConsoleHandler creates a handler that prints formatted events to stdout.
func ConsoleHandler() Handler {
	formatter := NewOutputFormatter(os.Stdout)
	return formatter.Handle
}
