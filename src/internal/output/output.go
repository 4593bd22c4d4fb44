// Package output renders command results: a human-readable default format
// and a machine-readable JSON mode selected with --output json.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Format selects how command results are rendered.
type Format string

const (
	FormatDefault Format = "default"
	FormatJSON    Format = "json"
)

// ANSI color codes used by the default renderer.
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Dim    = "\033[2m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
)

var currentFormat = FormatDefault

// SetFormat sets the active output format. An empty string selects the
// default format.
func SetFormat(format string) error {
	switch format {
	case "", string(FormatDefault):
		currentFormat = FormatDefault
	case string(FormatJSON):
		currentFormat = FormatJSON
	default:
		return fmt.Errorf("unsupported output format %q (supported: default, json)", format)
	}
	return nil
}

// GetFormat returns the active output format.
func GetFormat() Format {
	return currentFormat
}

// IsJSON reports whether JSON mode is active.
func IsJSON() bool {
	return currentFormat == FormatJSON
}

// PrintJSON writes data as indented JSON to stdout.
func PrintJSON(data interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// PrintDefault runs the formatter only when the default format is active.
func PrintDefault(formatter func()) {
	if IsJSON() {
		return
	}
	formatter()
}

// Print renders data as JSON in JSON mode, otherwise runs the formatter.
func Print(data interface{}, formatter func()) error {
	if IsJSON() {
		return PrintJSON(data)
	}
	formatter()
	return nil
}

func Header(title string) {
	fmt.Fprintf(os.Stdout, "\n%s%s%s\n", Bold, title, Reset)
}

func Section(icon, title string) {
	fmt.Fprintf(os.Stdout, "\n%s %s%s%s\n", icon, Bold, title, Reset)
}

func Success(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, "%s✓%s %s\n", Green, Reset, fmt.Sprintf(format, args...))
}

func Error(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, "%s✗%s %s\n", Red, Reset, fmt.Sprintf(format, args...))
}

func Warning(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, "%s!%s %s\n", Yellow, Reset, fmt.Sprintf(format, args...))
}

func Info(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, "%s\n", fmt.Sprintf(format, args...))
}

func Step(icon, format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, "%s %s\n", icon, fmt.Sprintf(format, args...))
}

func Item(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, "  • %s\n", fmt.Sprintf(format, args...))
}

func ItemSuccess(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, "  %s✓%s %s\n", Green, Reset, fmt.Sprintf(format, args...))
}

func ItemError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, "  %s✗%s %s\n", Red, Reset, fmt.Sprintf(format, args...))
}

func ItemWarning(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, "  %s!%s %s\n", Yellow, Reset, fmt.Sprintf(format, args...))
}

func Divider() {
	fmt.Fprintln(os.Stdout, Dim+strings.Repeat("─", 40)+Reset)
}

func Newline() {
	fmt.Fprintln(os.Stdout)
}

func Label(name, value string) {
	fmt.Fprintf(os.Stdout, "  %s%s:%s %s\n", Dim, name, Reset, value)
}

// Highlight wraps text in the accent color for inline use.
func Highlight(format string, args ...interface{}) string {
	return Cyan + fmt.Sprintf(format, args...) + Reset
}

// Emphasize wraps text in bold for inline use.
func Emphasize(format string, args ...interface{}) string {
	return Bold + fmt.Sprintf(format, args...) + Reset
}

// Muted wraps text in the dim color for inline use.
func Muted(format string, args ...interface{}) string {
	return Dim + fmt.Sprintf(format, args...) + Reset
}

// URL renders a link in the accent color.
func URL(url string) string {
	return Cyan + url + Reset
}

// Count renders a number in bold.
func Count(n int) string {
	return Emphasize("%d", n)
}
