package ui

import (
	"fmt"
	"html"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/javiermolinar/airtime/internal/report"
)

// Color definitions for consistent styling across the UI.
var (
	colorSuccess = color.New(color.FgGreen, color.Bold)
	colorSkip    = color.New(color.FgYellow, color.Bold)
	colorError   = color.New(color.FgRed, color.Bold)
	colorFree    = color.New(color.FgCyan)
	colorHeader  = color.New(color.Bold)
	colorMuted   = color.New(color.FgWhite, color.Faint)
)

// setupColor turns color off when asked to or when out is not a terminal.
func setupColor(out io.Writer, disabled bool) {
	if disabled || !isTerminal(out) {
		DisableColor()
		return
	}
	EnableColor()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// DisableColor disables all color output.
func DisableColor() {
	color.NoColor = true
}

// EnableColor enables color output (if terminal supports it).
func EnableColor() {
	color.NoColor = false
}

var linkPattern = regexp.MustCompile(`<a href="([^"]*)">([^<]*)</a>`)

// plain turns the chat markup of a report into terminal text.
func plain(s string) string {
	return html.UnescapeString(linkPattern.ReplaceAllString(s, "$2"))
}

// printReport writes a report, coloring section headings and free slots.
func printReport(w io.Writer, text string) {
	headings := report.DefaultHeadings()
	for _, line := range strings.Split(plain(text), "\n") {
		switch {
		case strings.HasPrefix(line, "✅"):
			line = colorSuccess.Sprint(line)
		case strings.HasPrefix(line, "⏩"):
			line = colorSkip.Sprint(line)
		case strings.HasPrefix(line, "❌"):
			line = colorError.Sprint(line)
		case line == headings.AllBusy:
			line = colorMuted.Sprint(line)
		case strings.Contains(line, report.FreeMark) || strings.HasSuffix(line, " "+report.EveningMark):
			line = strings.ReplaceAll(line, report.FreeMark, colorFree.Sprint(report.FreeMark))
			if rest, ok := strings.CutSuffix(line, " "+report.EveningMark); ok {
				line = rest + " " + colorFree.Sprint(report.EveningMark)
			}
		case strings.HasSuffix(line, ":"):
			line = colorHeader.Sprint(line)
		}
		_, _ = fmt.Fprintln(w, line)
	}
}
