package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/javiermolinar/airtime/internal/slot"
)

var (
	errEntryLine = errors.New(`expected "<channel> <time>"`)
	errEntryArg  = errors.New(`expected "<channel>@<time>"`)
)

// CancelKeywords open a cancel message. Matching is case-insensitive.
var CancelKeywords = []string{"отмена", "cancel"}

// ParseMessage parses the plain-text chat protocol.
//
// A reservation is:
//
//	<text>
//	<day>
//	<color tag>
//	<channel> <H:MM>
//	...
//
// A cancellation starts with a cancel keyword instead of the text and has
// no color line. Blank lines are ignored. The channel name is everything
// before the last space of an entry line.
func ParseMessage(text string, palette slot.Palette) (Request, error) {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return nil, slot.Invalid("message", "", slot.ErrEmptyText)
	}

	if isCancel(lines[0]) {
		if len(lines) < 3 {
			return nil, slot.Invalid("message", "", fmt.Errorf("a cancellation needs at least 3 lines: %w", slot.ErrNoEntries))
		}
		day, err := parseDay(lines[1])
		if err != nil {
			return nil, err
		}
		entries, err := parseEntries(lines[2:], 3)
		if err != nil {
			return nil, err
		}
		return Cancel{Day: day, Entries: entries}, nil
	}

	if len(lines) < 4 {
		return nil, slot.Invalid("message", "", fmt.Errorf("a reservation needs at least 4 lines: %w", slot.ErrNoEntries))
	}
	day, err := parseDay(lines[1])
	if err != nil {
		return nil, err
	}
	color := strings.ToLower(lines[2])
	if !palette.Known(color) {
		return nil, slot.Invalid("line 3", lines[2],
			fmt.Errorf("%w, use one of: %s", slot.ErrInvalidColor, strings.Join(palette.Tags(), ", ")))
	}
	entries, err := parseEntries(lines[3:], 4)
	if err != nil {
		return nil, err
	}
	return Reserve{Day: day, Color: color, Text: lines[0], Entries: entries}, nil
}

func isCancel(line string) bool {
	for _, k := range CancelKeywords {
		if strings.EqualFold(line, k) {
			return true
		}
	}
	return false
}

func parseDay(s string) (int, error) {
	day, err := strconv.Atoi(s)
	if err != nil || day < 1 || day > 31 {
		return 0, slot.Invalid("line 2", s, slot.ErrInvalidDay)
	}
	return day, nil
}

// parseEntries parses "<channel> <time>" lines; first is the 1-based line
// number of lines[0], used in error messages.
func parseEntries(lines []string, first int) ([]slot.Entry, error) {
	entries := make([]slot.Entry, 0, len(lines))
	for i, l := range lines {
		field := fmt.Sprintf("line %d", first+i)
		idx := strings.LastIndex(l, " ")
		if idx < 0 {
			return nil, slot.Invalid(field, l, errEntryLine)
		}
		channel, tm := strings.TrimSpace(l[:idx]), l[idx+1:]
		if channel == "" {
			return nil, slot.Invalid(field, l, errEntryLine)
		}
		if err := slot.ValidateTime(tm); err != nil {
			return nil, slot.Invalid(field, tm, slot.ErrInvalidTimeFormat)
		}
		entries = append(entries, slot.Entry{Channel: channel, Time: tm})
	}
	return entries, nil
}

// ParseEntry parses the "<channel>@<time>" form used on the command line.
func ParseEntry(s string) (slot.Entry, error) {
	idx := strings.LastIndex(s, "@")
	if idx < 0 {
		return slot.Entry{}, slot.Invalid("entry", s, errEntryArg)
	}
	e := slot.Entry{Channel: strings.TrimSpace(s[:idx]), Time: strings.TrimSpace(s[idx+1:])}
	if e.Channel == "" {
		return slot.Entry{}, slot.Invalid("entry", s, errEntryArg)
	}
	if err := slot.ValidateTime(e.Time); err != nil {
		return slot.Entry{}, err
	}
	return e, nil
}
