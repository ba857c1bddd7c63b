// Package report renders operation outcomes and day occupancy as chat text.
// Output is HTML-flavoured: channel names are escaped and linked.
package report

import (
	"fmt"
	"html"
	"strings"

	"github.com/javiermolinar/airtime/internal/slot"
)

// Markers used in occupancy lines.
const (
	FreeMark    = "⭕️"
	EveningMark = "18"
)

// Headings are the user-facing labels of a report.
type Headings struct {
	Success string
	Skip    string
	Error   string
	AllBusy string
}

// DefaultHeadings returns English labels.
func DefaultHeadings() Headings {
	return Headings{
		Success: "✅ Success:",
		Skip:    "⏩ Skipped:",
		Error:   "❌ Errors:",
		AllBusy: "All channels are busy",
	}
}

// Formatter renders reports for one channel catalogue.
type Formatter struct {
	catalog  *slot.Catalog
	groups   [][]int
	headings Headings
}

// New creates a Formatter. groups lists channel indexes per display group;
// channels that appear in no group are shown last, in catalogue order.
func New(catalog *slot.Catalog, groups [][]int, headings Headings) *Formatter {
	return &Formatter{
		catalog:  catalog,
		groups:   completeGroups(catalog.Len(), groups),
		headings: headings,
	}
}

func completeGroups(n int, groups [][]int) [][]int {
	seen := make([]bool, n)
	out := make([][]int, 0, len(groups)+1)
	for _, g := range groups {
		var kept []int
		for _, i := range g {
			if i < 0 || i >= n || seen[i] {
				continue
			}
			seen[i] = true
			kept = append(kept, i)
		}
		if len(kept) > 0 {
			out = append(out, kept)
		}
	}
	var rest []int
	for i, ok := range seen {
		if !ok {
			rest = append(rest, i)
		}
	}
	if len(rest) > 0 {
		out = append(out, rest)
	}
	return out
}

// Groups returns the effective display groups.
func (f *Formatter) Groups() [][]int {
	return f.groups
}

// channelLabel renders an escaped channel name, linked when the catalogue
// has a link for it.
func (f *Formatter) channelLabel(name string) string {
	escaped := html.EscapeString(name)
	if ch, ok := f.catalog.Lookup(name); ok && ch.Link != "" {
		return fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(ch.Link), escaped)
	}
	return escaped
}

// Outcomes renders outcomes as success, skip and error sections in that
// order. Empty sections are left out.
func (f *Formatter) Outcomes(outcomes []slot.Outcome) string {
	sections := []struct {
		status  slot.Status
		heading string
	}{
		{slot.StatusSuccess, f.headings.Success},
		{slot.StatusSkip, f.headings.Skip},
		{slot.StatusError, f.headings.Error},
	}

	var parts []string
	for _, sec := range sections {
		var lines []string
		for _, o := range outcomes {
			if o.Status != sec.status {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s (%s): %s",
				f.channelLabel(o.Channel), html.EscapeString(o.Time), html.EscapeString(o.Message)))
		}
		if len(lines) > 0 {
			parts = append(parts, sec.heading+"\n"+strings.Join(lines, "\n"))
		}
	}
	return strings.Join(parts, "\n\n")
}

// OccupancyLine renders one channel's free slots, or "" if none is free.
//
// The glyph count is the number of free morning, afternoon and day slots,
// plus one when the evening is free, minus one. The evening marker follows
// when the evening is free.
func (f *Formatter) OccupancyLine(a slot.Availability) string {
	if !a.AnyFree() {
		return ""
	}

	count := 0
	for _, sh := range []slot.Shift{slot.Morning, slot.Afternoon, slot.Day} {
		if a.Free[sh] {
			count++
		}
	}
	evening := a.Free[slot.Evening]
	if evening {
		count++
	}
	count--

	parts := []string{f.channelLabel(a.Channel.Name)}
	if count > 0 {
		parts = append(parts, strings.Repeat(FreeMark, count))
	}
	if evening {
		parts = append(parts, EveningMark)
	}
	return strings.Join(parts, " ")
}

// Occupancy renders the day view. Channels without a free slot are left
// out; groups are separated by a blank line.
func (f *Formatter) Occupancy(avail []slot.Availability) string {
	lines := make(map[int]string, len(avail))
	for _, a := range avail {
		if line := f.OccupancyLine(a); line != "" {
			lines[a.Index] = line
		}
	}
	if len(lines) == 0 {
		return f.headings.AllBusy
	}

	var blocks []string
	for _, g := range f.groups {
		var block []string
		for _, i := range g {
			if line, ok := lines[i]; ok {
				block = append(block, line)
			}
		}
		if len(block) > 0 {
			blocks = append(blocks, strings.Join(block, "\n"))
		}
	}
	return strings.Join(blocks, "\n\n")
}
