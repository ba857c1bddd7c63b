package slot

import (
	"sort"
	"strings"
)

// Color is a cell background color.
type Color int

const (
	// ColorNone leaves the background untouched.
	ColorNone Color = iota
	ColorWhite
	ColorRed
	ColorYellow
	ColorPink
	ColorCyan
	ColorGreen
	ColorDarkGray
	ColorLightGray
)

// Appendable is the color whose reservations accumulate in an occupied cell.
const Appendable = ColorCyan

// Cancelled marks a cell that was cleared by a cancel operation.
const Cancelled = ColorGreen

var colorNames = map[Color]string{
	ColorWhite:     "white",
	ColorRed:       "red",
	ColorYellow:    "yellow",
	ColorPink:      "pink",
	ColorCyan:      "cyan",
	ColorGreen:     "green",
	ColorDarkGray:  "dark_gray",
	ColorLightGray: "light_gray",
}

var colorHex = map[Color]string{
	ColorWhite:     "FFFFFF",
	ColorRed:       "FF0000",
	ColorYellow:    "FFFF00",
	ColorPink:      "FF00FF",
	ColorCyan:      "00FFFF",
	ColorGreen:     "00FF00",
	ColorDarkGray:  "B7B7B7",
	ColorLightGray: "E6E6E6",
}

func (c Color) String() string {
	if name, ok := colorNames[c]; ok {
		return name
	}
	return "none"
}

// Hex returns the RRGGBB form of the color, or "" for ColorNone.
func (c Color) Hex() string {
	return colorHex[c]
}

// ColorByName resolves a canonical color name such as "cyan".
func ColorByName(name string) (Color, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for c, n := range colorNames {
		if n == name {
			return c, true
		}
	}
	return ColorNone, false
}

// ColorByHex resolves an RRGGBB string back to a known color.
func ColorByHex(hex string) Color {
	hex = strings.ToUpper(strings.TrimPrefix(hex, "#"))
	// excelize reports ARGB for some fills
	if len(hex) == 8 {
		hex = hex[2:]
	}
	for c, h := range colorHex {
		if h == hex {
			return c
		}
	}
	return ColorNone
}

// Palette maps operator-facing color tags to colors.
type Palette struct {
	tags map[string]Color
}

// NewPalette builds a palette from tag -> color pairs.
// English color names for the reservation colors are always accepted.
func NewPalette(tags map[string]Color) Palette {
	p := Palette{tags: make(map[string]Color, len(tags)+4)}
	for _, c := range []Color{ColorRed, ColorYellow, ColorPink, ColorCyan} {
		p.tags[c.String()] = c
	}
	for tag, c := range tags {
		p.tags[strings.ToLower(strings.TrimSpace(tag))] = c
	}
	return p
}

// Known reports whether tag names a configured reservation color.
func (p Palette) Known(tag string) bool {
	_, ok := p.tags[strings.ToLower(strings.TrimSpace(tag))]
	return ok
}

// Lookup resolves a tag. Unknown tags resolve to white.
func (p Palette) Lookup(tag string) Color {
	if c, ok := p.tags[strings.ToLower(strings.TrimSpace(tag))]; ok {
		return c
	}
	return ColorWhite
}

// Tags returns the accepted tags in sorted order.
func (p Palette) Tags() []string {
	tags := make([]string, 0, len(p.tags))
	for t := range p.tags {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}
