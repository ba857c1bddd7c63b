package grid

import (
	"fmt"

	"github.com/javiermolinar/airtime/internal/slot"
)

// Cell is a 1-based (row, column) coordinate.
type Cell struct {
	Row int
	Col int
}

func (c Cell) String() string {
	return A1(c.Row, c.Col)
}

// Range is an inclusive rectangle of cells.
type Range struct {
	Top    int
	Left   int
	Bottom int
	Right  int
}

// CellRange is the single-cell range at c.
func CellRange(c Cell) Range {
	return Range{Top: c.Row, Left: c.Col, Bottom: c.Row, Right: c.Col}
}

// Contains reports whether c lies inside r.
func (r Range) Contains(c Cell) bool {
	return c.Row >= r.Top && c.Row <= r.Bottom && c.Col >= r.Left && c.Col <= r.Right
}

// Rows returns the number of rows spanned.
func (r Range) Rows() int { return r.Bottom - r.Top + 1 }

// Cols returns the number of columns spanned.
func (r Range) Cols() int { return r.Right - r.Left + 1 }

// Valid reports whether the range is non-empty and 1-based.
func (r Range) Valid() bool {
	return r.Top >= 1 && r.Left >= 1 && r.Bottom >= r.Top && r.Right >= r.Left
}

// Clip intersects r with the first rows x cols cells of a grid.
func (r Range) Clip(rows, cols int) (Range, bool) {
	out := Range{Top: r.Top, Left: r.Left, Bottom: min(r.Bottom, rows), Right: min(r.Right, cols)}
	return out, out.Valid()
}

func (r Range) String() string {
	return A1(r.Top, r.Left) + ":" + A1(r.Bottom, r.Right)
}

// BoundingBox returns the range anchored at A1 that covers every cell, the
// shape of a single batched read.
func BoundingBox(cells []Cell) (Range, bool) {
	if len(cells) == 0 {
		return Range{}, false
	}
	r := Range{Top: 1, Left: 1, Bottom: 1, Right: 1}
	for _, c := range cells {
		r.Bottom = max(r.Bottom, c.Row)
		r.Right = max(r.Right, c.Col)
	}
	return r, true
}

// A1 renders a 1-based coordinate in spreadsheet notation.
func A1(row, col int) string {
	return ColumnName(col) + fmt.Sprint(row)
}

// ColumnName converts a 1-based column number to letters (1 -> A, 27 -> AA).
func ColumnName(col int) string {
	name := ""
	for col > 0 {
		col--
		name = string(rune('A'+col%26)) + name
		col /= 26
	}
	return name
}

// Format is the visual state applied by a write.
type Format struct {
	Fill   slot.Color
	Bold   bool
	Center bool
}

// Write is one request in a batched store update.
//
// When Values is non-nil every cell of Range is overwritten: Values is
// row-major relative to the range's top-left and cells it does not cover are
// cleared. A nil Values leaves content untouched. A nil Format leaves
// formatting untouched. Merge joins the range into one merged cell.
type Write struct {
	Range  Range
	Values [][]string
	Format *Format
	Merge  bool
}

// SetCell builds a single-cell content + background write.
func SetCell(c Cell, value string, fill slot.Color) Write {
	return Write{
		Range:  CellRange(c),
		Values: [][]string{{value}},
		Format: &Format{Fill: fill},
	}
}

// ValueAt returns the value a write assigns to cell c.
func (w Write) ValueAt(c Cell) string {
	i, j := c.Row-w.Range.Top, c.Col-w.Range.Left
	if i < len(w.Values) && j < len(w.Values[i]) {
		return w.Values[i][j]
	}
	return ""
}

// Snapshot is the result of a batched read. Every in-bounds cell of the
// requested range is present, blank cells as "". Cells outside the grid's
// capacity are absent.
type Snapshot map[Cell]string

// Value returns the content of c and whether c was inside the grid.
func (s Snapshot) Value(c Cell) (string, bool) {
	v, ok := s[c]
	return v, ok
}
