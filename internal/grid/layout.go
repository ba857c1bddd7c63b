// Package grid maps channel/day/shift slots onto spreadsheet cells and
// defines the contract of the tabular store that holds them.
package grid

import (
	"errors"
	"fmt"

	"github.com/javiermolinar/airtime/internal/slot"
)

// Fixed column offsets inside a channel table, relative to its left edge.
const (
	ColDayName    = 0
	ColDate       = 1
	ColFirstShift = 2 // morning; the other shifts follow in order
)

// headerRows is the title row plus the column-header row.
const headerRows = 2

// MaxDays is the number of day rows reserved in every table.
const MaxDays = 31

// Layout is the static geometry of the per-channel tables.
type Layout struct {
	TableWidth   int
	TableHeight  int
	HSpacing     int
	VSpacing     int
	TablesPerRow int
}

// DefaultLayout mirrors the production sheets: six columns, two header rows
// plus 31 day rows, four tables side by side.
func DefaultLayout() Layout {
	return Layout{
		TableWidth:   6,
		TableHeight:  headerRows + MaxDays,
		HSpacing:     1,
		VSpacing:     2,
		TablesPerRow: 4,
	}
}

// Validate checks that the geometry can hold a full table.
func (l Layout) Validate() error {
	if l.TablesPerRow < 1 {
		return errors.New("tables_per_row must be at least 1")
	}
	if l.TableWidth < ColFirstShift+len(slot.Shifts) {
		return fmt.Errorf("table_width must be at least %d", ColFirstShift+len(slot.Shifts))
	}
	if l.TableHeight < headerRows+MaxDays {
		return fmt.Errorf("table_height must be at least %d", headerRows+MaxDays)
	}
	if l.HSpacing < 0 || l.VSpacing < 0 {
		return errors.New("spacing cannot be negative")
	}
	return nil
}

// RequiredColumns is the column capacity a grid needs for this layout.
func (l Layout) RequiredColumns() int {
	return (l.TableWidth + l.HSpacing) * l.TablesPerRow
}

// RequiredRows is the row capacity a grid needs for n channels.
func (l Layout) RequiredRows(n int) int {
	groups := (n + l.TablesPerRow - 1) / l.TablesPerRow
	return groups * (l.TableHeight + l.VSpacing)
}

// TableTop is the 1-based row of the channel table's title.
func (l Layout) TableTop(channel int) int {
	return 1 + (channel/l.TablesPerRow)*(l.TableHeight+l.VSpacing)
}

// TableLeft is the 1-based column of the channel table's first column.
func (l Layout) TableLeft(channel int) int {
	return 1 + (channel%l.TablesPerRow)*(l.TableWidth+l.HSpacing)
}

// DayRow is the row holding day d of the channel's table. Day 1 sits right
// below the two header rows.
func (l Layout) DayRow(channel, day int) int {
	return l.TableTop(channel) + 1 + day
}

// Address returns the cell of one (channel, day, shift) slot.
func (l Layout) Address(channel, day int, shift slot.Shift) Cell {
	return Cell{
		Row: l.DayRow(channel, day),
		Col: l.TableLeft(channel) + ColFirstShift + int(shift),
	}
}

// TitleRange is the merged title row of a channel table.
func (l Layout) TitleRange(channel int) Range {
	top, left := l.TableTop(channel), l.TableLeft(channel)
	return Range{Top: top, Left: left, Bottom: top, Right: left + l.TableWidth - 1}
}

// HeaderRange is the column-header row of a channel table.
func (l Layout) HeaderRange(channel int) Range {
	top, left := l.TableTop(channel)+1, l.TableLeft(channel)
	return Range{Top: top, Left: left, Bottom: top, Right: left + l.TableWidth - 1}
}

// DaysRange covers the first n day rows of a channel table.
func (l Layout) DaysRange(channel, n int) Range {
	left := l.TableLeft(channel)
	return Range{
		Top:    l.DayRow(channel, 1),
		Left:   left,
		Bottom: l.DayRow(channel, n),
		Right:  left + l.TableWidth - 1,
	}
}

// ColumnRange covers one table column from the header row through the
// last reserved day row.
func (l Layout) ColumnRange(channel, offset int) Range {
	col := l.TableLeft(channel) + offset
	return Range{
		Top:    l.TableTop(channel) + 1,
		Left:   col,
		Bottom: l.DayRow(channel, MaxDays),
		Right:  col,
	}
}
