// Package lifecycle creates, recovers and retires the per-month grids.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/javiermolinar/airtime/internal/dateutil"
	"github.com/javiermolinar/airtime/internal/grid"
	"github.com/javiermolinar/airtime/internal/slot"
)

// Capacity of a freshly created grid, grown when the layout needs more.
const (
	InitialRows = 1000
	InitialCols = 100
)

// DefaultKeepMonths is the retention window: the current month and the next two.
const DefaultKeepMonths = 3

// StructuralError reports a grid that could not be created or structured.
type StructuralError struct {
	Name string
	Op   string
	Err  error
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s grid %q: %v", e.Op, e.Name, e.Err)
}

func (e *StructuralError) Unwrap() error {
	return e.Err
}

// Options tune a Manager. Zero values select defaults.
type Options struct {
	Names      *Names
	KeepMonths int
	Logger     *slog.Logger
}

// Manager owns grid naming, creation and retention.
type Manager struct {
	store   grid.Store
	layout  grid.Layout
	catalog *slot.Catalog
	names   Names
	keep    int
	logger  *slog.Logger
	pattern *regexp.Regexp
	months  map[string]time.Month
}

// New creates a Manager.
func New(store grid.Store, layout grid.Layout, catalog *slot.Catalog, opts Options) (*Manager, error) {
	names := DefaultNames()
	if opts.Names != nil {
		names = *opts.Names
	}
	if err := names.Validate(); err != nil {
		return nil, fmt.Errorf("invalid names: %w", err)
	}
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("invalid layout: %w", err)
	}

	m := &Manager{
		store:   store,
		layout:  layout,
		catalog: catalog,
		names:   names,
		keep:    opts.KeepMonths,
		logger:  opts.Logger,
		months:  make(map[string]time.Month, 12),
	}
	if m.keep < 1 {
		m.keep = DefaultKeepMonths
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}

	alts := make([]string, len(names.Months))
	for i, name := range names.Months {
		name = strings.TrimSpace(name)
		m.names.Months[i] = name
		m.months[name] = time.Month(i + 1)
		alts[i] = regexp.QuoteMeta(name)
	}
	m.pattern = regexp.MustCompile(`^(` + strings.Join(alts, "|") + `)(\d{4})$`)
	return m, nil
}

// MonthName returns the configured name of the period's month.
func (m *Manager) MonthName(p slot.Period) string {
	return m.names.Months[p.Month-1]
}

// CanonicalName is the grid name of a period, e.g. "January2025".
func (m *Manager) CanonicalName(p slot.Period) string {
	return fmt.Sprintf("%s%04d", m.MonthName(p), p.Year)
}

// ParseName recovers the period from a canonical grid name.
func (m *Manager) ParseName(name string) (slot.Period, bool) {
	match := m.pattern.FindStringSubmatch(name)
	if match == nil {
		return slot.Period{}, false
	}
	year, err := strconv.Atoi(match[2])
	if err != nil {
		return slot.Period{}, false
	}
	return slot.Period{Year: year, Month: m.months[match[1]]}, true
}

// EnsurePeriod returns the grid of a period, creating it if needed.
//
// A grid named "<canonical>_conflict<N>", left behind when two creations
// collided in the store, is renamed back to the canonical name instead of
// building a duplicate. A new grid is fully structured before it is
// returned; if structuring fails the grid is removed again.
func (m *Manager) EnsurePeriod(ctx context.Context, p slot.Period) (grid.Handle, error) {
	name := m.CanonicalName(p)

	h, err := m.store.GetGrid(ctx, name)
	if err == nil {
		return m.fit(ctx, h)
	}
	if !errors.Is(err, grid.ErrNotFound) {
		return grid.Handle{}, fmt.Errorf("looking up grid %q: %w", name, err)
	}

	if h, ok := m.recoverConflict(ctx, name); ok {
		return m.fit(ctx, h)
	}

	return m.create(ctx, p, name)
}

func (m *Manager) recoverConflict(ctx context.Context, name string) (grid.Handle, bool) {
	grids, err := m.store.ListGrids(ctx)
	if err != nil {
		m.logger.Error("listing grids", "error", err)
		return grid.Handle{}, false
	}

	conflict := regexp.MustCompile(`^` + regexp.QuoteMeta(name) + `_conflict\d+$`)
	for _, g := range grids {
		if !conflict.MatchString(g.Name) {
			continue
		}
		m.logger.Info("found conflicting grid", "grid", g.Name)
		renamed, err := m.store.RenameGrid(ctx, g, name)
		if err != nil {
			m.logger.Error("renaming grid", "grid", g.Name, "to", name, "error", err)
			continue
		}
		m.logger.Info("grid renamed", "grid", name)
		return renamed, true
	}
	return grid.Handle{}, false
}

func (m *Manager) create(ctx context.Context, p slot.Period, name string) (grid.Handle, error) {
	h, err := m.store.CreateGrid(ctx, name, InitialRows, InitialCols)
	if errors.Is(err, grid.ErrExists) {
		return m.adopt(ctx, p, name)
	}
	if err != nil {
		return grid.Handle{}, &StructuralError{Name: name, Op: "creating", Err: err}
	}
	m.logger.Info("grid created", "grid", name)

	h, err = m.fit(ctx, h)
	if err == nil {
		err = m.structure(ctx, h, p)
	}
	if err != nil {
		if derr := m.store.DeleteGrid(ctx, h); derr != nil {
			m.logger.Error("removing half-built grid", "grid", name, "error", derr)
		}
		return grid.Handle{}, &StructuralError{Name: name, Op: "structuring", Err: err}
	}
	return h, nil
}

// adopt takes over a grid that appeared between lookup and creation. Its
// structure is rewritten unless the last structural write is already there.
func (m *Manager) adopt(ctx context.Context, p slot.Period, name string) (grid.Handle, error) {
	h, err := m.store.GetGrid(ctx, name)
	if err != nil {
		return grid.Handle{}, fmt.Errorf("looking up grid %q: %w", name, err)
	}
	if h, err = m.fit(ctx, h); err != nil {
		return grid.Handle{}, err
	}
	done, err := m.structured(ctx, h, p)
	if err != nil {
		return grid.Handle{}, fmt.Errorf("inspecting grid %q: %w", name, err)
	}
	if done {
		return h, nil
	}
	m.logger.Warn("grid exists without structure", "grid", name)
	if err := m.structure(ctx, h, p); err != nil {
		return grid.Handle{}, &StructuralError{Name: name, Op: "structuring", Err: err}
	}
	return h, nil
}

func (m *Manager) structure(ctx context.Context, h grid.Handle, p slot.Period) error {
	limit := m.store.Limits().Structural
	return grid.WriteChunked(ctx, m.store, h, m.Structure(p), limit, nil)
}

// structured reports whether the date of the last day of the last table is
// written. Structure writes it last.
func (m *Manager) structured(ctx context.Context, h grid.Handle, p slot.Period) (bool, error) {
	n := m.catalog.Len()
	if n == 0 {
		return true, nil
	}
	c := grid.Cell{Row: m.layout.DayRow(n-1, p.Days()), Col: m.layout.TableLeft(n-1) + grid.ColDate}
	snap, err := m.store.ReadCells(ctx, h, grid.Range{Top: c.Row, Left: c.Col, Bottom: c.Row, Right: c.Col})
	if err != nil {
		return false, err
	}
	return snap[c] != "", nil
}

// fit grows a grid that is too small for the layout.
func (m *Manager) fit(ctx context.Context, h grid.Handle) (grid.Handle, error) {
	rows := max(h.Rows, m.layout.RequiredRows(m.catalog.Len()))
	cols := max(h.Cols, m.layout.RequiredColumns())
	if rows == h.Rows && cols == h.Cols {
		return h, nil
	}
	resized, err := m.store.ResizeGrid(ctx, h, rows, cols)
	if err != nil {
		return grid.Handle{}, &StructuralError{Name: h.Name, Op: "resizing", Err: err}
	}
	m.logger.Info("grid resized", "grid", h.Name, "rows", rows, "cols", cols)
	return resized, nil
}

// Structure returns the writes that lay out every channel table of a
// period: merged title, column headers, grey day-name and date columns,
// and one row per calendar day.
func (m *Manager) Structure(p slot.Period) []grid.Write {
	days := p.Days()
	rows := make([][]string, days)
	for d := 1; d <= days; d++ {
		date := p.Date(d)
		rows[d-1] = []string{
			m.names.Weekdays[dateutil.MondayIndex(date)],
			date.Format(m.names.DateFormat),
		}
	}

	writes := make([]grid.Write, 0, m.catalog.Len()*5)
	for i, ch := range m.catalog.Channels() {
		writes = append(writes,
			grid.Write{
				Range:  m.layout.TitleRange(i),
				Values: [][]string{{strings.ToUpper(ch.Name)}},
				Format: &grid.Format{Bold: true, Center: true},
				Merge:  true,
			},
			grid.Write{
				Range:  m.layout.HeaderRange(i),
				Values: [][]string{m.names.Headers},
				Format: &grid.Format{Bold: true, Center: true},
			},
			grid.Write{
				Range:  m.layout.ColumnRange(i, grid.ColDayName),
				Format: &grid.Format{Fill: slot.ColorDarkGray, Bold: true, Center: true},
			},
			grid.Write{
				Range:  m.layout.ColumnRange(i, grid.ColDate),
				Format: &grid.Format{Fill: slot.ColorLightGray, Center: true},
			},
			grid.Write{
				Range:  m.layout.DaysRange(i, days),
				Values: rows,
			},
		)
	}
	return writes
}

// KeepWindow returns the current period and the n-1 following ones.
func KeepWindow(now time.Time, n int) []slot.Period {
	if n < 1 {
		n = 1
	}
	first := slot.PeriodOf(now)
	keep := make([]slot.Period, n)
	for i := range keep {
		keep[i] = first.AddMonths(i)
	}
	return keep
}

// PrunePeriods deletes canonically named grids whose period is not in keep.
// Grids with any other name are never touched. Failed deletions are logged
// and skipped. It returns the names of the deleted grids.
func (m *Manager) PrunePeriods(ctx context.Context, grids []grid.Handle, keep []slot.Period) []string {
	keepSet := make(map[slot.Period]bool, len(keep))
	for _, p := range keep {
		keepSet[p] = true
	}

	var deleted []string
	for _, g := range grids {
		p, ok := m.ParseName(g.Name)
		if !ok || keepSet[p] {
			continue
		}
		if err := m.store.DeleteGrid(ctx, g); err != nil {
			m.logger.Error("deleting grid", "grid", g.Name, "error", err)
			continue
		}
		m.logger.Info("grid deleted", "grid", g.Name)
		deleted = append(deleted, g.Name)
	}
	return deleted
}

// Prune applies the configured keep window relative to now. The periods
// passed in are kept as well.
func (m *Manager) Prune(ctx context.Context, now time.Time, also ...slot.Period) ([]string, error) {
	grids, err := m.store.ListGrids(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing grids: %w", err)
	}
	keep := append(KeepWindow(now, m.keep), also...)
	return m.PrunePeriods(ctx, grids, keep), nil
}
