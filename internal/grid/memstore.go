package grid

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// CellState is the content and formatting of one stored cell.
type CellState struct {
	Value  string
	Format Format
}

type memGrid struct {
	handle Handle
	cells  map[Cell]CellState
	merges []Range
}

// MemStore is an in-process Store. It backs dry runs and tests.
// It is safe for concurrent use.
type MemStore struct {
	mu     sync.Mutex
	nextID int64
	grids  map[int64]*memGrid
	limits Limits
	calls  map[string]int

	// Fail, when set, is consulted before every operation; a non-nil
	// result is returned instead of performing the operation.
	Fail func(op string) error
}

// NewMemStore creates an empty in-memory store with the default limits.
func NewMemStore() *MemStore {
	return &MemStore{
		nextID: 1,
		grids:  make(map[int64]*memGrid),
		limits: DefaultLimits(),
		calls:  make(map[string]int),
	}
}

func (m *MemStore) enter(op string) error {
	m.calls[op]++
	if m.Fail != nil {
		return m.Fail(op)
	}
	return nil
}

// Calls returns how many times op was invoked (e.g. "WriteCells").
func (m *MemStore) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *MemStore) byName(name string) *memGrid {
	for _, g := range m.grids {
		if g.handle.Name == name {
			return g
		}
	}
	return nil
}

func (m *MemStore) lookup(h Handle) (*memGrid, error) {
	g, ok := m.grids[h.ID]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, h.ID)
	}
	return g, nil
}

// ListGrids returns every grid ordered by creation.
func (m *MemStore) ListGrids(_ context.Context) ([]Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListGrids"); err != nil {
		return nil, err
	}
	out := make([]Handle, 0, len(m.grids))
	for _, g := range m.grids {
		out = append(out, g.handle)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetGrid looks a grid up by name.
func (m *MemStore) GetGrid(_ context.Context, name string) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetGrid"); err != nil {
		return Handle{}, err
	}
	g := m.byName(name)
	if g == nil {
		return Handle{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return g.handle, nil
}

// CreateGrid adds an empty grid.
func (m *MemStore) CreateGrid(_ context.Context, name string, rows, cols int) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateGrid"); err != nil {
		return Handle{}, err
	}
	if m.byName(name) != nil {
		return Handle{}, fmt.Errorf("%w: %q", ErrExists, name)
	}
	h := Handle{ID: m.nextID, Name: name, Rows: rows, Cols: cols}
	m.nextID++
	m.grids[h.ID] = &memGrid{handle: h, cells: make(map[Cell]CellState)}
	return h, nil
}

// RenameGrid changes a grid's name.
func (m *MemStore) RenameGrid(_ context.Context, h Handle, name string) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("RenameGrid"); err != nil {
		return Handle{}, err
	}
	g, err := m.lookup(h)
	if err != nil {
		return Handle{}, err
	}
	if other := m.byName(name); other != nil && other != g {
		return Handle{}, fmt.Errorf("%w: %q", ErrExists, name)
	}
	g.handle.Name = name
	return g.handle, nil
}

// DeleteGrid removes a grid.
func (m *MemStore) DeleteGrid(_ context.Context, h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DeleteGrid"); err != nil {
		return err
	}
	if _, err := m.lookup(h); err != nil {
		return err
	}
	delete(m.grids, h.ID)
	return nil
}

// ResizeGrid changes a grid's capacity.
func (m *MemStore) ResizeGrid(_ context.Context, h Handle, rows, cols int) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ResizeGrid"); err != nil {
		return Handle{}, err
	}
	g, err := m.lookup(h)
	if err != nil {
		return Handle{}, err
	}
	g.handle.Rows, g.handle.Cols = rows, cols
	return g.handle, nil
}

// ReadCells returns every in-bounds cell of r.
func (m *MemStore) ReadCells(_ context.Context, h Handle, r Range) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ReadCells"); err != nil {
		return nil, err
	}
	g, err := m.lookup(h)
	if err != nil {
		return nil, err
	}
	snap := make(Snapshot)
	clipped, ok := r.Clip(g.handle.Rows, g.handle.Cols)
	if !ok {
		return snap, nil
	}
	for row := clipped.Top; row <= clipped.Bottom; row++ {
		for col := clipped.Left; col <= clipped.Right; col++ {
			c := Cell{Row: row, Col: col}
			snap[c] = g.cells[c].Value
		}
	}
	return snap, nil
}

// WriteCells applies writes in order.
func (m *MemStore) WriteCells(_ context.Context, h Handle, writes []Write) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("WriteCells"); err != nil {
		return err
	}
	g, err := m.lookup(h)
	if err != nil {
		return err
	}
	for _, w := range writes {
		if !w.Range.Valid() || w.Range.Bottom > g.handle.Rows || w.Range.Right > g.handle.Cols {
			return fmt.Errorf("write range %s outside grid %q (%dx%d)", w.Range, g.handle.Name, g.handle.Rows, g.handle.Cols)
		}
	}
	for _, w := range writes {
		for row := w.Range.Top; row <= w.Range.Bottom; row++ {
			for col := w.Range.Left; col <= w.Range.Right; col++ {
				c := Cell{Row: row, Col: col}
				st := g.cells[c]
				if w.Values != nil {
					st.Value = w.ValueAt(c)
				}
				if w.Format != nil {
					st.Format = *w.Format
				}
				g.cells[c] = st
			}
		}
		if w.Merge {
			g.merges = append(g.merges, w.Range)
		}
	}
	return nil
}

// Cell returns the stored state of one cell.
func (m *MemStore) Cell(h Handle, c Cell) CellState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.grids[h.ID]; ok {
		return g.cells[c]
	}
	return CellState{}
}

// Merges returns the merged ranges of a grid.
func (m *MemStore) Merges(h Handle) []Range {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.grids[h.ID]; ok {
		return append([]Range(nil), g.merges...)
	}
	return nil
}

// Limits reports the per-request caps.
func (m *MemStore) Limits() Limits {
	return m.limits
}

// Close is a no-op.
func (m *MemStore) Close() error {
	return nil
}
