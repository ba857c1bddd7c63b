// Package xlsx stores grids as worksheets of a single Excel workbook.
package xlsx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/javiermolinar/airtime/internal/grid"
	"github.com/javiermolinar/airtime/internal/slot"
)

// MetaSheet is the bookkeeping worksheet holding grid ids and capacities.
// Its rows are: id, name, rows, cols.
const MetaSheet = "_airtime"

// Store implements grid.Store on an .xlsx file. Every mutating call saves
// the workbook. It is safe for concurrent use within one process.
type Store struct {
	mu     sync.Mutex
	path   string
	file   *excelize.File
	grids  []grid.Handle
	nextID int64
	styles map[grid.Format]int
	byID   map[int]grid.Format
}

// Capacity recorded for sheets found in the workbook but not in MetaSheet,
// grown to the data they already hold.
const (
	AdoptedRows = 1000
	AdoptedCols = 100
)

// Open opens the workbook at path, creating it if it does not exist.
// Sheets added or removed outside the store are reconciled with MetaSheet.
func Open(path string) (*Store, error) {
	s := &Store{
		path:   path,
		nextID: 1,
		styles: make(map[grid.Format]int),
		byID:   make(map[int]grid.Format),
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		s.file = excelize.NewFile()
		if err := s.file.SetSheetName("Sheet1", MetaSheet); err != nil {
			return nil, fmt.Errorf("creating workbook: %w", err)
		}
		if err := s.save(); err != nil {
			return nil, err
		}
		return s, nil
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	s.file = f
	if err := s.reconcile(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) reconcile() error {
	changed := false
	idx, err := s.file.GetSheetIndex(MetaSheet)
	if err != nil {
		return fmt.Errorf("looking up %s sheet: %w", MetaSheet, err)
	}
	if idx < 0 {
		if _, err := s.file.NewSheet(MetaSheet); err != nil {
			return fmt.Errorf("creating %s sheet: %w", MetaSheet, err)
		}
		changed = true
	}

	previous, dirty, err := s.loadMeta()
	if err != nil {
		return err
	}
	changed = changed || dirty

	sheets := s.file.GetSheetList()
	present := make(map[string]bool, len(sheets))
	for _, name := range sheets {
		present[name] = true
	}
	kept := s.grids[:0]
	for _, h := range s.grids {
		if present[h.Name] {
			kept = append(kept, h)
		} else {
			changed = true
		}
	}
	s.grids = kept

	for _, name := range sheets {
		if name == MetaSheet || s.indexByName(name) >= 0 {
			continue
		}
		h, err := s.adopt(name)
		if err != nil {
			return err
		}
		s.grids = append(s.grids, h)
		changed = true
	}

	if !changed {
		return nil
	}
	return s.commitMeta(previous)
}

// adopt registers a sheet the store did not create.
func (s *Store) adopt(name string) (grid.Handle, error) {
	rows, err := s.file.GetRows(name)
	if err != nil {
		return grid.Handle{}, fmt.Errorf("reading sheet %q: %w", name, err)
	}
	h := grid.Handle{ID: s.nextID, Name: name, Rows: max(AdoptedRows, len(rows)), Cols: AdoptedCols}
	for _, row := range rows {
		h.Cols = max(h.Cols, len(row))
	}
	s.nextID++
	return h, nil
}

// loadMeta reads MetaSheet. It returns the number of rows read and whether
// any of them was unusable.
func (s *Store) loadMeta() (int, bool, error) {
	rows, err := s.file.GetRows(MetaSheet)
	if err != nil {
		return 0, false, fmt.Errorf("reading %s sheet: %w", MetaSheet, err)
	}
	dirty := false
	for i, row := range rows {
		if len(row) < 4 {
			dirty = true
			continue
		}
		id, err1 := strconv.ParseInt(row[0], 10, 64)
		nrows, err2 := strconv.Atoi(row[2])
		ncols, err3 := strconv.Atoi(row[3])
		if err := errors.Join(err1, err2, err3); err != nil {
			return 0, false, fmt.Errorf("parsing %s row %d: %w", MetaSheet, i+1, err)
		}
		s.grids = append(s.grids, grid.Handle{ID: id, Name: row[1], Rows: nrows, Cols: ncols})
		s.nextID = max(s.nextID, id+1)
	}
	return len(rows), dirty, nil
}

// writeMeta rewrites the bookkeeping sheet; previous is its old row count.
func (s *Store) writeMeta(previous int) error {
	for i, h := range s.grids {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		row := []any{strconv.FormatInt(h.ID, 10), h.Name, strconv.Itoa(h.Rows), strconv.Itoa(h.Cols)}
		if err := s.file.SetSheetRow(MetaSheet, cell, &row); err != nil {
			return fmt.Errorf("writing %s sheet: %w", MetaSheet, err)
		}
	}
	for r := previous; r > len(s.grids); r-- {
		if err := s.file.RemoveRow(MetaSheet, r); err != nil {
			return fmt.Errorf("writing %s sheet: %w", MetaSheet, err)
		}
	}
	return nil
}

// save flushes the workbook to disk. I/O failures are worth retrying.
func (s *Store) save() error {
	if err := s.file.SaveAs(s.path); err != nil {
		return grid.Transient(fmt.Errorf("saving workbook: %w", err))
	}
	return nil
}

func (s *Store) commitMeta(previous int) error {
	if err := s.writeMeta(previous); err != nil {
		return err
	}
	return s.save()
}

// mutate runs fn and, when it fails, puts the workbook and the grid list
// back to how they were before.
func (s *Store) mutate(fn func() error) error {
	buf, err := s.file.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("snapshotting workbook: %w", err)
	}
	grids, nextID := slices.Clone(s.grids), s.nextID

	if err := fn(); err != nil {
		f, rerr := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
		if rerr != nil {
			return errors.Join(err, fmt.Errorf("restoring workbook: %w", rerr))
		}
		_ = s.file.Close()
		s.file = f
		s.grids, s.nextID = grids, nextID
		return err
	}
	return nil
}

func (s *Store) indexByName(name string) int {
	for i, h := range s.grids {
		if h.Name == name {
			return i
		}
	}
	return -1
}

func (s *Store) indexByID(id int64) (int, error) {
	for i, h := range s.grids {
		if h.ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: id %d", grid.ErrNotFound, id)
}

func (s *Store) ListGrids(_ context.Context) ([]grid.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]grid.Handle(nil), s.grids...), nil
}

func (s *Store) GetGrid(_ context.Context, name string) (grid.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexByName(name); i >= 0 {
		return s.grids[i], nil
	}
	return grid.Handle{}, fmt.Errorf("%w: %s", grid.ErrNotFound, name)
}

func (s *Store) CreateGrid(_ context.Context, name string, rows, cols int) (grid.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == MetaSheet || s.indexByName(name) >= 0 {
		return grid.Handle{}, fmt.Errorf("%w: %q", grid.ErrExists, name)
	}

	var h grid.Handle
	err := s.mutate(func() error {
		if _, err := s.file.NewSheet(name); err != nil {
			return fmt.Errorf("creating sheet %q: %w", name, err)
		}
		h = grid.Handle{ID: s.nextID, Name: name, Rows: rows, Cols: cols}
		s.nextID++
		previous := len(s.grids)
		s.grids = append(s.grids, h)
		return s.commitMeta(previous)
	})
	if err != nil {
		return grid.Handle{}, err
	}
	return h, nil
}

func (s *Store) RenameGrid(_ context.Context, h grid.Handle, name string) (grid.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.indexByID(h.ID)
	if err != nil {
		return grid.Handle{}, err
	}
	if j := s.indexByName(name); name == MetaSheet || (j >= 0 && j != i) {
		return grid.Handle{}, fmt.Errorf("%w: %q", grid.ErrExists, name)
	}
	err = s.mutate(func() error {
		if err := s.file.SetSheetName(s.grids[i].Name, name); err != nil {
			return fmt.Errorf("renaming sheet: %w", err)
		}
		s.grids[i].Name = name
		return s.commitMeta(len(s.grids))
	})
	if err != nil {
		return grid.Handle{}, err
	}
	return s.grids[i], nil
}

func (s *Store) DeleteGrid(_ context.Context, h grid.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.indexByID(h.ID)
	if err != nil {
		return err
	}
	return s.mutate(func() error {
		if err := s.file.DeleteSheet(s.grids[i].Name); err != nil {
			return fmt.Errorf("deleting sheet: %w", err)
		}
		previous := len(s.grids)
		s.grids = append(s.grids[:i], s.grids[i+1:]...)
		return s.commitMeta(previous)
	})
}

func (s *Store) ResizeGrid(_ context.Context, h grid.Handle, rows, cols int) (grid.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.indexByID(h.ID)
	if err != nil {
		return grid.Handle{}, err
	}
	err = s.mutate(func() error {
		s.grids[i].Rows, s.grids[i].Cols = rows, cols
		return s.commitMeta(len(s.grids))
	})
	if err != nil {
		return grid.Handle{}, err
	}
	return s.grids[i], nil
}

func (s *Store) ReadCells(_ context.Context, h grid.Handle, r grid.Range) (grid.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.indexByID(h.ID)
	if err != nil {
		return nil, err
	}
	current := s.grids[i]

	snap := make(grid.Snapshot)
	clipped, ok := r.Clip(current.Rows, current.Cols)
	if !ok {
		return snap, nil
	}

	rows, err := s.file.GetRows(current.Name)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", current.Name, err)
	}
	for row := clipped.Top; row <= clipped.Bottom; row++ {
		var values []string
		if row <= len(rows) {
			values = rows[row-1]
		}
		for col := clipped.Left; col <= clipped.Right; col++ {
			v := ""
			if col <= len(values) {
				v = values[col-1]
			}
			snap[grid.Cell{Row: row, Col: col}] = v
		}
	}
	return snap, nil
}

func (s *Store) WriteCells(_ context.Context, h grid.Handle, writes []grid.Write) error {
	if len(writes) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.indexByID(h.ID)
	if err != nil {
		return err
	}
	current := s.grids[i]
	for _, w := range writes {
		if !w.Range.Valid() || w.Range.Bottom > current.Rows || w.Range.Right > current.Cols {
			return fmt.Errorf("write range %s outside grid %q (%dx%d)", w.Range, current.Name, current.Rows, current.Cols)
		}
	}

	for _, w := range writes {
		if err := s.apply(current.Name, w); err != nil {
			return fmt.Errorf("writing %s: %w", w.Range, err)
		}
	}
	return s.save()
}

func (s *Store) apply(sheet string, w grid.Write) error {
	topLeft, err := excelize.CoordinatesToCellName(w.Range.Left, w.Range.Top)
	if err != nil {
		return err
	}
	bottomRight, err := excelize.CoordinatesToCellName(w.Range.Right, w.Range.Bottom)
	if err != nil {
		return err
	}

	if w.Values != nil {
		for row := w.Range.Top; row <= w.Range.Bottom; row++ {
			for col := w.Range.Left; col <= w.Range.Right; col++ {
				name, err := excelize.CoordinatesToCellName(col, row)
				if err != nil {
					return err
				}
				if err := s.file.SetCellStr(sheet, name, w.ValueAt(grid.Cell{Row: row, Col: col})); err != nil {
					return err
				}
			}
		}
	}
	if w.Format != nil {
		id, err := s.style(*w.Format)
		if err != nil {
			return err
		}
		if err := s.file.SetCellStyle(sheet, topLeft, bottomRight, id); err != nil {
			return err
		}
	}
	if w.Merge {
		if err := s.file.MergeCell(sheet, topLeft, bottomRight); err != nil {
			return err
		}
	}
	return nil
}

// style returns the workbook style id of a format, registering it once.
func (s *Store) style(f grid.Format) (int, error) {
	if id, ok := s.styles[f]; ok {
		return id, nil
	}

	st := &excelize.Style{Font: &excelize.Font{Bold: f.Bold}}
	if hex := f.Fill.Hex(); hex != "" {
		st.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#" + hex}}
	}
	if f.Center {
		st.Alignment = &excelize.Alignment{Horizontal: "center"}
	}

	id, err := s.file.NewStyle(st)
	if err != nil {
		return 0, fmt.Errorf("creating style: %w", err)
	}
	s.styles[f] = id
	s.byID[id] = f
	return id, nil
}

// format maps a workbook style id back to a format.
func (s *Store) format(id int) (grid.Format, error) {
	if f, ok := s.byID[id]; ok {
		return f, nil
	}
	st, err := s.file.GetStyle(id)
	if err != nil {
		return grid.Format{}, err
	}
	var f grid.Format
	if st.Font != nil {
		f.Bold = st.Font.Bold
	}
	if st.Alignment != nil {
		f.Center = st.Alignment.Horizontal == "center"
	}
	if len(st.Fill.Color) > 0 {
		f.Fill = slot.ColorByHex(st.Fill.Color[0])
	}
	s.byID[id] = f
	return f, nil
}

// CellState returns the stored content and format of one cell.
func (s *Store) CellState(_ context.Context, h grid.Handle, c grid.Cell) (grid.CellState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.indexByID(h.ID)
	if err != nil {
		return grid.CellState{}, err
	}
	sheet := s.grids[i].Name
	name, err := excelize.CoordinatesToCellName(c.Col, c.Row)
	if err != nil {
		return grid.CellState{}, err
	}

	var st grid.CellState
	if st.Value, err = s.file.GetCellValue(sheet, name); err != nil {
		return grid.CellState{}, err
	}
	id, err := s.file.GetCellStyle(sheet, name)
	if err != nil {
		return grid.CellState{}, err
	}
	if id != 0 {
		if st.Format, err = s.format(id); err != nil {
			return grid.CellState{}, err
		}
	}
	return st, nil
}

// Merges returns the merged ranges of a grid.
func (s *Store) Merges(_ context.Context, h grid.Handle) ([]grid.Range, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.indexByID(h.ID)
	if err != nil {
		return nil, err
	}
	cells, err := s.file.GetMergeCells(s.grids[i].Name)
	if err != nil {
		return nil, err
	}

	out := make([]grid.Range, 0, len(cells))
	for _, mc := range cells {
		left, top, err := excelize.CellNameToCoordinates(mc.GetStartAxis())
		if err != nil {
			return nil, err
		}
		right, bottom, err := excelize.CellNameToCoordinates(mc.GetEndAxis())
		if err != nil {
			return nil, err
		}
		out = append(out, grid.Range{Top: top, Left: left, Bottom: bottom, Right: right})
	}
	return out, nil
}

// Limits reports the per-request caps.
func (s *Store) Limits() grid.Limits {
	return grid.DefaultLimits()
}

// Close releases the workbook.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
