// Package db provides a SQLite-backed grid store.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/javiermolinar/airtime/internal/grid"
	"github.com/javiermolinar/airtime/internal/slot"
)

// SQLite implements grid.Store using SQLite.
type SQLite struct {
	db *sql.DB
}

// New creates a new SQLite store and runs migrations.
func New(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// One writer at a time; SQLite serializes anyway and this avoids SQLITE_BUSY storms.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// classify marks lock contention as transient so callers retry it.
func classify(err error) error {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return grid.Transient(err)
		}
	}
	return err
}

// ListGrids returns every grid ordered by id.
func (s *SQLite) ListGrids(ctx context.Context) ([]grid.Handle, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, row_count, col_count FROM grids ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying grids: %w", classify(err))
	}
	defer func() { _ = rows.Close() }()

	var grids []grid.Handle
	for rows.Next() {
		var h grid.Handle
		if err := rows.Scan(&h.ID, &h.Name, &h.Rows, &h.Cols); err != nil {
			return nil, fmt.Errorf("scanning grid: %w", err)
		}
		grids = append(grids, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating grids: %w", classify(err))
	}
	return grids, nil
}

// GetGrid retrieves a grid by name.
func (s *SQLite) GetGrid(ctx context.Context, name string) (grid.Handle, error) {
	return s.queryHandle(ctx, `SELECT id, name, row_count, col_count FROM grids WHERE name = ?`, name)
}

func (s *SQLite) queryHandle(ctx context.Context, query string, arg any) (grid.Handle, error) {
	var h grid.Handle
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&h.ID, &h.Name, &h.Rows, &h.Cols)
	if err == sql.ErrNoRows {
		return grid.Handle{}, fmt.Errorf("%w: %v", grid.ErrNotFound, arg)
	}
	if err != nil {
		return grid.Handle{}, fmt.Errorf("querying grid: %w", classify(err))
	}
	return h, nil
}

// CreateGrid adds an empty grid.
func (s *SQLite) CreateGrid(ctx context.Context, name string, rows, cols int) (grid.Handle, error) {
	if _, err := s.GetGrid(ctx, name); err == nil {
		return grid.Handle{}, fmt.Errorf("%w: %q", grid.ErrExists, name)
	} else if !errors.Is(err, grid.ErrNotFound) {
		return grid.Handle{}, err
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO grids (name, row_count, col_count) VALUES (?, ?, ?)`, name, rows, cols)
	if err != nil {
		return grid.Handle{}, fmt.Errorf("inserting grid: %w", classify(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return grid.Handle{}, fmt.Errorf("getting last insert id: %w", err)
	}
	return grid.Handle{ID: id, Name: name, Rows: rows, Cols: cols}, nil
}

// RenameGrid changes a grid's name.
func (s *SQLite) RenameGrid(ctx context.Context, h grid.Handle, name string) (grid.Handle, error) {
	if other, err := s.GetGrid(ctx, name); err == nil && other.ID != h.ID {
		return grid.Handle{}, fmt.Errorf("%w: %q", grid.ErrExists, name)
	}

	result, err := s.db.ExecContext(ctx, `UPDATE grids SET name = ? WHERE id = ?`, name, h.ID)
	if err != nil {
		return grid.Handle{}, fmt.Errorf("renaming grid: %w", classify(err))
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return grid.Handle{}, fmt.Errorf("%w: id %d", grid.ErrNotFound, h.ID)
	}
	return s.queryHandle(ctx, `SELECT id, name, row_count, col_count FROM grids WHERE id = ?`, h.ID)
}

// DeleteGrid removes a grid and everything stored in it.
func (s *SQLite) DeleteGrid(ctx context.Context, h grid.Handle) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", classify(err))
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `DELETE FROM grids WHERE id = ?`, h.ID)
	if err != nil {
		return fmt.Errorf("deleting grid: %w", classify(err))
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("%w: id %d", grid.ErrNotFound, h.ID)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cells WHERE grid_id = ?`, h.ID); err != nil {
		return fmt.Errorf("deleting cells: %w", classify(err))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM merges WHERE grid_id = ?`, h.ID); err != nil {
		return fmt.Errorf("deleting merges: %w", classify(err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", classify(err))
	}
	return nil
}

// ResizeGrid changes a grid's capacity.
func (s *SQLite) ResizeGrid(ctx context.Context, h grid.Handle, rows, cols int) (grid.Handle, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE grids SET row_count = ?, col_count = ? WHERE id = ?`, rows, cols, h.ID)
	if err != nil {
		return grid.Handle{}, fmt.Errorf("resizing grid: %w", classify(err))
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return grid.Handle{}, fmt.Errorf("%w: id %d", grid.ErrNotFound, h.ID)
	}
	h.Rows, h.Cols = rows, cols
	return h, nil
}

// ReadCells returns every in-bounds cell of r; cells never written read as "".
func (s *SQLite) ReadCells(ctx context.Context, h grid.Handle, r grid.Range) (grid.Snapshot, error) {
	current, err := s.queryHandle(ctx, `SELECT id, name, row_count, col_count FROM grids WHERE id = ?`, h.ID)
	if err != nil {
		return nil, err
	}

	snap := make(grid.Snapshot)
	clipped, ok := r.Clip(current.Rows, current.Cols)
	if !ok {
		return snap, nil
	}
	for row := clipped.Top; row <= clipped.Bottom; row++ {
		for col := clipped.Left; col <= clipped.Right; col++ {
			snap[grid.Cell{Row: row, Col: col}] = ""
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT row_idx, col_idx, value
		FROM cells
		WHERE grid_id = ?
		  AND row_idx BETWEEN ? AND ?
		  AND col_idx BETWEEN ? AND ?
	`, h.ID, clipped.Top, clipped.Bottom, clipped.Left, clipped.Right)
	if err != nil {
		return nil, fmt.Errorf("querying cells: %w", classify(err))
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			c     grid.Cell
			value string
		)
		if err := rows.Scan(&c.Row, &c.Col, &value); err != nil {
			return nil, fmt.Errorf("scanning cell: %w", err)
		}
		snap[c] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cells: %w", classify(err))
	}
	return snap, nil
}

// WriteCells applies all writes in a single transaction.
func (s *SQLite) WriteCells(ctx context.Context, h grid.Handle, writes []grid.Write) error {
	if len(writes) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", classify(err))
	}
	defer func() { _ = tx.Rollback() }()

	var current grid.Handle
	err = tx.QueryRowContext(ctx, `SELECT id, name, row_count, col_count FROM grids WHERE id = ?`, h.ID).
		Scan(&current.ID, &current.Name, &current.Rows, &current.Cols)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: id %d", grid.ErrNotFound, h.ID)
	}
	if err != nil {
		return fmt.Errorf("querying grid: %w", classify(err))
	}
	for _, w := range writes {
		if !w.Range.Valid() || w.Range.Bottom > current.Rows || w.Range.Right > current.Cols {
			return fmt.Errorf("write range %s outside grid %q (%dx%d)", w.Range, current.Name, current.Rows, current.Cols)
		}
	}

	valueStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cells (grid_id, row_idx, col_idx, value) VALUES (?, ?, ?, ?)
		ON CONFLICT (grid_id, row_idx, col_idx) DO UPDATE SET value = excluded.value
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", classify(err))
	}
	defer func() { _ = valueStmt.Close() }()

	formatStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cells (grid_id, row_idx, col_idx, fill, bold, centered) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (grid_id, row_idx, col_idx) DO UPDATE
		SET fill = excluded.fill, bold = excluded.bold, centered = excluded.centered
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", classify(err))
	}
	defer func() { _ = formatStmt.Close() }()

	for _, w := range writes {
		for row := w.Range.Top; row <= w.Range.Bottom; row++ {
			for col := w.Range.Left; col <= w.Range.Right; col++ {
				c := grid.Cell{Row: row, Col: col}
				if w.Values != nil {
					if _, err := valueStmt.ExecContext(ctx, h.ID, row, col, w.ValueAt(c)); err != nil {
						return fmt.Errorf("writing cell %s: %w", c, classify(err))
					}
				}
				if w.Format != nil {
					if _, err := formatStmt.ExecContext(ctx, h.ID, row, col,
						w.Format.Fill.String(), w.Format.Bold, w.Format.Center); err != nil {
						return fmt.Errorf("formatting cell %s: %w", c, classify(err))
					}
				}
			}
		}
		if w.Merge {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO merges (grid_id, top_row, left_col, bottom_row, right_col) VALUES (?, ?, ?, ?, ?)`,
				h.ID, w.Range.Top, w.Range.Left, w.Range.Bottom, w.Range.Right)
			if err != nil {
				return fmt.Errorf("merging %s: %w", w.Range, classify(err))
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", classify(err))
	}
	return nil
}

// CellState returns the stored content and format of one cell.
func (s *SQLite) CellState(ctx context.Context, h grid.Handle, c grid.Cell) (grid.CellState, error) {
	var (
		st   grid.CellState
		fill string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT value, fill, bold, centered FROM cells
		WHERE grid_id = ? AND row_idx = ? AND col_idx = ?
	`, h.ID, c.Row, c.Col).Scan(&st.Value, &fill, &st.Format.Bold, &st.Format.Center)
	if err == sql.ErrNoRows {
		return grid.CellState{}, nil
	}
	if err != nil {
		return grid.CellState{}, fmt.Errorf("querying cell: %w", classify(err))
	}
	st.Format.Fill, _ = slot.ColorByName(fill)
	return st, nil
}

// Merges returns the merged ranges of a grid.
func (s *SQLite) Merges(ctx context.Context, h grid.Handle) ([]grid.Range, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT top_row, left_col, bottom_row, right_col FROM merges WHERE grid_id = ? ORDER BY rowid
	`, h.ID)
	if err != nil {
		return nil, fmt.Errorf("querying merges: %w", classify(err))
	}
	defer func() { _ = rows.Close() }()

	var out []grid.Range
	for rows.Next() {
		var r grid.Range
		if err := rows.Scan(&r.Top, &r.Left, &r.Bottom, &r.Right); err != nil {
			return nil, fmt.Errorf("scanning merge: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Limits reports the per-request caps.
func (s *SQLite) Limits() grid.Limits {
	return grid.DefaultLimits()
}

// Close releases database resources.
func (s *SQLite) Close() error {
	return s.db.Close()
}
