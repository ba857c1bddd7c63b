package db

import "fmt"

// migrate runs database migrations.
func (s *SQLite) migrate() error {
	query := `
		CREATE TABLE IF NOT EXISTS grids (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT NOT NULL UNIQUE,
			row_count  INTEGER NOT NULL CHECK(row_count > 0),
			col_count  INTEGER NOT NULL CHECK(col_count > 0),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS cells (
			grid_id  INTEGER NOT NULL REFERENCES grids(id),
			row_idx  INTEGER NOT NULL,
			col_idx  INTEGER NOT NULL,
			value    TEXT NOT NULL DEFAULT '',
			fill     TEXT NOT NULL DEFAULT 'none',
			bold     INTEGER NOT NULL DEFAULT 0,
			centered INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (grid_id, row_idx, col_idx)
		);

		CREATE TABLE IF NOT EXISTS merges (
			grid_id   INTEGER NOT NULL REFERENCES grids(id),
			top_row   INTEGER NOT NULL,
			left_col  INTEGER NOT NULL,
			bottom_row INTEGER NOT NULL,
			right_col INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_merges_grid ON merges(grid_id);
	`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("creating grid tables: %w", err)
	}

	return nil
}
