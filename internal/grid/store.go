package grid

import (
	"context"
	"errors"
	"fmt"
)

// Store errors.
var (
	// ErrNotFound reports a missing grid. It is never retried.
	ErrNotFound = errors.New("grid not found")
	// ErrTransient marks store failures worth retrying (rate limits, I/O hiccups).
	ErrTransient = errors.New("transient store failure")
	// ErrExists reports a name collision on create or rename.
	ErrExists = errors.New("grid already exists")
)

// Transient wraps err so that errors.Is(err, ErrTransient) holds.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// Handle identifies one grid inside a store.
type Handle struct {
	ID   int64
	Name string
	Rows int
	Cols int
}

// Limits are the per-call item caps a store enforces.
type Limits struct {
	// Structural caps structure-creation writes per WriteCells call.
	Structural int
	// Data caps cell-content writes per WriteCells call.
	Data int
}

// DefaultLimits are the caps of the hosted spreadsheet service the layout was
// designed against.
func DefaultLimits() Limits {
	return Limits{Structural: 50, Data: 10}
}

// Store is the tabular backing store holding one grid per period.
type Store interface {
	// ListGrids returns every grid in the store.
	ListGrids(ctx context.Context) ([]Handle, error)

	// GetGrid looks a grid up by exact name. Returns ErrNotFound if absent.
	GetGrid(ctx context.Context, name string) (Handle, error)

	// CreateGrid adds an empty grid. Returns ErrExists on a name collision.
	CreateGrid(ctx context.Context, name string, rows, cols int) (Handle, error)

	// RenameGrid changes a grid's name and returns the updated handle.
	RenameGrid(ctx context.Context, h Handle, name string) (Handle, error)

	// DeleteGrid removes a grid and its cells.
	DeleteGrid(ctx context.Context, h Handle) error

	// ResizeGrid changes a grid's capacity.
	ResizeGrid(ctx context.Context, h Handle, rows, cols int) (Handle, error)

	// ReadCells returns the content of every in-bounds cell of r.
	ReadCells(ctx context.Context, h Handle, r Range) (Snapshot, error)

	// WriteCells applies writes in order as one store request.
	WriteCells(ctx context.Context, h Handle, writes []Write) error

	// Limits reports the per-request item caps.
	Limits() Limits

	// Close releases any resources held by the store.
	Close() error
}

// BatchError reports the chunk a WriteChunked call stopped at. Writes before
// Start were applied; writes from Start on were not.
type BatchError struct {
	Start, End int
	Err        error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("writing batch %d-%d: %v", e.Start, e.End-1, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// WriteChunked splits writes into requests of at most size items.
// Each chunk is one WriteCells call; after every chunk pause is invoked
// (nil pause means no pacing). A failure is returned as *BatchError.
func WriteChunked(ctx context.Context, s Store, h Handle, writes []Write, size int, pause func()) error {
	if size < 1 {
		size = len(writes)
	}
	for start := 0; start < len(writes); start += size {
		end := min(start+size, len(writes))
		if err := s.WriteCells(ctx, h, writes[start:end]); err != nil {
			return &BatchError{Start: start, End: end, Err: err}
		}
		if pause != nil {
			pause()
		}
	}
	return nil
}
