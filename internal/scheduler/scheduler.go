// Package scheduler reserves and cancels broadcast slots on a period grid.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/javiermolinar/airtime/internal/grid"
	"github.com/javiermolinar/airtime/internal/slot"
)

// Placeholder in reservation text that is replaced by the entry's time.
const Placeholder = "@"

// Pacing controls how writes are flushed to the store.
type Pacing struct {
	// BatchSize caps writes per store request. It is further capped by the
	// store's data limit.
	BatchSize int
	// ReserveDelay is slept after every reserve batch.
	ReserveDelay time.Duration
	// CancelDelay is slept after every cancel batch.
	CancelDelay time.Duration
}

// DefaultPacing returns the pacing the hosted store's rate limits require.
func DefaultPacing() Pacing {
	return Pacing{
		BatchSize:    10,
		ReserveDelay: time.Second,
		CancelDelay:  500 * time.Millisecond,
	}
}

// Options tune a Scheduler. Zero values select defaults.
type Options struct {
	Pacing     Pacing
	Appendable slot.Color
	Cancelled  slot.Color
	Sleep      func(time.Duration)
	Logger     *slog.Logger
}

// Scheduler provides slot reservation operations over a grid store.
type Scheduler struct {
	store      grid.Store
	layout     grid.Layout
	catalog    *slot.Catalog
	pacing     Pacing
	appendable slot.Color
	cancelled  slot.Color
	sleep      func(time.Duration)
	logger     *slog.Logger
}

// New creates a new Scheduler.
func New(store grid.Store, layout grid.Layout, catalog *slot.Catalog, opts Options) *Scheduler {
	s := &Scheduler{
		store:      store,
		layout:     layout,
		catalog:    catalog,
		pacing:     opts.Pacing,
		appendable: opts.Appendable,
		cancelled:  opts.Cancelled,
		sleep:      opts.Sleep,
		logger:     opts.Logger,
	}
	if s.pacing == (Pacing{}) {
		s.pacing = DefaultPacing()
	}
	if s.appendable == slot.ColorNone {
		s.appendable = slot.Appendable
	}
	if s.cancelled == slot.ColorNone {
		s.cancelled = slot.Cancelled
	}
	if s.sleep == nil {
		s.sleep = time.Sleep
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Catalog returns the channel catalogue the scheduler places tables by.
func (s *Scheduler) Catalog() *slot.Catalog {
	return s.catalog
}

// target is an entry that resolved to a cell.
type target struct {
	index int
	entry slot.Entry
	cell  grid.Cell
}

// resolve maps entries onto cells. Entries that cannot be placed get an
// error outcome right away.
func (s *Scheduler) resolve(day int, entries []slot.Entry, outcomes []slot.Outcome) []target {
	targets := make([]target, 0, len(entries))
	for i, e := range entries {
		if strings.TrimSpace(e.Time) == "" {
			outcomes[i] = slot.Failed(e, slot.ErrMissingTime.Error())
			continue
		}
		ch, ok := s.catalog.Index(e.Channel)
		if !ok {
			outcomes[i] = slot.Failed(e, slot.ErrUnknownChannel.Error())
			continue
		}
		cell := s.layout.Address(ch, day, slot.ClassifyShift(e.Time))
		targets = append(targets, target{index: i, entry: e, cell: cell})
	}
	return targets
}

func blank(v string) bool {
	return strings.TrimSpace(v) == ""
}

// Reserve writes text into the cell of every entry on the given day.
//
// All target cells are read once up front and every decision is made
// against that snapshot: a blank cell is written, an occupied cell is
// appended to when color is the appendable color and skipped otherwise.
// Two entries addressing the same cell are both judged against the
// pre-batch content. Outcomes are returned in entry order.
func (s *Scheduler) Reserve(ctx context.Context, h grid.Handle, day int, color slot.Color, text string, entries []slot.Entry) ([]slot.Outcome, error) {
	if err := slot.ValidateDay(day); err != nil {
		return nil, err
	}

	outcomes := make([]slot.Outcome, len(entries))
	targets := s.resolve(day, entries, outcomes)
	if len(targets) == 0 {
		return outcomes, nil
	}

	cells := make([]grid.Cell, len(targets))
	for i, t := range targets {
		cells[i] = t.cell
	}
	box, _ := grid.BoundingBox(cells)

	snap, err := s.store.ReadCells(ctx, h, box)
	if err != nil {
		s.logger.Error("reading target cells", "grid", h.Name, "range", box.String(), "error", err)
		for _, t := range targets {
			outcomes[t.index] = slot.Failed(t.entry, slot.MsgReadFail)
		}
		return outcomes, nil
	}

	var (
		writes  []grid.Write
		written []target
	)
	for _, t := range targets {
		current, ok := snap.Value(t.cell)
		if !ok {
			outcomes[t.index] = slot.Failed(t.entry, slot.MsgOffGrid)
			continue
		}
		body := strings.ReplaceAll(text, Placeholder, t.entry.Time)
		switch {
		case blank(current):
			writes = append(writes, grid.SetCell(t.cell, body, color))
			outcomes[t.index] = slot.Succeeded(t.entry, slot.MsgWritten)
		case color == s.appendable:
			writes = append(writes, grid.SetCell(t.cell, current+", "+body, color))
			outcomes[t.index] = slot.Succeeded(t.entry, slot.MsgAppended)
		default:
			outcomes[t.index] = slot.Skipped(t.entry, slot.MsgOccupied)
			continue
		}
		written = append(written, t)
	}

	s.flush(ctx, h, writes, written, outcomes, s.pacing.ReserveDelay)
	return outcomes, nil
}

// Cancel clears the cell of every entry on the given day and paints it with
// the cancelled color. Prior content is not inspected.
func (s *Scheduler) Cancel(ctx context.Context, h grid.Handle, day int, entries []slot.Entry) ([]slot.Outcome, error) {
	if err := slot.ValidateDay(day); err != nil {
		return nil, err
	}

	outcomes := make([]slot.Outcome, len(entries))
	targets := s.resolve(day, entries, outcomes)

	writes := make([]grid.Write, 0, len(targets))
	var written []target
	for _, t := range targets {
		if t.cell.Row > h.Rows || t.cell.Col > h.Cols {
			outcomes[t.index] = slot.Failed(t.entry, slot.MsgOffGrid)
			continue
		}
		writes = append(writes, grid.SetCell(t.cell, "", s.cancelled))
		outcomes[t.index] = slot.Succeeded(t.entry, slot.MsgCancelled)
		written = append(written, t)
	}

	s.flush(ctx, h, writes, written, outcomes, s.pacing.CancelDelay)
	return outcomes, nil
}

// flush writes in paced batches. writes[i] belongs to targets[i]; entries
// whose write was never applied are turned into error outcomes.
func (s *Scheduler) flush(ctx context.Context, h grid.Handle, writes []grid.Write, targets []target, outcomes []slot.Outcome, delay time.Duration) {
	if len(writes) == 0 {
		return
	}

	size := s.pacing.BatchSize
	if limit := s.store.Limits().Data; limit > 0 && (size < 1 || size > limit) {
		size = limit
	}

	pause := func() {
		if delay > 0 {
			s.sleep(delay)
		}
	}
	err := grid.WriteChunked(ctx, s.store, h, writes, size, pause)
	if err == nil {
		return
	}

	first := 0
	var be *grid.BatchError
	if errors.As(err, &be) {
		first = be.Start
	}
	s.logger.Error("writing cells", "grid", h.Name, "applied", first, "total", len(writes), "error", err)
	for _, t := range targets[first:] {
		outcomes[t.index] = slot.Failed(t.entry, fmt.Sprintf("%s: %v", slot.MsgWriteFail, rootCause(err)))
	}
}

// rootCause strips wrapping so outcome messages stay short.
func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

// Occupancy reports, per channel in catalogue order, which shifts of the
// given day are free. One read covers every table; cells the read did not
// return count as occupied.
func (s *Scheduler) Occupancy(ctx context.Context, h grid.Handle, day int) ([]slot.Availability, error) {
	if err := slot.ValidateDay(day); err != nil {
		return nil, err
	}

	n := s.catalog.Len()
	if n == 0 {
		return nil, nil
	}

	cells := make([]grid.Cell, 0, n*len(slot.Shifts))
	for ch := range n {
		for _, sh := range slot.Shifts {
			cells = append(cells, s.layout.Address(ch, day, sh))
		}
	}
	box, _ := grid.BoundingBox(cells)

	snap, err := s.store.ReadCells(ctx, h, box)
	if err != nil {
		return nil, fmt.Errorf("reading day %d of %s: %w", day, h.Name, err)
	}

	out := make([]slot.Availability, n)
	for ch := range n {
		a := slot.Availability{Index: ch, Channel: s.catalog.At(ch)}
		for i, sh := range slot.Shifts {
			v, ok := snap.Value(s.layout.Address(ch, day, sh))
			a.Free[i] = ok && blank(v)
		}
		out[ch] = a
	}
	return out, nil
}
