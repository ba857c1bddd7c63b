package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/javiermolinar/airtime/internal/grid"
	"github.com/javiermolinar/airtime/internal/slot"
)

func newTestCatalog(t *testing.T, n int) *slot.Catalog {
	t.Helper()
	channels := make([]slot.Channel, n)
	for i := range channels {
		channels[i] = slot.Channel{Name: fmt.Sprintf("Channel %d", i)}
	}
	c, err := slot.NewCatalog(channels)
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}
	return c
}

func newTestManager(t *testing.T, store grid.Store, channels int) *Manager {
	t.Helper()
	m, err := New(store, grid.DefaultLayout(), newTestCatalog(t, channels), Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return m
}

func russianNames() *Names {
	n := DefaultNames()
	n.Months = [12]string{
		"Январь", "Февраль", "Март", "Апрель", "Май", "Июнь",
		"Июль", "Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь",
	}
	n.Weekdays = [7]string{"Пн", "Вт", "Ср", "Чт", "Пт", "Сб", "Вс"}
	return &n
}

func TestCanonicalName(t *testing.T) {
	m := newTestManager(t, grid.NewMemStore(), 1)

	if got := m.CanonicalName(slot.Period{Year: 2025, Month: time.January}); got != "January2025" {
		t.Errorf("CanonicalName = %q", got)
	}

	ru, err := New(grid.NewMemStore(), grid.DefaultLayout(), newTestCatalog(t, 1), Options{Names: russianNames()})
	if err != nil {
		t.Fatal(err)
	}
	if got := ru.CanonicalName(slot.Period{Year: 2024, Month: time.December}); got != "Декабрь2024" {
		t.Errorf("CanonicalName = %q", got)
	}
	p, ok := ru.ParseName("Март2026")
	if !ok || p != (slot.Period{Year: 2026, Month: time.March}) {
		t.Errorf("ParseName = %v, %v", p, ok)
	}
}

func TestParseName(t *testing.T) {
	m := newTestManager(t, grid.NewMemStore(), 1)

	tests := []struct {
		name string
		want slot.Period
		ok   bool
	}{
		{"January2025", slot.Period{Year: 2025, Month: time.January}, true},
		{"December1999", slot.Period{Year: 1999, Month: time.December}, true},
		{"January25", slot.Period{}, false},
		{"January2025_conflict1", slot.Period{}, false},
		{"Notes", slot.Period{}, false},
		{"Sheet1", slot.Period{}, false},
		{"january2025", slot.Period{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.ParseName(tt.name)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ParseName(%q) = %v, %v; want %v, %v", tt.name, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestNew_RejectsBadNames(t *testing.T) {
	names := DefaultNames()
	names.Months[3] = names.Months[2]
	_, err := New(grid.NewMemStore(), grid.DefaultLayout(), newTestCatalog(t, 1), Options{Names: &names})
	if err == nil {
		t.Error("expected error for duplicate month names")
	}
}

func TestEnsurePeriod_CreatesStructuredGrid(t *testing.T) {
	ctx := context.Background()
	store := grid.NewMemStore()
	m := newTestManager(t, store, 5)
	layout := grid.DefaultLayout()
	feb := slot.Period{Year: 2025, Month: time.February}

	h, err := m.EnsurePeriod(ctx, feb)
	if err != nil {
		t.Fatalf("EnsurePeriod failed: %v", err)
	}
	if h.Name != "February2025" || h.Rows != InitialRows || h.Cols != InitialCols {
		t.Errorf("handle = %+v", h)
	}

	// Title of the second channel: merged, upper-cased, bold and centered.
	title := store.Cell(h, grid.Cell{Row: layout.TableTop(1), Col: layout.TableLeft(1)})
	if title.Value != "CHANNEL 1" || !title.Format.Bold || !title.Format.Center {
		t.Errorf("title = %+v", title)
	}
	if !slices.Contains(store.Merges(h), layout.TitleRange(1)) {
		t.Errorf("title range %v not merged: %v", layout.TitleRange(1), store.Merges(h))
	}

	header := store.Cell(h, grid.Cell{Row: layout.TableTop(0) + 1, Col: layout.TableLeft(0) + 2})
	if header.Value != "#1 (morning)" || !header.Format.Bold {
		t.Errorf("header = %+v", header)
	}

	// 2025-02-01 is a Saturday.
	dayName := store.Cell(h, grid.Cell{Row: layout.DayRow(4, 1), Col: layout.TableLeft(4)})
	if dayName.Value != "Sat" || dayName.Format.Fill != slot.ColorDarkGray || !dayName.Format.Bold {
		t.Errorf("day name cell = %+v", dayName)
	}
	date := store.Cell(h, grid.Cell{Row: layout.DayRow(4, 28), Col: layout.TableLeft(4) + 1})
	if date.Value != "28.02.25" || date.Format.Fill != slot.ColorLightGray {
		t.Errorf("date cell = %+v", date)
	}

	// February has no day 29; its row stays empty but keeps the column tint.
	past := store.Cell(h, grid.Cell{Row: layout.DayRow(0, 29), Col: layout.TableLeft(0) + 1})
	if past.Value != "" || past.Format.Fill != slot.ColorLightGray {
		t.Errorf("day 29 cell = %+v", past)
	}

	// Shift cells start blank.
	if v := store.Cell(h, layout.Address(2, 15, slot.Evening)).Value; v != "" {
		t.Errorf("shift cell = %q, want blank", v)
	}
}

func TestEnsurePeriod_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := grid.NewMemStore()
	m := newTestManager(t, store, 3)
	p := slot.Period{Year: 2025, Month: time.March}

	first, err := m.EnsurePeriod(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	writes := store.Calls("WriteCells")

	second, err := m.EnsurePeriod(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Errorf("second call returned a different grid: %+v vs %+v", first, second)
	}
	if store.Calls("CreateGrid") != 1 {
		t.Errorf("CreateGrid calls = %d, want 1", store.Calls("CreateGrid"))
	}
	if store.Calls("WriteCells") != writes {
		t.Error("second call must not rewrite the structure")
	}
}

func TestEnsurePeriod_ChunksStructure(t *testing.T) {
	ctx := context.Background()
	store := grid.NewMemStore()
	m := newTestManager(t, store, 12) // 12 tables x 5 writes = 60

	if _, err := m.EnsurePeriod(ctx, slot.Period{Year: 2025, Month: time.April}); err != nil {
		t.Fatal(err)
	}
	if got := store.Calls("WriteCells"); got != 2 {
		t.Errorf("WriteCells calls = %d, want 2 batches of at most 50", got)
	}
}

func TestEnsurePeriod_RecoversConflict(t *testing.T) {
	ctx := context.Background()
	store := grid.NewMemStore()
	m := newTestManager(t, store, 2)

	_, _ = store.CreateGrid(ctx, "May2025_conflict", 1000, 100)
	conflict, _ := store.CreateGrid(ctx, "May2025_conflict12", 1000, 100)

	h, err := m.EnsurePeriod(ctx, slot.Period{Year: 2025, Month: time.May})
	if err != nil {
		t.Fatal(err)
	}
	if h.ID != conflict.ID || h.Name != "May2025" {
		t.Errorf("handle = %+v, want renamed conflict grid %d", h, conflict.ID)
	}
	if store.Calls("CreateGrid") != 2 {
		t.Error("recovery must not create a new grid")
	}
}

func TestEnsurePeriod_FailedRenameFallsThrough(t *testing.T) {
	ctx := context.Background()
	store := grid.NewMemStore()
	m := newTestManager(t, store, 2)

	_, _ = store.CreateGrid(ctx, "June2025_conflict1", 1000, 100)
	store.Fail = func(op string) error {
		if op == "RenameGrid" {
			return errors.New("permission denied")
		}
		return nil
	}

	h, err := m.EnsurePeriod(ctx, slot.Period{Year: 2025, Month: time.June})
	if err != nil {
		t.Fatal(err)
	}
	if h.Name != "June2025" || store.Calls("CreateGrid") != 2 {
		t.Errorf("expected a fresh grid after the failed rename, got %+v", h)
	}
}

func TestEnsurePeriod_StructureFailureRemovesGrid(t *testing.T) {
	ctx := context.Background()
	store := grid.NewMemStore()
	m := newTestManager(t, store, 2)
	store.Fail = func(op string) error {
		if op == "WriteCells" {
			return grid.Transient(errors.New("rate limited"))
		}
		return nil
	}

	_, err := m.EnsurePeriod(ctx, slot.Period{Year: 2025, Month: time.July})
	var serr *StructuralError
	if !errors.As(err, &serr) {
		t.Fatalf("error = %v, want StructuralError", err)
	}
	if serr.Name != "July2025" {
		t.Errorf("StructuralError.Name = %q", serr.Name)
	}

	store.Fail = nil
	if _, err := store.GetGrid(ctx, "July2025"); !errors.Is(err, grid.ErrNotFound) {
		t.Error("half-built grid must not survive")
	}
}

// hideFirstLookup makes the first GetGrid miss, as when a creation
// reported as failed had in fact left the grid behind.
func hideFirstLookup(store *grid.MemStore) {
	hidden := false
	store.Fail = func(op string) error {
		if op == "GetGrid" && !hidden {
			hidden = true
			return grid.ErrNotFound
		}
		return nil
	}
}

func TestEnsurePeriod_StructuresExistingBlankGrid(t *testing.T) {
	ctx := context.Background()
	store := grid.NewMemStore()
	m := newTestManager(t, store, 2)
	layout := grid.DefaultLayout()

	if _, err := store.CreateGrid(ctx, "August2025", InitialRows, InitialCols); err != nil {
		t.Fatal(err)
	}
	hideFirstLookup(store)

	h, err := m.EnsurePeriod(ctx, slot.Period{Year: 2025, Month: time.August})
	if err != nil {
		t.Fatalf("EnsurePeriod failed: %v", err)
	}
	if title := store.Cell(h, grid.Cell{Row: layout.TableTop(1), Col: layout.TableLeft(1)}); title.Value != "CHANNEL 1" {
		t.Errorf("title = %+v, want the structure written", title)
	}
	if date := store.Cell(h, grid.Cell{Row: layout.DayRow(0, 31), Col: layout.TableLeft(0) + 1}); date.Value != "31.08.25" {
		t.Errorf("date cell = %+v", date)
	}
}

func TestEnsurePeriod_KeepsExistingStructuredGrid(t *testing.T) {
	ctx := context.Background()
	store := grid.NewMemStore()
	m := newTestManager(t, store, 2)
	p := slot.Period{Year: 2025, Month: time.September}

	if _, err := m.EnsurePeriod(ctx, p); err != nil {
		t.Fatal(err)
	}
	writes := store.Calls("WriteCells")
	hideFirstLookup(store)

	if _, err := m.EnsurePeriod(ctx, p); err != nil {
		t.Fatal(err)
	}
	if store.Calls("WriteCells") != writes {
		t.Error("a structured grid must not be rewritten")
	}
}

func TestEnsurePeriod_GrowsForLayout(t *testing.T) {
	ctx := context.Background()
	store := grid.NewMemStore()
	layout := grid.DefaultLayout()
	layout.TablesPerRow = 20 // 140 columns

	m, err := New(store, layout, newTestCatalog(t, 1), Options{})
	if err != nil {
		t.Fatal(err)
	}
	h, err := m.EnsurePeriod(ctx, slot.Period{Year: 2025, Month: time.August})
	if err != nil {
		t.Fatal(err)
	}
	if h.Cols != 140 {
		t.Errorf("cols = %d, want 140", h.Cols)
	}
}

func TestKeepWindow(t *testing.T) {
	now := time.Date(2025, time.November, 30, 15, 0, 0, 0, time.UTC)

	got := KeepWindow(now, 3)
	want := []slot.Period{
		{Year: 2025, Month: time.November},
		{Year: 2025, Month: time.December},
		{Year: 2026, Month: time.January},
	}
	if !slices.Equal(got, want) {
		t.Errorf("KeepWindow = %v, want %v", got, want)
	}

	if got := KeepWindow(now, 0); len(got) != 1 {
		t.Errorf("KeepWindow(n=0) = %v, want current month only", got)
	}
}

func TestPrunePeriods(t *testing.T) {
	ctx := context.Background()
	store := grid.NewMemStore()
	m := newTestManager(t, store, 1)

	for _, name := range []string{"October2025", "November2025", "December2025", "Notes", "November2025_conflict1", "Sheet1"} {
		if _, err := store.CreateGrid(ctx, name, 10, 10); err != nil {
			t.Fatal(err)
		}
	}
	grids, _ := store.ListGrids(ctx)

	deleted := m.PrunePeriods(ctx, grids, []slot.Period{
		{Year: 2025, Month: time.November},
		{Year: 2025, Month: time.December},
	})
	if !slices.Equal(deleted, []string{"October2025"}) {
		t.Errorf("deleted = %v", deleted)
	}

	left, _ := store.ListGrids(ctx)
	if len(left) != 5 {
		t.Errorf("expected 5 grids left, got %d", len(left))
	}
}

func TestPrunePeriods_ContinuesAfterFailure(t *testing.T) {
	ctx := context.Background()
	store := grid.NewMemStore()
	m := newTestManager(t, store, 1)

	_, _ = store.CreateGrid(ctx, "January2024", 10, 10)
	_, _ = store.CreateGrid(ctx, "February2024", 10, 10)
	grids, _ := store.ListGrids(ctx)

	failed := false
	store.Fail = func(op string) error {
		if op == "DeleteGrid" && !failed {
			failed = true
			return errors.New("locked")
		}
		return nil
	}

	deleted := m.PrunePeriods(ctx, grids, nil)
	if !slices.Equal(deleted, []string{"February2024"}) {
		t.Errorf("deleted = %v", deleted)
	}
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	store := grid.NewMemStore()
	m := newTestManager(t, store, 1)

	for _, name := range []string{"August2025", "September2025", "November2025", "December2025"} {
		_, _ = store.CreateGrid(ctx, name, 10, 10)
	}

	deleted, err := m.Prune(ctx, time.Date(2025, time.September, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(deleted, []string{"August2025", "December2025"}) {
		t.Errorf("deleted = %v", deleted)
	}
}

func TestPrune_KeepsExtraPeriods(t *testing.T) {
	ctx := context.Background()
	store := grid.NewMemStore()
	m := newTestManager(t, store, 1)

	_, _ = store.CreateGrid(ctx, "January2025", 10, 10)
	_, _ = store.CreateGrid(ctx, "February2025", 10, 10)

	deleted, err := m.Prune(ctx, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		slot.Period{Year: 2025, Month: time.February})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(deleted, []string{"January2025"}) {
		t.Errorf("deleted = %v", deleted)
	}
}
