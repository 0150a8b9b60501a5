package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/chazu/tracegc/heap"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cycles.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func stats(marked, swept, live int) *heap.CycleStats {
	return &heap.CycleStats{
		Marked:        marked,
		Swept:         swept,
		Live:          live,
		SweepDuration: 125 * time.Microsecond,
		Timestamp:     time.Now(),
	}
}

func TestAppendAndRecent(t *testing.T) {
	s := openTestStore(t)

	if err := s.Append("heap_a", stats(3, 1, 3)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append("heap_a", stats(3, 0, 3)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append("heap_b", stats(10, 5, 10)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	recent, err := s.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Recent(2) returned %d records", len(recent))
	}
	// Newest first.
	if recent[0].HeapID != "heap_b" || recent[1].HeapID != "heap_a" {
		t.Errorf("recent order wrong: %q, %q", recent[0].HeapID, recent[1].HeapID)
	}
	if recent[0].Marked != 10 || recent[0].Swept != 5 || recent[0].Live != 10 {
		t.Errorf("record = %+v, want marked 10, swept 5, live 10", recent[0])
	}
	if recent[0].Duration != 125*time.Microsecond {
		t.Errorf("Duration = %v, want 125µs", recent[0].Duration)
	}
}

func TestForHeapFiltersAndOrders(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 3; i++ {
		if err := s.Append("heap_a", stats(i, 0, i)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Append("heap_b", stats(99, 99, 99)); err != nil {
		t.Fatal(err)
	}

	recs, err := s.ForHeap("heap_a")
	if err != nil {
		t.Fatalf("ForHeap: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("ForHeap returned %d records, want 3", len(recs))
	}
	// Oldest first.
	for i, r := range recs {
		if r.Marked != i {
			t.Errorf("record %d Marked = %d, want %d", i, r.Marked, i)
		}
		if r.HeapID != "heap_a" {
			t.Errorf("record %d HeapID = %q", i, r.HeapID)
		}
	}
}

func TestTotals(t *testing.T) {
	s := openTestStore(t)

	if err := s.Append("heap_a", stats(4, 2, 4)); err != nil {
		t.Fatal(err)
	}
	if err := s.Append("heap_a", stats(6, 1, 6)); err != nil {
		t.Fatal(err)
	}

	cycles, marked, swept, err := s.Totals("heap_a")
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if cycles != 2 || marked != 10 || swept != 3 {
		t.Errorf("Totals = %d, %d, %d; want 2, 10, 3", cycles, marked, swept)
	}

	// Unknown heap aggregates to zero, not an error.
	cycles, marked, swept, err = s.Totals("heap_nope")
	if err != nil || cycles != 0 || marked != 0 || swept != 0 {
		t.Errorf("Totals(unknown) = %d, %d, %d, %v; want zeros", cycles, marked, swept, err)
	}
}

func TestReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cycles.db")

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Append("heap_a", stats(1, 1, 1)); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	recs, err := s2.ForHeap("heap_a")
	if err != nil || len(recs) != 1 {
		t.Errorf("after reopen: %d records, %v; want 1 record", len(recs), err)
	}
}
