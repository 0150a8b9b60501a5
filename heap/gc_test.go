package heap

import (
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Collection cycle tests
// ---------------------------------------------------------------------------

// liveSet returns the set of live ObjectIDs.
func liveSet(h *Heap) map[ObjectID]bool {
	set := make(map[ObjectID]bool)
	h.ForEachObject(func(id ObjectID) bool {
		set[id] = true
		return true
	})
	return set
}

func mustSetRef(t *testing.T, h *Heap, from ObjectID, name string, to ObjectID) {
	t.Helper()
	if err := h.SetField(from, name, FromRef(to)); err != nil {
		t.Fatalf("SetField(%d, %s): %v", from, name, err)
	}
}

func TestCollectRetainsReachableOnly(t *testing.T) {
	h := New()
	gc := NewGC(h, 0)

	root := h.Allocate()
	kept := h.Allocate()
	lost := h.Allocate()
	keptChild := h.Allocate()

	mustSetRef(t, h, root, "kept", kept)
	mustSetRef(t, h, kept, "child", keptChild)
	// lost has an outgoing edge to a survivor, which must not save it.
	mustSetRef(t, h, lost, "up", kept)

	stats := gc.Collect()

	live := liveSet(h)
	if !live[root] || !live[kept] || !live[keptChild] {
		t.Errorf("reachable objects missing from live set: %v", live)
	}
	if live[lost] {
		t.Error("unreachable object survived")
	}
	if stats.Marked != 3 || stats.Swept != 1 || stats.Live != 3 {
		t.Errorf("stats = marked %d, swept %d, live %d; want 3, 1, 3",
			stats.Marked, stats.Swept, stats.Live)
	}
}

// The canonical scenario: allocate A (root), B, C, D; A.ref1 = B,
// A.ref2 = C, B.ref1 = D; unlink C, then unlink B. Only A survives —
// D goes with B even though B still points at it.
func TestCollectScenario(t *testing.T) {
	h := New()
	gc := NewGC(h, 0)

	a := h.Allocate()
	b := h.Allocate()
	c := h.Allocate()
	d := h.Allocate()

	mustSetRef(t, h, a, "ref1", b)
	mustSetRef(t, h, a, "ref2", c)
	mustSetRef(t, h, b, "ref1", d)

	if err := h.RemoveField(a, "ref2"); err != nil {
		t.Fatal(err)
	}
	if err := h.RemoveField(a, "ref1"); err != nil {
		t.Fatal(err)
	}

	gc.Collect()

	live := liveSet(h)
	if len(live) != 1 || !live[a] {
		t.Errorf("live set = %v, want {%d}", live, a)
	}
	for _, id := range []ObjectID{b, c, d} {
		if h.Contains(id) {
			t.Errorf("object %d should have been collected", id)
		}
	}
}

func TestCollectIsIdempotent(t *testing.T) {
	h := New()
	gc := NewGC(h, 0)

	root := h.Allocate()
	child := h.Allocate()
	h.Allocate() // garbage
	mustSetRef(t, h, root, "child", child)

	gc.Collect()
	first := liveSet(h)

	stats := gc.Collect()
	second := liveSet(h)

	if len(first) != len(second) {
		t.Errorf("live set changed on second collect: %v vs %v", first, second)
	}
	for id := range first {
		if !second[id] {
			t.Errorf("object %d vanished on second collect", id)
		}
	}
	if stats.Swept != 0 {
		t.Errorf("second collect swept %d objects, want 0", stats.Swept)
	}
}

func TestUnreachableCycleIsCollected(t *testing.T) {
	h := New()
	gc := NewGC(h, 0)

	h.Allocate() // root, no outgoing refs
	x := h.Allocate()
	y := h.Allocate()
	z := h.Allocate()

	// x -> y -> z -> x, none reachable from root.
	mustSetRef(t, h, x, "next", y)
	mustSetRef(t, h, y, "next", z)
	mustSetRef(t, h, z, "next", x)

	gc.Collect()

	if h.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (cycle not collected)", h.Len())
	}
}

func TestReachableCycleIsRetained(t *testing.T) {
	h := New()
	gc := NewGC(h, 0)

	root := h.Allocate()
	x := h.Allocate()
	y := h.Allocate()

	// root -> x <-> y, plus a self loop on y; must terminate and retain all.
	mustSetRef(t, h, root, "x", x)
	mustSetRef(t, h, x, "y", y)
	mustSetRef(t, h, y, "x", x)
	mustSetRef(t, h, y, "self", y)

	stats := gc.Collect()

	if h.Len() != 3 {
		t.Errorf("Len() = %d, want 3", h.Len())
	}
	if stats.Marked != 3 {
		t.Errorf("Marked = %d, want 3 (shared/cyclic nodes marked once)", stats.Marked)
	}
}

func TestBareRootSurvives(t *testing.T) {
	h := New()
	gc := NewGC(h, 0)

	root := h.Allocate() // no outgoing references at all
	gc.Collect()

	if !h.Contains(root) || h.Len() != 1 {
		t.Error("root with no references did not survive collection")
	}
}

func TestBrokenEdgeCollectsTransitively(t *testing.T) {
	h := New()
	gc := NewGC(h, 0)

	root := h.Allocate()
	b := h.Allocate()
	d := h.Allocate()
	mustSetRef(t, h, root, "b", b)
	mustSetRef(t, h, b, "d", d)

	// Cut root -> b. The b -> d edge still exists in b's fields, but b
	// itself is now unreachable, so d must go too.
	if err := h.RemoveField(root, "b"); err != nil {
		t.Fatal(err)
	}

	gc.Collect()

	if h.Contains(b) || h.Contains(d) {
		t.Error("unreachable chain survived a broken edge")
	}
	if !h.Contains(root) {
		t.Error("root was collected")
	}
}

func TestCollectEmptyHeap(t *testing.T) {
	h := New()
	gc := NewGC(h, 0)

	stats := gc.Collect() // must not error or panic
	if stats.Marked != 0 || stats.Swept != 0 || stats.Live != 0 {
		t.Errorf("empty heap stats = %+v, want all zero", stats)
	}
}

func TestMarksFalseAfterCollect(t *testing.T) {
	h := New()
	gc := NewGC(h, 0)

	root := h.Allocate()
	child := h.Allocate()
	mustSetRef(t, h, root, "child", child)

	gc.Collect()

	h.ForEachObject(func(id ObjectID) bool {
		if h.IsMarked(id) {
			t.Errorf("object %d still marked after collect", id)
		}
		return true
	})
}

func TestDanglingRefDoesNotBreakMark(t *testing.T) {
	h := New()
	gc := NewGC(h, 0)

	root := h.Allocate()
	b := h.Allocate()
	mustSetRef(t, h, root, "b", b)
	if err := h.RemoveField(root, "b"); err != nil {
		t.Fatal(err)
	}
	gc.Collect() // b swept

	// Host bug: re-install a stale edge to the swept object. The next
	// cycle must tolerate the dangling id, not repair or crash on it.
	mustSetRef(t, h, root, "stale", b)
	gc.Collect()

	if !h.Contains(root) {
		t.Error("root lost")
	}
	if _, err := h.Get(b); err == nil {
		t.Error("swept object came back to life")
	}
}

// ---------------------------------------------------------------------------
// GC bookkeeping tests
// ---------------------------------------------------------------------------

func TestCycleCountAndLastStats(t *testing.T) {
	h := New()
	gc := NewGC(h, 0)

	if gc.LastStats() != nil {
		t.Error("LastStats() non-nil before any cycle")
	}
	if gc.CycleCount() != 0 {
		t.Errorf("CycleCount() = %d, want 0", gc.CycleCount())
	}

	h.Allocate()
	gc.Collect()
	gc.Collect()

	if gc.CycleCount() != 2 {
		t.Errorf("CycleCount() = %d, want 2", gc.CycleCount())
	}
	last := gc.LastStats()
	if last == nil || last.Live != 1 {
		t.Errorf("LastStats() = %+v, want Live 1", last)
	}
}

func TestPhaseIdleAtRest(t *testing.T) {
	h := New()
	gc := NewGC(h, 0)
	h.Allocate()
	gc.Collect()
	if gc.Phase() != PhaseIdle {
		t.Errorf("Phase() = %v, want idle", gc.Phase())
	}
	if PhaseMarking.String() != "marking" || PhaseSweeping.String() != "sweeping" {
		t.Error("phase names wrong")
	}
}

func TestBackgroundCollectionLifecycle(t *testing.T) {
	h := New()
	h.Allocate() // root
	h.Allocate() // garbage

	gc := NewGC(h, 10*time.Millisecond)
	gc.Start()
	gc.Start() // second Start is a no-op

	deadline := time.After(2 * time.Second)
	for h.Len() > 1 {
		select {
		case <-deadline:
			t.Fatal("background loop never collected")
		case <-time.After(5 * time.Millisecond):
		}
	}

	gc.Stop()
	gc.Stop() // second Stop is a no-op

	if gc.CycleCount() == 0 {
		t.Error("no cycles recorded by background loop")
	}
}

func TestDisabledBackgroundLoopSkipsCycles(t *testing.T) {
	h := New()
	h.Allocate()
	h.Allocate() // garbage that must stay while disabled

	gc := NewGC(h, 5*time.Millisecond)
	gc.SetEnabled(false)
	if gc.IsEnabled() {
		t.Fatal("SetEnabled(false) did not take")
	}
	gc.Start()
	defer gc.Stop()

	time.Sleep(50 * time.Millisecond)
	if h.Len() != 2 {
		t.Errorf("disabled loop collected: Len() = %d, want 2", h.Len())
	}
}

// ---------------------------------------------------------------------------
// Weak reference tests
// ---------------------------------------------------------------------------

func TestWeakRefDoesNotRetainTarget(t *testing.T) {
	h := New()
	gc := NewGC(h, 0)

	h.Allocate() // root
	target := h.Allocate()

	wr, err := h.NewWeakRef(target)
	if err != nil {
		t.Fatalf("NewWeakRef: %v", err)
	}
	if !wr.IsAlive() || wr.Target() != target {
		t.Fatal("fresh weak ref not alive")
	}

	gc.Collect()

	if h.Contains(target) {
		t.Error("weakly referenced object survived collection")
	}
	if wr.IsAlive() || wr.Target() != 0 {
		t.Error("weak ref not cleared after its target was swept")
	}
}

func TestWeakRefToSurvivorStaysAlive(t *testing.T) {
	h := New()
	gc := NewGC(h, 0)

	root := h.Allocate()
	target := h.Allocate()
	mustSetRef(t, h, root, "t", target)

	wr, err := h.NewWeakRef(target)
	if err != nil {
		t.Fatal(err)
	}

	gc.Collect()

	if !wr.IsAlive() || wr.Target() != target {
		t.Error("weak ref to a reachable object was cleared")
	}
}

func TestWeakRefToUnknownObject(t *testing.T) {
	h := New()
	if _, err := h.NewWeakRef(42); err == nil {
		t.Error("NewWeakRef(42) on empty heap should fail")
	}
}
