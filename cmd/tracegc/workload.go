package main

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/chazu/tracegc/heap"
	"github.com/chazu/tracegc/history"
	"github.com/chazu/tracegc/manifest"
)

// runWorkload allocates randomized object graphs, cuts a share of the
// edges, and collects, for the configured number of rounds. Cycle stats
// go to the log and, if configured, to the history store.
func runWorkload(m *manifest.Manifest, store *history.Store) error {
	seed := m.Workload.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	h := heap.New()
	gc := heap.NewGC(h, m.GC.Interval.Value())
	if m.GC.Background {
		gc.Start()
		defer gc.Stop()
	}

	root := h.Allocate(heap.Field{Name: "round", Value: heap.FromInt(0)})
	log.Infof("heap %s: root is #%d, seed %d", h.ID(), root, seed)

	for round := 1; round <= m.Workload.Rounds; round++ {
		if err := h.SetField(root, "round", heap.FromInt(int64(round))); err != nil {
			return err
		}
		if err := growGraph(h, rng, root, m.Workload); err != nil {
			return err
		}
		if err := cutEdges(h, rng, root, m.Workload.GarbagePct); err != nil {
			return err
		}

		before := h.Len()
		stats := gc.Collect()
		log.Infof("round %d: %d -> %d objects (marked=%d swept=%d) in %s",
			round, before, stats.Live, stats.Marked, stats.Swept, stats.SweepDuration)

		if store != nil {
			if err := store.Append(h.ID(), stats); err != nil {
				return err
			}
		}
	}

	if store != nil {
		cycles, marked, swept, err := store.Totals(h.ID())
		if err != nil {
			return err
		}
		fmt.Printf("recorded %d cycles: %d marked, %d swept\n", cycles, marked, swept)
	}

	if path := m.SnapshotPath(); path != "" {
		if err := h.WriteSnapshotFile(path); err != nil {
			return err
		}
		log.Infof("wrote snapshot of %d objects to %s", h.Len(), path)
	}

	fmt.Printf("final live set: %d objects after %d cycles\n", h.Len(), gc.CycleCount())
	return nil
}

// growGraph allocates the round's objects and links each one from a
// randomly chosen existing object, so the new generation starts out
// reachable from the root.
func growGraph(h *heap.Heap, rng *rand.Rand, root heap.ObjectID, w manifest.Workload) error {
	var existing []heap.ObjectID
	h.ForEachObject(func(id heap.ObjectID) bool {
		existing = append(existing, id)
		return true
	})

	for i := 0; i < w.Objects; i++ {
		id := h.Allocate(heap.Field{Name: "payload", Value: heap.FromInt(rng.Int63n(1 << 40))})

		// Prefer a random parent with spare fan-out; fall back to the
		// root, which takes any overflow.
		parent := root
		if len(existing) > 0 {
			p := existing[rng.Intn(len(existing))]
			if obj, err := h.Get(p); err == nil {
				refs := 0
				obj.ForEachRef(func(heap.ObjectID) { refs++ })
				if refs < w.FanOut {
					parent = p
				}
			}
		}

		// Slot names carry the child id so a later link can never
		// overwrite an earlier edge and orphan its subtree.
		slot := fmt.Sprintf("ref%d", id)
		err := h.SetField(parent, slot, heap.FromRef(id))
		if errors.Is(err, heap.ErrUnknownObject) {
			// The chosen parent was collected out from under us by a
			// background cycle; hang the new object off the root instead.
			err = h.SetField(root, slot, heap.FromRef(id))
		}
		if err != nil {
			return err
		}
		existing = append(existing, id)
	}
	return nil
}

// cutEdges removes roughly pct of the reference fields on non-root
// objects, stranding subgraphs for the collector to find.
func cutEdges(h *heap.Heap, rng *rand.Rand, root heap.ObjectID, pct float64) error {
	// Gather ids first: calling back into the heap inside ForEachObject
	// would re-acquire its read lock and deadlock behind a collector
	// waiting for the write lock.
	var ids []heap.ObjectID
	h.ForEachObject(func(id heap.ObjectID) bool {
		if id != root {
			ids = append(ids, id)
		}
		return true
	})

	type edge struct {
		from heap.ObjectID
		name string
	}
	var edges []edge
	for _, id := range ids {
		obj, err := h.Get(id)
		if errors.Is(err, heap.ErrUnknownObject) {
			continue // collected since the walk
		}
		if err != nil {
			return err
		}
		obj.ForEachField(func(name string, v heap.Value) {
			if v.IsRef() {
				edges = append(edges, edge{from: id, name: name})
			}
		})
	}

	for _, e := range edges {
		if rng.Float64() < pct {
			err := h.RemoveField(e.from, e.name)
			if err != nil && !errors.Is(err, heap.ErrUnknownObject) {
				return err
			}
		}
	}
	return nil
}
