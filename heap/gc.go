package heap

import (
	"sync"
	"sync/atomic"
	"time"
)

// ---------------------------------------------------------------------------
// GC: mark-and-sweep collection for one Heap
// ---------------------------------------------------------------------------

// CycleStats holds statistics from a single collection cycle.
type CycleStats struct {
	Marked        int           // objects found reachable from the root
	Swept         int           // objects reclaimed
	Live          int           // objects remaining after the cycle
	SweepDuration time.Duration // wall time for the full mark+sweep
	Timestamp     time.Time     // when the cycle started
}

// Phase identifies where the collector is within a cycle.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseMarking
	PhaseSweeping
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseMarking:
		return "marking"
	case PhaseSweeping:
		return "sweeping"
	default:
		return "unknown"
	}
}

// GC drives mark-and-sweep collection for a single Heap instance. It
// holds no global state, so independent heaps collect independently.
//
// Collect runs under the heap's write lock: host mutation blocks for
// the duration of a cycle instead of interleaving with it. A cycle
// always runs to completion once started.
type GC struct {
	heap     *Heap
	interval time.Duration
	enabled  atomic.Bool
	phase    atomic.Int32
	stop     chan struct{}
	stopped  chan struct{}
	mu       sync.Mutex // protects start/stop lifecycle

	// Statistics
	cycleCount atomic.Uint64
	lastStats  atomic.Value // *CycleStats
}

// DefaultInterval is the default period for background collection.
const DefaultInterval = 30 * time.Second

// NewGC creates a collector for the given heap. The interval only
// matters if the background loop is started; use DefaultInterval for
// the default (30s).
func NewGC(h *Heap, interval time.Duration) *GC {
	if interval <= 0 {
		interval = DefaultInterval
	}
	gc := &GC{
		heap:     h,
		interval: interval,
	}
	gc.enabled.Store(true)
	return gc
}

// Heap returns the heap this collector drives.
func (gc *GC) Heap() *Heap { return gc.heap }

// Collect performs one synchronous mark-and-sweep cycle: every object
// unreachable from the root is removed, every survivor's mark bit is
// reset. Calling Collect twice with no intervening mutation leaves the
// heap unchanged on the second call.
func (gc *GC) Collect() *CycleStats {
	start := time.Now()
	stats := &CycleStats{Timestamp: start}

	stats.Marked, stats.Swept, stats.Live = gc.runCycle()

	stats.SweepDuration = time.Since(start)

	gc.cycleCount.Add(1)
	gc.lastStats.Store(stats)
	return stats
}

// runCycle performs mark then sweep under the heap write lock and
// leaves the phase at idle on every exit path.
func (gc *GC) runCycle() (marked, swept, live int) {
	gc.heap.mu.Lock()
	defer gc.heap.mu.Unlock()
	defer gc.phase.Store(int32(PhaseIdle))

	gc.phase.Store(int32(PhaseMarking))
	marked = gc.heap.markFromRoot()

	gc.phase.Store(int32(PhaseSweeping))
	swept = gc.heap.sweep()

	return marked, swept, len(gc.heap.objects)
}

// Phase returns the collector's current phase. Outside a Collect call
// this always reads PhaseIdle.
func (gc *GC) Phase() Phase {
	return Phase(gc.phase.Load())
}

// CycleCount returns the total number of cycles performed.
func (gc *GC) CycleCount() uint64 {
	return gc.cycleCount.Load()
}

// LastStats returns statistics from the most recent cycle, or nil if no
// cycle has run yet.
func (gc *GC) LastStats() *CycleStats {
	v := gc.lastStats.Load()
	if v == nil {
		return nil
	}
	return v.(*CycleStats)
}

// SetEnabled enables or disables background collection. When disabled,
// the loop keeps running but skips cycles; explicit Collect calls are
// unaffected.
func (gc *GC) SetEnabled(enabled bool) {
	gc.enabled.Store(enabled)
}

// IsEnabled returns whether background collection is currently enabled.
func (gc *GC) IsEnabled() bool {
	return gc.enabled.Load()
}

// Interval returns the background collection period.
func (gc *GC) Interval() time.Duration {
	return gc.interval
}

// Start begins periodic background collection. It is safe to call
// Start multiple times; only one loop will run.
func (gc *GC) Start() {
	gc.mu.Lock()
	defer gc.mu.Unlock()

	if gc.stop != nil {
		return // already running
	}

	gc.stop = make(chan struct{})
	gc.stopped = make(chan struct{})

	// Capture channels locally so the goroutine never reads gc.stop or
	// gc.stopped after Stop has nilled them out.
	stopCh := gc.stop
	stoppedCh := gc.stopped
	go gc.loop(stopCh, stoppedCh)
}

// Stop halts periodic collection and waits for the loop to finish. It
// is safe to call Stop multiple times or on a GC that was never started.
func (gc *GC) Stop() {
	gc.mu.Lock()
	stopCh := gc.stop
	stoppedCh := gc.stopped
	gc.stop = nil
	gc.stopped = nil
	gc.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-stoppedCh
	}
}

func (gc *GC) loop(stopCh <-chan struct{}, stoppedCh chan struct{}) {
	defer close(stoppedCh)

	ticker := time.NewTicker(gc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if gc.enabled.Load() {
				gc.Collect()
			}
		}
	}
}
