// tracegc CLI - drives synthetic workloads against the tracegc heap
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"

	"github.com/chazu/tracegc/heap"
	"github.com/chazu/tracegc/history"
	"github.com/chazu/tracegc/manifest"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("tracegc")

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	configDir := flag.String("c", ".", "Directory to search for tracegc.toml")
	smoke := flag.Bool("smoke", false, "Run the canonical four-object demo and dump the heap")
	rounds := flag.Int("rounds", 0, "Override workload rounds from the manifest")
	snapshotOut := flag.String("snapshot", "", "Write a heap snapshot to this path after the workload")
	snapshotIn := flag.String("restore", "", "Restore a heap snapshot and print its contents")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tracegc [options]\n\n")
		fmt.Fprintf(os.Stderr, "Builds object graphs, runs mark-and-sweep cycles, and reports what survived.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  tracegc -smoke                 # Four-object demo: only the root survives\n")
		fmt.Fprintf(os.Stderr, "  tracegc -c ./bench             # Run the workload from bench/tracegc.toml\n")
		fmt.Fprintf(os.Stderr, "  tracegc -snapshot heap.tgcs    # Save the final heap to heap.tgcs\n")
		fmt.Fprintf(os.Stderr, "  tracegc -restore heap.tgcs     # Print a saved heap\n")
	}
	flag.Parse()

	verbosity := 0
	if *verbose {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	if *snapshotIn != "" {
		if err := restoreSnapshot(*snapshotIn); err != nil {
			fmt.Fprintf(os.Stderr, "Error restoring snapshot: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *smoke {
		if err := runSmoke(); err != nil {
			fmt.Fprintf(os.Stderr, "Error running demo: %v\n", err)
			os.Exit(1)
		}
		return
	}

	m, err := manifest.FindAndLoad(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading manifest: %v\n", err)
		os.Exit(1)
	}
	if m == nil {
		log.Info("no tracegc.toml found, using defaults")
		m = manifest.Default()
	}
	if *rounds > 0 {
		m.Workload.Rounds = *rounds
	}
	if *snapshotOut != "" {
		m.Snapshot.Output = *snapshotOut
	}

	var store *history.Store
	if path := m.HistoryPath(); path != "" {
		store, err = history.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening history db: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
	}

	if err := runWorkload(m, store); err != nil {
		fmt.Fprintf(os.Stderr, "Error running workload: %v\n", err)
		os.Exit(1)
	}
}

// restoreSnapshot loads a snapshot file and prints the heap it contains.
func restoreSnapshot(path string) error {
	h, err := heap.ReadSnapshotFile(path)
	if err != nil {
		return err
	}
	fmt.Printf("heap %s: %d live objects\n", h.ID(), h.Len())
	return h.DumpTo(os.Stdout)
}

// runSmoke builds the classic four-object graph, unlinks everything but
// the root, and collects. Expected outcome: only the root survives.
func runSmoke() error {
	h := heap.New()
	gc := heap.NewGC(h, 0)

	a := h.Allocate(heap.Field{Name: "name", Value: heap.FromInt(1)})
	b := h.Allocate()
	c := h.Allocate()
	d := h.Allocate()

	steps := []error{
		h.SetField(a, "ref1", heap.FromRef(b)),
		h.SetField(a, "ref2", heap.FromRef(c)),
		h.SetField(b, "ref1", heap.FromRef(d)),
		h.RemoveField(a, "ref2"),
		h.RemoveField(a, "ref1"),
	}
	for _, err := range steps {
		if err != nil {
			return err
		}
	}

	fmt.Println("before collection:")
	if err := h.DumpTo(os.Stdout); err != nil {
		return err
	}

	stats := gc.Collect()
	log.Infof("collected heap %s: marked=%d swept=%d live=%d in %s",
		h.ID(), stats.Marked, stats.Swept, stats.Live, stats.SweepDuration)

	fmt.Println("after collection:")
	return h.DumpTo(os.Stdout)
}
