// Package manifest handles tracegc.toml driver configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Manifest represents a tracegc.toml configuration file.
type Manifest struct {
	Workload Workload `toml:"workload"`
	GC       GCConfig `toml:"gc"`
	History  History  `toml:"history"`
	Snapshot Snapshot `toml:"snapshot"`

	// Dir is the directory containing the tracegc.toml file (set at load time).
	Dir string `toml:"-"`
}

// Workload configures the synthetic graph the driver builds.
type Workload struct {
	Objects    int     `toml:"objects"`     // objects to allocate per round
	FanOut     int     `toml:"fan-out"`     // max outgoing refs per object
	GarbagePct float64 `toml:"garbage-pct"` // share of edges cut before collecting
	Rounds     int     `toml:"rounds"`      // allocate/cut/collect rounds
	Seed       int64   `toml:"seed"`        // rng seed; 0 means time-derived
}

// GCConfig configures the collector.
type GCConfig struct {
	Interval   duration `toml:"interval"`   // background collection period
	Background bool     `toml:"background"` // run the periodic loop during the workload
}

// History configures cycle-stats persistence.
type History struct {
	Path    string `toml:"path"` // sqlite database path; empty disables
	Enabled bool   `toml:"enabled"`
}

// Snapshot configures heap snapshot output.
type Snapshot struct {
	Output string `toml:"output"` // snapshot file path; empty disables
}

// duration wraps time.Duration with TOML text parsing ("30s", "1m").
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(v)
	return nil
}

// Value returns the wrapped time.Duration.
func (d duration) Value() time.Duration { return time.Duration(d) }

// Load parses a tracegc.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "tracegc.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults(&md)
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir looking for a tracegc.toml file,
// then loads and returns the manifest. Returns nil if none is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "tracegc.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Default returns a manifest with defaults applied and no backing file.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults(nil)
	return m
}

// applyDefaults fills in defaults for keys the TOML file left out.
// Keys the file defines keep their value, explicit zeros included.
// A nil md means no file was decoded, so every default applies.
func (m *Manifest) applyDefaults(md *toml.MetaData) {
	defined := func(keys ...string) bool {
		return md != nil && md.IsDefined(keys...)
	}
	if !defined("workload", "objects") {
		m.Workload.Objects = 1000
	}
	if !defined("workload", "fan-out") {
		m.Workload.FanOut = 3
	}
	if !defined("workload", "garbage-pct") {
		m.Workload.GarbagePct = 0.3
	}
	if !defined("workload", "rounds") {
		m.Workload.Rounds = 5
	}
	if !defined("gc", "interval") {
		m.GC.Interval = duration(30 * time.Second)
	}
}

func (m *Manifest) validate() error {
	if m.Workload.Objects < 0 {
		return fmt.Errorf("workload.objects must be >= 0, got %d", m.Workload.Objects)
	}
	if m.Workload.FanOut < 0 {
		return fmt.Errorf("workload.fan-out must be >= 0, got %d", m.Workload.FanOut)
	}
	if m.Workload.GarbagePct < 0 || m.Workload.GarbagePct > 1 {
		return fmt.Errorf("workload.garbage-pct must be in [0,1], got %g", m.Workload.GarbagePct)
	}
	if m.History.Enabled && m.History.Path == "" {
		return fmt.Errorf("history.enabled requires history.path")
	}
	return nil
}

// HistoryPath returns the absolute path of the history database, or ""
// if history is disabled.
func (m *Manifest) HistoryPath() string {
	if !m.History.Enabled || m.History.Path == "" {
		return ""
	}
	if filepath.IsAbs(m.History.Path) || m.Dir == "" {
		return m.History.Path
	}
	return filepath.Join(m.Dir, m.History.Path)
}

// SnapshotPath returns the absolute path of the snapshot output, or ""
// if snapshots are disabled.
func (m *Manifest) SnapshotPath() string {
	if m.Snapshot.Output == "" {
		return ""
	}
	if filepath.IsAbs(m.Snapshot.Output) || m.Dir == "" {
		return m.Snapshot.Output
	}
	return filepath.Join(m.Dir, m.Snapshot.Output)
}
