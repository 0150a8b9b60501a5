// Package history persists garbage-collection cycle statistics to
// SQLite, so long-running hosts can inspect collector behavior after
// the fact.
package history

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/chazu/tracegc/heap"
)

// Store records collection cycles in a SQLite database.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// Record is one persisted collection cycle.
type Record struct {
	ID        int64
	HeapID    string
	Timestamp time.Time
	Marked    int
	Swept     int
	Live      int
	Duration  time.Duration
}

// Open opens (or creates) the history database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}

	// Busy timeout for concurrent access from host tooling.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS cycles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		heap_id TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		marked INTEGER NOT NULL,
		swept INTEGER NOT NULL,
		live INTEGER NOT NULL,
		duration_ns INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cycles table: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Append persists one cycle's statistics for the given heap.
func (s *Store) Append(heapID string, stats *heap.CycleStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO cycles (heap_id, timestamp, marked, swept, live, duration_ns)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		heapID,
		stats.Timestamp.UnixNano(),
		stats.Marked,
		stats.Swept,
		stats.Live,
		stats.SweepDuration.Nanoseconds(),
	)
	if err != nil {
		return fmt.Errorf("recording cycle: %w", err)
	}
	return nil
}

// Recent returns the n most recent cycles across all heaps, newest first.
func (s *Store) Recent(n int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT id, heap_id, timestamp, marked, swept, live, duration_ns
		 FROM cycles ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("querying cycles: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ForHeap returns every recorded cycle for one heap, oldest first.
func (s *Store) ForHeap(heapID string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT id, heap_id, timestamp, marked, swept, live, duration_ns
		 FROM cycles WHERE heap_id = ? ORDER BY id ASC`, heapID)
	if err != nil {
		return nil, fmt.Errorf("querying cycles for %s: %w", heapID, err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Totals aggregates marked/swept counts for one heap.
func (s *Store) Totals(heapID string) (cycles, marked, swept int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(marked), 0), COALESCE(SUM(swept), 0)
		 FROM cycles WHERE heap_id = ?`, heapID)
	if err := row.Scan(&cycles, &marked, &swept); err != nil {
		return 0, 0, 0, fmt.Errorf("aggregating cycles for %s: %w", heapID, err)
	}
	return cycles, marked, swept, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		var r Record
		var ts, dur int64
		if err := rows.Scan(&r.ID, &r.HeapID, &ts, &r.Marked, &r.Swept, &r.Live, &dur); err != nil {
			return nil, fmt.Errorf("scanning cycle row: %w", err)
		}
		r.Timestamp = time.Unix(0, ts)
		r.Duration = time.Duration(dur)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading cycle rows: %w", err)
	}
	return out, nil
}
