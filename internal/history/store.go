// Package history persists per-valve daily operation summaries and derives
// flow-rate baselines from them.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DailySummary is one row of valve history: totals for a single day of
// operation. Rows exist only for days with nonzero run time.
type DailySummary struct {
	ValveName    string
	Date         string // YYYY-MM-DD
	TotalSeconds int
	TotalLiters  float64
	AvgLPM       float64
}

// Store wraps the SQLite history database.
type Store struct {
	conn *sql.DB
}

// Open opens or creates the history database.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate history database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS valve_metrics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		valve_name TEXT NOT NULL,
		date TEXT NOT NULL,
		total_seconds INTEGER NOT NULL,
		total_liters REAL NOT NULL,
		avg_lpm REAL NOT NULL,
		UNIQUE(valve_name, date)
	);
	CREATE INDEX IF NOT EXISTS idx_valve_metrics_valve_date ON valve_metrics(valve_name, date);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// AppendDaily records one day of operation for a valve. Days with zero run
// time are not recorded. Re-recording the same (valve, date) overwrites,
// which makes the midnight flush idempotent across restarts.
func (s *Store) AppendDaily(valveName, date string, totalSeconds int, totalLiters float64) error {
	if totalSeconds <= 0 {
		return nil
	}
	avgLPM := totalLiters / float64(totalSeconds) * 60

	_, err := s.conn.Exec(`
		INSERT INTO valve_metrics (valve_name, date, total_seconds, total_liters, avg_lpm)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(valve_name, date) DO UPDATE SET
			total_seconds = excluded.total_seconds,
			total_liters = excluded.total_liters,
			avg_lpm = excluded.avg_lpm`,
		valveName, date, totalSeconds, totalLiters, avgLPM)
	if err != nil {
		return fmt.Errorf("append daily summary for %s: %w", valveName, err)
	}
	return nil
}

// RecentSummaries returns the valve's rows newer than the cutoff date,
// chronologically sorted.
func (s *Store) RecentSummaries(valveName string, cutoff time.Time) ([]DailySummary, error) {
	rows, err := s.conn.Query(`
		SELECT valve_name, date, total_seconds, total_liters, avg_lpm
		FROM valve_metrics
		WHERE valve_name = ? AND date > ?
		ORDER BY date ASC`,
		valveName, cutoff.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("query summaries for %s: %w", valveName, err)
	}
	defer rows.Close()

	var out []DailySummary
	for rows.Next() {
		var d DailySummary
		if err := rows.Scan(&d.ValveName, &d.Date, &d.TotalSeconds, &d.TotalLiters, &d.AvgLPM); err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// LoadBaselines computes baselines for all named valves from the trailing
// 30 days of history. Valves with insufficient history map to nil.
func (s *Store) LoadBaselines(valveNames []string, now time.Time) (map[string]*Baseline, error) {
	cutoff := now.AddDate(0, 0, -30)
	out := make(map[string]*Baseline, len(valveNames))
	for _, name := range valveNames {
		summaries, err := s.RecentSummaries(name, cutoff)
		if err != nil {
			return nil, err
		}
		out[name] = Compute(summaries)
	}
	return out, nil
}
