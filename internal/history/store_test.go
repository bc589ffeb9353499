package history

import (
	"math"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendDailyAndQuery(t *testing.T) {
	s := openTestStore(t)

	if err := s.AppendDaily("garden", "2026-08-25", 600, 80); err != nil {
		t.Fatalf("AppendDaily: %v", err)
	}
	if err := s.AppendDaily("garden", "2026-08-26", 900, 150); err != nil {
		t.Fatalf("AppendDaily: %v", err)
	}

	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	rows, err := s.RecentSummaries("garden", cutoff)
	if err != nil {
		t.Fatalf("RecentSummaries: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Date != "2026-08-25" || rows[1].Date != "2026-08-26" {
		t.Errorf("rows not chronological: %v, %v", rows[0].Date, rows[1].Date)
	}
	wantLPM := 80.0 / 600 * 60
	if math.Abs(rows[0].AvgLPM-wantLPM) > 1e-9 {
		t.Errorf("AvgLPM = %v, want %v", rows[0].AvgLPM, wantLPM)
	}
}

func TestAppendDailySkipsZeroRunTime(t *testing.T) {
	s := openTestStore(t)

	if err := s.AppendDaily("garden", "2026-08-25", 0, 0); err != nil {
		t.Fatalf("AppendDaily: %v", err)
	}
	rows, err := s.RecentSummaries("garden", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("RecentSummaries: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("zero-second day should not be recorded, got %d rows", len(rows))
	}
}

func TestAppendDailyIdempotent(t *testing.T) {
	s := openTestStore(t)

	// Crash-then-restart replays the same flush; the second write wins.
	if err := s.AppendDaily("garden", "2026-08-25", 600, 80); err != nil {
		t.Fatalf("AppendDaily: %v", err)
	}
	if err := s.AppendDaily("garden", "2026-08-25", 660, 95); err != nil {
		t.Fatalf("AppendDaily replay: %v", err)
	}

	rows, err := s.RecentSummaries("garden", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("RecentSummaries: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].TotalSeconds != 660 || rows[0].TotalLiters != 95 {
		t.Errorf("replay did not overwrite: %+v", rows[0])
	}
}

func TestRecentSummariesCutoff(t *testing.T) {
	s := openTestStore(t)

	if err := s.AppendDaily("garden", "2026-07-01", 600, 80); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendDaily("garden", "2026-08-20", 600, 80); err != nil {
		t.Fatal(err)
	}

	rows, err := s.RecentSummaries("garden", time.Date(2026, 7, 27, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("RecentSummaries: %v", err)
	}
	if len(rows) != 1 || rows[0].Date != "2026-08-20" {
		t.Errorf("cutoff not applied: %+v", rows)
	}
}

func TestLoadBaselines(t *testing.T) {
	s := openTestStore(t)

	now := time.Date(2026, 8, 27, 0, 30, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		date := now.AddDate(0, 0, -(i + 1)).Format("2006-01-02")
		if err := s.AppendDaily("garden", date, 600, 100); err != nil {
			t.Fatal(err)
		}
	}
	// A second valve with too little history.
	if err := s.AppendDaily("patio", "2026-08-26", 600, 50); err != nil {
		t.Fatal(err)
	}

	baselines, err := s.LoadBaselines([]string{"garden", "patio", "missing"}, now)
	if err != nil {
		t.Fatalf("LoadBaselines: %v", err)
	}

	g := baselines["garden"]
	if g == nil {
		t.Fatal("expected baseline for garden")
	}
	if g.SampleCount != 12 {
		t.Errorf("SampleCount = %d, want 12", g.SampleCount)
	}
	wantLPM := 100.0 / 600 * 60
	if math.Abs(g.LPM-wantLPM) > 1e-9 {
		t.Errorf("LPM = %v, want %v", g.LPM, wantLPM)
	}

	if baselines["patio"] != nil {
		t.Error("patio baseline should be nil with one sample")
	}
	if baselines["missing"] != nil {
		t.Error("unknown valve baseline should be nil")
	}
}

func TestLoadBaselinesWindow(t *testing.T) {
	s := openTestStore(t)

	now := time.Date(2026, 8, 27, 0, 30, 0, 0, time.UTC)
	// 10 rows inside the trailing 30 days at 10 LPM, plus older rows at a
	// wildly different rate that must not leak into the baseline.
	for i := 0; i < 10; i++ {
		date := now.AddDate(0, 0, -(i + 1)).Format("2006-01-02")
		if err := s.AppendDaily("garden", date, 60, 10); err != nil {
			t.Fatal(err)
		}
	}
	for i := 40; i < 50; i++ {
		date := now.AddDate(0, 0, -i).Format("2006-01-02")
		if err := s.AppendDaily("garden", date, 60, 100); err != nil {
			t.Fatal(err)
		}
	}

	baselines, err := s.LoadBaselines([]string{"garden"}, now)
	if err != nil {
		t.Fatalf("LoadBaselines: %v", err)
	}
	g := baselines["garden"]
	if g == nil {
		t.Fatal("expected baseline")
	}
	if g.SampleCount != 10 {
		t.Errorf("SampleCount = %d, want 10 (window breached)", g.SampleCount)
	}
	if math.Abs(g.LPM-10) > 1e-9 {
		t.Errorf("LPM = %v, want 10", g.LPM)
	}
}
