package alert

import (
	"testing"

	"github.com/adi-miller/irrigate/internal/history"
)

func baselineFixture() *history.Baseline {
	return &history.Baseline{LPM: 10, StdDev: 1, SampleCount: 12}
}

func TestIrregularFlowWithinBand(t *testing.T) {
	rec := &recorder{}
	m := testManager(rec, Config{})

	// 600s at 11 LPM = 110 liters: inside 10 ± 2*1.
	CheckIrregularFlow(m, "garden", 600, 110, baselineFixture(), 2.0)
	if rec.count() != 0 {
		t.Errorf("got %d alerts, want 0 inside the band", rec.count())
	}
}

func TestIrregularFlowOutsideBand(t *testing.T) {
	rec := &recorder{}
	m := testManager(rec, Config{})

	// 600s at 15 LPM = 150 liters: above 10 + 2*1.
	CheckIrregularFlow(m, "garden", 600, 150, baselineFixture(), 2.0)
	if rec.count() != 1 {
		t.Fatalf("got %d alerts, want 1", rec.count())
	}
	a := rec.last()
	if a.Kind != IrregularFlow || a.ValveName != "garden" {
		t.Errorf("unexpected alert: %+v", a)
	}
	if a.Data["deviation_pct"].(float64) != 50 {
		t.Errorf("deviation = %v, want 50", a.Data["deviation_pct"])
	}
}

func TestIrregularFlowBelowBand(t *testing.T) {
	rec := &recorder{}
	m := testManager(rec, Config{})

	// 600s at 5 LPM = 50 liters: below 10 - 2*1. Catches clogged lines.
	CheckIrregularFlow(m, "garden", 600, 50, baselineFixture(), 2.0)
	if rec.count() != 1 {
		t.Fatalf("got %d alerts, want 1", rec.count())
	}
}

func TestIrregularFlowThresholdWidensBand(t *testing.T) {
	rec := &recorder{}
	m := testManager(rec, Config{})

	// 13 LPM is outside ±2σ but inside ±4σ.
	CheckIrregularFlow(m, "garden", 600, 130, baselineFixture(), 4.0)
	if rec.count() != 0 {
		t.Errorf("got %d alerts, want 0 with a wide threshold", rec.count())
	}
}

func TestIrregularFlowSkipsWithoutBaseline(t *testing.T) {
	rec := &recorder{}
	m := testManager(rec, Config{})

	CheckIrregularFlow(m, "garden", 600, 0, nil, 2.0)
	CheckIrregularFlow(m, "garden", 0, 50, baselineFixture(), 2.0)
	if rec.count() != 0 {
		t.Errorf("got %d alerts, want 0 without baseline or run time", rec.count())
	}
}

func TestIrregularFlowClearsOnNormalCycle(t *testing.T) {
	rec := &recorder{}
	m := testManager(rec, Config{})

	CheckIrregularFlow(m, "garden", 600, 150, baselineFixture(), 2.0)
	if rec.count() != 1 {
		t.Fatal("expected first alert")
	}

	// A normal cycle clears the state, so a later anomaly fires again.
	CheckIrregularFlow(m, "garden", 600, 100, baselineFixture(), 2.0)
	CheckIrregularFlow(m, "garden", 600, 150, baselineFixture(), 2.0)
	if rec.count() != 2 {
		t.Fatalf("got %d alerts, want 2 after a normal cycle between", rec.count())
	}
}
