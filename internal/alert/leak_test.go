package alert

import (
	"testing"
	"time"

	"github.com/adi-miller/irrigate/internal/schedule"
)

func TestLeakRequiresDebounce(t *testing.T) {
	rec := &recorder{}
	m := testManager(rec, Config{LeakRepeat: time.Hour})
	l := NewLeakMonitor(m)

	now := time.Date(2026, 8, 26, 2, 0, 0, 0, time.UTC)

	// First all-closed observation only starts the window.
	l.Check(now, false, 5.0)
	if rec.count() != 0 {
		t.Fatal("flow at window start must not fire")
	}

	// Still inside the settle window.
	l.Check(now.Add(30*time.Second), false, 5.0)
	if rec.count() != 0 {
		t.Fatal("flow inside debounce must not fire")
	}

	// Past the window with flow still present.
	l.Check(now.Add(61*time.Second), false, 5.0)
	if rec.count() != 1 {
		t.Fatalf("got %d alerts, want 1", rec.count())
	}
	if rec.last().Kind != Leak {
		t.Errorf("kind = %v, want leak", rec.last().Kind)
	}
}

func TestLeakWindowResetsWhenValveOpens(t *testing.T) {
	rec := &recorder{}
	m := testManager(rec, Config{LeakRepeat: time.Hour})
	l := NewLeakMonitor(m)

	now := time.Date(2026, 8, 26, 2, 0, 0, 0, time.UTC)
	l.Check(now, false, 5.0)
	l.Check(now.Add(50*time.Second), true, 5.0) // a cycle opened a valve

	// The closed window must restart from scratch.
	l.Check(now.Add(60*time.Second), false, 5.0)
	l.Check(now.Add(90*time.Second), false, 5.0)
	if rec.count() != 0 {
		t.Fatal("window must restart after any valve opens")
	}

	l.Check(now.Add(121*time.Second), false, 5.0)
	if rec.count() != 1 {
		t.Fatalf("got %d alerts, want 1", rec.count())
	}
}

func TestLeakClearsWhenFlowStops(t *testing.T) {
	rec := &recorder{}
	m := testManager(rec, Config{LeakRepeat: time.Hour})
	l := NewLeakMonitor(m)
	l.SetDebounce(10 * time.Second)

	now := time.Date(2026, 8, 26, 2, 0, 0, 0, time.UTC)
	l.Check(now, false, 5.0)
	l.Check(now.Add(11*time.Second), false, 5.0)
	if rec.count() != 1 {
		t.Fatal("expected leak")
	}

	// Flow stops: the leak state clears, so a new leak fires immediately
	// instead of waiting out LeakRepeat.
	l.Check(now.Add(12*time.Second), false, 0)
	l.Check(now.Add(13*time.Second), false, 5.0)
	if rec.count() != 2 {
		t.Fatalf("got %d alerts, want 2 after clear", rec.count())
	}
}

func TestLeakSuppressedInExclusionWindow(t *testing.T) {
	tz := time.UTC
	excl := &schedule.Schedule{
		TimeBase:       schedule.TimeFixed,
		FixedStartTime: "02:00",
		DurationSec:    3600,
	}
	rec := &recorder{}
	m := testManager(rec, Config{
		LeakRepeat: time.Hour,
		Exclusions: []*schedule.Schedule{excl},
		Site:       schedule.Site{Latitude: 40, TZ: tz},
	})
	l := NewLeakMonitor(m)
	l.SetDebounce(10 * time.Second)

	now := time.Date(2026, 8, 26, 2, 10, 0, 0, tz)
	l.Check(now, false, 5.0)
	l.Check(now.Add(11*time.Second), false, 5.0)
	if rec.count() != 0 {
		t.Fatal("leak inside exclusion window must not fire")
	}

	// Same pattern outside the window fires.
	later := time.Date(2026, 8, 26, 4, 0, 0, 0, tz)
	l.Check(later, false, 5.0)
	l.Check(later.Add(11*time.Second), false, 5.0)
	if rec.count() != 1 {
		t.Fatalf("got %d alerts, want 1 outside exclusion", rec.count())
	}
}
