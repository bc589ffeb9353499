package valve

import (
	"testing"

	"github.com/adi-miller/irrigate/internal/gpio"
	"github.com/adi-miller/irrigate/internal/history"
	"github.com/adi-miller/irrigate/internal/waterflow"
)

func TestOpenClose(t *testing.T) {
	act := gpio.NewFakeActuator()
	v := New("garden", act, true)

	if v.IsOpen() {
		t.Error("new valve should be closed")
	}
	if err := v.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !v.IsOpen() || !act.Opened() {
		t.Error("valve and actuator should be open")
	}
	if err := v.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if v.IsOpen() || act.Opened() {
		t.Error("valve and actuator should be closed")
	}
}

func TestOpenErrorKeepsStateClosed(t *testing.T) {
	act := gpio.NewFakeActuator()
	act.OpenError = errTest
	v := New("garden", act, true)

	if err := v.Open(); err == nil {
		t.Fatal("expected open error")
	}
	if v.IsOpen() {
		t.Error("failed open must not flip the state")
	}
}

var errTest = errFake("actuator fault")

type errFake string

func (e errFake) Error() string { return string(e) }

func TestTryAcquireRelease(t *testing.T) {
	v := New("garden", gpio.NewFakeActuator(), true)

	if !v.TryAcquire() {
		t.Fatal("first acquire should succeed")
	}
	if v.TryAcquire() {
		t.Error("second acquire should fail while handled")
	}
	if !v.Handled() {
		t.Error("valve should report handled")
	}

	v.Release()
	if !v.TryAcquire() {
		t.Error("acquire should succeed after release")
	}
}

func TestStatusDerivation(t *testing.T) {
	v := New("garden", gpio.NewFakeActuator(), true)

	if got := v.Status(); got != StatusEnabled {
		t.Errorf("status = %q, want enabled", got)
	}

	v.SetEnabled(false)
	if got := v.Status(); got != StatusDisabled {
		t.Errorf("status = %q, want disabled", got)
	}

	// Disabled wins over everything else.
	v.SetMalfunction(true)
	if got := v.Status(); got != StatusDisabled {
		t.Errorf("status = %q, want disabled", got)
	}

	v.SetEnabled(true)
	if got := v.Status(); got != StatusMalfunction {
		t.Errorf("status = %q, want malfunction", got)
	}

	v.SetMalfunction(false)
	if err := v.Open(); err != nil {
		t.Fatal(err)
	}
	if got := v.Status(); got != StatusOpen {
		t.Errorf("status = %q, want open", got)
	}
}

func TestDailyCountersAndReset(t *testing.T) {
	v := New("garden", gpio.NewFakeActuator(), true)

	v.AddOpenSeconds(300)
	v.AddOpenSeconds(60)
	v.AddLiters(12.5)
	v.AddOpenSeconds(-5) // ignored
	v.AddLiters(-1)      // ignored

	snap := v.TelemetrySnapshot()
	if snap.SecondsDaily != 360 {
		t.Errorf("SecondsDaily = %d, want 360", snap.SecondsDaily)
	}
	if snap.LitersDaily != 12.5 {
		t.Errorf("LitersDaily = %v, want 12.5", snap.LitersDaily)
	}

	seconds, liters := v.ResetDaily()
	if seconds != 360 || liters != 12.5 {
		t.Errorf("ResetDaily = (%d, %v), want (360, 12.5)", seconds, liters)
	}

	snap = v.TelemetrySnapshot()
	if snap.SecondsDaily != 0 || snap.LitersDaily != 0 {
		t.Errorf("counters not zeroed: %+v", snap)
	}
}

func TestCycleTelemetry(t *testing.T) {
	v := New("garden", gpio.NewFakeActuator(), true)

	v.SetCycleTelemetry(120, 600, 8.2)
	snap := v.TelemetrySnapshot()
	if snap.SecondsRemain != 120 || snap.SecondsLast != 600 || snap.LitersLast != 8.2 {
		t.Errorf("cycle telemetry wrong: %+v", snap)
	}
}

func TestFlowBinding(t *testing.T) {
	v := New("garden", gpio.NewFakeActuator(), true)
	m := waterflow.NewFakeMeter(false)

	if v.Flow() != nil {
		t.Error("no meter bound initially")
	}
	v.BindFlow(m)
	if v.Flow() != waterflow.Meter(m) {
		t.Error("meter not bound")
	}
	v.BindFlow(nil)
	if v.Flow() != nil {
		t.Error("meter not unbound")
	}
}

func TestBaseline(t *testing.T) {
	v := New("garden", gpio.NewFakeActuator(), true)
	b := &history.Baseline{LPM: 10, StdDev: 1, SampleCount: 12}

	v.SetBaseline(b)
	if v.Baseline() != b {
		t.Error("baseline not installed")
	}
	if v.TelemetrySnapshot().Baseline != b {
		t.Error("snapshot missing baseline")
	}
}
