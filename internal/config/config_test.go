package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adi-miller/irrigate/internal/schedule"
)

const sampleYAML = `
mqtt:
  enabled: true
  client_name: irrigate
  hostname: tcp://localhost:1883
timezone: Asia/Jerusalem
location:
  latitude: 32.08
  longitude: 34.78
max_concurrent_valves: 2
database_path: data/history.db
telemetry:
  enabled: true
  idle_interval: 15
  active_interval: 1
alerts:
  enabled:
    leak: true
    malfunction_no_flow: true
    irregular_flow: true
    sensor_error: true
    system_exit: true
  leak_repeat_minutes: 60
  irregular_flow_threshold: 2.0
  leak_detection_exclusions:
    - time_based_on: fixed
      fixed_start_time: "05:00"
      duration: 60
uv_adjustments:
  - max_uv_index: 2
    multiplier: 0.6
  - max_uv_index: 5
    multiplier: 1.0
  - max_uv_index: 11
    multiplier: 1.3
waterflow:
  enabled: true
  type: mqtt
  hostname: tcp://localhost:1883
  client_name: irrigate-flow
  topic: home/waterflow/lpm
  leak_detection: true
sensors:
  - name: weather
    type: openweathermap
    api_key: secret
    latitude: 32.08
    longitude: 34.78
valves:
  - name: garden
    type: gpio
    pin: 17
    enabled: true
    sensor: weather
    schedules:
      - time_based_on: fixed
        fixed_start_time: "06:30"
        duration: 15
        days: [Mon, Wed, Fri]
        seasons: [Summer]
        enable_uv_adjustments: true
  - name: patio
    type: test
    enabled: false
    irregular_flow_threshold: 3.5
    schedules:
      - time_based_on: sunset
        offset_minutes: -30
        duration: 7.5
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.TZ == nil || cfg.TZ.String() != "Asia/Jerusalem" {
		t.Errorf("TZ = %v", cfg.TZ)
	}
	if cfg.MaxConcurrentValves != 2 {
		t.Errorf("MaxConcurrentValves = %d", cfg.MaxConcurrentValves)
	}
	if len(cfg.Valves) != 2 || cfg.Valves[0].Name != "garden" {
		t.Fatalf("valves not parsed: %+v", cfg.Valves)
	}
	if cfg.Valves[0].Pin != 17 || !cfg.Valves[0].Enabled {
		t.Errorf("garden valve wrong: %+v", cfg.Valves[0])
	}
	if cfg.Valves[1].IrregularFlowThreshold == nil || *cfg.Valves[1].IrregularFlowThreshold != 3.5 {
		t.Error("per-valve threshold override not parsed")
	}
	if cfg.Waterflow == nil || !cfg.Waterflow.LeakDetection {
		t.Error("waterflow not parsed")
	}
	if !cfg.Alerts.Enabled.Leak || cfg.Alerts.LeakRepeatMinutes != 60 {
		t.Errorf("alerts not parsed: %+v", cfg.Alerts)
	}
}

func TestBuildSchedule(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatal(err)
	}

	s := BuildSchedule("garden", cfg.Valves[0].Schedules[0])
	if s.TimeBase != schedule.TimeFixed || s.FixedStartTime != "06:30" {
		t.Errorf("fixed schedule wrong: %+v", s)
	}
	if s.DurationSec != 900 {
		t.Errorf("DurationSec = %d, want 900", s.DurationSec)
	}
	if !s.UVAdjust || len(s.Days) != 3 || s.Seasons[0] != schedule.Summer {
		t.Errorf("filters wrong: %+v", s)
	}

	// Fractional minutes convert to whole seconds.
	s = BuildSchedule("patio", cfg.Valves[1].Schedules[0])
	if s.TimeBase != schedule.TimeSunset || s.OffsetMinutes != -30 {
		t.Errorf("sunset schedule wrong: %+v", s)
	}
	if s.DurationSec != 450 {
		t.Errorf("DurationSec = %d, want 450", s.DurationSec)
	}
}

func TestSiteAndTables(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatal(err)
	}

	site := cfg.Site()
	if site.Latitude != 32.08 || site.TZ != cfg.TZ {
		t.Errorf("site wrong: %+v", site)
	}

	table := cfg.UVTable()
	if len(table) != 3 || table.Factor(1) != 0.6 {
		t.Errorf("uv table wrong: %+v", table)
	}
}

func TestValidationFailures(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"bad timezone", `
timezone: Mars/Olympus
max_concurrent_valves: 1
`},
		{"zero workers", `
timezone: UTC
max_concurrent_valves: 0
`},
		{"duplicate valve", `
timezone: UTC
max_concurrent_valves: 1
valves:
  - {name: a, type: test, enabled: true}
  - {name: a, type: test, enabled: true}
`},
		{"unknown sensor ref", `
timezone: UTC
max_concurrent_valves: 1
valves:
  - {name: a, type: test, enabled: true, sensor: ghost}
`},
		{"uv without sensor", `
timezone: UTC
max_concurrent_valves: 1
valves:
  - name: a
    type: test
    enabled: true
    schedules:
      - {time_based_on: fixed, fixed_start_time: "06:00", duration: 5, enable_uv_adjustments: true}
`},
		{"bad start time", `
timezone: UTC
max_concurrent_valves: 1
valves:
  - name: a
    type: test
    enabled: true
    schedules:
      - {time_based_on: fixed, fixed_start_time: "25:00", duration: 5}
`},
		{"solar with start time", `
timezone: UTC
max_concurrent_valves: 1
valves:
  - name: a
    type: test
    enabled: true
    schedules:
      - {time_based_on: sunrise, fixed_start_time: "06:00", duration: 5}
`},
		{"unknown day", `
timezone: UTC
max_concurrent_valves: 1
valves:
  - name: a
    type: test
    enabled: true
    schedules:
      - {time_based_on: fixed, fixed_start_time: "06:00", duration: 5, days: [Monday]}
`},
		{"descending uv table", `
timezone: UTC
max_concurrent_valves: 1
uv_adjustments:
  - {max_uv_index: 5, multiplier: 1.0}
  - {max_uv_index: 2, multiplier: 0.6}
`},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, c.yaml)); err == nil {
				t.Errorf("expected validation error for %s", c.name)
			}
		})
	}
}
