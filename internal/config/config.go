// Package config loads and validates the controller configuration file.
// All structural validation happens here, once, at load time; the rest of
// the process never inspects presence of optional fields at runtime.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/adi-miller/irrigate/internal/alert"
	"github.com/adi-miller/irrigate/internal/schedule"
)

// Config is the root of the YAML configuration file.
type Config struct {
	MQTT                MQTTConfig       `yaml:"mqtt"`
	Timezone            string           `yaml:"timezone"`
	Location            Location         `yaml:"location"`
	MaxConcurrentValves int              `yaml:"max_concurrent_valves"`
	LogFile             string           `yaml:"log_file"`
	DatabasePath        string           `yaml:"database_path"`
	Telemetry           TelemetryConfig  `yaml:"telemetry"`
	Alerts              AlertsConfig     `yaml:"alerts"`
	UVAdjustments       []UVBand         `yaml:"uv_adjustments"`
	Waterflow           *WaterflowConfig `yaml:"waterflow"`
	Sensors             []SensorConfig   `yaml:"sensors"`
	Valves              []ValveConfig    `yaml:"valves"`

	// TZ is the loaded timezone, populated by Load.
	TZ *time.Location `yaml:"-"`
}

// MQTTConfig configures the telemetry/command broker connection.
type MQTTConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ClientName string `yaml:"client_name"`
	Hostname   string `yaml:"hostname"`
}

// Location is the site coordinates for solar and season calculation.
type Location struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// TelemetryConfig sets the publish cadence, in minutes.
type TelemetryConfig struct {
	Enabled           bool `yaml:"enabled"`
	IdleIntervalMin   int  `yaml:"idle_interval"`
	ActiveIntervalMin int  `yaml:"active_interval"`
}

// AlertsConfig carries per-kind enablement and thresholds.
type AlertsConfig struct {
	Enabled                 AlertEnabled     `yaml:"enabled"`
	LeakRepeatMinutes       int              `yaml:"leak_repeat_minutes"`
	IrregularFlowThreshold  float64          `yaml:"irregular_flow_threshold"`
	LeakDetectionExclusions []ScheduleConfig `yaml:"leak_detection_exclusions"`
}

// AlertEnabled gates each alert kind.
type AlertEnabled struct {
	Leak              bool `yaml:"leak"`
	MalfunctionNoFlow bool `yaml:"malfunction_no_flow"`
	IrregularFlow     bool `yaml:"irregular_flow"`
	SensorError       bool `yaml:"sensor_error"`
	SystemExit        bool `yaml:"system_exit"`
}

// UVBand is one row of the duration-multiplier table.
type UVBand struct {
	MaxUVIndex float64 `yaml:"max_uv_index"`
	Multiplier float64 `yaml:"multiplier"`
}

// WaterflowConfig configures the global water-flow meter.
type WaterflowConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Type          string `yaml:"type"` // "mqtt" or "test"
	Hostname      string `yaml:"hostname"`
	ClientName    string `yaml:"client_name"`
	Topic         string `yaml:"topic"`
	LeakDetection bool   `yaml:"leak_detection"`
}

// SensorConfig configures one environmental sensor.
type SensorConfig struct {
	Name      string  `yaml:"name"`
	Type      string  `yaml:"type"` // "openweathermap" or "test"
	APIKey    string  `yaml:"api_key"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// ValveConfig configures one valve and its schedules.
type ValveConfig struct {
	Name                   string           `yaml:"name"`
	Type                   string           `yaml:"type"` // "gpio" or "test"
	Pin                    int              `yaml:"pin"`
	Enabled                bool             `yaml:"enabled"`
	Sensor                 string           `yaml:"sensor"`                   // optional sensor name
	IrregularFlowThreshold *float64         `yaml:"irregular_flow_threshold"` // optional override
	Schedules              []ScheduleConfig `yaml:"schedules"`
}

// ScheduleConfig is the YAML form of one schedule rule.
type ScheduleConfig struct {
	TimeBasedOn         string   `yaml:"time_based_on"` // fixed | sunrise | sunset
	FixedStartTime      string   `yaml:"fixed_start_time"`
	OffsetMinutes       int      `yaml:"offset_minutes"`
	DurationMin         float64  `yaml:"duration"` // minutes
	Days                []string `yaml:"days"`
	Seasons             []string `yaml:"seasons"`
	EnableUVAdjustments bool     `yaml:"enable_uv_adjustments"`
}

var validDays = map[string]bool{
	"Mon": true, "Tue": true, "Wed": true, "Thu": true,
	"Fri": true, "Sat": true, "Sun": true,
}

var validSeasons = map[string]bool{
	string(schedule.Spring): true, string(schedule.Summer): true,
	string(schedule.Fall): true, string(schedule.Winter): true,
}

// Load reads, parses, and validates the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	tz, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	c.TZ = tz

	if c.MaxConcurrentValves < 1 {
		return fmt.Errorf("max_concurrent_valves must be >= 1, got %d", c.MaxConcurrentValves)
	}

	for i, band := range c.UVAdjustments {
		if band.Multiplier <= 0 {
			return fmt.Errorf("uv_adjustments[%d]: multiplier must be positive", i)
		}
		if i > 0 && band.MaxUVIndex <= c.UVAdjustments[i-1].MaxUVIndex {
			return fmt.Errorf("uv_adjustments[%d]: max_uv_index must be ascending", i)
		}
	}

	sensors := make(map[string]bool, len(c.Sensors))
	for i, s := range c.Sensors {
		if s.Name == "" {
			return fmt.Errorf("sensors[%d]: name is required", i)
		}
		if sensors[s.Name] {
			return fmt.Errorf("duplicate sensor name %q", s.Name)
		}
		sensors[s.Name] = true
		switch s.Type {
		case "openweathermap", "test":
		default:
			return fmt.Errorf("sensor %q: unknown type %q", s.Name, s.Type)
		}
	}

	if c.Waterflow != nil && c.Waterflow.Enabled {
		switch c.Waterflow.Type {
		case "mqtt":
			if c.Waterflow.Hostname == "" || c.Waterflow.Topic == "" {
				return fmt.Errorf("waterflow: mqtt type requires hostname and topic")
			}
		case "test":
		default:
			return fmt.Errorf("waterflow: unknown type %q", c.Waterflow.Type)
		}
	}

	names := make(map[string]bool, len(c.Valves))
	for i, v := range c.Valves {
		if v.Name == "" {
			return fmt.Errorf("valves[%d]: name is required", i)
		}
		if names[v.Name] {
			return fmt.Errorf("duplicate valve name %q", v.Name)
		}
		names[v.Name] = true

		switch v.Type {
		case "gpio", "test":
		default:
			return fmt.Errorf("valve %q: unknown type %q", v.Name, v.Type)
		}
		if v.Sensor != "" && !sensors[v.Sensor] {
			return fmt.Errorf("valve %q: unknown sensor %q", v.Name, v.Sensor)
		}

		for j, s := range v.Schedules {
			if err := validateSchedule(s); err != nil {
				return fmt.Errorf("valve %q schedules[%d]: %w", v.Name, j, err)
			}
			if s.EnableUVAdjustments && v.Sensor == "" {
				return fmt.Errorf("valve %q schedules[%d]: uv adjustments require a sensor", v.Name, j)
			}
		}
	}

	for i, s := range c.Alerts.LeakDetectionExclusions {
		if err := validateSchedule(s); err != nil {
			return fmt.Errorf("leak_detection_exclusions[%d]: %w", i, err)
		}
	}

	return nil
}

func validateSchedule(s ScheduleConfig) error {
	switch s.TimeBasedOn {
	case "fixed":
		var hh, mm int
		if _, err := fmt.Sscanf(s.FixedStartTime, "%d:%d", &hh, &mm); err != nil {
			return fmt.Errorf("fixed schedule requires fixed_start_time HH:MM, got %q", s.FixedStartTime)
		}
		if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
			return fmt.Errorf("fixed_start_time %q out of range", s.FixedStartTime)
		}
	case "sunrise", "sunset":
		if s.FixedStartTime != "" {
			return fmt.Errorf("%s schedule must not set fixed_start_time", s.TimeBasedOn)
		}
	default:
		return fmt.Errorf("unknown time_based_on %q", s.TimeBasedOn)
	}

	if s.DurationMin <= 0 {
		return fmt.Errorf("duration must be positive, got %v", s.DurationMin)
	}
	for _, d := range s.Days {
		if !validDays[d] {
			return fmt.Errorf("unknown day abbreviation %q", d)
		}
	}
	for _, se := range s.Seasons {
		if !validSeasons[se] {
			return fmt.Errorf("unknown season %q", se)
		}
	}
	return nil
}

// Site returns the schedule evaluation site.
func (c *Config) Site() schedule.Site {
	return schedule.Site{
		Latitude:  c.Location.Latitude,
		Longitude: c.Location.Longitude,
		TZ:        c.TZ,
	}
}

// UVTable converts the configured bands to the evaluator's table type.
func (c *Config) UVTable() schedule.UVTable {
	t := make(schedule.UVTable, len(c.UVAdjustments))
	for i, b := range c.UVAdjustments {
		t[i] = schedule.UVBand{MaxIndex: b.MaxUVIndex, Multiplier: b.Multiplier}
	}
	return t
}

// AlertEnabledMap converts the per-kind flags to the alert manager's form.
func (c *Config) AlertEnabledMap() map[alert.Kind]bool {
	e := c.Alerts.Enabled
	return map[alert.Kind]bool{
		alert.Leak:              e.Leak,
		alert.MalfunctionNoFlow: e.MalfunctionNoFlow,
		alert.IrregularFlow:     e.IrregularFlow,
		alert.SensorError:       e.SensorError,
		alert.SystemExit:        e.SystemExit,
	}
}

// BuildSchedule converts one schedule config to the evaluator's type,
// normalizing the duration to whole seconds.
func BuildSchedule(name string, s ScheduleConfig) *schedule.Schedule {
	seasons := make([]schedule.Season, len(s.Seasons))
	for i, se := range s.Seasons {
		seasons[i] = schedule.Season(se)
	}
	return &schedule.Schedule{
		Name:           name,
		TimeBase:       schedule.TimeBase(s.TimeBasedOn),
		FixedStartTime: s.FixedStartTime,
		OffsetMinutes:  s.OffsetMinutes,
		DurationSec:    int(s.DurationMin * 60),
		Days:           s.Days,
		Seasons:        seasons,
		UVAdjust:       s.EnableUVAdjustments,
	}
}
