// Package schedule contains pure scheduling logic: deciding whether an
// irrigation rule is due at a given instant and computing its trigger time.
// This package has NO external collaborators beyond solar math; time is
// always injectable via time.Time parameters.
package schedule

import (
	"fmt"
	"time"
)

// TimeBase selects how a schedule's trigger instant is anchored.
type TimeBase string

const (
	TimeFixed   TimeBase = "fixed"
	TimeSunrise TimeBase = "sunrise"
	TimeSunset  TimeBase = "sunset"
)

// Season is a meteorological season, hemisphere-adjusted.
type Season string

const (
	Spring Season = "Spring"
	Summer Season = "Summer"
	Fall   Season = "Fall"
	Winter Season = "Winter"
)

// Schedule is a single (when, how long) rule owned by a valve.
type Schedule struct {
	Name           string
	TimeBase       TimeBase
	FixedStartTime string   // "HH:MM", used iff TimeBase == TimeFixed
	OffsetMinutes  int      // signed, used iff TimeBase is sunrise/sunset
	DurationSec    int      // base run length in seconds
	Days           []string // weekday abbreviations ("Mon".."Sun"); empty = every day
	Seasons        []Season // empty = every season
	UVAdjust       bool     // scale duration by the sensor-reported UV index
}

// Site is the fixed location and timezone the evaluator operates in.
type Site struct {
	Latitude  float64
	Longitude float64
	TZ        *time.Location
}

// SeasonAt returns the season for the given month at the given latitude.
// Southern hemisphere inverts the mapping.
func SeasonAt(lat float64, month time.Month) Season {
	var s Season
	switch {
	case month >= time.March && month <= time.May:
		s = Spring
	case month >= time.June && month <= time.August:
		s = Summer
	case month >= time.September && month <= time.November:
		s = Fall
	default:
		s = Winter
	}
	if lat < 0 {
		switch s {
		case Spring:
			s = Fall
		case Summer:
			s = Winter
		case Fall:
			s = Spring
		case Winter:
			s = Summer
		}
	}
	return s
}

// dayMatches reports whether now's weekday is in the schedule's day set.
// An empty set matches every day.
func dayMatches(s *Schedule, now time.Time) bool {
	if len(s.Days) == 0 {
		return true
	}
	today := now.Weekday().String()[:3]
	for _, d := range s.Days {
		if d == today {
			return true
		}
	}
	return false
}

// seasonMatches reports whether now's season is in the schedule's season set.
// An empty set matches every season.
func (site Site) seasonMatches(s *Schedule, now time.Time) bool {
	if len(s.Seasons) == 0 {
		return true
	}
	season := SeasonAt(site.Latitude, now.Month())
	for _, ss := range s.Seasons {
		if ss == season {
			return true
		}
	}
	return false
}

// TriggerTime computes the schedule's nominal trigger instant for now's date,
// second-truncated, in the site timezone.
func (site Site) TriggerTime(s *Schedule, now time.Time) (time.Time, error) {
	now = now.In(site.TZ)

	switch s.TimeBase {
	case TimeFixed:
		var hh, mm int
		if _, err := fmt.Sscanf(s.FixedStartTime, "%d:%d", &hh, &mm); err != nil {
			return time.Time{}, fmt.Errorf("schedule %q: parse start time %q: %w", s.Name, s.FixedStartTime, err)
		}
		return time.Date(now.Year(), now.Month(), now.Day(), hh, mm, 0, 0, site.TZ), nil

	case TimeSunrise, TimeSunset:
		event := site.solarEvent(s.TimeBase, now)
		event = event.In(site.TZ).Truncate(time.Second)
		return event.Add(time.Duration(s.OffsetMinutes) * time.Minute), nil

	default:
		return time.Time{}, fmt.Errorf("schedule %q: unknown time base %q", s.Name, s.TimeBase)
	}
}

// ShouldRun reports whether the schedule is due at exactly now's minute.
// The caller must evaluate once per calendar minute: the comparison is exact
// equality after minute truncation, so more or less frequent evaluation
// double-fires or misses triggers.
func (site Site) ShouldRun(s *Schedule, now time.Time) bool {
	if !dayMatches(s, now) || !site.seasonMatches(s, now) {
		return false
	}
	trigger, err := site.TriggerTime(s, now)
	if err != nil {
		return false
	}
	now = now.In(site.TZ)
	return trigger.Truncate(time.Minute).Equal(now.Truncate(time.Minute))
}

// InWindow reports whether now falls inside [trigger, trigger+duration).
// Used for leak-detection exclusion windows.
func (site Site) InWindow(s *Schedule, now time.Time) bool {
	if !dayMatches(s, now) || !site.seasonMatches(s, now) {
		return false
	}
	trigger, err := site.TriggerTime(s, now)
	if err != nil {
		return false
	}
	now = now.In(site.TZ)
	end := trigger.Add(time.Duration(s.DurationSec) * time.Second)
	return !now.Before(trigger) && now.Before(end)
}
