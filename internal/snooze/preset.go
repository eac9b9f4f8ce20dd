// Package snooze translates snooze presets into absolute wake times.
// The store only accepts absolute times; this policy lives with callers.
package snooze

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Preset names a snooze duration.
type Preset string

const (
	PresetOneHour    Preset = "1h"
	PresetThreeHours Preset = "3h"
	PresetTomorrow   Preset = "tomorrow"
	PresetNextWeek   Preset = "next_week"
)

// Presets lists the recognized presets in display order.
var Presets = []Preset{PresetOneHour, PresetThreeHours, PresetTomorrow, PresetNextWeek}

// ErrUnknownPreset is returned for a preset name that is not recognized.
var ErrUnknownPreset = errors.New("unknown snooze preset")

// ParsePreset normalizes a user-supplied preset name.
func ParsePreset(s string) (Preset, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1h", "hour", "1hour":
		return PresetOneHour, nil
	case "3h", "3hours":
		return PresetThreeHours, nil
	case "tomorrow":
		return PresetTomorrow, nil
	case "next_week", "next-week", "nextweek", "week":
		return PresetNextWeek, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPreset, s)
	}
}

// Policy holds the local-time rules for calendar presets.
type Policy struct {
	// Location is the zone "tomorrow" and "next week" are computed in.
	Location *time.Location

	// MorningHour is the local hour calendar presets wake at.
	MorningHour int

	// WeekStart is the first day of a calendar week.
	WeekStart time.Weekday
}

// DefaultPolicy wakes calendar presets at 09:00 local time, with weeks
// starting on Monday.
func DefaultPolicy() Policy {
	return Policy{Location: time.Local, MorningHour: 9, WeekStart: time.Monday}
}

// NewPolicy builds a Policy from configuration values. weekStart is a
// weekday name such as "monday" or "sun".
func NewPolicy(loc *time.Location, morningHour int, weekStart string) (Policy, error) {
	if morningHour < 0 || morningHour > 23 {
		return Policy{}, fmt.Errorf("morning hour must be between 0 and 23, got %d", morningHour)
	}
	day, err := ParseWeekday(weekStart)
	if err != nil {
		return Policy{}, err
	}
	if loc == nil {
		loc = time.Local
	}
	return Policy{Location: loc, MorningHour: morningHour, WeekStart: day}, nil
}

// ParseWeekday parses a full or three-letter English weekday name. An
// empty string means Monday.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return time.Monday, nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", s)
}

// WakeAt returns the absolute wake time for preset, evaluated at now.
func (p Policy) WakeAt(preset Preset, now time.Time) (time.Time, error) {
	switch preset {
	case PresetOneHour:
		return now.Add(time.Hour), nil
	case PresetThreeHours:
		return now.Add(3 * time.Hour), nil
	case PresetTomorrow:
		local := now.In(p.location())
		return p.morningOf(local.AddDate(0, 0, 1)), nil
	case PresetNextWeek:
		local := now.In(p.location())
		days := (int(p.WeekStart) - int(local.Weekday()) + 7) % 7
		if days == 0 {
			days = 7
		}
		return p.morningOf(local.AddDate(0, 0, days)), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownPreset, preset)
	}
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}

// morningOf returns MorningHour:00 on day's calendar date.
func (p Policy) morningOf(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, p.MorningHour, 0, 0, 0, p.location())
}
