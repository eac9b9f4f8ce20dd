package snooze

import (
	"errors"
	"testing"
	"time"
)

func TestWakeAt(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	policy := Policy{Location: loc, MorningHour: 9, WeekStart: time.Monday}

	// Wednesday 2026-05-06 22:30 local.
	now := time.Date(2026, 5, 6, 22, 30, 0, 0, loc)

	tests := []struct {
		preset Preset
		want   time.Time
	}{
		{PresetOneHour, now.Add(time.Hour)},
		{PresetThreeHours, now.Add(3 * time.Hour)},
		{PresetTomorrow, time.Date(2026, 5, 7, 9, 0, 0, 0, loc)},
		{PresetNextWeek, time.Date(2026, 5, 11, 9, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		got, err := policy.WakeAt(tt.preset, now)
		if err != nil {
			t.Fatalf("%s: %v", tt.preset, err)
		}
		if !got.Equal(tt.want) {
			t.Errorf("%s: got %v, want %v", tt.preset, got, tt.want)
		}
	}
}

func TestWakeAtUsesPolicyZoneForCalendarDay(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	policy := Policy{Location: loc, MorningHour: 8, WeekStart: time.Monday}

	// 2026-05-07 02:00 UTC is still May 6 in UTC-5.
	now := time.Date(2026, 5, 7, 2, 0, 0, 0, time.UTC)
	got, err := policy.WakeAt(PresetTomorrow, now)
	if err != nil {
		t.Fatalf("tomorrow: %v", err)
	}
	if want := time.Date(2026, 5, 7, 8, 0, 0, 0, loc); !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNextWeekOnWeekStartSkipsAFullWeek(t *testing.T) {
	policy := Policy{Location: time.UTC, MorningHour: 9, WeekStart: time.Monday}
	monday := time.Date(2026, 5, 4, 7, 0, 0, 0, time.UTC)

	got, err := policy.WakeAt(PresetNextWeek, monday)
	if err != nil {
		t.Fatalf("next week: %v", err)
	}
	if want := time.Date(2026, 5, 11, 9, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNextWeekWithSundayStart(t *testing.T) {
	policy := Policy{Location: time.UTC, MorningHour: 9, WeekStart: time.Sunday}
	saturday := time.Date(2026, 5, 9, 12, 0, 0, 0, time.UTC)

	got, err := policy.WakeAt(PresetNextWeek, saturday)
	if err != nil {
		t.Fatalf("next week: %v", err)
	}
	if want := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParsePreset(t *testing.T) {
	tests := map[string]Preset{
		"1h":        PresetOneHour,
		" 3H ":      PresetThreeHours,
		"tomorrow":  PresetTomorrow,
		"next-week": PresetNextWeek,
		"next_week": PresetNextWeek,
	}
	for in, want := range tests {
		got, err := ParsePreset(in)
		if err != nil || got != want {
			t.Errorf("ParsePreset(%q) = %q, %v; want %q", in, got, err, want)
		}
	}

	if _, err := ParsePreset("someday"); !errors.Is(err, ErrUnknownPreset) {
		t.Fatalf("expected ErrUnknownPreset, got %v", err)
	}
}

func TestNewPolicy(t *testing.T) {
	p, err := NewPolicy(time.UTC, 7, "sun")
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}
	if p.WeekStart != time.Sunday || p.MorningHour != 7 {
		t.Fatalf("unexpected policy %+v", p)
	}

	if _, err := NewPolicy(time.UTC, 24, "monday"); err == nil {
		t.Fatalf("expected error for hour 24")
	}
	if _, err := NewPolicy(time.UTC, 9, "funday"); err == nil {
		t.Fatalf("expected error for unknown weekday")
	}
}
