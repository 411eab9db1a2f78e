// Package schedule stores recurring broadcast schedules, detects overlapping
// schedule windows and runs the loop that starts timelines when a window opens.
package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// MinutesPerDay is the length of the daily window cycle.
const MinutesPerDay = 24 * 60

// Entry is one timeline in a schedule's playlist.
type Entry struct {
	TimelineID string `json:"timeline_id"`
	OrderIndex int    `json:"order_index"`
}

// Schedule is a recurring broadcast slot. WindowStart and WindowEnd are
// minutes after local midnight in Timezone; WindowEnd < WindowStart means the
// window wraps past midnight into the next day. Days uses 0=Sunday..6=Saturday.
type Schedule struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Enabled        bool      `json:"is_enabled"`
	Timezone       string    `json:"timezone"`
	Days           []int     `json:"days_of_week"`
	WindowStart    int       `json:"window_start"`
	WindowEnd      int       `json:"window_end"`
	Timelines      []Entry   `json:"timelines"`
	DestinationIDs []string  `json:"destination_ids"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ErrInvalidSchedule is returned by Validate.
var ErrInvalidSchedule = errors.New("invalid schedule")

// Validate checks field ranges. It does not look up timelines or destinations.
func (s *Schedule) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSchedule)
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("%w: timezone %q: %v", ErrInvalidSchedule, s.Timezone, err)
	}
	if len(s.Days) == 0 {
		return fmt.Errorf("%w: at least one day is required", ErrInvalidSchedule)
	}
	for _, d := range s.Days {
		if d < 0 || d > 6 {
			return fmt.Errorf("%w: day %d out of range 0-6", ErrInvalidSchedule, d)
		}
	}
	if !validMinute(s.WindowStart) || !validMinute(s.WindowEnd) {
		return fmt.Errorf("%w: window bounds must be within 00:00-23:59", ErrInvalidSchedule)
	}
	if s.WindowStart == s.WindowEnd {
		return fmt.Errorf("%w: window is empty", ErrInvalidSchedule)
	}
	if len(s.Timelines) == 0 {
		return fmt.Errorf("%w: at least one timeline is required", ErrInvalidSchedule)
	}
	if len(s.DestinationIDs) == 0 {
		return fmt.Errorf("%w: at least one destination is required", ErrInvalidSchedule)
	}
	return nil
}

// Wraps reports whether the window crosses midnight.
func (s *Schedule) Wraps() bool {
	return s.WindowEnd < s.WindowStart
}

// OrderedTimelines returns the entries sorted by OrderIndex.
func (s *Schedule) OrderedTimelines() []Entry {
	out := append([]Entry(nil), s.Timelines...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out
}

// Origin is the session origin tag used for sessions this schedule starts.
func (s *Schedule) Origin() string {
	return "schedule:" + s.ID
}

func validMinute(m int) bool {
	return m >= 0 && m < MinutesPerDay
}

// ParseClock parses "HH:MM" into minutes after midnight.
func ParseClock(v string) (int, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("%w: time of day %q: %v", ErrInvalidSchedule, v, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders minutes after midnight as "HH:MM".
func FormatClock(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
