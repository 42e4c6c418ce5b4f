// Package schedule turns the free text schedule stored on a class, such as
// "Mondays and Wednesdays, 6:00 PM - 8:00 PM", into weekdays, a start clock and
// a duration, and expands it into concrete meeting slots.
package schedule

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

var weekdayNames = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// H:MM AM/PM, a separator, H:MM AM/PM. The first range in the input wins.
var timeRange = regexp.MustCompile(`(?i)(\d{1,2}):(\d{2})\s*([ap])\.?m\.?\s*(?:-|–|\bto\b)\s*(\d{1,2}):(\d{2})\s*([ap])\.?m\.?`)

// DaySet is a set of weekdays, bit n standing for time.Weekday(n).
type DaySet uint8

// NewDaySet builds a set from weekdays.
func NewDaySet(days ...time.Weekday) DaySet {
	var set DaySet
	for _, d := range days {
		set = set.Add(d)
	}
	return set
}

// Add returns the set with d included.
func (s DaySet) Add(d time.Weekday) DaySet {
	if d < time.Sunday || d > time.Saturday {
		return s
	}
	return s | 1<<uint(d)
}

// Has reports whether d is in the set.
func (s DaySet) Has(d time.Weekday) bool {
	return d >= time.Sunday && d <= time.Saturday && s&(1<<uint(d)) != 0
}

// Empty reports whether the set has no days.
func (s DaySet) Empty() bool { return s&0x7f == 0 }

// Len returns the number of days in the set.
func (s DaySet) Len() int {
	n := 0
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			n++
		}
	}
	return n
}

// Weekdays lists the members in Sunday first order.
func (s DaySet) Weekdays() []time.Weekday {
	days := make([]time.Weekday, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			days = append(days, d)
		}
	}
	return days
}

// MarshalJSON encodes the set as a sorted array of 0-6.
func (s DaySet) MarshalJSON() ([]byte, error) {
	days := s.Weekdays()
	out := make([]int, len(days))
	for i, d := range days {
		out[i] = int(d)
	}
	return json.Marshal(out)
}

// Clock is a wall clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// String renders the clock as 24 hour "HH:MM".
func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// Minutes returns the minutes elapsed since midnight.
func (c Clock) Minutes() int { return c.Hour*60 + c.Minute }

// MarshalJSON encodes the clock as "HH:MM".
func (c Clock) MarshalJSON() ([]byte, error) { return json.Marshal(c.String()) }

// Schedule is the parsed form of a class schedule.
type Schedule struct {
	Days      DaySet        `json:"days"`
	StartTime Clock         `json:"start_time"`
	Duration  time.Duration `json:"-"`
}

// IsZero reports whether the schedule has no days, as produced by ParseOrEmpty on failure.
func (s Schedule) IsZero() bool { return s.Days.Empty() }

// MarshalJSON adds the duration in minutes.
func (s Schedule) MarshalJSON() ([]byte, error) {
	type alias Schedule
	return json.Marshal(struct {
		alias
		DurationMinutes int `json:"duration_minutes"`
	}{alias(s), int(s.Duration / time.Minute)})
}

// FormatError reports a schedule string that could not be parsed. It matches
// the SCHEDULE_FORMAT application error under errors.Is.
type FormatError struct {
	Input  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("schedule %q: %s", e.Input, e.Reason)
}

// Unwrap exposes the application error so handlers render a 400.
func (e *FormatError) Unwrap() error {
	return appErrors.Clone(appErrors.ErrScheduleFormat, e.Error())
}

// Parse reads weekdays and the first 12 hour time range from s.
func Parse(s string) (Schedule, error) {
	lower := strings.ToLower(s)

	var days DaySet
	for i, name := range weekdayNames {
		if strings.Contains(lower, name) {
			days = days.Add(time.Weekday(i))
		}
	}
	if days.Empty() {
		return Schedule{}, &FormatError{Input: s, Reason: "no weekday found"}
	}

	m := timeRange.FindStringSubmatch(s)
	if m == nil {
		return Schedule{}, &FormatError{Input: s, Reason: "no time range found"}
	}
	start, err := toClock(m[1], m[2], m[3])
	if err != nil {
		return Schedule{}, &FormatError{Input: s, Reason: "start time: " + err.Error()}
	}
	end, err := toClock(m[4], m[5], m[6])
	if err != nil {
		return Schedule{}, &FormatError{Input: s, Reason: "end time: " + err.Error()}
	}
	if end.Minutes() <= start.Minutes() {
		return Schedule{}, &FormatError{Input: s, Reason: "end time must be after start time"}
	}

	return Schedule{
		Days:      days,
		StartTime: start,
		Duration:  time.Duration(end.Minutes()-start.Minutes()) * time.Minute,
	}, nil
}

// ParseOrEmpty is Parse for callers that tolerate legacy free text: any
// failure yields an empty Schedule.
func ParseOrEmpty(s string) Schedule {
	parsed, err := Parse(s)
	if err != nil {
		return Schedule{}
	}
	return parsed
}

func toClock(hh, mm, meridiem string) (Clock, error) {
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 1 || hour > 12 {
		return Clock{}, fmt.Errorf("hour %q out of range", hh)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("minute %q out of range", mm)
	}
	hour %= 12
	if strings.EqualFold(meridiem, "p") {
		hour += 12
	}
	return Clock{Hour: hour, Minute: minute}, nil
}
