package schedule

import "time"

// MaxSpanDays bounds how many calendar days Occurrences scans.
const MaxSpanDays = 3653

// Slot is one concrete meeting instance.
type Slot struct {
	Start time.Time
	End   time.Time
}

// Occurrences returns the start of every slot between startDate and endDate,
// both inclusive, that falls on one of days. Only the calendar date of the
// bounds is used, read in their own location; slots are placed at start in
// loc. The result is strictly increasing and empty when days is empty or the
// range is inverted. Ranges longer than MaxSpanDays are truncated.
func Occurrences(startDate, endDate time.Time, days DaySet, start Clock, loc *time.Location) []time.Time {
	if loc == nil {
		loc = time.UTC
	}
	if days.Empty() {
		return nil
	}

	from := civilDate(startDate)
	to := civilDate(endDate)
	if to.Before(from) {
		return nil
	}
	if limit := from.AddDate(0, 0, MaxSpanDays); to.After(limit) {
		to = limit
	}

	weeks := int(to.Sub(from).Hours()/(24*7)) + 1
	out := make([]time.Time, 0, weeks*days.Len())
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if !days.Has(d.Weekday()) {
			continue
		}
		out = append(out, time.Date(d.Year(), d.Month(), d.Day(), start.Hour, start.Minute, 0, 0, loc))
	}
	return out
}

// Slots expands the schedule into start/end pairs over the date range.
func (s Schedule) Slots(startDate, endDate time.Time, loc *time.Location) []Slot {
	starts := Occurrences(startDate, endDate, s.Days, s.StartTime, loc)
	if len(starts) == 0 {
		return nil
	}
	slots := make([]Slot, len(starts))
	for i, st := range starts {
		slots[i] = Slot{Start: st, End: st.Add(s.Duration)}
	}
	return slots
}

// civilDate drops the clock and zone. The day scan runs in UTC so DST
// transitions in loc cannot skip or repeat a date.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
