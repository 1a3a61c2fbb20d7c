package patchtuesday

import (
	"fmt"
	"time"
)

// anchorDay always falls inside the second calendar week of a month, so the
// nearest Tuesday to it is always the second Tuesday (which lives in [8, 14]).
const anchorDay = 12

// PatchTuesday returns the second Tuesday of ref's month at midnight in ref's
// location. Only the year and month of ref matter.
func PatchTuesday(ref time.Time) time.Time {
	base := time.Date(ref.Year(), ref.Month(), anchorDay, 0, 0, 0, 0, ref.Location())
	shift := int(time.Tuesday) - int(base.Weekday())
	return base.AddDate(0, 0, shift)
}

// ResolveCycle returns the Patch Tuesday that anchors the current realignment
// cycle. When today is already past this month's Patch Tuesday (a late or
// out-of-schedule run) the next month's date is returned instead, so windows
// are never scheduled in the past.
func ResolveCycle(today time.Time) time.Time {
	candidate := PatchTuesday(today)
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	if day.After(candidate) {
		next := time.Date(today.Year(), today.Month(), anchorDay, 0, 0, 0, 0, today.Location()).AddDate(0, 1, 0)
		candidate = PatchTuesday(next)
	}
	return candidate
}

// WindowSpec describes an existing maintenance window: the weekday it runs on,
// its time of day and its length. The realigned window keeps all three.
type WindowSpec struct {
	StartDay        time.Weekday
	StartHour       int
	StartMinute     int
	DurationMinutes int
}

// Validate rejects specs the calculator cannot realign meaningfully.
func (s WindowSpec) Validate() error {
	if s.StartDay < time.Sunday || s.StartDay > time.Saturday {
		return fmt.Errorf("invalid start day %d", s.StartDay)
	}
	if s.StartHour < 0 || s.StartHour > 23 {
		return fmt.Errorf("invalid start hour %d", s.StartHour)
	}
	if s.StartMinute < 0 || s.StartMinute > 59 {
		return fmt.Errorf("invalid start minute %d", s.StartMinute)
	}
	if s.DurationMinutes < 0 {
		return fmt.Errorf("negative duration %d", s.DurationMinutes)
	}
	return nil
}

// Window is a single non-recurring occurrence produced by Realign.
type Window struct {
	Start time.Time
	End   time.Time

	// OffsetDays is the signed distance from Patch Tuesday. Sunday and Monday
	// windows produce negative offsets and land before Patch Tuesday in the
	// same week; callers should surface those rather than silently apply them.
	OffsetDays         int
	BeforePatchTuesday bool
}

// Realign maps the spec onto the week of the given Patch Tuesday, preserving
// the weekday, time of day and duration of the original window.
func Realign(patchTuesday time.Time, spec WindowSpec) Window {
	offset := int(spec.StartDay) - int(time.Tuesday)
	day := patchTuesday.AddDate(0, 0, offset)
	start := time.Date(day.Year(), day.Month(), day.Day(), spec.StartHour, spec.StartMinute, 0, 0, patchTuesday.Location())
	return Window{
		Start:              start,
		End:                start.Add(time.Duration(spec.DurationMinutes) * time.Minute),
		OffsetDays:         offset,
		BeforePatchTuesday: offset < 0,
	}
}
