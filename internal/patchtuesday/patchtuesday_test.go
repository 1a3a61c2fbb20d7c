package patchtuesday

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPatchTuesdayAlwaysSecondTuesday(t *testing.T) {
	for year := 2019; year <= 2027; year++ {
		for month := time.January; month <= time.December; month++ {
			got := PatchTuesday(date(year, month, 1))
			assert.Equal(t, time.Tuesday, got.Weekday(), "%d-%02d", year, month)
			assert.Equal(t, month, got.Month(), "%d-%02d", year, month)
			assert.GreaterOrEqual(t, got.Day(), 8, "%d-%02d", year, month)
			assert.LessOrEqual(t, got.Day(), 14, "%d-%02d", year, month)
		}
	}
}

func TestPatchTuesdayJanuary2020(t *testing.T) {
	// Jan 12 2020 is a Sunday, so the anchor shifts forward two days.
	got := PatchTuesday(date(2020, time.January, 20))
	assert.Equal(t, date(2020, time.January, 14), got)
}

func TestResolveCycle(t *testing.T) {
	tests := []struct {
		name  string
		today time.Time
		want  time.Time
	}{
		{"before patch tuesday", date(2020, time.January, 3), date(2020, time.January, 14)},
		{"on patch tuesday", date(2020, time.January, 14), date(2020, time.January, 14)},
		{"after patch tuesday rolls to february", date(2020, time.January, 20), date(2020, time.February, 11)},
		{"december rolls into next year", date(2020, time.December, 31), date(2021, time.January, 12)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ResolveCycle(tc.today))
		})
	}
}

func TestResolveCycleNeverInThePast(t *testing.T) {
	for day := date(2022, time.January, 1); day.Year() < 2023; day = day.AddDate(0, 0, 1) {
		got := ResolveCycle(day)
		assert.False(t, got.Before(day), "resolved %s for today %s", got, day)
	}
}

func TestRealignWednesdayWindow(t *testing.T) {
	pt := date(2020, time.January, 14)
	win := Realign(pt, WindowSpec{StartDay: time.Wednesday, StartHour: 19, DurationMinutes: 60})
	assert.Equal(t, time.Date(2020, time.January, 15, 19, 0, 0, 0, time.UTC), win.Start)
	assert.Equal(t, time.Date(2020, time.January, 15, 20, 0, 0, 0, time.UTC), win.End)
	assert.Equal(t, 1, win.OffsetDays)
	assert.False(t, win.BeforePatchTuesday)
}

func TestRealignThursdayWindow(t *testing.T) {
	pt := date(2020, time.January, 14)
	win := Realign(pt, WindowSpec{StartDay: time.Thursday, StartHour: 2, DurationMinutes: 120})
	assert.Equal(t, time.Date(2020, time.January, 16, 2, 0, 0, 0, time.UTC), win.Start)
	assert.Equal(t, time.Date(2020, time.January, 16, 4, 0, 0, 0, time.UTC), win.End)
}

func TestRealignTuesdayStaysOnPatchTuesday(t *testing.T) {
	pt := date(2020, time.February, 11)
	win := Realign(pt, WindowSpec{StartDay: time.Tuesday, StartHour: 22, StartMinute: 30, DurationMinutes: 90})
	assert.Equal(t, time.Date(2020, time.February, 11, 22, 30, 0, 0, time.UTC), win.Start)
	assert.Equal(t, 0, win.OffsetDays)
}

func TestRealignFlagsNegativeOffsets(t *testing.T) {
	pt := date(2020, time.January, 14)
	for _, day := range []time.Weekday{time.Sunday, time.Monday} {
		win := Realign(pt, WindowSpec{StartDay: day, StartHour: 1, DurationMinutes: 30})
		assert.True(t, win.BeforePatchTuesday, "%s window should be flagged", day)
		assert.True(t, win.Start.Before(pt), "%s window should land before patch tuesday", day)
	}
}

func TestRealignPreservesWeekdayTimeAndDuration(t *testing.T) {
	pt := PatchTuesday(date(2023, time.August, 1))
	for day := time.Sunday; day <= time.Saturday; day++ {
		for _, mins := range []int{0, 45, 60, 240} {
			spec := WindowSpec{StartDay: day, StartHour: 3, StartMinute: 15, DurationMinutes: mins}
			win := Realign(pt, spec)
			assert.Equal(t, day, win.Start.Weekday())
			assert.Equal(t, 3, win.Start.Hour())
			assert.Equal(t, 15, win.Start.Minute())
			assert.Equal(t, time.Duration(mins)*time.Minute, win.End.Sub(win.Start))
		}
	}
}

func TestRealignIsPure(t *testing.T) {
	pt := date(2020, time.January, 14)
	spec := WindowSpec{StartDay: time.Friday, StartHour: 20, StartMinute: 30, DurationMinutes: 180}
	first := Realign(pt, spec)
	second := Realign(pt, spec)
	assert.Equal(t, first, second)
}

func TestWindowSpecValidate(t *testing.T) {
	valid := WindowSpec{StartDay: time.Wednesday, StartHour: 19, StartMinute: 0, DurationMinutes: 60}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name string
		spec WindowSpec
	}{
		{"negative duration", WindowSpec{StartDay: time.Monday, DurationMinutes: -1}},
		{"hour out of range", WindowSpec{StartDay: time.Monday, StartHour: 24}},
		{"minute out of range", WindowSpec{StartDay: time.Monday, StartMinute: 60}},
		{"weekday out of range", WindowSpec{StartDay: time.Weekday(7)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.spec.Validate())
		})
	}
}
