package calendar

import (
	"encoding/json"
	"slices"
	"testing"
	"time"
	_ "time/tzdata"

	"coworking/pkg/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaysInMonth(t *testing.T) {
	tests := []struct {
		name  string
		year  int
		month int
		want  int
	}{
		{"january", 2025, 1, 31},
		{"february common year", 2025, 2, 28},
		{"february leap year", 2024, 2, 29},
		{"february century non leap", 1900, 2, 28},
		{"february 400 leap", 2000, 2, 29},
		{"april", 2025, 4, 30},
		{"december", 2025, 12, 31},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DaysInMonth(tt.year, tt.month)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDaysInMonth_InvalidMonth(t *testing.T) {
	for _, month := range []int{0, 13, -1} {
		_, err := DaysInMonth(2025, month)
		assert.ErrorIs(t, err, ErrInvalidMonth, "month %d", month)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-06-15")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2025, time.June, 15), d)
	assert.Equal(t, "2025-06-15", d.String())

	for _, bad := range []string{"", "2025-6-15", "2025-06-31", "15/06/2025", "2025-06-15T00:00:00Z", " 2025-06-15"} {
		_, err := ParseDate(bad)
		assert.ErrorIs(t, err, ErrInvalidDate, "input %q", bad)
	}
}

func TestParseMonthKey(t *testing.T) {
	m, err := ParseMonthKey("2025-06")
	require.NoError(t, err)
	assert.Equal(t, MonthKey{Year: 2025, Month: time.June}, m)
	assert.Equal(t, 30, m.Days())
	assert.Equal(t, "2025-06-30", m.Last().String())

	for _, bad := range []string{"", "2025-13", "2025-00", "2025-6", "06-2025", "2025-06-01"} {
		_, err := ParseMonthKey(bad)
		assert.ErrorIs(t, err, ErrInvalidMonth, "input %q", bad)
	}
}

func TestMonthKey_NextWrapsYear(t *testing.T) {
	m := MonthKey{Year: 2025, Month: time.December}
	assert.Equal(t, MonthKey{Year: 2026, Month: time.January}, m.Next())
}

func TestEnumerateDates(t *testing.T) {
	start := MustParseDate("2025-06-29")
	end := MustParseDate("2025-07-02")

	seq, err := EnumerateDates(start, end)
	require.NoError(t, err)

	first := slices.Collect(seq)
	assert.Equal(t, []Date{
		MustParseDate("2025-06-29"),
		MustParseDate("2025-06-30"),
		MustParseDate("2025-07-01"),
		MustParseDate("2025-07-02"),
	}, first)

	// restartable
	assert.Equal(t, first, slices.Collect(seq))
}

func TestEnumerateDates_SingleDay(t *testing.T) {
	d := MustParseDate("2025-06-15")
	seq, err := EnumerateDates(d, d)
	require.NoError(t, err)
	assert.Equal(t, []Date{d}, slices.Collect(seq))
}

func TestEnumerateDates_EarlyStop(t *testing.T) {
	seq, err := EnumerateDates(MustParseDate("2025-01-01"), MustParseDate("2025-12-31"))
	require.NoError(t, err)

	count := 0
	for range seq {
		count++
		if count == 3 {
			break
		}
	}
	assert.Equal(t, 3, count)
}

func TestEnumerateDates_InvalidRange(t *testing.T) {
	_, err := EnumerateDates(MustParseDate("2025-06-02"), MustParseDate("2025-06-01"))
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestMonthsSpanned(t *testing.T) {
	months, err := MonthsSpanned(MustParseDate("2025-11-20"), MustParseDate("2026-02-03"))
	require.NoError(t, err)
	assert.Equal(t, []MonthKey{
		{Year: 2025, Month: time.November},
		{Year: 2025, Month: time.December},
		{Year: 2026, Month: time.January},
		{Year: 2026, Month: time.February},
	}, months)

	single, err := MonthsSpanned(MustParseDate("2025-06-01"), MustParseDate("2025-06-30"))
	require.NoError(t, err)
	assert.Len(t, single, 1)

	_, err = MonthsSpanned(MustParseDate("2025-06-02"), MustParseDate("2025-06-01"))
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestParseRange_DefaultsEndToStart(t *testing.T) {
	r, err := ParseRange("2025-06-15", "")
	require.NoError(t, err)
	assert.Equal(t, r.Start, r.End)

	_, err = ParseRange("2025-06-15", "2025-06-14")
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestRange_ContainsAndOverlaps(t *testing.T) {
	r := Range{Start: MustParseDate("2025-06-10"), End: MustParseDate("2025-06-16")}

	assert.True(t, r.Contains(MustParseDate("2025-06-10")))
	assert.True(t, r.Contains(MustParseDate("2025-06-16")))
	assert.False(t, r.Contains(MustParseDate("2025-06-17")))

	assert.True(t, r.Overlaps(Range{Start: MustParseDate("2025-06-16"), End: MustParseDate("2025-06-20")}))
	assert.False(t, r.Overlaps(Range{Start: MustParseDate("2025-06-17"), End: MustParseDate("2025-06-20")}))
}

func TestCalendar_TodayUsesLocation(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	// 23:30 UTC on June 14 is already June 15 in Paris.
	c := New(clock.NewManual(time.Date(2025, time.June, 14, 23, 30, 0, 0, time.UTC)), paris)
	assert.Equal(t, MustParseDate("2025-06-15"), c.Today())

	utc := New(clock.NewManual(time.Date(2025, time.June, 14, 23, 30, 0, 0, time.UTC)), time.UTC)
	assert.Equal(t, MustParseDate("2025-06-14"), utc.Today())
}

func TestDate_JSONAsMapKey(t *testing.T) {
	data, err := json.Marshal(map[Date]int{MustParseDate("2025-06-15"): 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"2025-06-15":3}`, string(data))

	var decoded map[Date]int
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 3, decoded[MustParseDate("2025-06-15")])
}
