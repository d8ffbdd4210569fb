package capacity

import (
	"testing"

	"coworking/internal/calendar"
	"coworking/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	today = calendar.MustParseDate("2025-06-01")
	june  = calendar.MonthKey{Year: 2025, Month: 6}
)

func record(start, end string, qty int) model.OccupancyRecord {
	return model.OccupancyRecord{
		Start:    calendar.MustParseDate(start),
		End:      calendar.MustParseDate(end),
		Quantity: qty,
	}
}

func TestComputeDay_NoRecordsIsAvailable(t *testing.T) {
	day := ComputeDay(calendar.MustParseDate("2025-06-15"), today, 7, nil, nil, DefaultPolicy())

	assert.Equal(t, model.StatusAvailable, day.Status)
	assert.Equal(t, 7, day.Slots)
	assert.Equal(t, 7, day.Capacity)
	assert.False(t, day.IsPast)
}

func TestComputeDay_ConfirmedReservationLeavesLow(t *testing.T) {
	records := []model.OccupancyRecord{record("2025-06-10", "2025-06-16", 5)}

	day := ComputeDay(calendar.MustParseDate("2025-06-15"), today, 7, records, nil, DefaultPolicy())

	assert.Equal(t, model.StatusLow, day.Status)
	assert.Equal(t, 2, day.Slots)
}

func TestComputeDay_LockOnTopMakesFull(t *testing.T) {
	records := []model.OccupancyRecord{
		record("2025-06-10", "2025-06-16", 5),
		record("2025-06-15", "2025-06-15", 2),
	}

	day := ComputeDay(calendar.MustParseDate("2025-06-15"), today, 7, records, nil, DefaultPolicy())

	assert.Equal(t, model.StatusFull, day.Status)
	assert.Equal(t, 0, day.Slots)
}

func TestComputeDay_OverbookedClampsToZero(t *testing.T) {
	records := []model.OccupancyRecord{record("2025-06-15", "2025-06-15", 9)}

	day := ComputeDay(calendar.MustParseDate("2025-06-15"), today, 7, records, nil, DefaultPolicy())

	assert.Equal(t, 0, day.Slots)
	assert.Equal(t, model.StatusFull, day.Status)
}

func TestComputeDay_TieBreak(t *testing.T) {
	past := calendar.MustParseDate("2025-05-20")
	blocks := ParseBlocks([]string{"2025-05-20"})
	records := []model.OccupancyRecord{record("2025-05-20", "2025-05-20", 7)}

	day := ComputeDay(past, today, 7, records, blocks, DefaultPolicy())

	assert.Equal(t, model.StatusUnavailable, day.Status)
	assert.Equal(t, 0, day.Slots)
	assert.True(t, day.IsPast)
}

func TestComputeDay_TodayIsPast(t *testing.T) {
	day := ComputeDay(today, today, 7, nil, nil, DefaultPolicy())

	assert.True(t, day.IsPast)
	assert.Equal(t, model.StatusUnavailable, day.Status)
	assert.Equal(t, 7, day.Slots)
}

func TestComputeDay_ManualBlockOverridesCapacity(t *testing.T) {
	blocks := ParseBlocks([]string{"2025-06-20"})

	day := ComputeDay(calendar.MustParseDate("2025-06-20"), today, 7, nil, blocks, DefaultPolicy())

	assert.Equal(t, model.StatusUnavailable, day.Status)
	assert.False(t, day.IsPast)
}

func TestComputeDay_ConfigurableLowThreshold(t *testing.T) {
	records := []model.OccupancyRecord{record("2025-06-15", "2025-06-15", 3)}
	d := calendar.MustParseDate("2025-06-15")

	assert.Equal(t, model.StatusAvailable, ComputeDay(d, today, 7, records, nil, DefaultPolicy()).Status)
	assert.Equal(t, model.StatusLow, ComputeDay(d, today, 7, records, nil, Policy{LowThreshold: 4}).Status)
	assert.Equal(t, model.StatusAvailable, ComputeDay(d, today, 7, records, nil, Policy{LowThreshold: 0}).Status)
}

func TestComputeDay_QuantityDefaultsToOne(t *testing.T) {
	records := []model.OccupancyRecord{record("2025-06-15", "2025-06-15", 0)}

	day := ComputeDay(calendar.MustParseDate("2025-06-15"), today, 1, records, nil, DefaultPolicy())

	assert.Equal(t, model.StatusFull, day.Status)
}

func TestComputeMonth(t *testing.T) {
	records := []model.OccupancyRecord{record("2025-05-30", "2025-06-02", 7)}

	days := ComputeMonth(june, today, 7, records, nil, DefaultPolicy())

	require.Len(t, days, 30)
	assert.Equal(t, model.StatusUnavailable, days[calendar.MustParseDate("2025-06-01")].Status)
	assert.Equal(t, model.StatusFull, days[calendar.MustParseDate("2025-06-02")].Status)
	assert.Equal(t, model.StatusAvailable, days[calendar.MustParseDate("2025-06-03")].Status)
	assert.Equal(t, 7, days[calendar.MustParseDate("2025-06-30")].Slots)
}

func TestParseBlocks(t *testing.T) {
	blocks := ParseBlocks([]string{
		" 2025-06-20 ",
		"2025-06-21\n2025-06-22\n\n",
		"not a date",
		"",
		"2025-6-23",
	})

	assert.Len(t, blocks, 3)
	assert.True(t, blocks.Contains(calendar.MustParseDate("2025-06-20")))
	assert.True(t, blocks.Contains(calendar.MustParseDate("2025-06-22")))
	assert.False(t, blocks.Contains(calendar.MustParseDate("2025-06-23")))
}

func TestReserved(t *testing.T) {
	records := []model.OccupancyRecord{
		record("2025-06-10", "2025-06-12", 2),
		record("2025-06-12", "2025-06-14", 1),
	}

	assert.Equal(t, 0, Reserved(calendar.MustParseDate("2025-06-09"), records))
	assert.Equal(t, 2, Reserved(calendar.MustParseDate("2025-06-10"), records))
	assert.Equal(t, 3, Reserved(calendar.MustParseDate("2025-06-12"), records))
	assert.Equal(t, 1, Reserved(calendar.MustParseDate("2025-06-14"), records))
}
