package datetime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hcm = time.FixedZone("ICT", 7*60*60)

func TestOffsetHoursFrom(t *testing.T) {
	t.Parallel()

	clock := Fixed(time.Date(2024, 5, 10, 8, 30, 0, 0, hcm))

	tests := []struct {
		name  string
		value string
		hours int
		want  string
	}{
		{name: "day rollover", value: "2024-01-01 23:00:00", hours: 2, want: "2024-01-02 01:00:00"},
		{name: "year rollover", value: "2024-12-31 23:30:15", hours: 1, want: "2025-01-01 00:30:15"},
		{name: "leap day", value: "2024-02-28 22:00:00", hours: 26, want: "2024-03-01 00:00:00"},
		{name: "negative offset", value: "2024-03-01 00:10:00", hours: -1, want: "2024-02-29 23:10:00"},
		{name: "T separator", value: "2024-06-01T19:00:00", hours: 2, want: "2024-06-01 21:00:00"},
		{name: "no seconds", value: "2024-06-01 19:00", hours: 2, want: "2024-06-01 21:00:00"},
		{name: "garbage falls back to now plus three", value: "tomorrow evening", hours: 2, want: "2024-05-10 11:30:00"},
		{name: "date only falls back", value: "2024-06-01", hours: 2, want: "2024-05-10 11:30:00"},
		{name: "empty falls back", value: "", hours: 2, want: "2024-05-10 11:30:00"},
		{name: "signed component falls back", value: "2024-06-01 10:-5:00", hours: 2, want: "2024-05-10 11:30:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, clock.OffsetHoursFrom(tt.value, tt.hours))
		})
	}
}

func TestOffsetHoursFromIsPure(t *testing.T) {
	t.Parallel()

	clock := NewClock(hcm)
	first := clock.OffsetHoursFrom("2024-07-04 12:00:00", 5)
	second := clock.OffsetHoursFrom("2024-07-04 12:00:00", 5)
	assert.Equal(t, first, second)
	assert.Equal(t, "2024-07-04 17:00:00", first)
}

func TestFormat(t *testing.T) {
	t.Parallel()

	clock := NewClock(hcm)
	instant := time.Date(2024, 1, 2, 3, 4, 5, 999, time.UTC)

	got := clock.Format(instant)
	assert.Equal(t, "2024-01-02 10:04:05", got)
	assert.Equal(t, got, clock.Format(instant))
}

func TestOffsetHours(t *testing.T) {
	t.Parallel()

	clock := Fixed(time.Date(2024, 1, 1, 23, 15, 0, 0, hcm))
	assert.Equal(t, "2024-01-02 00:15:00", clock.OffsetHours(1))
	assert.Equal(t, "2024-01-01 23:15:00", clock.OffsetHours(0))
}

func TestParse(t *testing.T) {
	t.Parallel()

	clock := NewClock(hcm)
	got, ok := clock.Parse("2024-09-02 07:45:00")
	require.True(t, ok)
	assert.True(t, got.Equal(time.Date(2024, 9, 2, 0, 45, 0, 0, time.UTC)))

	_, ok = clock.Parse("02/09/2024 07:45")
	assert.False(t, ok)
}

func TestWeekdayVi(t *testing.T) {
	t.Parallel()

	tests := []struct {
		day  int
		want string
	}{
		{day: 7, want: "Chủ Nhật"},
		{day: 8, want: "Thứ Hai"},
		{day: 9, want: "Thứ Ba"},
		{day: 10, want: "Thứ Tư"},
		{day: 11, want: "Thứ Năm"},
		{day: 12, want: "Thứ Sáu"},
		{day: 13, want: "Thứ Bảy"},
	}

	for _, tt := range tests {
		// January 2024: the 7th is a Sunday.
		assert.Equal(t, tt.want, WeekdayVi(time.Date(2024, 1, tt.day, 12, 0, 0, 0, hcm)))
	}
}
