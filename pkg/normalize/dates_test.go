package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Time
	}{
		{"iso date", "2022-03-15", time.Date(2022, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"iso datetime", "2022-03-15T10:30:00", time.Date(2022, 3, 15, 10, 30, 0, 0, time.UTC)},
		{"iso datetime with zone", "2022-03-15T10:30:00Z", time.Date(2022, 3, 15, 10, 30, 0, 0, time.UTC)},
		{"abbreviated month", "15-Mar-22", time.Date(2022, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"us slash date", "03/15/2022", time.Date(2022, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"us slash datetime", "03/15/2022 10:30:00 AM", time.Date(2022, 3, 15, 10, 30, 0, 0, time.UTC)},
		{"us slash two digit year", "03/15/22", time.Date(2022, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"compact", "20220315", time.Date(2022, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"surrounding whitespace", "  2022-03-15  ", time.Date(2022, 3, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(got), "expected %v, got %v", tt.expected, got)
		})
	}
}

func TestParseDate_Unparseable(t *testing.T) {
	for _, input := range []string{"", "   ", "not a date", "13/45/2022", "2022-99-99"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseDate(input)
			require.Error(t, err)
			var dateErr *UnparseableDateError
			assert.ErrorAs(t, err, &dateErr)
		})
	}
}

func TestDaysBetween(t *testing.T) {
	t.Run("multi day range is inclusive", func(t *testing.T) {
		start := time.Date(2022, 3, 30, 0, 0, 0, 0, time.UTC)
		end := time.Date(2022, 4, 2, 0, 0, 0, 0, time.UTC)

		days := DaysBetween(start, end)
		require.Len(t, days, 4)
		assert.Equal(t, start, days[0])
		assert.Equal(t, end, days[3])
	})

	t.Run("same day yields one entry", func(t *testing.T) {
		day := time.Date(2022, 3, 30, 0, 0, 0, 0, time.UTC)
		days := DaysBetween(day, day)
		assert.Len(t, days, 1)
	})

	t.Run("reversed range yields start day only", func(t *testing.T) {
		start := time.Date(2022, 4, 2, 0, 0, 0, 0, time.UTC)
		end := time.Date(2022, 3, 30, 0, 0, 0, 0, time.UTC)
		days := DaysBetween(start, end)
		require.Len(t, days, 1)
		assert.Equal(t, start, days[0])
	})
}
