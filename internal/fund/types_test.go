package fund

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCNPJ(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    CNPJ
		wantErr bool
	}{
		{"formatted", "12.345.678/0001-90", CNPJ(12345678000190), false},
		{"bare digits", "12345678000190", CNPJ(12345678000190), false},
		{"leading zeros", "00.123.456/0001-00", CNPJ(123456000100), false},
		{"empty", "", 0, true},
		{"no digits", "n/a", 0, true},
		{"too long", "123456789012345", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCNPJ(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCNPJString(t *testing.T) {
	assert.Equal(t, "12.345.678/0001-90", CNPJ(12345678000190).String())
	// Short identifiers are zero-padded to 14 digits.
	assert.Equal(t, "00.123.456/0001-00", CNPJ(123456000100).String())
}

func TestPeriodPrev(t *testing.T) {
	assert.Equal(t, Period(202312), Period(202401).Prev())
	assert.Equal(t, Period(202402), Period(202403).Prev())
}

func TestPeriodLastDay(t *testing.T) {
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), Period(202402).LastDay())
	assert.Equal(t, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), Period(202312).LastDay())
}

func TestPeriodIsValid(t *testing.T) {
	assert.True(t, Period(202401).IsValid())
	assert.False(t, Period(202400).IsValid())
	assert.False(t, Period(202413).IsValid())
	assert.False(t, Period(13).IsValid())
}

func TestValue(t *testing.T) {
	t.Run("some", func(t *testing.T) {
		v := Some(1.5)
		require.True(t, v.Valid)
		assert.Equal(t, 1.5, v.Float64)
		require.NotNil(t, v.Ptr())
		assert.Equal(t, 1.5, *v.Ptr())
	})

	t.Run("null", func(t *testing.T) {
		v := Null()
		assert.False(t, v.Valid)
		assert.Nil(t, v.Ptr())
	})

	t.Run("non-finite collapses to null", func(t *testing.T) {
		assert.False(t, Some(math.NaN()).Valid)
		assert.False(t, Some(math.Inf(1)).Valid)
		assert.False(t, Some(math.Inf(-1)).Valid)
	})
}

func TestSeriesIsOrdered(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

	ordered := Series{
		FundID:  1,
		Daily:   []DailyObservation{{Date: day(1)}, {Date: day(2)}, {Date: day(5)}},
		Monthly: []MonthlyObservation{{Period: 202311}, {Period: 202312}, {Period: 202401}},
	}
	assert.True(t, ordered.IsOrdered())

	duplicate := Series{
		Daily: []DailyObservation{{Date: day(1)}, {Date: day(1)}},
	}
	assert.False(t, duplicate.IsOrdered())

	backwards := Series{
		Monthly: []MonthlyObservation{{Period: 202401}, {Period: 202312}},
	}
	assert.False(t, backwards.IsOrdered())
}

func TestAssetCategoryIsKnown(t *testing.T) {
	for _, c := range AssetCategories {
		assert.True(t, c.IsKnown(), string(c))
	}
	assert.False(t, AssetCategory("Equity").IsKnown())
}
