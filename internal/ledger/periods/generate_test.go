package periods

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/ledger/company"
)

func TestFiscalYearRangeForCalendarYear(t *testing.T) {
	start, end := FiscalYearRangeFor(time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), time.January)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), end)
}

func TestFiscalYearRangeForAprilStart(t *testing.T) {
	// A February date belongs to the fiscal year that started the previous
	// April.
	start, end := FiscalYearRangeFor(time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC), time.April)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), end)

	start, end = FiscalYearRangeFor(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), time.April)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), end)
}

func TestGenerateSpansMonthly(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)

	spans := GenerateSpans(start, end, company.FrequencyMonthly)
	require.Len(t, spans, 12)

	assert.Equal(t, start, spans[0].StartDate)
	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), spans[0].EndDate)
	assert.Equal(t, end, spans[11].EndDate)
	assert.Equal(t, 12, spans[11].PeriodNumber)

	// Contiguous and non-overlapping.
	for i := 1; i < len(spans); i++ {
		assert.Equal(t, spans[i-1].EndDate.AddDate(0, 0, 1), spans[i].StartDate)
	}
}

func TestGenerateSpansQuarterly(t *testing.T) {
	start := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)

	spans := GenerateSpans(start, end, company.FrequencyQuarterly)
	require.Len(t, spans, 4)
	assert.Equal(t, "QUARTERLY", spans[0].PeriodType)
	assert.Equal(t, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), spans[0].EndDate)
	assert.Equal(t, end, spans[3].EndDate)
}

func TestGenerateSpansYearly(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)

	spans := GenerateSpans(start, end, company.FrequencyYearly)
	require.Len(t, spans, 1)
	assert.Equal(t, start, spans[0].StartDate)
	assert.Equal(t, end, spans[0].EndDate)
}
