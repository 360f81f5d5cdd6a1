package periods

import (
	"time"

	"github.com/ledgerline/ledgerline/internal/ledger/company"
)

// Span is a generated period range before persistence.
type Span struct {
	StartDate    time.Time
	EndDate      time.Time
	PeriodNumber int
	PeriodType   string
}

// FiscalYearRangeFor computes the fiscal year [start, end] containing date
// for a company whose fiscal year begins on the given month.
func FiscalYearRangeFor(date time.Time, startMonth time.Month) (time.Time, time.Time) {
	year := date.Year()
	start := time.Date(year, startMonth, 1, 0, 0, 0, 0, time.UTC)
	if date.Before(start) {
		start = time.Date(year-1, startMonth, 1, 0, 0, 0, 0, time.UTC)
	}
	end := start.AddDate(1, 0, -1)
	return start, end
}

// GenerateSpans cuts a fiscal year into contiguous, non-overlapping periods
// according to the configured frequency.
func GenerateSpans(fyStart, fyEnd time.Time, freq company.PeriodFrequency) []Span {
	months := 1
	periodType := "MONTHLY"
	switch freq {
	case company.FrequencyQuarterly:
		months = 3
		periodType = "QUARTERLY"
	case company.FrequencyYearly:
		months = 12
		periodType = "YEARLY"
	}

	var spans []Span
	number := 1
	for cursor := fyStart; cursor.Before(fyEnd); cursor = cursor.AddDate(0, months, 0) {
		end := cursor.AddDate(0, months, -1)
		if end.After(fyEnd) {
			end = fyEnd
		}
		spans = append(spans, Span{
			StartDate:    cursor,
			EndDate:      end,
			PeriodNumber: number,
			PeriodType:   periodType,
		})
		number++
	}
	return spans
}
