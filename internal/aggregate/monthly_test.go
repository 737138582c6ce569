package aggregate

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/bill-intelligence/internal/domain"
	"github.com/dvloznov/bill-intelligence/internal/logger"
)

func testContext(buf *bytes.Buffer) context.Context {
	return logger.WithContext(context.Background(), logger.NewWithWriter(buf))
}

func uploadedAt(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
}

func TestRepresentativeDate_Priority(t *testing.T) {
	upload := uploadedAt(2024, time.May, 20)

	tests := []struct {
		name       string
		bill       *domain.BillRecord
		wantMonth  string
		wantSource DateSource
	}{
		{
			name: "due date first",
			bill: &domain.BillRecord{
				DueDate:         domain.Ptr("2024-03-15T00:00:00"),
				ExtractedData:   domain.ExtractedData{Date: "2024-02-01"},
				UploadTimestamp: upload,
			},
			wantMonth:  "2024-03",
			wantSource: SourceDueDate,
		},
		{
			name: "unparseable due date falls through to extracted date",
			bill: &domain.BillRecord{
				DueDate:         domain.Ptr("prossimo mese"),
				ExtractedData:   domain.ExtractedData{Date: "01/02/2024"},
				UploadTimestamp: upload,
			},
			wantMonth:  "2024-02",
			wantSource: SourceExtractedDate,
		},
		{
			name: "extracted date with time",
			bill: &domain.BillRecord{
				ExtractedData:   domain.ExtractedData{Date: "2024-01-09 08:30:00"},
				UploadTimestamp: upload,
			},
			wantMonth:  "2024-01",
			wantSource: SourceExtractedDate,
		},
		{
			name:       "upload date last",
			bill:       &domain.BillRecord{UploadTimestamp: upload},
			wantMonth:  "2024-05",
			wantSource: SourceUploadDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, source, ok := RepresentativeDate(tt.bill)
			require.True(t, ok)
			assert.Equal(t, tt.wantMonth, got.Format(MonthLayout))
			assert.Equal(t, tt.wantSource, source)
		})
	}
}

func TestRepresentativeDate_NoUsableDate(t *testing.T) {
	_, _, ok := RepresentativeDate(&domain.BillRecord{ExtractedData: domain.ExtractedData{Date: "ieri"}})
	assert.False(t, ok)
}

func TestSeries_ExcludesZeroMonths(t *testing.T) {
	bills := []*domain.BillRecord{
		{ID: "a", Amount: domain.Ptr(0.0), UploadTimestamp: uploadedAt(2024, time.January, 5)},
		{ID: "b", UploadTimestamp: uploadedAt(2024, time.February, 5)},
		{ID: "c", Amount: domain.Ptr(50.0), UploadTimestamp: uploadedAt(2024, time.March, 5)},
	}

	series := Series(testContext(&bytes.Buffer{}), bills)

	require.Len(t, series, 1)
	assert.Equal(t, MonthlyPoint{Month: "2024-03", Amount: 50}, series[0])
}

func TestBuckets_SumsAndOrders(t *testing.T) {
	var buf bytes.Buffer
	bills := []*domain.BillRecord{
		{ID: "late", Amount: domain.Ptr(30.0), UploadTimestamp: uploadedAt(2024, time.April, 25)},
		{ID: "text-amount", ExtractedData: domain.ExtractedData{Amount: "€ 20,50"}, UploadTimestamp: uploadedAt(2024, time.April, 3)},
		{ID: "garbled", ExtractedData: domain.ExtractedData{Amount: "n.d."}, UploadTimestamp: uploadedAt(2024, time.April, 10)},
		{ID: "early", Amount: domain.Ptr(10.0), UploadTimestamp: uploadedAt(2024, time.February, 1)},
		{ID: "undated"},
	}

	buckets := Buckets(testContext(&buf), bills)

	require.Len(t, buckets, 2)
	assert.Equal(t, "2024-02", buckets[0].Month)
	assert.Equal(t, 1, buckets[0].BillCount)

	april := buckets[1]
	assert.Equal(t, "2024-04", april.Month)
	assert.Equal(t, 3, april.BillCount, "unparseable amounts still count")
	assert.InDelta(t, 50.5, april.TotalAmount, 1e-9)
	assert.Equal(t, uploadedAt(2024, time.April, 3), april.RepresentativeDate)

	assert.Contains(t, buf.String(), `"bill_id":"undated"`)
	assert.Contains(t, buf.String(), `"bill_id":"garbled"`)
}

func TestSummarize(t *testing.T) {
	bills := []*domain.BillRecord{
		{ID: "1", BillType: domain.BillTypeGas, Supplier: domain.Ptr("ENI"), Amount: domain.Ptr(80.25), DueDate: domain.Ptr("2024-01-20T00:00:00")},
		{ID: "2", BillType: domain.BillTypeGas, Amount: domain.Ptr(0.0), DueDate: domain.Ptr("2024-02-20T00:00:00")},
		{ID: "3", BillType: domain.BillTypeElectricity, Supplier: domain.Ptr("ENEL"), Amount: domain.Ptr(40.0), DueDate: domain.Ptr("2024-02-10T00:00:00")},
		{ID: "4", UploadTimestamp: uploadedAt(2024, time.March, 1)},
	}

	s := Summarize(testContext(&bytes.Buffer{}), bills)

	assert.Equal(t, 4, s.TotalBills)
	assert.Equal(t, 1, s.BillsNeedingReview)
	assert.Equal(t, map[string]Stat{
		"2024-01": {Count: 1, TotalAmount: 80.25},
		"2024-02": {Count: 2, TotalAmount: 40},
		"2024-03": {Count: 1, TotalAmount: 0},
	}, s.MonthlyStats)
	assert.Equal(t, Stat{Count: 2, TotalAmount: 80.25}, s.TypeStats[domain.BillTypeGas])
	assert.Equal(t, Stat{Count: 1, TotalAmount: 40}, s.TypeStats[domain.BillTypeElectricity])
	assert.Equal(t, Stat{Count: 1}, s.TypeStats[domain.BillTypeUnknown])
}
