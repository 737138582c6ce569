package trends

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/bill-intelligence/internal/domain"
)

func kwhBill(year int, month time.Month, kwh float64) *domain.BillRecord {
	return &domain.BillRecord{
		BillType:        domain.BillTypeElectricity,
		UploadTimestamp: time.Date(year, month, 10, 0, 0, 0, 0, time.UTC),
		Consumption:     domain.Consumption{domain.ConsumptionElectricityKWh: kwh},
	}
}

func TestAnalyze_Increasing(t *testing.T) {
	bills := []*domain.BillRecord{
		kwhBill(2024, time.March, 300),
		kwhBill(2024, time.February, 250),
		kwhBill(2024, time.January, 200),
	}

	res, err := Analyze(bills)
	require.NoError(t, err)

	assert.Equal(t, Increasing, res.Trend)
	assert.InDelta(t, 250, res.AverageConsumption, 1e-9)
	require.NotNil(t, res.ChangePercentage)
	assert.InDelta(t, 50.0, *res.ChangePercentage, 1e-9)
	assert.False(t, res.ChangeUndefined)
	assert.Equal(t, []MonthlyValue{
		{Month: "2024-01", Value: 200},
		{Month: "2024-02", Value: 250},
		{Month: "2024-03", Value: 300},
	}, res.MonthlyData)
}

func TestAnalyze_WindowKeepsSixMostRecentMonths(t *testing.T) {
	var bills []*domain.BillRecord
	for m := time.January; m <= time.August; m++ {
		bills = append(bills, kwhBill(2024, m, float64(100*int(m))))
	}
	// Lower than April, where the window starts.
	bills = append(bills, kwhBill(2024, time.September, 250))

	res, err := Analyze(bills)
	require.NoError(t, err)

	require.Len(t, res.MonthlyData, Window)
	assert.Equal(t, "2024-04", res.MonthlyData[0].Month)
	assert.Equal(t, "2024-09", res.MonthlyData[Window-1].Month)
	assert.Equal(t, Decreasing, res.Trend)
	assert.InDelta(t, -37.5, *res.ChangePercentage, 1e-9)
}

func TestAnalyze_SameMonthLastVisitedWins(t *testing.T) {
	bills := []*domain.BillRecord{
		kwhBill(2024, time.February, 999),
		kwhBill(2024, time.February, 180),
		kwhBill(2024, time.January, 120),
	}

	res, err := Analyze(bills)
	require.NoError(t, err)
	assert.Equal(t, 180.0, res.MonthlyData[1].Value)
}

func TestAnalyze_ZeroStartIsUndefined(t *testing.T) {
	bills := []*domain.BillRecord{
		kwhBill(2024, time.January, 0),
		kwhBill(2024, time.February, 40),
	}

	res, err := Analyze(bills)
	require.NoError(t, err)

	assert.True(t, res.ChangeUndefined)
	assert.Nil(t, res.ChangePercentage)
	assert.Equal(t, Increasing, res.Trend)
}

func TestAnalyze_InsufficientData(t *testing.T) {
	tests := []struct {
		name  string
		bills []*domain.BillRecord
	}{
		{"no bills", nil},
		{"one bill", []*domain.BillRecord{kwhBill(2024, time.January, 100)}},
		{"one month", []*domain.BillRecord{kwhBill(2024, time.January, 100), kwhBill(2024, time.January, 120)}},
		{"no readings", []*domain.BillRecord{
			{UploadTimestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
			{UploadTimestamp: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Analyze(tt.bills)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, ErrInsufficientData))
		})
	}
}

func TestConsumptionValue(t *testing.T) {
	v, ok := ConsumptionValue(domain.Consumption{
		domain.ConsumptionWaterMc: 7,
		domain.ConsumptionGasSmc:  95.5,
	})
	assert.True(t, ok)
	assert.Equal(t, 95.5, v)

	_, ok = ConsumptionValue(nil)
	assert.False(t, ok)
}
