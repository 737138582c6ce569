package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeedsManualReview(t *testing.T) {
	supplier := Ptr("ENEL")
	amount := Ptr(45.30)
	due := Ptr("2024-03-15T00:00:00")

	tests := []struct {
		name string
		bill BillRecord
		want bool
	}{
		{"all present", BillRecord{Supplier: supplier, Amount: amount, DueDate: due}, false},
		{"supplier missing", BillRecord{Amount: amount, DueDate: due}, false},
		{"amount missing", BillRecord{Supplier: supplier, DueDate: due}, false},
		{"due date missing", BillRecord{Supplier: supplier, Amount: amount}, false},
		{"supplier and amount missing", BillRecord{DueDate: due}, true},
		{"supplier and due date missing", BillRecord{Amount: amount}, true},
		{"amount and due date missing", BillRecord{Supplier: supplier}, true},
		{"all missing", BillRecord{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.bill.NeedsManualReview())
		})
	}
}

func TestBillRecord_MarshalJSONIncludesReviewFlag(t *testing.T) {
	bill := BillRecord{ID: "u1_bill.pdf_1700000000", BillType: BillTypeGas, Amount: Ptr(80.0)}

	data, err := json.Marshal(bill)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, true, decoded["needs_manual_review"])
	assert.Equal(t, "gas", decoded["bill_type"])
	assert.Equal(t, "u1_bill.pdf_1700000000", decoded["id"])
}

func TestConsumption_String(t *testing.T) {
	c := Consumption{
		"zeta":                    1,
		ConsumptionWaterMc:        12,
		ConsumptionElectricityKWh: 350.5,
	}
	assert.Equal(t, "electricity_kwh: 350.5, water_mc: 12, zeta: 1", c.String())
	assert.Equal(t, "", Consumption(nil).String())
}

func TestParseBillType(t *testing.T) {
	bt, ok := ParseBillType(" Electricity ")
	assert.True(t, ok)
	assert.Equal(t, BillTypeElectricity, bt)

	_, ok = ParseBillType("heating")
	assert.False(t, ok)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"45,30", 45.30, false},
		{"€ 45.30", 45.30, false},
		{"120,00€", 120.0, false},
		{"  7 ", 7, false},
		{"", 0, true},
		{"n/a", 0, true},
		{"1.234,56", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "45.30", FormatAmount(45.3))
	assert.Equal(t, "0.00", FormatAmount(0))
}
