package bigquery

import (
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/bill-intelligence/internal/domain"
)

func TestBillRowRoundTrip(t *testing.T) {
	bill := &domain.BillRecord{
		ID:              "user-1_enel.pdf_1718445600",
		UserID:          "user-1",
		Filename:        "enel.pdf",
		UploadTimestamp: time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC),
		RawText:         "ENEL ENERGIA totale da pagare 85,40",
		BillType:        domain.BillTypeElectricity,
		Supplier:        domain.Ptr("Enel"),
		Amount:          domain.Ptr(85.40),
		BillDate:        &civil.Date{Year: 2024, Month: 3, Day: 15},
		DueDate:         domain.Ptr("2024-04-10T00:00:00"),
		BillingPeriod:   &domain.BillingPeriod{Start: "01/02/2024", End: "29/02/2024"},
		Consumption:     domain.Consumption{domain.ConsumptionElectricityKWh: 250},
		Confidence:      domain.ConfidenceMedium,
		ExtractedData:   domain.ExtractedData{Date: "2024-03-15", Amount: "85.40", Supplier: "Enel"},
		Checksum:        "00ff00ff00ff00ff",
	}

	row, err := BillToRow(bill)
	require.NoError(t, err)
	assert.True(t, row.Amount.Valid)
	assert.True(t, row.BillDate.Valid)
	assert.False(t, row.AccountNumber.Valid)
	assert.False(t, row.GCSURI.Valid)
	assert.False(t, row.NeedsManualReview)
	assert.JSONEq(t, `{"electricity_kwh":250}`, row.Consumption.JSONVal)

	got, err := RowToBill(row)
	require.NoError(t, err)
	assert.Equal(t, bill, got)
}

func TestBillToRowNullFields(t *testing.T) {
	bill := &domain.BillRecord{
		ID:         "u_f_1",
		UserID:     "u",
		Filename:   "f",
		BillType:   domain.BillTypeUnknown,
		Confidence: domain.ConfidenceLow,
	}

	row, err := BillToRow(bill)
	require.NoError(t, err)
	assert.False(t, row.Supplier.Valid)
	assert.False(t, row.Amount.Valid)
	assert.False(t, row.BillDate.Valid)
	assert.False(t, row.Consumption.Valid)
	assert.True(t, row.NeedsManualReview)

	got, err := RowToBill(row)
	require.NoError(t, err)
	assert.Nil(t, got.BillingPeriod)
	assert.Nil(t, got.Consumption)
	assert.Nil(t, got.Supplier)
}

func TestListBillsQuery(t *testing.T) {
	ds := Dataset{ProjectID: "proj", DatasetID: "bills"}

	all := listBillsQuery(ds, false)
	assert.Contains(t, all, "`proj.bills.bills`")
	assert.Contains(t, all, "WHERE user_id = @user_id\n")
	assert.NotContains(t, all, "@bill_type")
	assert.Contains(t, all, "ORDER BY upload_ts DESC")

	typed := listBillsQuery(ds, true)
	assert.Contains(t, typed, "AND bill_type = @bill_type")
	assert.True(t, strings.Contains(typed, "LIMIT @limit"))

	assert.Contains(t, checksumQuery(ds), "checksum_xxhash = @checksum")
}
