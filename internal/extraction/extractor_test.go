package extraction

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/bill-intelligence/internal/domain"
)

const enelBill = `ENEL Energia - Bolletta luce
Numero utenza: IT001E12345678
Data emissione: 05/03/2024
Periodo: 01/01/2024 - 29/02/2024
Lettura precedente 120 kWh
Consumo totale 350 kWh
Totale: €45,30
Quota fissa €12,00
Scadenza: 25/03/2024`

func fixedClock() time.Time {
	return time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC)
}

func TestExtract_FullBill(t *testing.T) {
	e := New(fixedClock)

	bill := e.Extract(enelBill, "enel-marzo.pdf", "user-1")

	assert.Equal(t, "user-1_enel-marzo.pdf_1718445600", bill.ID)
	assert.Equal(t, "user-1", bill.UserID)
	assert.Equal(t, domain.BillTypeElectricity, bill.BillType)
	require.NotNil(t, bill.Supplier)
	assert.Equal(t, "ENEL", *bill.Supplier)
	require.NotNil(t, bill.Amount)
	assert.InDelta(t, 45.30, *bill.Amount, 1e-9)
	require.NotNil(t, bill.BillDate)
	assert.Equal(t, civil.Date{Year: 2024, Month: 3, Day: 5}, *bill.BillDate)
	require.NotNil(t, bill.DueDate)
	assert.Equal(t, "2024-03-25T00:00:00", *bill.DueDate)
	assert.Equal(t, &domain.BillingPeriod{Start: "01/01/2024", End: "29/02/2024"}, bill.BillingPeriod)
	assert.Equal(t, domain.Consumption{domain.ConsumptionElectricityKWh: 350}, bill.Consumption)
	require.NotNil(t, bill.AccountNumber)
	assert.Equal(t, "IT001E12345678", *bill.AccountNumber)
	assert.Equal(t, domain.ConfidenceMedium, bill.Confidence)
	assert.False(t, bill.NeedsManualReview())
	assert.Equal(t, domain.ExtractedData{Date: "2024-03-05", Amount: "45.30", Supplier: "ENEL"}, bill.ExtractedData)
}

func TestExtract_SparseBillNeedsReview(t *testing.T) {
	e := New(fixedClock)

	bill := e.Extract("documento illeggibile", "scan.pdf", "user-1")

	assert.Equal(t, domain.BillTypeOther, bill.BillType)
	assert.Nil(t, bill.Supplier)
	assert.Nil(t, bill.Amount)
	assert.Nil(t, bill.DueDate)
	assert.True(t, bill.NeedsManualReview())
	require.NotNil(t, bill.BillDate, "issue date always falls back")
	assert.Equal(t, e.ExtractBillDate("documento illeggibile"), *bill.BillDate)
}

func TestDegraded(t *testing.T) {
	e := New(fixedClock)

	bill := e.Degraded("scan.pdf", "user-2")

	assert.Equal(t, DegradedText, bill.RawText)
	assert.Equal(t, domain.BillTypeUnknown, bill.BillType)
	assert.Equal(t, domain.ConfidenceLow, bill.Confidence)
	assert.Nil(t, bill.BillDate)
	assert.True(t, bill.NeedsManualReview())
	assert.Equal(t, fixedClock(), bill.UploadTimestamp)
}

func TestDetectBillType(t *testing.T) {
	tests := []struct {
		name string
		text string
		want domain.BillType
	}{
		{"electricity wins over telecom", "Offerta congiunta ENEL e TIM", domain.BillTypeElectricity},
		{"kwh keyword", "Consumo 200 kWh", domain.BillTypeElectricity},
		{"gas", "Fornitura di gas naturale", domain.BillTypeGas},
		{"water", "Servizio idrico integrato", domain.BillTypeWater},
		{"telecom", "Vodafone linea mobile", domain.BillTypeTelecom},
		{"internet", "Abbonamento fibra ottica", domain.BillTypeInternet},
		{"waste", "Tassa rifiuti comunale", domain.BillTypeWaste},
		{"accented keyword", "Fornitura elettricità", domain.BillTypeElectricity},
		{"nothing known", "Ricevuta generica", domain.BillTypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectBillType(tt.text))
		})
	}
}

func TestExtractSupplier(t *testing.T) {
	s := ExtractSupplier("fattura hera comm")
	require.NotNil(t, s)
	assert.Equal(t, "HERA", *s)

	assert.Nil(t, ExtractSupplier("fornitore sconosciuto"))
}

func TestExtractAmount(t *testing.T) {
	tests := []struct {
		name string
		text string
		want *float64
	}{
		{"max wins", "Totale: €45,30 ... €12,00", domain.Ptr(45.30)},
		{"importo label", "Importo: 80.10", domain.Ptr(80.10)},
		{"trailing euro sign", "Da pagare 19,99 €", domain.Ptr(19.99)},
		{"larger unlabeled figure wins", "Totale: 10,00 rata € 99,00", domain.Ptr(99.0)},
		{"no amount", "nessun importo", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractAmount(tt.text)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestExtractDueDate(t *testing.T) {
	e := New(fixedClock)

	due := e.ExtractDueDate("Pagare entro: 30-07-2024")
	require.NotNil(t, due)
	assert.Equal(t, "2024-07-30T00:00:00", *due)

	assert.Nil(t, e.ExtractDueDate("nessuna scadenza indicata"))
}

func TestExtractBillingPeriod(t *testing.T) {
	p := ExtractBillingPeriod("Consumi dal 01/02/2024 al 31/03/2024")
	assert.Equal(t, &domain.BillingPeriod{Start: "01/02/2024", End: "31/03/2024"}, p)

	p = ExtractBillingPeriod("Periodo 01/04/2024 al 30/04/2024")
	assert.Equal(t, &domain.BillingPeriod{Start: "01/04/2024", End: "30/04/2024"}, p)

	assert.Nil(t, ExtractBillingPeriod("Periodo non indicato"))
}

func TestExtractConsumption(t *testing.T) {
	c := ExtractConsumption("Stima 80 Smc, lettura reale 95,5 Smc; acqua: 12 mc di acqua")
	assert.Equal(t, domain.Consumption{
		domain.ConsumptionGasSmc:  95.5,
		domain.ConsumptionWaterMc: 12,
	}, c)

	assert.Nil(t, ExtractConsumption("nessun consumo"))
}

func TestExtractAccountNumber(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Utenza: 998877", "998877"},
		{"Numero contratto ABC123", "ABC123"},
		{"Cod. cliente: 55501", "55501"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := ExtractAccountNumber(tt.text)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}

	assert.Nil(t, ExtractAccountNumber("nessun codice"))
}
