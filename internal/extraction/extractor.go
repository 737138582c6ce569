// Package extraction turns recognized bill text into a BillRecord.
package extraction

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/bill-intelligence/internal/dates"
	"github.com/dvloznov/bill-intelligence/internal/domain"
)

// DegradedText replaces the raw text when no analyzer could read the document.
const DegradedText = "Estrazione automatica non disponibile"

type typeKeywords struct {
	billType domain.BillType
	keywords []string
}

// Checked in order; the first type with a keyword in the text wins.
var billTypeKeywords = []typeKeywords{
	{domain.BillTypeElectricity, []string{"enel", "energia elettrica", "kwh", "elettricità"}},
	{domain.BillTypeGas, []string{"gas", "metano", "smc", "gas naturale"}},
	{domain.BillTypeWater, []string{"acqua", "idrico", "mc acqua", "servizio idrico"}},
	{domain.BillTypeTelecom, []string{"telefono", "tim", "vodafone", "wind", "iliad"}},
	{domain.BillTypeInternet, []string{"internet", "fibra", "adsl"}},
	{domain.BillTypeWaste, []string{"rifiuti", "tari", "spazzatura"}},
}

var suppliers = []string{
	"ENEL", "ENI", "IREN", "A2A", "ACEA", "HERA", "EDISON",
	"TIM", "VODAFONE", "WIND", "ILIAD", "FASTWEB",
	"ACQUEDOTTO", "VERITAS", "CAP",
}

var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)totale[:\s]+€?\s*(\d+[.,]\d{2})`),
	regexp.MustCompile(`(?i)importo[:\s]+€?\s*(\d+[.,]\d{2})`),
	regexp.MustCompile(`€\s*(\d+[.,]\d{2})`),
	regexp.MustCompile(`(\d+[.,]\d{2})\s*€`),
}

const periodDate = `(\d{1,2}[/\-]\d{1,2}[/\-]\d{4})`

var billingPeriodPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)periodo[:\s]+` + periodDate + `\s*(?:al|a|-)\s*` + periodDate),
	regexp.MustCompile(`(?i)dal[:\s]+` + periodDate + `\s*al[:\s]+` + periodDate),
}

var consumptionPatterns = []struct {
	key string
	re  *regexp.Regexp
}{
	{domain.ConsumptionElectricityKWh, regexp.MustCompile(`(?i)(\d+[.,]?\d*)\s*kwh`)},
	{domain.ConsumptionGasSmc, regexp.MustCompile(`(?i)(\d+[.,]?\d*)\s*smc`)},
	{domain.ConsumptionWaterMc, regexp.MustCompile(`(?i)(\d+[.,]?\d*)\s*mc.*acqua`)},
}

var accountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)utenza[:\s]+(\w+)`),
	regexp.MustCompile(`(?i)contratto[:\s]+(\w+)`),
	regexp.MustCompile(`(?i)cod[.\s]*cliente[:\s]+(\w+)`),
}

// dueDateLayout matches the ISO form used for due dates throughout the store.
const dueDateLayout = "2006-01-02T15:04:05"

// Extractor pattern-matches bill fields. It holds no mutable state and is
// safe for concurrent use.
type Extractor struct {
	resolver *dates.Resolver
	now      func() time.Time
}

// New creates an Extractor. A nil clock uses time.Now.
func New(now func() time.Time) *Extractor {
	if now == nil {
		now = time.Now
	}
	return &Extractor{
		resolver: dates.NewResolver(now),
		now:      now,
	}
}

// Extract builds a record from the recognized text of one document.
func (e *Extractor) Extract(rawText, filename, userID string) *domain.BillRecord {
	uploaded := e.now()

	bill := &domain.BillRecord{
		ID:              RecordID(userID, filename, uploaded),
		UserID:          userID,
		Filename:        filename,
		UploadTimestamp: uploaded,
		RawText:         rawText,
		BillType:        DetectBillType(rawText),
		Supplier:        ExtractSupplier(rawText),
		Amount:          ExtractAmount(rawText),
		DueDate:         e.ExtractDueDate(rawText),
		BillingPeriod:   ExtractBillingPeriod(rawText),
		Consumption:     ExtractConsumption(rawText),
		AccountNumber:   ExtractAccountNumber(rawText),
		Confidence:      domain.ConfidenceMedium,
	}

	billDate := e.ExtractBillDate(rawText)
	bill.BillDate = &billDate

	bill.ExtractedData.Date = billDate.String()
	if bill.Amount != nil {
		bill.ExtractedData.Amount = domain.FormatAmount(*bill.Amount)
	}
	if bill.Supplier != nil {
		bill.ExtractedData.Supplier = *bill.Supplier
	}
	return bill
}

// Degraded returns the record stored when the document could not be read.
func (e *Extractor) Degraded(filename, userID string) *domain.BillRecord {
	uploaded := e.now()
	return &domain.BillRecord{
		ID:              RecordID(userID, filename, uploaded),
		UserID:          userID,
		Filename:        filename,
		UploadTimestamp: uploaded,
		RawText:         DegradedText,
		BillType:        domain.BillTypeUnknown,
		Confidence:      domain.ConfidenceLow,
	}
}

// RecordID derives a record id from owner, file name and extraction time.
func RecordID(userID, filename string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%d", userID, filename, at.Unix())
}

// DetectBillType returns the first bill type whose keywords appear in text.
func DetectBillType(text string) domain.BillType {
	lower := strings.ToLower(text)
	for _, tk := range billTypeKeywords {
		for _, kw := range tk.keywords {
			if strings.Contains(lower, kw) {
				return tk.billType
			}
		}
	}
	return domain.BillTypeOther
}

// ExtractSupplier returns the first known supplier named in text.
func ExtractSupplier(text string) *string {
	upper := strings.ToUpper(text)
	for _, s := range suppliers {
		if strings.Contains(upper, s) {
			return domain.Ptr(s)
		}
	}
	return nil
}

// ExtractAmount returns the largest amount matched by any amount pattern.
// The bill total is usually the largest figure on the page.
func ExtractAmount(text string) *float64 {
	var best *float64
	for _, re := range amountPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			v, err := domain.ParseAmount(m[1])
			if err != nil {
				continue
			}
			if best == nil || v > *best {
				best = domain.Ptr(v)
			}
		}
	}
	return best
}

// ExtractBillDate resolves the issue date, falling back to a date derived
// from the text.
func (e *Extractor) ExtractBillDate(text string) civil.Date {
	return e.resolver.ResolveDateOrFallback(text, dates.IssueDate)
}

// ExtractDueDate returns the payment deadline as YYYY-MM-DDT00:00:00.
func (e *Extractor) ExtractDueDate(text string) *string {
	d, ok := e.resolver.ParseDate(text, dates.DueDate)
	if !ok {
		return nil
	}
	return domain.Ptr(d.In(time.UTC).Format(dueDateLayout))
}

// ExtractBillingPeriod returns the period start and end as printed.
func ExtractBillingPeriod(text string) *domain.BillingPeriod {
	for _, re := range billingPeriodPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return &domain.BillingPeriod{Start: m[1], End: m[2]}
		}
	}
	return nil
}

// ExtractConsumption reads kWh, Smc and water mc figures. When a metric
// appears more than once the last reading is used.
func ExtractConsumption(text string) domain.Consumption {
	var out domain.Consumption
	for _, p := range consumptionPatterns {
		matches := p.re.FindAllStringSubmatch(text, -1)
		if len(matches) == 0 {
			continue
		}
		v, err := domain.ParseAmount(matches[len(matches)-1][1])
		if err != nil {
			continue
		}
		if out == nil {
			out = domain.Consumption{}
		}
		out[p.key] = v
	}
	return out
}

// ExtractAccountNumber returns the first customer or contract code.
func ExtractAccountNumber(text string) *string {
	for _, re := range accountPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return domain.Ptr(m[1])
		}
	}
	return nil
}
