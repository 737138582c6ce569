package domain

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// BillType is the utility category detected from a bill's text.
type BillType string

const (
	BillTypeElectricity BillType = "electricity"
	BillTypeGas         BillType = "gas"
	BillTypeWater       BillType = "water"
	BillTypeTelecom     BillType = "telecom"
	BillTypeInternet    BillType = "internet"
	BillTypeWaste       BillType = "waste"
	BillTypeOther       BillType = "other"
	BillTypeUnknown     BillType = "unknown"
)

// BillTypes lists every bill type in detection priority order, followed by
// the fallback types.
var BillTypes = []BillType{
	BillTypeElectricity,
	BillTypeGas,
	BillTypeWater,
	BillTypeTelecom,
	BillTypeInternet,
	BillTypeWaste,
	BillTypeOther,
	BillTypeUnknown,
}

// ParseBillType validates a bill type name.
func ParseBillType(s string) (BillType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, t := range BillTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Confidence describes how the record's fields were obtained.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
)

// Consumption metric keys.
const (
	ConsumptionElectricityKWh = "electricity_kwh"
	ConsumptionGasSmc         = "gas_smc"
	ConsumptionWaterMc        = "water_mc"
)

var consumptionOrder = []string{ConsumptionElectricityKWh, ConsumptionGasSmc, ConsumptionWaterMc}

// Consumption maps a metric name to its reading.
type Consumption map[string]float64

// String renders the readings as "key: value" pairs, known metrics first in
// electricity, gas, water order, then any other keys sorted.
func (c Consumption) String() string {
	if len(c) == 0 {
		return ""
	}

	keys := make([]string, 0, len(c))
	seen := make(map[string]bool, len(c))
	for _, k := range consumptionOrder {
		if _, ok := c[k]; ok {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range c {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	keys = append(keys, rest...)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strconv.FormatFloat(c[k], 'f', -1, 64))
	}
	return strings.Join(parts, ", ")
}

// BillingPeriod holds the two period dates exactly as printed on the bill.
type BillingPeriod struct {
	Start string `json:"start_date"`
	End   string `json:"end_date"`
}

// ExtractedData mirrors the headline fields as display strings for consumers
// that read the legacy layout.
type ExtractedData struct {
	Date     string `json:"date,omitempty"`
	Amount   string `json:"amount,omitempty"`
	Supplier string `json:"supplier,omitempty"`
}

// BillRecord is one extracted document. It is created once at extraction time
// and not modified afterwards; re-extraction produces a new record.
type BillRecord struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	Filename        string         `json:"filename"`
	UploadTimestamp time.Time      `json:"upload_date"`
	RawText         string         `json:"extracted_text"`
	BillType        BillType       `json:"bill_type"`
	Supplier        *string        `json:"supplier"`
	Amount          *float64       `json:"amount"`
	BillDate        *civil.Date    `json:"bill_date"`
	DueDate         *string        `json:"due_date"` // YYYY-MM-DDTHH:MM:SS
	BillingPeriod   *BillingPeriod `json:"billing_period"`
	Consumption     Consumption    `json:"consumption"`
	AccountNumber   *string        `json:"account_number"`
	Confidence      Confidence     `json:"extraction_confidence"`
	ExtractedData   ExtractedData  `json:"extracted_data"`
	Checksum        string         `json:"checksum,omitempty"`
	GCSURI          string         `json:"gcs_uri,omitempty"`
}

// NeedsManualReview reports whether more than one of supplier, amount and
// due date is missing.
func (b *BillRecord) NeedsManualReview() bool {
	missing := 0
	if b.Supplier == nil {
		missing++
	}
	if b.Amount == nil {
		missing++
	}
	if b.DueDate == nil {
		missing++
	}
	return missing > 1
}

// MarshalJSON adds the computed needs_manual_review flag.
func (b BillRecord) MarshalJSON() ([]byte, error) {
	type record BillRecord
	return json.Marshal(struct {
		record
		NeedsManualReview bool `json:"needs_manual_review"`
	}{
		record:            record(b),
		NeedsManualReview: b.NeedsManualReview(),
	})
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
