// Package trends measures how a consumption metric moves over recent months.
package trends

import (
	"errors"
	"math"
	"regexp"
	"sort"

	"github.com/dvloznov/bill-intelligence/internal/domain"
)

// ErrInsufficientData means fewer than two months carry a consumption value.
var ErrInsufficientData = errors.New("insufficient consumption data")

// Direction of consumption across the analysed window.
type Direction string

const (
	Increasing Direction = "increasing"
	Decreasing Direction = "decreasing"
)

const (
	// Window is the number of most recent months analysed.
	Window    = 6
	minMonths = 2
)

const monthLayout = "2006-01"

var numberRe = regexp.MustCompile(`\d+[.,]?\d*`)

// MonthlyValue is the consumption reading attributed to one month.
type MonthlyValue struct {
	Month string  `json:"month"`
	Value float64 `json:"value"`
}

// Result describes the consumption trend. ChangePercentage is nil and
// ChangeUndefined true when the window starts at zero.
type Result struct {
	Trend              Direction      `json:"trend"`
	AverageConsumption float64        `json:"average_consumption"`
	MonthlyData        []MonthlyValue `json:"monthly_data"`
	ChangePercentage   *float64       `json:"change_percentage"`
	ChangeUndefined    bool           `json:"change_undefined"`
}

// Analyze computes the trend of bills of a single type. Bills are expected
// in store order (newest first); when several bills fall in the same upload
// month the one visited last wins.
func Analyze(bills []*domain.BillRecord) (*Result, error) {
	if len(bills) < minMonths {
		return nil, ErrInsufficientData
	}

	byMonth := make(map[string]float64)
	for _, bill := range bills {
		if bill.UploadTimestamp.IsZero() {
			continue
		}
		v, ok := ConsumptionValue(bill.Consumption)
		if !ok {
			continue
		}
		byMonth[bill.UploadTimestamp.Format(monthLayout)] = v
	}
	if len(byMonth) < minMonths {
		return nil, ErrInsufficientData
	}

	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Strings(months)
	if len(months) > Window {
		months = months[len(months)-Window:]
	}

	res := &Result{MonthlyData: make([]MonthlyValue, len(months))}
	var sum float64
	for i, m := range months {
		res.MonthlyData[i] = MonthlyValue{Month: m, Value: byMonth[m]}
		sum += byMonth[m]
	}

	first := res.MonthlyData[0].Value
	last := res.MonthlyData[len(months)-1].Value

	res.Trend = Decreasing
	if last > first {
		res.Trend = Increasing
	}
	res.AverageConsumption = math.Round(sum/float64(len(months))*100) / 100

	if first == 0 {
		res.ChangeUndefined = true
	} else {
		pct := math.Round((last-first)/first*100*10) / 10
		res.ChangePercentage = &pct
	}
	return res, nil
}

// ConsumptionValue returns the first number in the rendered consumption
// readings.
func ConsumptionValue(c domain.Consumption) (float64, bool) {
	m := numberRe.FindString(c.String())
	if m == "" {
		return 0, false
	}
	v, err := domain.ParseAmount(m)
	if err != nil {
		return 0, false
	}
	return v, true
}
