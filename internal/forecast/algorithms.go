package forecast

import (
	"fmt"
	"math"
	"time"

	"github.com/dvloznov/bill-intelligence/internal/aggregate"
)

// DefaultBaseAmount seeds the mock forecast when no amounts are known.
const DefaultBaseAmount = 120.0

const monthNameLayout = "January 2006"

// Mock produces a placeholder forecast around the mean of the known amounts.
func Mock(opts Options) *Result {
	opts = opts.normalized()

	base := DefaultBaseAmount
	var positive []float64
	for _, a := range opts.BaseAmounts {
		if a > 0 {
			positive = append(positive, a)
		}
	}
	if len(positive) > 0 {
		base = mean(positive)
	}

	res := &Result{
		Trend:             TrendStable,
		Confidence:        ConfidenceLow,
		HistoricalAverage: round(base, 2),
		LastMonthAmount:   round(base, 2),
		Algorithm:         AlgorithmMock,
		Note: fmt.Sprintf("Simulated forecast based on %d bills; upload more bills for an accurate forecast",
			opts.BillCount),
	}

	now := opts.Now()
	for i := 1; i <= opts.MonthsAhead; i++ {
		month := now.AddDate(0, 0, 30*i)
		pred := base * (1 + opts.Noise()*0.1) * mockSeasonal(month.Month())
		pred = math.Max(pred, 0)
		res.Predictions = append(res.Predictions, prediction(month, pred, 0.20))
	}
	return res
}

// Linear fits a clipped least-squares line, applies the bill type's seasonal
// factor and pulls each prediction toward the historical mean.
func Linear(series []aggregate.MonthlyPoint, opts Options) (*Result, error) {
	opts = opts.normalized()
	amounts, last, err := prepare(series)
	if err != nil {
		return nil, fmt.Errorf("Linear: %w", err)
	}

	n := len(amounts)
	fit := fitLine(amounts)
	avg := mean(amounts)
	slope := clipSlope(fit.Slope, avg)
	capped := line{Slope: slope, Intercept: fit.Intercept}
	lo, hi := minMax(amounts)

	res := &Result{
		Trend:             trendOf(slope),
		Confidence:        ConfidenceMedium,
		HistoricalAverage: round(avg, 2),
		LastMonthAmount:   round(amounts[n-1], 2),
		Algorithm:         AlgorithmLinear,
		MonthsAnalyzed:    n,
		Debug: &LinearDebug{
			OriginalSlope: fit.Slope,
			CappedSlope:   slope,
			DataPoints:    n,
			MinAmount:     round(lo, 2),
			MaxAmount:     round(hi, 2),
		},
	}

	for i := 1; i <= opts.MonthsAhead; i++ {
		month := last.AddDate(0, i, 0)
		pred := capped.at(float64(n + i - 1))
		pred *= LinearSeasonal.Factor(opts.BillType, month.Month())

		w := math.Min(float64(i)*0.1, 0.3)
		pred = pred*(1-w) + avg*w
		pred = math.Max(pred, 0)

		if !finite(pred) {
			return nil, fmt.Errorf("Linear: non-finite prediction for %s", month.Format(aggregate.MonthLayout))
		}
		res.Predictions = append(res.Predictions, prediction(month, pred, 0.15))
	}
	return res, nil
}

const (
	emaAlpha      = 0.3
	linearWeight  = 0.7
	dampingPerMon = 0.02
	// Months of history needed before calendar-month seasonality is measured.
	seasonalHistory = 12
)

// Advanced blends the clipped linear fit with an exponential moving average
// and applies seasonal, bill-type and damping factors.
func Advanced(series []aggregate.MonthlyPoint, opts Options) (*Result, error) {
	opts = opts.normalized()
	amounts, last, err := prepare(series)
	if err != nil {
		return nil, fmt.Errorf("Advanced: %w", err)
	}

	n := len(amounts)
	fit := fitLine(amounts)
	avg := mean(amounts)
	if avg == 0 {
		return nil, fmt.Errorf("Advanced: zero mean amount")
	}
	slope := clipSlope(fit.Slope, avg)
	capped := line{Slope: slope, Intercept: fit.Intercept}

	// TODO: the EMA is seeded with the oldest month; revisit once product
	// decides whether a short initial average is preferred.
	ema := amounts[0]
	for _, a := range amounts[1:] {
		ema = emaAlpha*a + (1-emaAlpha)*ema
	}
	emaPred := ema * (1 + slope/avg*0.05)

	var pattern map[time.Month]float64
	if n >= seasonalHistory {
		pattern, err = monthlyPattern(series)
		if err != nil {
			return nil, fmt.Errorf("Advanced: %w", err)
		}
	}

	res := &Result{
		Trend:             trendOf(slope),
		Confidence:        ConfidenceHigh,
		HistoricalAverage: round(avg, 2),
		LastMonthAmount:   round(amounts[n-1], 2),
		Algorithm:         AlgorithmAdvanced,
		MonthsAnalyzed:    n,
	}

	for i := 1; i <= opts.MonthsAhead; i++ {
		month := last.AddDate(0, i, 0)
		linearPred := capped.at(float64(n + i - 1))
		base := linearWeight*linearPred + (1-linearWeight)*emaPred

		seasonal, ok := pattern[month.Month()]
		if ok {
			seasonal /= avg
		} else {
			seasonal = advancedSeasonal(month.Month())
		}
		typeFactor := BillTypeFactors.Factor(opts.BillType, month.Month())
		damping := 1 / (1 + float64(i)*dampingPerMon)

		pred := math.Max(base*seasonal*typeFactor*damping, 0)
		if !finite(pred) {
			return nil, fmt.Errorf("Advanced: non-finite prediction for %s", month.Format(aggregate.MonthLayout))
		}

		p := prediction(month, pred, 0.12)
		p.Components = &Components{
			LinearComponent: round(linearPred, 2),
			EMAComponent:    round(emaPred, 2),
			SeasonalFactor:  round(seasonal, 3),
			TypeFactor:      round(typeFactor, 3),
			DampingFactor:   round(damping, 3),
		}
		res.Predictions = append(res.Predictions, p)
	}
	return res, nil
}

func prepare(series []aggregate.MonthlyPoint) ([]float64, time.Time, error) {
	if len(series) == 0 {
		return nil, time.Time{}, fmt.Errorf("empty series")
	}
	amounts := make([]float64, len(series))
	for i, p := range series {
		amounts[i] = p.Amount
	}
	last, err := time.Parse(aggregate.MonthLayout, series[len(series)-1].Month)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("parse last month: %w", err)
	}
	return amounts, last, nil
}

func monthlyPattern(series []aggregate.MonthlyPoint) (map[time.Month]float64, error) {
	sums := make(map[time.Month]float64)
	counts := make(map[time.Month]int)
	for _, p := range series {
		t, err := time.Parse(aggregate.MonthLayout, p.Month)
		if err != nil {
			return nil, fmt.Errorf("parse month %q: %w", p.Month, err)
		}
		sums[t.Month()] += p.Amount
		counts[t.Month()]++
	}
	pattern := make(map[time.Month]float64, len(sums))
	for m, s := range sums {
		pattern[m] = s / float64(counts[m])
	}
	return pattern, nil
}

func prediction(month time.Time, amount, margin float64) MonthPrediction {
	return MonthPrediction{
		Month:           month.Format(aggregate.MonthLayout),
		MonthName:       month.Format(monthNameLayout),
		PredictedAmount: round(amount, 2),
		ConfidenceInterval: Interval{
			Min: round(amount*(1-margin), 2),
			Max: round(amount*(1+margin), 2),
		},
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
