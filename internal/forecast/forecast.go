// Package forecast predicts future monthly bill totals from a monthly series.
//
// The algorithm depends on how many non-zero months are available:
//
//	< 3 months   mock forecast around the mean known amount
//	3-5 months   clipped linear regression with seasonal factors
//	>= 6 months  linear + EMA blend with seasonal, bill-type and damping factors
//
// Numerical failures in the linear or advanced models never reach the
// caller; the forecast falls back to the mock model.
package forecast

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/dvloznov/bill-intelligence/internal/aggregate"
	"github.com/dvloznov/bill-intelligence/internal/domain"
	"github.com/dvloznov/bill-intelligence/internal/logger"
	"github.com/dvloznov/bill-intelligence/internal/metrics"
)

const (
	DefaultMonthsAhead = 3
	MinLinearMonths    = 3
	MinAdvancedMonths  = 6
)

// Options configures a forecast.
type Options struct {
	MonthsAhead int
	// BillType selects seasonal tables; empty means all bill types.
	BillType domain.BillType
	// BaseAmounts are the raw bill amounts the mock model averages.
	BaseAmounts []float64
	// BillCount is reported in the mock model's note.
	BillCount int
	// Now anchors mock forecast months. Defaults to time.Now.
	Now func() time.Time
	// Noise draws from a standard normal distribution. Defaults to
	// math/rand/v2's NormFloat64.
	Noise func() float64
}

func (o Options) normalized() Options {
	if o.MonthsAhead < 1 {
		o.MonthsAhead = DefaultMonthsAhead
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Noise == nil {
		o.Noise = rand.NormFloat64
	}
	return o
}

// Select returns the algorithm used for a series of the given length.
func Select(months int) Algorithm {
	switch {
	case months < MinLinearMonths:
		return AlgorithmMock
	case months < MinAdvancedMonths:
		return AlgorithmLinear
	default:
		return AlgorithmAdvanced
	}
}

// Forecast runs the algorithm chosen by Select. Failures in the linear and
// advanced models, including panics, downgrade to Mock.
func Forecast(ctx context.Context, series []aggregate.MonthlyPoint, opts Options) *Result {
	opts = opts.normalized()

	var model func([]aggregate.MonthlyPoint, Options) (*Result, error)
	switch Select(len(series)) {
	case AlgorithmLinear:
		model = Linear
	case AlgorithmAdvanced:
		model = Advanced
	default:
		return Mock(opts)
	}

	res, err := guarded(model, series, opts)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().
			Err(err).
			Str("bill_type", string(opts.BillType)).
			Int("months", len(series)).
			Msg("Forecast failed, falling back to mock forecast")
		metrics.ForecastDowngrades.Inc()
		return Mock(opts)
	}
	return res
}

func guarded(
	model func([]aggregate.MonthlyPoint, Options) (*Result, error),
	series []aggregate.MonthlyPoint,
	opts Options,
) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("forecast panic: %v", r)
		}
	}()
	return model(series, opts)
}
