package forecast

import (
	"fmt"

	"github.com/dvloznov/bill-intelligence/internal/domain"
)

// Trend is the direction of the fitted line.
type Trend string

const (
	TrendRising  Trend = "rising"
	TrendFalling Trend = "falling"
	TrendStable  Trend = "stable"
)

// Confidence grades how much history backs a forecast.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Algorithm names the model that produced a forecast.
type Algorithm string

const (
	AlgorithmMock     Algorithm = "mock"
	AlgorithmLinear   Algorithm = "linear"
	AlgorithmAdvanced Algorithm = "advanced_local"
)

// Interval bounds a prediction.
type Interval struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Components reports how an advanced prediction was assembled.
type Components struct {
	LinearComponent float64 `json:"linear_component"`
	EMAComponent    float64 `json:"ema_component"`
	SeasonalFactor  float64 `json:"seasonal_factor"`
	TypeFactor      float64 `json:"type_factor"`
	DampingFactor   float64 `json:"damping_factor"`
}

// MonthPrediction is the forecast for one future month.
type MonthPrediction struct {
	Month              string      `json:"month"`
	MonthName          string      `json:"month_name"`
	PredictedAmount    float64     `json:"predicted_amount"`
	ConfidenceInterval Interval    `json:"confidence_interval"`
	Components         *Components `json:"algorithm_details,omitempty"`
}

// LinearDebug describes the regression behind a linear forecast.
type LinearDebug struct {
	OriginalSlope float64 `json:"original_slope"`
	CappedSlope   float64 `json:"capped_slope"`
	DataPoints    int     `json:"data_points"`
	MinAmount     float64 `json:"min_amount"`
	MaxAmount     float64 `json:"max_amount"`
}

// Result is a complete forecast.
type Result struct {
	Predictions       []MonthPrediction `json:"predictions"`
	Trend             Trend             `json:"trend"`
	Confidence        Confidence        `json:"confidence"`
	HistoricalAverage float64           `json:"historical_average"`
	LastMonthAmount   float64           `json:"last_month_amount"`
	Algorithm         Algorithm         `json:"algorithm_used"`
	MonthsAnalyzed    int               `json:"months_analyzed"`
	Note              string            `json:"note,omitempty"`
	Debug             *LinearDebug      `json:"debug_info,omitempty"`
}

// NoDataError is returned when a forecast is requested for a bill type the
// user has no bills of. It is distinct from having too little history.
type NoDataError struct {
	BillType domain.BillType
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no bills of type %q found", e.BillType)
}
