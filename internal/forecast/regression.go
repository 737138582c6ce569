package forecast

import "math"

// line is a least-squares fit of amount against month index 0..n-1.
type line struct {
	Slope     float64
	Intercept float64
}

func (l line) at(x float64) float64 {
	return l.Slope*x + l.Intercept
}

func fitLine(ys []float64) line {
	n := float64(len(ys))
	if n == 0 {
		return line{}
	}
	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range ys {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return line{Intercept: sumY / n}
	}
	slope := (n*sumXY - sumX*sumY) / denom
	return line{Slope: slope, Intercept: (sumY - slope*sumX) / n}
}

// maxSlopeShare caps the monthly slope at this share of the mean amount.
const maxSlopeShare = 0.05

func clipSlope(slope, mean float64) float64 {
	limit := math.Abs(mean * maxSlopeShare)
	return math.Max(-limit, math.Min(limit, slope))
}

func trendOf(slope float64) Trend {
	switch {
	case slope > 0:
		return TrendRising
	case slope < 0:
		return TrendFalling
	default:
		return TrendStable
	}
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func minMax(vs []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range vs {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
