package forecast

import (
	"math"
	"time"

	"github.com/dvloznov/bill-intelligence/internal/domain"
)

// Season groups calendar months for the multiplier tables.
type Season string

const (
	SeasonWinter Season = "winter"
	SeasonSummer Season = "summer"
	SeasonOther  Season = "other"
)

// SeasonOf maps Dec-Feb to winter and Jun-Aug to summer.
func SeasonOf(m time.Month) Season {
	switch m {
	case time.December, time.January, time.February:
		return SeasonWinter
	case time.June, time.July, time.August:
		return SeasonSummer
	default:
		return SeasonOther
	}
}

// peakSeasonOf is SeasonOf with summer narrowed to July and August.
func peakSeasonOf(m time.Month) Season {
	if m == time.June {
		return SeasonOther
	}
	return SeasonOf(m)
}

// FactorTable maps (bill type, season) to a multiplier. Bill types without
// an entry use Default.
type FactorTable struct {
	Season  func(time.Month) Season
	Entries map[domain.BillType]map[Season]float64
	Default func(time.Month) float64
}

// Factor returns the multiplier for a bill type in a calendar month.
func (t FactorTable) Factor(billType domain.BillType, m time.Month) float64 {
	if seasons, ok := t.Entries[billType]; ok {
		if f, ok := seasons[t.Season(m)]; ok {
			return f
		}
	}
	return t.Default(m)
}

func sinusoid(amplitude float64) func(time.Month) float64 {
	return func(m time.Month) float64 {
		return 1 + amplitude*math.Sin(2*math.Pi*float64(m)/12)
	}
}

func constant(v float64) func(time.Month) float64 {
	return func(time.Month) float64 { return v }
}

// LinearSeasonal adjusts linear forecasts for heating and cooling peaks.
var LinearSeasonal = FactorTable{
	Season: peakSeasonOf,
	Entries: map[domain.BillType]map[Season]float64{
		domain.BillTypeGas:         {SeasonWinter: 1.3, SeasonSummer: 0.4, SeasonOther: 0.8},
		domain.BillTypeElectricity: {SeasonWinter: 1.1, SeasonSummer: 1.2, SeasonOther: 1.0},
	},
	Default: sinusoid(0.05),
}

// BillTypeFactors is the per-type multiplier of the advanced forecast.
var BillTypeFactors = FactorTable{
	Season: SeasonOf,
	Entries: map[domain.BillType]map[Season]float64{
		domain.BillTypeElectricity: {SeasonWinter: 1.1, SeasonSummer: 1.15, SeasonOther: 1.0},
		domain.BillTypeGas:         {SeasonWinter: 1.2, SeasonSummer: 0.8, SeasonOther: 1.0},
		domain.BillTypeWater:       {SeasonWinter: 0.95, SeasonSummer: 1.05, SeasonOther: 1.0},
		domain.BillTypeTelecom:     {SeasonWinter: 1.0, SeasonSummer: 1.0, SeasonOther: 1.0},
	},
	Default: constant(1.0),
}

var (
	mockSeasonal     = sinusoid(0.2)
	advancedSeasonal = sinusoid(0.08)
)
