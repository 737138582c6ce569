package dates

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
)

func fixedClock() time.Time {
	return time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC)
}

func TestParseDate_IssueDate(t *testing.T) {
	r := NewResolver(fixedClock)

	tests := []struct {
		name   string
		text   string
		want   civil.Date
		wantOK bool
	}{
		{"labelled data", "Data: 05/03/2024 Totale 45,30", civil.Date{Year: 2024, Month: 3, Day: 5}, true},
		{"emissione with dashes", "Emissione 12-02-2024", civil.Date{Year: 2024, Month: 2, Day: 12}, true},
		{"fattura del", "Fattura del 1/4/2024", civil.Date{Year: 2024, Month: 4, Day: 1}, true},
		{"period end", "Periodo: 01/01/2024 al 31/01/2024", civil.Date{Year: 2024, Month: 1, Day: 31}, true},
		{"bare date", "Roma, 20/05/2024", civil.Date{Year: 2024, Month: 5, Day: 20}, true},
		{"future date skipped", "Data: 01/12/2024 emessa 02/01/2024", civil.Date{Year: 2024, Month: 1, Day: 2}, true},
		{"old year skipped", "Data: 01/01/2019", civil.Date{}, false},
		{"invalid day skipped", "Data: 31/02/2024", civil.Date{}, false},
		{"today accepted", "Data: 15/06/2024", civil.Date{Year: 2024, Month: 6, Day: 15}, true},
		{"no date", "Bolletta luce", civil.Date{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.ParseDate(tt.text, IssueDate)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDate_DueDateAllowsFuture(t *testing.T) {
	r := NewResolver(fixedClock)

	got, ok := r.ParseDate("Da pagare entro il 10/07/2024", DueDate)
	assert.False(t, ok, "entro must be directly followed by the date")

	got, ok = r.ParseDate("Scadenza: 10/07/2024", DueDate)
	assert.True(t, ok)
	assert.Equal(t, civil.Date{Year: 2024, Month: 7, Day: 10}, got)
}

func TestFallbackDate(t *testing.T) {
	r := NewResolver(fixedClock)

	tests := []struct {
		text string
		want civil.Date
	}{
		// md5 prefix 0x5ea3f99d: 10 months back, day 6
		{"bolletta senza data", civil.Date{Year: 2023, Month: 8, Day: 6}},
		// md5 prefix 0xd41d8cd9: 2 months back, day 26
		{"", civil.Date{Year: 2024, Month: 4, Day: 26}},
		// md5 prefix 0xe37a7472: 7 months back, day 7
		{"Fornitura gas metano", civil.Date{Year: 2023, Month: 11, Day: 7}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, r.FallbackDate(tt.text))
		})
	}
}

func TestResolveDateOrFallback_Deterministic(t *testing.T) {
	r := NewResolver(fixedClock)
	text := "Documento senza alcuna data leggibile"

	first := r.ResolveDateOrFallback(text, IssueDate)
	second := r.ResolveDateOrFallback(text, IssueDate)

	assert.Equal(t, first, second)
	assert.True(t, first.Before(civil.DateOf(fixedClock())))
	assert.LessOrEqual(t, first.Day, 28)
}

func TestResolveDateOrFallback_PrefersParsedDate(t *testing.T) {
	r := NewResolver(fixedClock)
	got := r.ResolveDateOrFallback("Bolletta del 03/03/2024", IssueDate)
	assert.Equal(t, civil.Date{Year: 2024, Month: 3, Day: 3}, got)
}

func TestParseLayouts(t *testing.T) {
	layouts := []string{LayoutDMYSlash, LayoutDMYDash, LayoutYMD}

	d, ok := ParseLayouts("2024-3-9", layouts)
	assert.True(t, ok)
	assert.Equal(t, civil.Date{Year: 2024, Month: 3, Day: 9}, d)

	_, ok = ParseLayouts("not a date", layouts)
	assert.False(t, ok)
}
