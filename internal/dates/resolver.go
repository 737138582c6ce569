// Package dates finds dates printed on bills and synthesizes a stable
// fallback issue date when none is found.
package dates

import (
	"crypto/md5"
	"encoding/binary"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// MinYear is the earliest year accepted for an issue date.
const MinYear = 2020

const dateExpr = `(\d{1,2}[/\-]\d{1,2}[/\-]\d{4})`

// Layouts tried in order for each captured date.
const (
	LayoutDMYSlash = "2/1/2006"
	LayoutDMYDash  = "2-1-2006"
	LayoutYMD      = "2006-1-2"
)

// PatternSet is an ordered list of expressions whose first capture group is a
// date, with the layouts used to parse it.
type PatternSet struct {
	Name     string
	Patterns []*regexp.Regexp
	Layouts  []string
	// PastOnly rejects dates after today or before MinYear.
	PastOnly bool
}

// IssueDate locates the date a bill was issued.
var IssueDate = PatternSet{
	Name: "issue_date",
	Patterns: []*regexp.Regexp{
		regexp.MustCompile(`(?i)data[:\s]+` + dateExpr),
		regexp.MustCompile(`(?i)emissione[:\s]+` + dateExpr),
		regexp.MustCompile(`(?i)fattura del[:\s]+` + dateExpr),
		regexp.MustCompile(`(?i)bolletta del[:\s]+` + dateExpr),
		regexp.MustCompile(`(?i)periodo[:\s]+.*?al[:\s]+` + dateExpr),
		regexp.MustCompile(`(?i)dal[:\s]+\d{1,2}[/\-]\d{1,2}[/\-]\d{4}[:\s]+al[:\s]+` + dateExpr),
		regexp.MustCompile(dateExpr),
	},
	Layouts:  []string{LayoutDMYSlash, LayoutDMYDash, LayoutYMD},
	PastOnly: true,
}

// DueDate locates the payment deadline. Due dates are usually in the future,
// so they are not plausibility filtered.
var DueDate = PatternSet{
	Name: "due_date",
	Patterns: []*regexp.Regexp{
		regexp.MustCompile(`(?i)scadenza[:\s]+` + dateExpr),
		regexp.MustCompile(`(?i)entro[:\s]+` + dateExpr),
		regexp.MustCompile(`(?i)pagare entro[:\s]+` + dateExpr),
	},
	Layouts: []string{LayoutDMYSlash, LayoutDMYDash},
}

// Resolver parses dates relative to a clock.
type Resolver struct {
	now func() time.Time
}

// NewResolver creates a Resolver. A nil clock uses time.Now.
func NewResolver(now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{now: now}
}

// ParseDate returns the first date in text matched by set that parses with
// one of the set's layouts and passes the plausibility filter.
func (r *Resolver) ParseDate(text string, set PatternSet) (civil.Date, bool) {
	today := civil.DateOf(r.now())

	for _, re := range set.Patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			d, ok := ParseLayouts(m[1], set.Layouts)
			if !ok {
				continue
			}
			if set.PastOnly && (d.After(today) || d.Year < MinYear) {
				continue
			}
			return d, true
		}
	}
	return civil.Date{}, false
}

// ResolveDateOrFallback is ParseDate with FallbackDate when nothing matches.
func (r *Resolver) ResolveDateOrFallback(text string, set PatternSet) civil.Date {
	if d, ok := r.ParseDate(text, set); ok {
		return d
	}
	return r.FallbackDate(text)
}

// FallbackDate derives an issue date from the content of text. The first 32
// bits of the MD5 digest pick how many months back (1-12) and which day
// (1-28), so undated bills spread over distinct months instead of piling up
// on one value. Identical text always yields the same date for the same day.
func (r *Resolver) FallbackDate(text string) civil.Date {
	sum := md5.Sum([]byte(text))
	h := binary.BigEndian.Uint32(sum[:4])

	monthsBack := int(h%12) + 1
	day := int(h%28) + 1

	today := civil.DateOf(r.now())
	year := today.Year
	month := int(today.Month) - monthsBack
	for month <= 0 {
		month += 12
		year--
	}
	return civil.Date{Year: year, Month: time.Month(month), Day: day}
}

// ParseLayouts parses s with the first layout that accepts it.
func ParseLayouts(s string, layouts []string) (civil.Date, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), true
		}
	}
	return civil.Date{}, false
}
