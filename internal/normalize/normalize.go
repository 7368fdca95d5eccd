// Package normalize converts scanned field values into the canonical forms
// the case model stores: ISO dates and formatted insurance numbers.
package normalize

import (
	"fmt"
	"strings"
	"time"
)

// ISODate is the storage layout for every date field on a case.
const ISODate = "2006-01-02"

// DisplayDate is the layout shown to applicants and printed in reports.
const DisplayDate = "02.01.2006"

// dateLayouts are tried in order; the first successful parse wins. Order
// matters: two-digit years must come last so "12.03.1978" never parses as
// year 19 with trailing garbage.
var dateLayouts = []string{
	"02.01.2006",
	"2006-01-02",
	"02/01/2006",
	"02.01.06",
}

// Date parses a scanned or typed date and returns it in ISO form. The second
// return is false when no known layout matches; callers store a blank field
// in that case rather than guessing.
func Date(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.Format(ISODate), true
		}
	}
	return "", false
}

// DateDisplay renders an ISO date in the dotted display layout. Invalid input
// comes back unchanged so a half-filled form never loses what the user typed.
func DateDisplay(iso string) string {
	t, err := time.Parse(ISODate, iso)
	if err != nil {
		return iso
	}
	return t.Format(DisplayDate)
}

// DateSlash renders an ISO date as dd/mm/yyyy, one of the layouts redaction
// has to chase through free text.
func DateSlash(iso string) string {
	t, err := time.Parse(ISODate, iso)
	if err != nil {
		return iso
	}
	return t.Format("02/01/2006")
}

// Digits strips everything but ASCII digits.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteByte(byte(r))
		}
	}
	return b.String()
}

// SNILS canonicalizes a personal insurance account number into the
// XXX-XXX-XXX XX form. Anything that does not carry exactly eleven digits is
// returned as-is with ok=false; the validation gate reports those.
func SNILS(raw string) (string, bool) {
	d := Digits(raw)
	if len(d) != 11 {
		return strings.TrimSpace(raw), false
	}
	return fmt.Sprintf("%s-%s-%s %s", d[0:3], d[3:6], d[6:9], d[9:11]), true
}

// YearsBetween measures the span between two ISO dates in years, rounded to
// one decimal. It returns 0 when either bound is missing or malformed or the
// range is inverted, so a single bad ledger row cannot poison the total.
func YearsBetween(startISO, endISO string) float64 {
	start, err := time.Parse(ISODate, startISO)
	if err != nil {
		return 0
	}
	end, err := time.Parse(ISODate, endISO)
	if err != nil {
		return 0
	}
	if end.Before(start) {
		return 0
	}
	days := end.Sub(start).Hours() / 24
	years := days / 365.25
	return float64(int(years*10+0.5)) / 10
}
