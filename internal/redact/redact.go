// Package redact removes personal traces from operator-facing prose before
// it leaves the engine: names in their common written arrangements, birth
// dates in every layout the case pipeline produces, and insurance numbers in
// their usual renderings.
//
// Matching is done by hand over runes with case folding. The regexp package
// is no help here: RE2's \b word boundary is ASCII-only and never fires
// around Cyrillic words, which is exactly where these names live.
package redact

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/komorreby/PFR-AI-sub000/internal/normalize"
)

// Markers substituted for matched spans. The birth-date and ID markers are
// distinct from the name marker so a reviewer can still see what kind of
// datum was removed.
const (
	NameMarker = "[REDACTED]"
	DOBMarker  = "[DOB REDACTED]"
	IDMarker   = "[ID REDACTED]"
)

// Subject carries the finalized identity values to hunt for. BirthDate is
// ISO; SNILS is the canonical XXX-XXX-XXX XX form. Zero-value fields
// contribute no candidates, and a fully empty subject leaves text unchanged.
type Subject struct {
	LastName   string
	FirstName  string
	MiddleName string
	BirthDate  string
	SNILS      string
}

// Apply rewrites text with every subject trace replaced by its marker. The
// operation is idempotent: markers contain nothing the candidate generators
// produce, so a second pass finds no new matches.
func Apply(text string, s Subject) string {
	out := text
	for _, c := range nameCandidates(s) {
		out = replaceWord(out, c, NameMarker)
	}
	for _, c := range dateCandidates(s.BirthDate) {
		out = replaceWord(out, c, DOBMarker)
	}
	for _, c := range idCandidates(s.SNILS) {
		out = replaceWord(out, c, IDMarker)
	}
	return out
}

// nameCandidates builds the written arrangements of the subject's name:
// full-name orders, surname-with-initials forms, and the individual parts.
// Parts of one or two runes are too collision-prone to chase alone and only
// appear inside the combined forms. The list is deduplicated case
// insensitively and ordered longest first so a full match is never shadowed
// by one of its own pieces.
func nameCandidates(s Subject) []string {
	last := strings.TrimSpace(s.LastName)
	first := strings.TrimSpace(s.FirstName)
	middle := strings.TrimSpace(s.MiddleName)

	var cands []string
	add := func(c string) {
		if c != "" {
			cands = append(cands, c)
		}
	}

	if last != "" && first != "" {
		fi := initial(first)
		if middle != "" {
			mi := initial(middle)
			add(last + " " + first + " " + middle)
			add(first + " " + middle + " " + last)
			add(last + " " + fi + ". " + mi + ".")
			add(fi + ". " + mi + ". " + last)
			add(last + " " + fi + "." + mi + ".")
			add(fi + "." + mi + ". " + last)
		} else {
			add(last + " " + first)
			add(first + " " + last)
			add(last + " " + fi + ".")
			add(fi + ". " + last)
		}
	}
	for _, part := range []string{last, first, middle} {
		if utf8.RuneCountInString(part) > 2 {
			add(part)
		}
	}

	seen := make(map[string]bool, len(cands))
	uniq := cands[:0]
	for _, c := range cands {
		key := strings.ToLower(c)
		if seen[key] {
			continue
		}
		seen[key] = true
		uniq = append(uniq, c)
	}
	sort.Slice(uniq, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(uniq[i]), utf8.RuneCountInString(uniq[j])
		if li != lj {
			return li > lj
		}
		return uniq[i] < uniq[j]
	})
	return uniq
}

// dateCandidates renders the birth date in each layout the pipeline emits.
func dateCandidates(iso string) []string {
	if iso == "" {
		return nil
	}
	if _, ok := normalize.Date(iso); !ok {
		return nil
	}
	return []string{
		iso,
		normalize.DateDisplay(iso),
		normalize.DateSlash(iso),
	}
}

// idCandidates renders the insurance number canonically, as bare digits, and
// in the two separator styles scanners and typists produce.
func idCandidates(snils string) []string {
	digits := normalize.Digits(snils)
	if len(digits) != 11 {
		if s := strings.TrimSpace(snils); s != "" {
			return []string{s}
		}
		return nil
	}
	canonical, _ := normalize.SNILS(digits)
	grouped := digits[0:3] + " " + digits[3:6] + " " + digits[6:9] + " " + digits[9:11]
	hyphened := digits[0:3] + "-" + digits[3:6] + "-" + digits[6:9] + "-" + digits[9:11]
	return []string{canonical, hyphened, grouped, digits}
}

func initial(part string) string {
	r, _ := utf8.DecodeRuneInString(part)
	return string(r)
}

// replaceWord substitutes marker for every whole-word occurrence of token.
// Folding is per rune, so offsets in the folded text line up with the
// original; boundaries are any non-letter, non-digit rune or the text edge.
func replaceWord(text, token, marker string) string {
	tokenRunes := foldRunes([]rune(token))
	if len(tokenRunes) == 0 {
		return text
	}
	textRunes := []rune(text)
	folded := foldRunes(textRunes)

	var b strings.Builder
	b.Grow(len(text))
	i := 0
	for i < len(textRunes) {
		if matchAt(folded, tokenRunes, i) &&
			isBoundary(textRunes, i-1) &&
			isBoundary(textRunes, i+len(tokenRunes)) {
			b.WriteString(marker)
			i += len(tokenRunes)
			continue
		}
		b.WriteRune(textRunes[i])
		i++
	}
	return b.String()
}

func foldRunes(rs []rune) []rune {
	out := make([]rune, len(rs))
	for i, r := range rs {
		out[i] = unicode.ToLower(r)
	}
	return out
}

func matchAt(text, token []rune, at int) bool {
	if at+len(token) > len(text) {
		return false
	}
	for j, r := range token {
		if text[at+j] != r {
			return false
		}
	}
	return true
}

func isBoundary(text []rune, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	return !unicode.IsLetter(text[i]) && !unicode.IsDigit(text[i])
}
