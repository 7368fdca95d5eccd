package reconcile

import (
	"strings"

	"github.com/komorreby/PFR-AI-sub000/internal/casefile"
)

// Scanners return the gender field as printed: "МУЖ.", "жен", "Male" and so
// on. Matching is a case-insensitive prefix test against known tokens; the
// longest tokens are tried first.
var genderTokens = []struct {
	prefix string
	gender casefile.Gender
}{
	{"муж", casefile.GenderMale},
	{"жен", casefile.GenderFemale},
	{"male", casefile.GenderMale},
	{"female", casefile.GenderFemale},
	{"м", casefile.GenderMale},
	{"ж", casefile.GenderFemale},
	{"m", casefile.GenderMale},
	{"f", casefile.GenderFemale},
}

// MapGender folds free-text scanner output into the closed gender set.
// Anything unrecognized maps to GenderUnset rather than guessing.
func MapGender(raw string) casefile.Gender {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.Trim(s, ".")
	if s == "" {
		return casefile.GenderUnset
	}
	for _, t := range genderTokens {
		if strings.HasPrefix(s, t.prefix) {
			return t.gender
		}
	}
	return casefile.GenderUnset
}
