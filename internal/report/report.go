package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/komorreby/PFR-AI-sub000/internal/casecheck"
	"github.com/komorreby/PFR-AI-sub000/internal/casefile"
	"github.com/komorreby/PFR-AI-sub000/internal/narrative"
	"github.com/komorreby/PFR-AI-sub000/internal/normalize"
	"github.com/komorreby/PFR-AI-sub000/internal/redact"
)

// Draft carries the two stage results into assembly. Either pointer may be
// nil; NarrativeErr is set when the analysis stage failed.
type Draft struct {
	Completeness *casecheck.Result
	Narrative    *narrative.Result
	NarrativeErr string
}

// Describe restates a case snapshot as a natural-language description for
// the analysis service. The description is built without names, birth dates,
// or insurance numbers, then passed through redaction as a second barrier in
// case a later edit reintroduces one.
func Describe(m casefile.CaseModel) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pension claim of type %q.\n", m.CaseType)

	switch m.Identity.Gender {
	case casefile.GenderMale:
		b.WriteString("The applicant is male")
	case casefile.GenderFemale:
		b.WriteString("The applicant is female")
	default:
		b.WriteString("The applicant's gender is not recorded")
	}
	if m.Identity.Citizenship != "" {
		fmt.Fprintf(&b, ", citizenship %s", m.Identity.Citizenship)
	}
	b.WriteString(".\n")
	if m.Identity.Dependents > 0 {
		fmt.Fprintf(&b, "The applicant supports %d dependent(s).\n", m.Identity.Dependents)
	}
	if m.Identity.NameChanged {
		b.WriteString("The applicant has changed their legal name in the past.\n")
	}

	if len(m.Employment.Records) > 0 || m.Employment.TotalYears > 0 {
		fmt.Fprintf(&b, "Declared total service: %.1f years across %d employment record(s).\n",
			m.Employment.TotalYears, len(m.Employment.Records))
	}
	if m.Disability != nil {
		fmt.Fprintf(&b, "Disability group %s, certificate on file, assigned %s.\n",
			m.Disability.Group, normalize.DateDisplay(m.Disability.AssignedAt))
	}
	if len(m.Benefits) > 0 {
		fmt.Fprintf(&b, "Benefit entitlements claimed: %s.\n", strings.Join(m.Benefits, ", "))
	}
	if len(m.SubmittedDocuments) > 0 {
		fmt.Fprintf(&b, "Supporting documents submitted: %s.\n", strings.Join(m.SubmittedDocuments, ", "))
	}
	if m.HasFlaggedDocument {
		b.WriteString("At least one submitted document was flagged for manual review.\n")
	}

	return redact.Apply(b.String(), subjectOf(m))
}

// BuildText assembles the final artifact: header, completeness section,
// narrative section, in that fixed order. The narrative text passes through
// redaction against the snapshot's identity before it is embedded.
func BuildText(caseID string, m casefile.CaseModel, d Draft) string {
	var b strings.Builder
	b.WriteString("PENSION CASE REPORT\n")
	b.WriteString("===================\n")
	fmt.Fprintf(&b, "Case:      %s\n", caseID)
	fmt.Fprintf(&b, "Case type: %s\n", m.CaseType)
	fmt.Fprintf(&b, "Date:      %s\n", time.Now().Format(normalize.DisplayDate))
	b.WriteString("\n")

	writeCompletenessSection(&b, d.Completeness)
	b.WriteString("\n")
	writeNarrativeSection(&b, m, d)
	return b.String()
}

func writeCompletenessSection(b *strings.Builder, res *casecheck.Result) {
	b.WriteString("DOCUMENT COMPLETENESS\n")
	b.WriteString("---------------------\n")
	if res == nil {
		b.WriteString("Completeness check unavailable.\n")
		return
	}
	for _, doc := range res.Documents {
		status := "missing"
		if doc.Present {
			status = "present"
		}
		label := doc.Label
		if label == "" {
			label = doc.ID
		}
		fmt.Fprintf(b, "  [%s] %s", status, label)
		if doc.Critical {
			b.WriteString(" (critical)")
		}
		b.WriteString("\n")
	}
	if len(res.MissingCritical) == 0 && len(res.MissingOther) == 0 {
		b.WriteString("All required documents are present.\n")
		return
	}
	if len(res.MissingCritical) > 0 {
		b.WriteString("Missing critical documents:\n")
		for _, name := range res.MissingCritical {
			fmt.Fprintf(b, "  - %s\n", name)
		}
	}
	if len(res.MissingOther) > 0 {
		b.WriteString("Missing other documents:\n")
		for _, name := range res.MissingOther {
			fmt.Fprintf(b, "  - %s\n", name)
		}
	}
}

func writeNarrativeSection(b *strings.Builder, m casefile.CaseModel, d Draft) {
	b.WriteString("ELIGIBILITY ANALYSIS\n")
	b.WriteString("--------------------\n")
	if d.Narrative == nil {
		reason := d.NarrativeErr
		if reason == "" {
			reason = "analysis was not performed"
		}
		fmt.Fprintf(b, "Eligibility analysis unavailable: %s\n", reason)
		return
	}
	fmt.Fprintf(b, "Confidence: %.0f%%\n\n", d.Narrative.Confidence*100)
	b.WriteString(redact.Apply(strings.TrimSpace(d.Narrative.Analysis), subjectOf(m)))
	b.WriteString("\n")
}

func subjectOf(m casefile.CaseModel) redact.Subject {
	return redact.Subject{
		LastName:   m.Identity.LastName,
		FirstName:  m.Identity.FirstName,
		MiddleName: m.Identity.MiddleName,
		BirthDate:  m.Identity.BirthDate,
		SNILS:      m.Identity.SNILS,
	}
}

// ArtifactFilename names the downloadable report after the case and the
// assembly date.
func ArtifactFilename(caseID string, at time.Time) string {
	return fmt.Sprintf("case-%s-%s.txt", sanitizeFilename(caseID), at.Format("2006-01-02"))
}

func sanitizeFilename(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "report"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, v)
}
