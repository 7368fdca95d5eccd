// Package reconcile folds asynchronous document-extraction results into a
// case model. Each document kind has one merge strategy; a result either
// applies completely or changes nothing.
package reconcile

import (
	"errors"
	"fmt"

	"github.com/komorreby/PFR-AI-sub000/internal/casefile"
	"github.com/komorreby/PFR-AI-sub000/internal/docscan"
	"github.com/komorreby/PFR-AI-sub000/internal/normalize"
)

// ErrMalformedResult reports a result whose payload does not match its kind.
var ErrMalformedResult = errors.New("malformed extraction result")

// ExtractionFailure is the error surfaced when the scanner itself reported
// failure. The model is untouched in that case.
type ExtractionFailure struct {
	DocumentKind string
	Message      string
}

func (e *ExtractionFailure) Error() string {
	return fmt.Sprintf("extraction failed for %s: %s", e.DocumentKind, e.Message)
}

// Routing targets for auxiliary-document labels.
const (
	RoutedBenefits  = "benefits"
	RoutedDocuments = "documents"
)

// benefitLabels is the closed set of standardized labels that grant a
// benefit entitlement. Every other label routes to the submitted-documents
// set.
var benefitLabels = map[string]bool{
	"veteran_certificate":          true,
	"disability_certificate":       true,
	"large_family_certificate":     true,
	"chernobyl_certificate":        true,
	"northern_service_certificate": true,
	"donor_certificate":            true,
}

// Outcome reports what a merge changed, for logging and for the upload
// endpoint's response.
type Outcome struct {
	Kind          docscan.DocumentKind `json:"kind"`
	UpdatedFields []string             `json:"updated_fields,omitempty"`
	RecordsAdded  int                  `json:"records_added,omitempty"`
	TotalYears    float64              `json:"total_years,omitempty"`
	Label         string               `json:"label,omitempty"`
	RoutedTo      string               `json:"routed_to,omitempty"`
	Flagged       bool                 `json:"flagged,omitempty"`
}

// Apply merges one extraction result into the model. Scanner output is
// authoritative at merge time: extracted fields overwrite earlier values,
// manual or scanned, without conflict checks. A KindError result performs no
// mutation and comes back as an *ExtractionFailure. The caller must hold the
// session lock.
func Apply(m *casefile.CaseModel, res docscan.ExtractionResult) (Outcome, error) {
	switch res.Kind {
	case docscan.KindPassport:
		if res.Passport == nil {
			return Outcome{}, fmt.Errorf("%w: passport kind without payload", ErrMalformedResult)
		}
		return applyPassport(m, res.Passport), nil
	case docscan.KindSNILS:
		if res.SNILS == nil {
			return Outcome{}, fmt.Errorf("%w: snils kind without payload", ErrMalformedResult)
		}
		return applySNILS(m, res.SNILS), nil
	case docscan.KindLedger:
		if res.Ledger == nil {
			return Outcome{}, fmt.Errorf("%w: ledger kind without payload", ErrMalformedResult)
		}
		return applyLedger(m, res.Ledger), nil
	case docscan.KindOther:
		if res.Other == nil {
			return Outcome{}, fmt.Errorf("%w: other kind without payload", ErrMalformedResult)
		}
		return applyOther(m, res.Other), nil
	case docscan.KindError:
		if res.Failure == nil {
			return Outcome{}, fmt.Errorf("%w: error kind without payload", ErrMalformedResult)
		}
		return Outcome{}, &ExtractionFailure{
			DocumentKind: res.Failure.DocumentKind,
			Message:      res.Failure.Message,
		}
	default:
		return Outcome{}, fmt.Errorf("%w: kind %q", ErrMalformedResult, res.Kind)
	}
}

// applyPassport overwrites each field the scanner extracted. Empty payload
// fields were not read off the document and leave the model alone. Dates
// that refuse every known layout become blank fields, never raw text.
func applyPassport(m *casefile.CaseModel, p *docscan.PassportData) Outcome {
	out := Outcome{Kind: docscan.KindPassport}
	set := func(path string, apply func()) {
		apply()
		out.UpdatedFields = append(out.UpdatedFields, path)
	}
	if p.LastName != "" {
		set(casefile.FieldLastName, func() { m.Identity.LastName = p.LastName })
	}
	if p.FirstName != "" {
		set(casefile.FieldFirstName, func() { m.Identity.FirstName = p.FirstName })
	}
	if p.MiddleName != "" {
		set(casefile.FieldMiddleName, func() { m.Identity.MiddleName = p.MiddleName })
	}
	if p.BirthDate != "" {
		set(casefile.FieldBirthDate, func() { m.Identity.BirthDate = normalizeDate(p.BirthDate) })
	}
	if p.Gender != "" {
		set(casefile.FieldGender, func() { m.Identity.Gender = MapGender(p.Gender) })
	}
	if p.Citizenship != "" {
		set(casefile.FieldCitizenship, func() { m.Identity.Citizenship = p.Citizenship })
	}
	return out
}

func applySNILS(m *casefile.CaseModel, s *docscan.SNILSData) Outcome {
	out := Outcome{Kind: docscan.KindSNILS}
	set := func(path string, apply func()) {
		apply()
		out.UpdatedFields = append(out.UpdatedFields, path)
	}
	if s.Number != "" {
		set(casefile.FieldSNILS, func() {
			if formatted, ok := normalize.SNILS(s.Number); ok {
				m.Identity.SNILS = formatted
			} else {
				m.Identity.SNILS = s.Number
			}
		})
	}
	if s.LastName != "" {
		set(casefile.FieldLastName, func() { m.Identity.LastName = s.LastName })
	}
	if s.FirstName != "" {
		set(casefile.FieldFirstName, func() { m.Identity.FirstName = s.FirstName })
	}
	if s.MiddleName != "" {
		set(casefile.FieldMiddleName, func() { m.Identity.MiddleName = s.MiddleName })
	}
	if s.BirthDate != "" {
		set(casefile.FieldBirthDate, func() { m.Identity.BirthDate = normalizeDate(s.BirthDate) })
	}
	return out
}

// applyLedger appends every parsed span and replaces the service-years total
// wholesale. When the scanner could not compute a total, one is recomputed
// from the normalized spans.
func applyLedger(m *casefile.CaseModel, l *docscan.LedgerData) Outcome {
	recs := make([]casefile.EmploymentRecord, 0, len(l.Records))
	for _, r := range l.Records {
		recs = append(recs, casefile.EmploymentRecord{
			Organization: r.Organization,
			Position:     r.Position,
			StartDate:    normalizeDate(r.StartDate),
			EndDate:      normalizeDate(r.EndDate),
		})
	}
	m.Employment.Records = append(m.Employment.Records, recs...)

	total := l.TotalYears
	if total <= 0 {
		for _, r := range m.Employment.Records {
			total += normalize.YearsBetween(r.StartDate, r.EndDate)
		}
	}
	m.Employment.TotalYears = total

	return Outcome{
		Kind:         docscan.KindLedger,
		RecordsAdded: len(recs),
		TotalYears:   m.Employment.TotalYears,
	}
}

// applyOther appends an auxiliary-document block and routes its standardized
// label into exactly one of the two label sets. A document with no usable
// label still leaves its block on the case.
func applyOther(m *casefile.CaseModel, o *docscan.OtherDocData) Outcome {
	doc := casefile.AuxiliaryDocument{
		RawType:      o.RawType,
		StandardType: o.StandardType,
		Flagged:      o.Flagged,
	}
	if o.Fields != nil {
		doc.Fields = make(map[string]string, len(o.Fields))
		for k, v := range o.Fields {
			doc.Fields[k] = v
		}
	}
	m.AuxiliaryDocuments = append(m.AuxiliaryDocuments, doc)
	if o.Flagged {
		m.HasFlaggedDocument = true
	}

	out := Outcome{Kind: docscan.KindOther, Flagged: o.Flagged}
	label := o.StandardType
	if label == "" {
		label = o.RawType
	}
	if label == "" {
		return out
	}
	out.Label = label
	if benefitLabels[label] {
		m.AddBenefit(label)
		out.RoutedTo = RoutedBenefits
	} else {
		m.AddSubmittedDocument(label)
		out.RoutedTo = RoutedDocuments
	}
	return out
}

func normalizeDate(raw string) string {
	iso, ok := normalize.Date(raw)
	if !ok {
		return ""
	}
	return iso
}
