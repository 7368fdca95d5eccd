// Package casefile holds the pension case model assembled during intake and
// the step machinery that drives the wizard over it: which steps a case type
// gets, and which fields must be filled before each step can be left.
package casefile

// CaseType keys a pension claim category. The wizard sequence and the
// document requirements both hang off this value.
type CaseType string

const (
	CaseTypeRetirement CaseType = "retirement"
	CaseTypeDisability CaseType = "disability"
	CaseTypeSurvivor   CaseType = "survivor"
	CaseTypeSocial     CaseType = "social"
)

// KnownCaseType reports whether t is one of the supported claim categories.
func KnownCaseType(t CaseType) bool {
	switch t {
	case CaseTypeRetirement, CaseTypeDisability, CaseTypeSurvivor, CaseTypeSocial:
		return true
	}
	return false
}

// Gender is the closed applicant gender set. Free-text scanner output is
// mapped into it by the reconciler; anything unrecognized stays GenderUnset.
type Gender string

const (
	GenderUnset  Gender = ""
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// PriorName records a previous legal name when the applicant reports a name
// change. ChangedAt is an ISO date.
type PriorName struct {
	LastName  string `json:"last_name"`
	ChangedAt string `json:"changed_at"`
}

// Identity carries the applicant's personal particulars. Dates are ISO.
// SNILS is stored in the canonical XXX-XXX-XXX XX form once known.
type Identity struct {
	LastName    string     `json:"last_name"`
	FirstName   string     `json:"first_name"`
	MiddleName  string     `json:"middle_name"`
	BirthDate   string     `json:"birth_date"`
	Gender      Gender     `json:"gender"`
	SNILS       string     `json:"snils"`
	Citizenship string     `json:"citizenship"`
	Dependents  int        `json:"dependents"`
	NameChanged bool       `json:"name_changed"`
	PriorName   *PriorName `json:"prior_name,omitempty"`
}

// EmploymentRecord is one workbook row: an employment span at one
// organization. Dates are ISO; a blank EndDate means still employed and is
// rejected by the gate on steps that validate employment.
type EmploymentRecord struct {
	Organization string `json:"organization"`
	Position     string `json:"position"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
}

// Employment aggregates the applicant's service history. TotalYears is the
// declared figure and is overwritten wholesale when a workbook scan arrives.
type Employment struct {
	TotalYears float64            `json:"total_years"`
	Records    []EmploymentRecord `json:"records"`
}

// Disability is present on the model only while the case type is
// disability; selecting any other type clears it.
type Disability struct {
	Group             string `json:"group"`
	CertificateNumber string `json:"certificate_number"`
	AssignedAt        string `json:"assigned_at"`
}

// AuxiliaryDocument is an appended block for a scanned document that is
// neither an identity document, a national ID card, nor a workbook.
// StandardType is the standardized label the scanner assigned; Fields holds
// whatever key/value pairs it extracted. Flagged marks documents the scanner
// wants an operator to look at.
type AuxiliaryDocument struct {
	RawType      string            `json:"raw_type"`
	StandardType string            `json:"standard_type"`
	Fields       map[string]string `json:"fields,omitempty"`
	Flagged      bool              `json:"flagged"`
}

// CaseModel is the single mutable record a wizard session builds up. All
// access goes through the owning session's lock; the model itself carries no
// synchronization.
type CaseModel struct {
	CaseType           CaseType            `json:"case_type"`
	Identity           Identity            `json:"identity"`
	Employment         Employment          `json:"employment"`
	Disability         *Disability         `json:"disability,omitempty"`
	Benefits           []string            `json:"benefits,omitempty"`
	SubmittedDocuments []string            `json:"submitted_documents,omitempty"`
	AuxiliaryDocuments []AuxiliaryDocument `json:"auxiliary_documents,omitempty"`
	HasFlaggedDocument bool                `json:"has_flagged_document"`
}

// HasBenefit reports whether the standardized benefit label is already on
// the case.
func (m *CaseModel) HasBenefit(label string) bool {
	return containsString(m.Benefits, label)
}

// HasSubmittedDocument reports whether the standardized document label is
// already on the case.
func (m *CaseModel) HasSubmittedDocument(label string) bool {
	return containsString(m.SubmittedDocuments, label)
}

// AddBenefit appends the label unless it is already present.
func (m *CaseModel) AddBenefit(label string) {
	if label == "" || m.HasBenefit(label) {
		return
	}
	m.Benefits = append(m.Benefits, label)
}

// AddSubmittedDocument appends the label unless it is already present.
func (m *CaseModel) AddSubmittedDocument(label string) {
	if label == "" || m.HasSubmittedDocument(label) {
		return
	}
	m.SubmittedDocuments = append(m.SubmittedDocuments, label)
}

// Clone returns a deep copy. Report assembly runs over clones so a live
// wizard session can keep mutating while a submission is in flight.
func (m *CaseModel) Clone() CaseModel {
	out := *m
	if m.Identity.PriorName != nil {
		pn := *m.Identity.PriorName
		out.Identity.PriorName = &pn
	}
	if m.Disability != nil {
		d := *m.Disability
		out.Disability = &d
	}
	out.Employment.Records = append([]EmploymentRecord(nil), m.Employment.Records...)
	out.Benefits = append([]string(nil), m.Benefits...)
	out.SubmittedDocuments = append([]string(nil), m.SubmittedDocuments...)
	if m.AuxiliaryDocuments != nil {
		out.AuxiliaryDocuments = make([]AuxiliaryDocument, len(m.AuxiliaryDocuments))
		for i, doc := range m.AuxiliaryDocuments {
			cp := doc
			if doc.Fields != nil {
				cp.Fields = make(map[string]string, len(doc.Fields))
				for k, v := range doc.Fields {
					cp.Fields[k] = v
				}
			}
			out.AuxiliaryDocuments[i] = cp
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
