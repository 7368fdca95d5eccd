package casefile

// StepID names a wizard screen. IDs are wire-stable: clients and archived
// sessions reference them.
type StepID string

const (
	StepCaseType   StepID = "case_type"
	StepDocuments  StepID = "documents"
	StepIdentity   StepID = "identity"
	StepEmployment StepID = "employment"
	StepDisability StepID = "disability"
	StepExtras     StepID = "extras"
	StepSummary    StepID = "summary"
)

// Step is one entry in a resolved wizard sequence.
type Step struct {
	ID    StepID `json:"id"`
	Title string `json:"title"`
}

var stepCatalog = map[StepID]Step{
	StepCaseType:   {ID: StepCaseType, Title: "Case Type"},
	StepDocuments:  {ID: StepDocuments, Title: "Supporting Documents"},
	StepIdentity:   {ID: StepIdentity, Title: "Personal Details"},
	StepEmployment: {ID: StepEmployment, Title: "Employment History"},
	StepDisability: {ID: StepDisability, Title: "Disability Details"},
	StepExtras:     {ID: StepExtras, Title: "Benefits and Extras"},
	StepSummary:    {ID: StepSummary, Title: "Review and Submit"},
}

// StepByID looks a step up in the catalog.
func StepByID(id StepID) (Step, bool) {
	s, ok := stepCatalog[id]
	return s, ok
}
