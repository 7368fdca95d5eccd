// Package wizard owns the live intake sessions. A session holds one case
// model, the resolved step sequence, and the active position; every mutation
// goes through its lock so extraction results and form edits can interleave
// safely.
package wizard

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/komorreby/PFR-AI-sub000/internal/casefile"
	"github.com/komorreby/PFR-AI-sub000/internal/docscan"
	"github.com/komorreby/PFR-AI-sub000/internal/reconcile"
)

// Upload is one document the session has seen: where the file landed on
// disk and how extraction went. The ledger feeds the completeness check,
// which wants the identity-document file, and the session status view.
type Upload struct {
	ID       string               `json:"id"`
	Filename string               `json:"filename"`
	Path     string               `json:"-"`
	Declared string               `json:"declared_kind,omitempty"`
	Kind     docscan.DocumentKind `json:"kind,omitempty"`
	Status   string               `json:"status"`
	Error    string               `json:"error,omitempty"`
	At       time.Time            `json:"at"`
}

const (
	UploadExtracted = "extracted"
	UploadFailed    = "failed"
)

// AdvanceResult tells the caller whether the gate opened. Failed carries one
// finding per blocking field so the client can highlight them; Step is the
// step that is active after the attempt either way.
type AdvanceResult struct {
	Moved  bool                  `json:"moved"`
	Step   casefile.StepID       `json:"step"`
	Failed []casefile.FieldError `json:"failed,omitempty"`
}

// Session is a single applicant's wizard run. The zero sequence is the
// bootstrap list; everything else appears once a case type is chosen.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu      sync.Mutex
	model   casefile.CaseModel
	steps   []casefile.Step
	active  int
	uploads []Upload
}

// NewSession builds an empty session sitting on the selection step.
func NewSession(id string) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		steps:     casefile.ResolveSteps(""),
	}
}

// SelectCaseType records the chosen claim category and re-resolves the step
// sequence. An unrecognized key is logged and drops the session back to the
// bootstrap sequence instead of failing; the active index is clamped so it
// never points past the new list. Selecting away from disability removes the
// disability block.
func (s *Session) SelectCaseType(t casefile.CaseType) []casefile.Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	if casefile.KnownCaseType(t) {
		s.model.CaseType = t
		if t == casefile.CaseTypeDisability {
			if s.model.Disability == nil {
				s.model.Disability = &casefile.Disability{}
			}
		} else {
			s.model.Disability = nil
		}
	} else {
		log.Printf("wizard: session %s: unknown case type %q, keeping bootstrap sequence", s.ID, t)
		s.model.CaseType = ""
		s.model.Disability = nil
	}
	s.steps = casefile.ResolveSteps(s.model.CaseType)
	if s.active > len(s.steps)-1 {
		s.active = len(s.steps) - 1
	}
	return append([]casefile.Step(nil), s.steps...)
}

// Steps returns a copy of the resolved sequence and the active index.
func (s *Session) Steps() ([]casefile.Step, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]casefile.Step(nil), s.steps...), s.active
}

// Current returns the active step.
func (s *Session) Current() casefile.Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps[s.active]
}

// Requirements reports the field paths the gate will check on the next
// advance attempt from the current step.
func (s *Session) Requirements() (casefile.StepID, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	step := s.steps[s.active]
	return step.ID, casefile.RequiredFields(&s.model, step.ID)
}

// Advance runs the gate for the active step and moves forward only when
// every required field passes. The selection step has its own guard: it can
// be left only once a known case type is chosen, a rule that lives here
// because no field validator covers an unselected type.
func (s *Session) Advance() AdvanceResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	step := s.steps[s.active]

	if step.ID == casefile.StepCaseType && !casefile.KnownCaseType(s.model.CaseType) {
		return AdvanceResult{
			Step:   step.ID,
			Failed: []casefile.FieldError{{Path: casefile.FieldCaseType, Reason: "select a case type"}},
		}
	}

	required := casefile.RequiredFields(&s.model, step.ID)
	if failed := casefile.Validate(&s.model, required); len(failed) > 0 {
		return AdvanceResult{Step: step.ID, Failed: failed}
	}
	if s.active < len(s.steps)-1 {
		s.active++
		return AdvanceResult{Moved: true, Step: s.steps[s.active].ID}
	}
	return AdvanceResult{Step: step.ID}
}

// Back moves one step toward the start and reports the now-active step. It
// never validates; partial input is allowed to stay.
func (s *Session) Back() casefile.StepID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active > 0 {
		s.active--
	}
	return s.steps[s.active].ID
}

// SetField writes one model field under the session lock.
func (s *Session) SetField(path, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.SetField(path, value)
}

// FieldValue reads one model field under the session lock.
func (s *Session) FieldValue(path string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return casefile.Value(&s.model, path)
}

// AddEmploymentRecord appends an empty record and returns its index, which
// immediately joins the employment step's required set.
func (s *Session) AddEmploymentRecord() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model.Employment.Records = append(s.model.Employment.Records, casefile.EmploymentRecord{})
	return len(s.model.Employment.Records) - 1
}

// RemoveEmploymentRecord deletes the record at idx.
func (s *Session) RemoveEmploymentRecord(idx int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.model.Employment.Records
	if idx < 0 || idx >= len(recs) {
		return fmt.Errorf("wizard: record %d out of range", idx)
	}
	s.model.Employment.Records = append(recs[:idx], recs[idx+1:]...)
	return nil
}

// ApplyExtraction reconciles one completed extraction into the model.
// Results must be applied exactly once each; order follows completion order.
func (s *Session) ApplyExtraction(res docscan.ExtractionResult) (reconcile.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return reconcile.Apply(&s.model, res)
}

// RecordUpload appends one entry to the upload ledger.
func (s *Session) RecordUpload(u Upload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append(s.uploads, u)
}

// Uploads returns a copy of the ledger, newest last.
func (s *Session) Uploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Upload(nil), s.uploads...)
}

// IdentityDocumentPath returns the stored file path of the most recent
// successfully extracted identity document, or empty when none exists. The
// completeness check attaches that file when available.
func (s *Session) IdentityDocumentPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.uploads) - 1; i >= 0; i-- {
		u := s.uploads[i]
		if u.Kind == docscan.KindPassport && u.Status == UploadExtracted {
			return u.Path
		}
	}
	return ""
}

// Snapshot deep-copies the model. Report assembly works on snapshots so the
// session stays editable while remote stages run.
func (s *Session) Snapshot() casefile.CaseModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.Clone()
}
