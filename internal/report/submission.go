// Package report turns a finished case into its downloadable artifact. A
// submission walks a fixed state machine: completeness check first (fatal on
// failure), then narrative analysis (degrades, never aborts), then assembly
// of the redacted plain-text report.
package report

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/komorreby/PFR-AI-sub000/internal/casecheck"
	"github.com/komorreby/PFR-AI-sub000/internal/narrative"
)

// State names one position in the submission lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateChecking   State = "checking_completeness"
	StateAnalyzing  State = "analyzing_narrative"
	StateAssembling State = "assembling"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Submission tracks one report run. Results appear on it as stages finish,
// so pollers see the completeness verdict before the narrative settles.
type Submission struct {
	Token     string
	CaseID    string
	CreatedAt time.Time

	mu           sync.Mutex
	state        State
	completeness *casecheck.Result
	narrative    *narrative.Result
	narrativeErr string
	failure      string
	text         string
	filename     string
	completedAt  time.Time
}

// Status is the poller's view of a submission.
type Status struct {
	Token        string            `json:"token"`
	CaseID       string            `json:"case_id"`
	State        State             `json:"state"`
	Completeness *casecheck.Result `json:"completeness,omitempty"`
	Narrative    *narrative.Result `json:"narrative,omitempty"`
	NarrativeErr string            `json:"narrative_error,omitempty"`
	Error        string            `json:"error,omitempty"`
	Ready        bool              `json:"ready"`
	Filename     string            `json:"filename,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}

// Status snapshots the current view under the lock.
func (s *Submission) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Status{
		Token:        s.Token,
		CaseID:       s.CaseID,
		State:        s.state,
		Completeness: s.completeness,
		Narrative:    s.narrative,
		NarrativeErr: s.narrativeErr,
		Error:        s.failure,
		Ready:        s.state == StateDone,
		Filename:     s.filename,
		CreatedAt:    s.CreatedAt,
	}
	if !s.completedAt.IsZero() {
		t := s.completedAt
		out.CompletedAt = &t
	}
	return out
}

// State returns the current lifecycle position.
func (s *Submission) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Artifact returns the assembled text and filename once the submission is
// done; ok is false before that.
func (s *Submission) Artifact() (text, filename string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateDone {
		return "", "", false
	}
	return s.text, s.filename, true
}

func (s *Submission) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Submission) setCompleteness(res casecheck.Result) {
	s.mu.Lock()
	s.completeness = &res
	s.mu.Unlock()
}

func (s *Submission) setNarrative(res narrative.Result) {
	s.mu.Lock()
	s.narrative = &res
	s.mu.Unlock()
}

func (s *Submission) setNarrativeError(msg string) {
	s.mu.Lock()
	s.narrativeErr = msg
	s.mu.Unlock()
}

func (s *Submission) fail(msg string) {
	s.mu.Lock()
	s.state = StateFailed
	s.failure = msg
	s.completedAt = time.Now()
	s.mu.Unlock()
}

func (s *Submission) complete(text, filename string) {
	s.mu.Lock()
	s.state = StateDone
	s.text = text
	s.filename = filename
	s.completedAt = time.Now()
	s.mu.Unlock()
}

// Store keeps submissions by token.
type Store struct {
	mu          sync.RWMutex
	submissions map[string]*Submission
}

func NewStore() *Store {
	return &Store{submissions: make(map[string]*Submission)}
}

// Create registers a new idle submission for a case.
func (s *Store) Create(caseID string) *Submission {
	sub := &Submission{
		Token:     uuid.New().String(),
		CaseID:    caseID,
		CreatedAt: time.Now(),
		state:     StateIdle,
	}
	s.mu.Lock()
	s.submissions[sub.Token] = sub
	s.mu.Unlock()
	return sub
}

// Get returns the submission or nil for an unknown token.
func (s *Store) Get(token string) *Submission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.submissions[token]
}
