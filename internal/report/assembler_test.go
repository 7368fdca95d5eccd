package report

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/komorreby/PFR-AI-sub000/internal/casecheck"
	"github.com/komorreby/PFR-AI-sub000/internal/casefile"
	"github.com/komorreby/PFR-AI-sub000/internal/narrative"
)

type fakeChecker struct {
	res   casecheck.Result
	err   error
	calls int
	last  casecheck.Request
}

func (f *fakeChecker) Check(_ context.Context, req casecheck.Request) (casecheck.Result, error) {
	f.calls++
	f.last = req
	return f.res, f.err
}

type fakeAnalyzer struct {
	res    narrative.Result
	err    error
	calls  int
	onCall func()
	last   string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, description string) (narrative.Result, error) {
	f.calls++
	f.last = description
	if f.onCall != nil {
		f.onCall()
	}
	return f.res, f.err
}

func snapshotForTest() casefile.CaseModel {
	return casefile.CaseModel{
		CaseType: casefile.CaseTypeRetirement,
		Identity: casefile.Identity{
			LastName:    "Иванов",
			FirstName:   "Иван",
			MiddleName:  "Иванович",
			BirthDate:   "1961-03-12",
			Gender:      casefile.GenderMale,
			SNILS:       "112-233-445 95",
			Citizenship: "RF",
		},
		Employment: casefile.Employment{
			TotalYears: 34.5,
			Records:    []casefile.EmploymentRecord{{Organization: "Завод №1", Position: "механик", StartDate: "1980-01-01", EndDate: "2014-06-30"}},
		},
		SubmittedDocuments: []string{"employment_ledger"},
		Benefits:           []string{"veteran_certificate"},
	}
}

func completenessForTest() casecheck.Result {
	return casecheck.Result{
		Documents: []casecheck.DocumentStatus{
			{ID: "passport", Label: "Passport", Present: true, Critical: true},
			{ID: "employment_ledger", Label: "Employment ledger", Present: true, Critical: true},
			{ID: "snils", Label: "Insurance certificate", Present: false, Critical: true},
			{ID: "photo", Label: "Photo", Present: false},
		},
		MissingCritical: []string{"Insurance certificate"},
		MissingOther:    []string{"Photo"},
	}
}

func TestCompletenessFailureIsFatal(t *testing.T) {
	checker := &fakeChecker{err: errors.New("service unavailable")}
	analyzer := &fakeAnalyzer{}
	a := NewAssembler(checker, analyzer)
	sub := NewStore().Create("case-1")

	err := a.Run(context.Background(), sub, snapshotForTest(), "", nil)
	if err == nil {
		t.Fatal("expected fatal error")
	}
	if got := StageNameFromError(err); got != "completeness" {
		t.Fatalf("stage = %q, want completeness", got)
	}
	if analyzer.calls != 0 {
		t.Fatalf("narrative called %d times after completeness failure", analyzer.calls)
	}
	if st := sub.State(); st != StateFailed {
		t.Fatalf("state = %s, want %s", st, StateFailed)
	}
	if _, _, ok := sub.Artifact(); ok {
		t.Fatal("failed submission must not expose an artifact")
	}
	status := sub.Status()
	if status.Error == "" || !strings.Contains(status.Error, "service unavailable") {
		t.Fatalf("status error = %q, want the completeness error verbatim", status.Error)
	}
}

func TestNarrativeFailureDegradesReport(t *testing.T) {
	checker := &fakeChecker{res: completenessForTest()}
	analyzer := &fakeAnalyzer{err: errors.New("model overloaded")}
	a := NewAssembler(checker, analyzer)
	sub := NewStore().Create("case-2")

	if err := a.Run(context.Background(), sub, snapshotForTest(), "", nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st := sub.State(); st != StateDone {
		t.Fatalf("state = %s, want %s", st, StateDone)
	}
	text, _, ok := sub.Artifact()
	if !ok {
		t.Fatal("degraded submission must still produce an artifact")
	}
	if !strings.Contains(text, "DOCUMENT COMPLETENESS") {
		t.Fatal("artifact missing completeness section")
	}
	if !strings.Contains(text, "Eligibility analysis unavailable: model overloaded") {
		t.Fatalf("artifact missing the unavailable notice:\n%s", text)
	}
	if sub.Status().NarrativeErr == "" {
		t.Fatal("status should carry the narrative error")
	}
}

func TestFullRunAssemblesRedactedReport(t *testing.T) {
	checker := &fakeChecker{res: completenessForTest()}
	analyzer := &fakeAnalyzer{res: narrative.Result{
		Analysis:   "Иванов Иван Иванович has 34.5 years of service, which supports the claim.",
		Confidence: 0.82,
	}}
	a := NewAssembler(checker, analyzer)
	sub := NewStore().Create("case-3")

	var stages []string
	progress := func(stage, _ string) { stages = append(stages, stage) }
	if err := a.Run(context.Background(), sub, snapshotForTest(), "/tmp/passport.jpg", progress); err != nil {
		t.Fatalf("Run: %v", err)
	}

	text, filename, ok := sub.Artifact()
	if !ok {
		t.Fatal("expected artifact")
	}
	if strings.Contains(text, "Иванов") {
		t.Fatalf("name survived redaction:\n%s", text)
	}
	if !strings.Contains(text, "Confidence: 82%") {
		t.Fatalf("missing confidence line:\n%s", text)
	}
	if idx := strings.Index(text, "DOCUMENT COMPLETENESS"); idx < 0 || idx > strings.Index(text, "ELIGIBILITY ANALYSIS") {
		t.Fatal("sections out of order")
	}
	if !strings.Contains(text, "Missing critical documents:") || !strings.Contains(text, "Insurance certificate") {
		t.Fatalf("missing-critical listing absent:\n%s", text)
	}
	if !strings.HasPrefix(filename, "case-case-3-") || !strings.HasSuffix(filename, ".txt") {
		t.Fatalf("filename = %q", filename)
	}
	if len(stages) != 3 || stages[0] != "completeness" || stages[1] != "narrative" || stages[2] != "assembly" {
		t.Fatalf("progress stages = %v", stages)
	}
	if checker.last.IdentityDocument != "/tmp/passport.jpg" {
		t.Fatalf("identity document not passed through: %q", checker.last.IdentityDocument)
	}
}

func TestCompletenessSurfacedBeforeNarrativeSettles(t *testing.T) {
	checker := &fakeChecker{res: completenessForTest()}
	analyzer := &fakeAnalyzer{res: narrative.Result{Analysis: "ok", Confidence: 0.5}}
	a := NewAssembler(checker, analyzer)
	sub := NewStore().Create("case-4")

	analyzer.onCall = func() {
		status := sub.Status()
		if status.Completeness == nil {
			t.Error("completeness result not visible while narrative stage runs")
		}
		if status.State != StateAnalyzing {
			t.Errorf("state during narrative = %s", status.State)
		}
	}
	if err := a.Run(context.Background(), sub, snapshotForTest(), "", nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRunRejectsStartedSubmission(t *testing.T) {
	checker := &fakeChecker{res: completenessForTest()}
	analyzer := &fakeAnalyzer{res: narrative.Result{Analysis: "ok", Confidence: 0.5}}
	a := NewAssembler(checker, analyzer)
	sub := NewStore().Create("case-5")

	if err := a.Run(context.Background(), sub, snapshotForTest(), "", nil); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := a.Run(context.Background(), sub, snapshotForTest(), "", nil); err == nil {
		t.Fatal("second Run on the same submission must fail")
	}
	if checker.calls != 1 {
		t.Fatalf("checker called %d times, want 1", checker.calls)
	}
}

func TestDescribeCarriesNoIdentity(t *testing.T) {
	desc := Describe(snapshotForTest())
	for _, trace := range []string{"Иванов", "Иван", "112-233-445 95", "1961-03-12", "12.03.1961"} {
		if strings.Contains(desc, trace) {
			t.Fatalf("description leaks %q:\n%s", trace, desc)
		}
	}
	if !strings.Contains(desc, "retirement") {
		t.Fatalf("description missing case type:\n%s", desc)
	}
	if !strings.Contains(desc, "34.5 years") {
		t.Fatalf("description missing service total:\n%s", desc)
	}
}
