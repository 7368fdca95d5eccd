package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/komorreby/PFR-AI-sub000/internal/casecheck"
	"github.com/komorreby/PFR-AI-sub000/internal/casefile"
	"github.com/komorreby/PFR-AI-sub000/internal/narrative"
)

// StageError tags a failure with the stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// StageNameFromError extracts the failing stage, or "submission" for errors
// raised outside any stage.
func StageNameFromError(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return "submission"
}

// StageProgressFn receives a short message as each stage starts.
type StageProgressFn func(stage, message string)

// CompletenessChecker is the slice of the completeness service the assembler
// needs; the casecheck HTTP client satisfies it.
type CompletenessChecker interface {
	Check(ctx context.Context, req casecheck.Request) (casecheck.Result, error)
}

// Assembler drives submissions through the two remote stages and assembles
// the final artifact. The completeness stage is fatal on failure; the
// narrative stage degrades the report instead of aborting it.
type Assembler struct {
	checker  CompletenessChecker
	analyzer narrative.Analyzer
	tracer   trace.Tracer
}

func NewAssembler(checker CompletenessChecker, analyzer narrative.Analyzer) *Assembler {
	return &Assembler{
		checker:  checker,
		analyzer: analyzer,
		tracer:   otel.Tracer("intake/report"),
	}
}

// Run executes one submission over an immutable case snapshot. The snapshot
// is taken by the caller before Run starts, so the live session can keep
// changing underneath without bleeding into the report. Each submission runs
// exactly once; results land on sub as stages settle, so pollers see the
// completeness verdict before the narrative finishes.
func (a *Assembler) Run(ctx context.Context, sub *Submission, snapshot casefile.CaseModel, identityDocPath string, progress StageProgressFn) error {
	if st := sub.State(); st != StateIdle {
		return fmt.Errorf("submission %s already started (state %s)", sub.Token, st)
	}

	completeness, err := a.runCompleteness(ctx, sub, snapshot, identityDocPath, progress)
	if err != nil {
		sub.fail(err.Error())
		return &StageError{Stage: "completeness", Err: err}
	}
	sub.setCompleteness(completeness)

	// The narrative stage runs unconditionally once completeness has
	// settled successfully. Its failure is recorded, not propagated: the
	// report still ships with an explicit unavailable section.
	analysis, analysisErr := a.runNarrative(ctx, sub, snapshot, progress)
	if analysisErr != nil {
		sub.setNarrativeError(analysisErr.Error())
	} else {
		sub.setNarrative(analysis)
	}

	sub.setState(StateAssembling)
	emit(progress, "assembly", "Assembling final report...")
	draft := Draft{Completeness: &completeness}
	if analysisErr == nil {
		draft.Narrative = &analysis
	} else {
		draft.NarrativeErr = analysisErr.Error()
	}
	text := BuildText(sub.CaseID, snapshot, draft)
	sub.complete(text, ArtifactFilename(sub.CaseID, time.Now()))
	return nil
}

func (a *Assembler) runCompleteness(ctx context.Context, sub *Submission, snapshot casefile.CaseModel, identityDocPath string, progress StageProgressFn) (casecheck.Result, error) {
	sub.setState(StateChecking)
	emit(progress, "completeness", "Checking document completeness...")
	ctx, span := a.tracer.Start(ctx, "completeness_check")
	defer span.End()

	res, err := a.checker.Check(ctx, casecheck.Request{
		CaseType:         string(snapshot.CaseType),
		KnownDocuments:   knownDocuments(snapshot),
		IdentityDocument: identityDocPath,
	})
	if err != nil {
		span.RecordError(err)
		return casecheck.Result{}, err
	}
	return res, nil
}

func (a *Assembler) runNarrative(ctx context.Context, sub *Submission, snapshot casefile.CaseModel, progress StageProgressFn) (narrative.Result, error) {
	sub.setState(StateAnalyzing)
	emit(progress, "narrative", "Running eligibility analysis...")
	ctx, span := a.tracer.Start(ctx, "narrative_analysis")
	defer span.End()

	res, err := a.analyzer.Analyze(ctx, Describe(snapshot))
	if err != nil {
		span.RecordError(err)
		return narrative.Result{}, err
	}
	return res, nil
}

// knownDocuments collects every standardized document label the case has
// accumulated, benefit-routed or not; the completeness service matches them
// against the case type's requirement list.
func knownDocuments(m casefile.CaseModel) []string {
	out := append([]string(nil), m.SubmittedDocuments...)
	out = append(out, m.Benefits...)
	return out
}

func emit(progress StageProgressFn, stage, message string) {
	if progress != nil {
		progress(stage, message)
	}
}
