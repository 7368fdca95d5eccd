package casefile

// stepPrefix opens the sequence of every known case type: pick the claim
// category, upload documents, confirm personal details.
var stepPrefix = []StepID{StepCaseType, StepDocuments, StepIdentity}

// stepSuffix maps a case type to the steps that follow the shared prefix.
// Resolution is exact-match only; there is no partial or fuzzy matching on
// the key.
var stepSuffix = map[CaseType][]StepID{
	CaseTypeRetirement: {StepEmployment, StepExtras, StepSummary},
	CaseTypeDisability: {StepDisability, StepExtras, StepSummary},
	CaseTypeSurvivor:   {StepEmployment, StepExtras, StepSummary},
	CaseTypeSocial:     {StepExtras, StepSummary},
}

// ResolveSteps returns the full wizard sequence for a case type. An empty or
// unrecognized type yields the bootstrap sequence, just the selection step,
// so a session always has somewhere to stand and an unexpected key never
// fabricates a claim flow. Callers that care can tell the two apart with
// KnownCaseType. The returned slice is freshly allocated on every call.
func ResolveSteps(t CaseType) []Step {
	var ids []StepID
	if KnownCaseType(t) {
		ids = append(append(ids, stepPrefix...), stepSuffix[t]...)
	} else {
		ids = append(ids, StepCaseType)
	}
	out := make([]Step, 0, len(ids))
	for _, id := range ids {
		step, ok := stepCatalog[id]
		if !ok {
			continue
		}
		out = append(out, step)
	}
	return out
}
