package pipeline

// The step plan maps pipeline progress onto the linear 1..38 scale the
// default totalSteps estimate advertises. The job store clamps steps to a
// job's totalSteps, so a smaller configured estimate degrades gracefully.
const (
	stepIdentity = 1
	stepQueries  = 2
	// searches advance stepSearchBase+1 .. stepSearchBase+stepSearchSpan
	stepSearchBase = 2
	stepSearchSpan = 4
	stepSources    = 7
	stepBrief      = 8
	// source extraction advances stepExtractBase+1 .. stepExtractBase+stepExtractSpan
	stepExtractBase = 8
	stepExtractSpan = 22
	stepSynthesis   = 31
	stepCross       = 32
	stepDossier     = 33
	stepDraft       = 34
	// validation attempts advance stepValidateBase+1 .. stepValidateBase+stepValidateSpan
	stepValidateBase = 34
	stepValidateSpan = 3
	stepDone         = 38
)

// interpolate maps item i of n onto base+1 .. base+span, never regressing.
func interpolate(base, span, i, n int) int {
	if n <= 0 {
		return base
	}
	step := base + (i*span)/n + 1
	if step > base+span {
		step = base + span
	}
	return step
}
