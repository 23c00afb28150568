package pipeline

import (
	"fmt"
	"strings"

	"github.com/prospecthq/prospector/pkg/models"
)

// Prompt builders. The wording here is deliberately compact; prompt quality
// tuning happens against real providers, not in this package's tests.

const profileSystemPrompt = `You are a world-class research profiler. Write rich, evidence-grounded profiles in flowing prose. Every claim must trace to the supplied dossier.`

func identityPrompt(subjectName string, seedURLs []string) string {
	seeds := "None provided"
	if len(seedURLs) > 0 {
		seeds = strings.Join(seedURLs, ", ")
	}
	return fmt.Sprintf(`Determine who this subject most likely is and return a JSON object with fields "name", "organizations", and "domain_keywords".

Subject Name: %s
Seed URLs: %s

Resolve the identity of this subject.`, subjectName, seeds)
}

func queriesPrompt(subjectName string, identity models.Identity) string {
	return fmt.Sprintf(`Generate 8-12 search queries covering biography, interviews, philanthropy, public statements, and affiliations. Return a JSON array of {"query", "category"} objects.

Produce the search queries for this subject.

Subject: %s
Known organizations: %s
Domain keywords: %s`,
		subjectName,
		strings.Join(identity.Organizations, ", "),
		strings.Join(identity.DomainKeywords, ", "))
}

func briefPrompt(subjectName string, identity models.Identity) string {
	return fmt.Sprintf(`Research %s (%s) in depth and produce a concise brief: career arc, public positions, giving history, and notable relationships. Cite sources inline.`,
		subjectName, strings.Join(identity.Organizations, ", "))
}

func extractionPrompt(subjectName, title, url, content string) string {
	return fmt.Sprintf(`Extract behavioral evidence about %s from the source below: direct quotes, decisions, stated values, and interpersonal patterns. Note the source for each item.

SOURCE: %s (%s)

%s`, subjectName, title, url, content)
}

func synthesisPrompt(subjectName, evidence string) string {
	return fmt.Sprintf(`Synthesize the extracted evidence across behavioral dimensions (decision style, risk posture, relationship to institutions, communication register, giving philosophy, and the rest). Keep each dimension grounded in the evidence.

SUBJECT: %s

ALL EXTRACTED EVIDENCE:
%s`, subjectName, evidence)
}

func crossCuttingPrompt(subjectName, synthesis string) string {
	return fmt.Sprintf(`Generate the cross-cutting analysis: the core contradiction, the uncomfortable truth, and the underlying architecture connecting the dimensions.

SUBJECT: %s

DIMENSION SYNTHESES:
%s`, subjectName, synthesis)
}

func profilePrompt(subjectName, dossier string) string {
	return fmt.Sprintf(`Write the full profile of %s from this dossier.

DOSSIER:
%s`, subjectName, dossier)
}

func validationPrompt(subjectName, dossier, draft string) string {
	return fmt.Sprintf(`Review this profile of %s against the dossier. Reply with PASS or a critique listing the specific problems to fix.

DOSSIER:
%s

PROFILE:
%s`, subjectName, dossier, draft)
}

func regenerationPrompt(subjectName, dossier, draft, critique string) string {
	return fmt.Sprintf(`Rewrite the profile of %s addressing every point in the critique. Keep what already works.

DOSSIER:
%s

PREVIOUS DRAFT:
%s

CRITIQUE:
%s`, subjectName, dossier, draft, critique)
}
