package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/prospecthq/prospector/internal/jobstore"
	"github.com/prospecthq/prospector/pkg/models"
)

var (
	jsonObjectRE = regexp.MustCompile(`(?s)\{.*\}`)
	jsonArrayRE  = regexp.MustCompile(`(?s)\[.*\]`)
)

// conductResearch resolves the subject's identity, generates search angles,
// executes them against the search provider, and finishes with a background
// deep-research brief whose activity streams into the job record.
func (r *Runner) conductResearch(ctx context.Context, req Request, sink Sink) (*models.ResearchResult, error) {
	sink.Progress(fmt.Sprintf("Identifying %s...", req.SubjectName), jobstore.PhaseResearch, stepIdentity)

	identity, err := r.resolveIdentity(ctx, req)
	if err != nil {
		return nil, err
	}

	queries, err := r.generateQueries(ctx, req.SubjectName, identity)
	if err != nil {
		return nil, err
	}
	sink.Progress(fmt.Sprintf("Searching %d research angles...", len(queries)), jobstore.PhaseResearch, stepQueries)

	// A single failed query does not sink the stage; research degrades to
	// whatever the remaining queries return.
	var collected []models.Source
	for i, q := range queries {
		results, searchErr := r.search.Search(ctx, q.Query)
		if searchErr != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("search query failed", "query", q.Query, "error", searchErr)
			continue
		}
		collected = append(collected, results...)
		sink.Progress(fmt.Sprintf("Found %d potential sources", len(collected)),
			jobstore.PhaseResearch, interpolate(stepSearchBase, stepSearchSpan, i, len(queries)))
	}

	sources := dedupeByURL(collected)
	sink.Milestone(fmt.Sprintf("Research complete: %d sources", len(sources)), jobstore.PhaseResearch, stepSources)

	brief, err := r.deepResearchBrief(ctx, req.SubjectName, identity, sink)
	if err != nil {
		return nil, err
	}
	if brief != "" {
		sink.Milestone("Deep research brief ready", jobstore.PhaseResearch, stepBrief)
	}

	return &models.ResearchResult{
		SubjectName: req.SubjectName,
		Identity:    identity,
		Queries:     queries,
		Sources:     sources,
		RawMarkdown: researchMarkdown(req.SubjectName, identity, queries, sources, brief),
	}, nil
}

func (r *Runner) resolveIdentity(ctx context.Context, req Request) (models.Identity, error) {
	text, err := r.generate(ctx, models.GenerationRequest{
		System: "You are a research assistant.",
		Prompt: identityPrompt(req.SubjectName, req.SeedURLs),
	})
	if err != nil {
		return models.Identity{}, err
	}

	// Malformed model output falls back to a bare identity rather than
	// failing the stage.
	identity := models.Identity{Name: req.SubjectName}
	if raw := jsonObjectRE.FindString(text); raw != "" {
		if jsonErr := json.Unmarshal([]byte(raw), &identity); jsonErr != nil {
			identity = models.Identity{Name: req.SubjectName}
		}
	}
	if identity.Name == "" {
		identity.Name = req.SubjectName
	}
	return identity, nil
}

func (r *Runner) generateQueries(ctx context.Context, subjectName string, identity models.Identity) ([]models.ResearchQuery, error) {
	text, err := r.generate(ctx, models.GenerationRequest{
		System: "You are a research strategist.",
		Prompt: queriesPrompt(subjectName, identity),
	})
	if err != nil {
		return nil, err
	}

	var queries []models.ResearchQuery
	if raw := jsonArrayRE.FindString(text); raw != "" {
		if jsonErr := json.Unmarshal([]byte(raw), &queries); jsonErr != nil {
			queries = nil
		}
	}
	if len(queries) == 0 {
		queries = fallbackQueries(subjectName)
	}
	return queries, nil
}

// deepResearchBrief runs a provider-side background research operation when
// the provider supports one, streaming activity into the sink. The operation
// handle it records is what a later cancel uses to stop the remote job.
func (r *Runner) deepResearchBrief(ctx context.Context, subjectName string, identity models.Identity, sink Sink) (string, error) {
	start := time.Now()
	text, err := r.generate(ctx, models.GenerationRequest{
		System:     "You are a deep research analyst.",
		Prompt:     briefPrompt(subjectName, identity),
		Background: true,
		OnActivity: func(handle string, activity models.ResearchActivity) {
			sink.Activity(handle, activity)
		},
	})
	if err != nil {
		return "", err
	}
	slog.Info("deep research brief complete", "subject", subjectName, "elapsed", time.Since(start))
	return text, nil
}

func fallbackQueries(subjectName string) []models.ResearchQuery {
	return []models.ResearchQuery{
		{Query: fmt.Sprintf("%q biography", subjectName), Category: "BIOGRAPHY"},
		{Query: fmt.Sprintf("%q interview", subjectName), Category: "INTERVIEWS"},
		{Query: fmt.Sprintf("%q philanthropy", subjectName), Category: "PHILANTHROPY"},
		{Query: fmt.Sprintf("%q podcast", subjectName), Category: "INTERVIEWS"},
	}
}

func dedupeByURL(sources []models.Source) []models.Source {
	seen := make(map[string]bool, len(sources))
	unique := make([]models.Source, 0, len(sources))
	for _, s := range sources {
		if seen[s.URL] {
			continue
		}
		seen[s.URL] = true
		unique = append(unique, s)
	}
	return unique
}

func researchMarkdown(subjectName string, identity models.Identity, queries []models.ResearchQuery, sources []models.Source, brief string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# RAW RESEARCH: %s\n", subjectName)
	fmt.Fprintf(&b, "Generated: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Sources: %d\n\n", len(sources))

	b.WriteString("## Identity Resolution\n")
	if raw, err := json.MarshalIndent(identity, "", "  "); err == nil {
		fmt.Fprintf(&b, "```json\n%s\n```\n\n", raw)
	}

	b.WriteString("## Search Queries\n")
	for _, q := range queries {
		fmt.Fprintf(&b, "- [%s] %s\n", q.Category, q.Query)
	}
	b.WriteString("\n")

	if brief != "" {
		fmt.Fprintf(&b, "## Deep Research Brief\n%s\n\n", brief)
	}

	b.WriteString("## Sources\n")
	for i, s := range sources {
		fmt.Fprintf(&b, "### %d. %s\nURL: %s\nSnippet: %s\n\n", i+1, s.Title, s.URL, s.Snippet)
	}
	return b.String()
}
