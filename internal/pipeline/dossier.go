package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prospecthq/prospector/internal/jobstore"
	"github.com/prospecthq/prospector/pkg/models"
)

// minSnippetLen filters out sources too thin to extract anything from.
const minSnippetLen = 100

// extractDossier mines behavioral evidence from each source, then synthesizes
// it into a dossier with a cross-cutting analysis.
func (r *Runner) extractDossier(ctx context.Context, subjectName string, sources []models.Source, sink Sink) (*models.DossierResult, error) {
	if len(sources) > r.cfg.MaxSources {
		sources = sources[:r.cfg.MaxSources]
	}
	sink.Progress(fmt.Sprintf("Analyzing top %d sources for behavioral patterns", len(sources)), jobstore.PhaseAnalysis, stepExtractBase)

	var evidence []string
	var failed, skipped int
	for i, source := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if source.Content == "" && len(source.Snippet) < minSnippetLen {
			skipped++
			continue
		}

		sink.Progress(fmt.Sprintf("Extracting patterns from source %d/%d...", i+1, len(sources)),
			jobstore.PhaseAnalysis, interpolate(stepExtractBase, stepExtractSpan, i, len(sources)))

		extraction, err := r.extractSource(ctx, subjectName, source)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// A single bad source is tolerated; synthesis works off the rest.
			failed++
			slog.Warn("source extraction failed", "url", source.URL, "error", err)
			continue
		}
		evidence = append(evidence, fmt.Sprintf("Source: %s\n\n%s", source.URL, extraction))

		// Pacing between provider calls to stay inside token rate limits.
		if err := sleep(ctx, r.cfg.InterCallDelay); err != nil {
			return nil, err
		}
	}
	slog.Info("extraction complete", "succeeded", len(evidence), "failed", failed, "skipped", skipped)

	sink.Progress("Synthesizing behavioral dimensions...", jobstore.PhaseAnalysis, stepSynthesis)
	synthesis, err := r.generate(ctx, models.GenerationRequest{
		System:    "You are synthesizing behavioral patterns for research profiling.",
		Prompt:    synthesisPrompt(subjectName, strings.Join(evidence, "\n\n---\n\n")),
		MaxTokens: 12000,
	})
	if err != nil {
		return nil, err
	}

	sink.Progress("Identifying contradictions and patterns...", jobstore.PhaseAnalysis, stepCross)
	crossCutting, err := r.generate(ctx, models.GenerationRequest{
		System: "You are identifying cross-cutting patterns in subject behavior.",
		Prompt: crossCuttingPrompt(subjectName, synthesis),
	})
	if err != nil {
		return nil, err
	}

	sink.Milestone("Behavioral dossier complete", jobstore.PhaseAnalysis, stepDossier)

	return &models.DossierResult{
		SubjectName:     subjectName,
		SourcesAnalyzed: len(evidence),
		Synthesis:       synthesis,
		CrossCutting:    crossCutting,
		RawMarkdown:     dossierMarkdown(subjectName, synthesis, crossCutting, evidence),
	}, nil
}

// extractSource runs one extraction under its own timeout so a hung provider
// call costs one source, not the stage.
func (r *Runner) extractSource(ctx context.Context, subjectName string, source models.Source) (string, error) {
	extractCtx, cancel := context.WithTimeout(ctx, r.cfg.ExtractionTimeout)
	defer cancel()

	content := source.Content
	if content == "" {
		content = source.Snippet
	}

	return r.generate(extractCtx, models.GenerationRequest{
		System:    "You are extracting behavioral evidence for research profiling.",
		Prompt:    extractionPrompt(subjectName, source.Title, source.URL, content),
		MaxTokens: 4096,
	})
}

func dossierMarkdown(subjectName, synthesis, crossCutting string, evidence []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# BEHAVIORAL DOSSIER: %s\n\n", subjectName)
	fmt.Fprintf(&b, "Generated: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Sources Analyzed: %d\n\n---\n\n", len(evidence))
	fmt.Fprintf(&b, "## DIMENSION ANALYSIS\n\n%s\n\n---\n\n", synthesis)
	fmt.Fprintf(&b, "## CROSS-CUTTING ANALYSIS\n\n%s\n\n---\n\n", crossCutting)
	b.WriteString("## SOURCE EVIDENCE\n\n")
	b.WriteString(strings.Join(evidence, "\n\n---\n\n"))
	b.WriteString("\n")
	return b.String()
}
