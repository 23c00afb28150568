// Package pipeline drives a profile-generation job through its ordered
// stages: research, analysis, and writing with a bounded validation loop.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prospecthq/prospector/internal/ai"
	"github.com/prospecthq/prospector/internal/config"
	"github.com/prospecthq/prospector/internal/jobstore"
	"github.com/prospecthq/prospector/internal/search"
	"github.com/prospecthq/prospector/pkg/models"
)

// Sink receives progress from stage execution. Stages only emit events; they
// never touch job storage directly, which keeps a single writer per job.
type Sink interface {
	Progress(msg string, phase jobstore.Phase, step int)
	Milestone(msg string, phase jobstore.Phase, step int)
	Activity(handle string, activity models.ResearchActivity)
}

// Request is the input to one pipeline run.
type Request struct {
	SubjectName string
	SeedURLs    []string
}

// Runner executes the pipeline stages against the injected collaborators.
type Runner struct {
	gen    models.Generator
	search search.Client
	cfg    config.PipelineConfig
}

func NewRunner(gen models.Generator, searchClient search.Client, cfg config.PipelineConfig) *Runner {
	return &Runner{gen: gen, search: searchClient, cfg: cfg}
}

// Run executes the full pipeline. It returns the final payload, or an error
// when a stage failed beyond its retry budget, or the context's error when
// the job was cancelled. Cancellation is observed before each stage and after
// every external call.
func (r *Runner) Run(ctx context.Context, req Request, sink Sink) (*models.PipelineResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	research, err := r.conductResearch(ctx, req, sink)
	if err != nil {
		return nil, fmt.Errorf("research: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dossier, err := r.extractDossier(ctx, req.SubjectName, research.Sources, sink)
	if err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	profile, err := r.writeProfile(ctx, req.SubjectName, dossier.RawMarkdown, sink)
	if err != nil {
		return nil, fmt.Errorf("writing: %w", err)
	}

	sink.Milestone("Pipeline complete, preparing results...", jobstore.PhaseWriting, stepDone)

	return &models.PipelineResult{
		Research:  *research,
		Dossier:   *dossier,
		Profile:   *profile,
		Validated: profile.Validated,
	}, nil
}

// generate calls the provider inside the transient-retry envelope and
// discards any result that lands after cancellation.
func (r *Runner) generate(ctx context.Context, req models.GenerationRequest) (string, error) {
	var out *models.GenerationResult
	err := r.withRetry(ctx, "generate", func() error {
		var genErr error
		out, genErr = r.gen.Generate(ctx, req)
		return genErr
	})
	if err != nil {
		return "", err
	}
	// The remote call may complete in the window between cancellation and the
	// provider noticing. The local cancelled state wins; drop the result.
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return out.Text, nil
}

// withRetry retries fn on transient errors with exponential backoff, bounded
// by the configured retry budget. Non-transient errors escalate immediately.
func (r *Runner) withRetry(ctx context.Context, op string, fn func() error) error {
	backoff := r.cfg.RetryBackoff
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !transient(err) || attempt >= r.cfg.StageMaxRetries {
			return err
		}
		slog.Warn("transient stage error, retrying", "op", op, "attempt", attempt+1, "backoff", backoff, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func transient(err error) bool {
	return ai.Transient(err) || search.Transient(err)
}

// sleep waits for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
