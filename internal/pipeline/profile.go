package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/prospecthq/prospector/internal/jobstore"
	"github.com/prospecthq/prospector/pkg/models"
)

// writeProfile drafts the profile and runs the bounded validation loop:
// validate, and on a critique, regenerate with that feedback. Exhausting the
// attempt budget is not a failure; the last draft ships with Validated false
// so consumers can reflect reduced confidence.
func (r *Runner) writeProfile(ctx context.Context, subjectName, dossier string, sink Sink) (*models.ProfileResult, error) {
	sink.Progress("Writing profile draft...", jobstore.PhaseWriting, stepDraft)

	draft, err := r.generate(ctx, models.GenerationRequest{
		System:    profileSystemPrompt,
		Prompt:    profilePrompt(subjectName, dossier),
		MaxTokens: 10000,
	})
	if err != nil {
		return nil, err
	}

	maxAttempts := r.cfg.ValidationMaxAttempts
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sink.Progress(fmt.Sprintf("Quality check %d/%d...", attempt, maxAttempts),
			jobstore.PhaseWriting, interpolate(stepValidateBase, stepValidateSpan, attempt-1, maxAttempts))

		verdict, err := r.generate(ctx, models.GenerationRequest{
			System:    "You are a rigorous quality validator for research profiles.",
			Prompt:    validationPrompt(subjectName, dossier, draft),
			MaxTokens: 2000,
		})
		if err != nil {
			return nil, err
		}

		if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(verdict)), "PASS") {
			sink.Milestone("Profile complete", jobstore.PhaseWriting, stepValidateBase+stepValidateSpan)
			return &models.ProfileResult{
				SubjectName:      subjectName,
				Profile:          draft,
				ValidationPasses: attempt,
				Validated:        true,
			}, nil
		}

		if attempt < maxAttempts {
			sink.Progress("Improving profile based on feedback...", jobstore.PhaseWriting, 0)
			draft, err = r.generate(ctx, models.GenerationRequest{
				System:    profileSystemPrompt,
				Prompt:    regenerationPrompt(subjectName, dossier, draft, verdict),
				MaxTokens: 10000,
			})
			if err != nil {
				return nil, err
			}
		}
	}

	sink.Milestone("Profile ready (some checks may need review)", jobstore.PhaseWriting, stepValidateBase+stepValidateSpan)
	return &models.ProfileResult{
		SubjectName:      subjectName,
		Profile:          draft,
		ValidationPasses: 0,
		Validated:        false,
	}, nil
}
