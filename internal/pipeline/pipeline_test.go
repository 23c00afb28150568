package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prospecthq/prospector/internal/ai"
	"github.com/prospecthq/prospector/internal/ai/mock"
	"github.com/prospecthq/prospector/internal/config"
	"github.com/prospecthq/prospector/internal/jobstore"
	"github.com/prospecthq/prospector/internal/pipeline"
	"github.com/prospecthq/prospector/pkg/models"
)

// --- stub search client ---

type stubSearch struct {
	mu      sync.Mutex
	results []models.Source
	err     error
	calls   int
}

func (s *stubSearch) Search(_ context.Context, _ string) ([]models.Source, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func (s *stubSearch) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// --- recording sink ---

type recordingSink struct {
	mu         sync.Mutex
	messages   []string
	milestones []string
	activities []models.ResearchActivity
}

func (r *recordingSink) Progress(msg string, _ jobstore.Phase, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *recordingSink) Milestone(msg string, _ jobstore.Phase, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.milestones = append(r.milestones, msg)
}

func (r *recordingSink) Activity(_ string, activity models.ResearchActivity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activities = append(r.activities, activity)
}

func (r *recordingSink) Milestones() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.milestones...)
}

func testConfig() config.PipelineConfig {
	return config.PipelineConfig{
		TotalSteps:            38,
		MaxSources:            50,
		ExtractionTimeout:     time.Second,
		InterCallDelay:        0,
		StageMaxRetries:       2,
		RetryBackoff:          time.Millisecond,
		ValidationMaxAttempts: 3,
	}
}

func testSources() []models.Source {
	long := strings.Repeat("Behavioral evidence about the subject. ", 5)
	return []models.Source{
		{URL: "https://example.com/bio", Title: "Biography", Snippet: long},
		{URL: "https://example.com/interview", Title: "Interview", Snippet: long},
		{URL: "https://example.com/bio", Title: "Biography (dup)", Snippet: long},
	}
}

func TestRun_EndToEnd(t *testing.T) {
	gen := mock.NewProvider()
	search := &stubSearch{results: testSources()}
	sink := &recordingSink{}
	runner := pipeline.NewRunner(gen, search, testConfig())

	result, err := runner.Run(context.Background(), pipeline.Request{SubjectName: "Ada Lovelace"}, sink)
	require.NoError(t, err)
	require.NotNil(t, result)

	// Duplicate URLs collapse to one source.
	assert.Len(t, result.Research.Sources, 2)
	assert.True(t, result.Validated)
	assert.True(t, result.Profile.Validated)
	assert.Equal(t, 1, result.Profile.ValidationPasses)
	assert.NotEmpty(t, result.Profile.Profile)
	assert.NotEmpty(t, result.Dossier.Synthesis)

	milestones := sink.Milestones()
	assert.Contains(t, milestones, "Research complete: 2 sources")
	assert.Contains(t, milestones, "Behavioral dossier complete")
	assert.Contains(t, milestones, "Profile complete")
	assert.Equal(t, "Pipeline complete, preparing results...", milestones[len(milestones)-1])
}

func TestRun_TransientErrorsRetried(t *testing.T) {
	inner := mock.NewProvider()
	var mu sync.Mutex
	failures := 0
	gen := &mock.Provider{
		Name_: "mock",
		GenerateFunc: func(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error) {
			mu.Lock()
			shouldFail := failures < 2
			if shouldFail {
				failures++
			}
			mu.Unlock()
			if shouldFail {
				return nil, fmt.Errorf("provider: %w", ai.ErrRateLimited)
			}
			return inner.Generate(ctx, req)
		},
	}

	runner := pipeline.NewRunner(gen, &stubSearch{results: testSources()}, testConfig())

	result, err := runner.Run(context.Background(), pipeline.Request{SubjectName: "Ada"}, &recordingSink{})
	require.NoError(t, err)
	require.NotNil(t, result)
}

func TestRun_TransientBudgetExhausted(t *testing.T) {
	gen := mock.NewFailingProvider(fmt.Errorf("provider: %w", ai.ErrProviderUnavailable))
	runner := pipeline.NewRunner(gen, &stubSearch{}, testConfig())

	_, err := runner.Run(context.Background(), pipeline.Request{SubjectName: "Ada"}, &recordingSink{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ai.ErrProviderUnavailable)
	assert.Contains(t, err.Error(), "research:")
	// One initial attempt plus the configured retries.
	assert.Equal(t, 3, gen.Calls())
}

func TestRun_FatalErrorNotRetried(t *testing.T) {
	gen := mock.NewFailingProvider(errors.New("invalid request body"))
	runner := pipeline.NewRunner(gen, &stubSearch{}, testConfig())

	_, err := runner.Run(context.Background(), pipeline.Request{SubjectName: "Ada"}, &recordingSink{})
	require.Error(t, err)
	assert.Equal(t, 1, gen.Calls())
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := mock.NewProvider()
	runner := pipeline.NewRunner(gen, &stubSearch{}, testConfig())

	_, err := runner.Run(ctx, pipeline.Request{SubjectName: "Ada"}, &recordingSink{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, gen.Calls())
}

func TestRun_CancelMidStage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := mock.NewBlockingProvider()
	runner := pipeline.NewRunner(gen, &stubSearch{}, testConfig())

	errCh := make(chan error, 1)
	go func() {
		_, err := runner.Run(ctx, pipeline.Request{SubjectName: "Ada"}, &recordingSink{})
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("run did not observe cancellation")
	}
}

func TestRun_SearchFailuresTolerated(t *testing.T) {
	gen := mock.NewProvider()
	search := &stubSearch{err: errors.New("search down")}
	runner := pipeline.NewRunner(gen, search, testConfig())

	result, err := runner.Run(context.Background(), pipeline.Request{SubjectName: "Ada"}, &recordingSink{})
	require.NoError(t, err)
	assert.Empty(t, result.Research.Sources)
	assert.Greater(t, search.Calls(), 0)
}

// scriptedGenerate answers like the canned mock but always critiques drafts,
// so the validation loop runs to exhaustion.
func scriptedGenerate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error) {
	prompt := strings.ToLower(req.Prompt)
	switch {
	case strings.Contains(prompt, "resolve the identity"):
		return &models.GenerationResult{Text: `{"name": "Ada"}`}, nil
	case strings.Contains(prompt, "search queries"):
		return &models.GenerationResult{Text: `[{"query": "\"Ada\" biography", "category": "BIOGRAPHY"}]`}, nil
	case strings.Contains(prompt, "pass or a critique"):
		return &models.GenerationResult{Text: "The draft lacks specific behavioral evidence."}, nil
	default:
		return &models.GenerationResult{Text: "Generated text."}, nil
	}
}

func TestRun_ValidationExhaustionSoftDegrades(t *testing.T) {
	gen := &mock.Provider{Name_: "mock", GenerateFunc: scriptedGenerate}
	sink := &recordingSink{}
	runner := pipeline.NewRunner(gen, &stubSearch{results: testSources()}, testConfig())

	result, err := runner.Run(context.Background(), pipeline.Request{SubjectName: "Ada"}, sink)
	require.NoError(t, err, "exhausting the validation budget is not a failure")

	assert.False(t, result.Validated)
	assert.False(t, result.Profile.Validated)
	assert.Equal(t, 0, result.Profile.ValidationPasses)
	assert.NotEmpty(t, result.Profile.Profile, "the last draft still ships")
	assert.Contains(t, sink.Milestones(), "Profile ready (some checks may need review)")
}
