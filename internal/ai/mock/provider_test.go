package mock_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prospecthq/prospector/internal/ai/mock"
	"github.com/prospecthq/prospector/pkg/models"
)

func TestCanned_IdentityPromptReturnsJSON(t *testing.T) {
	p := mock.NewProvider()

	result, err := p.Generate(context.Background(), models.GenerationRequest{
		Prompt: "Resolve the identity of this subject.\n\nSubject: Ada",
	})
	require.NoError(t, err)

	var identity models.Identity
	require.NoError(t, json.Unmarshal([]byte(result.Text), &identity))
	assert.NotEmpty(t, identity.Name)
}

func TestCanned_QueriesPromptReturnsArray(t *testing.T) {
	p := mock.NewProvider()

	result, err := p.Generate(context.Background(), models.GenerationRequest{
		Prompt: "Generate search queries for this subject.",
	})
	require.NoError(t, err)

	var queries []models.ResearchQuery
	require.NoError(t, json.Unmarshal([]byte(result.Text), &queries))
	assert.NotEmpty(t, queries)
}

func TestCanned_ValidationPromptPasses(t *testing.T) {
	p := mock.NewProvider()

	result, err := p.Generate(context.Background(), models.GenerationRequest{
		Prompt: "Reply with PASS or a critique.",
	})
	require.NoError(t, err)
	assert.Equal(t, "PASS", result.Text)
}

func TestProvider_CountsCallsAndCancels(t *testing.T) {
	p := mock.NewProvider()

	_, err := p.Generate(context.Background(), models.GenerationRequest{Prompt: "a"})
	require.NoError(t, err)
	_, err = p.Generate(context.Background(), models.GenerationRequest{Prompt: "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, p.Calls())

	require.NoError(t, p.CancelGeneration(context.Background(), "h1"))
	assert.Equal(t, []string{"h1"}, p.Cancelled())
}

func TestBlockingProvider_UnblocksOnCancel(t *testing.T) {
	p := mock.NewBlockingProvider()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := p.Generate(ctx, models.GenerationRequest{Prompt: "x"})
		errCh <- err
	}()

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}
