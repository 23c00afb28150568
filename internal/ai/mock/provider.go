// Package mock provides a deterministic models.Generator for tests and local
// development without external providers.
package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/prospecthq/prospector/pkg/models"
)

// Provider satisfies models.Generator for testing. Behavior is scriptable via
// the exported funcs; unset funcs fall back to deterministic canned output.
type Provider struct {
	Name_        string
	GenerateFunc func(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error)
	CancelFunc   func(ctx context.Context, handle string) error

	mu        sync.Mutex
	calls     int
	cancelled []string
}

func (m *Provider) Name() string { return m.Name_ }

func (m *Provider) Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error) {
	m.mu.Lock()
	m.calls++
	n := m.calls
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return cannedResult(req, n), nil
}

func (m *Provider) CancelGeneration(ctx context.Context, handle string) error {
	m.mu.Lock()
	m.cancelled = append(m.cancelled, handle)
	m.mu.Unlock()

	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, handle)
	}
	return nil
}

// Calls reports how many Generate calls the provider has served.
func (m *Provider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Cancelled returns the handles passed to CancelGeneration.
func (m *Provider) Cancelled() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.cancelled...)
}

// NewProvider returns a Provider with deterministic default responses that
// are good enough to drive the full pipeline end to end.
func NewProvider() *Provider {
	return &Provider{Name_: "mock"}
}

// NewFailingProvider returns a Provider that always returns the given error.
func NewFailingProvider(err error) *Provider {
	return &Provider{
		Name_: "mock-failing",
		GenerateFunc: func(_ context.Context, _ models.GenerationRequest) (*models.GenerationResult, error) {
			return nil, err
		},
	}
}

// NewBlockingProvider returns a Provider that blocks until its context is
// cancelled, then returns the context error. Used to exercise cancellation
// racing an in-flight call.
func NewBlockingProvider() *Provider {
	return &Provider{
		Name_: "mock-blocking",
		GenerateFunc: func(ctx context.Context, _ models.GenerationRequest) (*models.GenerationResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
}

// cannedResult answers prompts by kind so the real pipeline stages can parse
// the reply: identity and query prompts get JSON, validation prompts get PASS,
// everything else gets plain prose.
func cannedResult(req models.GenerationRequest, call int) *models.GenerationResult {
	prompt := strings.ToLower(req.Prompt)
	switch {
	case strings.Contains(prompt, "resolve the identity"):
		return &models.GenerationResult{Text: `{"name": "Mock Subject", "organizations": ["Mock Org"], "domain_keywords": ["mock"]}`}
	case strings.Contains(prompt, "search queries"):
		return &models.GenerationResult{Text: `[{"query": "\"Mock Subject\" biography", "category": "BIOGRAPHY"}, {"query": "\"Mock Subject\" interview", "category": "INTERVIEWS"}]`}
	case strings.Contains(prompt, "pass or a critique"):
		return &models.GenerationResult{Text: "PASS"}
	default:
		return &models.GenerationResult{Text: fmt.Sprintf("Mock generation output %d.", call)}
	}
}

var _ models.Generator = (*Provider)(nil)
