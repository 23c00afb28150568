// Package models contains shared data models used across the Prospector codebase.
package models

import "context"

// Generator is the core interface that all AI integrations must implement.
// Never call specific AI providers directly; always inject this interface.
type Generator interface {
	// Generate produces text for a prompt. Long-running providers may execute the
	// request as a background operation (see GenerationRequest.Background) and
	// surface an operation handle for best-effort remote cancellation.
	Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error)
	// CancelGeneration requests cancellation of a provider-side background
	// operation. Best-effort: the operation may already have completed.
	CancelGeneration(ctx context.Context, handle string) error
	// Name returns the provider identifier (e.g., "anthropic", "openai").
	Name() string
}

// GenerationRequest is the input to a text generation operation.
type GenerationRequest struct {
	System    string
	Prompt    string
	MaxTokens int

	// Background requests a provider-side background operation when the provider
	// supports one. Providers without background support ignore it.
	Background bool

	// OnActivity receives fine-grained sub-progress while a background operation
	// runs. May be nil. The handle identifies the provider-side operation.
	OnActivity ActivityFunc
}

// GenerationResult is the output of a text generation operation.
type GenerationResult struct {
	Text string
	// Handle is the provider-side operation ID for background runs, empty otherwise.
	Handle string
}

// ActivityFunc receives activity snapshots from an in-flight background operation.
type ActivityFunc func(handle string, activity ResearchActivity)

// ResearchActivity is a point-in-time snapshot of a provider's background
// research operation. Whole-value replaced on each update, never merged.
type ResearchActivity struct {
	ProviderStatus      string   `json:"provider_status"`
	Searches            int      `json:"searches"`
	PageVisits          int      `json:"page_visits"`
	ReasoningSteps      int      `json:"reasoning_steps"`
	RecentSearchQueries []string `json:"recent_search_queries,omitempty"`
	ReasoningSummary    []string `json:"reasoning_summary,omitempty"`
	ElapsedSeconds      int      `json:"elapsed_seconds"`
}
