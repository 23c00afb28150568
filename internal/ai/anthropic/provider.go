// Package anthropic implements models.Generator against the Anthropic
// messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prospecthq/prospector/internal/ai/aierrors"
	"github.com/prospecthq/prospector/internal/config"
	"github.com/prospecthq/prospector/pkg/models"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"
)

// Provider implements models.Generator using Anthropic.
type Provider struct {
	cfg     config.AnthropicConfig
	baseURL string
	client  *http.Client
}

func NewProvider(cfg config.AnthropicConfig, timeout time.Duration) *Provider {
	return NewProviderWithBaseURL(cfg, timeout, defaultBaseURL)
}

// NewProviderWithBaseURL exists for tests that point the provider at a stub server.
func NewProviderWithBaseURL(cfg config.AnthropicConfig, timeout time.Duration, baseURL string) *Provider {
	return &Provider{
		cfg:     cfg,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *Provider) Name() string { return "anthropic" }

// CancelGeneration is a no-op: the messages API has no background operations
// to cancel. In-flight requests stop through context cancellation instead.
func (p *Provider) CancelGeneration(_ context.Context, _ string) error { return nil }

type messagesRequest struct {
	Model     string           `json:"model"`
	MaxTokens int              `json:"max_tokens"`
	System    string           `json:"system,omitempty"`
	Messages  []requestMessage `json:"messages"`
}

type requestMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *Provider) Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	body, err := json.Marshal(messagesRequest{
		Model:     p.cfg.Model,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages:  []requestMessage{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status %d", aierrors.ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", aierrors.ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", aierrors.ErrInvalidResponse, resp.StatusCode)
	}

	var out messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", aierrors.ErrInvalidResponse, err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("%w: %s", aierrors.ErrInvalidResponse, out.Error.Message)
	}

	for _, block := range out.Content {
		if block.Type == "text" {
			return &models.GenerationResult{Text: block.Text}, nil
		}
	}
	return nil, fmt.Errorf("%w: no text content", aierrors.ErrInvalidResponse)
}

func classifyError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", aierrors.ErrInferenceTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", aierrors.ErrInferenceTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", aierrors.ErrProviderUnavailable, err)
}

var _ models.Generator = (*Provider)(nil)
