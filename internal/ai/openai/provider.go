// Package openai implements models.Generator against the OpenAI responses
// API, including background responses that can be cancelled server-side.
package openai

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
	defaultBaseURL = "https://api.openai.com"

	// backgroundPollInterval paces status polls for a background response.
	backgroundPollInterval = 5 * time.Second
)

// Provider implements models.Generator using OpenAI.
type Provider struct {
	cfg          config.OpenAIConfig
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
}

func NewProvider(cfg config.OpenAIConfig, timeout time.Duration) *Provider {
	return NewProviderWithBaseURL(cfg, timeout, defaultBaseURL)
}

// NewProviderWithBaseURL exists for tests that point the provider at a stub server.
func NewProviderWithBaseURL(cfg config.OpenAIConfig, timeout time.Duration, baseURL string) *Provider {
	return &Provider{
		cfg:          cfg,
		baseURL:      baseURL,
		client:       &http.Client{Timeout: timeout},
		pollInterval: backgroundPollInterval,
	}
}

func (p *Provider) Name() string { return "openai" }

type createRequest struct {
	Model           string `json:"model"`
	Instructions    string `json:"instructions,omitempty"`
	Input           string `json:"input"`
	MaxOutputTokens int    `json:"max_output_tokens,omitempty"`
	Background      bool   `json:"background,omitempty"`
}

type responseObject struct {
	ID        string       `json:"id"`
	Status    string       `json:"status"` // queued, in_progress, completed, failed, incomplete, cancelled
	CreatedAt int64        `json:"created_at"`
	Output    []outputItem `json:"output"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type outputItem struct {
	Type   string `json:"type"`
	Action *struct {
		Type  string `json:"type"`
		Query string `json:"query"`
	} `json:"action"`
	Summary []struct {
		Text string `json:"text"`
	} `json:"summary"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (p *Provider) Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error) {
	created, err := p.createResponse(ctx, req)
	if err != nil {
		return nil, err
	}

	if !req.Background {
		text, ok := outputText(created)
		if !ok {
			return nil, fmt.Errorf("%w: no output text", aierrors.ErrInvalidResponse)
		}
		return &models.GenerationResult{Text: text}, nil
	}

	return p.awaitBackground(ctx, created, req.OnActivity)
}

// awaitBackground polls a background response until it reaches a terminal
// provider status, reporting activity snapshots along the way. The caller's
// context aborting stops the polling immediately; the server-side operation is
// then cancelled best-effort through CancelGeneration.
func (p *Provider) awaitBackground(ctx context.Context, created *responseObject, onActivity models.ActivityFunc) (*models.GenerationResult, error) {
	startedAt := time.Now()
	for {
		if onActivity != nil {
			onActivity(created.ID, activityOf(created, startedAt))
		}

		switch created.Status {
		case "completed":
			text, ok := outputText(created)
			if !ok {
				return nil, fmt.Errorf("%w: no output text", aierrors.ErrInvalidResponse)
			}
			return &models.GenerationResult{Text: text, Handle: created.ID}, nil
		case "failed", "incomplete":
			msg := created.Status
			if created.Error != nil {
				msg = created.Error.Message
			}
			return nil, fmt.Errorf("%w: background response %s: %s", aierrors.ErrProviderUnavailable, created.ID, msg)
		case "cancelled":
			return nil, context.Canceled
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.pollInterval):
		}

		next, err := p.getResponse(ctx, created.ID)
		if err != nil {
			// A single failed poll is not fatal; the next tick retries. Context
			// errors end the wait.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		created = next
	}
}

// CancelGeneration cancels a server-side background response. Best-effort:
// a response that already finished returns without error.
func (p *Provider) CancelGeneration(ctx context.Context, handle string) error {
	u := fmt.Sprintf("%s/v1/responses/%s/cancel", p.baseURL, handle)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	p.setHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("%w: cancel status %d", aierrors.ErrInvalidResponse, resp.StatusCode)
	}
	return nil
}

func (p *Provider) createResponse(ctx context.Context, req models.GenerationRequest) (*responseObject, error) {
	body, err := json.Marshal(createRequest{
		Model:           p.cfg.Model,
		Instructions:    req.System,
		Input:           req.Prompt,
		MaxOutputTokens: req.MaxTokens,
		Background:      req.Background,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/responses", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	p.setHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp)
}

func (p *Provider) getResponse(ctx context.Context, id string) (*responseObject, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/responses/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	p.setHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp)
}

func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
}

func decodeResponse(resp *http.Response) (*responseObject, error) {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status %d", aierrors.ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", aierrors.ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", aierrors.ErrInvalidResponse, resp.StatusCode)
	}

	var out responseObject
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", aierrors.ErrInvalidResponse, err)
	}
	if out.Error != nil && out.Status == "" {
		return nil, fmt.Errorf("%w: %s", aierrors.ErrInvalidResponse, out.Error.Message)
	}
	return &out, nil
}

// activityOf condenses a response's output items into an activity snapshot.
func activityOf(r *responseObject, startedAt time.Time) models.ResearchActivity {
	act := models.ResearchActivity{
		ProviderStatus: r.Status,
		ElapsedSeconds: int(time.Since(startedAt).Seconds()),
	}
	for _, item := range r.Output {
		switch item.Type {
		case "web_search_call":
			act.Searches++
			if item.Action != nil && item.Action.Query != "" {
				act.RecentSearchQueries = append(act.RecentSearchQueries, item.Action.Query)
			}
			if item.Action != nil && item.Action.Type == "open_page" {
				act.PageVisits++
			}
		case "reasoning":
			act.ReasoningSteps++
			for _, s := range item.Summary {
				act.ReasoningSummary = append(act.ReasoningSummary, s.Text)
			}
		}
	}
	// Keep only the freshest few queries; the full list grows unbounded on
	// long research runs.
	if len(act.RecentSearchQueries) > 3 {
		act.RecentSearchQueries = act.RecentSearchQueries[len(act.RecentSearchQueries)-3:]
	}
	if len(act.ReasoningSummary) > 3 {
		act.ReasoningSummary = act.ReasoningSummary[len(act.ReasoningSummary)-3:]
	}
	return act
}

func outputText(r *responseObject) (string, bool) {
	for i := len(r.Output) - 1; i >= 0; i-- {
		if r.Output[i].Type != "message" {
			continue
		}
		for _, c := range r.Output[i].Content {
			if c.Type == "output_text" {
				return c.Text, true
			}
		}
	}
	return "", false
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
