package llmprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// pricePerMTok is a small, deliberately approximate cost table (USD per
// million tokens); real pricing is a config concern, not an engine one.
var pricePerMTok = map[string][2]float64{
	"claude-3-5-sonnet": {3.0, 15.0},
	"claude-3-haiku":     {0.25, 1.25},
}

// AnthropicAdapter is a minimal HTTP-backed Provider implementation,
// generalized from a single-vendor chat-completions shape so any
// Anthropic-compatible messages endpoint can back it.
type AnthropicAdapter struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewAnthropicAdapter(baseURL, apiKey string) *AnthropicAdapter {
	return &AnthropicAdapter{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (a *AnthropicAdapter) Generate(ctx context.Context, req Request) (Response, error) {
	start := time.Now()

	body, err := json.Marshal(anthropicRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return Response{}, fmt.Errorf("llmprovider: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("llmprovider: build request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-api-key", a.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := a.HTTPClient.Do(httpReq)
	if err != nil {
		return Response{}, ErrorFromHTTPStatus("anthropic", 0, err.Error(), nil)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("llmprovider: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var retryAfter *time.Duration
		if ra := resp.Header.Get("retry-after"); ra != "" {
			if secs, err := time.ParseDuration(ra + "s"); err == nil {
				retryAfter = &secs
			}
		}
		return Response{}, ErrorFromHTTPStatus("anthropic", resp.StatusCode, string(raw), retryAfter)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Response{}, fmt.Errorf("llmprovider: unmarshal response: %w", err)
	}

	var text string
	if len(parsed.Content) > 0 {
		text = parsed.Content[0].Text
	}

	cost := estimateCost(req.Model, parsed.Usage.InputTokens, parsed.Usage.OutputTokens)

	return Response{
		Text:      text,
		Usage:     Usage{Input: parsed.Usage.InputTokens, Output: parsed.Usage.OutputTokens},
		CostUSD:   cost,
		LatencyMs: time.Since(start).Milliseconds(),
		Model:     req.Model,
	}, nil
}

func estimateCost(model string, inputTok, outputTok int) float64 {
	prices, ok := pricePerMTok[model]
	if !ok {
		return 0
	}
	return (float64(inputTok)/1_000_000)*prices[0] + (float64(outputTok)/1_000_000)*prices[1]
}
