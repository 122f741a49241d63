// Package llmprovider is the abstract LLM capability consumed by the
// repair loop: a single generate() call. The engine never sees a
// provider SDK type, only {text, usage, cost, latency}.
package llmprovider

import "context"

// Request is the generate() input contract.
type Request struct {
	Prompt      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Usage is token accounting for one call.
type Usage struct {
	Input  int
	Output int
}

// Response is the generate() output contract.
type Response struct {
	Text      string
	Usage     Usage
	CostUSD   float64
	LatencyMs int64
	Model     string
}

// Provider is the abstract capability. Implementations must classify
// their own failures as Retryable so callers can apply uniform backoff.
type Provider interface {
	Generate(ctx context.Context, req Request) (Response, error)
}
