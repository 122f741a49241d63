package llmprovider

import (
	"context"
	"testing"
)

type flakyProvider struct {
	failures  int
	calls     int
	terminal  bool
}

func (f *flakyProvider) Generate(ctx context.Context, req Request) (Response, error) {
	f.calls++
	if f.calls <= f.failures {
		if f.terminal {
			return Response{}, ErrorFromHTTPStatus("test", 400, "bad request", nil)
		}
		return Response{}, ErrorFromHTTPStatus("test", 429, "rate limited", nil)
	}
	return Response{Text: "ok"}, nil
}

func TestWithRetry_RetriesTransientFailures(t *testing.T) {
	p := &flakyProvider{failures: 2}
	wrapped := WithRetry(p)
	resp, err := wrapped.Generate(context.Background(), Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Generate returned error after retries: %v", err)
	}
	if resp.Text != "ok" {
		t.Fatalf("resp.Text = %q, want ok", resp.Text)
	}
	if p.calls != 3 {
		t.Fatalf("calls = %d, want 3 (2 failures + 1 success)", p.calls)
	}
}

func TestWithRetry_DoesNotRetryTerminalErrors(t *testing.T) {
	p := &flakyProvider{failures: 1, terminal: true}
	wrapped := WithRetry(p)
	_, err := wrapped.Generate(context.Background(), Request{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected terminal error to surface")
	}
	if p.calls != 1 {
		t.Fatalf("calls = %d, want 1 (no retry on terminal error)", p.calls)
	}
}

func TestErrorFromHTTPStatus_Classification(t *testing.T) {
	cases := []struct {
		status    int
		retryable bool
	}{
		{429, true},
		{408, true},
		{500, true},
		{503, true},
		{400, false},
		{404, false},
	}
	for _, c := range cases {
		err := ErrorFromHTTPStatus("test", c.status, "", nil)
		if err.Retryable() != c.retryable {
			t.Errorf("status %d: Retryable() = %v, want %v", c.status, err.Retryable(), c.retryable)
		}
	}
}

func TestEstimateCost_KnownModel(t *testing.T) {
	cost := estimateCost("claude-3-5-sonnet", 1_000_000, 1_000_000)
	want := 3.0 + 15.0
	if cost < want-0.01 || cost > want+0.01 {
		t.Fatalf("cost = %v, want ~%v", cost, want)
	}
}
