package codehost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// HTTPClient is a bearer-token-authenticated implementation of Client
// against a generic git-forge REST API (GitHub-API-shaped: refs, trees,
// commits, workflow runs). It does not depend on any vendor SDK.
type HTTPClient struct {
	APIBaseURL string
	HTTP       *http.Client
}

func NewHTTPClient(apiBaseURL string) *HTTPClient {
	return &HTTPClient{APIBaseURL: apiBaseURL, HTTP: &http.Client{Timeout: 30 * time.Second}}
}

func (c *HTTPClient) do(ctx context.Context, method, url, token string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("authorization", "Bearer "+token)
	req.Header.Set("accept", "application/json")
	if body != nil {
		req.Header.Set("content-type", "application/json")
	}
	return c.HTTP.Do(req)
}

func (c *HTTPClient) GetPRFailedRuns(ctx context.Context, owner, repo string, pr int, excludePatterns []string) ([]WorkflowRun, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/check-runs?status=failure", c.APIBaseURL, owner, repo, pr)
	resp, err := c.do(ctx, http.MethodGet, url, "", nil)
	if err != nil {
		return nil, fmt.Errorf("codehost: get PR failed runs: %w", err)
	}
	defer resp.Body.Close()

	var parsed struct {
		Runs []struct {
			ID      string `json:"id"`
			HeadSHA string `json:"head_sha"`
			Branch  string `json:"head_branch"`
			Name    string `json:"name"`
		} `json:"check_runs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("codehost: decode failed runs: %w", err)
	}

	var out []WorkflowRun
outer:
	for _, r := range parsed.Runs {
		for _, pat := range excludePatterns {
			if strings.Contains(r.Name, pat) {
				continue outer
			}
		}
		out = append(out, WorkflowRun{ID: r.ID, HeadSHA: r.HeadSHA, Branch: r.Branch})
	}
	return out, nil
}

func (c *HTTPClient) GetWorkflowLogs(ctx context.Context, repoURL, runID, token string, strategy LogStrategy) (string, error) {
	url := fmt.Sprintf("%s/%s/actions/runs/%s/logs?strategy=%s", c.APIBaseURL, repoURL, runID, strategy)
	resp, err := c.do(ctx, http.MethodGet, url, token, nil)
	if err != nil {
		return "", fmt.Errorf("codehost: get workflow logs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNoFailedJobFound
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return "", ErrNoFailedJobFound
	}
	return string(raw), nil
}

func (c *HTTPClient) GetFileContent(ctx context.Context, repoURL, path, token string) (string, error) {
	url := fmt.Sprintf("%s/%s/contents/%s", c.APIBaseURL, repoURL, path)
	resp, err := c.do(ctx, http.MethodGet, url, token, nil)
	if err != nil {
		return "", fmt.Errorf("codehost: get file content: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// PushCommitOnBranch performs the tree-then-commit-then-ref-update
// sequence, retrying the whole sequence with exponential
// backoff since a failure partway through (e.g. a ref race) is safe to
// redo from scratch against a freshly-read parent SHA.
func (c *HTTPClient) PushCommitOnBranch(ctx context.Context, repoURL, branch string, files []FileWrite, message, token string) (string, error) {
	var commitURL string
	op := func() error {
		parentSHA, err := c.getRefSHA(ctx, repoURL, branch, token)
		if err != nil {
			return err
		}
		treeSHA, err := c.createTree(ctx, repoURL, parentSHA, files, token)
		if err != nil {
			return err
		}
		commitSHA, url, err := c.createCommit(ctx, repoURL, treeSHA, parentSHA, message, token)
		if err != nil {
			return err
		}
		if err := c.updateRef(ctx, repoURL, branch, commitSHA, token); err != nil {
			return err
		}
		commitURL = url
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return "", fmt.Errorf("codehost: push commit: %w", err)
	}
	return commitURL, nil
}

func (c *HTTPClient) getRefSHA(ctx context.Context, repoURL, branch, token string) (string, error) {
	url := fmt.Sprintf("%s/%s/git/ref/heads/%s", c.APIBaseURL, repoURL, branch)
	resp, err := c.do(ctx, http.MethodGet, url, token, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var parsed struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	return parsed.Object.SHA, nil
}

func (c *HTTPClient) createTree(ctx context.Context, repoURL, baseSHA string, files []FileWrite, token string) (string, error) {
	type treeEntry struct {
		Path    string `json:"path"`
		Mode    string `json:"mode"`
		Type    string `json:"type"`
		Content string `json:"content"`
	}
	entries := make([]treeEntry, len(files))
	for i, f := range files {
		entries[i] = treeEntry{Path: f.Path, Mode: "100644", Type: "blob", Content: f.Content}
	}
	url := fmt.Sprintf("%s/%s/git/trees", c.APIBaseURL, repoURL)
	resp, err := c.do(ctx, http.MethodPost, url, token, map[string]any{"base_tree": baseSHA, "tree": entries})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var parsed struct {
		SHA string `json:"sha"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	return parsed.SHA, nil
}

func (c *HTTPClient) createCommit(ctx context.Context, repoURL, treeSHA, parentSHA, message, token string) (sha, url string, err error) {
	endpoint := fmt.Sprintf("%s/%s/git/commits", c.APIBaseURL, repoURL)
	resp, err := c.do(ctx, http.MethodPost, endpoint, token, map[string]any{
		"message": message, "tree": treeSHA, "parents": []string{parentSHA},
	})
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	var parsed struct {
		SHA     string `json:"sha"`
		HTMLURL string `json:"html_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", "", err
	}
	return parsed.SHA, parsed.HTMLURL, nil
}

func (c *HTTPClient) updateRef(ctx context.Context, repoURL, branch, commitSHA, token string) error {
	url := fmt.Sprintf("%s/%s/git/refs/heads/%s", c.APIBaseURL, repoURL, branch)
	resp, err := c.do(ctx, http.MethodPatch, url, token, map[string]any{"sha": commitSHA, "force": false})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("codehost: update ref: status %d", resp.StatusCode)
	}
	return nil
}
