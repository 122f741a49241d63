package sandbox

import (
	"context"
	"fmt"

	"github.com/repairloop/agent/internal/fileresolve"
)

// AgentTools is the small safe-capability surface that node
// implementations call in-process (it is not written into the sandbox
// workspace): readFile/writeFile/runCmd/search/listDir with path
// auto-correction, so node implementations never touch the raw Sandbox
// path directly when turning an LLM-proposed (possibly hallucinated)
// path into a real write.
type AgentTools struct {
	sb Sandbox
}

func NewAgentTools(sb Sandbox) *AgentTools {
	return &AgentTools{sb: sb}
}

// ReadFile reads path, auto-correcting via findUniqueFile if it does not
// exist verbatim.
func (a *AgentTools) ReadFile(ctx context.Context, path string) (resolvedPath, content string, corrected bool, err error) {
	content, err = a.sb.ReadFile(ctx, path)
	if err == nil {
		return path, content, false, nil
	}

	res, listErr := a.ResolvePath(ctx, path)
	if listErr != nil {
		return "", "", false, fmt.Errorf("sandbox: readFile %q failed and listing files also failed: %w", path, err)
	}
	if !res.Found || res.Path == "" {
		return "", "", false, fmt.Errorf("sandbox: readFile %q: %w", path, err)
	}
	content, err = a.sb.ReadFile(ctx, res.Path)
	if err != nil {
		return "", "", false, err
	}
	return res.Path, content, true, nil
}

// ResolvePath lists the sandbox's files and runs findUniqueFile against
// path, the auto-correction lookup shared by every caller that needs to
// turn a possibly-hallucinated LLM path into a real one (or detect that
// it names more than one candidate).
func (a *AgentTools) ResolvePath(ctx context.Context, path string) (fileresolve.DiscoveryResult, error) {
	all, err := a.sb.ListFiles(ctx, ".")
	if err != nil {
		return fileresolve.DiscoveryResult{}, err
	}
	return fileresolve.FindUniqueFile(path, all), nil
}

func (a *AgentTools) WriteFile(ctx context.Context, path, content string) error {
	return a.sb.WriteFile(ctx, path, content)
}

func (a *AgentTools) RunCmd(ctx context.Context, cmd string) (CommandResult, error) {
	return a.sb.RunCommand(ctx, cmd, DefaultCommandTimeout)
}

// Search lists every file under dir whose basename contains query
// (case-insensitive) — the grep-style code search capability exposed
// to the loop's static tools.
func (a *AgentTools) Search(ctx context.Context, dir, query string) ([]string, error) {
	all, err := a.sb.ListFiles(ctx, dir)
	if err != nil {
		return nil, err
	}
	return fileresolve.RecursiveSearch(query, all), nil
}

func (a *AgentTools) ListDir(ctx context.Context, dir string) ([]string, error) {
	return a.sb.ListFiles(ctx, dir)
}
