// Package supervisor owns the sandbox lifecycle and delegates to the
// Graph Agent: it is the only component that ever calls
// Sandbox.Teardown, and it guarantees that call runs on every exit path.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/repairloop/agent/internal/graph"
	"github.com/repairloop/agent/internal/sandbox"
)

// RunGroup is one repair job.
type RunGroup struct {
	ID      string
	Name    string
	RunIDs  []string
	HeadSHA string
}

// CloneFunc clones the repository at headSHA into the sandbox workspace.
// Supplied by the caller so Supervisor stays independent of any one
// code-hosting client implementation.
type CloneFunc func(ctx context.Context, sb sandbox.Sandbox, headSHA string) error

// GraphAgentFunc invokes the Graph Agent against a prepared sandbox and
// returns the terminal outcome.
type GraphAgentFunc func(ctx context.Context, sb sandbox.Sandbox, group RunGroup) (graph.Outcome, *graph.GraphState)

// Supervisor owns the sandbox lifecycle and delegates repair to the graph engine.
type Supervisor struct {
	Backend  sandbox.Backend
	WorkDir  string
	Clone    CloneFunc
	RunGraph GraphAgentFunc
	Logger   *slog.Logger
}

// lockfileDetectors maps a manifest/lockfile basename to the toolchain
// install command it implies, consulted during protocol step 4.
var lockfileDetectors = []struct {
	file    string
	install string
}{
	{"bun.lockb", "bun install"},
	{"bunfig.toml", "bun install"},
	{"package-lock.json", "npm ci"},
	{"pnpm-lock.yaml", "pnpm install"},
	{"requirements.txt", "pip install -r requirements.txt"},
	{"pyproject.toml", "pip install ."},
	{"Dockerfile", "" /* install a Dockerfile linter, handled specially below */},
}

const dockerfileLintInstall = "which hadolint || (curl -sL https://github.com/hadolint/hadolint/releases/latest/download/hadolint-Linux-x86_64 -o /usr/local/bin/hadolint && chmod +x /usr/local/bin/hadolint)"

// Run executes the full protocol: init (with simulator fallback), clone,
// toolchain install, Graph Agent invocation, and guaranteed teardown. No
// agent-tools helper module is written into the sandbox workspace.
func (s *Supervisor) Run(ctx context.Context, group RunGroup) (outcome graph.Outcome, state *graph.GraphState, err error) {
	sb, err := sandbox.New(s.Backend, s.WorkDir)
	if err != nil {
		return graph.OutcomeFailed, nil, fmt.Errorf("supervisor: instantiate sandbox: %w", err)
	}

	if initErr := sb.Init(ctx); initErr != nil {
		s.logWarn("sandbox init failed, degrading to simulator", "backend", s.Backend, "error", initErr)
		sb = sandbox.NewSimulator(s.WorkDir)
		if err := sb.Init(ctx); err != nil {
			return graph.OutcomeFailed, nil, fmt.Errorf("supervisor: simulator fallback also failed: %w", err)
		}
	}

	defer func() {
		if tErr := sb.Teardown(ctx); tErr != nil {
			s.logWarn("teardown failed", "sandbox_id", sb.GetID(), "error", tErr)
		}
	}()

	if reporter, ok := sb.(sandbox.LivenessReporter); ok && !reporter.IsAlive() {
		s.logWarn("sandbox process did not survive init", "sandbox_id", sb.GetID())
	}

	if s.Clone != nil {
		if cloneErr := s.Clone(ctx, sb, group.HeadSHA); cloneErr != nil {
			return graph.OutcomeFailed, nil, fmt.Errorf("supervisor: clone at %s: %w", group.HeadSHA, cloneErr)
		}
	}

	if instErr := s.installToolchains(ctx, sb); instErr != nil {
		s.logWarn("toolchain install step reported a failure, continuing", "error", instErr)
	}

	outcome, state = s.runGraphAgentSafely(ctx, sb, group)
	return outcome, state, nil
}

func (s *Supervisor) installToolchains(ctx context.Context, sb sandbox.Sandbox) error {
	files, err := sb.ListFiles(ctx, ".")
	if err != nil {
		return fmt.Errorf("supervisor: list files for toolchain detection: %w", err)
	}
	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[f] = true
		present[lastSegment(f)] = true
	}

	var firstErr error
	for _, d := range lockfileDetectors {
		if !present[d.file] {
			continue
		}
		cmd := d.install
		if d.file == "Dockerfile" {
			cmd = dockerfileLintInstall
		}
		if cmd == "" {
			continue
		}
		if _, err := sb.RunCommand(ctx, cmd, 0); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("toolchain install %q: %w", cmd, err)
		}
	}
	return firstErr
}

func lastSegment(p string) string {
	if idx := strings.LastIndex(p, "/"); idx >= 0 {
		return p[idx+1:]
	}
	return p
}

// runGraphAgentSafely catches any panic from the Graph Agent, mapping it
// onto status=failed, so teardown
// always still runs via the caller's defer.
func (s *Supervisor) runGraphAgentSafely(ctx context.Context, sb sandbox.Sandbox, group RunGroup) (outcome graph.Outcome, state *graph.GraphState) {
	defer func() {
		if r := recover(); r != nil {
			s.logWarn("graph agent panicked", "recover", r)
			outcome = graph.OutcomeFailed
			if state == nil {
				state = graph.NewGraphState("", "", 0, false)
			}
			state.Status = graph.StatusFailed
			state.FailureReason = fmt.Sprintf("panic: %v", r)
		}
	}()
	return s.RunGraph(ctx, sb, group)
}

func (s *Supervisor) logWarn(msg string, args ...any) {
	if s.Logger != nil {
		s.Logger.Warn(msg, args...)
	}
}
