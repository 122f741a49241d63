package verification

import (
	"context"
	"strconv"
	"strings"

	"github.com/repairloop/agent/internal/graph"
	"github.com/repairloop/agent/internal/sandbox"
)

// EnvRecoveryNode implements graph.Node for ENV_RECOVERY
// refresh dependencies, kill dangling processes, then hand
// back to VERIFICATION for a re-run. VERIFICATION is its only permitted
// successor.
type EnvRecoveryNode struct {
	Sandbox sandbox.Sandbox
}

func (n *EnvRecoveryNode) Name() graph.Name { return graph.NodeEnvRecovery }

// danglingProcessNames are best-effort pkill targets for common test
// runners that can be left behind by a crashed previous attempt.
var danglingProcessNames = []string{"jest", "vitest", "pytest", "mocha"}

func (n *EnvRecoveryNode) Run(ctx context.Context, state *graph.GraphState) (graph.StatePatch, error) {
	if n.Sandbox == nil {
		return graph.StatePatch{Next: graph.NodeVerification}, nil
	}

	var history []graph.HistoryEntry

	refreshCmd := n.refreshDependenciesCommand(ctx)
	if refreshCmd != "" {
		result, err := n.Sandbox.RunCommand(ctx, refreshCmd, sandbox.DefaultCommandTimeout)
		action := "refresh-dependencies:" + refreshCmd
		if err != nil {
			history = append(history, graph.HistoryEntry{Node: graph.NodeEnvRecovery, Action: action, Result: "error: " + err.Error()})
		} else {
			history = append(history, graph.HistoryEntry{Node: graph.NodeEnvRecovery, Action: action, Result: "exit " + strconv.Itoa(result.ExitCode)})
		}
	}

	for _, proc := range danglingProcessNames {
		// Best-effort: a nonzero pkill exit (no matching process) is
		// expected and not a failure signal.
		_, _ = n.Sandbox.RunCommand(ctx, "pkill -f "+proc+" || true", sandbox.DefaultCommandTimeout)
	}
	history = append(history, graph.HistoryEntry{Node: graph.NodeEnvRecovery, Action: "kill-dangling-processes", Result: strings.Join(danglingProcessNames, ",")})

	return graph.StatePatch{Next: graph.NodeVerification, AppendHistory: history}, nil
}

// refreshDependenciesCommand picks a package-manager-specific refresh
// command by the same lockfile signatures the Supervisor uses at init,
// attempted at most once per iteration.
func (n *EnvRecoveryNode) refreshDependenciesCommand(ctx context.Context) string {
	files, err := n.Sandbox.ListFiles(ctx, ".")
	if err != nil {
		return ""
	}
	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[f] = true
	}
	switch {
	case present["bun.lockb"], present["bunfig.toml"]:
		return "bun install"
	case present["pnpm-lock.yaml"]:
		return "pnpm install --no-frozen-lockfile"
	case present["requirements.txt"]:
		return "pip install -r requirements.txt"
	default:
		return ""
	}
}
