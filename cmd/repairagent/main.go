// Command repairagent is the thin CLI driver: it loads
// an AppConfig, assembles one RunGroup's collaborators (sandbox,
// code-hosting client, LLM provider, knowledge store), and hands off to
// the Supervisor. It is intentionally minimal; long-lived orchestration
// across many RunGroups is out of scope.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/repairloop/agent/internal/analysis"
	"github.com/repairloop/agent/internal/codehost"
	"github.com/repairloop/agent/internal/config"
	"github.com/repairloop/agent/internal/depgraph"
	"github.com/repairloop/agent/internal/execution"
	"github.com/repairloop/agent/internal/graph"
	"github.com/repairloop/agent/internal/knowledge"
	"github.com/repairloop/agent/internal/llmprovider"
	"github.com/repairloop/agent/internal/loopdetect"
	"github.com/repairloop/agent/internal/planning"
	"github.com/repairloop/agent/internal/runid"
	"github.com/repairloop/agent/internal/sandbox"
	"github.com/repairloop/agent/internal/supervisor"
	"github.com/repairloop/agent/internal/telemetry"
	"github.com/repairloop/agent/internal/verification"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  repairagent run --config <config.yaml> --head-sha <sha> [--db <knowledge.db>] [--name <runGroupName>]")
	fmt.Fprintln(os.Stderr, "  repairagent --version")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "--version", "-v", "version":
		fmt.Println("repairagent dev")
		os.Exit(0)
	case "run":
		run(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func run(args []string) {
	var configPath, headSHA, dbPath, groupName string
	dbPath = "repairagent.db"

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				os.Exit(1)
			}
			configPath = args[i]
		case "--head-sha":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--head-sha requires a value")
				os.Exit(1)
			}
			headSHA = args[i]
		case "--db":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--db requires a value")
				os.Exit(1)
			}
			dbPath = args[i]
		case "--name":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--name requires a value")
				os.Exit(1)
			}
			groupName = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown arg: %s\n", args[i])
			os.Exit(1)
		}
	}
	if configPath == "" || headSHA == "" {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := runWithContext(ctx, configPath, headSHA, dbPath, groupName); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runWithContext(ctx context.Context, configPath, headSHA, dbPath, groupName string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("repairagent: load config: %w", err)
	}

	tel, err := telemetry.New(ctx)
	if err != nil {
		return fmt.Errorf("repairagent: telemetry: %w", err)
	}
	defer tel.Shutdown(ctx)

	store, err := knowledge.Open(dbPath)
	if err != nil {
		return fmt.Errorf("repairagent: open knowledge store at %s: %w", dbPath, err)
	}
	defer store.Close()

	deps := depgraph.New(store)
	loop := loopdetect.New()

	llm := llmprovider.WithRetry(llmprovider.NewAnthropicAdapter("https://api.anthropic.com", cfg.AccessToken))
	host := codehost.NewHTTPClient("https://api.github.com")

	runGroupID := runid.NewRunGroupID()
	runID := runid.New()
	if groupName == "" {
		groupName = runGroupID
	}

	registry := graph.NewRegistry()
	registry.Register(&analysis.Node{
		CodeHost: host,
		LLM:      llm,
		Store:    store,
		Deps:     deps,
		Loop:     loop,
		RunID:    runID,
		RepoURL:  cfg.RepositoryURL,
	})
	registry.Register(&planning.Node{
		Store:     store,
		Decompose: planning.LLMDecomposer(llm),
	})
	registry.Register(&execution.Node{
		LLM:  llm,
		Loop: loop,
		Deps: deps,
		Classify: func(logText string, affectedFiles []string) graph.ClassifiedError {
			return analysis.Classify(store, logText, affectedFiles)
		},
	})
	registry.Register(&verification.Node{
		Store:                store,
		Deps:                 deps,
		RunID:                runID,
		MassFailureThreshold: 0,
	})
	registry.Register(&verification.EnvRecoveryNode{})

	runGraph := func(ctx context.Context, sb sandbox.Sandbox, group supervisor.RunGroup) (graph.Outcome, *graph.GraphState) {
		for _, name := range []graph.Name{graph.NodeAnalysis, graph.NodePlanning, graph.NodeExecution, graph.NodeVerification, graph.NodeEnvRecovery} {
			if n, ok := registry.Lookup(name); ok {
				wireSandbox(n, sb)
			}
		}
		maxIterations := 5
		if cfg.MaxAdaptiveIterations != nil {
			maxIterations = *cfg.MaxAdaptiveIterations
		}
		state := graph.NewGraphState("", "", maxIterations, false)
		lastIteration, recordedLLMCalls := state.Iteration, 0
		observer := func(snap graph.Snapshot) {
			logger.Info("transition", "run_id", runID, "node", string(snap.Node), "iteration", snap.State.Iteration)
			_, span := tel.NodeSpan(ctx, runID, string(snap.Node), snap.State.Iteration)
			span.End()
			if snap.State.Iteration > lastIteration {
				lastIteration = snap.State.Iteration
				tel.RecordIteration(ctx)
			}
			for _, m := range snap.State.LLMMetrics[recordedLLMCalls:] {
				tel.RecordLLMCall(ctx, m.CostUSD)
			}
			recordedLLMCalls = len(snap.State.LLMMetrics)
		}
		engine := graph.NewEngine(registry, observer)
		outcome := engine.Run(ctx, state)
		if outcome == graph.OutcomeSuccess {
			tel.RecordRunSuccess(ctx)
		} else {
			tel.RecordRunFailed(ctx)
		}
		return outcome, state
	}

	sup := &supervisor.Supervisor{
		Backend:  sandboxBackend(cfg.Backend),
		WorkDir:  "",
		Clone:    supervisor.GitClone(cfg.RepositoryURL),
		RunGraph: runGraph,
		Logger:   logger,
	}

	group := supervisor.RunGroup{
		ID:      runGroupID,
		Name:    groupName,
		RunIDs:  []string{runID},
		HeadSHA: headSHA,
	}

	outcome, state, err := sup.Run(ctx, group)
	if err != nil {
		return fmt.Errorf("repairagent: supervisor run: %w", err)
	}

	fmt.Printf("run_group_id=%s\n", runGroupID)
	fmt.Printf("run_id=%s\n", runID)
	fmt.Printf("outcome=%s\n", outcome)
	fmt.Printf("iterations=%d\n", state.Iteration)
	if state.FailureReason != "" {
		fmt.Printf("failure_reason=%s\n", state.FailureReason)
	}
	for path := range state.Files {
		fmt.Printf("touched_file=%s\n", path)
	}

	if outcome != graph.OutcomeSuccess {
		os.Exit(1)
	}
	return nil
}

// sandboxBackend maps the config-layer backend selection onto the
// sandbox package's own Backend type; the two are declared separately so
// config stays independent of the sandbox package.
func sandboxBackend(b config.Backend) sandbox.Backend {
	switch b {
	case config.BackendDockerLocal:
		return sandbox.BackendDockerLocal
	case config.BackendKubernetes:
		return sandbox.BackendKubernetes
	case config.BackendE2B:
		return sandbox.BackendE2B
	default:
		return sandbox.BackendSimulation
	}
}

// wireSandbox injects the just-constructed sandbox into the node
// implementations whose fields were left nil at registry build time
// (the Supervisor does not instantiate the sandbox until Run, so those
// fields can't be set any earlier).
func wireSandbox(n graph.Node, sb sandbox.Sandbox) {
	switch node := n.(type) {
	case *analysis.Node:
		_ = node
	case *planning.Node:
		node.Sandbox = sb
	case *execution.Node:
		node.Sandbox = sb
	case *verification.Node:
		node.Sandbox = sb
	case *verification.EnvRecoveryNode:
		node.Sandbox = sb
	}
}
