// Package reproduction infers a reproduction command for a diagnosis that
// did not come with one: three prioritized strategies,
// each dry-run-verified, first passing candidate wins.
package reproduction

import (
	"context"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Runner is the minimal sandbox capability a dry-run needs.
type Runner interface {
	RunCommand(ctx context.Context, cmd string) (exitCode int, stdout, stderr string, err error)
}

// Candidate is one inferred command paired with the strategy that produced it.
type Candidate struct {
	Strategy string
	Command  string
}

// workflowFile is the minimal shape of a GitHub-Actions-style CI workflow
// needed to extract a failing job's run step.
type workflowFile struct {
	Jobs map[string]struct {
		Steps []struct {
			Run string `yaml:"run"`
		} `yaml:"steps"`
	} `yaml:"jobs"`
}

// FromWorkflow extracts the run: step of failingJob from a CI workflow
// file's raw YAML content.
func FromWorkflow(workflowYAML, failingJob string) (Candidate, bool) {
	var wf workflowFile
	if err := yaml.Unmarshal([]byte(workflowYAML), &wf); err != nil {
		return Candidate{}, false
	}
	job, ok := wf.Jobs[failingJob]
	if !ok {
		return Candidate{}, false
	}
	for i := len(job.Steps) - 1; i >= 0; i-- {
		if run := strings.TrimSpace(job.Steps[i].Run); run != "" {
			return Candidate{Strategy: "workflow", Command: run}, true
		}
	}
	return Candidate{}, false
}

// signatureRule maps a manifest-file signature to its canonical test
// command.
type signatureRule struct {
	manifest string
	contains *regexp.Regexp // optional: manifest content must match
	command  string
}

var signatureRules = []signatureRule{
	{manifest: "package.json", command: "npm test"},
	{manifest: "pyproject.toml", contains: regexp.MustCompile(`pytest`), command: "pytest"},
	{manifest: "pyproject.toml", command: "python -m unittest"},
	{manifest: "go.mod", command: "go test ./..."},
	{manifest: "Cargo.toml", command: "cargo test"},
}

// FromSignature maps detected manifest files (basename -> content) to a
// canonical command.
func FromSignature(manifests map[string]string) (Candidate, bool) {
	for _, rule := range signatureRules {
		content, present := manifests[rule.manifest]
		if !present {
			continue
		}
		if rule.contains != nil && !rule.contains.MatchString(content) {
			continue
		}
		return Candidate{Strategy: "signature", Command: rule.command}, true
	}
	return Candidate{}, false
}

// FromSafeScan inspects the working tree listing for test directories or
// files and suggests a read-only command.
func FromSafeScan(files []string) (Candidate, bool) {
	for _, f := range files {
		if f == "tests" || strings.HasPrefix(f, "tests/") {
			return Candidate{Strategy: "safe-scan", Command: "ls tests"}, true
		}
	}
	for _, f := range files {
		if strings.HasSuffix(f, "_test.py") {
			return Candidate{Strategy: "safe-scan", Command: "python " + f}, true
		}
	}
	return Candidate{}, false
}

// Infer runs each candidate-producing strategy in priority order and
// dry-run-verifies it with runner, returning the first passing command.
func Infer(ctx context.Context, runner Runner, workflowYAML, failingJob string, manifests map[string]string, files []string) (Candidate, bool) {
	var candidates []Candidate
	if c, ok := FromWorkflow(workflowYAML, failingJob); ok {
		candidates = append(candidates, c)
	}
	if c, ok := FromSignature(manifests); ok {
		candidates = append(candidates, c)
	}
	if c, ok := FromSafeScan(files); ok {
		candidates = append(candidates, c)
	}

	for _, c := range candidates {
		exitCode, _, _, err := runner.RunCommand(ctx, c.Command)
		if err == nil && exitCode == 0 {
			return c, true
		}
	}
	return Candidate{}, false
}
