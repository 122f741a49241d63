package supervisor

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/repairloop/agent/internal/sandbox"
	"github.com/repairloop/agent/internal/sandbox/gitutil"
)

// GitClone clones repoURL at headSHA into sb's work directory on the host
// filesystem (used by backends, like docker_local, that bind-mount a host
// directory) and is the default CloneFunc wired by cmd/repairagent.
func GitClone(repoURL string) CloneFunc {
	return func(ctx context.Context, sb sandbox.Sandbox, headSHA string) error {
		workDir := sb.GetWorkDir()
		if err := exec.CommandContext(ctx, "git", "clone", repoURL, workDir).Run(); err != nil {
			return fmt.Errorf("supervisor: clone %s: %w", repoURL, err)
		}
		if !gitutil.IsRepo(workDir) {
			return fmt.Errorf("supervisor: %s did not produce a git repository", workDir)
		}
		if _, err := gitutil.HeadSHA(workDir); err != nil {
			return fmt.Errorf("supervisor: read HEAD after clone: %w", err)
		}
		if _, _, err := execGit(ctx, workDir, "checkout", headSHA); err != nil {
			return fmt.Errorf("supervisor: checkout %s: %w", headSHA, err)
		}
		return nil
	}
}

func execGit(ctx context.Context, dir string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...)
	out, err := cmd.CombinedOutput()
	return string(out), "", err
}
