package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/repairloop/agent/internal/runid"
	"github.com/repairloop/agent/internal/sandbox/procutil"
)

// DockerLocal runs the repair in a throwaway local container, the default
// production backend. Resource ceilings come from DOCKER_CPU_LIMIT /
// DOCKER_MEMORY_LIMIT / DOCKER_PIDS_LIMIT, defaulting to
// 1 CPU / 2g / 1000 pids.
type DockerLocal struct {
	id          string
	workDir     string
	containerID string
	image       string
	hostPID     int
}

func NewDockerLocal(workDir string) (*DockerLocal, error) {
	if _, err := exec.LookPath("docker"); err != nil {
		return nil, fmt.Errorf("sandbox: docker binary not found: %w", err)
	}
	return &DockerLocal{
		id:      "docker-" + runid.New(),
		workDir: workDir,
		image:   envOr("SANDBOX_IMAGE", "ubuntu:24.04"),
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (d *DockerLocal) Init(ctx context.Context) error {
	if err := os.MkdirAll(d.workDir, 0o755); err != nil {
		return fmt.Errorf("sandbox: create workdir: %w", err)
	}
	args := []string{
		"run", "-d", "--name", d.id,
		"--cpus", envOr("DOCKER_CPU_LIMIT", "1"),
		"--memory", envOr("DOCKER_MEMORY_LIMIT", "2g"),
		"--pids-limit", envOr("DOCKER_PIDS_LIMIT", "1000"),
		"-v", d.workDir + ":/workspace",
		"-w", "/workspace",
		d.image, "sleep", "infinity",
	}
	out, err := exec.CommandContext(ctx, "docker", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("sandbox: docker run: %w: %s", err, out)
	}
	d.containerID = strings.TrimSpace(string(out))
	d.hostPID = d.inspectHostPID(ctx)
	return nil
}

// inspectHostPID reads the container's main process PID in the host PID
// namespace, so IsAlive can do a cheap syscall-based liveness check
// instead of shelling out to docker on every call. Best-effort: a failure
// here just means IsAlive reports not-alive until the next successful
// Init, it does not fail the sandbox.
func (d *DockerLocal) inspectHostPID(ctx context.Context) int {
	out, err := exec.CommandContext(ctx, "docker", "inspect", "--format", "{{.State.Pid}}", d.id).Output()
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0
	}
	return pid
}

// IsAlive reports whether the container's main process is still running,
// per sandbox.LivenessReporter.
func (d *DockerLocal) IsAlive() bool {
	return procutil.PIDAlive(d.hostPID)
}

func (d *DockerLocal) Teardown(ctx context.Context) error {
	if d.containerID == "" {
		return nil
	}
	out, err := exec.CommandContext(ctx, "docker", "rm", "-f", d.containerID).CombinedOutput()
	if err != nil {
		return fmt.Errorf("sandbox: docker rm: %w: %s", err, out)
	}
	return nil
}

func (d *DockerLocal) GetWorkDir() string { return d.workDir }
func (d *DockerLocal) GetID() string      { return d.id }

func (d *DockerLocal) RunCommand(ctx context.Context, cmd string, timeout time.Duration) (CommandResult, error) {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	execCmd := exec.CommandContext(runCtx, "docker", "exec", d.id, "sh", "-c", cmd)
	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr
	err := execCmd.Run()

	exitCode := 0
	if err != nil {
		if runCtx.Err() != nil {
			return CommandResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: 124}, nil
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return CommandResult{}, fmt.Errorf("sandbox: exec %q: %w", cmd, err)
		}
	}
	return CommandResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitCode}, nil
}

func (d *DockerLocal) WriteFile(ctx context.Context, path, content string) error {
	full := filepath.Join(d.workDir, path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("sandbox: mkdir for %s: %w", path, err)
	}
	return os.WriteFile(full, []byte(content), 0o644)
}

func (d *DockerLocal) ReadFile(ctx context.Context, path string) (string, error) {
	full := filepath.Join(d.workDir, path)
	raw, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("sandbox: read %s: %w", path, err)
	}
	return string(raw), nil
}

func (d *DockerLocal) ListFiles(ctx context.Context, dir string) ([]string, error) {
	root := filepath.Join(d.workDir, dir)
	var out []string
	err := filepath.WalkDir(root, func(p string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(d.workDir, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sandbox: list files: %w", err)
	}
	return out, nil
}

func (d *DockerLocal) GetResourceStats(ctx context.Context) (ResourceStats, error) {
	out, err := exec.CommandContext(ctx, "docker", "stats", "--no-stream", "--format",
		"{{.CPUPerc}},{{.MemUsage}},{{.PIDs}}", d.id).CombinedOutput()
	if err != nil {
		return ResourceStats{}, fmt.Errorf("sandbox: docker stats: %w", err)
	}
	parts := strings.Split(strings.TrimSpace(string(out)), ",")
	if len(parts) != 3 {
		return ResourceStats{}, fmt.Errorf("sandbox: unexpected docker stats output %q", out)
	}
	cpu, _ := strconv.ParseFloat(strings.TrimSuffix(parts[0], "%"), 64)
	pids, _ := strconv.Atoi(strings.TrimSpace(parts[2]))
	return ResourceStats{CPUPercent: cpu, PIDs: pids}, nil
}
