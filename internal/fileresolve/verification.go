package fileresolve

import (
	"context"
	"path"
	"regexp"
	"strings"
)

// contentSignatures maps a recognized manifest basename to a pattern its
// content should match to be considered genuine, not merely same-named.
var contentSignatures = map[string]*regexp.Regexp{
	"requirements.txt": regexp.MustCompile(`(?m)^[A-Za-z0-9_.\-]+([=<>!~].*)?$`),
	"package.json":     regexp.MustCompile(`"name"\s*:`),
	"go.mod":           regexp.MustCompile(`(?m)^module\s+\S+`),
	"pyproject.toml":   regexp.MustCompile(`(?m)^\[(tool|project|build-system)`),
}

// VerifyContentMatch reports whether content plausibly belongs to the
// well-known file named by basename(path). Files without a recognized
// signature are always accepted (nothing to check against).
func VerifyContentMatch(filePath, content string) bool {
	sig, ok := contentSignatures[path.Base(filePath)]
	if !ok {
		return true
	}
	return sig.MatchString(strings.TrimSpace(content))
}

// CommandRunner abstracts the sandbox capability dryRunBuild needs,
// avoiding an import cycle with the sandbox package.
type CommandRunner interface {
	RunCommand(ctx context.Context, cmd string) (exitCode int, stdout, stderr string, err error)
}

// DryRunBuild runs cmd through runner and reports whether it exited zero.
func DryRunBuild(ctx context.Context, runner CommandRunner, cmd string) bool {
	exitCode, _, _, err := runner.RunCommand(ctx, cmd)
	return err == nil && exitCode == 0
}
