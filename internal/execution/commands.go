// Package execution implements the Execution node:
// command validation/auto-correction, file resolution, LLM-produced
// content post-processing, and lint/validate with one self-correction
// retry.
package execution

import "strings"

// packageManagerAliases maps a detected repository profile to the command
// substitution the corresponding package manager expects
// ("npm test ↔ pnpm test ↔ bun test, etc.").
var packageManagerAliases = map[string][3]string{
	"npm":  {"npm", "pnpm", "bun"},
	"pnpm": {"pnpm", "npm", "bun"},
	"bun":  {"bun", "npm", "pnpm"},
}

// Profile is the detected repository toolchain, used to validate and
// auto-correct a command fixAction before it is run.
type Profile struct {
	PackageManager string // "npm", "pnpm", "bun", "pip", "" if unknown
}

// DetectProfile infers the package manager from lockfiles present in the
// sandbox file listing.
func DetectProfile(files []string) Profile {
	for _, f := range files {
		switch {
		case strings.HasSuffix(f, "bun.lockb"), strings.HasSuffix(f, "bunfig.toml"):
			return Profile{PackageManager: "bun"}
		case strings.HasSuffix(f, "pnpm-lock.yaml"):
			return Profile{PackageManager: "pnpm"}
		case strings.HasSuffix(f, "package-lock.json"):
			return Profile{PackageManager: "npm"}
		case strings.HasSuffix(f, "requirements.txt"), strings.HasSuffix(f, "pyproject.toml"):
			return Profile{PackageManager: "pip"}
		}
	}
	return Profile{}
}

// ValidateCommand auto-corrects a known package-manager alias mismatch
// (e.g. "npm test" run under a pnpm-only repo becomes "pnpm test").
// Commands that don't start with a recognized package-manager token are
// returned unchanged — they're not this function's concern.
func ValidateCommand(cmd string, profile Profile) string {
	fields := strings.Fields(cmd)
	if len(fields) == 0 || profile.PackageManager == "" {
		return cmd
	}
	aliases, ok := packageManagerAliases[profile.PackageManager]
	if !ok {
		return cmd
	}
	head := fields[0]
	for _, alt := range aliases {
		if head == alt && alt != aliases[0] {
			fields[0] = aliases[0]
			return strings.Join(fields, " ")
		}
	}
	return cmd
}
