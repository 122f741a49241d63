// Package fileresolve implements three composable
// services: path normalization, fuzzy file discovery, and lightweight
// content/build verification, used by Planning and Execution to turn a
// possibly-hallucinated LLM-proposed path into a real sandbox file.
package fileresolve

import (
	"errors"
	"path"
	"path/filepath"
)

// ErrEmptyPath is returned by ToAbsolutePath when given an empty path.
var ErrEmptyPath = errors.New("fileresolve: empty path")

// ToAbsolutePath resolves p against workingDir, normalizing "." and ".."
// segments and redundant separators. Already-absolute paths are preserved
// unchanged apart from cleaning. Separators follow filepath's
// platform-aware convention (forward slash on POSIX, backslash on
// Windows).
func ToAbsolutePath(p, workingDir string) (string, error) {
	if p == "" {
		return "", ErrEmptyPath
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p), nil
	}
	return filepath.Clean(filepath.Join(workingDir, p)), nil
}

// ToSlashPath replaces the platform's path separators in p with forward
// slashes. It does not make the path relative to the sandbox.
func ToSlashPath(p string) string {
	return filepath.ToSlash(p)
}

// Basename returns the final path element using forward-slash semantics,
// matching how sandbox paths (always forward-slash) are stored.
func Basename(p string) string {
	return path.Base(filepath.ToSlash(p))
}
