package fileresolve

import (
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var vendorDirs = []string{"node_modules", "vendor", ".git", "dist", "build", "target", "__pycache__", ".venv"}

func isVendored(p string) bool {
	for _, part := range strings.Split(p, "/") {
		for _, v := range vendorDirs {
			if part == v {
				return true
			}
		}
	}
	return false
}

// DiscoveryResult is the return shape of FindUniqueFile.
type DiscoveryResult struct {
	Found        bool
	Path         string
	RelativePath string
	Matches      []string
}

// FindUniqueFile searches allFiles (forward-slash, sandbox-root-relative
// paths, e.g. as returned by Sandbox.ListFiles) for entries matching
// "**/<basename(name)>", excluding vendor directories.
func FindUniqueFile(name string, allFiles []string) DiscoveryResult {
	base := Basename(name)
	pattern := "**/" + base

	var matches []string
	for _, f := range allFiles {
		if isVendored(f) {
			continue
		}
		if path.Base(f) != base {
			continue
		}
		if ok, err := doublestar.Match(pattern, f); err != nil || !ok {
			continue
		}
		matches = append(matches, f)
	}
	sort.Strings(matches)

	if len(matches) == 1 {
		return DiscoveryResult{Found: true, Path: matches[0], RelativePath: matches[0], Matches: matches}
	}
	return DiscoveryResult{Found: len(matches) > 0, Matches: matches}
}

// RecursiveSearch is a looser fallback: any path whose basename contains
// name's basename as a substring (case-insensitive).
func RecursiveSearch(name string, allFiles []string) []string {
	needle := strings.ToLower(Basename(name))
	var out []string
	for _, f := range allFiles {
		if isVendored(f) {
			continue
		}
		if strings.Contains(strings.ToLower(path.Base(f)), needle) {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

// FuzzySearch is a last-resort fallback matching on stem equality ignoring
// extension, e.g. "calc.py" ~ "calc.ts".
func FuzzySearch(name string, allFiles []string) []string {
	stem := strings.TrimSuffix(Basename(name), path.Ext(Basename(name)))
	stem = strings.ToLower(stem)
	var out []string
	for _, f := range allFiles {
		if isVendored(f) {
			continue
		}
		base := path.Base(f)
		fstem := strings.TrimSuffix(base, path.Ext(base))
		if strings.ToLower(fstem) == stem {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

// GitHistoryLookup abstracts the two git-history fallbacks
// (checkGitHistoryForRename / checkGitHistoryForDeletion) over a minimal
// collaborator so fileresolve stays independent of the gitutil process
// runner.
type GitHistoryLookup interface {
	// LogFollow returns the sequence of historical paths git believes a
	// file was renamed through (oldest first), or nil if none.
	LogFollow(path string) ([]string, error)
	// WasDeleted reports whether path ever existed and was later removed.
	WasDeleted(path string) (bool, error)
}

// CheckGitHistoryForRename consults git's rename-follow history for a
// plausible current path for a now-missing name.
func CheckGitHistoryForRename(lookup GitHistoryLookup, name string) (string, bool) {
	if lookup == nil {
		return "", false
	}
	history, err := lookup.LogFollow(name)
	if err != nil || len(history) == 0 {
		return "", false
	}
	return history[len(history)-1], true
}

// CheckGitHistoryForDeletion reports whether name was deliberately removed
// from history (as opposed to never having existed or being hallucinated).
func CheckGitHistoryForDeletion(lookup GitHistoryLookup, name string) bool {
	if lookup == nil {
		return false
	}
	deleted, err := lookup.WasDeleted(name)
	return err == nil && deleted
}
