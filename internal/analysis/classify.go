// Package analysis implements the Analysis node: log
// retrieval with strategy escalation, history-aware classification,
// LLM-backed diagnosis, cascade suppression, and knowledge-base linking.
package analysis

import (
	"regexp"
	"strings"

	"github.com/repairloop/agent/internal/graph"
	"github.com/repairloop/agent/internal/knowledge"
)

// categoryKeywords is a small deterministic keyword table used to seed
// classification before history/LLM refinement narrows it further.
var categoryKeywords = []struct {
	category graph.ErrorCategory
	pattern  *regexp.Regexp
}{
	{graph.CategorySyntax, regexp.MustCompile(`(?i)syntaxerror|unexpected token|parse error`)},
	{graph.CategoryImport, regexp.MustCompile(`(?i)importerror|cannot find module|no module named`)},
	{graph.CategoryType, regexp.MustCompile(`(?i)typeerror|type mismatch|type '.*' is not assignable`)},
	{graph.CategoryDependencyConflict, regexp.MustCompile(`(?i)conflicting dependency|version conflict|peer dep`)},
	{graph.CategoryDependency, regexp.MustCompile(`(?i)module not found|package .* not found|could not resolve dependency`)},
	{graph.CategoryNetwork, regexp.MustCompile(`(?i)connection refused|timeout|network is unreachable|econnreset`)},
	{graph.CategoryDiskSpace, regexp.MustCompile(`(?i)no space left on device|disk quota exceeded`)},
	{graph.CategoryEnvironmentUnstable, regexp.MustCompile(`(?i)mass failure|50 tests failed|flaky|environment unstable`)},
	{graph.CategoryTestFailure, regexp.MustCompile(`(?i)test failed|assertionerror|expect\(.*\)\.to`)},
	{graph.CategoryRuntime, regexp.MustCompile(`(?i)runtimeerror|panic:|segmentation fault|nullpointerexception`)},
}

// Classify produces a ClassifiedError from raw log text and the files the
// loop already knows are implicated. History-aware: if fingerprint is a
// known ErrorSolution in store, confidence is boosted and historical
// matches are attached.
func Classify(store *knowledge.Store, logText string, affectedFiles []string) graph.ClassifiedError {
	category := graph.CategoryUnknown
	for _, ck := range categoryKeywords {
		if ck.pattern.MatchString(logText) {
			category = ck.category
			break
		}
	}

	message := firstErrorLine(logText)
	confidence := 0.5
	if category != graph.CategoryUnknown {
		confidence = 0.75
	}

	var historical []string
	fp := knowledge.Fingerprint(string(category), message, affectedFiles)
	if sol, err := store.GetErrorSolution(fp); err == nil && sol != nil {
		confidence = minFloat(confidence+0.2*sol.SuccessRate, 0.99)
		historical = append(historical, fp)
	}
	if similar, err := store.FindSimilarFixes(fp, string(category), message, 0); err == nil {
		for _, s := range similar {
			if s.Fingerprint == fp {
				continue // already recorded above via the exact-match lookup
			}
			historical = append(historical, s.Fingerprint)
		}
	}

	return graph.ClassifiedError{
		Category:          category,
		Confidence:        confidence,
		AffectedFiles:     affectedFiles,
		RootCauseLog:      logText,
		ErrorMessage:      message,
		HistoricalMatches: historical,
		Priority:          priorityFor(category),
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// priorityFor maps a category onto a default 0..10 priority; environment
// and dependency issues are treated as higher priority since they tend to
// block everything else.
func priorityFor(c graph.ErrorCategory) int {
	switch c {
	case graph.CategoryEnvironmentUnstable, graph.CategoryDiskSpace:
		return 9
	case graph.CategoryDependency, graph.CategoryDependencyConflict:
		return 7
	case graph.CategorySyntax, graph.CategoryImport, graph.CategoryType:
		return 6
	case graph.CategoryTestFailure, graph.CategoryRuntime, graph.CategoryLogic:
		return 5
	case graph.CategoryNetwork:
		return 4
	default:
		return 3
	}
}

func firstErrorLine(logText string) string {
	for _, line := range strings.Split(logText, "\n") {
		l := strings.TrimSpace(line)
		if l != "" {
			return l
		}
	}
	return logText
}

// IsCascade reports whether next strictly subsumes prev: same category,
// same affected files, and strictly fewer newline-separated lines in next's
// root cause log. Only the line counts are compared; the log contents are
// not checked against each other.
func IsCascade(prev, next graph.ClassifiedError) bool {
	if prev.Category != next.Category {
		return false
	}
	if !sameFileSet(prev.AffectedFiles, next.AffectedFiles) {
		return false
	}
	prevLines := strings.Count(prev.RootCauseLog, "\n")
	nextLines := strings.Count(next.RootCauseLog, "\n")
	return nextLines < prevLines
}

func sameFileSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, f := range a {
		seen[f]++
	}
	for _, f := range b {
		seen[f]--
	}
	for _, n := range seen {
		if n != 0 {
			return false
		}
	}
	return true
}
