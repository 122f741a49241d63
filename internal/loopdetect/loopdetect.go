// Package loopdetect implements the strategy-shift guards
// a snapshot-repetition loop detector and a consecutive-path
// hallucination counter.
package loopdetect

import (
	"encoding/hex"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
)

// Banner is the literal guidance string prepended to the next diagnosis
// prompt and appended to feedback when a loop is detected.
const Banner = "LOOP DETECTED: prior snapshot repeated. You MUST change your strategy: attempt a different file, a different action type, or a different reproduction command."

// HashContent produces a stable content hash for loop-detector snapshots,
// Hashing must be stable across runs: normalize (trim trailing newline, strip carriage
// returns) before hashing so line-ending noise never causes spurious
// mismatches across sandbox backends.
func HashContent(content string) string {
	normalized := strings.ReplaceAll(content, "\r", "")
	normalized = strings.TrimRight(normalized, "\n")
	sum := blake3.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Snapshot is the tuple compared across ANALYSIS entries.
type Snapshot struct {
	Iteration                 int
	NormalizedDiagnosisSummary string
	SortedModifiedContentHashes []string
}

func normalizeSummary(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// NewSnapshot builds a Snapshot from the current iteration, diagnosis
// summary, and the content of every file currently in GraphState.Files.
func NewSnapshot(iteration int, diagnosisSummary string, fileContents map[string]string) Snapshot {
	hashes := make([]string, 0, len(fileContents))
	for _, content := range fileContents {
		hashes = append(hashes, HashContent(content))
	}
	sort.Strings(hashes)
	return Snapshot{
		Iteration:                  iteration,
		NormalizedDiagnosisSummary: normalizeSummary(diagnosisSummary),
		SortedModifiedContentHashes: hashes,
	}
}

func (s Snapshot) key() string {
	return strings.Join(append([]string{s.NormalizedDiagnosisSummary}, s.SortedModifiedContentHashes...), "|")
}

// Detector tracks snapshots and path-hallucination counts for a single run.
// It is not safe for concurrent use (matches the single-threaded-per-run
// cooperative single-threaded-per-run concurrency model).
type Detector struct {
	seen              map[string]struct{}
	consecutiveByPath map[string]int
}

func New() *Detector {
	return &Detector{
		seen:              make(map[string]struct{}),
		consecutiveByPath: make(map[string]int),
	}
}

// Observe records snap and reports whether it repeats a prior snapshot
// within this run. The snapshot's iteration number is intentionally
// excluded from the repetition key: two occurrences at different
// iterations with the same summary and file-hash set still count as a
// loop, since the agent made no real progress between them.
func (d *Detector) Observe(snap Snapshot) (loopDetected bool) {
	k := snap.key()
	if _, ok := d.seen[k]; ok {
		return true
	}
	d.seen[k] = struct{}{}
	return false
}

// RecordHallucination increments the counter for path and resets every
// other path's counter to zero.
func (d *Detector) RecordHallucination(path string) {
	for p := range d.consecutiveByPath {
		if p != path {
			d.consecutiveByPath[p] = 0
		}
	}
	d.consecutiveByPath[path]++
}

// ShouldTriggerStrategyShift reports whether path's consecutive
// hallucination count has reached the threshold of 2.
func (d *Detector) ShouldTriggerStrategyShift(path string) bool {
	return d.consecutiveByPath[path] >= 2
}

// TriggerAutomatedRecovery returns the remediation glob pattern the
// ExecutionNode must consume instead of continuing the hallucinated write.
func TriggerAutomatedRecovery(path string) string {
	return "**/" + filepath.Base(path)
}
