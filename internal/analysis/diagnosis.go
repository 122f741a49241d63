package analysis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/repairloop/agent/internal/graph"
)

// parseDiagnosis parses the LLM's structured diagnosis reply. The prompt
// asks for a fixed-field block; this is intentionally forgiving of
// surrounding prose (models rarely reply with nothing else) but requires
// at minimum a SUMMARY line: never guess one, surface a failure rather
// than fabricate a file path.
func parseDiagnosis(text string) (graph.Diagnosis, error) {
	fields := map[string]string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		idx := strings.Index(line, ":")
		if idx <= 0 {
			continue
		}
		key := strings.ToUpper(strings.TrimSpace(line[:idx]))
		val := strings.TrimSpace(line[idx+1:])
		if val != "" {
			fields[key] = val
		}
	}

	summary, ok := fields["SUMMARY"]
	if !ok || summary == "" {
		return graph.Diagnosis{}, fmt.Errorf("analysis: LLM reply had no SUMMARY field")
	}

	action := graph.FixAction(strings.ToLower(fields["ACTION"]))
	switch action {
	case graph.FixEdit, graph.FixCreate, graph.FixCommand:
	default:
		action = graph.FixEdit
	}

	confidence := 0.6
	if c, ok := fields["CONFIDENCE"]; ok {
		if parsed, err := strconv.ParseFloat(c, 64); err == nil {
			confidence = parsed
		}
	}

	return graph.Diagnosis{
		Summary:             summary,
		FilePath:            fields["FILE"],
		FixAction:           action,
		SuggestedCommand:    fields["COMMAND"],
		ReproductionCommand: fields["REPRODUCE"],
		Confidence:          confidence,
	}, nil
}
