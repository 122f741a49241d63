package knowledge

import (
	"sort"
	"strings"
)

// SimilarFix is one result of a similarity search against fix_pattern.
type SimilarFix struct {
	Fingerprint  string
	Category     string
	Template     string
	SuccessCount int
	Similarity   float64
}

const defaultSimilarityLimit = 5

// FindSimilarFixes performs a two-tier search: an exact
// fingerprint match scores 1.0; otherwise a category match scores the
// token-Jaccard similarity between errorMessage and the stored pattern's
// template text (fix_pattern keeps no error message). Results are sorted by
// (similarity desc, successCount desc) and capped at limit (default 5).
func (s *Store) FindSimilarFixes(fingerprint, category, errorMessage string, limit int) ([]SimilarFix, error) {
	if limit <= 0 {
		limit = defaultSimilarityLimit
	}

	rows, err := s.db.Query(`SELECT fingerprint, category, template, success_count FROM fix_pattern`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	needle := tokenize(errorMessage)
	var results []SimilarFix
	for rows.Next() {
		var r SimilarFix
		if err := rows.Scan(&r.Fingerprint, &r.Category, &r.Template, &r.SuccessCount); err != nil {
			return nil, err
		}
		switch {
		case r.Fingerprint == fingerprint:
			r.Similarity = 1.0
		case r.Category == category:
			r.Similarity = jaccard(needle, tokenize(r.Template))
		default:
			continue
		}
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].SuccessCount > results[j].SuccessCount
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func tokenize(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.Fields(NormalizeMessage(s)) {
		out[tok] = struct{}{}
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
