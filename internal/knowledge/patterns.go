package knowledge

import "fmt"

// FixTemplate is the wire contract for a cached pattern's content: either
// an edit list or a single command.
type FixTemplate struct {
	Action  string      `json:"action"` // "edit" | "command"
	Edits   []FixEdit   `json:"edits,omitempty"`
	Command string      `json:"command,omitempty"`
}

type FixEdit struct {
	Path   string `json:"path"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// UpsertFixPattern records (or reinforces) a successful fix. Called only
// on a SUCCESS terminal transition, never before.
func (s *Store) UpsertFixPattern(fingerprint, category string, templateJSON string) error {
	_, err := s.db.Exec(`
		INSERT INTO fix_pattern (fingerprint, category, template, success_count, times_applied, created_at, updated_at)
		VALUES (?, ?, ?, 1, 1, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			success_count = success_count + 1,
			times_applied = times_applied + 1,
			template = excluded.template,
			updated_at = excluded.updated_at
	`, fingerprint, category, templateJSON, now(), now())
	if err != nil {
		return fmt.Errorf("knowledge: upsert fix pattern %s: %w", fingerprint, err)
	}
	return nil
}

// UpsertErrorSolution updates the running-average success rate and average
// iteration count for a fingerprint. outcome is 1.0 for success, 0.0 for
// failure; iterations is the iteration count this attempt consumed.
func (s *Store) UpsertErrorSolution(fingerprint string, outcome float64, iterations int) error {
	var oldRate, oldAvgIter float64
	var oldN int
	row := s.db.QueryRow(`SELECT success_rate, avg_iterations, times_applied FROM error_solution WHERE fingerprint = ?`, fingerprint)
	err := row.Scan(&oldRate, &oldAvgIter, &oldN)
	if err != nil {
		// No existing row: seed with this single observation.
		_, err = s.db.Exec(`
			INSERT INTO error_solution (fingerprint, success_rate, avg_iterations, times_applied, updated_at)
			VALUES (?, ?, ?, 1, ?)
		`, fingerprint, outcome, float64(iterations), now())
		if err != nil {
			return fmt.Errorf("knowledge: seed error solution %s: %w", fingerprint, err)
		}
		return nil
	}

	newN := oldN + 1
	newRate := (oldRate*float64(oldN) + outcome) / float64(newN)
	newAvgIter := (oldAvgIter*float64(oldN) + float64(iterations)) / float64(newN)

	_, err = s.db.Exec(`
		UPDATE error_solution
		SET success_rate = ?, avg_iterations = ?, times_applied = ?, updated_at = ?
		WHERE fingerprint = ?
	`, newRate, newAvgIter, newN, now(), fingerprint)
	if err != nil {
		return fmt.Errorf("knowledge: update error solution %s: %w", fingerprint, err)
	}
	return nil
}

// ErrorSolution is the running-average view of a fingerprint's outcomes.
type ErrorSolution struct {
	Fingerprint   string
	SuccessRate   float64
	AvgIterations float64
	TimesApplied  int
}

func (s *Store) GetErrorSolution(fingerprint string) (*ErrorSolution, error) {
	row := s.db.QueryRow(`SELECT fingerprint, success_rate, avg_iterations, times_applied FROM error_solution WHERE fingerprint = ?`, fingerprint)
	var es ErrorSolution
	if err := row.Scan(&es.Fingerprint, &es.SuccessRate, &es.AvgIterations, &es.TimesApplied); err != nil {
		return nil, err
	}
	return &es, nil
}
