package knowledge

import "fmt"

// ErrorFactStatus is the closed status enum for a persisted ErrorFact.
type ErrorFactStatus string

const (
	ErrorOpen       ErrorFactStatus = "open"
	ErrorInProgress ErrorFactStatus = "in_progress"
	ErrorResolved   ErrorFactStatus = "resolved"
	ErrorBlocked    ErrorFactStatus = "blocked"
)

// ErrorFact is the persistent record of one diagnosed error.
type ErrorFact struct {
	ID        string
	RunID     string
	Summary   string
	FilePath  string
	FixAction string
	Status    ErrorFactStatus
	Notes     string // ErrorNotes JSON
}

// UpsertErrorFact inserts or updates an ErrorFact keyed by (runId, summary,
// filePath). id is generated by the caller
// (run/node ID space) and only used on first insert.
func (s *Store) UpsertErrorFact(f ErrorFact) error {
	if f.Notes == "" {
		f.Notes = "{}"
	}
	_, err := s.db.Exec(`
		INSERT INTO error_fact (id, run_id, summary, file_path, fix_action, status, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, summary, file_path) DO UPDATE SET
			fix_action = excluded.fix_action,
			status = excluded.status,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`, f.ID, f.RunID, f.Summary, f.FilePath, f.FixAction, f.Status, f.Notes, now(), now())
	if err != nil {
		return fmt.Errorf("knowledge: upsert error fact: %w", err)
	}
	return nil
}

func (s *Store) GetErrorFact(id string) (*ErrorFact, error) {
	row := s.db.QueryRow(`SELECT id, run_id, summary, file_path, fix_action, status, notes FROM error_fact WHERE id = ?`, id)
	var f ErrorFact
	if err := row.Scan(&f.ID, &f.RunID, &f.Summary, &f.FilePath, &f.FixAction, &f.Status, &f.Notes); err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *Store) SetErrorFactStatus(id string, status ErrorFactStatus) error {
	_, err := s.db.Exec(`UPDATE error_fact SET status = ?, updated_at = ? WHERE id = ?`, status, now(), id)
	return err
}
