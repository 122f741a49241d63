package knowledge

import (
	"database/sql"
	"fmt"
)

// ErrorDependency is the persistent record of one inter-error edge: source
// depends on (or is otherwise linked to) target via RelationType.
type ErrorDependency struct {
	SourceErrorID string
	TargetErrorID string
	RelationType  string
	Metadata      string
}

// InsertErrorDependency inserts an edge. Idempotent: re-inserting the same
// (source, target, type) triple is a no-op, enforced by the table's
// primary key rather than a read-then-write race.
func (s *Store) InsertErrorDependency(d ErrorDependency) error {
	_, err := s.db.Exec(`
		INSERT INTO error_dependency (source_error_id, target_error_id, relationship_type, metadata)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source_error_id, target_error_id, relationship_type) DO NOTHING
	`, d.SourceErrorID, d.TargetErrorID, d.RelationType, d.Metadata)
	if err != nil {
		return fmt.Errorf("knowledge: insert error dependency: %w", err)
	}
	return nil
}

// ListErrorDependencies returns every persisted edge.
func (s *Store) ListErrorDependencies() ([]ErrorDependency, error) {
	rows, err := s.db.Query(`SELECT source_error_id, target_error_id, relationship_type, metadata FROM error_dependency`)
	if err != nil {
		return nil, fmt.Errorf("knowledge: list error dependencies: %w", err)
	}
	defer rows.Close()

	var out []ErrorDependency
	for rows.Next() {
		var d ErrorDependency
		var metadata sql.NullString
		if err := rows.Scan(&d.SourceErrorID, &d.TargetErrorID, &d.RelationType, &metadata); err != nil {
			return nil, fmt.Errorf("knowledge: scan error dependency: %w", err)
		}
		d.Metadata = metadata.String
		out = append(out, d)
	}
	return out, rows.Err()
}
