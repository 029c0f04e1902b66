package history

import (
	"fmt"
	"time"

	"github.com/starford/incipit/internal/models"
)

// DefaultLimit caps Recent when no limit is given.
const DefaultLimit = 50

// Record inserts rec. Recording the same id twice replaces the earlier row.
func (db *DB) Record(rec models.CompileRecord) error {
	_, err := db.conn.Exec(`
		INSERT INTO compiles (id, mode, project, file, success, error, output_bytes, checksum, started_at, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			success      = excluded.success,
			error        = excluded.error,
			output_bytes = excluded.output_bytes,
			checksum     = excluded.checksum,
			duration_ns  = excluded.duration_ns
	`, rec.ID, rec.Mode, rec.Project, rec.File, rec.Success, rec.Error,
		rec.OutputBytes, rec.Checksum, rec.StartedAt.UTC(), int64(rec.Duration))
	if err != nil {
		return fmt.Errorf("history: record: %w", err)
	}
	return nil
}

// Recent returns the newest records first. An empty project matches all.
func (db *DB) Recent(project string, limit int) ([]models.CompileRecord, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := db.conn.Query(`
		SELECT id, mode, project, file, success, error, output_bytes, checksum, started_at, duration_ns
		FROM compiles
		WHERE ? = '' OR project = ?
		ORDER BY started_at DESC
		LIMIT ?
	`, project, project, limit)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	defer rows.Close()

	out := []models.CompileRecord{}
	for rows.Next() {
		var (
			r        models.CompileRecord
			started  time.Time
			duration int64
		)
		if err := rows.Scan(&r.ID, &r.Mode, &r.Project, &r.File, &r.Success, &r.Error,
			&r.OutputBytes, &r.Checksum, &started, &duration); err != nil {
			return nil, err
		}
		r.StartedAt = started
		r.Duration = time.Duration(duration)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Prune deletes all but the newest keep records and reports how many went.
func (db *DB) Prune(keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := db.conn.Exec(`
		DELETE FROM compiles WHERE id NOT IN (
			SELECT id FROM compiles ORDER BY started_at DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	return res.RowsAffected()
}
