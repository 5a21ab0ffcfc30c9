package repository

import (
	"context"
	"database/sql"
)

// CallRepo handles the call history.
type CallRepo struct{ db *sql.DB }

func NewCallRepo(db *sql.DB) *CallRepo { return &CallRepo{db: db} }

func (r *CallRepo) Append(ctx context.Context, c Call) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO calls(session_id, ordinal, student_id, called_at)
	VALUES(?, ?, ?, ?)
	`, c.SessionID, int64(c.Ordinal), c.StudentID, c.CalledAt.UTC())
	return err
}

// Delete removes one call. Deleting a call that does not exist is not an error.
func (r *CallRepo) Delete(ctx context.Context, sessionID string, ordinal uint64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM calls WHERE session_id = ? AND ordinal = ?`, sessionID, int64(ordinal))
	return err
}

// ListBySession returns the session's calls in ordinal order.
func (r *CallRepo) ListBySession(ctx context.Context, sessionID string) ([]Call, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT session_id, ordinal, student_id, called_at FROM calls WHERE session_id = ? ORDER BY ordinal`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Call
	for rows.Next() {
		var c Call
		var ordinal int64
		if err := rows.Scan(&c.SessionID, &ordinal, &c.StudentID, &c.CalledAt); err != nil {
			return nil, err
		}
		c.Ordinal = uint64(ordinal)
		out = append(out, c)
	}
	return out, rows.Err()
}

// MaxOrdinal returns the highest ordinal ever recorded, across sessions.
func (r *CallRepo) MaxOrdinal(ctx context.Context) (uint64, error) {
	var n sql.NullInt64
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(ordinal) FROM calls`).Scan(&n); err != nil {
		return 0, err
	}
	return uint64(n.Int64), nil
}

// CountByStudent returns how often each student was called, across sessions.
func (r *CallRepo) CountByStudent(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT student_id, COUNT(*) FROM calls GROUP BY student_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}
