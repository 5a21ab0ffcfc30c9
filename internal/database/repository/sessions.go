package repository

import (
	"context"
	"database/sql"
	"time"
)

// SessionRepo handles sessions.
type SessionRepo struct{ db *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

func (r *SessionRepo) Start(ctx context.Context, s Session) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO sessions(id, started_at) VALUES(?, ?)`, s.ID, s.StartedAt.UTC())
	return err
}

func (r *SessionRepo) End(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET ended_at = ? WHERE id = ? AND ended_at IS NULL`, at.UTC(), id)
	return err
}

// Current returns the most recently started open session, or nil.
func (r *SessionRepo) Current(ctx context.Context) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, started_at, ended_at FROM sessions WHERE ended_at IS NULL ORDER BY started_at DESC, rowid DESC LIMIT 1`)
	s, err := scanSession(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepo) List(ctx context.Context) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, started_at, ended_at FROM sessions ORDER BY started_at, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var s Session
	var ended sql.NullTime
	if err := row.Scan(&s.ID, &s.StartedAt, &ended); err != nil {
		return Session{}, err
	}
	if ended.Valid {
		t := ended.Time
		s.EndedAt = &t
	}
	return s, nil
}
