package repository

import (
	"context"
	"database/sql"
	"time"
)

// ScoreRepo handles student points.
type ScoreRepo struct{ db *sql.DB }

func NewScoreRepo(db *sql.DB) *ScoreRepo { return &ScoreRepo{db: db} }

func (r *ScoreRepo) Upsert(ctx context.Context, studentID string, score int, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO scores(student_id, score, updated_at)
	VALUES(?, ?, ?)
	ON CONFLICT(student_id) DO UPDATE SET
	 score=excluded.score,
	 updated_at=excluded.updated_at;
	`, studentID, score, at.UTC())
	return err
}

func (r *ScoreRepo) List(ctx context.Context) ([]Score, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT student_id, score, updated_at FROM scores ORDER BY student_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Score
	for rows.Next() {
		var s Score
		if err := rows.Scan(&s.StudentID, &s.Score, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *ScoreRepo) Get(ctx context.Context, studentID string) (*Score, error) {
	row := r.db.QueryRowContext(ctx, `SELECT student_id, score, updated_at FROM scores WHERE student_id = ?`, studentID)
	var s Score
	if err := row.Scan(&s.StudentID, &s.Score, &s.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}
